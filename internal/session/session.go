package session

import "github.com/google/uuid"

// Session holds the local identity and the active view selection. It is
// created at session start, torn down at session end, and only ever touched
// from the event-processing context, so it carries no locking.
type Session struct {
	ID            string
	Username      string
	Authenticated bool

	ActiveServer  string
	ActiveChannel string
	ActiveDM      string
	DefaultServer string

	revoked bool
	gen     uint64
}

// New constructs an anonymous session with a fresh id. The caller fills in
// the identity once the credential store yields one.
func New() *Session {
	return &Session{ID: uuid.NewString()}
}

// Generation is the view generation. Reload results stamped with an older
// generation are discarded.
func (s *Session) Generation() uint64 { return s.gen }

// SelectServer switches the active server, clearing the channel selection.
func (s *Session) SelectServer(name string) {
	s.ActiveServer = name
	s.ActiveChannel = ""
	s.gen++
}

// SelectChannel switches the active channel within the current server.
func (s *Session) SelectChannel(channelID string) {
	s.ActiveChannel = channelID
	s.gen++
}

// SelectDM switches the active DM conversation.
func (s *Session) SelectDM(dmID string) {
	s.ActiveDM = dmID
	s.gen++
}

// ClearServer drops the active server and channel selection.
func (s *Session) ClearServer() {
	s.ActiveServer = ""
	s.ActiveChannel = ""
	s.gen++
}

// ClearChannel drops the active channel selection.
func (s *Session) ClearChannel() {
	s.ActiveChannel = ""
	s.gen++
}

// Revoke marks the session dead (self-ban or forced logout). Revocation is
// one-way; every reconciliation precondition fails closed afterwards.
func (s *Session) Revoke() {
	s.revoked = true
	s.gen++
}

// Revoked reports whether the session has been torn down.
func (s *Session) Revoked() bool { return s.revoked }
