package state

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/session"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// Reconciler applies server-pushed events to the in-memory mirrors. One event
// is fully reconciled before the next; the mirrors are only ever touched from
// the Run loop, so there is no locking. Reload completions re-enter the loop
// through the task channel rather than mutating from their own goroutine.
type Reconciler struct {
	log    *zerolog.Logger
	api    api.Client
	guests store.GuestStore // nil for authenticated sessions
	sess   *session.Session
	notify Notifier

	mirrors Mirrors
	tasks   chan func()
	ctx     context.Context
}

// NewReconciler builds a reconciler. guests may be nil for authenticated
// sessions; a nil notifier falls back to logging.
func NewReconciler(client api.Client, guests store.GuestStore, sess *session.Session, notify Notifier, logger *zerolog.Logger) *Reconciler {
	if notify == nil {
		notify = NewLogNotifier(logger)
	}
	return &Reconciler{
		log:    logger,
		api:    client,
		guests: guests,
		sess:   sess,
		notify: notify,
		tasks:  make(chan func(), 32),
		ctx:    context.Background(),
	}
}

// Session exposes the session for wiring; callers must not touch it while
// Run is live.
func (r *Reconciler) Session() *session.Session { return r.sess }

// Run consumes raw frames until the channel closes or ctx is cancelled.
// Teardown is synchronous: once Run returns, no further reconciliation
// happens.
func (r *Reconciler) Run(ctx context.Context, frames <-chan []byte) {
	r.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-frames:
			if !ok {
				return
			}
			r.Dispatch(raw)
		case task := <-r.tasks:
			task()
		}
	}
}

// Dispatch decodes one raw frame and routes it to its reconciliation rule.
// Malformed frames are logged and dropped; unknown types are ignored. Nothing
// here returns an error to the frame loop.
func (r *Reconciler) Dispatch(raw []byte) {
	ev, err := proto.Decode(raw)
	if err != nil {
		r.log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}
	if ev == nil {
		r.log.Debug().Msg("ignoring unknown event type")
		return
	}
	r.Apply(ev)
}

// Apply runs exactly one reconciliation rule for the event. Rules whose
// precondition fails accept the event and mutate nothing.
func (r *Reconciler) Apply(ev proto.Event) {
	if r.sess.Revoked() {
		r.log.Debug().Str("event", ev.EventType()).Msg("session revoked, event dropped")
		return
	}

	switch e := ev.(type) {
	case *proto.Connected:
		if r.sess.Username == "" {
			r.sess.Username = e.Username
		}
		r.log.Debug().Str("username", e.Username).Msg("stream confirmed identity")
	case *proto.NewMessage:
		r.applyNewMessage(e)
	case *proto.NewDMMessage:
		r.applyNewDMMessage(e)
	case *proto.MessageDeleted:
		r.mirrors.Messages = dropMessage(r.mirrors.Messages, e.MessageID)
		r.mirrors.DMMessages = dropMessage(r.mirrors.DMMessages, e.MessageID)
	case *proto.UserOnlineStatusChanged:
		r.applyPresence(e)
	case *proto.UserBanned:
		r.applyBan(e)
	case *proto.ServerCreated:
		r.reloadServers()
	case *proto.ServerDeleted:
		r.applyServerDeleted(e)
	case *proto.ServerMemberJoined:
		r.applyMemberJoined(e)
	case *proto.ServerMemberLeft:
		r.applyMemberLeft(e)
	case *proto.ServerMemberRoleUpdated:
		r.applyRoleUpdated(e)
	case *proto.ServerStatsUpdated:
		r.applyStats(e)
	case *proto.ChannelCreated:
		if e.ServerName == r.sess.ActiveServer {
			r.reloadChannels(e.ServerName)
		}
	case *proto.ChannelRenamed:
		if e.ServerName == r.sess.ActiveServer {
			r.reloadChannels(e.ServerName)
		}
	case *proto.ChannelDeleted:
		r.applyChannelDeleted(e)
	case *proto.DMCreated:
		if equalFold(e.Username1, r.sess.Username) || equalFold(e.Username2, r.sess.Username) {
			r.reloadDMs()
		}
	case *proto.FileDownloaded:
		r.applyFileDownloaded(e)
	case *proto.StreamError:
		r.log.Warn().Str("message", e.Message).Msg("stream error event")
	case *proto.UserJoined, *proto.UserLeft, *proto.UserTyping, *proto.Pong:
		// Presentation-layer concerns; nothing to reconcile.
		r.log.Debug().Str("event", ev.EventType()).Msg("event noted")
	}
}

// Snapshot returns a copy of the mirrors and view selection, serialized
// through the Run loop so it never observes a half-applied event.
func (r *Reconciler) Snapshot(ctx context.Context) (Snapshot, error) {
	out := make(chan Snapshot, 1)
	task := func() {
		out <- Snapshot{
			Messages:      copyMessages(r.mirrors.Messages),
			DMMessages:    copyMessages(r.mirrors.DMMessages),
			Servers:       copySlice(r.mirrors.Servers),
			Channels:      copySlice(r.mirrors.Channels),
			Members:       copySlice(r.mirrors.Members),
			DMs:           copySlice(r.mirrors.DMs),
			ActiveServer:  r.sess.ActiveServer,
			ActiveChannel: r.sess.ActiveChannel,
			ActiveDM:      r.sess.ActiveDM,
			Revoked:       r.sess.Revoked(),
		}
	}

	select {
	case r.tasks <- task:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-out:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// ---- rules ----

func (r *Reconciler) applyNewMessage(e *proto.NewMessage) {
	if e.ChannelID == "" || e.ChannelID != r.sess.ActiveChannel {
		return
	}
	// The same message may already be here from an optimistic render or a
	// redelivery after reconnect.
	if hasMessage(r.mirrors.Messages, e.MessageID) {
		return
	}
	r.mirrors.Messages = append(r.mirrors.Messages, api.Message{
		ID:              e.MessageID,
		ChannelID:       e.ChannelID,
		SenderUsername:  e.SenderUsername,
		Content:         e.Content,
		FilteredContent: e.FilteredContent,
		ContentType:     e.ContentType,
		CreatedAt:       e.CreatedAt,
		FilterStatus:    e.FilterStatus,
		Attachments:     e.Attachments(),
	})
}

func (r *Reconciler) applyNewDMMessage(e *proto.NewDMMessage) {
	if e.DMID == "" || e.DMID != r.sess.ActiveDM {
		return
	}
	if hasMessage(r.mirrors.DMMessages, e.MessageID) {
		return
	}
	r.mirrors.DMMessages = append(r.mirrors.DMMessages, api.Message{
		ID:              e.MessageID,
		DMID:            e.DMID,
		SenderUsername:  e.SenderUsername,
		Content:         e.Content,
		FilteredContent: e.FilteredContent,
		ContentType:     e.ContentType,
		CreatedAt:       e.CreatedAt,
		FilterStatus:    e.FilterStatus,
		Attachments:     e.Attachments(),
	})
}

func (r *Reconciler) applyPresence(e *proto.UserOnlineStatusChanged) {
	if e.ServerName != r.sess.ActiveServer {
		return
	}
	for i := range r.mirrors.Members {
		if equalFold(r.mirrors.Members[i].Username, e.Username) {
			r.mirrors.Members[i].IsOnline = e.IsOnline
		}
	}
}

func (r *Reconciler) applyBan(e *proto.UserBanned) {
	if equalFold(e.Username, r.sess.Username) {
		r.mirrors.clear()
		r.sess.Revoke()
		r.notify.SessionRevoked("banned")
		return
	}

	r.mirrors.Messages = dropMessagesBySender(r.mirrors.Messages, e.Username)
	r.mirrors.DMMessages = dropMessagesBySender(r.mirrors.DMMessages, e.Username)

	members := r.mirrors.Members[:0]
	for i := range r.mirrors.Members {
		if !equalFold(r.mirrors.Members[i].Username, e.Username) {
			members = append(members, r.mirrors.Members[i])
		}
	}
	r.mirrors.Members = members
}

func (r *Reconciler) applyServerDeleted(e *proto.ServerDeleted) {
	if r.guests != nil {
		if err := r.guests.RemoveGuestServer(r.ctx, e.ServerName); err != nil {
			r.log.Warn().Err(err).Str("server", e.ServerName).Msg("failed to prune guest server list")
		}
	}
	if r.sess.ActiveServer == e.ServerName {
		r.sess.ClearServer()
		r.mirrors.Channels = nil
		r.mirrors.Members = nil
		r.mirrors.Messages = nil
	}
	r.reloadServers()
}

func (r *Reconciler) applyMemberJoined(e *proto.ServerMemberJoined) {
	if e.ServerName != r.sess.ActiveServer {
		return
	}
	for i := range r.mirrors.Members {
		if equalFold(r.mirrors.Members[i].Username, e.Username) {
			r.reloadServers()
			return
		}
	}
	r.mirrors.Members = append(r.mirrors.Members, api.Member{
		ServerName: e.ServerName,
		Username:   e.Username,
		Role:       api.RoleMember,
		IsOnline:   true,
	})
	r.reloadServers()
}

func (r *Reconciler) applyMemberLeft(e *proto.ServerMemberLeft) {
	if e.ServerName != r.sess.ActiveServer {
		return
	}

	members := r.mirrors.Members[:0]
	for i := range r.mirrors.Members {
		if !equalFold(r.mirrors.Members[i].Username, e.Username) {
			members = append(members, r.mirrors.Members[i])
		}
	}
	r.mirrors.Members = members

	if equalFold(e.Username, r.sess.Username) {
		r.sess.SelectServer(r.sess.DefaultServer)
		r.mirrors.Channels = nil
		r.mirrors.Members = nil
		r.mirrors.Messages = nil
		r.notify.ServerRemoved(e.ServerName)
	}
}

func (r *Reconciler) applyRoleUpdated(e *proto.ServerMemberRoleUpdated) {
	if e.ServerName != r.sess.ActiveServer {
		return
	}
	for i := range r.mirrors.Members {
		if equalFold(r.mirrors.Members[i].Username, e.Username) {
			r.mirrors.Members[i].Role = api.Role(e.NewRole)
		}
	}
	if equalFold(e.Username, r.sess.Username) {
		// Role gates channel create/delete actions; refresh the channel list.
		r.notify.RoleChanged(e.ServerName, e.NewRole)
		r.reloadChannels(e.ServerName)
	}
}

func (r *Reconciler) applyStats(e *proto.ServerStatsUpdated) {
	for i := range r.mirrors.Servers {
		if r.mirrors.Servers[i].Name == e.ServerName {
			r.mirrors.Servers[i].MemberCount = e.MemberCount
			r.mirrors.Servers[i].ChannelCount = e.ChannelCount
		}
	}
}

func (r *Reconciler) applyChannelDeleted(e *proto.ChannelDeleted) {
	if e.ServerName != r.sess.ActiveServer {
		return
	}
	if r.sess.ActiveChannel == e.ChannelID {
		r.sess.ClearChannel()
		r.mirrors.Messages = nil
	}
	r.reloadChannels(e.ServerName)
}

func (r *Reconciler) applyFileDownloaded(e *proto.FileDownloaded) {
	update := func(feed []api.Message) {
		for i := range feed {
			for j := range feed[i].Attachments {
				if feed[i].Attachments[j].FileID == e.FileID {
					feed[i].Attachments[j].DownloadCount = e.DownloadCount
				}
			}
		}
	}
	update(r.mirrors.Messages)
	update(r.mirrors.DMMessages)
}

// ---- reloads ----

// Reloads are fire-and-forget full-list replacements. They carry the view
// generation at trigger time; a completion whose generation no longer matches
// is discarded, so a late reload cannot clobber a newer view.

func (r *Reconciler) reloadServers() {
	ctx, gen := r.ctx, r.sess.Generation()
	go func() {
		servers, err := r.api.ListServers(ctx)
		if err != nil {
			r.reloadFailed("servers", err)
			return
		}
		r.post(ctx, func() {
			if r.sess.Generation() != gen {
				r.log.Debug().Msg("discarding stale server reload")
				return
			}
			r.mirrors.Servers = servers
		})
	}()
}

func (r *Reconciler) reloadChannels(serverName string) {
	ctx, gen := r.ctx, r.sess.Generation()
	go func() {
		channels, err := r.api.ListChannels(ctx, serverName)
		if err != nil {
			r.reloadFailed("channels", err)
			return
		}
		r.post(ctx, func() {
			if r.sess.Generation() != gen || r.sess.ActiveServer != serverName {
				r.log.Debug().Str("server", serverName).Msg("discarding stale channel reload")
				return
			}
			r.mirrors.Channels = channels
		})
	}()
}

func (r *Reconciler) reloadDMs() {
	ctx, gen := r.ctx, r.sess.Generation()
	go func() {
		dms, err := r.api.ListDMs(ctx)
		if err != nil {
			r.reloadFailed("dms", err)
			return
		}
		r.post(ctx, func() {
			if r.sess.Generation() != gen {
				r.log.Debug().Msg("discarding stale dm reload")
				return
			}
			r.mirrors.DMs = dms
		})
	}()
}

func (r *Reconciler) reloadFailed(what string, err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		r.post(r.ctx, func() { r.forceLogout("credential rejected") })
		return
	}
	r.log.Warn().Err(err).Str("reload", what).Msg("reload failed")
}

func (r *Reconciler) post(ctx context.Context, fn func()) {
	select {
	case r.tasks <- fn:
	case <-ctx.Done():
	}
}

func (r *Reconciler) forceLogout(reason string) {
	if r.sess.Revoked() {
		return
	}
	r.mirrors.clear()
	r.sess.Revoke()
	r.notify.SessionRevoked(reason)
}

// Usernames are case-insensitive identifiers; the backend matches them with
// LOWER() on every moderation and lookup path.
func equalFold(a, b string) bool { return strings.EqualFold(a, b) }
