package state

import "github.com/rs/zerolog"

// Notifier is the reconciler's side-effect surface. The presentation layer
// implements it to surface notices and navigation; everything else the
// reconciler does is a pure state mutation.
type Notifier interface {
	// ServerRemoved fires when the local user leaves or is removed from a
	// server; the active selection has already fallen back to the default.
	ServerRemoved(serverName string)

	// RoleChanged fires when the local user's role on a server changes.
	RoleChanged(serverName, newRole string)

	// SessionRevoked fires exactly once when the session dies (self-ban or
	// rejected credential); the caller must navigate to the login surface.
	SessionRevoked(reason string)
}

// LogNotifier logs notices instead of rendering them; the headless CLI and
// tests use it.
type LogNotifier struct {
	log *zerolog.Logger
}

// NewLogNotifier builds a notifier over the given logger.
func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) ServerRemoved(serverName string) {
	n.log.Info().Str("server", serverName).Msg("removed from server")
}

func (n *LogNotifier) RoleChanged(serverName, newRole string) {
	n.log.Info().Str("server", serverName).Str("role", newRole).Msg("role changed")
}

func (n *LogNotifier) SessionRevoked(reason string) {
	n.log.Warn().Str("reason", reason).Msg("session revoked")
}
