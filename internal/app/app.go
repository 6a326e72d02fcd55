package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/conn"
	"github.com/vovakirdan/wirechat-client/internal/session"
	"github.com/vovakirdan/wirechat-client/internal/state"
	"github.com/vovakirdan/wirechat-client/internal/store"
	"github.com/vovakirdan/wirechat-client/internal/store/sqlite"
)

const (
	tokenFileName   = "token"
	guestDBFileName = "guest.db"
)

// App wires together the stream manager, the reconciler, and the stores.
type App struct {
	cfg    config.Config
	log    *zerolog.Logger
	tokens *auth.FileTokenStore
	guests store.GuestStore
	mgr    *conn.Manager
	rec    *state.Reconciler
}

// New constructs the application with provided configuration. notify may be
// nil; notices then go to the log.
func New(cfg config.Config, logger *zerolog.Logger, notify state.Notifier) (*App, error) {
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	tokens := auth.NewFileTokenStore(filepath.Join(cfg.StateDir, tokenFileName))
	sess := session.New()

	if token := tokens.Token(); token != "" {
		claims, err := auth.Identify(token)
		if err != nil {
			logger.Warn().Err(err).Msg("stored token unreadable, treating session as guest")
		} else {
			sess.Username = claims.Username
			sess.Authenticated = !claims.IsGuest
		}
	}

	// Guest sessions persist their joined-server list and last-visited
	// pointer locally; authenticated sessions get all of that from the server.
	var guests store.GuestStore
	if !sess.Authenticated {
		gs, err := sqlite.New(filepath.Join(cfg.StateDir, guestDBFileName))
		if err != nil {
			return nil, fmt.Errorf("init guest store: %w", err)
		}
		guests = gs
		logger.Info().Str("path", filepath.Join(cfg.StateDir, guestDBFileName)).Msg("guest store initialized")
	}

	client := api.NewHTTPClient(cfg.APIBaseURL, tokens)
	mgr := conn.NewManager(conn.Options{
		BaseDelay: cfg.ReconnectBaseDelay,
		MaxDelay:  cfg.ReconnectMaxDelay,
		Heartbeat: cfg.HeartbeatInterval,
	}, tokens, logger)

	if notify == nil {
		notify = state.NewLogNotifier(logger)
	}
	// A revoked session must also stop the stream, or the retry loop would
	// keep redialing with a dead credential.
	rec := state.NewReconciler(client, guests, sess, &revocationHook{next: notify, mgr: mgr}, logger)

	return &App{
		cfg:    cfg,
		log:    logger,
		tokens: tokens,
		guests: guests,
		mgr:    mgr,
		rec:    rec,
	}, nil
}

// Reconciler exposes the reconciler so the presentation layer can read
// snapshots and drive navigation.
func (a *App) Reconciler() *state.Reconciler { return a.rec }

// Manager exposes the stream manager for sending client messages.
func (a *App) Manager() *conn.Manager { return a.mgr }

// Run performs the initial bulk load, opens the event stream, and blocks
// reconciling events until ctx is cancelled or the session is revoked.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	if err := a.rec.Bootstrap(ctx); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			a.logout()
			return err
		}
		return fmt.Errorf("bootstrap: %w", err)
	}

	a.mgr.Connect(ctx, a.cfg.StreamURL)
	defer a.mgr.Disconnect()

	a.log.Info().Str("url", a.cfg.StreamURL).Msg("event stream opened")
	a.rec.Run(ctx, a.mgr.Frames())

	if a.rec.Session().Revoked() {
		a.logout()
		return nil
	}
	return ctx.Err()
}

// revocationHook tears the stream down when the session dies, then forwards
// the notice. Disconnect closes the frame channel, which ends the
// reconciler's Run loop.
type revocationHook struct {
	next state.Notifier
	mgr  *conn.Manager
}

func (h *revocationHook) ServerRemoved(serverName string) { h.next.ServerRemoved(serverName) }

func (h *revocationHook) RoleChanged(serverName, role string) { h.next.RoleChanged(serverName, role) }

func (h *revocationHook) SessionRevoked(reason string) {
	h.mgr.Disconnect()
	h.next.SessionRevoked(reason)
}

// logout wipes the stored credential so the next start comes up anonymous.
func (a *App) logout() {
	if err := a.tokens.Clear(); err != nil {
		a.log.Warn().Err(err).Msg("failed to clear stored token")
	} else {
		a.log.Info().Msg("stored token cleared")
	}
}

// cleanup closes the guest store and other resources.
func (a *App) cleanup() {
	if a.guests != nil {
		if err := a.guests.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close guest store")
		} else {
			a.log.Info().Msg("guest store closed")
		}
	}
}
