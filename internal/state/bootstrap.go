package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// Bootstrap performs the initial bulk loads: the server list, the guest-list
// reconciliation pass, and the last-visited restore. It runs in the same
// context that later calls Run, before any frame is processed.
func (r *Reconciler) Bootstrap(ctx context.Context) error {
	servers, err := r.api.ListServers(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			r.forceLogout("credential rejected")
		}
		return fmt.Errorf("load servers: %w", err)
	}
	r.mirrors.Servers = servers
	if len(servers) > 0 {
		r.sess.DefaultServer = servers[0].Name
	}

	if r.guests != nil {
		if err := r.ReconcileGuestServers(ctx, servers); err != nil {
			r.log.Warn().Err(err).Msg("guest list reconciliation failed")
		}
	}

	r.restoreLastVisited(ctx)
	return nil
}

// ReconcileGuestServers merges the persisted guest join-list with the
// server-confirmed truth: local entries the server no longer knows are pruned
// and the pruned list is re-persisted. Server truth wins; local order is kept
// for the survivors.
func (r *Reconciler) ReconcileGuestServers(ctx context.Context, servers []api.Server) error {
	if r.guests == nil {
		return nil
	}

	local, err := r.guests.ListGuestServers(ctx)
	if err != nil {
		return fmt.Errorf("list guest servers: %w", err)
	}

	confirmed := make(map[string]struct{}, len(servers))
	for _, s := range servers {
		confirmed[s.Name] = struct{}{}
	}

	kept := local[:0]
	for _, name := range local {
		if _, ok := confirmed[name]; ok {
			kept = append(kept, name)
		}
	}
	if len(kept) == len(local) {
		return nil
	}

	r.log.Info().Int("pruned", len(local)-len(kept)).Msg("pruning guest servers not confirmed by server")
	if err := r.guests.ReplaceGuestServers(ctx, kept); err != nil {
		return fmt.Errorf("persist pruned guest servers: %w", err)
	}
	return nil
}

// OpenServer selects a server and loads its channel list and member roster.
// Call it from the event-processing context only.
func (r *Reconciler) OpenServer(ctx context.Context, serverName string) error {
	channels, err := r.api.ListChannels(ctx, serverName)
	if err != nil {
		return fmt.Errorf("load channels for %s: %w", serverName, err)
	}
	members, err := r.api.ListMembers(ctx, serverName)
	if err != nil {
		return fmt.Errorf("load members for %s: %w", serverName, err)
	}

	r.sess.SelectServer(serverName)
	r.mirrors.Channels = channels
	r.mirrors.Members = members
	r.mirrors.Messages = nil

	if r.guests != nil {
		if err := r.guests.AddGuestServer(ctx, serverName); err != nil {
			r.log.Warn().Err(err).Str("server", serverName).Msg("failed to record guest server")
		}
	}
	r.persistPointer(ctx, store.LastVisited{
		Kind:       store.PointerServer,
		ServerName: serverName,
	})
	return nil
}

// OpenChannel selects a channel within the active server and loads its feed.
func (r *Reconciler) OpenChannel(ctx context.Context, channelID string) error {
	messages, err := r.api.ListMessages(ctx, channelID)
	if err != nil {
		return fmt.Errorf("load messages for %s: %w", channelID, err)
	}

	r.sess.SelectChannel(channelID)
	r.mirrors.Messages = messages

	r.persistPointer(ctx, store.LastVisited{
		Kind:       store.PointerServer,
		ServerName: r.sess.ActiveServer,
		ChannelID:  channelID,
	})
	return nil
}

// OpenDM selects a DM conversation and loads its feed and the DM list.
func (r *Reconciler) OpenDM(ctx context.Context, dmID string) error {
	dms, err := r.api.ListDMs(ctx)
	if err != nil {
		return fmt.Errorf("load dm list: %w", err)
	}
	messages, err := r.api.ListDMMessages(ctx, dmID)
	if err != nil {
		return fmt.Errorf("load dm messages for %s: %w", dmID, err)
	}

	r.sess.SelectDM(dmID)
	r.mirrors.DMs = dms
	r.mirrors.DMMessages = messages

	r.persistPointer(ctx, store.LastVisited{
		Kind: store.PointerDM,
		DMID: dmID,
	})
	return nil
}

func (r *Reconciler) restoreLastVisited(ctx context.Context) {
	if r.guests == nil {
		return
	}

	lv, err := r.guests.LastVisited(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to read last-visited pointer")
		return
	}
	if lv == nil {
		return
	}

	switch lv.Kind {
	case store.PointerServer:
		if !serverExists(r.mirrors.Servers, lv.ServerName) {
			// The server is gone; the pointer is stale.
			if err := r.guests.ClearLastVisited(ctx); err != nil {
				r.log.Warn().Err(err).Msg("failed to clear stale pointer")
			}
			return
		}
		if err := r.OpenServer(ctx, lv.ServerName); err != nil {
			r.log.Warn().Err(err).Msg("failed to restore server selection")
			return
		}
		if lv.ChannelID != "" && channelExists(r.mirrors.Channels, lv.ChannelID) {
			if err := r.OpenChannel(ctx, lv.ChannelID); err != nil {
				r.log.Warn().Err(err).Msg("failed to restore channel selection")
			}
		}
	case store.PointerDM:
		if err := r.OpenDM(ctx, lv.DMID); err != nil {
			r.log.Warn().Err(err).Msg("failed to restore dm selection")
		}
	}
}

func (r *Reconciler) persistPointer(ctx context.Context, lv store.LastVisited) {
	if r.guests == nil {
		return
	}
	if err := r.guests.SetLastVisited(ctx, lv); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist last-visited pointer")
	}
}

func serverExists(servers []api.Server, name string) bool {
	for i := range servers {
		if servers[i].Name == name {
			return true
		}
	}
	return false
}

func channelExists(channels []api.Channel, id string) bool {
	for i := range channels {
		if channels[i].ID == id {
			return true
		}
	}
	return false
}
