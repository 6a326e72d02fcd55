package state

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/session"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// newIdleFixture builds a reconciler without starting its loop; Bootstrap and
// the Open helpers run synchronously in the caller, so the tests can inspect
// the mirrors directly.
func newIdleFixture(guests *fakeGuests) *fixture {
	f := &fixture{
		api: &fakeAPI{
			channels:   map[string][]api.Channel{},
			members:    map[string][]api.Member{},
			messages:   map[string][]api.Message{},
			dmMessages: map[string][]api.Message{},
		},
		guests: guests,
		notify: &recordingNotifier{},
		sess:   session.New(),
	}
	f.sess.Username = "alice"

	logger := log.NewWithWriter("error", io.Discard)
	var gs store.GuestStore
	if guests != nil {
		gs = guests
	}
	f.rec = NewReconciler(f.api, gs, f.sess, f.notify, logger)
	return f
}

func TestBootstrapSetsDefaultServer(t *testing.T) {
	f := newIdleFixture(nil)
	f.api.servers = []api.Server{{Name: "general"}, {Name: "dev"}}

	if err := f.rec.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if f.sess.DefaultServer != "general" {
		t.Fatalf("default server = %q, want general", f.sess.DefaultServer)
	}
	if len(f.rec.mirrors.Servers) != 2 {
		t.Fatalf("server mirror length = %d, want 2", len(f.rec.mirrors.Servers))
	}
	if f.sess.ActiveServer != "" {
		t.Fatal("bootstrap selected a server without a saved pointer")
	}
}

func TestBootstrapUnauthorizedForcesLogout(t *testing.T) {
	f := newIdleFixture(nil)
	f.api.err = api.ErrUnauthorized

	err := f.rec.Bootstrap(context.Background())
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("Bootstrap error = %v, want ErrUnauthorized", err)
	}
	if !f.sess.Revoked() {
		t.Fatal("session not revoked on rejected credential")
	}
	if f.notify.revokedCount() != 1 {
		t.Fatalf("SessionRevoked fired %d times, want 1", f.notify.revokedCount())
	}
}

func TestBootstrapPrunesGuestServers(t *testing.T) {
	guests := &fakeGuests{servers: []string{"a", "b", "c"}}
	f := newIdleFixture(guests)
	f.api.servers = []api.Server{{Name: "b"}}

	if err := f.rec.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	list := guests.list()
	if len(list) != 1 || list[0] != "b" {
		t.Fatalf("guest list after prune = %v, want [b]", list)
	}
}

func TestReconcileGuestServersKeepsLocalOrder(t *testing.T) {
	guests := &fakeGuests{servers: []string{"c", "a", "b"}}
	f := newIdleFixture(guests)

	truth := []api.Server{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}
	if err := f.rec.ReconcileGuestServers(context.Background(), truth); err != nil {
		t.Fatalf("ReconcileGuestServers: %v", err)
	}
	// Nothing pruned, so nothing re-persisted; order untouched.
	list := guests.list()
	if len(list) != 3 || list[0] != "c" || list[1] != "a" || list[2] != "b" {
		t.Fatalf("guest list = %v, want [c a b]", list)
	}

	truth = []api.Server{{Name: "b"}, {Name: "c"}}
	if err := f.rec.ReconcileGuestServers(context.Background(), truth); err != nil {
		t.Fatalf("ReconcileGuestServers: %v", err)
	}
	list = guests.list()
	if len(list) != 2 || list[0] != "c" || list[1] != "b" {
		t.Fatalf("guest list after prune = %v, want [c b]", list)
	}
}

func TestBootstrapRestoresLastVisitedChannel(t *testing.T) {
	guests := &fakeGuests{
		servers: []string{"s1"},
		pointer: &store.LastVisited{Kind: store.PointerServer, ServerName: "s1", ChannelID: "c1"},
	}
	f := newIdleFixture(guests)
	f.api.servers = []api.Server{{Name: "s1"}}
	f.api.channels["s1"] = []api.Channel{{ID: "c1", ServerName: "s1", Name: "general"}}
	f.api.members["s1"] = []api.Member{{ServerName: "s1", Username: "alice"}}
	f.api.messages["c1"] = []api.Message{{ID: "m0", ChannelID: "c1", SenderUsername: "bob", Content: "old"}}

	if err := f.rec.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if f.sess.ActiveServer != "s1" || f.sess.ActiveChannel != "c1" {
		t.Fatalf("restored view = %q/%q, want s1/c1", f.sess.ActiveServer, f.sess.ActiveChannel)
	}
	if len(f.rec.mirrors.Messages) != 1 || f.rec.mirrors.Messages[0].ID != "m0" {
		t.Fatalf("restored feed = %+v", f.rec.mirrors.Messages)
	}
	if len(f.rec.mirrors.Members) != 1 {
		t.Fatal("roster not loaded on restore")
	}
}

func TestBootstrapSkipsVanishedChannel(t *testing.T) {
	guests := &fakeGuests{
		servers: []string{"s1"},
		pointer: &store.LastVisited{Kind: store.PointerServer, ServerName: "s1", ChannelID: "gone"},
	}
	f := newIdleFixture(guests)
	f.api.servers = []api.Server{{Name: "s1"}}
	f.api.channels["s1"] = []api.Channel{{ID: "c1", ServerName: "s1"}}

	if err := f.rec.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if f.sess.ActiveServer != "s1" {
		t.Fatalf("active server = %q, want s1", f.sess.ActiveServer)
	}
	if f.sess.ActiveChannel != "" {
		t.Fatal("vanished channel was restored")
	}
}

func TestBootstrapClearsStaleServerPointer(t *testing.T) {
	guests := &fakeGuests{
		pointer: &store.LastVisited{Kind: store.PointerServer, ServerName: "gone"},
	}
	f := newIdleFixture(guests)
	f.api.servers = []api.Server{{Name: "s1"}}

	if err := f.rec.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if f.sess.ActiveServer != "" {
		t.Fatal("stale pointer selected a server")
	}
	if lv, _ := guests.LastVisited(context.Background()); lv != nil {
		t.Fatalf("stale pointer survived: %+v", lv)
	}
}

func TestBootstrapRestoresLastVisitedDM(t *testing.T) {
	guests := &fakeGuests{
		pointer: &store.LastVisited{Kind: store.PointerDM, DMID: "d1"},
	}
	f := newIdleFixture(guests)
	f.api.dms = []api.DirectMessage{{ID: "d1", Username1: "alice", Username2: "bob"}}
	f.api.dmMessages["d1"] = []api.Message{{ID: "m0", DMID: "d1"}}

	if err := f.rec.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if f.sess.ActiveDM != "d1" {
		t.Fatalf("active dm = %q, want d1", f.sess.ActiveDM)
	}
	if len(f.rec.mirrors.DMMessages) != 1 {
		t.Fatal("dm feed not loaded on restore")
	}
}

func TestOpenChannelPersistsPointer(t *testing.T) {
	guests := &fakeGuests{}
	f := newIdleFixture(guests)
	f.api.channels["s1"] = []api.Channel{{ID: "c1", ServerName: "s1"}}
	f.api.messages["c1"] = []api.Message{{ID: "m0", ChannelID: "c1"}}

	ctx := context.Background()
	if err := f.rec.OpenServer(ctx, "s1"); err != nil {
		t.Fatalf("OpenServer: %v", err)
	}
	if err := f.rec.OpenChannel(ctx, "c1"); err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}

	lv, err := guests.LastVisited(ctx)
	if err != nil {
		t.Fatalf("LastVisited: %v", err)
	}
	if lv == nil || lv.Kind != store.PointerServer || lv.ServerName != "s1" || lv.ChannelID != "c1" {
		t.Fatalf("persisted pointer = %+v, want server s1 channel c1", lv)
	}

	// Opening a server as a guest also records it in the joined list.
	list := guests.list()
	if len(list) != 1 || list[0] != "s1" {
		t.Fatalf("guest list = %v, want [s1]", list)
	}
}
