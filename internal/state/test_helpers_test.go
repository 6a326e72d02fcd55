package state

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/log"
	"github.com/vovakirdan/wirechat-client/internal/session"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// fakeAPI serves canned lists and records which reloads were requested.
type fakeAPI struct {
	mu         sync.Mutex
	servers    []api.Server
	channels   map[string][]api.Channel
	members    map[string][]api.Member
	dms        []api.DirectMessage
	messages   map[string][]api.Message
	dmMessages map[string][]api.Message
	err        error
	calls      []string

	blockChannels chan struct{} // when set, ListChannels waits on it
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) ListServers(context.Context) ([]api.Server, error) {
	f.record("servers")
	if f.err != nil {
		return nil, f.err
	}
	return f.servers, nil
}

func (f *fakeAPI) ListChannels(_ context.Context, serverName string) ([]api.Channel, error) {
	f.record("channels:" + serverName)
	if f.blockChannels != nil {
		<-f.blockChannels
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.channels[serverName], nil
}

func (f *fakeAPI) ListMembers(_ context.Context, serverName string) ([]api.Member, error) {
	f.record("members:" + serverName)
	if f.err != nil {
		return nil, f.err
	}
	return f.members[serverName], nil
}

func (f *fakeAPI) ListDMs(context.Context) ([]api.DirectMessage, error) {
	f.record("dms")
	if f.err != nil {
		return nil, f.err
	}
	return f.dms, nil
}

func (f *fakeAPI) ListMessages(_ context.Context, channelID string) ([]api.Message, error) {
	f.record("messages:" + channelID)
	if f.err != nil {
		return nil, f.err
	}
	return f.messages[channelID], nil
}

func (f *fakeAPI) ListDMMessages(_ context.Context, dmID string) ([]api.Message, error) {
	f.record("dm_messages:" + dmID)
	if f.err != nil {
		return nil, f.err
	}
	return f.dmMessages[dmID], nil
}

// fakeGuests is an in-memory store.GuestStore.
type fakeGuests struct {
	mu      sync.Mutex
	servers []string
	pointer *store.LastVisited
}

func (g *fakeGuests) ListGuestServers(context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.servers))
	copy(out, g.servers)
	return out, nil
}

func (g *fakeGuests) AddGuestServer(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.servers {
		if s == name {
			return nil
		}
	}
	g.servers = append(g.servers, name)
	return nil
}

func (g *fakeGuests) RemoveGuestServer(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, s := range g.servers {
		if s == name {
			g.servers = append(g.servers[:i], g.servers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (g *fakeGuests) ReplaceGuestServers(_ context.Context, names []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.servers = append([]string(nil), names...)
	return nil
}

func (g *fakeGuests) LastVisited(context.Context) (*store.LastVisited, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pointer == nil {
		return nil, nil
	}
	lv := *g.pointer
	return &lv, nil
}

func (g *fakeGuests) SetLastVisited(_ context.Context, lv store.LastVisited) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pointer = &lv
	return nil
}

func (g *fakeGuests) ClearLastVisited(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pointer = nil
	return nil
}

func (g *fakeGuests) Close() error { return nil }

func (g *fakeGuests) list() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.servers))
	copy(out, g.servers)
	return out
}

// recordingNotifier counts side-effect callbacks.
type recordingNotifier struct {
	mu             sync.Mutex
	serverRemoved  []string
	roleChanged    []string
	sessionRevoked int
}

func (n *recordingNotifier) ServerRemoved(serverName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.serverRemoved = append(n.serverRemoved, serverName)
}

func (n *recordingNotifier) RoleChanged(serverName, newRole string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roleChanged = append(n.roleChanged, serverName+":"+newRole)
}

func (n *recordingNotifier) SessionRevoked(string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sessionRevoked++
}

func (n *recordingNotifier) revokedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sessionRevoked
}

type fixture struct {
	rec    *Reconciler
	sess   *session.Session
	api    *fakeAPI
	guests *fakeGuests
	notify *recordingNotifier
	frames chan []byte
}

// newFixture builds a reconciler with a running loop. Configure the session
// and fakes via setup before any frame is processed.
func newFixture(t *testing.T, guests *fakeGuests, setup func(*fixture)) *fixture {
	t.Helper()

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
		frames: make(chan []byte, 16),
	}
	f.sess.Username = "alice"

	logger := log.NewWithWriter("error", io.Discard)
	var gs store.GuestStore
	if guests != nil {
		gs = guests
	}
	f.rec = NewReconciler(f.api, gs, f.sess, f.notify, logger)

	if setup != nil {
		setup(f)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.rec.Run(ctx, f.frames)
	return f
}

func (f *fixture) send(t *testing.T, frame string) {
	t.Helper()
	select {
	case f.frames <- []byte(frame):
	case <-time.After(time.Second):
		t.Fatal("frame channel blocked")
	}
}

// waitSnap polls snapshots until cond holds, failing the test on timeout.
func waitSnap(t *testing.T, r *Reconciler, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		snap, err := r.Snapshot(ctx)
		cancel()
		if err == nil && cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("snapshot condition not met before deadline")
	return Snapshot{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
