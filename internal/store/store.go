package store

import "context"

// PointerKind discriminates what the last-visited pointer refers to.
type PointerKind string

const (
	PointerServer PointerKind = "server"
	PointerDM     PointerKind = "dm"
)

// LastVisited is the locally persisted "where was I" pointer, restored on the
// next session start.
type LastVisited struct {
	Kind       PointerKind
	ServerName string
	ChannelID  string
	DMID       string
}

// GuestStore persists the state a guest session has instead of a
// server-side account: an ordered list of joined server names and the
// last-visited pointer. It exists only while no authenticated identity is
// present.
type GuestStore interface {
	// ListGuestServers returns the joined server names in join order.
	ListGuestServers(ctx context.Context) ([]string, error)

	// AddGuestServer appends a server name; adding an existing name is a no-op.
	AddGuestServer(ctx context.Context, name string) error

	// RemoveGuestServer removes a server name; a missing name is a no-op.
	RemoveGuestServer(ctx context.Context, name string) error

	// ReplaceGuestServers overwrites the whole list, preserving the given order.
	ReplaceGuestServers(ctx context.Context, names []string) error

	// LastVisited returns the persisted pointer, or nil when none is set.
	LastVisited(ctx context.Context) (*LastVisited, error)

	// SetLastVisited overwrites the pointer.
	SetLastVisited(ctx context.Context, lv LastVisited) error

	// ClearLastVisited removes the pointer.
	ClearLastVisited(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
