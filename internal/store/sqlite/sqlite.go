package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-client/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS guest_servers (
	position    INTEGER PRIMARY KEY AUTOINCREMENT,
	server_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS last_visited (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	kind        TEXT NOT NULL,
	server_name TEXT NOT NULL DEFAULT '',
	channel_id  TEXT NOT NULL DEFAULT '',
	dm_id       TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore implements store.GuestStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a guest store at dbPath, applying the schema if needed.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a guest store and runs a setup function.
// Useful for tests to apply an alternate schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListGuestServers returns the joined server names in join order.
func (s *SQLiteStore) ListGuestServers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT server_name FROM guest_servers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query guest servers: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan guest server: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guest servers: %w", err)
	}
	return names, nil
}

// AddGuestServer appends a server name; adding an existing name is a no-op.
func (s *SQLiteStore) AddGuestServer(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guest_servers (server_name) VALUES (?) ON CONFLICT (server_name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("insert guest server: %w", err)
	}
	return nil
}

// RemoveGuestServer removes a server name; a missing name is a no-op.
func (s *SQLiteStore) RemoveGuestServer(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM guest_servers WHERE server_name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete guest server: %w", err)
	}
	return nil
}

// ReplaceGuestServers overwrites the whole list, preserving the given order.
func (s *SQLiteStore) ReplaceGuestServers(ctx context.Context, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM guest_servers`); err != nil {
		return fmt.Errorf("clear guest servers: %w", err)
	}
	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO guest_servers (server_name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("insert guest server %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LastVisited returns the persisted pointer, or nil when none is set.
func (s *SQLiteStore) LastVisited(ctx context.Context) (*store.LastVisited, error) {
	var lv store.LastVisited
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, server_name, channel_id, dm_id FROM last_visited WHERE id = 1`).
		Scan(&lv.Kind, &lv.ServerName, &lv.ChannelID, &lv.DMID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last visited: %w", err)
	}
	return &lv, nil
}

// SetLastVisited overwrites the pointer.
func (s *SQLiteStore) SetLastVisited(ctx context.Context, lv store.LastVisited) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO last_visited (id, kind, server_name, channel_id, dm_id)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			server_name = excluded.server_name,
			channel_id = excluded.channel_id,
			dm_id = excluded.dm_id
	`, lv.Kind, lv.ServerName, lv.ChannelID, lv.DMID)
	if err != nil {
		return fmt.Errorf("upsert last visited: %w", err)
	}
	return nil
}

// ClearLastVisited removes the pointer.
func (s *SQLiteStore) ClearLastVisited(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM last_visited WHERE id = 1`); err != nil {
		return fmt.Errorf("delete last visited: %w", err)
	}
	return nil
}
