package auth

import (
	"fmt"
	"os"
	"strings"
)

// TokenSource yields the current credential token. The connection manager
// reads it once per connect attempt; an empty token means an unauthenticated
// (guest) connection.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed token, used by tests and one-off CLI flags.
type StaticToken string

// Token returns the fixed token value.
func (s StaticToken) Token() string { return string(s) }

// FileTokenStore reads the token persisted by the login flow. The file is
// owned by the credential-store collaborator; this side only consumes it.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore builds a store over the given token file path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Token reads the persisted token, or "" when none exists.
func (s *FileTokenStore) Token() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Clear removes the persisted token after a forced logout.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
