package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/authkit/session-auth/internal/domain"
)

// Mirror persists the last known user between runs. It is a cache of the server's
// answer and never decides authentication on its own.
type Mirror interface {
	Load() (*domain.PublicUser, error)
	Store(user *domain.PublicUser) error
}

// FileMirror keeps the user as JSON in a file.
type FileMirror struct {
	mu   sync.Mutex
	path string
}

// NewFileMirror returns a mirror backed by path.
func NewFileMirror(path string) *FileMirror {
	return &FileMirror{path: path}
}

// Load returns nil when nothing was stored.
func (m *FileMirror) Load() (*domain.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mirror: %w", err)
	}

	var user *domain.PublicUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode mirror: %w", err)
	}
	return user, nil
}

// Store writes user, or null when user is nil.
func (m *FileMirror) Store(user *domain.PublicUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode mirror: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	return os.Rename(tmp, m.path)
}
