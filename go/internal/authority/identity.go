package authority

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// IdentityStore persists the client's display name between runs. The name is
// advisory only; nothing verifies it.
type IdentityStore struct {
	mu   sync.Mutex
	path string
}

type identityFile struct {
	DisplayName string `json:"display_name"`
}

// NewIdentityStore creates a file-backed identity store at path.
func NewIdentityStore(path string) *IdentityStore {
	return &IdentityStore{path: path}
}

// DisplayName returns the stored display name, or "" when none is set.
func (s *IdentityStore) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	var f identityFile
	if err := json.Unmarshal(data, &f); err != nil {
		return ""
	}
	return f.DisplayName
}

// SetDisplayName stores the display name.
func (s *IdentityStore) SetDisplayName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(identityFile{DisplayName: name})
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	return nil
}
