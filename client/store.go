// Package client is the Go session manager for the shuttle tracker API. It
// keeps the access token and the user snapshot together, persists them
// atomically, and exposes the route-guard decision used by role-gated UIs.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shuttletrack/api/internal/model"
)

// ErrNoSession is returned by Load when nothing has been persisted.
var ErrNoSession = errors.New("client: no stored session")

// Snapshot is what gets persisted between runs: the raw token and the user
// record it was issued for. The two always travel together.
type Snapshot struct {
	Token string         `json:"token"`
	User  model.SafeUser `json:"user"`
}

// Store persists the session snapshot. Save must be atomic: a reader never
// observes a token without its user or a half-written file.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Clear() error
}

// FileStore keeps the snapshot in a single JSON file. Writes go to a temp
// file in the same directory followed by a rename, so the pair is replaced
// in one step.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

func (s *FileStore) Load() (Snapshot, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, ErrNoSession
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read session: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode session: %w", err)
	}
	if snap.Token == "" || snap.User.ID == 0 {
		return Snapshot{}, ErrNoSession
	}
	return snap, nil
}

func (s *FileStore) Save(snap Snapshot) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

// Clear removes the stored snapshot. Clearing an absent session is not an
// error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
