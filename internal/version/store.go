// Package version persists the fingerprint of the last published agent
// configuration across process lifetimes. The record has a single owner
// (the publisher) and a write-once-per-process lifecycle, so the store
// needs no locking.
package version

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentrelay/agentrelay/pkg/models"
)

// ErrNoRecord is returned by Load when no record has ever been saved.
// Callers treat it as "publish unconditionally".
var ErrNoRecord = errors.New("no version record")

// Store is the persistence interface for the publish record.
type Store interface {
	// Load returns the last saved record, or ErrNoRecord on first run.
	Load() (*models.VersionRecord, error)

	// Save persists the record after a successful publish.
	Save(rec models.VersionRecord) error
}

const recordFile = "agent_version.json"

// FileStore keeps the record as a small JSON file in the relay's data dir.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store rooted at dataDir.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{path: filepath.Join(dataDir, recordFile)}
}

func (s *FileStore) Load() (*models.VersionRecord, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("read version record: %w", err)
	}

	var rec models.VersionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt record is indistinguishable from drift; treat as absent
		// so startup republishes rather than failing.
		return nil, ErrNoRecord
	}
	if rec.Fingerprint == "" {
		return nil, ErrNoRecord
	}
	return &rec, nil
}

func (s *FileStore) Save(rec models.VersionRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write version record: %w", err)
	}
	return nil
}
