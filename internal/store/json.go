package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Rickardjd/Easy-IP/internal/registry"
)

// snapshotVersion tags the JSON envelope so a future format change can
// be migrated on load.
const snapshotVersion = 1

type jsonSnapshot struct {
	Version   int                                `json:"version"`
	UpdatedAt time.Time                          `json:"updated_at"`
	Devices   map[string]*registry.DeviceRecord `json:"devices"`
}

// JSONStore persists the registry as a single indented JSON file.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store writing to path. The parent directory
// is created on first save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the snapshot. A missing file is not an error: it returns
// an empty map so a first run starts clean.
func (s *JSONStore) Load() (map[string]*registry.DeviceRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]*registry.DeviceRecord), nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap jsonSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", s.path, err)
	}
	if snap.Devices == nil {
		snap.Devices = make(map[string]*registry.DeviceRecord)
	}
	return snap.Devices, nil
}

// Save writes the snapshot via a temp file and rename, so readers only
// ever observe a complete file.
func (s *JSONStore) Save(records map[string]*registry.DeviceRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	snap := jsonSnapshot{
		Version:   snapshotVersion,
		UpdatedAt: time.Now().UTC(),
		Devices:   records,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
