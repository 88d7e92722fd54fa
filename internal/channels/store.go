package channels

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zjrosen/towncrier/internal/log"
)

// Store persists the rig -> channel ID mapping.
// Load never fails: missing or unreadable state degrades to an empty
// mapping, since the file is an advisory cache of the in-memory state.
type Store interface {
	Load() map[string]ChannelID
	Save(mappings map[string]ChannelID) error
}

// FileStore keeps the mapping as a single JSON object on disk,
// rewritten in full on every mutation.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the whole mapping. A missing file starts empty; a corrupt
// file is logged and treated as empty, never fatal.
func (s *FileStore) Load() map[string]ChannelID {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn(log.CatStore, "Could not read rig mappings, starting empty", "path", s.path, "error", err)
		}
		return map[string]ChannelID{}
	}

	var mappings map[string]ChannelID
	if err := json.Unmarshal(data, &mappings); err != nil {
		log.Warn(log.CatStore, "Could not parse rig mappings, starting empty", "path", s.path, "error", err)
		return map[string]ChannelID{}
	}
	if mappings == nil {
		return map[string]ChannelID{}
	}
	return mappings
}

// Save rewrites the whole mapping atomically (write to temp, then rename)
// so a crash or cancellation never leaves a truncated file behind.
func (s *FileStore) Save(mappings map[string]ChannelID) error {
	data, err := json.MarshalIndent(mappings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rig mappings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating mappings directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".mappings.json.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
