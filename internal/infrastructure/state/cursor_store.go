package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"StarWatch/internal/domain"
	"StarWatch/internal/ports"
)

// FileCursorStore persists the poll cursor as a small JSON file. An absent
// file means cold start.
type FileCursorStore struct {
	path string
}

var _ ports.CursorStore = (*FileCursorStore)(nil)

// NewFileCursorStore records the target path; nothing is touched until Save.
func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

type cursorFile struct {
	ETag     string `json:"etag"`
	LastSeen string `json:"last_seen_starred_at"`
}

// Load reads the persisted cursor, returning a zero cursor when the file
// does not exist yet.
func (s *FileCursorStore) Load() (domain.Cursor, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Cursor{}, nil
		}
		return domain.Cursor{}, fmt.Errorf("read cursor %s: %w", s.path, err)
	}

	var onDisk cursorFile
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return domain.Cursor{}, fmt.Errorf("parse cursor %s: %w", s.path, err)
	}

	cursor := domain.Cursor{ETag: onDisk.ETag}
	if onDisk.LastSeen != "" {
		parsed, err := time.Parse(time.RFC3339, onDisk.LastSeen)
		if err != nil {
			return domain.Cursor{}, fmt.Errorf("parse cursor position %q: %w", onDisk.LastSeen, err)
		}
		cursor.LastSeen = parsed
	}

	return cursor, nil
}

// Save writes the cursor through a temp file and an atomic rename so a crash
// mid-write never corrupts the previous durable state.
func (s *FileCursorStore) Save(cursor domain.Cursor) error {
	onDisk := cursorFile{ETag: cursor.ETag}
	if !cursor.LastSeen.IsZero() {
		onDisk.LastSeen = cursor.LastSeen.UTC().Format(time.RFC3339)
	}

	raw, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmp := s.path + ".tmp"
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cursor: %w", err)
	}

	return nil
}
