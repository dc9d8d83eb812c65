package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// FileArchive keeps run records in a JSON file.
type FileArchive struct {
	filePath string
	ttlHours int
	runs     []RunRecord
	mu       sync.RWMutex
}

// NewFileArchive creates an archive at filePath. Records older than
// ttlHours are dropped on Load and Cleanup; ttlHours <= 0 keeps everything.
func NewFileArchive(filePath string, ttlHours int) *FileArchive {
	return &FileArchive{filePath: filePath, ttlHours: ttlHours}
}

// Load reads existing records. A missing or empty file is an empty archive.
func (fa *FileArchive) Load() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	data, err := os.ReadFile(fa.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read archive file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var runs []RunRecord
	if err := json.Unmarshal(data, &runs); err != nil {
		return fmt.Errorf("failed to unmarshal archive: %w", err)
	}
	fa.runs = fa.fresh(runs)
	return nil
}

// Save appends rec and rewrites the file.
func (fa *FileArchive) Save(_ context.Context, rec RunRecord) error {
	fa.mu.Lock()
	rec.ID = 1
	if n := len(fa.runs); n > 0 {
		rec.ID = fa.runs[n-1].ID + 1
	}
	fa.runs = append(fa.runs, rec)
	fa.mu.Unlock()

	return fa.write()
}

// Cleanup drops expired records and rewrites the file.
func (fa *FileArchive) Cleanup(_ context.Context) error {
	fa.mu.Lock()
	fa.runs = fa.fresh(fa.runs)
	fa.mu.Unlock()

	return fa.write()
}

// Runs returns a copy of the stored records, oldest first.
func (fa *FileArchive) Runs() []RunRecord {
	fa.mu.RLock()
	defer fa.mu.RUnlock()

	out := make([]RunRecord, len(fa.runs))
	copy(out, fa.runs)
	return out
}

func (fa *FileArchive) Close() error { return nil }

func (fa *FileArchive) write() error {
	fa.mu.RLock()
	data, err := json.MarshalIndent(fa.runs, "", "  ")
	fa.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal archive: %w", err)
	}

	tmp := fa.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := os.Rename(tmp, fa.filePath); err != nil {
		return fmt.Errorf("failed to replace archive file: %w", err)
	}
	return nil
}

func (fa *FileArchive) fresh(runs []RunRecord) []RunRecord {
	if fa.ttlHours <= 0 {
		return runs
	}
	cutoff := time.Now().Add(-time.Duration(fa.ttlHours) * time.Hour)
	kept := runs[:0]
	for _, r := range runs {
		if r.StartedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}
