// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/jellygate/internal/models"
)

// FileSink stores a log as a JSON array in a single file.
//
// Appends are serialized within the process only. Another process writing
// the same file can lose updates.
type FileSink struct {
	mu   sync.Mutex
	path string
	max  int
}

// NewFileSink creates a sink at path keeping at most max entries. The file
// and its directory are created on first append.
func NewFileSink(path string, maxEntries int) *FileSink {
	return &FileSink{path: path, max: maxEntries}
}

// Path returns the backing file.
func (s *FileSink) Path() string { return s.path }

// Append implements Sink.
func (s *FileSink) Append(_ context.Context, entry models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLocked()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if s.max > 0 && len(entries) > s.max {
		entries = entries[len(entries)-s.max:]
	}
	return s.writeLocked(entries)
}

// Recent implements Sink.
func (s *FileSink) Recent(_ context.Context, n int) ([]models.LogEntry, error) {
	s.mu.Lock()
	entries, err := s.readLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return newestFirst(entries, n), nil
}

func (s *FileSink) readLocked() ([]models.LogEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.LogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return []models.LogEntry{}, nil
	}

	var entries []models.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return entries, nil
}

// writeLocked replaces the file through a rename so readers never observe a
// half-written array.
func (s *FileSink) writeLocked(entries []models.LogEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
