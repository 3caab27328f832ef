// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package eventlog

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"github.com/tomtom215/jellygate/internal/models"
)

// OpenBolt opens (or creates) the bbolt file shared by both logs.
func OpenBolt(path string) (*bbolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create eventlog dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open eventlog db: %w", err)
	}
	return db, nil
}

// BoltSink stores entries in one bucket keyed by a big-endian sequence, so
// cursor order is insertion order.
type BoltSink struct {
	db     *bbolt.DB
	bucket []byte
	max    int
}

// NewBoltSink creates the bucket if needed.
func NewBoltSink(db *bbolt.DB, bucket string, maxEntries int) (*BoltSink, error) {
	s := &BoltSink{db: db, bucket: []byte(bucket), max: maxEntries}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return s, nil
}

// Append implements Sink. Entries older than the newest max are deleted in
// the same transaction.
func (s *BoltSink) Append(_ context.Context, entry models.LogEntry) error {
	buf, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(itob(seq), buf); err != nil {
			return err
		}
		if s.max <= 0 || seq <= uint64(s.max) {
			return nil
		}

		cutoff := seq - uint64(s.max)
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && btoi(k) <= cutoff; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent implements Sink.
func (s *BoltSink) Recent(_ context.Context, n int) ([]models.LogEntry, error) {
	var out []models.LogEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if n > 0 && len(out) >= n {
				break
			}
			var e models.LogEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode log entry %d: %w", btoi(k), err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.LogEntry{}
	}
	return out, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
