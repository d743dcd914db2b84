// Package capture persists market snapshots for offline replay. It uses
// BoltDB as the underlying storage engine; each snapshot is stored under a
// symbol-prefixed, timestamp-ordered key so replays can range-scan one
// instrument chronologically.
package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"hftbot/internal/ports"
)

const snapshotsBucket = "snapshots"

// Store records and replays market snapshots.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the capture database under dataPath.
func Open(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, "market.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open capture database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(snapshotsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshots bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database. Safe on a nil receiver so optional capture
// wiring needs no guards.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one snapshot. Keys are "symbol_<nanos>" with the timestamp
// zero-padded so lexical bucket order equals chronological order.
func (s *Store) Record(snap ports.MarketSnapshot) error {
	if s == nil {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(snapshotsBucket))

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		return b.Put(key(snap.Symbol, snap.At), data)
	})
}

// Range replays the stored snapshots for symbol between start and end
// (inclusive) in chronological order. Malformed records are skipped. The
// callback may stop the scan early by returning an error, which Range
// passes through.
func (s *Store) Range(symbol string, start, end time.Time, fn func(ports.MarketSnapshot) error) error {
	if s == nil {
		return nil
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(snapshotsBucket)).Cursor()

		prefix := []byte(symbol + "_")
		startKey := key(symbol, start)
		endKey := key(symbol, end)

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var snap ports.MarketSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				continue
			}
			if err := fn(snap); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of snapshots stored for symbol.
func (s *Store) Count(symbol string) (int, error) {
	if s == nil {
		return 0, nil
	}
	n := 0
	err := s.Range(symbol, time.Unix(0, 0), time.Unix(0, 1<<62), func(ports.MarketSnapshot) error {
		n++
		return nil
	})
	return n, err
}

func key(symbol string, at time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%019d", symbol, at.UnixNano()))
}
