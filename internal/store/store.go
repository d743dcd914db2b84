// Package store persists trading session state in SQLite: every submitted
// execution, the equity curve, and a row per session. The file lives at the
// configured DB_PATH and survives restarts, so post-mortems can reconstruct
// what the bot did.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"hftbot/internal/ports"
)

type Store struct {
	db        *sql.DB
	sessionID int64

	mu         sync.Mutex
	executions int
	flushed    bool

	closeOnce sync.Once
	closeErr  error
}

// Open creates or opens the state database at dbPath, applies the schema and
// starts a new session row.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO sessions (started_at) VALUES (?)`, time.Now().UnixMilli())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}
	sessionID, err := res.LastInsertId()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("session id: %w", err)
	}

	return &Store{db: db, sessionID: sessionID}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS executions (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id      INTEGER NOT NULL,
  order_id        TEXT NOT NULL,
  client_order_id TEXT NOT NULL,
  symbol          TEXT NOT NULL,
  side            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  qty             REAL NOT NULL,
  price           REAL NOT NULL,
  status          TEXT NOT NULL,
  strategy        TEXT NOT NULL,
  ts              INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_ts ON executions (symbol, ts);`,
		`
CREATE TABLE IF NOT EXISTS equity (
  ts        INTEGER PRIMARY KEY,
  equity    REAL NOT NULL,
  daily_pnl REAL NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS sessions (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  started_at INTEGER NOT NULL,
  ended_at   INTEGER,
  executions INTEGER NOT NULL DEFAULT 0
);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveExecution appends one submitted order to the executions table.
func (s *Store) SaveExecution(ctx context.Context, ex ports.Execution) error {
	price := ex.AvgPrice
	if price == 0 {
		price = ex.Signal.Price
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO executions
  (session_id, order_id, client_order_id, symbol, side, kind, qty, price, status, strategy, ts)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.sessionID, ex.OrderID, ex.ClientOrderID, ex.Signal.Symbol,
		string(ex.Signal.Side), string(ex.Signal.Kind), ex.Signal.Qty,
		price, string(ex.Status), ex.Signal.Strategy, ex.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}

	s.mu.Lock()
	s.executions++
	s.mu.Unlock()
	return nil
}

// SaveEquity records one point of the equity curve. Points share a
// millisecond key; a second write in the same millisecond replaces the
// first.
func (s *Store) SaveEquity(ctx context.Context, at int64, equity, dailyPnL float64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO equity (ts, equity, daily_pnl) VALUES (?, ?, ?)`,
		at, equity, dailyPnL)
	if err != nil {
		return fmt.Errorf("save equity: %w", err)
	}
	return nil
}

// Flush finalizes the session row and checkpoints the WAL. The supervisor
// calls it exactly once while draining; extra calls are no-ops.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.flushed {
		s.mu.Unlock()
		return nil
	}
	s.flushed = true
	executions := s.executions
	s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
UPDATE sessions SET ended_at = ?, executions = ? WHERE id = ?`,
		time.Now().UnixMilli(), executions, s.sessionID)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Close closes the database. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
