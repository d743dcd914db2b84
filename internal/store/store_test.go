package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hftbot/internal/ports"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "trading.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{"executions", "equity", "sessions"} {
		var name string
		err := s.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if count != 1 {
		t.Errorf("sessions = %d, want 1 new session row", count)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "deep", "nested", "trading.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestSaveExecution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ex := ports.Execution{
		OrderID:       "12345",
		ClientOrderID: "hft-abc",
		Signal: ports.Signal{
			Symbol:   "BTCUSDT",
			Side:     ports.Buy,
			Kind:     ports.Market,
			Qty:      0.01,
			Strategy: "momentum",
		},
		Status:    ports.Filled,
		AvgPrice:  25000.5,
		FilledQty: 0.01,
		At:        time.Now(),
	}
	if err := s.SaveExecution(ctx, ex); err != nil {
		t.Fatalf("SaveExecution() error = %v", err)
	}

	var symbol, side, status string
	var price float64
	err := s.db.QueryRow(
		`SELECT symbol, side, status, price FROM executions WHERE order_id = ?`, "12345").
		Scan(&symbol, &side, &status, &price)
	if err != nil {
		t.Fatalf("query execution: %v", err)
	}
	if symbol != "BTCUSDT" || side != "BUY" || status != "FILLED" {
		t.Errorf("row = (%s, %s, %s), want (BTCUSDT, BUY, FILLED)", symbol, side, status)
	}
	if price != 25000.5 {
		t.Errorf("price = %v, want avg fill price 25000.5", price)
	}
}

func TestSaveExecutionFallsBackToSignalPrice(t *testing.T) {
	s := openTestStore(t)

	ex := ports.Execution{
		OrderID: "1",
		Signal:  ports.Signal{Symbol: "BTCUSDT", Side: ports.Sell, Kind: ports.Limit, Qty: 0.1, Price: 26000},
		Status:  ports.Accepted,
		At:      time.Now(),
	}
	if err := s.SaveExecution(context.Background(), ex); err != nil {
		t.Fatalf("SaveExecution() error = %v", err)
	}

	var price float64
	if err := s.db.QueryRow(`SELECT price FROM executions WHERE order_id = '1'`).Scan(&price); err != nil {
		t.Fatalf("query: %v", err)
	}
	if price != 26000 {
		t.Errorf("price = %v, want limit price 26000 when unfilled", price)
	}
}

func TestSaveEquity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	at := time.Now().UnixMilli()
	if err := s.SaveEquity(ctx, at, 10000, 0); err != nil {
		t.Fatalf("SaveEquity() error = %v", err)
	}
	if err := s.SaveEquity(ctx, at, 10050, 50); err != nil {
		t.Fatalf("SaveEquity() same ts error = %v", err)
	}

	var equity, pnl float64
	if err := s.db.QueryRow(`SELECT equity, daily_pnl FROM equity WHERE ts = ?`, at).Scan(&equity, &pnl); err != nil {
		t.Fatalf("query equity: %v", err)
	}
	if equity != 10050 || pnl != 50 {
		t.Errorf("point = (%v, %v), want later write to win (10050, 50)", equity, pnl)
	}
}

func TestFlushFinalizesSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ex := ports.Execution{
			OrderID: "ord",
			Signal:  ports.Signal{Symbol: "BTCUSDT", Side: ports.Buy, Kind: ports.Market, Qty: 1},
			Status:  ports.Accepted,
			At:      time.Now(),
		}
		if err := s.SaveExecution(ctx, ex); err != nil {
			t.Fatalf("SaveExecution() error = %v", err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var endedAt sql.NullInt64
	var executions int
	err := s.db.QueryRow(
		`SELECT ended_at, executions FROM sessions WHERE id = ?`, s.sessionID).
		Scan(&endedAt, &executions)
	if err != nil {
		t.Fatalf("query session: %v", err)
	}
	if !endedAt.Valid {
		t.Error("ended_at not set after Flush")
	}
	if executions != 3 {
		t.Errorf("executions = %d, want 3", executions)
	}

	if err := s.Flush(ctx); err != nil {
		t.Errorf("second Flush() error = %v, want no-op", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
