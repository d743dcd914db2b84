package strategy

import (
	"context"
	"math"
	"testing"
	"time"

	"hftbot/internal/cfg"
	"hftbot/internal/ports"
)

func mmConfig() cfg.Config {
	c := cfg.Defaults()
	c.MMSpread = 0.002
	c.MMOrderSize = 0.001
	c.MMOrderCount = 2
	c.MMRefreshRate = 60
	return c
}

func bookSnapshot(bid, ask float64, at time.Time) ports.MarketSnapshot {
	return ports.MarketSnapshot{Symbol: "BTCUSDT", Bid: bid, Ask: ask, At: at}
}

func TestMarketMakerLadder(t *testing.T) {
	m := NewMarketMaker(mmConfig())
	now := time.Now()

	signals, err := m.Signals(context.Background(), bookSnapshot(99.9, 100.1, now))
	if err != nil {
		t.Fatalf("Signals() error = %v", err)
	}
	if len(signals) != 4 {
		t.Fatalf("len(signals) = %d, want 4 (2 levels per side)", len(signals))
	}

	wantPrices := []struct {
		side  ports.Side
		price float64
	}{
		{ports.Buy, 99.9},
		{ports.Sell, 100.1},
		{ports.Buy, 99.8},
		{ports.Sell, 100.2},
	}
	for i, want := range wantPrices {
		sig := signals[i]
		if sig.Side != want.side || sig.Kind != ports.Limit {
			t.Errorf("signals[%d] = %s, want %s LIMIT", i, sig, want.side)
		}
		if math.Abs(sig.Price-want.price) > 1e-9 {
			t.Errorf("signals[%d].Price = %v, want %v", i, sig.Price, want.price)
		}
		if sig.Qty != 0.001 {
			t.Errorf("signals[%d].Qty = %v, want 0.001", i, sig.Qty)
		}
		if sig.ID == "" {
			t.Errorf("signals[%d] has no ID", i)
		}
	}
}

func TestMarketMakerHoldsQuotesWithinRefresh(t *testing.T) {
	m := NewMarketMaker(mmConfig())
	now := time.Now()

	if _, err := m.Signals(context.Background(), bookSnapshot(99.9, 100.1, now)); err != nil {
		t.Fatalf("Signals() error = %v", err)
	}
	signals, err := m.Signals(context.Background(), bookSnapshot(99.9, 100.1, now.Add(time.Second)))
	if err != nil {
		t.Fatalf("Signals() error = %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("len(signals) = %d, want 0 while quotes are fresh", len(signals))
	}
}

func TestMarketMakerRequotesAfterRefresh(t *testing.T) {
	c := mmConfig()
	c.MMRefreshRate = 1
	m := NewMarketMaker(c)
	now := time.Now()

	m.Signals(context.Background(), bookSnapshot(99.9, 100.1, now))
	signals, _ := m.Signals(context.Background(), bookSnapshot(99.9, 100.1, now.Add(2*time.Second)))
	if len(signals) != 4 {
		t.Errorf("len(signals) = %d, want fresh ladder after refresh interval", len(signals))
	}
}

func TestMarketMakerRequotesOnDrift(t *testing.T) {
	m := NewMarketMaker(mmConfig())
	now := time.Now()

	m.Signals(context.Background(), bookSnapshot(99.9, 100.1, now))
	// Mid moved 100 -> 100.2, past the half-spread band.
	signals, _ := m.Signals(context.Background(), bookSnapshot(100.1, 100.3, now.Add(time.Second)))
	if len(signals) != 4 {
		t.Errorf("len(signals) = %d, want requote after mid drift", len(signals))
	}
}

func TestMarketMakerEmptyBook(t *testing.T) {
	m := NewMarketMaker(mmConfig())
	signals, err := m.Signals(context.Background(), bookSnapshot(0, 0, time.Now()))
	if err != nil {
		t.Fatalf("Signals() error = %v", err)
	}
	if signals != nil {
		t.Errorf("signals = %v, want none without a book", signals)
	}
}
