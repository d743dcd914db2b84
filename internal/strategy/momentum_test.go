package strategy

import (
	"context"
	"testing"
	"time"

	"hftbot/internal/cfg"
	"hftbot/internal/ports"
)

func momentumConfig() cfg.Config {
	c := cfg.Defaults()
	c.MomentumTimeframe = "1m"
	c.LookbackPeriod = 3
	c.RSIPeriod = 3
	c.RSIOverbought = 80
	c.RSIOversold = 20
	c.EMAShort = 2
	c.EMALong = 4
	c.MaxPositionSize = 0.25
	return c
}

// feedBars replays one snapshot per bar, each one minute apart, so every
// snapshot closes the previous bar.
func feedBars(t *testing.T, m *Momentum, prices []float64) []ports.Signal {
	t.Helper()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var out []ports.Signal
	for i, p := range prices {
		snap := ports.MarketSnapshot{
			Symbol: "BTCUSDT",
			Last:   p,
			At:     start.Add(time.Duration(i) * time.Minute),
		}
		signals, err := m.Signals(context.Background(), snap)
		if err != nil {
			t.Fatalf("Signals() error = %v", err)
		}
		out = append(out, signals...)
	}
	return out
}

func TestMomentumBuySellCycle(t *testing.T) {
	m, err := NewMomentum(momentumConfig())
	if err != nil {
		t.Fatalf("NewMomentum() error = %v", err)
	}

	// A decline, a recovery that lifts the fast EMA through the slow one,
	// then a drop that crosses it back down. The trailing repeat closes the
	// final bar.
	prices := []float64{100, 99, 98, 97, 96, 97.5, 97, 99, 98.5, 101, 100.5, 103, 100, 98, 98}
	signals := feedBars(t, m, prices)

	if len(signals) != 2 {
		t.Fatalf("got %d signals %v, want a buy and a sell", len(signals), signals)
	}
	buy, sell := signals[0], signals[1]
	if buy.Side != ports.Buy || sell.Side != ports.Sell {
		t.Fatalf("sides = (%s, %s), want (BUY, SELL)", buy.Side, sell.Side)
	}
	for _, sig := range signals {
		if sig.Kind != ports.Market {
			t.Errorf("Kind = %s, want MARKET", sig.Kind)
		}
		if sig.Qty != 0.25 {
			t.Errorf("Qty = %v, want 0.25", sig.Qty)
		}
		if sig.Symbol != "BTCUSDT" {
			t.Errorf("Symbol = %q, want BTCUSDT", sig.Symbol)
		}
	}
	if !sell.At.After(buy.At) {
		t.Error("sell precedes buy")
	}
}

func TestMomentumNoRepeatedEntries(t *testing.T) {
	m, _ := NewMomentum(momentumConfig())

	// Same path as the cycle test but the rally keeps going; the position
	// stays open and only the single entry fires.
	prices := []float64{100, 99, 98, 97, 96, 97.5, 97, 99, 98.5, 101, 100.5, 103, 104, 105, 106}
	signals := feedBars(t, m, prices)

	if len(signals) != 1 {
		t.Fatalf("got %d signals %v, want exactly one entry", len(signals), signals)
	}
	if signals[0].Side != ports.Buy {
		t.Errorf("Side = %s, want BUY", signals[0].Side)
	}
}

func TestMomentumWarmup(t *testing.T) {
	m, _ := NewMomentum(momentumConfig())

	signals := feedBars(t, m, []float64{100, 101, 102, 103})
	if len(signals) != 0 {
		t.Errorf("signals = %v, want none before the lookback window fills", signals)
	}
}

func TestMomentumIntraBarSilence(t *testing.T) {
	m, _ := NewMomentum(momentumConfig())
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		snap := ports.MarketSnapshot{
			Symbol: "BTCUSDT",
			Last:   100 + float64(i),
			At:     start.Add(time.Duration(i) * time.Second),
		}
		signals, err := m.Signals(context.Background(), snap)
		if err != nil {
			t.Fatalf("Signals() error = %v", err)
		}
		if len(signals) != 0 {
			t.Fatalf("signals inside one bar = %v, want none", signals)
		}
	}
}
