package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hftbot/internal/capture"
	"hftbot/internal/cfg"
	"hftbot/internal/ports"
)

func replayScenario(t *testing.T, dataPath, strat string) Scenario {
	t.Helper()
	sc := Scenario{
		DataPath:      dataPath,
		Symbol:        "BTCUSDT",
		Strategy:      strat,
		InitialEquity: 10000,
		FeeBps:        10,
	}
	require.NoError(t, sc.normalize())
	return sc
}

func recordedStore(t *testing.T, dir string, snaps []ports.MarketSnapshot) *capture.Store {
	t.Helper()
	store, err := capture.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	for _, snap := range snaps {
		require.NoError(t, store.Record(snap))
	}
	return store
}

// triangle builds a BTCUSDT snapshot whose quote map carries all three
// arbitrage legs. The implied ETHBTC rate is 1750/25000 = 0.07.
func triangle(at time.Time, crossBid, crossAsk float64) ports.MarketSnapshot {
	return ports.MarketSnapshot{
		Symbol: "BTCUSDT",
		Bid:    24999,
		Ask:    25001,
		At:     at,
		Quotes: map[string]ports.Quote{
			"BTCUSDT": {Bid: 24999, Ask: 25001, At: at},
			"ETHUSDT": {Bid: 1749, Ask: 1751, At: at},
			"ETHBTC":  {Bid: crossBid, Ask: crossAsk, At: at},
		},
	}
}

func book(at time.Time, bid, ask float64) ports.MarketSnapshot {
	return ports.MarketSnapshot{Symbol: "BTCUSDT", Bid: bid, Ask: ask, At: at}
}

func TestReplayArbitrageRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	// Sell triggers above 0.07 * 1.006, buy below 0.07 * 0.994.
	store := recordedStore(t, t.TempDir(), []ports.MarketSnapshot{
		triangle(at, 0.06999, 0.07001),
		triangle(at.Add(time.Minute), 0.0705, 0.0706),
		triangle(at.Add(2*time.Minute), 0.06999, 0.07001),
		triangle(at.Add(3*time.Minute), 0.0693, 0.0695),
	})

	sc := replayScenario(t, t.TempDir(), "arbitrage")
	engine, err := NewEngine(sc, cfg.Defaults())
	require.NoError(t, err)

	results, err := engine.Run(store)
	require.NoError(t, err)

	assert.Equal(t, 4, results.Snapshots)
	assert.Equal(t, 2, results.Signals)
	assert.Equal(t, 2, results.Approved)
	assert.Equal(t, 2, results.Filled)
	assert.Equal(t, 0, results.Unfilled)

	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, "ETHBTC", trade.Symbol)
	assert.Equal(t, ports.Buy, trade.Side, "the buy-back closes the short")
	assert.InDelta(t, 0.0705, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 0.0695, trade.ExitPrice, 1e-9)
	assert.Greater(t, trade.PnL, 0.0)

	assert.InDelta(t, 1.0, results.WinRate, 1e-9)
	assert.Greater(t, results.FinalEquity, results.InitialEquity)
}

func TestReplayRiskLimitsApply(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	// Two rich-cross snapshots; with one trade per day allowed, the second
	// signal must be rejected.
	store := recordedStore(t, t.TempDir(), []ports.MarketSnapshot{
		triangle(at, 0.0705, 0.0706),
		triangle(at.Add(time.Minute), 0.0705, 0.0706),
	})

	c := cfg.Defaults()
	c.MaxTradesPerDay = 1

	sc := replayScenario(t, t.TempDir(), "arbitrage")
	engine, err := NewEngine(sc, c)
	require.NoError(t, err)

	results, err := engine.Run(store)
	require.NoError(t, err)

	assert.Equal(t, 2, results.Signals)
	assert.Equal(t, 1, results.Filled)
	assert.Equal(t, 1, results.Rejected)
}

func TestReplayPassiveQuotesStayUnfilled(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := recordedStore(t, t.TempDir(), []ports.MarketSnapshot{
		book(at, 99.5, 100.5),
	})

	sc := replayScenario(t, t.TempDir(), "market_making")
	engine, err := NewEngine(sc, cfg.Defaults())
	require.NoError(t, err)

	results, err := engine.Run(store)
	require.NoError(t, err)

	assert.Equal(t, 6, results.Signals, "three price levels per side")
	assert.Equal(t, 6, results.Approved)
	assert.Equal(t, 6, results.Unfilled, "resting quotes never cross the captured book")
	assert.Equal(t, 0, results.Filled)
	assert.Empty(t, results.Trades)
	assert.InDelta(t, results.InitialEquity, results.FinalEquity, 1e-9)
}

func TestReplayEmptyCapture(t *testing.T) {
	store := recordedStore(t, t.TempDir(), nil)

	sc := replayScenario(t, t.TempDir(), "momentum")
	engine, err := NewEngine(sc, cfg.Defaults())
	require.NoError(t, err)

	results, err := engine.Run(store)
	require.NoError(t, err)

	assert.Equal(t, 0, results.Snapshots)
	assert.Empty(t, results.Trades)
	assert.InDelta(t, results.InitialEquity, results.FinalEquity, 1e-9)
}

func TestNewEngineUnknownStrategy(t *testing.T) {
	sc := replayScenario(t, t.TempDir(), "hodl")
	_, err := NewEngine(sc, cfg.Defaults())
	assert.Error(t, err)
}
