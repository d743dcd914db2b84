package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hftbot/internal/cfg"
	"hftbot/internal/common"
	"hftbot/internal/features"
	"hftbot/internal/ports"
)

// Momentum buckets snapshots into bars of the configured timeframe and
// trades EMA crossovers filtered by RSI. Decisions fire on bar close only;
// intra-bar snapshots just move the pending close. The engine holds at most
// one long position and never shorts.
type Momentum struct {
	timeframe  time.Duration
	overbought float64
	oversold   float64
	qty        float64

	rsi     *features.RSI
	emaFast *features.EMA
	emaSlow *features.EMA
	closes  *features.Window

	bucket    time.Time
	lastPrice float64
	long      bool
}

func NewMomentum(c cfg.Config) (*Momentum, error) {
	tf, err := common.ParseTimeframe(c.MomentumTimeframe)
	if err != nil {
		return nil, fmt.Errorf("momentum timeframe: %w", err)
	}
	return &Momentum{
		timeframe:  tf,
		overbought: float64(c.RSIOverbought),
		oversold:   float64(c.RSIOversold),
		qty:        c.MaxPositionSize,
		rsi:        features.NewRSI(c.RSIPeriod),
		emaFast:    features.NewEMA(c.EMAShort),
		emaSlow:    features.NewEMA(c.EMALong),
		closes:     features.NewWindow(c.LookbackPeriod),
	}, nil
}

func (m *Momentum) Name() string { return common.StrategyMomentum }

func (m *Momentum) Signals(_ context.Context, snap ports.MarketSnapshot) ([]ports.Signal, error) {
	price := snap.Last
	if price <= 0 {
		price = snap.Mid()
	}
	if price <= 0 {
		return nil, nil
	}

	bucket := snap.At.Truncate(m.timeframe)
	if m.bucket.IsZero() || bucket.Equal(m.bucket) {
		m.bucket = bucket
		m.lastPrice = price
		return nil, nil
	}

	sig := m.onBarClose(m.lastPrice, snap)
	m.bucket = bucket
	m.lastPrice = price
	if sig == nil {
		return nil, nil
	}
	return []ports.Signal{*sig}, nil
}

// onBarClose folds the finished bar into the indicators and checks for a
// crossover against the pre-update values.
func (m *Momentum) onBarClose(close float64, snap ports.MarketSnapshot) *ports.Signal {
	prevFast, prevSlow := m.emaFast.Value(), m.emaSlow.Value()
	prevReady := m.emaFast.Ready() && m.emaSlow.Ready()

	m.closes.Add(close)
	m.rsi.Update(close)
	fast := m.emaFast.Update(close)
	slow := m.emaSlow.Update(close)

	if !prevReady || !m.closes.Full() {
		return nil
	}

	rsi := m.rsi.Value()
	switch {
	case !m.long && prevFast <= prevSlow && fast > slow && rsi < m.overbought:
		m.long = true
		return m.market(ports.Buy, snap)
	case m.long && prevFast >= prevSlow && fast < slow && rsi > m.oversold:
		m.long = false
		return m.market(ports.Sell, snap)
	}
	return nil
}

func (m *Momentum) market(side ports.Side, snap ports.MarketSnapshot) *ports.Signal {
	return &ports.Signal{
		ID:       uuid.NewString(),
		Symbol:   snap.Symbol,
		Side:     side,
		Kind:     ports.Market,
		Qty:      m.qty,
		Strategy: common.StrategyMomentum,
		At:       snap.At,
	}
}
