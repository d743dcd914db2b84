package strategy

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"hftbot/internal/cfg"
	"hftbot/internal/common"
	"hftbot/internal/ports"
)

// MarketMaker quotes a ladder of limit orders on both sides of the mid and
// refreshes it when the configured interval elapses or the mid drifts more
// than half the spread since the last quote.
type MarketMaker struct {
	spread     float64
	orderSize  float64
	orderCount int
	refresh    time.Duration

	lastQuoted time.Time
	lastMid    float64
}

func NewMarketMaker(c cfg.Config) *MarketMaker {
	return &MarketMaker{
		spread:     c.MMSpread,
		orderSize:  c.MMOrderSize,
		orderCount: c.MMOrderCount,
		refresh:    c.RefreshRate(),
	}
}

func (m *MarketMaker) Name() string { return common.StrategyMarketMaking }

func (m *MarketMaker) Signals(_ context.Context, snap ports.MarketSnapshot) ([]ports.Signal, error) {
	mid := snap.Mid()
	if mid <= 0 {
		return nil, nil
	}
	if !m.shouldRequote(snap.At, mid) {
		return nil, nil
	}
	m.lastQuoted = snap.At
	m.lastMid = mid

	half := m.spread / 2
	signals := make([]ports.Signal, 0, 2*m.orderCount)
	for i := 1; i <= m.orderCount; i++ {
		offset := half * float64(i)
		signals = append(signals,
			m.limit(snap, ports.Buy, mid*(1-offset)),
			m.limit(snap, ports.Sell, mid*(1+offset)),
		)
	}
	return signals, nil
}

func (m *MarketMaker) shouldRequote(at time.Time, mid float64) bool {
	if m.lastQuoted.IsZero() {
		return true
	}
	if at.Sub(m.lastQuoted) >= m.refresh {
		return true
	}
	return m.lastMid > 0 && math.Abs(mid-m.lastMid)/m.lastMid > m.spread/2
}

func (m *MarketMaker) limit(snap ports.MarketSnapshot, side ports.Side, price float64) ports.Signal {
	return ports.Signal{
		ID:       uuid.NewString(),
		Symbol:   snap.Symbol,
		Side:     side,
		Kind:     ports.Limit,
		Qty:      m.orderSize,
		Price:    price,
		Strategy: common.StrategyMarketMaking,
		At:       snap.At,
	}
}
