// Package risk screens trading signals against the configured limits
// before they reach the exchange. A rejection is final for that signal
// but never ends the session.
package risk

import (
	"fmt"
	"sync"
	"time"

	"hftbot/internal/cfg"
	"hftbot/internal/ports"
)

const (
	ReasonNonPositiveQty  = "non-positive quantity"
	ReasonDailyLossLimit  = "daily loss limit reached"
	ReasonOpenOrderLimit  = "open order limit reached"
	ReasonDailyTradeLimit = "daily trade limit reached"
)

type Gate struct {
	maxPositionSize float64
	maxRiskPerTrade float64
	maxDailyLoss    float64
	maxOpenOrders   int
	maxTradesPerDay int

	mu          sync.Mutex
	openOrders  int
	tradesToday int
	equity      float64
	dailyPnL    float64
	day         string
}

func New(c cfg.Config) *Gate {
	return &Gate{
		maxPositionSize: c.MaxPositionSize,
		maxRiskPerTrade: c.MaxRiskPerTrade,
		maxDailyLoss:    c.MaxDailyLoss,
		maxOpenOrders:   c.MaxOpenOrders,
		maxTradesPerDay: c.MaxTradesPerDay,
		day:             dayKey(time.Now()),
	}
}

// Evaluate screens one signal. Checks run in a fixed order and the first
// failing one names the rejection; an approved decision has an empty
// reason.
func (g *Gate) Evaluate(sig ports.Signal) ports.RiskDecision {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover(time.Now())

	if sig.Qty <= 0 {
		return reject(ReasonNonPositiveQty)
	}
	if sig.Qty > g.maxPositionSize {
		return reject(fmt.Sprintf("quantity %.8f exceeds max position size %.8f",
			sig.Qty, g.maxPositionSize))
	}
	if sig.Price > 0 && g.equity > 0 {
		notional := sig.Qty * sig.Price
		budget := g.equity * g.maxRiskPerTrade
		if notional > budget {
			return reject(fmt.Sprintf("notional %.2f exceeds per-trade risk budget %.2f",
				notional, budget))
		}
	}
	if dayStart := g.equity - g.dailyPnL; dayStart > 0 && -g.dailyPnL >= dayStart*g.maxDailyLoss {
		return reject(ReasonDailyLossLimit)
	}
	if g.openOrders >= g.maxOpenOrders {
		return reject(ReasonOpenOrderLimit)
	}
	if g.tradesToday >= g.maxTradesPerDay {
		return reject(ReasonDailyTradeLimit)
	}
	return ports.RiskDecision{Approved: true}
}

// RecordExecution feeds a successful submission back into the gate's
// counters. Accepted orders rest on the book and count as open; filled
// market orders do not.
func (g *Gate) RecordExecution(ex ports.Execution) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollover(ex.At)

	g.tradesToday++
	if ex.Status == ports.Accepted {
		g.openOrders++
	}
}

// Observe refreshes the gate's view of equity and daily PnL from the
// recorder.
func (g *Gate) Observe(h ports.Health) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.equity = h.Equity
	g.dailyPnL = h.DailyPnL
}

// rollover resets the per-day counters when the UTC date changes. Open
// orders survive the boundary; the book does not clear at midnight.
func (g *Gate) rollover(now time.Time) {
	if d := dayKey(now); d != g.day {
		g.day = d
		g.tradesToday = 0
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func reject(reason string) ports.RiskDecision {
	return ports.RiskDecision{Approved: false, Reason: reason}
}
