package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"hftbot/internal/capture"
	"hftbot/internal/cfg"
	"hftbot/internal/ports"
	"hftbot/internal/risk"
	"hftbot/internal/strategy"
)

// Trade is one realized position close.
type Trade struct {
	Symbol     string
	Side       ports.Side // closing side
	Qty        float64
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	At         time.Time
}

// Results aggregates one replay.
type Results struct {
	Symbol   string
	Strategy string
	From     time.Time
	To       time.Time

	Snapshots int
	Signals   int
	Approved  int
	Rejected  int
	Filled    int
	Unfilled  int

	Trades        []Trade
	WinningTrades int
	LosingTrades  int
	GrossProfit   float64
	GrossLoss     float64
	WinRate       float64
	ProfitFactor  float64
	MaxDrawdown   float64
	Fees          float64
	InitialEquity float64
	FinalEquity   float64
}

func (r *Results) observeWindow(at time.Time) {
	if r.From.IsZero() || at.Before(r.From) {
		r.From = at
	}
	if at.After(r.To) {
		r.To = at
	}
}

type position struct {
	qty  float64 // signed, negative is short
	cost float64 // average entry price
}

// Engine replays captured snapshots through a strategy engine and a fresh
// risk gate, filling approved signals against the recorded quotes.
type Engine struct {
	scenario Scenario
	engine   ports.StrategyEngine
	gate     ports.RiskGate
	feeRate  float64

	equity   float64
	realized float64
	fees     float64
	daily    float64
	day      string
	peak     float64
	maxDD    float64

	positions map[string]*position
	results   *Results
}

// NewEngine builds the replay pipeline for a scenario. The config carries
// the strategy parameters and risk limits the replay runs under; the
// scenario picks the symbol and the strategy.
func NewEngine(sc Scenario, c cfg.Config) (*Engine, error) {
	c.Symbol = sc.Symbol
	c.Strategy = sc.Strategy
	eng, err := strategy.New(c)
	if err != nil {
		return nil, fmt.Errorf("build strategy: %w", err)
	}
	e := &Engine{
		scenario:  sc,
		engine:    eng,
		gate:      risk.New(c),
		feeRate:   sc.FeeBps / 10000,
		equity:    sc.InitialEquity,
		peak:      sc.InitialEquity,
		positions: make(map[string]*position),
		results: &Results{
			Symbol:        sc.Symbol,
			Strategy:      eng.Name(),
			InitialEquity: sc.InitialEquity,
		},
	}
	e.gate.Observe(ports.Health{Equity: e.equity})
	return e, nil
}

// Run replays the captured snapshots chronologically and returns the final
// results.
func (e *Engine) Run(store *capture.Store) (*Results, error) {
	from, to := e.scenario.Window()
	log.Info().
		Str("symbol", e.scenario.Symbol).
		Str("strategy", e.engine.Name()).
		Time("from", from).
		Time("to", to).
		Msg("replay started")

	if err := store.Range(e.scenario.Symbol, from, to, e.step); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	e.finalize()
	return e.results, nil
}

func (e *Engine) step(snap ports.MarketSnapshot) error {
	e.results.Snapshots++
	if !snap.At.IsZero() {
		e.rollover(snap.At)
		e.results.observeWindow(snap.At)
	}

	signals, err := e.engine.Signals(context.Background(), snap)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	for _, sig := range signals {
		e.results.Signals++
		decision := e.gate.Evaluate(sig)
		if !decision.Approved {
			e.results.Rejected++
			log.Debug().Str("signal", sig.String()).Str("reason", decision.Reason).Msg("signal rejected")
			continue
		}
		e.results.Approved++

		price, ok := fillPrice(sig, snap)
		if !ok {
			e.results.Unfilled++
			continue
		}
		e.fill(sig, price, snap.At)
	}
	return nil
}

// fillPrice simulates execution against the captured book. Market orders
// take the far touch; limit orders fill only when their price crosses it.
func fillPrice(sig ports.Signal, snap ports.MarketSnapshot) (float64, bool) {
	q, ok := snap.Quotes[sig.Symbol]
	if !ok {
		if sig.Symbol != snap.Symbol {
			return 0, false
		}
		q = ports.Quote{Bid: snap.Bid, Ask: snap.Ask}
	}

	touch := q.Ask
	if sig.Side == ports.Sell {
		touch = q.Bid
	}
	if touch <= 0 {
		return 0, false
	}
	if sig.Kind == ports.Limit {
		if sig.Side == ports.Buy && sig.Price < touch {
			return 0, false
		}
		if sig.Side == ports.Sell && sig.Price > touch {
			return 0, false
		}
	}
	return touch, true
}

func (e *Engine) fill(sig ports.Signal, price float64, at time.Time) {
	e.fees += sig.Qty * price * e.feeRate

	pos := e.positions[sig.Symbol]
	if pos == nil {
		pos = &position{}
		e.positions[sig.Symbol] = pos
	}

	qty := sig.Qty
	if sig.Side == ports.Sell {
		qty = -qty
	}

	if pos.qty == 0 || sameSign(pos.qty, qty) {
		total := pos.qty + qty
		pos.cost = (pos.cost*math.Abs(pos.qty) + price*math.Abs(qty)) / math.Abs(total)
		pos.qty = total
	} else {
		old := pos.qty
		closeQty := math.Min(math.Abs(old), math.Abs(qty))
		diff := price - pos.cost
		if old < 0 {
			diff = -diff
		}
		realized := closeQty * diff
		e.realized += realized
		e.daily += realized
		e.results.Trades = append(e.results.Trades, Trade{
			Symbol:     sig.Symbol,
			Side:       sig.Side,
			Qty:        closeQty,
			EntryPrice: pos.cost,
			ExitPrice:  price,
			PnL:        realized,
			At:         at,
		})

		pos.qty = old + qty
		switch {
		case pos.qty == 0:
			pos.cost = 0
		case !sameSign(pos.qty, old):
			// flipped through zero, remainder opens at the fill price
			pos.cost = price
		}
	}

	e.equity = e.scenario.InitialEquity + e.realized - e.fees
	if e.equity > e.peak {
		e.peak = e.equity
	}
	if e.peak > 0 {
		if dd := (e.peak - e.equity) / e.peak; dd > e.maxDD {
			e.maxDD = dd
		}
	}

	e.results.Filled++
	e.gate.RecordExecution(ports.Execution{
		OrderID:   fmt.Sprintf("replay-%d", e.results.Filled),
		Signal:    sig,
		Status:    ports.Filled,
		AvgPrice:  price,
		FilledQty: sig.Qty,
		At:        at,
	})
	e.gate.Observe(ports.Health{Equity: e.equity, DailyPnL: e.daily})
}

func (e *Engine) rollover(at time.Time) {
	key := at.UTC().Format("2006-01-02")
	if e.day == "" {
		e.day = key
		return
	}
	if key != e.day {
		e.day = key
		e.daily = 0
	}
}

func (e *Engine) finalize() {
	r := e.results
	r.FinalEquity = e.equity
	r.Fees = e.fees
	r.MaxDrawdown = e.maxDD

	for _, tr := range r.Trades {
		if tr.PnL > 0 {
			r.WinningTrades++
			r.GrossProfit += tr.PnL
		} else {
			r.LosingTrades++
			r.GrossLoss += -tr.PnL
		}
	}
	if n := len(r.Trades); n > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(n)
	}
	if r.GrossLoss > 0 {
		r.ProfitFactor = r.GrossProfit / r.GrossLoss
	}

	log.Info().
		Int("snapshots", r.Snapshots).
		Int("fills", r.Filled).
		Int("trades", len(r.Trades)).
		Float64("final_equity", r.FinalEquity).
		Msg("replay finished")
}

func sameSign(a, b float64) bool { return (a > 0) == (b > 0) }
