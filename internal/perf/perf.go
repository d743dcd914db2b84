// Package perf tracks session performance: realized PnL, fees, equity and
// drawdown. Accounting runs on decimals so long runs of small fills do not
// accumulate float error. The recorder also mirrors executions and the
// equity curve into the state store.
package perf

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"hftbot/internal/common"
	"hftbot/internal/ports"
)

var (
	takerFee = decimal.NewFromFloat(common.TakerFeeBps).Div(decimal.NewFromInt(10000))
	makerFee = decimal.NewFromFloat(common.MakerFeeBps).Div(decimal.NewFromInt(10000))
)

// position is signed inventory in one symbol at an average entry price.
type position struct {
	qty  decimal.Decimal
	cost decimal.Decimal
}

type Recorder struct {
	store ports.StateStore

	mu          sync.Mutex
	initial     decimal.Decimal
	realized    decimal.Decimal
	fees        decimal.Decimal
	daily       decimal.Decimal
	peak        decimal.Decimal
	positions   map[string]*position
	tradesToday int
	consecFails int
	iterations  uint64
	startedAt   time.Time
	day         string
	flushed     bool
}

// New builds a recorder seeded with the account equity observed at
// connection time. The store may be nil in replay setups that only want the
// in-memory view.
func New(store ports.StateStore, initialEquity float64) *Recorder {
	initial := decimal.NewFromFloat(initialEquity)
	now := time.Now()
	return &Recorder{
		store:     store,
		initial:   initial,
		peak:      initial,
		positions: make(map[string]*position),
		startedAt: now,
		day:       dayKey(now),
	}
}

// Update folds one iteration outcome into the running state. It never
// returns an error; persistence problems are logged and the loop moves on.
func (r *Recorder) Update(o ports.IterationOutcome) {
	r.mu.Lock()
	r.rollover(o.At)

	if o.Seq > r.iterations {
		r.iterations = o.Seq
	}
	switch {
	case o.Failed > 0:
		r.consecFails++
	case o.Submitted > 0:
		r.consecFails = 0
	}

	for _, ex := range o.Executions {
		realized, fee := r.apply(ex)
		r.realized = r.realized.Add(realized)
		r.fees = r.fees.Add(fee)
		r.daily = r.daily.Add(realized).Sub(fee)
	}

	equity := r.equityLocked()
	if equity.GreaterThan(r.peak) {
		r.peak = equity
	}

	persist := len(o.Executions) > 0
	executions := o.Executions
	daily, _ := r.daily.Float64()
	eq, _ := equity.Float64()
	r.mu.Unlock()

	if r.store == nil || !persist {
		return
	}
	ctx := context.Background()
	for _, ex := range executions {
		if err := r.store.SaveExecution(ctx, ex); err != nil {
			log.Warn().Err(err).Str("order_id", ex.OrderID).Msg("persist execution failed")
		}
	}
	if err := r.store.SaveEquity(ctx, o.At.UnixMilli(), eq, daily); err != nil {
		log.Warn().Err(err).Msg("persist equity point failed")
	}
}

// Health returns the running view consumed by the risk gate, the alert sink
// and the metrics gauges.
func (r *Recorder) Health() ports.Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	equity := r.equityLocked()
	drawdown := decimal.Zero
	if r.peak.Sign() > 0 && equity.LessThan(r.peak) {
		drawdown = r.peak.Sub(equity).Div(r.peak)
	}

	eq, _ := equity.Float64()
	daily, _ := r.daily.Float64()
	dd, _ := drawdown.Float64()
	return ports.Health{
		Equity:              eq,
		DailyPnL:            daily,
		Drawdown:            dd,
		TradesToday:         r.tradesToday,
		ConsecutiveFailures: r.consecFails,
		Iterations:          r.iterations,
		StartedAt:           r.startedAt,
	}
}

// Flush writes the final equity point. Called exactly once while draining;
// extra calls are no-ops.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.flushed {
		r.mu.Unlock()
		return nil
	}
	r.flushed = true
	eq, _ := r.equityLocked().Float64()
	daily, _ := r.daily.Float64()
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	return r.store.SaveEquity(ctx, time.Now().UnixMilli(), eq, daily)
}

func (r *Recorder) equityLocked() decimal.Decimal {
	return r.initial.Add(r.realized).Sub(r.fees)
}

// apply books one execution: fee on the filled notional, inventory at
// average cost, realized PnL when the fill reduces or flips the position.
func (r *Recorder) apply(ex ports.Execution) (decimal.Decimal, decimal.Decimal) {
	r.tradesToday++
	if ex.Status != ports.Filled || ex.FilledQty <= 0 {
		return decimal.Zero, decimal.Zero
	}

	qty := decimal.NewFromFloat(ex.FilledQty)
	price := decimal.NewFromFloat(ex.AvgPrice)
	if price.Sign() <= 0 {
		price = decimal.NewFromFloat(ex.Signal.Price)
	}
	feeRate := takerFee
	if ex.Signal.Kind == ports.Limit {
		feeRate = makerFee
	}
	fee := qty.Mul(price).Mul(feeRate)

	signed := qty
	if ex.Signal.Side == ports.Sell {
		signed = qty.Neg()
	}

	pos := r.positions[ex.Signal.Symbol]
	if pos == nil {
		pos = &position{}
		r.positions[ex.Signal.Symbol] = pos
	}

	realized := decimal.Zero
	switch {
	case pos.qty.IsZero():
		pos.qty = signed
		pos.cost = price
	case pos.qty.Sign() == signed.Sign():
		newQty := pos.qty.Add(signed)
		pos.cost = pos.qty.Abs().Mul(pos.cost).Add(qty.Mul(price)).Div(newQty.Abs())
		pos.qty = newQty
	default:
		closeQty := decimal.Min(pos.qty.Abs(), qty)
		diff := price.Sub(pos.cost)
		if pos.qty.Sign() < 0 {
			diff = diff.Neg()
		}
		realized = closeQty.Mul(diff)
		pos.qty = pos.qty.Add(signed)
		switch {
		case pos.qty.IsZero():
			pos.cost = decimal.Zero
		case pos.qty.Sign() == signed.Sign():
			// Flipped through zero; the remainder opened at this fill.
			pos.cost = price
		}
	}
	return realized, fee
}

// Position returns the signed inventory held in symbol.
func (r *Recorder) Position(symbol string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := r.positions[symbol]
	if pos == nil {
		return 0
	}
	f, _ := pos.qty.Float64()
	return f
}

func (r *Recorder) rollover(now time.Time) {
	if d := dayKey(now); d != r.day {
		r.day = d
		r.daily = decimal.Zero
		r.tradesToday = 0
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
