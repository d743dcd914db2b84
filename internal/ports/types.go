package ports

import (
	"fmt"
	"time"
)

// Side is the direction of a trading intent.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderKind selects the execution style of an intent.
type OrderKind string

const (
	Market OrderKind = "MARKET"
	Limit  OrderKind = "LIMIT"
)

// Quote is one instrument's current top of book.
type Quote struct {
	Bid    float64
	BidQty float64
	Ask    float64
	AskQty float64
	At     time.Time
}

// Mid returns the midpoint of the quote, or zero when either side is empty.
func (q Quote) Mid() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// MarketSnapshot is the market state handed to the strategy engine each
// iteration. Quotes carries every instrument the connectivity layer tracks,
// the primary symbol included, so multi-leg strategies see all their legs
// from one snapshot.
type MarketSnapshot struct {
	Symbol string
	Last   float64
	Bid    float64
	BidQty float64
	Ask    float64
	AskQty float64
	At     time.Time
	Quotes map[string]Quote
}

// Mid returns the midpoint of the primary instrument's book.
func (m MarketSnapshot) Mid() float64 {
	return Quote{Bid: m.Bid, Ask: m.Ask}.Mid()
}

// Signal is an immutable trading intent produced by a strategy engine. Each
// signal is consumed exactly once in the iteration that produced it; there is
// no queueing or retry. Price is a hint for limit intents and zero for
// market intents.
type Signal struct {
	ID       string
	Symbol   string
	Side     Side
	Kind     OrderKind
	Qty      float64
	Price    float64
	Strategy string
	At       time.Time
}

func (s Signal) String() string {
	if s.Kind == Limit {
		return fmt.Sprintf("%s %s %.8f %s @ %.8f", s.Side, s.Kind, s.Qty, s.Symbol, s.Price)
	}
	return fmt.Sprintf("%s %s %.8f %s", s.Side, s.Kind, s.Qty, s.Symbol)
}

// RiskDecision is the outcome of a risk evaluation. Rejection is a normal
// control-flow result, not an error.
type RiskDecision struct {
	Approved bool
	Reason   string
}

// ExecStatus describes how far an accepted order got.
type ExecStatus string

const (
	Accepted ExecStatus = "ACCEPTED"
	Filled   ExecStatus = "FILLED"
)

// Execution reports a successfully submitted order.
type Execution struct {
	OrderID       string
	ClientOrderID string
	Signal        Signal
	Status        ExecStatus
	AvgPrice      float64
	FilledQty     float64
	At            time.Time
}

// IterationOutcome summarizes one pass of the main loop for the performance
// recorder.
type IterationOutcome struct {
	Seq        uint64
	Signals    int
	Approved   int
	Rejected   int
	Submitted  int
	Failed     int
	Executions []Execution
	Elapsed    time.Duration
	At         time.Time
}

// Health is the recorder's running view of the session, consumed by the
// risk gate and the alert sink.
type Health struct {
	Equity              float64
	DailyPnL            float64
	Drawdown            float64
	TradesToday         int
	ConsecutiveFailures int
	Iterations          uint64
	StartedAt           time.Time
}

// Severity ranks alert events.
type Severity string

const (
	Info     Severity = "INFO"
	Warning  Severity = "WARNING"
	Critical Severity = "CRITICAL"
)

// Event is a notification routed through the alert sink.
type Event struct {
	Severity Severity
	Title    string
	Message  string
	At       time.Time
}
