// Package ports defines the collaborator contracts the supervisor runs
// against. Implementations live in their own packages; the supervisor only
// sees these interfaces, which keeps every collaborator replaceable in
// tests.
package ports

import "context"

// ExchangeClient is the exchange connectivity layer. Connect performs the
// handshake and authentication probe and must fail rather than degrade; it
// is the enforcement point for credentials that resolution only warned
// about. All calls respect the configured network timeout and return an
// error instead of hanging. Close is idempotent.
type ExchangeClient interface {
	Connect(ctx context.Context) error
	MarketSnapshot(ctx context.Context, symbol string) (MarketSnapshot, error)
	Close() error
}

// StateStore persists executions and the equity curve. Flush is called
// exactly once while the supervisor drains; Close is idempotent.
type StateStore interface {
	SaveExecution(ctx context.Context, ex Execution) error
	SaveEquity(ctx context.Context, at int64, equity, dailyPnL float64) error
	Flush(ctx context.Context) error
	Close() error
}

// AlertSink delivers operator notifications. Delivery is best effort:
// callers log a Notify error and move on, it is never fatal. Evaluate
// applies the sink's threshold conditions to the current session health and
// fires its own notifications.
type AlertSink interface {
	Notify(ctx context.Context, ev Event) error
	Evaluate(ctx context.Context, h Health)
}

// RiskGate screens every signal before submission. Evaluate has no side
// effects beyond the gate's internal counters; those counters are fed by
// RecordExecution after successful submissions and by Observe with the
// recorder's view of the session.
type RiskGate interface {
	Evaluate(sig Signal) RiskDecision
	RecordExecution(ex Execution)
	Observe(h Health)
}

// OrderGateway turns an approved signal into exactly one submission attempt.
// There is no internal retry. A rejection by the exchange surfaces as a
// SubmissionError (iteration-local); any other failure is a collaborator
// failure.
type OrderGateway interface {
	Submit(ctx context.Context, sig Signal) (Execution, error)
}

// PerformanceRecorder accumulates per-iteration results. Update never fails
// the loop; Flush persists the accumulated state exactly once while
// draining.
type PerformanceRecorder interface {
	Update(o IterationOutcome)
	Health() Health
	Flush(ctx context.Context) error
}

// StrategyEngine produces trading intents from market snapshots. Engines
// keep state across iterations. A returned error is a collaborator failure
// and ends the session.
type StrategyEngine interface {
	Name() string
	Signals(ctx context.Context, snap MarketSnapshot) ([]Signal, error)
}
