// Package metrics defines the Prometheus instrumentation exposed on the
// metrics endpoint: loop timing, signal and order flow, session health and
// exchange connectivity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every metric the bot exports.
type Metrics struct {
	// Main loop
	Iterations        prometheus.Counter   // Completed loop iterations
	IterationDuration prometheus.Histogram // Work time per iteration
	LoopOverruns      prometheus.Counter   // Iterations that ran past the interval

	// Signal and order flow
	SignalsGenerated prometheus.Counter
	SignalsApproved  prometheus.Counter
	SignalsRejected  prometheus.Counter
	OrdersSubmitted  prometheus.Counter
	OrdersFailed     prometheus.Counter
	SubmitLatency    prometheus.Histogram

	// Session state
	RunState             prometheus.Gauge // Supervisor state as its numeric code
	Equity               prometheus.Gauge
	DailyPnL             prometheus.Gauge
	Drawdown             prometheus.Gauge
	OpenPosition         prometheus.Gauge // Signed inventory in the primary symbol
	WSConnected          prometheus.Gauge // 1 while the market stream is live
	SnapshotLatency      prometheus.Histogram
	CollaboratorFailures prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry, which keeps
// tests isolated from the global one.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Iterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "loop_iterations_total",
			Help: "Completed main loop iterations",
		}),
		IterationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loop_iteration_duration_seconds",
			Help:    "Work time per loop iteration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		LoopOverruns: factory.NewCounter(prometheus.CounterOpts{
			Name: "loop_overruns_total",
			Help: "Iterations whose work exceeded the loop interval",
		}),
		SignalsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_generated_total",
			Help: "Signals produced by the strategy engine",
		}),
		SignalsApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_approved_total",
			Help: "Signals approved by the risk gate",
		}),
		SignalsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "signals_rejected_total",
			Help: "Signals rejected by the risk gate",
		}),
		OrdersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "orders_submitted_total",
			Help: "Orders accepted by the exchange",
		}),
		OrdersFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Order submissions the exchange rejected",
		}),
		SubmitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_submit_duration_seconds",
			Help:    "Order submission round trip in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		RunState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "run_state",
			Help: "Supervisor state (0 initializing, 1 running, 2 draining, 3 stopped)",
		}),
		Equity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "equity",
			Help: "Session equity in quote currency",
		}),
		DailyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "daily_pnl",
			Help: "Realized PnL net of fees for the current UTC day",
		}),
		Drawdown: factory.NewGauge(prometheus.GaugeOpts{
			Name: "drawdown",
			Help: "Fraction below the session equity peak",
		}),
		OpenPosition: factory.NewGauge(prometheus.GaugeOpts{
			Name: "open_position",
			Help: "Signed inventory in the primary symbol",
		}),
		WSConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connected",
			Help: "1 while the market data stream has a live session",
		}),
		SnapshotLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "market_snapshot_duration_seconds",
			Help:    "Market snapshot retrieval time in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		CollaboratorFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "collaborator_failures_total",
			Help: "Collaborator failures that ended a session",
		}),
	}
}
