// Package bot contains the supervisor that owns a trading session: ordered
// fail-fast construction of the collaborators, the poll-decide-act loop,
// and the exactly-once drain that unwinds everything on the way out.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"hftbot/internal/cfg"
	"hftbot/internal/exchange/binance"
	"hftbot/internal/gateway"
	"hftbot/internal/metrics"
	"hftbot/internal/ports"
)

type Supervisor struct {
	cfg     cfg.Config
	metrics *metrics.Metrics

	client   ports.ExchangeClient
	store    ports.StateStore
	alerts   ports.AlertSink
	risk     ports.RiskGate
	gateway  ports.OrderGateway
	recorder ports.PerformanceRecorder
	engine   ports.StrategyEngine
	capture  SnapshotRecorder

	mu    sync.Mutex
	state RunState

	drainOnce sync.Once
	seq       uint64
}

// New constructs every collaborator in a fixed order and fails fast: the
// first stage that errors aborts startup, unwinds whatever was already
// built and returns an InitError. No partially constructed supervisor
// escapes.
func New(ctx context.Context, c cfg.Config, w Wiring) (*Supervisor, error) {
	w = w.withDefaults()
	s := &Supervisor{cfg: c, metrics: w.Metrics, state: Initializing}
	s.metrics.RunState.Set(float64(Initializing))

	fail := func(stage string, err error) (*Supervisor, error) {
		initErr := &InitError{Stage: stage, Err: err}
		log.Error().Err(err).Str("stage", stage).Msg("construction failed")
		s.notify(ports.Event{
			Severity: ports.Critical,
			Title:    "startup failed",
			Message:  initErr.Error(),
			At:       time.Now(),
		})
		s.shutdown()
		return nil, initErr
	}

	s.client = w.Client(c)
	if g, ok := s.client.(interface{ SetConnGauge(binance.Gauge) }); ok {
		g.SetConnGauge(s.metrics.WSConnected)
	}
	if err := s.client.Connect(ctx); err != nil {
		return fail("exchange client", err)
	}

	var err error
	if s.store, err = w.Store(ctx, c); err != nil {
		return fail("state store", err)
	}
	if s.alerts, err = w.Alerts(c); err != nil {
		return fail("alert sink", err)
	}
	s.risk = w.Risk(c)
	if s.gateway, err = w.Gateway(c, s.client); err != nil {
		return fail("order gateway", err)
	}

	var initialEquity float64
	if eq, ok := s.client.(interface{ Equity() float64 }); ok {
		initialEquity = eq.Equity()
	}
	s.recorder = w.Recorder(c, s.store, initialEquity)

	if s.engine, err = w.Strategy(c); err != nil {
		return fail("strategy engine", err)
	}

	// Market data capture is an optional extra, never fatal.
	if c.DataPath != "" {
		rec, err := w.Capture(c)
		if err != nil {
			log.Warn().Err(err).Msg("market data capture disabled")
		} else {
			s.capture = rec
		}
	}
	return s, nil
}

// State returns the current lifecycle phase.
func (s *Supervisor) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the trading loop until the context is canceled or a
// collaborator fails. Cancellation drains and returns nil; a collaborator
// failure drains and returns the CollaboratorError.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.transition(Running) {
		return fmt.Errorf("run: supervisor is %s", s.State())
	}
	log.Info().
		Str("symbol", s.cfg.Symbol).
		Str("strategy", s.engine.Name()).
		Bool("testnet", s.cfg.UseTestnet).
		Dur("interval", s.cfg.Interval()).
		Msg("bot running")

	interval := s.cfg.Interval()
	for {
		if ctx.Err() != nil {
			log.Info().Msg("stop requested")
			s.shutdown()
			return nil
		}

		start := time.Now()
		if err := s.iterate(ctx); err != nil {
			if ctx.Err() != nil {
				// The failure is the cancellation itself surfacing through
				// a collaborator call.
				log.Info().Msg("stop requested")
				s.shutdown()
				return nil
			}
			s.metrics.CollaboratorFailures.Inc()
			log.Error().Err(err).Msg("collaborator failed")
			s.notify(ports.Event{
				Severity: ports.Critical,
				Title:    "collaborator failure",
				Message:  err.Error(),
				At:       time.Now(),
			})
			s.shutdown()
			return err
		}

		elapsed := time.Since(start)
		s.metrics.Iterations.Inc()
		s.metrics.IterationDuration.Observe(elapsed.Seconds())
		if elapsed < interval {
			sleepCtx(ctx, interval-elapsed)
		} else if interval > 0 {
			s.metrics.LoopOverruns.Inc()
			log.Warn().
				Dur("elapsed", elapsed).
				Dur("interval", interval).
				Dur("drift", elapsed-interval).
				Msg("iteration overran the loop interval")
		}
	}
}

// iterate runs one poll-decide-act pass. Signal rejections and exchange
// order rejections are absorbed here; any returned error is a collaborator
// failure that ends the session.
func (s *Supervisor) iterate(ctx context.Context) error {
	s.seq++
	start := time.Now()

	snapStart := time.Now()
	snap, err := s.client.MarketSnapshot(ctx, s.cfg.Symbol)
	if err != nil {
		return &CollaboratorError{Component: "exchange client", Err: err}
	}
	s.metrics.SnapshotLatency.Observe(time.Since(snapStart).Seconds())

	signals, err := s.engine.Signals(ctx, snap)
	if err != nil {
		return &CollaboratorError{Component: "strategy engine", Err: err}
	}
	s.metrics.SignalsGenerated.Add(float64(len(signals)))

	outcome := ports.IterationOutcome{Seq: s.seq, Signals: len(signals), At: start}
	for _, sig := range signals {
		decision := s.risk.Evaluate(sig)
		if !decision.Approved {
			outcome.Rejected++
			s.metrics.SignalsRejected.Inc()
			log.Debug().Str("signal", sig.String()).Str("reason", decision.Reason).Msg("signal rejected")
			s.notify(ports.Event{
				Severity: ports.Warning,
				Title:    "signal rejected",
				Message:  fmt.Sprintf("%s: %s", sig, decision.Reason),
				At:       time.Now(),
			})
			continue
		}
		outcome.Approved++
		s.metrics.SignalsApproved.Inc()

		submitStart := time.Now()
		ex, err := s.gateway.Submit(ctx, sig)
		s.metrics.SubmitLatency.Observe(time.Since(submitStart).Seconds())
		if err != nil {
			var subErr *gateway.SubmissionError
			if errors.As(err, &subErr) {
				outcome.Failed++
				s.metrics.OrdersFailed.Inc()
				log.Warn().Err(err).Str("signal", sig.String()).Msg("order rejected")
				s.notify(ports.Event{
					Severity: ports.Warning,
					Title:    "order rejected",
					Message:  fmt.Sprintf("%s: %s", sig, subErr.Msg),
					At:       time.Now(),
				})
				continue
			}
			return &CollaboratorError{Component: "order gateway", Err: err}
		}
		outcome.Submitted++
		s.metrics.OrdersSubmitted.Inc()
		s.risk.RecordExecution(ex)
		outcome.Executions = append(outcome.Executions, ex)
	}

	outcome.Elapsed = time.Since(start)
	s.recorder.Update(outcome)
	health := s.recorder.Health()
	s.risk.Observe(health)
	s.alerts.Evaluate(ctx, health)
	s.observeHealth(health)

	if s.capture != nil {
		if err := s.capture.Record(snap); err != nil {
			log.Warn().Err(err).Msg("snapshot capture failed")
		}
	}
	return nil
}

// shutdown drains exactly once. Later calls, including a second stop
// request while draining, are no-ops.
func (s *Supervisor) shutdown() {
	s.transition(Draining)
	s.drainOnce.Do(s.drain)
}

// drain unwinds the collaborators in a fixed order. Every step's failure is
// logged and the remaining steps still run; cancellation cannot interrupt
// the drain, so all persistence uses a fresh context.
func (s *Supervisor) drain() {
	ctx := context.Background()
	log.Info().Msg("draining")

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Warn().Err(err).Msg("close exchange client failed")
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Flush(ctx); err != nil {
			log.Warn().Err(err).Msg("flush performance recorder failed")
		}
	}
	if s.store != nil {
		if err := s.store.Flush(ctx); err != nil {
			log.Warn().Err(err).Msg("flush state store failed")
		}
	}
	if s.capture != nil {
		if err := s.capture.Close(); err != nil {
			log.Warn().Err(err).Msg("close capture failed")
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Warn().Err(err).Msg("close state store failed")
		}
	}
	if s.alerts != nil {
		s.notify(ports.Event{
			Severity: ports.Info,
			Title:    "bot stopped",
			Message:  fmt.Sprintf("session drained after %d iterations", s.seq),
			At:       time.Now(),
		})
		if closer, ok := s.alerts.(io.Closer); ok {
			closer.Close()
		}
	}

	s.transition(Stopped)
	if s.recorder != nil {
		h := s.recorder.Health()
		log.Info().
			Uint64("iterations", h.Iterations).
			Int("trades", h.TradesToday).
			Float64("equity", h.Equity).
			Float64("daily_pnl", h.DailyPnL).
			Msg("session summary")
	}
}

// transition advances the state machine. Regressions and repeats are
// rejected, which keeps the lifecycle strictly forward.
func (s *Supervisor) transition(to RunState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to <= s.state {
		return false
	}
	s.state = to
	s.metrics.RunState.Set(float64(to))
	log.Info().Str("state", to.String()).Msg("run state changed")
	return true
}

func (s *Supervisor) observeHealth(h ports.Health) {
	s.metrics.Equity.Set(h.Equity)
	s.metrics.DailyPnL.Set(h.DailyPnL)
	s.metrics.Drawdown.Set(h.Drawdown)
	if p, ok := s.recorder.(interface{ Position(string) float64 }); ok {
		s.metrics.OpenPosition.Set(p.Position(s.cfg.Symbol))
	}
}

// notify delivers a best-effort event; failures are already logged by the
// sink.
func (s *Supervisor) notify(ev ports.Event) {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.Notify(context.Background(), ev); err != nil {
		log.Warn().Err(err).Str("title", ev.Title).Msg("alert delivery incomplete")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
