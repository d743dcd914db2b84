package bot

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"hftbot/internal/alert"
	"hftbot/internal/capture"
	"hftbot/internal/cfg"
	"hftbot/internal/exchange/binance"
	"hftbot/internal/gateway"
	"hftbot/internal/metrics"
	"hftbot/internal/perf"
	"hftbot/internal/ports"
	"hftbot/internal/risk"
	"hftbot/internal/store"
	"hftbot/internal/strategy"
)

// SnapshotRecorder archives market snapshots for offline replay.
type SnapshotRecorder interface {
	Record(snap ports.MarketSnapshot) error
	Close() error
}

// Wiring substitutes collaborator constructors. The zero value wires the
// production implementations; replay setups and tests override only the
// fields they need.
type Wiring struct {
	Client   func(c cfg.Config) ports.ExchangeClient
	Store    func(ctx context.Context, c cfg.Config) (ports.StateStore, error)
	Alerts   func(c cfg.Config) (ports.AlertSink, error)
	Risk     func(c cfg.Config) ports.RiskGate
	Gateway  func(c cfg.Config, client ports.ExchangeClient) (ports.OrderGateway, error)
	Recorder func(c cfg.Config, st ports.StateStore, initialEquity float64) ports.PerformanceRecorder
	Strategy func(c cfg.Config) (ports.StrategyEngine, error)
	Capture  func(c cfg.Config) (SnapshotRecorder, error)
	Metrics  *metrics.Metrics
}

func (w Wiring) withDefaults() Wiring {
	if w.Client == nil {
		w.Client = func(c cfg.Config) ports.ExchangeClient { return binance.New(c) }
	}
	if w.Store == nil {
		w.Store = func(ctx context.Context, c cfg.Config) (ports.StateStore, error) {
			return store.Open(ctx, c.DBPath)
		}
	}
	if w.Alerts == nil {
		w.Alerts = func(c cfg.Config) (ports.AlertSink, error) { return alert.New(c) }
	}
	if w.Risk == nil {
		w.Risk = func(c cfg.Config) ports.RiskGate { return risk.New(c) }
	}
	if w.Gateway == nil {
		w.Gateway = func(_ cfg.Config, client ports.ExchangeClient) (ports.OrderGateway, error) {
			placer, ok := client.(gateway.OrderPlacer)
			if !ok {
				return nil, errors.New("exchange client cannot place orders")
			}
			return gateway.New(placer), nil
		}
	}
	if w.Recorder == nil {
		w.Recorder = func(_ cfg.Config, st ports.StateStore, initialEquity float64) ports.PerformanceRecorder {
			return perf.New(st, initialEquity)
		}
	}
	if w.Strategy == nil {
		w.Strategy = func(c cfg.Config) (ports.StrategyEngine, error) { return strategy.New(c) }
	}
	if w.Capture == nil {
		w.Capture = func(c cfg.Config) (SnapshotRecorder, error) { return capture.Open(c.DataPath) }
	}
	if w.Metrics == nil {
		// A private registry: callers that want the shared endpoint pass
		// metrics.New() explicitly.
		w.Metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	}
	return w
}
