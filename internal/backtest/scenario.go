// Package backtest replays captured market data through a strategy engine
// and a fresh risk gate, simulating fills against the recorded quotes. It
// answers "what would this configuration have done" without touching the
// exchange.
package backtest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario describes one replay: which capture to read, what to trade and
// under which regime. Loaded from a YAML file.
type Scenario struct {
	DataPath      string  `yaml:"data_path"`
	Symbol        string  `yaml:"symbol"`
	Strategy      string  `yaml:"strategy"`
	Start         string  `yaml:"start"`
	End           string  `yaml:"end"`
	InitialEquity float64 `yaml:"initial_equity"`
	FeeBps        float64 `yaml:"fee_bps"`

	from time.Time
	to   time.Time
}

// LoadScenario reads and validates a scenario file. Start and End accept
// either a date (2006-01-02) or RFC 3339; an empty Start means the beginning
// of the capture and an empty End means its end.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.normalize(); err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

func (sc *Scenario) normalize() error {
	if sc.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	if sc.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if sc.Strategy == "" {
		return fmt.Errorf("strategy is required")
	}
	if sc.InitialEquity <= 0 {
		sc.InitialEquity = 10000
	}
	if sc.FeeBps < 0 {
		return fmt.Errorf("fee_bps must not be negative")
	}

	var err error
	sc.from = time.Unix(0, 0).UTC()
	if sc.Start != "" {
		if sc.from, err = parseWhen(sc.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	sc.to = time.Unix(0, 1<<62).UTC()
	if sc.End != "" {
		if sc.to, err = parseWhen(sc.End); err != nil {
			return fmt.Errorf("end: %w", err)
		}
	}
	if !sc.to.After(sc.from) {
		return fmt.Errorf("end %s is not after start %s", sc.to.Format(time.RFC3339), sc.from.Format(time.RFC3339))
	}
	return nil
}

// Window returns the replay time range.
func (sc Scenario) Window() (time.Time, time.Time) { return sc.from, sc.to }

func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want 2006-01-02 or RFC 3339, got %q", s)
	}
	return t.UTC(), nil
}
