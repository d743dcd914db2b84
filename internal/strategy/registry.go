// Package strategy hosts the signal engines and the registry that maps
// configured strategy names to their constructors.
package strategy

import (
	"fmt"
	"sort"

	"hftbot/internal/cfg"
	"hftbot/internal/common"
	"hftbot/internal/ports"
)

// Factory builds a strategy engine from a resolved configuration.
type Factory func(c cfg.Config) (ports.StrategyEngine, error)

var registry = map[string]Factory{
	common.StrategyMarketMaking: func(c cfg.Config) (ports.StrategyEngine, error) {
		return NewMarketMaker(c), nil
	},
	common.StrategyArbitrage: func(c cfg.Config) (ports.StrategyEngine, error) {
		return NewArbitrage(c)
	},
	common.StrategyMomentum: func(c cfg.Config) (ports.StrategyEngine, error) {
		return NewMomentum(c)
	},
}

// New builds the engine named by c.Strategy. Resolution only warns about
// unknown names; this is where they become fatal.
func New(c cfg.Config) (ports.StrategyEngine, error) {
	f, ok := registry[c.Strategy]
	if !ok {
		return nil, fmt.Errorf("%s %q", common.ErrMsgUnknownStrategy, c.Strategy)
	}
	return f(c)
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
