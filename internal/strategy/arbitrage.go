package strategy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"hftbot/internal/cfg"
	"hftbot/internal/common"
	"hftbot/internal/ports"
)

// Arbitrage watches a currency triangle for a quoted cross rate that
// diverges from the rate implied by the other two legs. The first two
// configured symbols share a quote currency and the third is the cross of
// their bases, BTCUSDT / ETHUSDT / ETHBTC in the default configuration.
// Divergence must clear the profit threshold plus the taker fees of all
// three legs before a signal fires.
type Arbitrage struct {
	legA      string
	legB      string
	cross     string
	threshold float64
	clip      float64
}

func NewArbitrage(c cfg.Config) (*Arbitrage, error) {
	if len(c.ArbitrageSymbols) != 3 {
		return nil, fmt.Errorf("arbitrage needs exactly 3 symbols, got %d", len(c.ArbitrageSymbols))
	}
	return &Arbitrage{
		legA:      c.ArbitrageSymbols[0],
		legB:      c.ArbitrageSymbols[1],
		cross:     c.ArbitrageSymbols[2],
		threshold: c.MinProfitThreshold,
		clip:      c.MMOrderSize,
	}, nil
}

func (a *Arbitrage) Name() string { return common.StrategyArbitrage }

func (a *Arbitrage) Signals(_ context.Context, snap ports.MarketSnapshot) ([]ports.Signal, error) {
	qa, okA := snap.Quotes[a.legA]
	qb, okB := snap.Quotes[a.legB]
	qc, okC := snap.Quotes[a.cross]
	if !okA || !okB || !okC {
		return nil, nil
	}
	midA, midB := qa.Mid(), qb.Mid()
	if midA <= 0 || midB <= 0 {
		return nil, nil
	}

	implied := midB / midA
	edge := a.threshold + 3*common.TakerFeeBps/10000

	var side ports.Side
	switch {
	case qc.Bid > implied*(1+edge):
		side = ports.Sell
	case qc.Ask > 0 && qc.Ask < implied*(1-edge):
		side = ports.Buy
	default:
		return nil, nil
	}

	return []ports.Signal{{
		ID:       uuid.NewString(),
		Symbol:   a.cross,
		Side:     side,
		Kind:     ports.Market,
		Qty:      a.clip,
		Strategy: common.StrategyArbitrage,
		At:       snap.At,
	}}, nil
}
