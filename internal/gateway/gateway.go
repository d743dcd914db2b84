// Package gateway turns approved signals into exchange order submissions.
// One signal maps to exactly one submission attempt; retry policy belongs to
// the strategy, which will see the next snapshot and decide again.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hftbot/internal/exchange/binance"
	"hftbot/internal/ports"
)

// OrderPlacer is the slice of the exchange client the gateway needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req binance.OrderRequest) (binance.OrderAck, error)
}

// SubmissionError reports an order the exchange examined and refused.
// It is iteration-local: the session continues, the signal is dropped.
type SubmissionError struct {
	Symbol string
	Code   int
	Msg    string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s order rejected (code %d): %s", e.Symbol, e.Code, e.Msg)
}

type Gateway struct {
	placer OrderPlacer
}

func New(placer OrderPlacer) *Gateway {
	return &Gateway{placer: placer}
}

// Submit places one order for the signal. Exchange rejections come back as
// *SubmissionError; any other failure means connectivity is gone and the
// error is fatal to the session.
func (g *Gateway) Submit(ctx context.Context, sig ports.Signal) (ports.Execution, error) {
	req := binance.OrderRequest{
		Symbol:        sig.Symbol,
		Side:          string(sig.Side),
		Type:          string(sig.Kind),
		Qty:           sig.Qty,
		Price:         sig.Price,
		ClientOrderID: newClientOrderID(),
	}

	ack, err := g.placer.PlaceOrder(ctx, req)
	if err != nil {
		var apiErr *binance.APIError
		if errors.As(err, &apiErr) {
			log.Warn().
				Str("signal", sig.String()).
				Int("code", apiErr.Code).
				Str("msg", apiErr.Msg).
				Msg("order rejected by exchange")
			return ports.Execution{}, &SubmissionError{Symbol: sig.Symbol, Code: apiErr.Code, Msg: apiErr.Msg}
		}
		return ports.Execution{}, fmt.Errorf("submit %s: %w", sig, err)
	}

	status := ports.Accepted
	if ack.Status == "FILLED" {
		status = ports.Filled
	}
	clientID := ack.ClientOrderID
	if clientID == "" {
		clientID = req.ClientOrderID
	}
	ex := ports.Execution{
		OrderID:       strconv.FormatInt(ack.OrderID, 10),
		ClientOrderID: clientID,
		Signal:        sig,
		Status:        status,
		AvgPrice:      ack.AvgPrice,
		FilledQty:     ack.ExecutedQty,
		At:            time.Now(),
	}

	log.Info().
		Str("order_id", ex.OrderID).
		Str("client_order_id", ex.ClientOrderID).
		Str("signal", sig.String()).
		Str("status", string(ex.Status)).
		Str("strategy", sig.Strategy).
		Msg("order submitted")
	return ex, nil
}

func newClientOrderID() string {
	return "hft-" + uuid.NewString()
}
