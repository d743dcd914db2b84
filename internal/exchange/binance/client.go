// Package binance implements exchange connectivity against the Binance spot
// API: a REST client for account and order calls and a websocket market
// stream feeding an in-memory quote cache. Testnet and mainnet differ only
// in their endpoints, selected from the configuration.
package binance

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"hftbot/internal/cfg"
	"hftbot/internal/common"
	"hftbot/internal/ports"
)

// Gauge is the subset of a metrics gauge the client drives.
type Gauge interface {
	Set(float64)
}

type Client struct {
	key, secret string
	base        string
	wsBase      string
	symbols     []string
	rest        *resty.Client
	cache       *quoteCache

	connGauge Gauge
	connected atomic.Bool

	mu     sync.Mutex
	equity float64

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a client from the resolved configuration. The subscription set
// is the primary symbol plus the arbitrage legs when the configured strategy
// needs them.
func New(c cfg.Config) *Client {
	base, wsBase := common.MainnetBaseURL, common.MainnetWsURL
	if c.UseTestnet {
		base, wsBase = common.TestnetBaseURL, common.TestnetWsURL
	}

	symbols := []string{c.Symbol}
	if c.Strategy == common.StrategyArbitrage {
		for _, s := range c.ArbitrageSymbols {
			if !containsSymbol(symbols, s) {
				symbols = append(symbols, s)
			}
		}
	}

	timeout := c.RESTTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rest := resty.New().SetTimeout(timeout)

	return &Client{
		key:     c.APIKey,
		secret:  c.APISecret,
		base:    base,
		wsBase:  wsBase,
		symbols: symbols,
		rest:    rest,
		cache:   newQuoteCache(),
	}
}

// SetConnGauge wires an optional connectivity gauge, 1 while the market
// stream is up.
func (c *Client) SetConnGauge(g Gauge) { c.connGauge = g }

// Connect verifies connectivity and credentials, then starts the market
// stream. A failure here is fatal to construction: the exchange is either
// unreachable or the account is not usable.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.ping(ctx); err != nil {
		return fmt.Errorf("exchange unreachable: %w", err)
	}
	if c.key == "" || c.secret == "" {
		return fmt.Errorf("connect: %s", common.ErrMsgCredentialsRequired)
	}
	if err := c.accountProbe(ctx); err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.runStream(streamCtx)

	log.Info().
		Str("base", c.base).
		Strs("symbols", c.symbols).
		Msg("exchange client connected")
	return nil
}

// MarketSnapshot returns the current market state for symbol, preferring the
// websocket cache and falling back to REST when the cache is stale. Every
// path is bounded by the configured REST timeout.
func (c *Client) MarketSnapshot(ctx context.Context, symbol string) (ports.MarketSnapshot, error) {
	now := time.Now()
	if snap, ok := c.cache.snapshot(symbol, now); ok {
		return snap, nil
	}

	bt, err := c.bookTicker(ctx, symbol)
	if err != nil {
		return ports.MarketSnapshot{}, err
	}
	last, err := c.lastPrice(ctx, symbol)
	if err != nil {
		return ports.MarketSnapshot{}, err
	}

	q := cachedQuote{at: now}
	if q.bid, err = parsePrice(bt.BidPrice); err != nil {
		return ports.MarketSnapshot{}, fmt.Errorf("book ticker %s: %w", symbol, err)
	}
	if q.ask, err = parsePrice(bt.AskPrice); err != nil {
		return ports.MarketSnapshot{}, fmt.Errorf("book ticker %s: %w", symbol, err)
	}
	q.bidQty, _ = parsePrice(bt.BidQty)
	q.askQty, _ = parsePrice(bt.AskQty)

	c.cache.setQuote(symbol, q)
	c.cache.setLast(symbol, last, now)

	snap, ok := c.cache.snapshot(symbol, now)
	if !ok {
		return ports.MarketSnapshot{}, fmt.Errorf("no market data for %s", symbol)
	}
	return snap, nil
}

// Close stops the market stream and waits for it. Safe to call more than
// once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
		log.Info().Msg("exchange client closed")
	})
	return nil
}

func (c *Client) setConnected(up bool) {
	c.connected.Store(up)
	if c.connGauge != nil {
		if up {
			c.connGauge.Set(1)
		} else {
			c.connGauge.Set(0)
		}
	}
}

// Connected reports whether the market stream currently has a live session.
func (c *Client) Connected() bool { return c.connected.Load() }

// Equity returns the USDT balance seen by the last account probe, zero
// before Connect.
func (c *Client) Equity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.equity
}

func containsSymbol(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
