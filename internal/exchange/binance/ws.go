package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"hftbot/internal/common"
	"hftbot/internal/ports"
)

type cachedQuote struct {
	bid, bidQty float64
	ask, askQty float64
	at          time.Time
}

type cachedLast struct {
	price float64
	at    time.Time
}

// quoteCache holds the freshest websocket view of every subscribed
// instrument. Reads never block the stream goroutine for long; the cache is
// the only state shared between the stream and the trading loop.
type quoteCache struct {
	mu     sync.RWMutex
	quotes map[string]cachedQuote
	last   map[string]cachedLast
}

func newQuoteCache() *quoteCache {
	return &quoteCache{
		quotes: make(map[string]cachedQuote),
		last:   make(map[string]cachedLast),
	}
}

func (qc *quoteCache) setQuote(symbol string, q cachedQuote) {
	qc.mu.Lock()
	qc.quotes[symbol] = q
	qc.mu.Unlock()
}

func (qc *quoteCache) setLast(symbol string, price float64, at time.Time) {
	qc.mu.Lock()
	qc.last[symbol] = cachedLast{price, at}
	qc.mu.Unlock()
}

// snapshot assembles a market snapshot for symbol from cached data. It
// reports false when the symbol's quote is missing or older than the
// staleness bound, which sends the caller to the REST fallback.
func (qc *quoteCache) snapshot(symbol string, now time.Time) (ports.MarketSnapshot, bool) {
	qc.mu.RLock()
	defer qc.mu.RUnlock()

	q, ok := qc.quotes[symbol]
	if !ok || now.Sub(q.at) > common.QuoteStaleAfter {
		return ports.MarketSnapshot{}, false
	}

	snap := ports.MarketSnapshot{
		Symbol: symbol,
		Bid:    q.bid,
		BidQty: q.bidQty,
		Ask:    q.ask,
		AskQty: q.askQty,
		At:     q.at,
		Quotes: qc.quotesLocked(now),
	}
	if l, ok := qc.last[symbol]; ok {
		snap.Last = l.price
	} else {
		snap.Last = snap.Mid()
	}
	return snap, true
}

// quotesLocked copies every fresh quote; callers hold at least a read lock.
func (qc *quoteCache) quotesLocked(now time.Time) map[string]ports.Quote {
	out := make(map[string]ports.Quote, len(qc.quotes))
	for sym, q := range qc.quotes {
		if now.Sub(q.at) > common.QuoteStaleAfter {
			continue
		}
		out[sym] = ports.Quote{Bid: q.bid, BidQty: q.bidQty, Ask: q.ask, AskQty: q.askQty, At: q.at}
	}
	return out
}

// streamURL builds the combined-stream endpoint for the subscribed symbols:
// one bookTicker and one trade stream per instrument.
func streamURL(wsBase string, symbols []string) string {
	parts := make([]string, 0, len(symbols)*2)
	for _, s := range symbols {
		low := strings.ToLower(s)
		parts = append(parts, low+"@bookTicker", low+"@trade")
	}
	return wsBase + "/stream?streams=" + strings.Join(parts, "/")
}

// runStream keeps one websocket session alive with exponential backoff,
// feeding the quote cache until ctx is canceled.
func (c *Client) runStream(ctx context.Context) {
	defer c.wg.Done()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		err := c.streamOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Dur("backoff", backoff).Msg("market stream disconnected, reconnecting")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) streamOnce(ctx context.Context) error {
	u := streamURL(c.wsBase, c.symbols)
	log.Info().Str("url", u).Int("symbols", len(c.symbols)).Msg("connecting market stream")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(512 * 1024)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// Close the connection when ctx ends so the blocked read below returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		pingTicker := time.NewTicker(15 * time.Second)
		defer pingTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-pingTicker.C:
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	c.setConnected(true)
	defer c.setConnected(false)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := c.handleStreamMessage(msg); err != nil {
			log.Debug().Err(err).Msg("dropping unparseable stream message")
		}
	}
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type bookTickerEvent struct {
	Symbol string  `json:"s"`
	Bid    float64 `json:"b,string"`
	BidQty float64 `json:"B,string"`
	Ask    float64 `json:"a,string"`
	AskQty float64 `json:"A,string"`
}

type tradeEvent struct {
	Symbol  string  `json:"s"`
	Price   float64 `json:"p,string"`
	Qty     float64 `json:"q,string"`
	TradeTs int64   `json:"T"`
}

func (c *Client) handleStreamMessage(msg []byte) error {
	var env streamEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	if env.Stream == "" || len(env.Data) == 0 {
		return nil
	}

	switch {
	case strings.HasSuffix(env.Stream, "@bookTicker"):
		var ev bookTickerEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("book ticker event: %w", err)
		}
		if ev.Symbol == "" || ev.Bid <= 0 || ev.Ask <= 0 || ev.Ask < ev.Bid {
			return fmt.Errorf("invalid book ticker for %q: bid=%f ask=%f", ev.Symbol, ev.Bid, ev.Ask)
		}
		c.cache.setQuote(ev.Symbol, cachedQuote{
			bid: ev.Bid, bidQty: ev.BidQty,
			ask: ev.Ask, askQty: ev.AskQty,
			at: time.Now(),
		})
	case strings.HasSuffix(env.Stream, "@trade"):
		var ev tradeEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("trade event: %w", err)
		}
		if ev.Symbol == "" || ev.Price <= 0 {
			return fmt.Errorf("invalid trade for %q: price=%f", ev.Symbol, ev.Price)
		}
		at := time.UnixMilli(ev.TradeTs)
		if ev.TradeTs == 0 {
			at = time.Now()
		}
		c.cache.setLast(ev.Symbol, ev.Price, at)
	}
	return nil
}
