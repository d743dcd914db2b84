package binance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheOnlyClient() *Client {
	return &Client{cache: newQuoteCache()}
}

func TestHandleStreamMessageBookTicker(t *testing.T) {
	c := newCacheOnlyClient()

	msg := []byte(`{"stream":"btcusdt@bookTicker","data":{"u":400900217,"s":"BTCUSDT","b":"25000.10","B":"1.5","a":"25000.90","A":"2.25"}}`)
	require.NoError(t, c.handleStreamMessage(msg))

	snap, ok := c.cache.snapshot("BTCUSDT", time.Now())
	require.True(t, ok, "expected a fresh cached quote")
	assert.Equal(t, 25000.10, snap.Bid)
	assert.Equal(t, 1.5, snap.BidQty)
	assert.Equal(t, 25000.90, snap.Ask)
	assert.Equal(t, 2.25, snap.AskQty)
	// No trade seen yet: last price falls back to the mid.
	assert.InDelta(t, 25000.50, snap.Last, 1e-9)
	assert.Contains(t, snap.Quotes, "BTCUSDT")
}

func TestHandleStreamMessageTrade(t *testing.T) {
	c := newCacheOnlyClient()

	require.NoError(t, c.handleStreamMessage(
		[]byte(`{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"100.0","B":"1","a":"102.0","A":"1"}}`)))
	require.NoError(t, c.handleStreamMessage(
		[]byte(`{"stream":"btcusdt@trade","data":{"e":"trade","s":"BTCUSDT","p":"101.5","q":"0.25","T":1700000000000}}`)))

	snap, ok := c.cache.snapshot("BTCUSDT", time.Now())
	require.True(t, ok)
	assert.Equal(t, 101.5, snap.Last)
}

func TestHandleStreamMessageRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"not json", `{{{`},
		{"crossed book", `{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"102.0","B":"1","a":"100.0","A":"1"}}`},
		{"zero bid", `{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"0","B":"1","a":"100.0","A":"1"}}`},
		{"missing symbol", `{"stream":"btcusdt@trade","data":{"p":"101.5","q":"0.25"}}`},
		{"negative trade price", `{"stream":"btcusdt@trade","data":{"s":"BTCUSDT","p":"-5","q":"0.25"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCacheOnlyClient()
			assert.Error(t, c.handleStreamMessage([]byte(tt.msg)))
			_, ok := c.cache.snapshot("BTCUSDT", time.Now())
			assert.False(t, ok, "bad payload must not populate the cache")
		})
	}
}

func TestHandleStreamMessageIgnoresOtherStreams(t *testing.T) {
	c := newCacheOnlyClient()
	assert.NoError(t, c.handleStreamMessage([]byte(`{"stream":"btcusdt@depth","data":{"bids":[]}}`)))
	assert.NoError(t, c.handleStreamMessage([]byte(`{"result":null,"id":1}`)))
}

func TestSnapshotStaleness(t *testing.T) {
	c := newCacheOnlyClient()
	c.cache.setQuote("BTCUSDT", cachedQuote{
		bid: 100, bidQty: 1, ask: 101, askQty: 1,
		at: time.Now().Add(-time.Minute),
	})

	_, ok := c.cache.snapshot("BTCUSDT", time.Now())
	assert.False(t, ok, "stale quotes must not serve snapshots")
}

func TestSnapshotOmitsStaleLegs(t *testing.T) {
	c := newCacheOnlyClient()
	now := time.Now()
	c.cache.setQuote("BTCUSDT", cachedQuote{bid: 100, bidQty: 1, ask: 101, askQty: 1, at: now})
	c.cache.setQuote("ETHUSDT", cachedQuote{bid: 10, bidQty: 1, ask: 11, askQty: 1, at: now.Add(-time.Minute)})

	snap, ok := c.cache.snapshot("BTCUSDT", now)
	require.True(t, ok)
	assert.Contains(t, snap.Quotes, "BTCUSDT")
	assert.NotContains(t, snap.Quotes, "ETHUSDT")
}

func TestStreamURL(t *testing.T) {
	u := streamURL("wss://example.test", []string{"BTCUSDT", "ETHBTC"})
	assert.Equal(t,
		"wss://example.test/stream?streams=btcusdt@bookTicker/btcusdt@trade/ethbtc@bookTicker/ethbtc@trade",
		u)
}
