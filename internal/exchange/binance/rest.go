package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const recvWindow = "5000"

// APIError is an order- or account-level rejection reported by the exchange
// with an HTTP 4xx status. Transport failures and 5xx responses are plain
// errors; only APIError is safe to treat as iteration-local.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: status %d code %d: %s", e.Status, e.Code, e.Msg)
}

type apiErrBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// OrderRequest describes one order submission. Price is consulted for LIMIT
// orders only.
type OrderRequest struct {
	Symbol        string
	Side          string
	Type          string
	Qty           float64
	Price         float64
	ClientOrderID string
}

// OrderAck is the exchange's acknowledgement of an accepted order.
type OrderAck struct {
	OrderID       int64
	ClientOrderID string
	Status        string
	ExecutedQty   float64
	AvgPrice      float64
}

type orderResp struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
	CumQuoteQty   string `json:"cummulativeQuoteQty"`
}

type bookTickerResp struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

type priceResp struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (c *Client) ping(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Get(c.base + "/api/v3/ping")
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ping: status %d", resp.StatusCode())
	}
	return nil
}

// accountProbe performs a signed account read. It is the enforcement point
// for credentials: empty or wrong keys fail here with the exchange's
// rejection. The USDT balance it reports seeds the session equity.
func (c *Client) accountProbe(ctx context.Context) error {
	var acct struct {
		CanTrade bool `json:"canTrade"`
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := c.signedGet(ctx, "/api/v3/account", url.Values{}, &acct); err != nil {
		return fmt.Errorf("account probe: %w", err)
	}

	for _, b := range acct.Balances {
		if b.Asset != "USDT" {
			continue
		}
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		c.mu.Lock()
		c.equity = free + locked
		c.mu.Unlock()
		break
	}
	return nil
}

func (c *Client) bookTicker(ctx context.Context, symbol string) (bookTickerResp, error) {
	var bt bookTickerResp
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&bt).
		Get(c.base + "/api/v3/ticker/bookTicker")
	if err != nil {
		return bookTickerResp{}, fmt.Errorf("book ticker %s: %w", symbol, err)
	}
	if resp.IsError() {
		return bookTickerResp{}, fmt.Errorf("book ticker %s: status %d", symbol, resp.StatusCode())
	}
	return bt, nil
}

func (c *Client) lastPrice(ctx context.Context, symbol string) (float64, error) {
	var pr priceResp
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&pr).
		Get(c.base + "/api/v3/ticker/price")
	if err != nil {
		return 0, fmt.Errorf("ticker price %s: %w", symbol, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("ticker price %s: status %d", symbol, resp.StatusCode())
	}
	return strconv.ParseFloat(pr.Price, 64)
}

// PlaceOrder submits one order. Exchange rejections (4xx with a code/msg
// body) come back as *APIError; anything else is a transport or exchange
// outage and fatal to the caller's session.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", req.Type)
	params.Set("quantity", formatQty(req.Qty))
	params.Set("newClientOrderId", req.ClientOrderID)
	if req.Type == "LIMIT" {
		params.Set("price", formatQty(req.Price))
		params.Set("timeInForce", "GTC")
	}

	var (
		ord    orderResp
		apiErr apiErrBody
	)
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.key).
		SetQueryString(c.signQuery(params)).
		SetResult(&ord).
		SetError(&apiErr).
		Post(c.base + "/api/v3/order")
	if err != nil {
		return OrderAck{}, fmt.Errorf("order request: %w", err)
	}
	if resp.IsError() {
		if resp.StatusCode() >= 500 {
			return OrderAck{}, fmt.Errorf("exchange unavailable: status %d", resp.StatusCode())
		}
		return OrderAck{}, &APIError{Status: resp.StatusCode(), Code: apiErr.Code, Msg: apiErr.Msg}
	}

	executed, _ := strconv.ParseFloat(ord.ExecutedQty, 64)
	cumQuote, _ := strconv.ParseFloat(ord.CumQuoteQty, 64)
	ack := OrderAck{
		OrderID:       ord.OrderID,
		ClientOrderID: ord.ClientOrderID,
		Status:        ord.Status,
		ExecutedQty:   executed,
	}
	if executed > 0 {
		ack.AvgPrice = cumQuote / executed
	}
	return ack, nil
}

func (c *Client) signedGet(ctx context.Context, path string, params url.Values, result any) error {
	var apiErr apiErrBody
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.key).
		SetQueryString(c.signQuery(params)).
		SetResult(result).
		SetError(&apiErr).
		Get(c.base + path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Code: apiErr.Code, Msg: apiErr.Msg}
	}
	return nil
}

// signQuery stamps and signs the parameter set. url.Values.Encode sorts
// keys, so the signed string and the sent string always agree.
func (c *Client) signQuery(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)
	qs := params.Encode()
	return qs + "&signature=" + Sign(c.secret, qs)
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

func parsePrice(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	return f, nil
}
