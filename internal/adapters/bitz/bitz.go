// Package bitz implements the Bit-Z spot adapter.
package bitz

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/base"
	"github.com/exbridge/exbridge/internal/codec"
	"github.com/exbridge/exbridge/internal/ordercache"
	"github.com/exbridge/exbridge/schema"
)

const (
	// Name is the registry key.
	Name = "bitz"

	defaultBaseURL = "https://api.bit-z.com/api_v1"

	// Per-second nonce windows restart counting above this floor.
	nonceBase = 100000
)

var timeframes = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"1d":  "1d",
}

// Adapter talks to the Bit-Z REST API.
type Adapter struct {
	*base.Client
	nonces *codec.TickCounter
}

// RegisterFactory installs the adapter factory into the registry.
func RegisterFactory(reg *exchange.Registry) {
	reg.Register(Name, func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts), nil
	})
}

// New builds a Bit-Z adapter.
func New(opts exchange.Options) *Adapter {
	client := base.New(Name, opts)
	return &Adapter{
		Client: client,
		nonces: codec.NewTickCounter(client.Now, time.Second, nonceBase),
	}
}

func (a *Adapter) baseURL() string {
	if url := a.Settings().BaseURL; url != "" {
		return strings.TrimSuffix(url, "/")
	}
	return defaultBaseURL
}

func (a *Adapter) publicGet(ctx context.Context, path string, params codec.Params) ([]byte, error) {
	url := a.baseURL() + "/" + path
	if len(params) > 0 {
		url += "?" + codec.URLEncode(params)
	}
	resp, err := a.Do(ctx, &exchange.Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

// privatePost signs the sorted form body by appending an MD5 digest of the
// body concatenated with the secret. The timestamp and nonce come from a
// per-second counter window.
func (a *Adapter) privatePost(ctx context.Context, path string, params codec.Params) ([]byte, error) {
	if err := a.RequireCredentials(); err != nil {
		return nil, err
	}
	creds := a.Credentials()
	tick, seq := a.nonces.Next()
	signed := params.Clone(codec.Params{
		"api_key":   creds.APIKey,
		"timestamp": strconv.FormatInt(tick, 10),
		"nonce":     strconv.FormatInt(seq, 10),
	})
	body := codec.URLEncode(signed)
	body += "&sign=" + codec.HexHash(codec.MD5, body+creds.APISecret)

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.Do(ctx, &exchange.Request{
		Method: http.MethodPost,
		URL:    a.baseURL() + "/" + path,
		Header: header,
		Body:   []byte(body),
	})
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

// FetchMarkets derives the market list from the all-tickers endpoint; the
// venue has no dedicated market catalog.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]schema.Market, error) {
	raw, err := a.publicGet(ctx, "tickerall", nil)
	if err != nil {
		return nil, err
	}
	return parseMarkets(raw)
}

func (a *Adapter) loadMarkets(ctx context.Context) ([]schema.Market, error) {
	return a.FetchMarkets(ctx)
}

// FetchTicker returns the ticker for one symbol.
func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (schema.Ticker, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Ticker{}, err
	}
	raw, err := a.publicGet(ctx, "ticker", codec.Params{"coin": market.ID})
	if err != nil {
		return schema.Ticker{}, err
	}
	return parseTicker(raw, symbol)
}

// FetchTickers returns tickers for the requested symbols, or all markets.
// Rare pairs arrive as boolean false and are skipped.
func (a *Adapter) FetchTickers(ctx context.Context, symbols []string) (map[string]schema.Ticker, error) {
	cat, err := a.Catalog(ctx, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "tickerall", nil)
	if err != nil {
		return nil, err
	}
	return parseAllTickers(raw, cat, symbols)
}

// FetchOrderBook returns the depth for a symbol.
func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (schema.OrderBook, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.OrderBook{}, err
	}
	raw, err := a.publicGet(ctx, "depth", codec.Params{"coin": market.ID})
	if err != nil {
		return schema.OrderBook{}, err
	}
	return parseOrderBook(raw, symbol)
}

// FetchTrades returns public trades. The venue reports only a wall-clock
// time of day in Hong Kong time, which is combined with the current date.
func (a *Adapter) FetchTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "orders", codec.Params{"coin": market.ID})
	if err != nil {
		return nil, err
	}
	return parseTrades(raw, symbol, a.Now(), since, limit)
}

// FetchOHLCV returns candles for a symbol and timeframe.
func (a *Adapter) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]schema.OHLCV, error) {
	if timeframe == "" {
		timeframe = "1m"
	}
	venueTimeframe, ok := timeframes[timeframe]
	if !ok {
		return nil, errs.NotSupported(Name, "fetchOHLCV timeframe "+timeframe)
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "kline", codec.Params{
		"coin": market.ID,
		"type": venueTimeframe,
	})
	if err != nil {
		return nil, err
	}
	return parseOHLCV(raw, since, limit)
}

// FetchBalance returns account balances.
func (a *Adapter) FetchBalance(ctx context.Context) (schema.Balances, error) {
	raw, err := a.privatePost(ctx, "balances", nil)
	if err != nil {
		return schema.Balances{}, err
	}
	return parseBalances(raw)
}

// CreateOrder places a limit order. The venue additionally requires the
// trade password and acknowledges with the id only.
func (a *Adapter) CreateOrder(ctx context.Context, symbol string, orderType schema.OrderType, side schema.TradeSide, amount float64, price *float64) (schema.Order, error) {
	if orderType != schema.OrderTypeLimit {
		return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("only limit orders are accepted"))
	}
	if price == nil {
		return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("limit order requires a price"))
	}
	if a.Credentials().Password == "" {
		return schema.Order{}, errs.New(Name, errs.CodeAuthentication,
			errs.WithMessage("createOrder requires the trade password"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Order{}, err
	}
	orderSide := "out"
	if side == schema.TradeSideBuy {
		orderSide = "in"
	}
	raw, err := a.privatePost(ctx, "tradeAdd", codec.Params{
		"coin":     market.ID,
		"type":     orderSide,
		"price":    strconv.FormatFloat(*price, 'f', -1, 64),
		"number":   strconv.FormatFloat(amount, 'f', -1, 64),
		"tradepwd": a.Credentials().Password,
	})
	if err != nil {
		return schema.Order{}, err
	}
	id, err := parseOrderID(raw)
	if err != nil {
		return schema.Order{}, err
	}
	order := schema.Order{
		ID:        id,
		Timestamp: a.Now().UnixMilli(),
		Status:    schema.OrderStatusOpen,
		Symbol:    symbol,
		Type:      orderType,
		Side:      side,
		Price:     price,
		Amount:    schema.Float(amount),
		Filled:    schema.Float(0),
		Info:      raw,
	}
	order.DeriveRemaining()
	a.Orders.Upsert(order)
	return order, nil
}

// CancelOrder cancels an order by id alone.
func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	if _, err := a.privatePost(ctx, "tradeCancel", codec.Params{"id": id}); err != nil {
		return err
	}
	a.Orders.MarkCanceled(id)
	return nil
}

func (a *Adapter) refreshOrders(ctx context.Context, symbol string) error {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return err
	}
	raw, err := a.privatePost(ctx, "openOrders", codec.Params{"coin": market.ID})
	if err != nil {
		return err
	}
	orders, err := parseOpenOrders(raw, symbol)
	if err != nil {
		return err
	}
	a.Orders.ApplyOpenOrders(orders, symbol)
	return nil
}

// FetchOrder resolves an order from the tracked order set, refreshing it
// from the open-orders endpoint first when a symbol is given.
func (a *Adapter) FetchOrder(ctx context.Context, id, symbol string) (schema.Order, error) {
	if symbol != "" {
		if err := a.refreshOrders(ctx, symbol); err != nil {
			return schema.Order{}, err
		}
	}
	if order, ok := a.Orders.Get(id); ok {
		return order, nil
	}
	return schema.Order{}, errs.New(Name, errs.CodeOrderNotFound, errs.WithMessage(id))
}

// FetchOpenOrders lists live orders for a symbol.
func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	if symbol == "" {
		return nil, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("fetchOpenOrders requires a symbol"))
	}
	if err := a.refreshOrders(ctx, symbol); err != nil {
		return nil, err
	}
	open := ordercache.FilterStatus(a.Orders.Snapshot(), schema.OrderStatusOpen)
	return ordercache.Filter(open, symbol, since, limit), nil
}

// FetchClosedOrders reports orders the tracked set saw leave the book; the
// venue has no order history endpoint.
func (a *Adapter) FetchClosedOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	if symbol != "" {
		if err := a.refreshOrders(ctx, symbol); err != nil {
			return nil, err
		}
	}
	closed := ordercache.FilterStatus(a.Orders.Snapshot(), schema.OrderStatusClosed)
	return ordercache.Filter(closed, symbol, since, limit), nil
}

// FetchMyTrades is not offered by this API surface.
func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	return nil, errs.NotSupported(Name, "fetchMyTrades")
}

// Withdraw is not offered by this API surface.
func (a *Adapter) Withdraw(ctx context.Context, currency string, amount float64, address, tag string) (string, error) {
	return "", errs.NotSupported(Name, "withdraw")
}
