// Package lbank implements the LBank spot adapter.
package lbank

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/base"
	"github.com/exbridge/exbridge/internal/codec"
	"github.com/exbridge/exbridge/internal/ordercache"
	"github.com/exbridge/exbridge/schema"
)

const (
	// Name is the registry key.
	Name = "lbank"

	defaultBaseURL = "https://api.lbank.info/v1"
	maxDepthSize   = 60
)

var timeframes = map[string]string{
	"1m":  "minute1",
	"5m":  "minute5",
	"15m": "minute15",
	"30m": "minute30",
	"1h":  "hour1",
	"2h":  "hour2",
	"4h":  "hour4",
	"6h":  "hour6",
	"8h":  "hour8",
	"12h": "hour12",
	"1d":  "day1",
	"1w":  "week1",
}

// Adapter talks to the LBank REST API. Every endpoint path ends in ".do".
type Adapter struct {
	*base.Client
}

// RegisterFactory installs the adapter factory into the registry.
func RegisterFactory(reg *exchange.Registry) {
	reg.Register(Name, func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts), nil
	})
}

// New builds an LBank adapter.
func New(opts exchange.Options) *Adapter {
	return &Adapter{Client: base.New(Name, opts)}
}

func (a *Adapter) baseURL() string {
	if url := a.Settings().BaseURL; url != "" {
		return strings.TrimSuffix(url, "/")
	}
	return defaultBaseURL
}

func (a *Adapter) endpoint(path string) string {
	return a.baseURL() + "/" + path + ".do"
}

func (a *Adapter) publicGet(ctx context.Context, path string, params codec.Params) ([]byte, error) {
	url := a.endpoint(path)
	if len(params) > 0 {
		url += "?" + codec.URLEncode(params)
	}
	resp, err := a.Do(ctx, &exchange.Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

// privatePost signs the sorted raw query with MD5 over an appended secret
// and posts the form with the upper-cased digest as the sign parameter.
func (a *Adapter) privatePost(ctx context.Context, path string, params codec.Params) ([]byte, error) {
	if err := a.RequireCredentials(); err != nil {
		return nil, err
	}
	creds := a.Credentials()
	signed := params.Clone(codec.Params{"api_key": creds.APIKey})
	digest := codec.HexHash(codec.MD5, codec.RawEncode(signed)+"&secret_key="+creds.APISecret)
	signed["sign"] = strings.ToUpper(digest)

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.Do(ctx, &exchange.Request{
		Method: http.MethodPost,
		URL:    a.endpoint(path),
		Header: header,
		Body:   []byte(codec.URLEncode(signed)),
	})
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

// FetchMarkets lists currency pairs.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]schema.Market, error) {
	raw, err := a.publicGet(ctx, "currencyPairs", nil)
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
	raw, err := a.publicGet(ctx, "ticker", codec.Params{"symbol": market.ID})
	if err != nil {
		return schema.Ticker{}, err
	}
	return parseTicker(raw, symbol)
}

// FetchTickers returns tickers for the requested symbols, or all markets.
func (a *Adapter) FetchTickers(ctx context.Context, symbols []string) (map[string]schema.Ticker, error) {
	cat, err := a.Catalog(ctx, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "ticker", codec.Params{"symbol": "all"})
	if err != nil {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	wanted := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		wanted[symbol] = true
	}
	out := make(map[string]schema.Ticker, len(entries))
	for _, entry := range entries {
		var probe struct {
			Symbol string `json:"symbol"`
		}
		if err := json.Unmarshal(entry, &probe); err != nil {
			continue
		}
		market, ok := cat.ByID(probe.Symbol)
		if !ok {
			continue
		}
		if len(wanted) > 0 && !wanted[market.Symbol] {
			continue
		}
		ticker, err := parseTicker(entry, market.Symbol)
		if err != nil {
			return nil, err
		}
		out[market.Symbol] = ticker
	}
	return out, nil
}

// FetchOrderBook returns the depth for a symbol. The venue caps size at 60.
func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (schema.OrderBook, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.OrderBook{}, err
	}
	if limit <= 0 || limit > maxDepthSize {
		limit = maxDepthSize
	}
	raw, err := a.publicGet(ctx, "depth", codec.Params{
		"symbol": market.ID,
		"size":   strconv.Itoa(limit),
	})
	if err != nil {
		return schema.OrderBook{}, err
	}
	return parseOrderBook(raw, symbol)
}

// FetchTrades returns public trades for a symbol.
func (a *Adapter) FetchTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	params := codec.Params{"symbol": market.ID, "size": "100"}
	if since > 0 {
		params["time"] = strconv.FormatInt(since/1000, 10)
	}
	if limit > 0 {
		params["size"] = strconv.Itoa(limit)
	}
	raw, err := a.publicGet(ctx, "trades", params)
	if err != nil {
		return nil, err
	}
	return parseTrades(raw, symbol, since, limit)
}

// FetchOHLCV returns candles. The venue requires both a start time and a
// row count.
func (a *Adapter) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]schema.OHLCV, error) {
	if timeframe == "" {
		timeframe = "5m"
	}
	venueTimeframe, ok := timeframes[timeframe]
	if !ok {
		return nil, errs.NotSupported(Name, "fetchOHLCV timeframe "+timeframe)
	}
	if since <= 0 {
		return nil, errs.New(Name, errs.CodeExchange,
			errs.WithMessage("fetchOHLCV requires a since argument"))
	}
	if limit <= 0 {
		return nil, errs.New(Name, errs.CodeExchange,
			errs.WithMessage("fetchOHLCV requires a limit argument"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "kline", codec.Params{
		"symbol": market.ID,
		"type":   venueTimeframe,
		"size":   strconv.Itoa(limit),
		"time":   strconv.FormatInt(since/1000, 10),
	})
	if err != nil {
		return nil, err
	}
	return parseOHLCV(raw)
}

// FetchBalance returns account balances.
func (a *Adapter) FetchBalance(ctx context.Context) (schema.Balances, error) {
	raw, err := a.privatePost(ctx, "user_info", nil)
	if err != nil {
		return schema.Balances{}, err
	}
	return parseBalances(raw)
}

// CreateOrder places an order. The venue only acknowledges with an id, so
// the full order is synthesized locally and cached.
func (a *Adapter) CreateOrder(ctx context.Context, symbol string, orderType schema.OrderType, side schema.TradeSide, amount float64, price *float64) (schema.Order, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Order{}, err
	}
	params := codec.Params{
		"symbol": market.ID,
		"type":   string(side),
		"amount": strconv.FormatFloat(amount, 'f', -1, 64),
	}
	if orderType == schema.OrderTypeMarket {
		params["type"] += "_market"
	} else {
		if price == nil {
			return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
				errs.WithMessage("limit order requires a price"))
		}
		params["price"] = strconv.FormatFloat(*price, 'f', -1, 64)
	}
	raw, err := a.privatePost(ctx, "create_order", params)
	if err != nil {
		return schema.Order{}, err
	}
	var ack struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil || ack.OrderID == "" {
		return schema.Order{}, errs.New(Name, errs.CodeExchange,
			errs.WithMessage("create_order response carried no order id"))
	}
	order := schema.Order{
		ID:        ack.OrderID,
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

// CancelOrder cancels an order. The venue requires the market.
func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	if symbol == "" {
		return errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("cancelOrder requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return err
	}
	if _, err := a.privatePost(ctx, "cancel_order", codec.Params{
		"symbol":   market.ID,
		"order_id": id,
	}); err != nil {
		return err
	}
	a.Orders.MarkCanceled(id)
	return nil
}

// FetchOrder returns one order by id. The venue requires the market.
func (a *Adapter) FetchOrder(ctx context.Context, id, symbol string) (schema.Order, error) {
	if symbol == "" {
		return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("fetchOrder requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Order{}, err
	}
	raw, err := a.privatePost(ctx, "orders_info", codec.Params{
		"symbol":   market.ID,
		"order_id": id,
	})
	if err != nil {
		return schema.Order{}, err
	}
	orders, err := parseOrderList(raw, market)
	if err != nil {
		return schema.Order{}, err
	}
	if len(orders) == 0 {
		return schema.Order{}, errs.New(Name, errs.CodeOrderNotFound, errs.WithMessage(id))
	}
	return orders[0], nil
}

func (a *Adapter) fetchOrderHistory(ctx context.Context, symbol string, limit int) ([]schema.Order, error) {
	if symbol == "" {
		return nil, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("order listing requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	raw, err := a.privatePost(ctx, "orders_info_history", codec.Params{
		"symbol":       market.ID,
		"current_page": "1",
		"page_length":  strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	return parseOrderList(raw, market)
}

// FetchOpenOrders lists live orders. The venue's status filter is broken, so
// the full history page is filtered locally.
func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	orders, err := a.fetchOrderHistory(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	open := ordercache.FilterStatus(orders, schema.OrderStatusOpen)
	return ordercache.Filter(open, "", since, limit), nil
}

// FetchClosedOrders lists finished orders, canceled ones included since they
// may be partially filled.
func (a *Adapter) FetchClosedOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	orders, err := a.fetchOrderHistory(ctx, symbol, 0)
	if err != nil {
		return nil, err
	}
	done := make([]schema.Order, 0, len(orders))
	for _, order := range orders {
		if order.Status == schema.OrderStatusClosed || order.Status == schema.OrderStatusCanceled {
			done = append(done, order)
		}
	}
	return ordercache.Filter(done, "", since, limit), nil
}

// FetchMyTrades is not offered by this API surface.
func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	return nil, errs.NotSupported(Name, "fetchMyTrades")
}

// Withdraw is not offered by this API surface.
func (a *Adapter) Withdraw(ctx context.Context, currency string, amount float64, address, tag string) (string, error) {
	return "", errs.NotSupported(Name, "withdraw")
}
