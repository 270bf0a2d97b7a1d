// Package coinex implements the CoinEx spot adapter.
package coinex

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
	"github.com/exbridge/exbridge/schema"
)

const (
	// Name is the registry key.
	Name = "coinex"

	defaultBaseURL = "https://api.coinex.com/v1"
	depthMerge     = "0.00000001"
)

var timeframes = map[string]string{
	"1m":  "1min",
	"3m":  "3min",
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"1h":  "1hour",
	"2h":  "2hour",
	"4h":  "4hour",
	"6h":  "6hour",
	"12h": "12hour",
	"1d":  "1day",
	"3d":  "3day",
	"1w":  "1week",
}

// Adapter talks to the CoinEx REST API.
type Adapter struct {
	*base.Client
}

// RegisterFactory installs the adapter factory into the registry.
func RegisterFactory(reg *exchange.Registry) {
	reg.Register(Name, func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts), nil
	})
}

// New builds a CoinEx adapter.
func New(opts exchange.Options) *Adapter {
	return &Adapter{Client: base.New(Name, opts)}
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
	return a.checkResponse(resp)
}

// private signs the sorted query string with MD5 over the shared secret and
// sends the upper-cased digest in the Authorization header. GET and DELETE
// carry the parameters in the URL, POST as a JSON body.
func (a *Adapter) private(ctx context.Context, method, path string, params codec.Params) ([]byte, error) {
	if err := a.RequireCredentials(); err != nil {
		return nil, err
	}
	creds := a.Credentials()
	signed := params.Clone(codec.Params{
		"access_id": creds.APIKey,
		"tonce":     strconv.FormatInt(a.Nonces.Next(), 10),
	})
	encoded := codec.URLEncode(signed)
	signature := strings.ToUpper(codec.HexHash(codec.MD5, encoded+"&secret_key="+creds.APISecret))

	header := http.Header{}
	header.Set("Authorization", signature)
	header.Set("Content-Type", "application/json")

	req := &exchange.Request{Method: method, URL: a.baseURL() + "/" + path, Header: header}
	if method == http.MethodPost {
		body, err := json.Marshal(signed)
		if err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		req.Body = body
	} else {
		req.URL += "?" + encoded
	}
	resp, err := a.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.checkResponse(resp)
}

// FetchMarkets lists markets. The venue reports bare concatenated ids; the
// last three characters name the base currency.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]schema.Market, error) {
	raw, err := a.publicGet(ctx, "market/list", nil)
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
	raw, err := a.publicGet(ctx, "market/ticker", codec.Params{"market": market.ID})
	if err != nil {
		return schema.Ticker{}, err
	}
	var payload struct {
		Date   int64           `json:"date"`
		Ticker json.RawMessage `json:"ticker"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Ticker{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	return parseTicker(payload.Ticker, symbol, payload.Date)
}

// FetchTickers returns tickers for the requested symbols, or all markets.
func (a *Adapter) FetchTickers(ctx context.Context, symbols []string) (map[string]schema.Ticker, error) {
	cat, err := a.Catalog(ctx, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "market/ticker/all", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Date   int64                      `json:"date"`
		Ticker map[string]json.RawMessage `json:"ticker"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	wanted := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		wanted[symbol] = true
	}
	out := make(map[string]schema.Ticker, len(payload.Ticker))
	for id, entry := range payload.Ticker {
		market, ok := cat.ByID(id)
		if !ok {
			continue
		}
		if len(wanted) > 0 && !wanted[market.Symbol] {
			continue
		}
		ticker, err := parseTicker(entry, market.Symbol, payload.Date)
		if err != nil {
			return nil, err
		}
		out[market.Symbol] = ticker
	}
	return out, nil
}

// FetchOrderBook returns the depth for a symbol.
func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (schema.OrderBook, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.OrderBook{}, err
	}
	params := codec.Params{"market": market.ID, "merge": depthMerge}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	raw, err := a.publicGet(ctx, "market/depth", params)
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
	raw, err := a.publicGet(ctx, "market/deals", codec.Params{"market": market.ID})
	if err != nil {
		return nil, err
	}
	return parseTrades(raw, symbol, since, limit)
}

// FetchOHLCV returns candles for a symbol and timeframe.
func (a *Adapter) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]schema.OHLCV, error) {
	if timeframe == "" {
		timeframe = "5m"
	}
	venueTimeframe, ok := timeframes[timeframe]
	if !ok {
		return nil, errs.NotSupported(Name, "fetchOHLCV timeframe "+timeframe)
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "market/kline", codec.Params{
		"market": market.ID,
		"type":   venueTimeframe,
	})
	if err != nil {
		return nil, err
	}
	return parseOHLCV(raw, since, limit)
}

// FetchBalance returns account balances.
func (a *Adapter) FetchBalance(ctx context.Context) (schema.Balances, error) {
	raw, err := a.private(ctx, http.MethodGet, "balance", nil)
	if err != nil {
		return schema.Balances{}, err
	}
	return parseBalances(raw)
}

// CreateOrder places a limit or market order.
func (a *Adapter) CreateOrder(ctx context.Context, symbol string, orderType schema.OrderType, side schema.TradeSide, amount float64, price *float64) (schema.Order, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Order{}, err
	}
	params := codec.Params{
		"market": market.ID,
		"amount": strconv.FormatFloat(amount, 'f', -1, 64),
		"type":   string(side),
	}
	path := "order/market"
	if orderType == schema.OrderTypeLimit {
		if price == nil {
			return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
				errs.WithMessage("limit order requires a price"))
		}
		path = "order/limit"
		params["price"] = strconv.FormatFloat(*price, 'f', -1, 64)
	}
	raw, err := a.private(ctx, http.MethodPost, path, params)
	if err != nil {
		return schema.Order{}, err
	}
	order, err := parseOrder(raw, market)
	if err != nil {
		return schema.Order{}, err
	}
	a.Orders.Upsert(order)
	return order, nil
}

// CancelOrder cancels a pending order. The venue requires the market.
func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	if symbol == "" {
		return errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("cancelOrder requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return err
	}
	raw, err := a.private(ctx, http.MethodDelete, "order/pending", codec.Params{
		"id":     id,
		"market": market.ID,
	})
	if err != nil {
		return err
	}
	if order, err := parseOrder(raw, market); err == nil {
		order.Status = schema.OrderStatusCanceled
		a.Orders.Upsert(order)
	}
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
	raw, err := a.private(ctx, http.MethodGet, "order", codec.Params{
		"id":     id,
		"market": market.ID,
	})
	if err != nil {
		return schema.Order{}, err
	}
	return parseOrder(raw, market)
}

// FetchOpenOrders lists pending orders for a symbol.
func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	return a.fetchOrderPage(ctx, "order/pending", symbol, since, limit)
}

// FetchClosedOrders lists finished orders for a symbol.
func (a *Adapter) FetchClosedOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	return a.fetchOrderPage(ctx, "order/finished", symbol, since, limit)
}

func (a *Adapter) fetchOrderPage(ctx context.Context, path, symbol string, since int64, limit int) ([]schema.Order, error) {
	if symbol == "" {
		return nil, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("order listing requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	params := codec.Params{"market": market.ID, "page": "1"}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	} else {
		params["limit"] = "100"
	}
	raw, err := a.private(ctx, http.MethodGet, path, params)
	if err != nil {
		return nil, err
	}
	return parseOrderPage(raw, market, since)
}

// FetchMyTrades lists the account's fills for a symbol.
func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	if symbol == "" {
		return nil, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("fetchMyTrades requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.private(ctx, http.MethodGet, "order/user/deals", codec.Params{
		"market": market.ID,
		"page":   "1",
		"limit":  "100",
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	return parseTradeList(payload.Data, symbol, since, limit)
}

// Withdraw is not offered by this API surface.
func (a *Adapter) Withdraw(ctx context.Context, currency string, amount float64, address, tag string) (string, error) {
	return "", errs.NotSupported(Name, "withdraw")
}
