// Package zb implements the ZB spot adapter.
package zb

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
	Name = "zb"

	// The venue serves market data over plain http only.
	defaultPublicURL  = "http://api.zb.com/data/v1"
	defaultPrivateURL = "https://trade.zb.com/api"
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

// Adapter talks to the ZB REST API. Market data and trading live on separate
// hosts with separate signing rules.
type Adapter struct {
	*base.Client
}

// RegisterFactory installs the adapter factory into the registry.
func RegisterFactory(reg *exchange.Registry) {
	reg.Register(Name, func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts), nil
	})
}

// New builds a ZB adapter.
func New(opts exchange.Options) *Adapter {
	return &Adapter{Client: base.New(Name, opts)}
}

func (a *Adapter) publicURL() string {
	if url := a.Settings().PublicURL; url != "" {
		return strings.TrimSuffix(url, "/")
	}
	return defaultPublicURL
}

func (a *Adapter) privateURL() string {
	if url := a.Settings().BaseURL; url != "" {
		return strings.TrimSuffix(url, "/")
	}
	return defaultPrivateURL
}

func (a *Adapter) publicGet(ctx context.Context, path string, params codec.Params) ([]byte, error) {
	url := a.publicURL() + "/" + path
	if len(params) > 0 {
		url += "?" + codec.URLEncode(params)
	}
	resp, err := a.Do(ctx, &exchange.Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

// privateGet signs the sorted raw query with HMAC-MD5 keyed by the SHA1 hex
// digest of the secret, then appends sign and reqTime to the query string.
func (a *Adapter) privateGet(ctx context.Context, method string, params codec.Params) ([]byte, error) {
	if err := a.RequireCredentials(); err != nil {
		return nil, err
	}
	creds := a.Credentials()
	query := params.Clone(codec.Params{
		"method":    method,
		"accesskey": creds.APIKey,
	})
	auth := codec.RawEncode(query)
	secret := codec.HexHash(codec.SHA1, creds.APISecret)
	signature := codec.HexHMAC(codec.MD5, auth, secret)
	url := a.privateURL() + "/" + method + "?" + auth +
		"&sign=" + signature + "&reqTime=" + strconv.FormatInt(a.Nonces.Next(), 10)
	resp, err := a.Do(ctx, &exchange.Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	return checkResponse(resp)
}

// FetchMarkets lists markets with their venue-reported scales.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]schema.Market, error) {
	raw, err := a.publicGet(ctx, "markets", nil)
	if err != nil {
		return nil, err
	}
	return parseMarkets(raw)
}

func (a *Adapter) loadMarkets(ctx context.Context) ([]schema.Market, error) {
	return a.FetchMarkets(ctx)
}

// FetchTicker returns the ticker for one symbol. The venue sends no
// timestamp, so the local clock is used.
func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (schema.Ticker, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Ticker{}, err
	}
	raw, err := a.publicGet(ctx, "ticker", codec.Params{"market": market.ID})
	if err != nil {
		return schema.Ticker{}, err
	}
	return parseTicker(raw, symbol, a.Now().UnixMilli())
}

// FetchTickers emulates a bulk ticker endpoint with bounded concurrent
// per-symbol fetches.
func (a *Adapter) FetchTickers(ctx context.Context, symbols []string) (map[string]schema.Ticker, error) {
	if len(symbols) == 0 {
		cat, err := a.Catalog(ctx, a.loadMarkets)
		if err != nil {
			return nil, err
		}
		for _, market := range cat.Markets() {
			symbols = append(symbols, market.Symbol)
		}
	}
	return a.FanOutTickers(ctx, symbols, a.FetchTicker)
}

// FetchOrderBook returns the depth for a symbol.
func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (schema.OrderBook, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.OrderBook{}, err
	}
	params := codec.Params{"market": market.ID}
	if limit > 0 {
		params["size"] = strconv.Itoa(limit)
	}
	raw, err := a.publicGet(ctx, "depth", params)
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
	raw, err := a.publicGet(ctx, "trades", codec.Params{"market": market.ID})
	if err != nil {
		return nil, err
	}
	return parseTrades(raw, symbol, since, limit)
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
	if limit <= 0 {
		limit = 1000
	}
	params := codec.Params{
		"market": market.ID,
		"type":   venueTimeframe,
		"limit":  strconv.Itoa(limit),
	}
	if since > 0 {
		params["since"] = strconv.FormatInt(since, 10)
	}
	raw, err := a.publicGet(ctx, "kline", params)
	if err != nil {
		return nil, err
	}
	return parseOHLCV(raw)
}

// FetchBalance returns account balances.
func (a *Adapter) FetchBalance(ctx context.Context) (schema.Balances, error) {
	raw, err := a.privateGet(ctx, "getAccountInfo", nil)
	if err != nil {
		return schema.Balances{}, err
	}
	return parseBalances(raw)
}

// CreateOrder places a limit order; the venue has no market orders. The
// acknowledgement carries only the id, so the order is synthesized locally.
func (a *Adapter) CreateOrder(ctx context.Context, symbol string, orderType schema.OrderType, side schema.TradeSide, amount float64, price *float64) (schema.Order, error) {
	if orderType != schema.OrderTypeLimit {
		return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("only limit orders are accepted"))
	}
	if price == nil {
		return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("limit order requires a price"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Order{}, err
	}
	tradeType := "0"
	if side == schema.TradeSideBuy {
		tradeType = "1"
	}
	raw, err := a.privateGet(ctx, "order", codec.Params{
		"currency":  market.ID,
		"price":     strconv.FormatFloat(*price, 'f', -1, 64),
		"amount":    strconv.FormatFloat(amount, 'f', -1, 64),
		"tradeType": tradeType,
	})
	if err != nil {
		return schema.Order{}, err
	}
	var ack struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil || ack.ID == "" {
		return schema.Order{}, errs.New(Name, errs.CodeExchange,
			errs.WithMessage("order response carried no order id"))
	}
	order := schema.Order{
		ID:        ack.ID,
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
	if _, err := a.privateGet(ctx, "cancelOrder", codec.Params{
		"id":       id,
		"currency": market.ID,
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
	raw, err := a.privateGet(ctx, "getOrder", codec.Params{
		"id":       id,
		"currency": market.ID,
	})
	if err != nil {
		return schema.Order{}, err
	}
	return parseOrder(raw, market)
}

func (a *Adapter) fetchOrderPage(ctx context.Context, method, symbol string, limit, defaultLimit int) ([]schema.Order, error) {
	if symbol == "" {
		return nil, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("order listing requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	raw, err := a.privateGet(ctx, method, codec.Params{
		"currency":  market.ID,
		"pageIndex": "1",
		"pageSize":  strconv.Itoa(limit),
	})
	if err != nil {
		// The venue answers an empty page with an order-not-found code.
		if errs.Is(err, errs.CodeOrderNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseOrders(raw, market)
}

// FetchOpenOrders lists unfinished orders for a symbol.
func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	orders, err := a.fetchOrderPage(ctx, "getUnfinishedOrdersIgnoreTradeType", symbol, limit, 10)
	if err != nil {
		return nil, err
	}
	return ordercache.Filter(orders, "", since, limit), nil
}

// FetchClosedOrders lists finished orders by filtering the full history page
// locally; the venue has no closed-only endpoint.
func (a *Adapter) FetchClosedOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	orders, err := a.fetchOrderPage(ctx, "getOrdersIgnoreTradeType", symbol, 0, 50)
	if err != nil {
		return nil, err
	}
	closed := ordercache.FilterStatus(orders, schema.OrderStatusClosed)
	return ordercache.Filter(closed, "", since, limit), nil
}

// FetchMyTrades is not offered by this API surface.
func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	return nil, errs.NotSupported(Name, "fetchMyTrades")
}

// Withdraw is not offered by this API surface.
func (a *Adapter) Withdraw(ctx context.Context, currency string, amount float64, address, tag string) (string, error) {
	return "", errs.NotSupported(Name, "withdraw")
}
