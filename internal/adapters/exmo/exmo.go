// Package exmo implements the EXMO spot adapter.
package exmo

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
	Name = "exmo"

	defaultBaseURL = "https://api.exmo.com"
	apiVersion     = "v1"
)

// Adapter talks to the EXMO REST API.
type Adapter struct {
	*base.Client
}

// RegisterFactory installs the adapter factory into the registry.
func RegisterFactory(reg *exchange.Registry) {
	reg.Register(Name, func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts), nil
	})
}

// New builds an EXMO adapter.
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
	url := a.baseURL() + "/" + apiVersion + "/" + path
	if len(params) > 0 {
		url += "?" + codec.URLEncode(params)
	}
	resp, err := a.Do(ctx, &exchange.Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	return a.checkResponse(resp)
}

// privatePost signs the form body with HMAC-SHA512 and sends the Key/Sign
// header pair EXMO expects.
func (a *Adapter) privatePost(ctx context.Context, path string, params codec.Params) ([]byte, error) {
	if err := a.RequireCredentials(); err != nil {
		return nil, err
	}
	nonce := strconv.FormatInt(a.Nonces.Next(), 10)
	body := codec.URLEncode(params.Clone(codec.Params{"nonce": nonce}))
	creds := a.Credentials()
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Key", creds.APIKey)
	header.Set("Sign", codec.HexHMAC(codec.SHA512, body, creds.APISecret))
	resp, err := a.Do(ctx, &exchange.Request{
		Method: http.MethodPost,
		URL:    a.baseURL() + "/" + apiVersion + "/" + path,
		Header: header,
		Body:   []byte(body),
	})
	if err != nil {
		return nil, err
	}
	return a.checkResponse(resp)
}

// FetchMarkets lists markets from pair_settings.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]schema.Market, error) {
	raw, err := a.publicGet(ctx, "pair_settings", nil)
	if err != nil {
		return nil, err
	}
	return parseMarkets(raw)
}

func (a *Adapter) loadMarkets(ctx context.Context) ([]schema.Market, error) {
	return a.FetchMarkets(ctx)
}

// FetchTicker returns the ticker for one symbol. EXMO only exposes a
// whole-market ticker endpoint, so the reply is filtered locally.
func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (schema.Ticker, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Ticker{}, err
	}
	raw, err := a.publicGet(ctx, "ticker", nil)
	if err != nil {
		return schema.Ticker{}, err
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Ticker{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	entry, ok := payload[market.ID]
	if !ok {
		return schema.Ticker{}, errs.New(Name, errs.CodeData,
			errs.WithMessage("no ticker for "+symbol))
	}
	return parseTicker(entry, symbol)
}

// FetchTickers returns tickers for the requested symbols, or all markets.
func (a *Adapter) FetchTickers(ctx context.Context, symbols []string) (map[string]schema.Ticker, error) {
	cat, err := a.Catalog(ctx, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "ticker", nil)
	if err != nil {
		return nil, err
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	wanted := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		wanted[symbol] = true
	}
	out := make(map[string]schema.Ticker, len(payload))
	for id, entry := range payload {
		market, ok := cat.ByID(id)
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

// FetchOrderBook returns the order book for a symbol.
func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (schema.OrderBook, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.OrderBook{}, err
	}
	params := codec.Params{"pair": market.ID}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	raw, err := a.publicGet(ctx, "order_book", params)
	if err != nil {
		return schema.OrderBook{}, err
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.OrderBook{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	entry, ok := payload[market.ID]
	if !ok {
		return schema.OrderBook{}, errs.New(Name, errs.CodeData,
			errs.WithMessage("no order book for "+symbol))
	}
	return parseOrderBook(entry, symbol)
}

// FetchTrades returns public trades for a symbol.
func (a *Adapter) FetchTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "trades", codec.Params{"pair": market.ID})
	if err != nil {
		return nil, err
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	trades, err := parseTrades(payload[market.ID], symbol)
	if err != nil {
		return nil, err
	}
	return filterTrades(trades, since, limit), nil
}

// FetchOHLCV is not offered by the EXMO v1 API.
func (a *Adapter) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]schema.OHLCV, error) {
	return nil, errs.NotSupported(Name, "fetchOHLCV")
}

// FetchBalance returns account balances from user_info.
func (a *Adapter) FetchBalance(ctx context.Context) (schema.Balances, error) {
	raw, err := a.privatePost(ctx, "user_info", nil)
	if err != nil {
		return schema.Balances{}, err
	}
	return parseBalances(raw)
}

// CreateOrder places an order and seeds the order cache with the open order.
func (a *Adapter) CreateOrder(ctx context.Context, symbol string, orderType schema.OrderType, side schema.TradeSide, amount float64, price *float64) (schema.Order, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Order{}, err
	}
	if orderType == schema.OrderTypeLimit && price == nil {
		return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("limit order requires a price"))
	}
	orderSide := string(side)
	if orderType == schema.OrderTypeMarket {
		orderSide = "market_" + orderSide
	}
	params := codec.Params{
		"pair":     market.ID,
		"quantity": strconv.FormatFloat(amount, 'f', -1, 64),
		"type":     orderSide,
	}
	if price != nil {
		params["price"] = strconv.FormatFloat(*price, 'f', -1, 64)
	} else {
		params["price"] = "0"
	}
	raw, err := a.privatePost(ctx, "order_create", params)
	if err != nil {
		return schema.Order{}, err
	}
	var payload struct {
		OrderID json.Number `json:"order_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Order{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	order := schema.Order{
		ID:        payload.OrderID.String(),
		Timestamp: a.Now().UnixMilli(),
		Status:    schema.OrderStatusOpen,
		Symbol:    symbol,
		Type:      orderType,
		Side:      side,
		Price:     price,
		Amount:    schema.Float(amount),
		Filled:    schema.Float(0),
		Remaining: schema.Float(amount),
		Info:      raw,
	}
	if price != nil {
		order.Cost = schema.Float(*price * amount)
	}
	a.Orders.Upsert(order)
	return order, nil
}

// CancelOrder cancels an order by id.
func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	if _, err := a.privatePost(ctx, "order_cancel", codec.Params{"order_id": id}); err != nil {
		return err
	}
	a.Orders.MarkCanceled(id)
	return nil
}

// FetchOrder returns an order by id. EXMO has no order-by-id endpoint, so the
// open-order listing refreshes the cache first.
func (a *Adapter) FetchOrder(ctx context.Context, id, symbol string) (schema.Order, error) {
	if err := a.refreshOrders(ctx, symbol); err != nil {
		return schema.Order{}, err
	}
	order, ok := a.Orders.Get(id)
	if !ok {
		return schema.Order{}, errs.New(Name, errs.CodeOrderNotFound,
			errs.WithMessage("order "+id+" not open and not in cache"))
	}
	return order, nil
}

// FetchOpenOrders lists open orders.
func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	if err := a.refreshOrders(ctx, symbol); err != nil {
		return nil, err
	}
	open := ordercache.FilterStatus(a.Orders.Snapshot(), schema.OrderStatusOpen)
	return ordercache.Filter(open, symbol, since, limit), nil
}

// FetchClosedOrders lists orders the cache has seen transition to closed.
func (a *Adapter) FetchClosedOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	if err := a.refreshOrders(ctx, symbol); err != nil {
		return nil, err
	}
	closed := ordercache.FilterStatus(a.Orders.Snapshot(), schema.OrderStatusClosed)
	return ordercache.Filter(closed, symbol, since, limit), nil
}

func (a *Adapter) refreshOrders(ctx context.Context, symbol string) error {
	cat, err := a.Catalog(ctx, a.loadMarkets)
	if err != nil {
		return err
	}
	raw, err := a.privatePost(ctx, "user_open_orders", nil)
	if err != nil {
		return err
	}
	var payload map[string][]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	var open []schema.Order
	for marketID, entries := range payload {
		marketSymbol := ""
		if market, ok := cat.ByID(marketID); ok {
			marketSymbol = market.Symbol
		}
		for _, entry := range entries {
			order, err := parseOrder(entry, marketSymbol)
			if err != nil {
				return err
			}
			open = append(open, order)
		}
	}
	a.Orders.ApplyOpenOrders(open, symbol)
	return nil
}

// FetchMyTrades lists the account's trade history.
func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	cat, err := a.Catalog(ctx, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	params := codec.Params{}
	if symbol != "" {
		market, ok := cat.BySymbol(symbol)
		if !ok {
			return nil, errs.New(Name, errs.CodeData, errs.WithMessage("unknown symbol "+symbol))
		}
		params["pair"] = market.ID
	}
	raw, err := a.privatePost(ctx, "user_trades", params)
	if err != nil {
		return nil, err
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	var trades []schema.Trade
	for marketID, entries := range payload {
		market, ok := cat.ByID(marketID)
		if !ok {
			continue
		}
		if symbol != "" && market.Symbol != symbol {
			continue
		}
		parsed, err := parseTrades(entries, market.Symbol)
		if err != nil {
			return nil, err
		}
		trades = append(trades, parsed...)
	}
	return filterTrades(trades, since, limit), nil
}

// Withdraw requests a crypto withdrawal and returns the task id.
func (a *Adapter) Withdraw(ctx context.Context, currency string, amount float64, address, tag string) (string, error) {
	params := codec.Params{
		"amount":   strconv.FormatFloat(amount, 'f', -1, 64),
		"currency": currency,
		"address":  address,
	}
	if tag != "" {
		params["invoice"] = tag
	}
	raw, err := a.privatePost(ctx, "withdraw_crypt", params)
	if err != nil {
		return "", err
	}
	var payload struct {
		TaskID json.Number `json:"task_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	return payload.TaskID.String(), nil
}
