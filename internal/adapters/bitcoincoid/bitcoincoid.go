// Package bitcoincoid implements the Bitcoin.co.id (Indodax) spot adapter.
package bitcoincoid

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
	Name = "bitcoincoid"

	defaultPublicURL  = "https://vip.bitcoin.co.id/api"
	defaultPrivateURL = "https://vip.bitcoin.co.id/tapi"
)

// Adapter talks to the Bitcoin.co.id REST API.
type Adapter struct {
	*base.Client
}

// RegisterFactory installs the adapter factory into the registry.
func RegisterFactory(reg *exchange.Registry) {
	reg.Register(Name, func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts), nil
	})
}

// New builds a Bitcoin.co.id adapter.
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

func (a *Adapter) publicGet(ctx context.Context, path string) ([]byte, error) {
	resp, err := a.Do(ctx, &exchange.Request{Method: http.MethodGet, URL: a.publicURL() + "/" + path})
	if err != nil {
		return nil, err
	}
	return a.checkResponse(resp)
}

// privatePost sends every private call to the single tapi endpoint; the
// method name travels in the form body next to the nonce.
func (a *Adapter) privatePost(ctx context.Context, method string, params codec.Params) ([]byte, error) {
	if err := a.RequireCredentials(); err != nil {
		return nil, err
	}
	body := codec.URLEncode(params.Clone(codec.Params{
		"method": method,
		"nonce":  strconv.FormatInt(a.Nonces.Next(), 10),
	}))
	creds := a.Credentials()
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Key", creds.APIKey)
	header.Set("Sign", codec.HexHMAC(codec.SHA512, body, creds.APISecret))
	resp, err := a.Do(ctx, &exchange.Request{
		Method: http.MethodPost,
		URL:    a.privateURL(),
		Header: header,
		Body:   []byte(body),
	})
	if err != nil {
		return nil, err
	}
	return a.checkResponse(resp)
}

// FetchMarkets returns the static market catalog.
func (a *Adapter) FetchMarkets(ctx context.Context) ([]schema.Market, error) {
	return staticMarkets(), nil
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
	raw, err := a.publicGet(ctx, market.ID+"/ticker")
	if err != nil {
		return schema.Ticker{}, err
	}
	return parseTicker(raw, market)
}

// FetchTickers emulates the missing bulk endpoint by fanning out per-symbol
// requests. An empty symbols slice covers every market.
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
	raw, err := a.publicGet(ctx, market.ID+"/depth")
	if err != nil {
		return schema.OrderBook{}, err
	}
	return parseOrderBook(raw, symbol, limit)
}

// FetchTrades returns public trades for a symbol.
func (a *Adapter) FetchTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, market.ID+"/trades")
	if err != nil {
		return nil, err
	}
	return parseTrades(raw, symbol, since, limit)
}

// FetchOHLCV is not offered by the venue.
func (a *Adapter) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]schema.OHLCV, error) {
	return nil, errs.NotSupported(Name, "fetchOHLCV")
}

// FetchBalance returns account balances from getInfo.
func (a *Adapter) FetchBalance(ctx context.Context) (schema.Balances, error) {
	raw, err := a.privatePost(ctx, "getInfo", nil)
	if err != nil {
		return schema.Balances{}, err
	}
	return parseBalances(raw)
}

// CreateOrder places a limit order. The venue prices buys in quote currency
// and sells in base currency.
func (a *Adapter) CreateOrder(ctx context.Context, symbol string, orderType schema.OrderType, side schema.TradeSide, amount float64, price *float64) (schema.Order, error) {
	if orderType != schema.OrderTypeLimit {
		return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("only limit orders are supported"))
	}
	if price == nil {
		return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("limit order requires a price"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Order{}, err
	}
	params := codec.Params{
		"pair":  market.ID,
		"type":  string(side),
		"price": strconv.FormatFloat(*price, 'f', -1, 64),
	}
	if side == schema.TradeSideBuy {
		params[market.QuoteID] = strconv.FormatFloat(amount**price, 'f', -1, 64)
	} else {
		params[market.BaseID] = strconv.FormatFloat(amount, 'f', -1, 64)
	}
	raw, err := a.privatePost(ctx, "trade", params)
	if err != nil {
		return schema.Order{}, err
	}
	var payload struct {
		Return struct {
			OrderID json.Number `json:"order_id"`
		} `json:"return"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Order{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	order := schema.Order{
		ID:        payload.Return.OrderID.String(),
		Timestamp: a.Now().UnixMilli(),
		Status:    schema.OrderStatusOpen,
		Symbol:    symbol,
		Type:      orderType,
		Side:      side,
		Price:     price,
		Amount:    schema.Float(amount),
		Filled:    schema.Float(0),
		Remaining: schema.Float(amount),
		Cost:      schema.Float(amount * *price),
		Info:      raw,
	}
	a.Orders.Upsert(order)
	return order, nil
}

// CancelOrder cancels an order. The venue demands the order's side, which is
// recovered from the order cache seeded at creation time.
func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	if symbol == "" {
		return errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("cancelOrder requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return err
	}
	cached, ok := a.Orders.Get(id)
	if !ok || cached.Side == "" {
		return errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("order side unknown; order "+id+" was not created through this client"))
	}
	_, err = a.privatePost(ctx, "cancelOrder", codec.Params{
		"order_id": id,
		"pair":     market.ID,
		"type":     string(cached.Side),
	})
	if err != nil {
		return err
	}
	a.Orders.MarkCanceled(id)
	return nil
}

// FetchOrder returns one order by id. The venue requires the symbol.
func (a *Adapter) FetchOrder(ctx context.Context, id, symbol string) (schema.Order, error) {
	if symbol == "" {
		return schema.Order{}, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("fetchOrder requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Order{}, err
	}
	raw, err := a.privatePost(ctx, "getOrder", codec.Params{
		"pair":     market.ID,
		"order_id": id,
	})
	if err != nil {
		return schema.Order{}, err
	}
	var payload struct {
		Return struct {
			Order json.RawMessage `json:"order"`
		} `json:"return"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Order{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	order, err := parseOrder(payload.Return.Order, market)
	if err != nil {
		return schema.Order{}, err
	}
	if order.ID == "" {
		order.ID = id
	}
	return order, nil
}

// FetchOpenOrders lists open orders, for one symbol or all markets.
func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	cat, err := a.Catalog(ctx, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	params := codec.Params{}
	var market schema.Market
	if symbol != "" {
		found, ok := cat.BySymbol(symbol)
		if !ok {
			return nil, errs.New(Name, errs.CodeData, errs.WithMessage("unknown symbol "+symbol))
		}
		market = found
		params["pair"] = market.ID
	}
	raw, err := a.privatePost(ctx, "openOrders", params)
	if err != nil {
		return nil, err
	}
	orders, err := parseOpenOrders(raw, market, cat, symbol != "")
	if err != nil {
		return nil, err
	}
	a.Orders.ApplyOpenOrders(orders, symbol)
	return ordercache.Filter(orders, symbol, since, limit), nil
}

// FetchClosedOrders lists completed orders for a symbol.
func (a *Adapter) FetchClosedOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	if symbol == "" {
		return nil, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("fetchClosedOrders requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.privatePost(ctx, "orderHistory", codec.Params{"pair": market.ID})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Return struct {
			Orders []json.RawMessage `json:"orders"`
		} `json:"return"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	var orders []schema.Order
	for _, entry := range payload.Return.Orders {
		order, err := parseOrder(entry, market)
		if err != nil {
			return nil, err
		}
		if order.Status != schema.OrderStatusClosed {
			continue
		}
		orders = append(orders, order)
	}
	return ordercache.Filter(orders, symbol, since, limit), nil
}

// FetchMyTrades is not offered by the venue API.
func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	return nil, errs.NotSupported(Name, "fetchMyTrades")
}

// Withdraw is not offered by the venue API.
func (a *Adapter) Withdraw(ctx context.Context, currency string, amount float64, address, tag string) (string, error) {
	return "", errs.NotSupported(Name, "withdraw")
}
