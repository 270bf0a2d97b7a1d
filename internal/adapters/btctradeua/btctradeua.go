// Package btctradeua implements the BTC Trade UA spot adapter.
package btctradeua

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/base"
	"github.com/exbridge/exbridge/internal/codec"
	"github.com/exbridge/exbridge/internal/ordercache"
	"github.com/exbridge/exbridge/schema"
)

const (
	// Name is the registry key.
	Name = "btctradeua"

	defaultBaseURL = "https://btc-trade.com.ua/api"
)

// Adapter talks to the BTC Trade UA REST API.
type Adapter struct {
	*base.Client
}

// RegisterFactory installs the adapter factory into the registry.
func RegisterFactory(reg *exchange.Registry) {
	reg.Register(Name, func(opts exchange.Options) (exchange.Exchange, error) {
		return New(opts), nil
	})
}

// New builds a BTC Trade UA adapter.
func New(opts exchange.Options) *Adapter {
	return &Adapter{Client: base.New(Name, opts)}
}

func (a *Adapter) baseURL() string {
	if url := a.Settings().BaseURL; url != "" {
		return strings.TrimSuffix(url, "/")
	}
	return defaultBaseURL
}

func (a *Adapter) publicGet(ctx context.Context, path string) ([]byte, error) {
	resp, err := a.Do(ctx, &exchange.Request{Method: http.MethodGet, URL: a.baseURL() + "/" + path})
	if err != nil {
		return nil, err
	}
	return a.checkResponse(resp)
}

// privatePost signs the form body by appending the secret and hashing the
// concatenation with SHA-256. The nonce doubles as out_order_id.
func (a *Adapter) privatePost(ctx context.Context, path string, params codec.Params) ([]byte, error) {
	if err := a.RequireCredentials(); err != nil {
		return nil, err
	}
	nonce := strconv.FormatInt(a.Nonces.Next(), 10)
	body := codec.URLEncode(params.Clone(codec.Params{
		"out_order_id": nonce,
		"nonce":        nonce,
	}))
	creds := a.Credentials()
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("public-key", creds.APIKey)
	header.Set("api-sign", codec.HexHash(codec.SHA256, body+creds.APISecret))
	resp, err := a.Do(ctx, &exchange.Request{
		Method: http.MethodPost,
		URL:    a.baseURL() + "/" + path,
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

// FetchTicker derives the ticker from the last 48 hourly candles plus the
// current order book top; the venue has no dedicated ticker endpoint.
func (a *Adapter) FetchTicker(ctx context.Context, symbol string) (schema.Ticker, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.Ticker{}, err
	}
	raw, err := a.publicGet(ctx, "japan_stat/high/"+market.ID)
	if err != nil {
		return schema.Ticker{}, err
	}
	book, err := a.FetchOrderBook(ctx, symbol, 0)
	if err != nil {
		return schema.Ticker{}, err
	}
	return buildTicker(raw, symbol, book, a.Now().UnixMilli())
}

// FetchTickers emulates a bulk endpoint by fanning out per-symbol requests.
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

// FetchOrderBook assembles the book from the separate buy and sell listings.
func (a *Adapter) FetchOrderBook(ctx context.Context, symbol string, limit int) (schema.OrderBook, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return schema.OrderBook{}, err
	}
	var rawBids, rawAsks []byte
	p := pool.New().WithErrors()
	p.Go(func() error {
		var err error
		rawBids, err = a.publicGet(ctx, "trades/buy/"+market.ID)
		return err
	})
	p.Go(func() error {
		var err error
		rawAsks, err = a.publicGet(ctx, "trades/sell/"+market.ID)
		return err
	})
	if err := p.Wait(); err != nil {
		return schema.OrderBook{}, err
	}
	return parseOrderBook(rawBids, rawAsks, symbol, limit)
}

// FetchTrades returns public trades. The venue reports each fill twice, once
// per side; only odd-id records are kept.
func (a *Adapter) FetchTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "deals/"+market.ID)
	if err != nil {
		return nil, err
	}
	return parseTrades(raw, symbol, since, limit)
}

// FetchOHLCV returns the hourly candles behind the japan_stat endpoint.
func (a *Adapter) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]schema.OHLCV, error) {
	if timeframe != "" && timeframe != "1h" {
		return nil, errs.NotSupported(Name, "fetchOHLCV timeframe "+timeframe)
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.publicGet(ctx, "japan_stat/high/"+market.ID)
	if err != nil {
		return nil, err
	}
	return parseOHLCV(raw, since, limit)
}

// FetchBalance returns account balances. The venue reports no hold amounts.
func (a *Adapter) FetchBalance(ctx context.Context) (schema.Balances, error) {
	raw, err := a.privatePost(ctx, "balance", nil)
	if err != nil {
		return schema.Balances{}, err
	}
	return parseBalances(raw)
}

// CreateOrder places a limit order and seeds the order cache.
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
	raw, err := a.privatePost(ctx, string(side)+"/"+market.ID, codec.Params{
		"count":     strconv.FormatFloat(amount, 'f', -1, 64),
		"currency1": market.Quote,
		"currency":  market.Base,
		"price":     strconv.FormatFloat(*price, 'f', -1, 64),
	})
	if err != nil {
		return schema.Order{}, err
	}
	order := schema.Order{
		ID:        extractOrderID(raw),
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

// CancelOrder cancels an order by id.
func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	if _, err := a.privatePost(ctx, "remove/order/"+id, nil); err != nil {
		return err
	}
	a.Orders.MarkCanceled(id)
	return nil
}

// FetchOrder returns a cached order, refreshing the open-order listing first
// when a symbol narrows the lookup.
func (a *Adapter) FetchOrder(ctx context.Context, id, symbol string) (schema.Order, error) {
	if symbol != "" {
		if _, err := a.FetchOpenOrders(ctx, symbol, 0, 0); err != nil {
			return schema.Order{}, err
		}
	}
	order, ok := a.Orders.Get(id)
	if !ok {
		return schema.Order{}, errs.New(Name, errs.CodeOrderNotFound,
			errs.WithMessage("order "+id+" not open and not in cache"))
	}
	return order, nil
}

// FetchOpenOrders lists open orders for a symbol.
func (a *Adapter) FetchOpenOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	if symbol == "" {
		return nil, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("fetchOpenOrders requires a symbol"))
	}
	market, err := a.Market(ctx, symbol, a.loadMarkets)
	if err != nil {
		return nil, err
	}
	raw, err := a.privatePost(ctx, "my_orders/"+market.ID, nil)
	if err != nil {
		return nil, err
	}
	orders, err := parseOpenOrders(raw, symbol, a.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	a.Orders.ApplyOpenOrders(orders, symbol)
	return ordercache.Filter(orders, symbol, since, limit), nil
}

// FetchClosedOrders lists orders the cache has seen transition to closed.
func (a *Adapter) FetchClosedOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error) {
	if symbol == "" {
		return nil, errs.New(Name, errs.CodeInvalidOrder,
			errs.WithMessage("fetchClosedOrders requires a symbol"))
	}
	if _, err := a.FetchOpenOrders(ctx, symbol, 0, 0); err != nil {
		return nil, err
	}
	closed := ordercache.FilterStatus(a.Orders.Snapshot(), schema.OrderStatusClosed)
	return ordercache.Filter(closed, symbol, since, limit), nil
}

// FetchMyTrades is not offered by the venue API.
func (a *Adapter) FetchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error) {
	return nil, errs.NotSupported(Name, "fetchMyTrades")
}

// Withdraw is not offered by the venue API.
func (a *Adapter) Withdraw(ctx context.Context, currency string, amount float64, address, tag string) (string, error) {
	return "", errs.NotSupported(Name, "withdraw")
}
