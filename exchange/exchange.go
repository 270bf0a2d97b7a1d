// Package exchange defines the unified client contract every venue adapter
// implements, plus the registry that constructs adapters by name.
package exchange

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/exbridge/exbridge/config"
	"github.com/exbridge/exbridge/schema"
)

// Request is a prepared HTTP request. Adapters fill it with signed headers
// and an encoded body before handing it to the transport.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw venue reply. Adapters classify non-2xx statuses and
// venue-level error payloads themselves; the transport only reports I/O
// failures as errors.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport executes prepared requests.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Exchange is the unified venue client. Money amounts that a venue may omit
// are pointers; absent means unknown, never zero.
type Exchange interface {
	// Name returns the registry key of the venue.
	Name() string

	FetchMarkets(ctx context.Context) ([]schema.Market, error)
	FetchTicker(ctx context.Context, symbol string) (schema.Ticker, error)
	// FetchTickers returns tickers keyed by symbol. A nil or empty symbols
	// slice requests all markets.
	FetchTickers(ctx context.Context, symbols []string) (map[string]schema.Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, limit int) (schema.OrderBook, error)
	FetchTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]schema.OHLCV, error)

	FetchBalance(ctx context.Context) (schema.Balances, error)
	// CreateOrder places an order. Price is required for limit orders and
	// ignored by venues that do not price market orders.
	CreateOrder(ctx context.Context, symbol string, orderType schema.OrderType, side schema.TradeSide, amount float64, price *float64) (schema.Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	FetchOrder(ctx context.Context, id, symbol string) (schema.Order, error)
	FetchOpenOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error)
	FetchClosedOrders(ctx context.Context, symbol string, since int64, limit int) ([]schema.Order, error)
	FetchMyTrades(ctx context.Context, symbol string, since int64, limit int) ([]schema.Trade, error)
	// Withdraw requests a withdrawal and returns the venue's transaction or
	// task id.
	Withdraw(ctx context.Context, currency string, amount float64, address, tag string) (string, error)
}

// Options carries everything a factory needs to build an adapter. Zero-value
// fields fall back to sensible defaults inside the factory.
type Options struct {
	Settings  config.ExchangeSettings
	Transport Transport
	Logger    *logrus.Entry
	Clock     func() time.Time
}

// Factory constructs an adapter from options.
type Factory func(Options) (Exchange, error)
