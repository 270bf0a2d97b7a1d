// Package base carries the machinery shared by every venue adapter: transport
// plumbing, credential checks, nonce issuance, the market catalog, and the
// order cache.
package base

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/exbridge/exbridge/config"
	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/catalog"
	"github.com/exbridge/exbridge/internal/codec"
	"github.com/exbridge/exbridge/internal/ordercache"
	"github.com/exbridge/exbridge/schema"
	"github.com/exbridge/exbridge/transport"
)

const fanOutWorkers = 4

// Client is embedded by venue adapters.
type Client struct {
	name     string
	settings config.ExchangeSettings
	http     exchange.Transport
	logger   *logrus.Entry
	clock    func() time.Time

	// Nonces issues strictly increasing millisecond nonces.
	Nonces *codec.NonceSource
	// Orders tracks orders seen through this client.
	Orders *ordercache.Cache

	catalogMu sync.Mutex
	catalog   *catalog.Catalog
}

// New builds a shared client for the named venue. Missing options fall back
// to defaults: the stock transport configured from settings, the standard
// logger tagged with the exchange name, and the wall clock.
func New(name string, opts exchange.Options) *Client {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("exchange", name)
	http := opts.Transport
	if http == nil {
		http = transport.New(
			transport.WithTimeout(opts.Settings.HTTPTimeout),
			transport.WithRateLimit(opts.Settings.RateLimit),
			transport.WithLogger(logger),
		)
	}
	return &Client{
		name:     name,
		settings: opts.Settings,
		http:     http,
		logger:   logger,
		clock:    clock,
		Nonces:   codec.NewNonceSource(clock),
		Orders:   ordercache.New(),
	}
}

// Name returns the venue's registry key.
func (c *Client) Name() string { return c.name }

// Settings returns the venue configuration the client was built with.
func (c *Client) Settings() config.ExchangeSettings { return c.settings }

// Credentials returns the configured API credentials.
func (c *Client) Credentials() config.Credentials { return c.settings.Credentials }

// Logger returns the exchange-tagged logger.
func (c *Client) Logger() *logrus.Entry { return c.logger }

// Now returns the current time from the configured clock.
func (c *Client) Now() time.Time { return c.clock() }

// RequireCredentials fails before any network traffic when the API key or
// secret is missing.
func (c *Client) RequireCredentials() error {
	if c.settings.Credentials.Configured() {
		return nil
	}
	return errs.New(c.name, errs.CodeAuthentication,
		errs.WithMessage("api key and secret required"))
}

// Do executes the request, converting transport failures into network errors.
func (c *Client) Do(ctx context.Context, req *exchange.Request) (*exchange.Response, error) {
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, errs.New(c.name, errs.CodeNetwork,
			errs.WithMessage("request failed"), errs.WithCause(err))
	}
	return resp, nil
}

// Catalog returns the venue's market catalog, loading it on first use. The
// load function runs at most once per cache fill.
func (c *Client) Catalog(ctx context.Context, load func(context.Context) ([]schema.Market, error)) (*catalog.Catalog, error) {
	c.catalogMu.Lock()
	defer c.catalogMu.Unlock()
	if c.catalog != nil {
		return c.catalog, nil
	}
	markets, err := load(ctx)
	if err != nil {
		return nil, err
	}
	built, err := catalog.Build(c.name, markets)
	if err != nil {
		return nil, err
	}
	c.catalog = built
	return built, nil
}

// InvalidateCatalog drops the cached catalog so the next lookup reloads it.
func (c *Client) InvalidateCatalog() {
	c.catalogMu.Lock()
	c.catalog = nil
	c.catalogMu.Unlock()
}

// Market resolves a unified symbol through the catalog.
func (c *Client) Market(ctx context.Context, symbol string, load func(context.Context) ([]schema.Market, error)) (schema.Market, error) {
	cat, err := c.Catalog(ctx, load)
	if err != nil {
		return schema.Market{}, err
	}
	market, ok := cat.BySymbol(symbol)
	if !ok {
		return schema.Market{}, errs.New(c.name, errs.CodeData,
			errs.WithMessage("unknown symbol "+symbol))
	}
	return market, nil
}

// FanOutTickers fetches each symbol's ticker concurrently and collects the
// results by symbol. The first fetch error aborts the batch.
func (c *Client) FanOutTickers(ctx context.Context, symbols []string, fetch func(context.Context, string) (schema.Ticker, error)) (map[string]schema.Ticker, error) {
	workers := fanOutWorkers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	out := make(map[string]schema.Ticker, len(symbols))
	var firstErr error

	p := pool.New().WithMaxGoroutines(workers)
	for _, symbol := range symbols {
		sym := symbol
		p.Go(func() {
			mu.Lock()
			aborted := firstErr != nil
			mu.Unlock()
			if aborted || ctx.Err() != nil {
				return
			}
			ticker, err := fetch(ctx, sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			out[sym] = ticker
		})
	}
	p.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
