// Package catalog indexes a venue's market list for id and symbol lookup.
package catalog

import (
	"fmt"
	"strings"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/schema"
)

// AliasTable maps venue currency codes to their canonical spelling.
type AliasTable map[string]string

// Canonical returns the canonical code for a venue currency code. Codes
// without an alias are upper-cased as-is.
func (a AliasTable) Canonical(code string) string {
	upper := strings.ToUpper(code)
	if a != nil {
		if canonical, ok := a[upper]; ok {
			return canonical
		}
	}
	return upper
}

// SplitID splits a venue market id such as "btc_usd" on sep and returns the
// canonical base and quote codes.
func SplitID(id, sep string, aliases AliasTable) (base, quote string, err error) {
	parts := strings.Split(id, sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed market id %q", id)
	}
	return aliases.Canonical(parts[0]), aliases.Canonical(parts[1]), nil
}

// Catalog holds a venue's markets indexed both ways. Lookups never mutate the
// catalog, so a built catalog is safe for concurrent use.
type Catalog struct {
	markets  []schema.Market
	byID     map[string]*schema.Market
	bySymbol map[string]*schema.Market
}

// Build indexes markets, rejecting duplicate ids or symbols so the id/symbol
// mapping stays one-to-one.
func Build(exchange string, markets []schema.Market) (*Catalog, error) {
	c := &Catalog{
		markets:  markets,
		byID:     make(map[string]*schema.Market, len(markets)),
		bySymbol: make(map[string]*schema.Market, len(markets)),
	}
	for i := range markets {
		m := &c.markets[i]
		if m.ID == "" || m.Symbol == "" {
			return nil, errs.New(exchange, errs.CodeData,
				errs.WithMessage(fmt.Sprintf("market %d has empty id or symbol", i)))
		}
		if _, ok := c.byID[m.ID]; ok {
			return nil, errs.New(exchange, errs.CodeData,
				errs.WithMessage("duplicate market id "+m.ID))
		}
		if _, ok := c.bySymbol[m.Symbol]; ok {
			return nil, errs.New(exchange, errs.CodeData,
				errs.WithMessage("duplicate market symbol "+m.Symbol))
		}
		c.byID[m.ID] = m
		c.bySymbol[m.Symbol] = m
	}
	return c, nil
}

// Markets returns the indexed markets in their original order.
func (c *Catalog) Markets() []schema.Market {
	out := make([]schema.Market, len(c.markets))
	copy(out, c.markets)
	return out
}

// ByID returns the market with the given venue id.
func (c *Catalog) ByID(id string) (schema.Market, bool) {
	m, ok := c.byID[id]
	if !ok {
		return schema.Market{}, false
	}
	return *m, true
}

// BySymbol returns the market with the given unified symbol.
func (c *Catalog) BySymbol(symbol string) (schema.Market, bool) {
	m, ok := c.bySymbol[symbol]
	if !ok {
		return schema.Market{}, false
	}
	return *m, true
}

// Len reports the number of indexed markets.
func (c *Catalog) Len() int {
	return len(c.markets)
}
