// Package schema defines the canonical, adapter-independent record shapes
// consumed by calling code: Market, Ticker, Trade, Order, Balance, OrderBook
// and OHLCV.
package schema

import (
	json "github.com/goccy/go-json"
)

// MinMax bounds an order attribute; either side may be absent.
type MinMax struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Precision holds the number of decimal places accepted per attribute.
type Precision struct {
	Amount int `json:"amount"`
	Price  int `json:"price"`
}

// Limits groups the trading bounds an exchange enforces per market.
type Limits struct {
	Amount MinMax `json:"amount"`
	Price  MinMax `json:"price"`
	Cost   MinMax `json:"cost"`
}

// Market describes one tradable base/quote pair on an exchange.
// Symbol is always Base + "/" + Quote; ID is the exchange-native pair id.
type Market struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	BaseID    string          `json:"baseId,omitempty"`
	QuoteID   string          `json:"quoteId,omitempty"`
	Active    bool            `json:"active"`
	Precision Precision       `json:"precision"`
	Limits    Limits          `json:"limits"`
	Info      json.RawMessage `json:"info,omitempty"`
}

// Float returns a pointer to v, for optional canonical fields.
func Float(v float64) *float64 { return &v }
