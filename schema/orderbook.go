package schema

import "sort"

// Level is one price level of an order book side.
type Level struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// OrderBook is the set of outstanding bid/ask levels for a market at a point
// in time. Bids are sorted best-first (descending), asks ascending.
type OrderBook struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
}

// Sort orders both sides into canonical order.
func (b *OrderBook) Sort() {
	sort.Slice(b.Bids, func(i, j int) bool { return b.Bids[i].Price > b.Bids[j].Price })
	sort.Slice(b.Asks, func(i, j int) bool { return b.Asks[i].Price < b.Asks[j].Price })
}
