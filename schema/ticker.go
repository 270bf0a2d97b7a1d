package schema

import (
	json "github.com/goccy/go-json"
)

// Ticker is a snapshot of current price and volume statistics for a market.
// Timestamp is epoch milliseconds; all statistics are optional because few
// venues report the full set.
type Ticker struct {
	Symbol      string          `json:"symbol"`
	Timestamp   int64           `json:"timestamp"`
	High        *float64        `json:"high,omitempty"`
	Low         *float64        `json:"low,omitempty"`
	Bid         *float64        `json:"bid,omitempty"`
	Ask         *float64        `json:"ask,omitempty"`
	Open        *float64        `json:"open,omitempty"`
	Close       *float64        `json:"close,omitempty"`
	Last        *float64        `json:"last,omitempty"`
	Change      *float64        `json:"change,omitempty"`
	Percentage  *float64        `json:"percentage,omitempty"`
	Average     *float64        `json:"average,omitempty"`
	BaseVolume  *float64        `json:"baseVolume,omitempty"`
	QuoteVolume *float64        `json:"quoteVolume,omitempty"`
	Info        json.RawMessage `json:"info,omitempty"`
}
