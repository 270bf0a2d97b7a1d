package schema

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// TradeSide identifies the taker direction of a trade or order.
type TradeSide string

const (
	// TradeSideBuy marks a buy.
	TradeSideBuy TradeSide = "buy"
	// TradeSideSell marks a sell.
	TradeSideSell TradeSide = "sell"
)

// ParseTradeSide converts an exchange-native side string into a canonical side.
func ParseTradeSide(input string) (TradeSide, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "buy", "bid":
		return TradeSideBuy, nil
	case "sell", "ask":
		return TradeSideSell, nil
	default:
		return TradeSide(""), fmt.Errorf("unsupported trade side %q", input)
	}
}

// Fee describes the commission charged on a trade or order.
type Fee struct {
	Cost     float64 `json:"cost"`
	Currency string  `json:"currency,omitempty"`
}

// Trade is one canonical fill. ID may be empty when the venue assigns none;
// OrderID back-references the originating order when known. Cost is derived
// as Price×Amount when the wire omits it.
type Trade struct {
	ID        string          `json:"id,omitempty"`
	OrderID   string          `json:"order,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Type      OrderType       `json:"type,omitempty"`
	Side      TradeSide       `json:"side"`
	Price     float64         `json:"price"`
	Amount    float64         `json:"amount"`
	Cost      *float64        `json:"cost,omitempty"`
	Fee       *Fee            `json:"fee,omitempty"`
	Info      json.RawMessage `json:"info,omitempty"`
}
