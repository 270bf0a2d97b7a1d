package schema

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// OrderType identifies the execution style of an order.
type OrderType string

const (
	// OrderTypeLimit marks a limit order.
	OrderTypeLimit OrderType = "limit"
	// OrderTypeMarket marks a market order.
	OrderTypeMarket OrderType = "market"
)

// ParseOrderType converts an exchange-native order type string.
func ParseOrderType(input string) (OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "limit":
		return OrderTypeLimit, nil
	case "market":
		return OrderTypeMarket, nil
	default:
		return OrderType(""), fmt.Errorf("unsupported order type %q", input)
	}
}

// OrderStatus is the canonical order lifecycle state. Closed and canceled
// are terminal.
type OrderStatus string

const (
	// OrderStatusOpen marks a live order.
	OrderStatusOpen OrderStatus = "open"
	// OrderStatusClosed marks a fully filled order.
	OrderStatusClosed OrderStatus = "closed"
	// OrderStatusCanceled marks an order canceled before completion.
	OrderStatusCanceled OrderStatus = "canceled"
)

// Order is the canonical order record. Remaining equals Amount-Filled
// whenever both operands are known.
type Order struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Status    OrderStatus     `json:"status"`
	Symbol    string          `json:"symbol"`
	Type      OrderType       `json:"type,omitempty"`
	Side      TradeSide       `json:"side"`
	Price     *float64        `json:"price,omitempty"`
	Amount    *float64        `json:"amount,omitempty"`
	Filled    *float64        `json:"filled,omitempty"`
	Remaining *float64        `json:"remaining,omitempty"`
	Cost      *float64        `json:"cost,omitempty"`
	Average   *float64        `json:"average,omitempty"`
	Trades    []Trade         `json:"trades,omitempty"`
	Fee       *Fee            `json:"fee,omitempty"`
	Info      json.RawMessage `json:"info,omitempty"`
}

// DeriveRemaining fills Remaining from Amount-Filled when both are known and
// Remaining itself is absent. Negative results clamp to zero.
func (o *Order) DeriveRemaining() {
	if o.Remaining != nil || o.Amount == nil || o.Filled == nil {
		return
	}
	delta := decimal.NewFromFloat(*o.Amount).Sub(decimal.NewFromFloat(*o.Filled))
	if delta.IsNegative() {
		delta = decimal.Zero
	}
	remaining, _ := delta.Float64()
	o.Remaining = &remaining
}
