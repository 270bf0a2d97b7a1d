// Package ordercache tracks orders seen through the client so venues without
// a full order-history endpoint can still answer closed-order queries.
package ordercache

import (
	"sort"
	"sync"

	"github.com/exbridge/exbridge/schema"
)

// Cache is a by-id order store. All methods are safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	orders map[string]schema.Order
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{orders: make(map[string]schema.Order)}
}

// Upsert stores or replaces the order under its id. Orders without an id are
// ignored.
func (c *Cache) Upsert(order schema.Order) {
	if order.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[order.ID] = order
}

// Get returns the cached order with the given id.
func (c *Cache) Get(id string) (schema.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	order, ok := c.orders[id]
	return order, ok
}

// MarkCanceled flips the cached order with the given id to canceled. Unknown
// ids are a no-op.
func (c *Cache) MarkCanceled(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	order, ok := c.orders[id]
	if !ok {
		return
	}
	order.Status = schema.OrderStatusCanceled
	c.orders[id] = order
}

// ApplyOpenOrders reconciles the cache against a fresh open-order listing.
// Every listed order is upserted. A cached open order absent from the listing
// is considered filled and transitions to closed: filled becomes amount,
// remaining becomes zero, and cost is derived from filled and price when the
// venue never reported one. When symbol is non-empty the listing only covers
// that market, so cached open orders for other symbols are left untouched.
func (c *Cache) ApplyOpenOrders(open []schema.Order, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(open))
	for _, order := range open {
		if order.ID == "" {
			continue
		}
		seen[order.ID] = struct{}{}
		c.orders[order.ID] = order
	}
	for id, cached := range c.orders {
		if cached.Status != schema.OrderStatusOpen {
			continue
		}
		if _, stillOpen := seen[id]; stillOpen {
			continue
		}
		if symbol != "" && cached.Symbol != symbol {
			continue
		}
		cached.Status = schema.OrderStatusClosed
		if cached.Amount != nil {
			filled := *cached.Amount
			cached.Filled = &filled
		}
		zero := 0.0
		cached.Remaining = &zero
		if cached.Cost == nil && cached.Filled != nil && cached.Price != nil {
			cost := *cached.Filled * *cached.Price
			cached.Cost = &cost
		}
		c.orders[id] = cached
	}
}

// Snapshot returns every cached order ordered by timestamp, then id.
func (c *Cache) Snapshot() []schema.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schema.Order, 0, len(c.orders))
	for _, order := range c.orders {
		out = append(out, order)
	}
	sortOrders(out)
	return out
}

func sortOrders(orders []schema.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Timestamp != orders[j].Timestamp {
			return orders[i].Timestamp < orders[j].Timestamp
		}
		return orders[i].ID < orders[j].ID
	})
}

// Filter narrows orders to the given symbol, timestamps at or after since,
// and at most limit entries. Zero-valued arguments disable their filter.
func Filter(orders []schema.Order, symbol string, since int64, limit int) []schema.Order {
	out := make([]schema.Order, 0, len(orders))
	for _, order := range orders {
		if symbol != "" && order.Symbol != symbol {
			continue
		}
		if since > 0 && order.Timestamp < since {
			continue
		}
		out = append(out, order)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FilterStatus keeps only orders in the given status.
func FilterStatus(orders []schema.Order, status schema.OrderStatus) []schema.Order {
	out := make([]schema.Order, 0, len(orders))
	for _, order := range orders {
		if order.Status == status {
			out = append(out, order)
		}
	}
	return out
}
