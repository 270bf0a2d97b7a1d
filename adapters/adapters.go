// Package adapters wires built-in exchange adapters into a registry.
package adapters

import (
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/adapters/bitcoincoid"
	"github.com/exbridge/exbridge/internal/adapters/bitz"
	"github.com/exbridge/exbridge/internal/adapters/btctradeua"
	"github.com/exbridge/exbridge/internal/adapters/coinex"
	"github.com/exbridge/exbridge/internal/adapters/exmo"
	"github.com/exbridge/exbridge/internal/adapters/lbank"
	"github.com/exbridge/exbridge/internal/adapters/zb"
)

// RegisterAll installs every built-in adapter into the provided registry.
func RegisterAll(reg *exchange.Registry) {
	if reg == nil {
		return
	}
	bitcoincoid.RegisterFactory(reg)
	bitz.RegisterFactory(reg)
	btctradeua.RegisterFactory(reg)
	coinex.RegisterFactory(reg)
	exmo.RegisterFactory(reg)
	lbank.RegisterFactory(reg)
	zb.RegisterFactory(reg)
}

// NewRegistry returns a registry with every built-in adapter installed.
func NewRegistry() *exchange.Registry {
	reg := exchange.NewRegistry()
	RegisterAll(reg)
	return reg
}
