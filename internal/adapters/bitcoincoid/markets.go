package bitcoincoid

import "github.com/exbridge/exbridge/schema"

type marketDef struct {
	id        string
	symbol    string
	base      string
	quote     string
	baseID    string
	quoteID   string
	minAmount float64
}

// The venue publishes no market endpoint; the catalog is maintained by hand
// from the API documentation.
var marketDefs = []marketDef{
	{"btc_idr", "BTC/IDR", "BTC", "IDR", "btc", "idr", 0.0001},
	{"bch_idr", "BCH/IDR", "BCH", "IDR", "bch", "idr", 0.001},
	{"btg_idr", "BTG/IDR", "BTG", "IDR", "btg", "idr", 0.01},
	{"eth_idr", "ETH/IDR", "ETH", "IDR", "eth", "idr", 0.01},
	{"etc_idr", "ETC/IDR", "ETC", "IDR", "etc", "idr", 0.1},
	{"ignis_idr", "IGNIS/IDR", "IGNIS", "IDR", "ignis", "idr", 1},
	{"ltc_idr", "LTC/IDR", "LTC", "IDR", "ltc", "idr", 0.01},
	{"nxt_idr", "NXT/IDR", "NXT", "IDR", "nxt", "idr", 5},
	{"waves_idr", "WAVES/IDR", "WAVES", "IDR", "waves", "idr", 0.1},
	{"xrp_idr", "XRP/IDR", "XRP", "IDR", "xrp", "idr", 10},
	{"xzc_idr", "XZC/IDR", "XZC", "IDR", "xzc", "idr", 0.1},
	{"str_idr", "XLM/IDR", "XLM", "IDR", "str", "idr", 20},
	{"bts_btc", "BTS/BTC", "BTS", "BTC", "bts", "btc", 0.01},
	{"drk_btc", "DASH/BTC", "DASH", "BTC", "drk", "btc", 0.01},
	{"doge_btc", "DOGE/BTC", "DOGE", "BTC", "doge", "btc", 1},
	{"eth_btc", "ETH/BTC", "ETH", "BTC", "eth", "btc", 0.001},
	{"ltc_btc", "LTC/BTC", "LTC", "BTC", "ltc", "btc", 0.01},
	{"nxt_btc", "NXT/BTC", "NXT", "BTC", "nxt", "btc", 0.01},
	{"str_btc", "XLM/BTC", "XLM", "BTC", "str", "btc", 0.01},
	{"nem_btc", "XEM/BTC", "XEM", "BTC", "nem", "btc", 1},
	{"xrp_btc", "XRP/BTC", "XRP", "BTC", "xrp", "btc", 0.01},
}

func staticMarkets() []schema.Market {
	out := make([]schema.Market, 0, len(marketDefs))
	for _, def := range marketDefs {
		min := def.minAmount
		out = append(out, schema.Market{
			ID:      def.id,
			Symbol:  def.symbol,
			Base:    def.base,
			Quote:   def.quote,
			BaseID:  def.baseID,
			QuoteID: def.quoteID,
			Active:  true,
			Limits: schema.Limits{
				Amount: schema.MinMax{Min: &min},
			},
		})
	}
	return out
}
