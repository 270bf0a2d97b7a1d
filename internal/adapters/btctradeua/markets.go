package btctradeua

import "github.com/exbridge/exbridge/schema"

type marketDef struct {
	id     string
	symbol string
	base   string
	quote  string
}

// The venue publishes no market endpoint; the catalog is maintained by hand.
var marketDefs = []marketDef{
	{"bch_uah", "BCH/UAH", "BCH", "UAH"},
	{"btc_uah", "BTC/UAH", "BTC", "UAH"},
	{"dash_btc", "DASH/BTC", "DASH", "BTC"},
	{"dash_uah", "DASH/UAH", "DASH", "UAH"},
	{"doge_btc", "DOGE/BTC", "DOGE", "BTC"},
	{"doge_uah", "DOGE/UAH", "DOGE", "UAH"},
	{"eth_uah", "ETH/UAH", "ETH", "UAH"},
	{"iti_uah", "ITI/UAH", "ITI", "UAH"},
	{"krb_uah", "KRB/UAH", "KRB", "UAH"},
	{"ltc_btc", "LTC/BTC", "LTC", "BTC"},
	{"ltc_uah", "LTC/UAH", "LTC", "UAH"},
	{"nvc_btc", "NVC/BTC", "NVC", "BTC"},
	{"nvc_uah", "NVC/UAH", "NVC", "UAH"},
	{"ppc_btc", "PPC/BTC", "PPC", "BTC"},
	{"sib_uah", "SIB/UAH", "SIB", "UAH"},
	{"xmr_uah", "XMR/UAH", "XMR", "UAH"},
	{"zec_uah", "ZEC/UAH", "ZEC", "UAH"},
}

func staticMarkets() []schema.Market {
	out := make([]schema.Market, 0, len(marketDefs))
	for _, def := range marketDefs {
		out = append(out, schema.Market{
			ID:      def.id,
			Symbol:  def.symbol,
			Base:    def.base,
			Quote:   def.quote,
			BaseID:  def.base,
			QuoteID: def.quote,
			Active:  true,
		})
	}
	return out
}
