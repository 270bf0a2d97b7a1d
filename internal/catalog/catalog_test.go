package catalog

import (
	"testing"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/schema"
)

func market(id, symbol, base, quote string) schema.Market {
	return schema.Market{ID: id, Symbol: symbol, Base: base, Quote: quote, Active: true}
}

func TestBuildIndexesBothWays(t *testing.T) {
	c, err := Build("testex", []schema.Market{
		market("btc_usd", "BTC/USD", "BTC", "USD"),
		market("eth_btc", "ETH/BTC", "ETH", "BTC"),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}
	m, ok := c.ByID("btc_usd")
	if !ok || m.Symbol != "BTC/USD" {
		t.Fatalf("ByID = %+v, %v", m, ok)
	}
	m, ok = c.BySymbol("ETH/BTC")
	if !ok || m.ID != "eth_btc" {
		t.Fatalf("BySymbol = %+v, %v", m, ok)
	}
	if _, ok := c.BySymbol("DOGE/USD"); ok {
		t.Fatal("unexpected hit for unknown symbol")
	}
}

func TestBuildRejectsDuplicateID(t *testing.T) {
	_, err := Build("testex", []schema.Market{
		market("btc_usd", "BTC/USD", "BTC", "USD"),
		market("btc_usd", "BTC/USDT", "BTC", "USDT"),
	})
	if !errs.Is(err, errs.CodeData) {
		t.Fatalf("err = %v, want data error", err)
	}
}

func TestBuildRejectsDuplicateSymbol(t *testing.T) {
	_, err := Build("testex", []schema.Market{
		market("btc_usd", "BTC/USD", "BTC", "USD"),
		market("xbt_usd", "BTC/USD", "BTC", "USD"),
	})
	if !errs.Is(err, errs.CodeData) {
		t.Fatalf("err = %v, want data error", err)
	}
}

func TestBuildRejectsEmptyFields(t *testing.T) {
	_, err := Build("testex", []schema.Market{market("", "BTC/USD", "BTC", "USD")})
	if !errs.Is(err, errs.CodeData) {
		t.Fatalf("err = %v, want data error", err)
	}
}

func TestMarketsReturnsCopy(t *testing.T) {
	c, err := Build("testex", []schema.Market{market("btc_usd", "BTC/USD", "BTC", "USD")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := c.Markets()
	out[0].Symbol = "mutated"
	if m, _ := c.ByID("btc_usd"); m.Symbol != "BTC/USD" {
		t.Fatalf("catalog mutated through Markets copy: %q", m.Symbol)
	}
}

func TestSplitID(t *testing.T) {
	aliases := AliasTable{"XBT": "BTC", "DSH": "DASH"}

	base, quote, err := SplitID("btc_usd", "_", nil)
	if err != nil || base != "BTC" || quote != "USD" {
		t.Fatalf("SplitID = %q/%q, %v", base, quote, err)
	}
	base, quote, err = SplitID("xbt_usd", "_", aliases)
	if err != nil || base != "BTC" || quote != "USD" {
		t.Fatalf("aliased SplitID = %q/%q, %v", base, quote, err)
	}
	if _, _, err := SplitID("btcusd", "_", nil); err == nil {
		t.Fatal("expected error for id without separator")
	}
	if _, _, err := SplitID("btc_", "_", nil); err == nil {
		t.Fatal("expected error for empty quote")
	}
}

func TestCanonicalUppercases(t *testing.T) {
	aliases := AliasTable{"DSH": "DASH"}
	if got := aliases.Canonical("dsh"); got != "DASH" {
		t.Fatalf("Canonical = %q", got)
	}
	if got := aliases.Canonical("eth"); got != "ETH" {
		t.Fatalf("Canonical = %q", got)
	}
}
