package bitz

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/exbridge/exbridge/config"
	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/codec"
	"github.com/exbridge/exbridge/schema"
)

type stubTransport struct {
	requests []*exchange.Request
	handler  func(req *exchange.Request) *exchange.Response
}

func (s *stubTransport) Do(_ context.Context, req *exchange.Request) (*exchange.Response, error) {
	s.requests = append(s.requests, req)
	return s.handler(req), nil
}

func respond(body string) *exchange.Response {
	return &exchange.Response{Status: http.StatusOK, Body: []byte(body)}
}

func newAdapter(tr *stubTransport, creds config.Credentials) *Adapter {
	return New(exchange.Options{
		Settings:  config.ExchangeSettings{Credentials: creds},
		Transport: tr,
		Clock:     func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
}

func routes(table map[string]string) *stubTransport {
	tr := &stubTransport{}
	tr.handler = func(req *exchange.Request) *exchange.Response {
		for path, body := range table {
			if strings.Contains(req.URL, path) {
				return respond(body)
			}
		}
		return respond(`{"code":0,"msg":"Success","data":{}}`)
	}
	return tr
}

const tickerallBody = `{"code":0,"msg":"Success","data":{` +
	`"eth_btc":{"date":1700000000,"last":"0.075","buy":"0.074","sell":"0.076","high":"0.08","low":"0.07","vol":"1250"},` +
	`"ltc_btc":false}}`

func TestFetchMarketsDerivedFromTickers(t *testing.T) {
	tr := routes(map[string]string{"tickerall": tickerallBody})
	markets, err := newAdapter(tr, config.Credentials{}).FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("markets = %d", len(markets))
	}
	eth := markets[0]
	if eth.ID != "eth_btc" || eth.Symbol != "ETH/BTC" || eth.Base != "ETH" || eth.Quote != "BTC" {
		t.Fatalf("market = %+v", eth)
	}
	if eth.BaseID != "eth" || eth.QuoteID != "btc" {
		t.Fatalf("market ids = %s/%s", eth.BaseID, eth.QuoteID)
	}
}

func TestFetchTickerScalesSecondDate(t *testing.T) {
	tr := routes(map[string]string{
		"tickerall": tickerallBody,
		"ticker?":   `{"code":0,"msg":"Success","data":{"date":1700000000,"last":"0.075","buy":"0.074","sell":"0.076","high":"0.08","low":"0.07","vol":"1250"}}`,
	})
	ticker, err := newAdapter(tr, config.Credentials{}).FetchTicker(context.Background(), "ETH/BTC")
	if err != nil {
		t.Fatalf("FetchTicker: %v", err)
	}
	if ticker.Timestamp != 1_700_000_000_000 {
		t.Fatalf("timestamp = %d", ticker.Timestamp)
	}
	if ticker.Bid == nil || *ticker.Bid != 0.074 || ticker.Ask == nil || *ticker.Ask != 0.076 {
		t.Fatalf("ticker = %+v", ticker)
	}
	if ticker.BaseVolume == nil || *ticker.BaseVolume != 1250 {
		t.Fatalf("base volume = %v", ticker.BaseVolume)
	}
}

func TestFetchTickersSkipsInactivePairs(t *testing.T) {
	tickers, err := newAdapter(routes(map[string]string{"tickerall": tickerallBody}), config.Credentials{}).
		FetchTickers(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchTickers: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("tickers = %d", len(tickers))
	}
	if tickers["ETH/BTC"].Last == nil || *tickers["ETH/BTC"].Last != 0.075 {
		t.Fatalf("ticker = %+v", tickers["ETH/BTC"])
	}
}

func TestFetchOrderBookSortsLevels(t *testing.T) {
	tr := routes(map[string]string{
		"tickerall": tickerallBody,
		"depth":     `{"code":0,"msg":"Success","data":{"date":1700000000,"bids":[["0.074","2"],["0.0745","1"]],"asks":[["0.077","3"],["0.076","1"]]}}`,
	})
	book, err := newAdapter(tr, config.Credentials{}).FetchOrderBook(context.Background(), "ETH/BTC", 0)
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if book.Timestamp != 1_700_000_000_000 {
		t.Fatalf("timestamp = %d", book.Timestamp)
	}
	if book.Bids[0].Price != 0.0745 || book.Asks[0].Price != 0.076 {
		t.Fatalf("top of book = %+v / %+v", book.Bids[0], book.Asks[0])
	}
}

func TestFetchTradesResolvesHongKongClock(t *testing.T) {
	tr := routes(map[string]string{
		"tickerall": tickerallBody,
		"orders?":   `{"code":0,"msg":"Success","data":{"d":[{"p":"50000","n":"0.5","s":"buy","t":"06:00:00"},{"p":"50010","n":"0.2","s":"sell","t":"05:59:00"}]}}`,
	})
	trades, err := newAdapter(tr, config.Credentials{}).FetchTrades(context.Background(), "ETH/BTC", 0, 0)
	if err != nil {
		t.Fatalf("FetchTrades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d", len(trades))
	}
	// The frozen clock reads 2023-11-14T22:13:20Z, which is already the 15th
	// in UTC+8, so 06:00:00 resolves to 2023-11-14T22:00:00Z.
	last := trades[1]
	if last.Timestamp != 1_699_999_200_000 || last.Side != schema.TradeSideBuy {
		t.Fatalf("trade = %+v", last)
	}
	if last.Cost == nil || *last.Cost != 25000 {
		t.Fatalf("cost = %v", last.Cost)
	}
	if trades[0].Timestamp != 1_699_999_140_000 {
		t.Fatalf("timestamps unsorted: %d", trades[0].Timestamp)
	}
}

func TestFetchOHLCVDecodesNestedPayload(t *testing.T) {
	tr := routes(map[string]string{
		"tickerall": tickerallBody,
		"kline":     `{"code":0,"msg":"Success","data":{"datas":{"data":"[[1700000000000,100,120,90,110,5.5]]"}}}`,
	})
	adapter := newAdapter(tr, config.Credentials{})
	candles, err := adapter.FetchOHLCV(context.Background(), "ETH/BTC", "1h", 0, 0)
	if err != nil {
		t.Fatalf("FetchOHLCV: %v", err)
	}
	candle := candles[0]
	if candle.Timestamp != 1_700_000_000_000 {
		t.Fatalf("timestamp = %d", candle.Timestamp)
	}
	if candle.Open != 100 || candle.High != 120 || candle.Low != 90 || candle.Close != 110 || candle.Volume != 5.5 {
		t.Fatalf("candle = %+v", candle)
	}
	last := tr.requests[len(tr.requests)-1]
	if !strings.Contains(last.URL, "type=1h") {
		t.Fatalf("kline url = %s", last.URL)
	}
}

func TestFetchOHLCVRejectsUnknownTimeframe(t *testing.T) {
	adapter := newAdapter(routes(nil), config.Credentials{})
	if _, err := adapter.FetchOHLCV(context.Background(), "ETH/BTC", "7m", 0, 0); !errs.Is(err, errs.CodeNotSupported) {
		t.Fatalf("err = %v", err)
	}
}

func TestPrivatePostSignsBodyWithWindowedNonce(t *testing.T) {
	tr := routes(map[string]string{
		"balances": `{"code":0,"msg":"Success","data":{"uid":123,"btc":"2","btc_lock":"0.5","eth":"1"}}`,
	})
	creds := config.Credentials{APIKey: "access", APISecret: "topsecret"}
	adapter := newAdapter(tr, creds)
	balances, err := adapter.FetchBalance(context.Background())
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	account := balances.Accounts["BTC"]
	if account.Free != 1.5 || account.Used != 0.5 || account.Total != 2 {
		t.Fatalf("account = %+v", account)
	}
	if _, ok := balances.Accounts["UID"]; ok {
		t.Fatalf("uid leaked into accounts")
	}
	payload := "api_key=access&nonce=100001&timestamp=1700000000"
	want := payload + "&sign=" + codec.HexHash(codec.MD5, payload+creds.APISecret)
	if got := string(tr.requests[0].Body); got != want {
		t.Fatalf("body = %s, want %s", got, want)
	}
	if _, err := adapter.FetchBalance(context.Background()); err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	if !strings.Contains(string(tr.requests[1].Body), "nonce=100002") {
		t.Fatalf("second body = %s", tr.requests[1].Body)
	}
}

func TestCreateOrderSendsTradePassword(t *testing.T) {
	tr := routes(map[string]string{
		"tickerall": tickerallBody,
		"tradeAdd":  `{"code":0,"msg":"Success","data":{"id":"77"}}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "access", APISecret: "topsecret", Password: "pwd"})
	order, err := adapter.CreateOrder(context.Background(), "ETH/BTC", schema.OrderTypeLimit, schema.TradeSideBuy, 2, schema.Float(0.074))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "77" || order.Status != schema.OrderStatusOpen || order.Timestamp != 1_700_000_000_000 {
		t.Fatalf("order = %+v", order)
	}
	if order.Remaining == nil || *order.Remaining != 2 {
		t.Fatalf("remaining = %v", order.Remaining)
	}
	body := string(tr.requests[len(tr.requests)-1].Body)
	for _, field := range []string{"coin=eth_btc", "type=in", "price=0.074", "number=2", "tradepwd=pwd", "&sign="} {
		if !strings.Contains(body, field) {
			t.Fatalf("body %s missing %s", body, field)
		}
	}
	if cached, ok := adapter.Orders.Get("77"); !ok || cached.Symbol != "ETH/BTC" {
		t.Fatalf("cached = %+v ok=%v", cached, ok)
	}
}

func TestCreateOrderRequiresTradePassword(t *testing.T) {
	tr := routes(nil)
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	_, err := adapter.CreateOrder(context.Background(), "ETH/BTC", schema.OrderTypeLimit, schema.TradeSideBuy, 2, schema.Float(0.074))
	if !errs.Is(err, errs.CodeAuthentication) {
		t.Fatalf("err = %v", err)
	}
	if len(tr.requests) != 0 {
		t.Fatalf("requests = %d", len(tr.requests))
	}
}

func TestCreateOrderRejectsMarketType(t *testing.T) {
	adapter := newAdapter(routes(nil), config.Credentials{APIKey: "k", APISecret: "s", Password: "pwd"})
	_, err := adapter.CreateOrder(context.Background(), "ETH/BTC", schema.OrderTypeMarket, schema.TradeSideBuy, 2, nil)
	if !errs.Is(err, errs.CodeInvalidOrder) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelOrderByIDAlone(t *testing.T) {
	tr := routes(map[string]string{
		"tickerall": tickerallBody,
		"tradeAdd":  `{"code":0,"msg":"Success","data":{"id":"77"}}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s", Password: "pwd"})
	if _, err := adapter.CreateOrder(context.Background(), "ETH/BTC", schema.OrderTypeLimit, schema.TradeSideBuy, 2, schema.Float(0.074)); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := adapter.CancelOrder(context.Background(), "77", ""); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	body := string(tr.requests[len(tr.requests)-1].Body)
	if !strings.Contains(body, "id=77") {
		t.Fatalf("body = %s", body)
	}
	if cached, ok := adapter.Orders.Get("77"); !ok || cached.Status != schema.OrderStatusCanceled {
		t.Fatalf("cached = %+v ok=%v", cached, ok)
	}
}

func TestOrderHistoryTrackedThroughCache(t *testing.T) {
	tr := routes(map[string]string{
		"tickerall":  tickerallBody,
		"tradeAdd":   `{"code":0,"msg":"Success","data":{"id":"77"}}`,
		"openOrders": `{"code":0,"msg":"Success","data":[{"id":"88","price":"0.074","number":"2","numberover":"0.5","type":"in","datetime":"2023-11-14 22:00:00"}]}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s", Password: "pwd"})
	if _, err := adapter.CreateOrder(context.Background(), "ETH/BTC", schema.OrderTypeLimit, schema.TradeSideBuy, 2, schema.Float(0.074)); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	open, err := adapter.FetchOpenOrders(context.Background(), "ETH/BTC", 0, 0)
	if err != nil {
		t.Fatalf("FetchOpenOrders: %v", err)
	}
	if len(open) != 1 || open[0].ID != "88" {
		t.Fatalf("open = %+v", open)
	}
	if open[0].Filled == nil || *open[0].Filled != 1.5 || open[0].Remaining == nil || *open[0].Remaining != 0.5 {
		t.Fatalf("progress = %+v", open[0])
	}
	if open[0].Side != schema.TradeSideBuy || open[0].Timestamp != 1_699_999_200_000 {
		t.Fatalf("open order = %+v", open[0])
	}

	// Order 77 left the open listing, so the cache treats it as filled.
	closed, err := adapter.FetchClosedOrders(context.Background(), "ETH/BTC", 0, 0)
	if err != nil {
		t.Fatalf("FetchClosedOrders: %v", err)
	}
	if len(closed) != 1 || closed[0].ID != "77" || closed[0].Status != schema.OrderStatusClosed {
		t.Fatalf("closed = %+v", closed)
	}
	if closed[0].Remaining == nil || *closed[0].Remaining != 0 {
		t.Fatalf("remaining = %v", closed[0].Remaining)
	}
	if closed[0].Cost == nil || *closed[0].Cost != 0.148 {
		t.Fatalf("cost = %v", closed[0].Cost)
	}
}

func TestFetchOrderUnknownID(t *testing.T) {
	adapter := newAdapter(routes(nil), config.Credentials{APIKey: "k", APISecret: "s"})
	if _, err := adapter.FetchOrder(context.Background(), "404", ""); !errs.Is(err, errs.CodeOrderNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchOpenOrdersRequiresSymbol(t *testing.T) {
	adapter := newAdapter(routes(nil), config.Credentials{APIKey: "k", APISecret: "s"})
	if _, err := adapter.FetchOpenOrders(context.Background(), "", 0, 0); !errs.Is(err, errs.CodeInvalidOrder) {
		t.Fatalf("err = %v", err)
	}
}

func TestErrorCodeClassification(t *testing.T) {
	cases := []struct {
		venueCode string
		want      errs.Code
	}{
		{"103", errs.CodeAuthentication},
		{"106", errs.CodeDDoSProtection},
		{"201", errs.CodeOrderNotFound},
		{"203", errs.CodeInvalidNonce},
		{"408", errs.CodeInsufficientFunds},
		{"999", errs.CodeExchange},
	}
	for _, tc := range cases {
		tr := routes(map[string]string{
			"tickerall": `{"code":` + tc.venueCode + `,"msg":"boom","data":null}`,
		})
		_, err := newAdapter(tr, config.Credentials{}).FetchMarkets(context.Background())
		if !errs.Is(err, tc.want) {
			t.Fatalf("code %s: err = %v, want %s", tc.venueCode, err, tc.want)
		}
	}
}

func TestPrivateRequiresCredentials(t *testing.T) {
	tr := routes(nil)
	_, err := newAdapter(tr, config.Credentials{}).FetchBalance(context.Background())
	if !errs.Is(err, errs.CodeAuthentication) {
		t.Fatalf("err = %v", err)
	}
	if len(tr.requests) != 0 {
		t.Fatalf("requests = %d", len(tr.requests))
	}
}

func TestUnsupportedOperations(t *testing.T) {
	adapter := newAdapter(routes(nil), config.Credentials{APIKey: "k", APISecret: "s"})
	if _, err := adapter.FetchMyTrades(context.Background(), "ETH/BTC", 0, 0); !errs.Is(err, errs.CodeNotSupported) {
		t.Fatalf("fetchMyTrades err = %v", err)
	}
	if _, err := adapter.Withdraw(context.Background(), "BTC", 1, "addr", ""); !errs.Is(err, errs.CodeNotSupported) {
		t.Fatalf("withdraw err = %v", err)
	}
}
