package lbank

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
		probe := req.URL + " " + string(req.Body)
		for key, body := range table {
			if strings.Contains(probe, key) {
				return respond(body)
			}
		}
		return respond(`{}`)
	}
	return tr
}

const marketsBody = `["eth_btc","zec_btc"]`

func TestFetchMarketsSplitsPairIDs(t *testing.T) {
	tr := routes(map[string]string{"currencyPairs.do": marketsBody})
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
}

func TestFetchTickerDerivesOpenFromChange(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do": marketsBody,
		"ticker.do":        `{"symbol":"eth_btc","timestamp":1700000000123,"ticker":{"latest":"105","change":"5","high":"110","low":"95","vol":"1200","turnover":"126000"}}`,
	})
	ticker, err := newAdapter(tr, config.Credentials{}).FetchTicker(context.Background(), "ETH/BTC")
	if err != nil {
		t.Fatalf("FetchTicker: %v", err)
	}
	if ticker.Timestamp != 1_700_000_000_123 {
		t.Fatalf("timestamp = %d", ticker.Timestamp)
	}
	if ticker.Last == nil || *ticker.Last != 105 {
		t.Fatalf("last = %v", ticker.Last)
	}
	if ticker.Change == nil || *ticker.Change != 5 {
		t.Fatalf("change = %v", ticker.Change)
	}
	if ticker.Average == nil || *ticker.Average != 102.5 {
		t.Fatalf("average = %v", ticker.Average)
	}
	if ticker.BaseVolume == nil || *ticker.BaseVolume != 1200 {
		t.Fatalf("base volume = %v", ticker.BaseVolume)
	}
}

func TestFetchTickersFiltersRequestedSymbols(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do": marketsBody,
		"symbol=all":       `[{"symbol":"eth_btc","timestamp":1700000000123,"ticker":{"latest":"105","change":"5"}},{"symbol":"zec_btc","timestamp":1700000000123,"ticker":{"latest":"0.02","change":"1"}}]`,
	})
	tickers, err := newAdapter(tr, config.Credentials{}).FetchTickers(context.Background(), []string{"ETH/BTC"})
	if err != nil {
		t.Fatalf("FetchTickers: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("tickers = %d", len(tickers))
	}
	if tickers["ETH/BTC"].Last == nil || *tickers["ETH/BTC"].Last != 105 {
		t.Fatalf("ticker = %+v", tickers["ETH/BTC"])
	}
}

func TestFetchOrderBookCapsDepthSize(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do": marketsBody,
		"depth.do":         `{"bids":[[0.074,2],[0.0745,1]],"asks":[[0.077,3],[0.076,1]]}`,
	})
	adapter := newAdapter(tr, config.Credentials{})
	book, err := adapter.FetchOrderBook(context.Background(), "ETH/BTC", 200)
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if book.Bids[0].Price != 0.0745 || book.Asks[0].Price != 0.076 {
		t.Fatalf("top of book = %+v / %+v", book.Bids[0], book.Asks[0])
	}
	last := tr.requests[len(tr.requests)-1]
	if !strings.Contains(last.URL, "size=60") {
		t.Fatalf("depth url = %s", last.URL)
	}
}

func TestFetchTradesUsesMillisecondDates(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do": marketsBody,
		"trades.do":        `[{"tid":"t2","type":"sell","price":0.076,"amount":2,"date_ms":1700000001000},{"tid":"t1","type":"buy","price":0.075,"amount":1,"date_ms":1700000000000}]`,
	})
	trades, err := newAdapter(tr, config.Credentials{}).FetchTrades(context.Background(), "ETH/BTC", 0, 0)
	if err != nil {
		t.Fatalf("FetchTrades: %v", err)
	}
	first := trades[0]
	if first.ID != "t1" || first.Timestamp != 1_700_000_000_000 || first.Side != schema.TradeSideBuy {
		t.Fatalf("trade = %+v", first)
	}
	if first.Cost == nil || *first.Cost != 0.075 {
		t.Fatalf("cost = %v", first.Cost)
	}
}

func TestFetchOHLCVRequiresSinceAndLimit(t *testing.T) {
	adapter := newAdapter(routes(nil), config.Credentials{})
	if _, err := adapter.FetchOHLCV(context.Background(), "ETH/BTC", "1h", 0, 10); !errs.Is(err, errs.CodeExchange) {
		t.Fatalf("missing since: err = %v", err)
	}
	if _, err := adapter.FetchOHLCV(context.Background(), "ETH/BTC", "1h", 1_700_000_000_000, 0); !errs.Is(err, errs.CodeExchange) {
		t.Fatalf("missing limit: err = %v", err)
	}
}

func TestFetchOHLCVScalesTimestamps(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do": marketsBody,
		"kline.do":         `[[1700000000,100,120,90,110,5.5]]`,
	})
	adapter := newAdapter(tr, config.Credentials{})
	candles, err := adapter.FetchOHLCV(context.Background(), "ETH/BTC", "1h", 1_600_000_000_000, 10)
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
	if !strings.Contains(last.URL, "type=hour1") || !strings.Contains(last.URL, "time=1600000000") {
		t.Fatalf("kline url = %s", last.URL)
	}
}

func TestPrivatePostSignsRawQuery(t *testing.T) {
	tr := routes(map[string]string{
		"user_info.do": `{"result":"true","info":{"free":{"btc":"1.5","eth":"0"},"freeze":{"btc":"0.5"}}}`,
	})
	creds := config.Credentials{APIKey: "access", APISecret: "topsecret"}
	balances, err := newAdapter(tr, creds).FetchBalance(context.Background())
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	account := balances.Accounts["BTC"]
	if account.Free != 1.5 || account.Used != 0.5 || account.Total != 2 {
		t.Fatalf("account = %+v", account)
	}
	req := tr.requests[0]
	if !strings.HasSuffix(req.URL, "/user_info.do") {
		t.Fatalf("url = %s", req.URL)
	}
	want := strings.ToUpper(codec.HexHash(codec.MD5,
		codec.RawEncode(codec.Params{"api_key": "access"})+"&secret_key="+creds.APISecret))
	if !strings.Contains(string(req.Body), "sign="+want) {
		t.Fatalf("body = %s", req.Body)
	}
}

func TestCreateOrderSynthesizesCachedOrder(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do": marketsBody,
		"create_order.do":  `{"result":"true","order_id":"ab-123"}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	order, err := adapter.CreateOrder(context.Background(), "ETH/BTC", schema.OrderTypeMarket, schema.TradeSideBuy, 2, nil)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "ab-123" || order.Status != schema.OrderStatusOpen || order.Timestamp != 1_700_000_000_000 {
		t.Fatalf("order = %+v", order)
	}
	req := tr.requests[len(tr.requests)-1]
	if !strings.Contains(string(req.Body), "type=buy_market") {
		t.Fatalf("body = %s", req.Body)
	}
	if cached, ok := adapter.Orders.Get("ab-123"); !ok || cached.Symbol != "ETH/BTC" {
		t.Fatalf("cached = %+v ok=%v", cached, ok)
	}
}

func TestCreateOrderLimitRequiresPrice(t *testing.T) {
	tr := routes(map[string]string{"currencyPairs.do": marketsBody})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	_, err := adapter.CreateOrder(context.Background(), "ETH/BTC", schema.OrderTypeLimit, schema.TradeSideBuy, 2, nil)
	if !errs.Is(err, errs.CodeInvalidOrder) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelOrderMarksCache(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do": marketsBody,
		"create_order.do":  `{"result":"true","order_id":"ab-123"}`,
		"cancel_order.do":  `{"result":"true"}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	if _, err := adapter.CreateOrder(context.Background(), "ETH/BTC", schema.OrderTypeLimit, schema.TradeSideBuy, 2, schema.Float(0.074)); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := adapter.CancelOrder(context.Background(), "ab-123", "ETH/BTC"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cached, _ := adapter.Orders.Get("ab-123"); cached.Status != schema.OrderStatusCanceled {
		t.Fatalf("cached = %+v", cached)
	}
}

const historyBody = `{"result":"true","orders":[` +
	`{"order_id":"o1","symbol":"eth_btc","status":"1","type":"buy","order_type":"limit","price":0.074,"amount":2,"deal_amount":1,"avg_price":0.074,"create_time":1700000000000},` +
	`{"order_id":"o2","symbol":"eth_btc","status":"2","type":"sell","order_type":"limit","price":0.08,"amount":1,"deal_amount":1,"avg_price":0.081,"create_time":1700000001000},` +
	`{"order_id":"o3","symbol":"eth_btc","status":"-1","type":"buy","order_type":"limit","price":0.07,"amount":1,"deal_amount":0,"create_time":1700000002000}]}`

func TestFetchOpenOrdersFiltersHistoryLocally(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do":       marketsBody,
		"orders_info_history.do": historyBody,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	orders, err := adapter.FetchOpenOrders(context.Background(), "ETH/BTC", 0, 0)
	if err != nil {
		t.Fatalf("FetchOpenOrders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "o1" {
		t.Fatalf("orders = %+v", orders)
	}
	if orders[0].Remaining == nil || *orders[0].Remaining != 1 {
		t.Fatalf("remaining = %v", orders[0].Remaining)
	}
}

func TestFetchClosedOrdersIncludesCanceled(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do":       marketsBody,
		"orders_info_history.do": historyBody,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	orders, err := adapter.FetchClosedOrders(context.Background(), "ETH/BTC", 0, 0)
	if err != nil {
		t.Fatalf("FetchClosedOrders: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "o2" || orders[1].ID != "o3" {
		t.Fatalf("orders = %+v", orders)
	}
	if orders[0].Cost == nil || *orders[0].Cost != 0.081 {
		t.Fatalf("cost = %v", orders[0].Cost)
	}
}

func TestFetchOrderReturnsNotFoundOnEmptyList(t *testing.T) {
	tr := routes(map[string]string{
		"currencyPairs.do": marketsBody,
		"orders_info.do":   `{"result":"true","orders":[]}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	_, err := adapter.FetchOrder(context.Background(), "missing", "ETH/BTC")
	if !errs.Is(err, errs.CodeOrderNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestErrorCodeClassification(t *testing.T) {
	cases := []struct {
		venueCode string
		want      errs.Code
	}{
		{"10002", errs.CodeAuthentication},
		{"10004", errs.CodeDDoSProtection},
		{"10007", errs.CodeAuthentication},
		{"10016", errs.CodeInvalidOrder},
		{"10017", errs.CodeExchange},
	}
	for _, tc := range cases {
		tr := routes(map[string]string{
			"user_info.do": `{"result":"false","error_code":` + tc.venueCode + `}`,
		})
		adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
		_, err := adapter.FetchBalance(context.Background())
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
