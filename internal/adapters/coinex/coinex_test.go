package coinex

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

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
		return respond(`{"code":0,"message":"Ok","data":{}}`)
	}
	return tr
}

const marketsBody = `{"code":0,"message":"Ok","data":["ETHBTC","BCHBTC"]}`

func TestFetchMarketsSlicesConcatenatedIDs(t *testing.T) {
	tr := routes(map[string]string{"market/list": marketsBody})
	markets, err := newAdapter(tr, config.Credentials{}).FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("markets = %d", len(markets))
	}
	eth := markets[1]
	if eth.ID != "ETHBTC" || eth.Base != "BTC" || eth.Quote != "ETH" || eth.Symbol != "BTC/ETH" {
		t.Fatalf("market = %+v", eth)
	}
	if eth.Limits.Amount.Min == nil || *eth.Limits.Amount.Min != 0.001 {
		t.Fatalf("amount min = %v", eth.Limits.Amount.Min)
	}
}

func TestFetchTickerKeepsMillisecondDate(t *testing.T) {
	tr := routes(map[string]string{
		"market/list":    marketsBody,
		"market/ticker?": `{"code":0,"message":"Ok","data":{"date":1700000000123,"ticker":{"high":"0.08","low":"0.07","buy":"0.074","sell":"0.076","last":"0.075","vol":"1250"}}}`,
	})
	ticker, err := newAdapter(tr, config.Credentials{}).FetchTicker(context.Background(), "BTC/ETH")
	if err != nil {
		t.Fatalf("FetchTicker: %v", err)
	}
	if ticker.Timestamp != 1_700_000_000_123 {
		t.Fatalf("timestamp = %d", ticker.Timestamp)
	}
	if ticker.Last == nil || *ticker.Last != 0.075 {
		t.Fatalf("last = %v", ticker.Last)
	}
	if ticker.QuoteVolume == nil || *ticker.QuoteVolume != 1250 {
		t.Fatalf("quote volume = %v", ticker.QuoteVolume)
	}
}

func TestFetchTickersFiltersRequestedSymbols(t *testing.T) {
	tr := routes(map[string]string{
		"market/list": marketsBody,
		"ticker/all":  `{"code":0,"message":"Ok","data":{"date":1700000000123,"ticker":{"ETHBTC":{"last":"0.075"},"BCHBTC":{"last":"0.01"}}}}`,
	})
	tickers, err := newAdapter(tr, config.Credentials{}).FetchTickers(context.Background(), []string{"BTC/ETH"})
	if err != nil {
		t.Fatalf("FetchTickers: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("tickers = %d", len(tickers))
	}
	if tickers["BTC/ETH"].Last == nil || *tickers["BTC/ETH"].Last != 0.075 {
		t.Fatalf("ticker = %+v", tickers["BTC/ETH"])
	}
}

func TestFetchOrderBookSortsAndMerges(t *testing.T) {
	tr := routes(map[string]string{
		"market/list":  marketsBody,
		"market/depth": `{"code":0,"message":"Ok","data":{"last":"0.075","time":1700000000123,"bids":[[0.074,2],[0.0745,1]],"asks":[[0.077,3],[0.076,1]]}}`,
	})
	adapter := newAdapter(tr, config.Credentials{})
	book, err := adapter.FetchOrderBook(context.Background(), "BTC/ETH", 20)
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if book.Bids[0].Price != 0.0745 || book.Asks[0].Price != 0.076 {
		t.Fatalf("top of book = %+v / %+v", book.Bids[0], book.Asks[0])
	}
	last := tr.requests[len(tr.requests)-1]
	if !strings.Contains(last.URL, "merge="+depthMerge) || !strings.Contains(last.URL, "limit=20") {
		t.Fatalf("depth url = %s", last.URL)
	}
}

func TestFetchTradesScalesSecondsAndKeepsIDs(t *testing.T) {
	tr := routes(map[string]string{
		"market/list":  marketsBody,
		"market/deals": `{"code":0,"message":"Ok","data":[{"id":9001,"type":"sell","price":"0.076","amount":"2","date":1700000001},{"id":9000,"type":"buy","price":"0.075","amount":"1","date":1700000000}]}`,
	})
	trades, err := newAdapter(tr, config.Credentials{}).FetchTrades(context.Background(), "BTC/ETH", 0, 0)
	if err != nil {
		t.Fatalf("FetchTrades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d", len(trades))
	}
	first := trades[0]
	if first.ID != "9000" || first.Timestamp != 1_700_000_000_000 || first.Side != schema.TradeSideBuy {
		t.Fatalf("trade = %+v", first)
	}
	if first.Cost == nil || *first.Cost != 0.075 {
		t.Fatalf("cost = %v", first.Cost)
	}
}

func TestFetchOHLCVReordersColumns(t *testing.T) {
	tr := routes(map[string]string{
		"market/list":  marketsBody,
		"market/kline": `{"code":0,"message":"Ok","data":[[1700000000,100,110,120,90,5.5]]}`,
	})
	adapter := newAdapter(tr, config.Credentials{})
	candles, err := adapter.FetchOHLCV(context.Background(), "BTC/ETH", "1h", 0, 0)
	if err != nil {
		t.Fatalf("FetchOHLCV: %v", err)
	}
	candle := candles[0]
	if candle.Timestamp != 1_700_000_000_000 {
		t.Fatalf("timestamp = %d", candle.Timestamp)
	}
	if candle.Open != 100 || candle.Close != 110 || candle.High != 120 || candle.Low != 90 || candle.Volume != 5.5 {
		t.Fatalf("candle = %+v", candle)
	}
	last := tr.requests[len(tr.requests)-1]
	if !strings.Contains(last.URL, "type=1hour") {
		t.Fatalf("kline url = %s", last.URL)
	}
}

func TestFetchOHLCVRejectsUnknownTimeframe(t *testing.T) {
	adapter := newAdapter(routes(nil), config.Credentials{})
	if _, err := adapter.FetchOHLCV(context.Background(), "BTC/ETH", "7m", 0, 0); !errs.Is(err, errs.CodeNotSupported) {
		t.Fatalf("err = %v", err)
	}
}

func TestPrivateRequestSignsSortedQuery(t *testing.T) {
	tr := routes(map[string]string{
		"balance": `{"code":0,"message":"Ok","data":{"BTC":{"available":"1.5","frozen":"0.5"}}}`,
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
	query := req.URL[strings.Index(req.URL, "?")+1:]
	if !strings.Contains(query, "access_id=access") || !strings.Contains(query, "tonce=1700000000000") {
		t.Fatalf("query = %s", query)
	}
	want := strings.ToUpper(codec.HexHash(codec.MD5, query+"&secret_key="+creds.APISecret))
	if got := req.Header.Get("Authorization"); got != want {
		t.Fatalf("authorization = %s, want %s", got, want)
	}
}

func TestCreateOrderPostsJSONAndParsesResponse(t *testing.T) {
	tr := routes(map[string]string{
		"market/list": marketsBody,
		"order/limit": `{"code":0,"message":"Ok","data":{"id":77,"create_time":1700000000,"status":"not_deal","market":"ETHBTC","type":"buy","order_type":"limit","price":"0.074","amount":"2","deal_amount":"0","deal_money":"0","deal_fee":"0"}}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "access", APISecret: "topsecret"})
	order, err := adapter.CreateOrder(context.Background(), "BTC/ETH", schema.OrderTypeLimit, schema.TradeSideBuy, 2, schema.Float(0.074))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "77" || order.Status != schema.OrderStatusOpen || order.Timestamp != 1_700_000_000_000 {
		t.Fatalf("order = %+v", order)
	}
	if order.Remaining == nil || *order.Remaining != 2 {
		t.Fatalf("remaining = %v", order.Remaining)
	}
	req := tr.requests[len(tr.requests)-1]
	if req.Method != http.MethodPost {
		t.Fatalf("method = %s", req.Method)
	}
	var body map[string]string
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["market"] != "ETHBTC" || body["type"] != "buy" || body["price"] != "0.074" || body["amount"] != "2" {
		t.Fatalf("body = %v", body)
	}
	if cached, ok := adapter.Orders.Get("77"); !ok || cached.Symbol != "BTC/ETH" {
		t.Fatalf("cached = %+v ok=%v", cached, ok)
	}
}

func TestCreateOrderLimitRequiresPrice(t *testing.T) {
	tr := routes(map[string]string{"market/list": marketsBody})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	_, err := adapter.CreateOrder(context.Background(), "BTC/ETH", schema.OrderTypeLimit, schema.TradeSideBuy, 2, nil)
	if !errs.Is(err, errs.CodeInvalidOrder) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelOrderUsesDelete(t *testing.T) {
	tr := routes(map[string]string{
		"market/list":   marketsBody,
		"order/pending": `{"code":0,"message":"Ok","data":{"id":77,"create_time":1700000000,"status":"not_deal","type":"buy","order_type":"limit","price":"0.074","amount":"2","deal_amount":"0","deal_money":"0"}}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	if err := adapter.CancelOrder(context.Background(), "77", "BTC/ETH"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	req := tr.requests[len(tr.requests)-1]
	if req.Method != http.MethodDelete || !strings.Contains(req.URL, "id=77") {
		t.Fatalf("request = %s %s", req.Method, req.URL)
	}
	if cached, ok := adapter.Orders.Get("77"); !ok || cached.Status != schema.OrderStatusCanceled {
		t.Fatalf("cached = %+v ok=%v", cached, ok)
	}
}

func TestCancelOrderRequiresSymbol(t *testing.T) {
	adapter := newAdapter(routes(nil), config.Credentials{APIKey: "k", APISecret: "s"})
	if err := adapter.CancelOrder(context.Background(), "77", ""); !errs.Is(err, errs.CodeInvalidOrder) {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchClosedOrdersMapsDoneStatus(t *testing.T) {
	tr := routes(map[string]string{
		"market/list":    marketsBody,
		"order/finished": `{"code":0,"message":"Ok","data":{"data":[{"id":76,"create_time":1700000000,"status":"done","type":"sell","order_type":"limit","price":"0.08","amount":"1","deal_amount":"1","deal_money":"0.08","deal_fee":"0.0001"}]}}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	orders, err := adapter.FetchClosedOrders(context.Background(), "BTC/ETH", 0, 10)
	if err != nil {
		t.Fatalf("FetchClosedOrders: %v", err)
	}
	order := orders[0]
	if order.Status != schema.OrderStatusClosed || order.Fee == nil || order.Fee.Currency != "ETH" {
		t.Fatalf("order = %+v", order)
	}
	if order.Remaining == nil || *order.Remaining != 0 {
		t.Fatalf("remaining = %v", order.Remaining)
	}
}

func TestFetchMyTradesLinksFillsToOrders(t *testing.T) {
	tr := routes(map[string]string{
		"market/list":      marketsBody,
		"order/user/deals": `{"code":0,"message":"Ok","data":{"data":[{"id":77,"create_time":1700000000,"type":"buy","price":"0.074","amount":"2","deal_money":"0.148","fee":0.0002}]}}`,
	})
	adapter := newAdapter(tr, config.Credentials{APIKey: "k", APISecret: "s"})
	trades, err := adapter.FetchMyTrades(context.Background(), "BTC/ETH", 0, 0)
	if err != nil {
		t.Fatalf("FetchMyTrades: %v", err)
	}
	trade := trades[0]
	if trade.OrderID != "77" || trade.ID != "" || trade.Timestamp != 1_700_000_000_000 {
		t.Fatalf("trade = %+v", trade)
	}
	if trade.Fee == nil || trade.Fee.Cost != 0.0002 {
		t.Fatalf("fee = %+v", trade.Fee)
	}
}

func TestErrorCodeClassification(t *testing.T) {
	cases := []struct {
		venueCode string
		want      errs.Code
	}{
		{"24", errs.CodeAuthentication},
		{"25", errs.CodeAuthentication},
		{"107", errs.CodeInsufficientFunds},
		{"600", errs.CodeOrderNotFound},
		{"601", errs.CodeInvalidOrder},
		{"606", errs.CodeInvalidOrder},
		{"999", errs.CodeExchange},
	}
	for _, tc := range cases {
		tr := routes(map[string]string{
			"market/list": `{"code":` + tc.venueCode + `,"message":"boom","data":null}`,
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

func TestWithdrawNotSupported(t *testing.T) {
	adapter := newAdapter(routes(nil), config.Credentials{APIKey: "k", APISecret: "s"})
	if _, err := adapter.Withdraw(context.Background(), "BTC", 1, "addr", ""); !errs.Is(err, errs.CodeNotSupported) {
		t.Fatalf("err = %v", err)
	}
}
