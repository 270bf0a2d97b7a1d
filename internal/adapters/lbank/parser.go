package lbank

import (
	"bytes"
	"net/http"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/catalog"
	"github.com/exbridge/exbridge/internal/safe"
	"github.com/exbridge/exbridge/schema"
)

var errorCodes = map[int64]errs.Code{
	10002: errs.CodeAuthentication,
	10004: errs.CodeDDoSProtection,
	10005: errs.CodeAuthentication,
	10006: errs.CodeAuthentication,
	10007: errs.CodeAuthentication,
	10009: errs.CodeInvalidOrder,
	10010: errs.CodeInvalidOrder,
	10011: errs.CodeInvalidOrder,
	10012: errs.CodeInvalidOrder,
	10013: errs.CodeInvalidOrder,
	10014: errs.CodeInvalidOrder,
	10015: errs.CodeInvalidOrder,
	10016: errs.CodeInvalidOrder,
}

var errorMessages = map[int64]string{
	10000: "Internal error",
	10001: "The required parameters can not be empty",
	10002: "verification failed",
	10003: "Illegal parameters",
	10004: "User requests are too frequent",
	10005: "Key does not exist",
	10006: "user does not exist",
	10007: "Invalid signature",
	10008: "This currency pair is not supported",
	10009: "Limit orders can not be missing orders and the number of orders",
	10010: "Order price or order quantity must be greater than 0",
	10011: "Market orders can not be missing the amount of the order",
	10012: "market sell orders can not be missing orders",
	10013: "is less than the minimum trading position 0.001",
	10014: "Account number is not enough",
	10015: "The order type is wrong",
	10016: "Account balance is not enough",
	10017: "Abnormal server",
	10018: "order inquiry can not be more than 50 less than one",
	10019: "withdrawal orders can not be more than 3 less than one",
	10020: "less than the minimum amount of the transaction limit of 0.001",
}

// checkResponse flags the {"result":"false","error_code":N} envelope. Public
// endpoints answer with bare arrays, which pass through untouched.
func checkResponse(resp *exchange.Response) ([]byte, error) {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 || body[0] != '{' {
		return body, nil
	}
	var envelope struct {
		Result    json.RawMessage `json:"result"`
		ErrorCode safe.Number     `json:"error_code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		if resp.Status >= http.StatusInternalServerError {
			return nil, errs.New(Name, errs.CodeExchangeNotAvailable, errs.WithHTTP(resp.Status))
		}
		return nil, errs.New(Name, errs.CodeData, errs.WithHTTP(resp.Status), errs.WithCause(err))
	}
	if strings.Trim(string(envelope.Result), `"`) != "false" {
		return body, nil
	}
	venueCode := int64(envelope.ErrorCode.Float())
	code, ok := errorCodes[venueCode]
	if !ok {
		code = errs.CodeExchange
	}
	message, ok := errorMessages[venueCode]
	if !ok {
		message = string(body)
	}
	return nil, errs.New(Name, code,
		errs.WithMessage(message),
		errs.WithHTTP(resp.Status),
		errs.WithRawCode(strconv.FormatInt(venueCode, 10)))
}

func parseMarkets(raw []byte) ([]schema.Market, error) {
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	sort.Strings(ids)
	markets := make([]schema.Market, 0, len(ids))
	for _, id := range ids {
		base, quote, err := catalog.SplitID(id, "_", nil)
		if err != nil {
			continue
		}
		parts := strings.SplitN(id, "_", 2)
		markets = append(markets, schema.Market{
			ID:        id,
			Symbol:    base + "/" + quote,
			Base:      base,
			Quote:     quote,
			BaseID:    parts[0],
			QuoteID:   parts[1],
			Active:    true,
			Precision: schema.Precision{Amount: 8, Price: 8},
			Limits: schema.Limits{
				Amount: schema.MinMax{Min: schema.Float(1e-8)},
				Price:  schema.MinMax{Min: schema.Float(1e-8), Max: schema.Float(1e8)},
			},
		})
	}
	return markets, nil
}

// parseTicker derives the open price from the last price and the reported
// percentage change; the venue carries neither open nor bid/ask.
func parseTicker(raw []byte, symbol string) (schema.Ticker, error) {
	var payload struct {
		Timestamp int64          `json:"timestamp"`
		Ticker    map[string]any `json:"ticker"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Ticker{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	ticker := schema.Ticker{
		Symbol:      symbol,
		Timestamp:   payload.Timestamp,
		High:        safe.Float(payload.Ticker, "high"),
		Low:         safe.Float(payload.Ticker, "low"),
		BaseVolume:  safe.Float(payload.Ticker, "vol"),
		QuoteVolume: safe.Float(payload.Ticker, "turnover"),
		Info:        raw,
	}
	last := safe.Float(payload.Ticker, "latest")
	ticker.Close = last
	ticker.Last = last
	percentage := safe.Float(payload.Ticker, "change")
	ticker.Percentage = percentage
	if last != nil && percentage != nil {
		open := *last / (1 + *percentage/100)
		ticker.Change = schema.Float(*last - open)
		ticker.Average = schema.Float((*last + open) / 2)
	}
	return ticker, nil
}

func parseOrderBook(raw []byte, symbol string) (schema.OrderBook, error) {
	var payload struct {
		Bids [][2]float64 `json:"bids"`
		Asks [][2]float64 `json:"asks"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.OrderBook{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	book := schema.OrderBook{Symbol: symbol}
	for _, row := range payload.Bids {
		book.Bids = append(book.Bids, schema.Level{Price: row[0], Amount: row[1]})
	}
	for _, row := range payload.Asks {
		book.Asks = append(book.Asks, schema.Level{Price: row[0], Amount: row[1]})
	}
	book.Sort()
	return book, nil
}

func parseTrades(raw []byte, symbol string, since int64, limit int) ([]schema.Trade, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	trades := make([]schema.Trade, 0, len(entries))
	for _, raw := range entries {
		var entry map[string]any
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		price := safe.FloatOr(entry, "price", 0)
		amount := safe.FloatOr(entry, "amount", 0)
		trade := schema.Trade{
			ID:     safe.String(entry, "tid"),
			Symbol: symbol,
			Price:  price,
			Amount: amount,
			Cost:   schema.Float(price * amount),
			Info:   raw,
		}
		if ts := safe.Int(entry, "date_ms"); ts != nil {
			trade.Timestamp = *ts
		}
		if side, err := schema.ParseTradeSide(safe.String(entry, "type")); err == nil {
			trade.Side = side
		}
		if since > 0 && trade.Timestamp < since {
			continue
		}
		trades = append(trades, trade)
	}
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].Timestamp < trades[j].Timestamp })
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

func parseOHLCV(raw []byte) ([]schema.OHLCV, error) {
	var rows [][6]float64
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	candles := make([]schema.OHLCV, 0, len(rows))
	for _, row := range rows {
		candles = append(candles, schema.OHLCV{
			Timestamp: int64(row[0]) * 1000,
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
			Volume:    row[5],
		})
	}
	return candles, nil
}

func parseBalances(raw []byte) (schema.Balances, error) {
	var payload struct {
		Info struct {
			Free   map[string]safe.Number `json:"free"`
			Freeze map[string]safe.Number `json:"freeze"`
		} `json:"info"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	currencies := make(map[string]bool, len(payload.Info.Free))
	for currency := range payload.Info.Free {
		currencies[currency] = true
	}
	for currency := range payload.Info.Freeze {
		currencies[currency] = true
	}
	balances := schema.Balances{Accounts: make(map[string]schema.Balance, len(currencies)), Info: raw}
	for currency := range currencies {
		free := payload.Info.Free[currency]
		used := payload.Info.Freeze[currency]
		balance, err := schema.MakeBalance(free.Float(), used.Float(), nil)
		if err != nil {
			return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		balances.Accounts[strings.ToUpper(currency)] = balance
	}
	return balances, nil
}

var orderStatuses = map[string]schema.OrderStatus{
	"-1": schema.OrderStatusCanceled,
	"0":  schema.OrderStatusOpen,
	"1":  schema.OrderStatusOpen,
	"2":  schema.OrderStatusClosed,
	"4":  schema.OrderStatusClosed,
}

func parseOrderList(raw []byte, market schema.Market) ([]schema.Order, error) {
	var payload struct {
		Orders []json.RawMessage `json:"orders"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	orders := make([]schema.Order, 0, len(payload.Orders))
	for _, entry := range payload.Orders {
		order, err := parseOrder(entry, market)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func parseOrder(raw json.RawMessage, market schema.Market) (schema.Order, error) {
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return schema.Order{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	order := schema.Order{
		ID:     safe.String(entry, "order_id"),
		Status: orderStatuses[safe.String(entry, "status")],
		Symbol: market.Symbol,
		Price:  safe.Float(entry, "price"),
		Amount: schema.Float(safe.FloatOr(entry, "amount", 0)),
		Filled: schema.Float(safe.FloatOr(entry, "deal_amount", 0)),
		Info:   raw,
	}
	if ts := safe.Int(entry, "create_time"); ts != nil {
		order.Timestamp = *ts
	}
	if avg := safe.Float(entry, "avg_price"); avg != nil {
		order.Average = avg
		order.Cost = schema.Float(*order.Filled * *avg)
	}
	if orderType, err := schema.ParseOrderType(safe.String(entry, "order_type")); err == nil {
		order.Type = orderType
	}
	if side, err := schema.ParseTradeSide(safe.String(entry, "type")); err == nil {
		order.Side = side
	}
	order.DeriveRemaining()
	return order, nil
}
