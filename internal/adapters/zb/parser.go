package zb

import (
	"bytes"
	"math"
	"net/http"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/catalog"
	"github.com/exbridge/exbridge/internal/safe"
	"github.com/exbridge/exbridge/schema"
)

var errorCodes = map[int64]errs.Code{
	1001: errs.CodeExchange,
	1002: errs.CodeExchange,
	1003: errs.CodeAuthentication,
	1004: errs.CodeAuthentication,
	1005: errs.CodeAuthentication,
	1006: errs.CodeAuthentication,
	1009: errs.CodeExchangeNotAvailable,
	2001: errs.CodeInsufficientFunds,
	2002: errs.CodeInsufficientFunds,
	2003: errs.CodeInsufficientFunds,
	2005: errs.CodeInsufficientFunds,
	2006: errs.CodeInsufficientFunds,
	2007: errs.CodeInsufficientFunds,
	2009: errs.CodeInsufficientFunds,
	3001: errs.CodeOrderNotFound,
	3002: errs.CodeInvalidOrder,
	3003: errs.CodeInvalidOrder,
	3004: errs.CodeAuthentication,
	3005: errs.CodeExchange,
	3006: errs.CodeAuthentication,
	3007: errs.CodeAuthentication,
	3008: errs.CodeOrderNotFound,
	4001: errs.CodeExchangeNotAvailable,
	4002: errs.CodeDDoSProtection,
}

// checkResponse flags object responses carrying a non-1000 code. Market data
// endpoints answer without a code member and pass through untouched.
func checkResponse(resp *exchange.Response) ([]byte, error) {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 || body[0] != '{' {
		return body, nil
	}
	var envelope struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		if resp.Status >= http.StatusInternalServerError {
			return nil, errs.New(Name, errs.CodeExchangeNotAvailable, errs.WithHTTP(resp.Status))
		}
		return nil, errs.New(Name, errs.CodeData, errs.WithHTTP(resp.Status), errs.WithCause(err))
	}
	if len(envelope.Code) == 0 {
		return body, nil
	}
	var code safe.Number
	if err := json.Unmarshal(envelope.Code, &code); err != nil {
		return body, nil
	}
	venueCode := int64(code.Float())
	if venueCode == 1000 || venueCode == 0 {
		return body, nil
	}
	canonical, ok := errorCodes[venueCode]
	if !ok {
		canonical = errs.CodeExchange
	}
	message := envelope.Message
	if message == "" {
		message = string(body)
	}
	return nil, errs.New(Name, canonical,
		errs.WithMessage(message),
		errs.WithHTTP(resp.Status),
		errs.WithRawCode(strconv.FormatInt(venueCode, 10)))
}

func parseMarkets(raw []byte) ([]schema.Market, error) {
	var entries map[string]struct {
		AmountScale int `json:"amountScale"`
		PriceScale  int `json:"priceScale"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	markets := make([]schema.Market, 0, len(ids))
	for _, id := range ids {
		base, quote, err := catalog.SplitID(id, "_", nil)
		if err != nil {
			continue
		}
		entry := entries[id]
		lot := math.Pow(10, -float64(entry.AmountScale))
		markets = append(markets, schema.Market{
			ID:        id,
			Symbol:    base + "/" + quote,
			Base:      base,
			Quote:     quote,
			BaseID:    id[:len(id)-len(quote)-1],
			QuoteID:   id[len(base)+1:],
			Active:    true,
			Precision: schema.Precision{Amount: entry.AmountScale, Price: entry.PriceScale},
			Limits: schema.Limits{
				Amount: schema.MinMax{Min: schema.Float(lot)},
				Price:  schema.MinMax{Min: schema.Float(math.Pow(10, -float64(entry.PriceScale)))},
				Cost:   schema.MinMax{Min: schema.Float(0)},
			},
		})
	}
	return markets, nil
}

func parseTicker(raw []byte, symbol string, timestamp int64) (schema.Ticker, error) {
	var payload struct {
		Ticker map[string]any `json:"ticker"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Ticker{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	last := safe.Float(payload.Ticker, "last")
	return schema.Ticker{
		Symbol:     symbol,
		Timestamp:  timestamp,
		High:       safe.Float(payload.Ticker, "high"),
		Low:        safe.Float(payload.Ticker, "low"),
		Bid:        safe.Float(payload.Ticker, "buy"),
		Ask:        safe.Float(payload.Ticker, "sell"),
		Close:      last,
		Last:       last,
		BaseVolume: safe.Float(payload.Ticker, "vol"),
		Info:       raw,
	}, nil
}

func parseOrderBook(raw []byte, symbol string) (schema.OrderBook, error) {
	var payload struct {
		Timestamp int64        `json:"timestamp"`
		Bids      [][2]float64 `json:"bids"`
		Asks      [][2]float64 `json:"asks"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.OrderBook{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	book := schema.OrderBook{Symbol: symbol, Timestamp: payload.Timestamp * 1000}
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
		side := schema.TradeSideSell
		if safe.String(entry, "trade_type") == "bid" {
			side = schema.TradeSideBuy
		}
		price := safe.FloatOr(entry, "price", 0)
		amount := safe.FloatOr(entry, "amount", 0)
		trade := schema.Trade{
			ID:     safe.String(entry, "tid"),
			Symbol: symbol,
			Side:   side,
			Price:  price,
			Amount: amount,
			Cost:   schema.Float(price * amount),
			Info:   raw,
		}
		if ts := safe.Int(entry, "date"); ts != nil {
			trade.Timestamp = *ts * 1000
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
	var payload struct {
		Data [][6]float64 `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	candles := make([]schema.OHLCV, 0, len(payload.Data))
	for _, row := range payload.Data {
		candles = append(candles, schema.OHLCV{
			Timestamp: int64(row[0]),
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
		Result struct {
			Coins []struct {
				Key       string      `json:"key"`
				EnName    string      `json:"enName"`
				Available safe.Number `json:"available"`
				Freez     safe.Number `json:"freez"`
			} `json:"coins"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	var aliases catalog.AliasTable
	balances := schema.Balances{
		Accounts: make(map[string]schema.Balance, len(payload.Result.Coins)),
		Info:     raw,
	}
	for _, coin := range payload.Result.Coins {
		currency := coin.Key
		if currency == "" {
			currency = coin.EnName
		}
		balance, err := schema.MakeBalance(coin.Available.Float(), coin.Freez.Float(), nil)
		if err != nil {
			return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		balances.Accounts[aliases.Canonical(currency)] = balance
	}
	return balances, nil
}

var orderStatuses = map[string]schema.OrderStatus{
	"0": schema.OrderStatusOpen,
	"1": schema.OrderStatusCanceled,
	"2": schema.OrderStatusClosed,
	"3": schema.OrderStatusOpen,
}

func parseOrders(raw []byte, market schema.Market) ([]schema.Order, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	orders := make([]schema.Order, 0, len(entries))
	for _, entry := range entries {
		order, err := parseOrder(entry, market)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// parseOrder maps the venue's order payload. The side arrives as the numeric
// tradeType, 1 for buy and 0 for sell.
func parseOrder(raw json.RawMessage, market schema.Market) (schema.Order, error) {
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return schema.Order{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	side := schema.TradeSideSell
	switch safe.String(entry, "type") {
	case "1", "buy", "bid":
		side = schema.TradeSideBuy
	}
	order := schema.Order{
		ID:      safe.String(entry, "id"),
		Status:  orderStatuses[safe.String(entry, "status")],
		Symbol:  market.Symbol,
		Type:    schema.OrderTypeLimit,
		Side:    side,
		Price:   safe.Float(entry, "price"),
		Average: safe.Float(entry, "trade_price"),
		Amount:  safe.Float(entry, "total_amount"),
		Filled:  safe.Float(entry, "trade_amount"),
		Cost:    safe.Float(entry, "trade_money"),
		Info:    raw,
	}
	if ts := safe.Int(entry, "trade_date"); ts != nil {
		order.Timestamp = *ts
	}
	order.DeriveRemaining()
	return order, nil
}
