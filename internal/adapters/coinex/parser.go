package coinex

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/safe"
	"github.com/exbridge/exbridge/schema"
)

var errorCodes = map[int64]errs.Code{
	24:  errs.CodeAuthentication,
	25:  errs.CodeAuthentication,
	107: errs.CodeInsufficientFunds,
	600: errs.CodeOrderNotFound,
	601: errs.CodeInvalidOrder,
	602: errs.CodeInvalidOrder,
	606: errs.CodeInvalidOrder,
}

// checkResponse unwraps the {code, message, data} envelope every endpoint
// shares and returns the data member.
func (a *Adapter) checkResponse(resp *exchange.Response) ([]byte, error) {
	var envelope struct {
		Code    safe.Number     `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		if resp.Status >= http.StatusInternalServerError {
			return nil, errs.New(Name, errs.CodeExchangeNotAvailable, errs.WithHTTP(resp.Status))
		}
		return nil, errs.New(Name, errs.CodeData, errs.WithHTTP(resp.Status), errs.WithCause(err))
	}
	venueCode := int64(envelope.Code.Float())
	if venueCode == 0 && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return envelope.Data, nil
	}
	code, ok := errorCodes[venueCode]
	if !ok {
		code = errs.CodeExchange
		if resp.Status == http.StatusTooManyRequests {
			code = errs.CodeDDoSProtection
		} else if resp.Status >= http.StatusInternalServerError {
			code = errs.CodeExchangeNotAvailable
		}
	}
	return nil, errs.New(Name, code,
		errs.WithMessage(envelope.Message),
		errs.WithHTTP(resp.Status),
		errs.WithRawCode(strconv.FormatInt(venueCode, 10)))
}

// parseMarkets expands the venue's bare id list. Ids concatenate the
// currencies with the base in the trailing three characters.
func parseMarkets(raw []byte) ([]schema.Market, error) {
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	sort.Strings(ids)
	markets := make([]schema.Market, 0, len(ids))
	for _, id := range ids {
		if len(id) <= 3 {
			continue
		}
		base := strings.ToUpper(id[len(id)-3:])
		quote := strings.ToUpper(id[:len(id)-3])
		markets = append(markets, schema.Market{
			ID:        id,
			Symbol:    base + "/" + quote,
			Base:      base,
			Quote:     quote,
			BaseID:    id[len(id)-3:],
			QuoteID:   id[:len(id)-3],
			Active:    true,
			Precision: schema.Precision{Amount: 8, Price: 8},
			Limits: schema.Limits{
				Amount: schema.MinMax{Min: schema.Float(0.001)},
			},
		})
	}
	return markets, nil
}

func parseTicker(raw json.RawMessage, symbol string, timestamp int64) (schema.Ticker, error) {
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return schema.Ticker{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	last := safe.Float(entry, "last")
	return schema.Ticker{
		Symbol:      symbol,
		Timestamp:   timestamp,
		High:        safe.Float(entry, "high"),
		Low:         safe.Float(entry, "low"),
		Bid:         safe.Float(entry, "buy"),
		Ask:         safe.Float(entry, "sell"),
		Close:       last,
		Last:        last,
		QuoteVolume: safe.Float(entry, "vol"),
		Info:        raw,
	}, nil
}

func parseOrderBook(raw []byte, symbol string) (schema.OrderBook, error) {
	var payload struct {
		Last safe.Number  `json:"last"`
		Time int64        `json:"time"`
		Bids [][2]float64 `json:"bids"`
		Asks [][2]float64 `json:"asks"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.OrderBook{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	book := schema.OrderBook{Symbol: symbol, Timestamp: payload.Time}
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
	return parseTradeList(entries, symbol, since, limit)
}

func parseTradeList(entries []json.RawMessage, symbol string, since int64, limit int) ([]schema.Trade, error) {
	trades := make([]schema.Trade, 0, len(entries))
	for _, raw := range entries {
		trade, err := parseTrade(raw, symbol)
		if err != nil {
			return nil, err
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

// parseTrade handles both public deals and account fills. Fills carry
// create_time and reuse the id field for the parent order.
func parseTrade(raw json.RawMessage, symbol string) (schema.Trade, error) {
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return schema.Trade{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	trade := schema.Trade{
		Symbol: symbol,
		Price:  safe.FloatOr(entry, "price", 0),
		Amount: safe.FloatOr(entry, "amount", 0),
		Info:   raw,
	}
	if createTime := safe.Int(entry, "create_time"); createTime != nil {
		trade.Timestamp = *createTime * 1000
		trade.OrderID = safe.String(entry, "id")
	} else if date := safe.Int(entry, "date"); date != nil {
		trade.Timestamp = *date * 1000
		trade.ID = safe.String(entry, "id")
	}
	if side, err := schema.ParseTradeSide(safe.String(entry, "type")); err == nil {
		trade.Side = side
	}
	if cost := safe.Float(entry, "deal_money"); cost != nil {
		trade.Cost = cost
	} else {
		trade.Cost = schema.Float(trade.Price * trade.Amount)
	}
	if fee := safe.Float(entry, "fee"); fee != nil {
		trade.Fee = &schema.Fee{Cost: *fee}
	}
	return trade, nil
}

// parseOHLCV reorders the venue's [ts, open, close, high, low, volume] rows.
func parseOHLCV(raw []byte, since int64, limit int) ([]schema.OHLCV, error) {
	var rows [][6]float64
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	candles := make([]schema.OHLCV, 0, len(rows))
	for _, row := range rows {
		candle := schema.OHLCV{
			Timestamp: int64(row[0]) * 1000,
			Open:      row[1],
			High:      row[3],
			Low:       row[4],
			Close:     row[2],
			Volume:    row[5],
		}
		if since > 0 && candle.Timestamp < since {
			continue
		}
		candles = append(candles, candle)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[:limit]
	}
	return candles, nil
}

func parseBalances(raw []byte) (schema.Balances, error) {
	var entries map[string]struct {
		Available safe.Number `json:"available"`
		Frozen    safe.Number `json:"frozen"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	balances := schema.Balances{Accounts: make(map[string]schema.Balance, len(entries)), Info: raw}
	for currency, entry := range entries {
		balance, err := schema.MakeBalance(entry.Available.Float(), entry.Frozen.Float(), nil)
		if err != nil {
			return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		balances.Accounts[strings.ToUpper(currency)] = balance
	}
	return balances, nil
}

func parseOrderPage(raw []byte, market schema.Market, since int64) ([]schema.Order, error) {
	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	orders := make([]schema.Order, 0, len(payload.Data))
	for _, entry := range payload.Data {
		order, err := parseOrder(entry, market)
		if err != nil {
			return nil, err
		}
		if since > 0 && order.Timestamp < since {
			continue
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
	status := schema.OrderStatusOpen
	if safe.String(entry, "status") == "done" {
		status = schema.OrderStatusClosed
	}
	var timestamp int64
	if createTime := safe.Int(entry, "create_time"); createTime != nil {
		timestamp = *createTime * 1000
	}
	order := schema.Order{
		ID:        safe.String(entry, "id"),
		Timestamp: timestamp,
		Status:    status,
		Symbol:    market.Symbol,
		Price:     safe.Float(entry, "price"),
		Amount:    safe.Float(entry, "amount"),
		Filled:    safe.Float(entry, "deal_amount"),
		Cost:      safe.Float(entry, "deal_money"),
		Info:      raw,
	}
	if orderType, err := schema.ParseOrderType(safe.String(entry, "order_type")); err == nil {
		order.Type = orderType
	}
	if side, err := schema.ParseTradeSide(safe.String(entry, "type")); err == nil {
		order.Side = side
	}
	if fee := safe.Float(entry, "deal_fee"); fee != nil {
		order.Fee = &schema.Fee{Cost: *fee, Currency: market.Quote}
	}
	order.DeriveRemaining()
	return order, nil
}
