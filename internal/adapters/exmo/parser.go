package exmo

import (
	"net/http"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/safe"
	"github.com/exbridge/exbridge/schema"
)

var errorCodes = map[string]errs.Code{
	"40005": errs.CodeAuthentication,
	"40015": errs.CodeExchange,
	"40017": errs.CodeAuthentication,
	"50052": errs.CodeInsufficientFunds,
	"50173": errs.CodeOrderNotFound,
	"50319": errs.CodeInvalidOrder,
	"50321": errs.CodeInvalidOrder,
}

// checkResponse rejects venue-level failures. EXMO reports them as
// {"result":false,"error":"Error 50052: Insufficient funds"} with HTTP 200.
func (a *Adapter) checkResponse(resp *exchange.Response) ([]byte, error) {
	body := resp.Body
	if len(body) > 1 && (body[0] == '{' || body[0] == '[') {
		var envelope struct {
			Result *json.RawMessage `json:"result"`
			Error  string           `json:"error"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Result != nil && !resultOK(*envelope.Result) {
			rawCode := extractErrorCode(envelope.Error)
			code, known := errorCodes[rawCode]
			if !known {
				code = errs.CodeExchange
			}
			return nil, errs.New(Name, code,
				errs.WithMessage(envelope.Error),
				errs.WithRawCode(rawCode),
				errs.WithRawMessage(string(body)),
				errs.WithHTTP(resp.Status))
		}
	}
	if resp.Status >= 400 {
		return nil, classifyHTTP(resp)
	}
	return body, nil
}

func resultOK(raw json.RawMessage) bool {
	switch strings.Trim(string(raw), `"`) {
	case "true", "1":
		return true
	}
	return false
}

// extractErrorCode pulls the numeric code out of "Error 50052: ...".
func extractErrorCode(message string) string {
	head, _, found := strings.Cut(message, ":")
	if !found {
		return ""
	}
	fields := strings.Fields(head)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func classifyHTTP(resp *exchange.Response) error {
	code := errs.CodeExchange
	switch {
	case resp.Status == http.StatusTooManyRequests:
		code = errs.CodeDDoSProtection
	case resp.Status >= 500:
		code = errs.CodeExchangeNotAvailable
	}
	return errs.New(Name, code,
		errs.WithMessage(http.StatusText(resp.Status)),
		errs.WithHTTP(resp.Status),
		errs.WithRawMessage(string(resp.Body)))
}

func parseMarkets(raw []byte) ([]schema.Market, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	ids := make([]string, 0, len(payload))
	for id := range payload {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]schema.Market, 0, len(ids))
	for _, id := range ids {
		var settings struct {
			MinQuantity safe.Number `json:"min_quantity"`
			MaxQuantity safe.Number `json:"max_quantity"`
			MinPrice    safe.Number `json:"min_price"`
			MaxPrice    safe.Number `json:"max_price"`
			MinAmount   safe.Number `json:"min_amount"`
			MaxAmount   safe.Number `json:"max_amount"`
		}
		if err := json.Unmarshal(payload[id], &settings); err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		base, quote, found := strings.Cut(id, "_")
		if !found {
			continue
		}
		out = append(out, schema.Market{
			ID:        id,
			Symbol:    base + "/" + quote,
			Base:      base,
			Quote:     quote,
			BaseID:    base,
			QuoteID:   quote,
			Active:    true,
			Precision: schema.Precision{Amount: 8, Price: 8},
			Limits: schema.Limits{
				Amount: schema.MinMax{Min: settings.MinQuantity.Ptr(), Max: settings.MaxQuantity.Ptr()},
				Price:  schema.MinMax{Min: settings.MinPrice.Ptr(), Max: settings.MaxPrice.Ptr()},
				Cost:   schema.MinMax{Min: settings.MinAmount.Ptr(), Max: settings.MaxAmount.Ptr()},
			},
			Info: payload[id],
		})
	}
	return out, nil
}

func parseBalances(raw []byte) (schema.Balances, error) {
	var payload struct {
		Balances map[string]safe.Number `json:"balances"`
		Reserved map[string]safe.Number `json:"reserved"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	accounts := make(map[string]schema.Balance, len(payload.Balances))
	for currency, free := range payload.Balances {
		used := payload.Reserved[currency]
		balance, err := schema.MakeBalance(free.Float(), used.Float(), nil)
		if err != nil {
			return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		accounts[currency] = balance
	}
	for currency, used := range payload.Reserved {
		if _, seen := accounts[currency]; seen {
			continue
		}
		balance, err := schema.MakeBalance(0, used.Float(), nil)
		if err != nil {
			return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		accounts[currency] = balance
	}
	return schema.Balances{Accounts: accounts, Info: raw}, nil
}

func parseTicker(raw json.RawMessage, symbol string) (schema.Ticker, error) {
	var payload struct {
		Updated   int64       `json:"updated"`
		LastTrade safe.Number `json:"last_trade"`
		High      safe.Number `json:"high"`
		Low       safe.Number `json:"low"`
		BuyPrice  safe.Number `json:"buy_price"`
		SellPrice safe.Number `json:"sell_price"`
		Avg       safe.Number `json:"avg"`
		Vol       safe.Number `json:"vol"`
		VolCurr   safe.Number `json:"vol_curr"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Ticker{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	last := payload.LastTrade.Ptr()
	return schema.Ticker{
		Symbol:      symbol,
		Timestamp:   payload.Updated * 1000,
		High:        payload.High.Ptr(),
		Low:         payload.Low.Ptr(),
		Bid:         payload.BuyPrice.Ptr(),
		Ask:         payload.SellPrice.Ptr(),
		Close:       last,
		Last:        last,
		Average:     payload.Avg.Ptr(),
		BaseVolume:  payload.Vol.Ptr(),
		QuoteVolume: payload.VolCurr.Ptr(),
		Info:        raw,
	}, nil
}

func parseOrderBook(raw json.RawMessage, symbol string) (schema.OrderBook, error) {
	var payload struct {
		Bid [][]safe.Number `json:"bid"`
		Ask [][]safe.Number `json:"ask"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.OrderBook{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	book := schema.OrderBook{Symbol: symbol, Bids: parseLevels(payload.Bid), Asks: parseLevels(payload.Ask)}
	book.Sort()
	return book, nil
}

func parseLevels(rows [][]safe.Number) []schema.Level {
	out := make([]schema.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, schema.Level{Price: row[0].Float(), Amount: row[1].Float()})
	}
	return out
}

func parseTrades(raw json.RawMessage, symbol string) ([]schema.Trade, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	out := make([]schema.Trade, 0, len(entries))
	for _, entry := range entries {
		trade, err := parseTrade(entry, symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, trade)
	}
	return out, nil
}

func parseTrade(raw json.RawMessage, symbol string) (schema.Trade, error) {
	var payload struct {
		TradeID  json.Number `json:"trade_id"`
		OrderID  json.Number `json:"order_id"`
		Date     int64       `json:"date"`
		Type     string      `json:"type"`
		Price    safe.Number `json:"price"`
		Quantity safe.Number `json:"quantity"`
		Amount   safe.Number `json:"amount"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Trade{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	side, err := schema.ParseTradeSide(payload.Type)
	if err != nil {
		return schema.Trade{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	return schema.Trade{
		ID:        payload.TradeID.String(),
		OrderID:   payload.OrderID.String(),
		Timestamp: payload.Date * 1000,
		Symbol:    symbol,
		Side:      side,
		Price:     payload.Price.Float(),
		Amount:    payload.Quantity.Float(),
		Cost:      payload.Amount.Ptr(),
		Info:      raw,
	}, nil
}

func filterTrades(trades []schema.Trade, since int64, limit int) []schema.Trade {
	out := make([]schema.Trade, 0, len(trades))
	for _, trade := range trades {
		if since > 0 && trade.Timestamp < since {
			continue
		}
		out = append(out, trade)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func parseOrder(raw json.RawMessage, symbol string) (schema.Order, error) {
	var payload struct {
		OrderID  json.Number `json:"order_id"`
		Created  json.Number `json:"created"`
		Type     string      `json:"type"`
		Price    safe.Number `json:"price"`
		Quantity safe.Number `json:"quantity"`
		Amount   safe.Number `json:"amount"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Order{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	side, err := schema.ParseTradeSide(payload.Type)
	if err != nil {
		return schema.Order{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	created, _ := payload.Created.Int64()
	order := schema.Order{
		ID:        payload.OrderID.String(),
		Timestamp: created * 1000,
		Status:    schema.OrderStatusOpen,
		Symbol:    symbol,
		Type:      schema.OrderTypeLimit,
		Side:      side,
		Price:     payload.Price.Ptr(),
		Amount:    payload.Quantity.Ptr(),
		Filled:    schema.Float(0),
		Cost:      payload.Amount.Ptr(),
		Info:      raw,
	}
	order.DeriveRemaining()
	return order, nil
}
