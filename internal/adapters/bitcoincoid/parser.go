package bitcoincoid

import (
	"net/http"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/catalog"
	"github.com/exbridge/exbridge/internal/safe"
	"github.com/exbridge/exbridge/schema"
)

// checkResponse rejects venue-level failures. Private replies carry
// {"success":0,"error":"..."} with HTTP 200; public replies have no success
// flag at all.
func (a *Adapter) checkResponse(resp *exchange.Response) ([]byte, error) {
	body := resp.Body
	if len(body) > 1 && body[0] == '{' {
		var envelope struct {
			Success *json.Number     `json:"success"`
			Error   string           `json:"error"`
			Return  *json.RawMessage `json:"return"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Success != nil {
			if envelope.Success.String() == "1" {
				if envelope.Return == nil {
					return nil, errs.New(Name, errs.CodeExchange,
						errs.WithMessage("malformed response"),
						errs.WithRawMessage(string(body)))
				}
				return body, nil
			}
			return nil, errs.New(Name, classifyMessage(envelope.Error),
				errs.WithMessage(envelope.Error),
				errs.WithRawMessage(string(body)),
				errs.WithHTTP(resp.Status))
		}
	}
	if resp.Status >= 400 {
		code := errs.CodeExchange
		switch {
		case resp.Status == http.StatusTooManyRequests:
			code = errs.CodeDDoSProtection
		case resp.Status >= 500:
			code = errs.CodeExchangeNotAvailable
		}
		return nil, errs.New(Name, code,
			errs.WithMessage(http.StatusText(resp.Status)),
			errs.WithHTTP(resp.Status),
			errs.WithRawMessage(string(body)))
	}
	return body, nil
}

func classifyMessage(message string) errs.Code {
	switch {
	case message == "Insufficient balance.":
		return errs.CodeInsufficientFunds
	case message == "invalid order.":
		return errs.CodeOrderNotFound
	case strings.Contains(message, "Minimum price "):
		return errs.CodeInvalidOrder
	case strings.Contains(message, "Minimum order "):
		return errs.CodeInvalidOrder
	case message == "Invalid credentials. API not found or session has expired.":
		return errs.CodeAuthentication
	case message == "Invalid credentials. Bad sign.":
		return errs.CodeAuthentication
	}
	return errs.CodeExchange
}

func parseTicker(raw []byte, market schema.Market) (schema.Ticker, error) {
	var payload struct {
		Ticker map[string]any `json:"ticker"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Ticker{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	ticker := payload.Ticker
	serverTime := safe.FloatOr(ticker, "server_time", 0)
	return schema.Ticker{
		Symbol:      market.Symbol,
		Timestamp:   int64(serverTime) * 1000,
		High:        safe.Float(ticker, "high"),
		Low:         safe.Float(ticker, "low"),
		Bid:         safe.Float(ticker, "buy"),
		Ask:         safe.Float(ticker, "sell"),
		Last:        safe.Float(ticker, "last"),
		BaseVolume:  safe.Float(ticker, "vol_"+market.BaseID),
		QuoteVolume: safe.Float(ticker, "vol_"+market.QuoteID),
		Info:        raw,
	}, nil
}

func parseOrderBook(raw []byte, symbol string, limit int) (schema.OrderBook, error) {
	var payload struct {
		Buy  [][]safe.Number `json:"buy"`
		Sell [][]safe.Number `json:"sell"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.OrderBook{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	book := schema.OrderBook{Symbol: symbol, Bids: parseLevels(payload.Buy), Asks: parseLevels(payload.Sell)}
	book.Sort()
	if limit > 0 {
		if len(book.Bids) > limit {
			book.Bids = book.Bids[:limit]
		}
		if len(book.Asks) > limit {
			book.Asks = book.Asks[:limit]
		}
	}
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

func parseTrades(raw []byte, symbol string, since int64, limit int) ([]schema.Trade, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	out := make([]schema.Trade, 0, len(entries))
	for _, entry := range entries {
		var payload struct {
			TID    json.Number `json:"tid"`
			Date   json.Number `json:"date"`
			Type   string      `json:"type"`
			Price  safe.Number `json:"price"`
			Amount safe.Number `json:"amount"`
		}
		if err := json.Unmarshal(entry, &payload); err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		side, err := schema.ParseTradeSide(payload.Type)
		if err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		date, _ := payload.Date.Int64()
		trade := schema.Trade{
			ID:        payload.TID.String(),
			Timestamp: date * 1000,
			Symbol:    symbol,
			Side:      side,
			Price:     payload.Price.Float(),
			Amount:    payload.Amount.Float(),
			Info:      entry,
		}
		if since > 0 && trade.Timestamp < since {
			continue
		}
		out = append(out, trade)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func parseBalances(raw []byte) (schema.Balances, error) {
	var payload struct {
		Return struct {
			Balance     map[string]any `json:"balance"`
			BalanceHold map[string]any `json:"balance_hold"`
		} `json:"return"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	accounts := make(map[string]schema.Balance)
	aliases := currencyAliases()
	for currencyID := range payload.Return.Balance {
		free := safe.FloatOr(payload.Return.Balance, currencyID, 0)
		used := safe.FloatOr(payload.Return.BalanceHold, currencyID, 0)
		balance, err := schema.MakeBalance(free, used, nil)
		if err != nil {
			return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		accounts[aliases.Canonical(currencyID)] = balance
	}
	return schema.Balances{Accounts: accounts, Info: raw}, nil
}

func currencyAliases() catalog.AliasTable {
	return catalog.AliasTable{"STR": "XLM", "DRK": "DASH", "NEM": "XEM"}
}

// parseOrder maps the venue's per-currency order fields onto the canonical
// shape. Buy orders are denominated in quote currency, sells in base; IDR
// amounts arrive under the "rp" suffix.
func parseOrder(raw json.RawMessage, market schema.Market) (schema.Order, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Order{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	order := schema.Order{
		ID:     safe.String(payload, "order_id"),
		Symbol: market.Symbol,
		Type:   schema.OrderTypeLimit,
		Status: schema.OrderStatusOpen,
		Info:   raw,
	}
	if side, err := schema.ParseTradeSide(safe.String(payload, "type")); err == nil {
		order.Side = side
	}
	switch safe.String(payload, "status") {
	case "filled":
		order.Status = schema.OrderStatusClosed
	case "calcelled", "cancelled", "canceled":
		order.Status = schema.OrderStatusCanceled
	}
	if ts := safe.Int(payload, "submit_time"); ts != nil {
		order.Timestamp = *ts
	}
	order.Price = safe.Float(payload, "price")

	quoteID := market.QuoteID
	if _, ok := payload["order_rp"]; ok && market.QuoteID == "idr" {
		quoteID = "rp"
	}
	baseID := market.BaseID
	if _, ok := payload["remain_rp"]; ok && market.BaseID == "idr" {
		baseID = "rp"
	}
	price := 0.0
	if order.Price != nil {
		price = *order.Price
	}
	if cost := safe.Float(payload, "order_"+quoteID); cost != nil && *cost != 0 && price != 0 {
		order.Cost = cost
		amount := *cost / price
		order.Amount = &amount
		if remainingCost := safe.Float(payload, "remain_"+quoteID); remainingCost != nil {
			remaining := *remainingCost / price
			order.Remaining = &remaining
			filled := amount - remaining
			order.Filled = &filled
		}
	} else if amount := safe.Float(payload, "order_"+baseID); amount != nil {
		order.Amount = amount
		cost := price * *amount
		order.Cost = &cost
		if remaining := safe.Float(payload, "remain_"+baseID); remaining != nil {
			order.Remaining = remaining
			filled := *amount - *remaining
			order.Filled = &filled
		}
	}
	if order.Filled != nil && *order.Filled > 0 && order.Cost != nil {
		average := *order.Cost / *order.Filled
		order.Average = &average
	}
	return order, nil
}

func parseOpenOrders(raw []byte, market schema.Market, cat *catalog.Catalog, bySymbol bool) ([]schema.Order, error) {
	var payload struct {
		Return struct {
			Orders json.RawMessage `json:"orders"`
		} `json:"return"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	body := payload.Return.Orders
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	if bySymbol {
		var entries []json.RawMessage
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		out := make([]schema.Order, 0, len(entries))
		for _, entry := range entries {
			order, err := parseOrder(entry, market)
			if err != nil {
				return nil, err
			}
			out = append(out, order)
		}
		return out, nil
	}
	var grouped map[string][]json.RawMessage
	if err := json.Unmarshal(body, &grouped); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	var out []schema.Order
	for marketID, entries := range grouped {
		entryMarket, ok := cat.ByID(marketID)
		if !ok {
			continue
		}
		for _, entry := range entries {
			order, err := parseOrder(entry, entryMarket)
			if err != nil {
				return nil, err
			}
			out = append(out, order)
		}
	}
	return out, nil
}
