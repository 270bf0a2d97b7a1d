package bitz

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/catalog"
	"github.com/exbridge/exbridge/internal/safe"
	"github.com/exbridge/exbridge/schema"
)

var errorCodes = map[int64]errs.Code{
	103: errs.CodeAuthentication,
	104: errs.CodeAuthentication,
	106: errs.CodeDDoSProtection,
	200: errs.CodeAuthentication,
	201: errs.CodeOrderNotFound,
	202: errs.CodeAuthentication,
	203: errs.CodeInvalidNonce,
	401: errs.CodeAuthentication,
	406: errs.CodeAuthentication,
	408: errs.CodeInsufficientFunds,
}

// checkResponse unwraps the {code, msg, data} envelope shared by every
// endpoint and returns the data member.
func checkResponse(resp *exchange.Response) ([]byte, error) {
	var envelope struct {
		Code safe.Number     `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		if resp.Status >= http.StatusInternalServerError {
			return nil, errs.New(Name, errs.CodeExchangeNotAvailable, errs.WithHTTP(resp.Status))
		}
		return nil, errs.New(Name, errs.CodeData, errs.WithHTTP(resp.Status), errs.WithCause(err))
	}
	venueCode := int64(envelope.Code.Float())
	if venueCode == 0 {
		return envelope.Data, nil
	}
	code, ok := errorCodes[venueCode]
	if !ok {
		code = errs.CodeExchange
	}
	message := envelope.Msg
	if message == "" {
		message = "Error"
	}
	return nil, errs.New(Name, code,
		errs.WithMessage(message),
		errs.WithHTTP(resp.Status),
		errs.WithRawCode(strconv.FormatInt(venueCode, 10)))
}

// parseMarkets lists the pair ids found in the all-tickers payload.
func parseMarkets(raw []byte) ([]schema.Market, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	markets := make([]schema.Market, 0, len(ids))
	aliases := currencyAliases()
	for _, id := range ids {
		base, quote, err := catalog.SplitID(id, "_", aliases)
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
			Info:      entries[id],
		})
	}
	return markets, nil
}

func parseTicker(raw []byte, symbol string) (schema.Ticker, error) {
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return schema.Ticker{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	last := safe.Float(entry, "last")
	ticker := schema.Ticker{
		Symbol:     symbol,
		High:       safe.Float(entry, "high"),
		Low:        safe.Float(entry, "low"),
		Bid:        safe.Float(entry, "buy"),
		Ask:        safe.Float(entry, "sell"),
		Close:      last,
		Last:       last,
		BaseVolume: safe.Float(entry, "vol"),
		Info:       raw,
	}
	if date := safe.Int(entry, "date"); date != nil {
		ticker.Timestamp = *date * 1000
	}
	return ticker, nil
}

// parseAllTickers skips pairs the venue reports as boolean false.
func parseAllTickers(raw []byte, cat *catalog.Catalog, symbols []string) (map[string]schema.Ticker, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	wanted := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		wanted[symbol] = true
	}
	out := make(map[string]schema.Ticker, len(entries))
	for id, entry := range entries {
		if len(entry) == 0 || entry[0] != '{' {
			continue
		}
		market, ok := cat.ByID(id)
		if !ok {
			continue
		}
		if len(wanted) > 0 && !wanted[market.Symbol] {
			continue
		}
		ticker, err := parseTicker(entry, market.Symbol)
		if err != nil {
			return nil, err
		}
		out[market.Symbol] = ticker
	}
	return out, nil
}

func parseOrderBook(raw []byte, symbol string) (schema.OrderBook, error) {
	var payload struct {
		Date int64            `json:"date"`
		Bids [][2]safe.Number `json:"bids"`
		Asks [][2]safe.Number `json:"asks"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.OrderBook{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	book := schema.OrderBook{Symbol: symbol, Timestamp: payload.Date * 1000}
	for _, row := range payload.Bids {
		book.Bids = append(book.Bids, schema.Level{Price: row[0].Float(), Amount: row[1].Float()})
	}
	for _, row := range payload.Asks {
		book.Asks = append(book.Asks, schema.Level{Price: row[0].Float(), Amount: row[1].Float()})
	}
	book.Sort()
	return book, nil
}

// parseTrades resolves the venue's bare time-of-day stamps against the
// current date in Hong Kong time.
func parseTrades(raw []byte, symbol string, now time.Time, since int64, limit int) ([]schema.Trade, error) {
	var payload struct {
		D []json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	day := now.Add(8 * time.Hour).UTC().Format("2006-01-02")
	trades := make([]schema.Trade, 0, len(payload.D))
	for _, raw := range payload.D {
		var entry map[string]any
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		price := safe.FloatOr(entry, "p", 0)
		amount := safe.FloatOr(entry, "n", 0)
		trade := schema.Trade{
			Symbol: symbol,
			Type:   schema.OrderTypeLimit,
			Price:  price,
			Amount: amount,
			Cost:   schema.Float(price * amount),
			Info:   raw,
		}
		if stamp, err := time.Parse("2006-01-02 15:04:05 -07:00", day+" "+safe.String(entry, "t")+" +08:00"); err == nil {
			trade.Timestamp = stamp.UnixMilli()
		}
		if side, err := schema.ParseTradeSide(safe.String(entry, "s")); err == nil {
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

// parseOHLCV decodes the kline payload, whose rows arrive as a JSON string
// nested inside the data envelope.
func parseOHLCV(raw []byte, since int64, limit int) ([]schema.OHLCV, error) {
	var payload struct {
		Datas struct {
			Data string `json:"data"`
		} `json:"datas"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	var rows [][6]float64
	if err := json.Unmarshal([]byte(payload.Datas.Data), &rows); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	candles := make([]schema.OHLCV, 0, len(rows))
	for _, row := range rows {
		candle := schema.OHLCV{
			Timestamp: int64(row[0]),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
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

// parseBalances reads the flat balance map, where each currency key holds
// the total and its "_lock" sibling the frozen part.
func parseBalances(raw []byte) (schema.Balances, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	aliases := currencyAliases()
	balances := schema.Balances{Accounts: make(map[string]schema.Balance), Info: raw}
	for key, value := range entries {
		if key == "uid" || strings.Contains(key, "_") {
			continue
		}
		var total safe.Number
		if err := json.Unmarshal(value, &total); err != nil {
			continue
		}
		var used safe.Number
		if locked, ok := entries[key+"_lock"]; ok {
			if err := json.Unmarshal(locked, &used); err != nil {
				used = 0
			}
		}
		free := total.Float() - used.Float()
		balance, err := schema.MakeBalance(free, used.Float(), total.Ptr())
		if err != nil {
			return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		balances.Accounts[aliases.Canonical(key)] = balance
	}
	return balances, nil
}

func currencyAliases() catalog.AliasTable {
	return catalog.AliasTable{"PXC": "Pixiecoin"}
}

func parseOrderID(raw []byte) (string, error) {
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	id := safe.String(entry, "id")
	if id == "" {
		return "", errs.New(Name, errs.CodeExchange,
			errs.WithMessage("tradeAdd response carried no order id"))
	}
	return id, nil
}

func parseOpenOrders(raw []byte, symbol string) ([]schema.Order, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	orders := make([]schema.Order, 0, len(entries))
	for _, raw := range entries {
		var entry map[string]any
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		order := schema.Order{
			ID:     safe.String(entry, "id"),
			Status: schema.OrderStatusOpen,
			Symbol: symbol,
			Type:   schema.OrderTypeLimit,
			Side:   parseOrderSide(entry),
			Price:  safe.Float(entry, "price"),
			Amount: safe.Float(entry, "number"),
			Info:   raw,
		}
		if remaining := safe.Float(entry, "numberover"); remaining != nil {
			order.Remaining = remaining
			if order.Amount != nil {
				order.Filled = schema.Float(*order.Amount - *remaining)
			}
		}
		if stamp, err := time.Parse("2006-01-02 15:04:05", safe.String(entry, "datetime")); err == nil {
			order.Timestamp = stamp.UnixMilli()
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// parseOrderSide reads whichever of the venue's three side spellings is
// present: a plain side, the in/out type, or the flag.
func parseOrderSide(entry map[string]any) schema.TradeSide {
	if side, err := schema.ParseTradeSide(safe.String(entry, "side")); err == nil {
		return side
	}
	switch safe.String(entry, "type") {
	case "in":
		return schema.TradeSideBuy
	case "out":
		return schema.TradeSideSell
	}
	if side, err := schema.ParseTradeSide(safe.String(entry, "flag")); err == nil {
		return side
	}
	return ""
}
