package btctradeua

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/exchange"
	"github.com/exbridge/exbridge/internal/safe"
	"github.com/exbridge/exbridge/schema"
)

// tickerWindow is how many trailing candles feed the derived ticker.
const tickerWindow = 48

func (a *Adapter) checkResponse(resp *exchange.Response) ([]byte, error) {
	body := resp.Body
	if len(body) > 1 && body[0] == '{' {
		var envelope struct {
			Status  *bool  `json:"status"`
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status != nil && !*envelope.Status {
			message := envelope.Error
			if message == "" {
				message = envelope.Message
			}
			return nil, errs.New(Name, errs.CodeExchange,
				errs.WithMessage(message),
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

func parseOrderBook(rawBids, rawAsks []byte, symbol string, limit int) (schema.OrderBook, error) {
	bids, err := parseBookSide(rawBids)
	if err != nil {
		return schema.OrderBook{}, err
	}
	asks, err := parseBookSide(rawAsks)
	if err != nil {
		return schema.OrderBook{}, err
	}
	book := schema.OrderBook{Symbol: symbol, Bids: bids, Asks: asks}
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

func parseBookSide(raw []byte) ([]schema.Level, error) {
	var payload struct {
		List []struct {
			Price         safe.Number `json:"price"`
			CurrencyTrade safe.Number `json:"currency_trade"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	out := make([]schema.Level, 0, len(payload.List))
	for _, entry := range payload.List {
		out = append(out, schema.Level{Price: entry.Price.Float(), Amount: entry.CurrencyTrade.Float()})
	}
	return out, nil
}

// buildTicker folds the trailing candle window into OHLC statistics and takes
// bid/ask from the live book. Candle volumes arrive negated on the wire.
func buildTicker(raw []byte, symbol string, book schema.OrderBook, now int64) (schema.Ticker, error) {
	var payload struct {
		Trades [][]safe.Number `json:"trades"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Ticker{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	ticker := schema.Ticker{Symbol: symbol, Timestamp: now, Info: raw}
	if len(book.Bids) > 0 {
		ticker.Bid = schema.Float(book.Bids[0].Price)
	}
	if len(book.Asks) > 0 {
		ticker.Ask = schema.Float(book.Asks[0].Price)
	}
	candles := payload.Trades
	if len(candles) == 0 {
		return ticker, nil
	}
	start := len(candles) - tickerWindow
	if start < 0 {
		start = 0
	}
	volume := 0.0
	for i := start; i < len(candles); i++ {
		candle := candles[i]
		if len(candle) < 6 {
			continue
		}
		if ticker.Open == nil {
			ticker.Open = candle[1].Ptr()
		}
		if ticker.High == nil || *ticker.High < candle[2].Float() {
			ticker.High = candle[2].Ptr()
		}
		if ticker.Low == nil || *ticker.Low > candle[3].Float() {
			ticker.Low = candle[3].Ptr()
		}
		volume -= candle[5].Float()
	}
	last := candles[len(candles)-1]
	if len(last) >= 5 {
		ticker.Close = last[4].Ptr()
		ticker.Last = last[4].Ptr()
	}
	ticker.BaseVolume = schema.Float(volume)
	return ticker, nil
}

func parseOHLCV(raw []byte, since int64, limit int) ([]schema.OHLCV, error) {
	var payload struct {
		Trades [][]safe.Number `json:"trades"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	out := make([]schema.OHLCV, 0, len(payload.Trades))
	for _, candle := range payload.Trades {
		if len(candle) < 6 {
			continue
		}
		entry := schema.OHLCV{
			Timestamp: int64(candle[0].Float()),
			Open:      candle[1].Float(),
			High:      candle[2].Float(),
			Low:       candle[3].Float(),
			Close:     candle[4].Float(),
			Volume:    -candle[5].Float(),
		}
		if since > 0 && entry.Timestamp < since {
			continue
		}
		out = append(out, entry)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

var cyrillicMonths = map[string]string{
	"января":   "01",
	"февраля":  "02",
	"марта":    "03",
	"апреля":   "04",
	"мая":      "05",
	"июня":     "06",
	"июля":     "07",
	"августа":  "08",
	"сентября": "09",
	"октября":  "10",
	"ноября":   "11",
	"декабря":  "12",
}

// parseCyrillicDatetime converts timestamps like "31 января 2018 г. 9:30:55"
// to epoch milliseconds. The server reports Kyiv local time: two hours ahead
// of UTC in winter, three in summer, approximated by the calendar window
// between March 25 and October 28.
func parseCyrillicDatetime(value string) (int64, error) {
	parts := strings.Fields(value)
	if len(parts) < 5 {
		return 0, errs.New(Name, errs.CodeData, errs.WithMessage("malformed timestamp "+value))
	}
	day := parts[0]
	month, ok := cyrillicMonths[parts[1]]
	if !ok {
		return 0, errs.New(Name, errs.CodeData, errs.WithMessage("unknown month name in "+value))
	}
	year := parts[2]
	hms := parts[4]
	if len(hms) == 7 {
		hms = "0" + hms
	}
	if len(day) == 1 {
		day = "0" + day
	}
	parsed, err := time.Parse("2006-01-02T15:04:05", year+"-"+month+"-"+day+"T"+hms)
	if err != nil {
		return 0, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	timestamp := parsed.UnixMilli()
	md, _ := strconv.Atoi(month + day)
	if md < 325 || md > 1028 {
		return timestamp - 7200000, nil
	}
	return timestamp - 10800000, nil
}

// parseTrades keeps only odd-id records: the venue reports every fill twice,
// once for each side.
func parseTrades(raw []byte, symbol string, since int64, limit int) ([]schema.Trade, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	out := make([]schema.Trade, 0, len(entries)/2)
	for _, entry := range entries {
		var payload struct {
			ID        json.Number `json:"id"`
			PubDate   string      `json:"pub_date"`
			Type      string      `json:"type"`
			Price     safe.Number `json:"price"`
			AmntTrade safe.Number `json:"amnt_trade"`
		}
		if err := json.Unmarshal(entry, &payload); err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		id, _ := payload.ID.Int64()
		if id%2 == 0 {
			continue
		}
		timestamp, err := parseCyrillicDatetime(payload.PubDate)
		if err != nil {
			return nil, err
		}
		side, err := schema.ParseTradeSide(payload.Type)
		if err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		trade := schema.Trade{
			ID:        payload.ID.String(),
			Timestamp: timestamp,
			Symbol:    symbol,
			Type:      schema.OrderTypeLimit,
			Side:      side,
			Price:     payload.Price.Float(),
			Amount:    payload.AmntTrade.Float(),
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
		Accounts []struct {
			Currency string      `json:"currency"`
			Balance  safe.Number `json:"balance"`
		} `json:"accounts"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	accounts := make(map[string]schema.Balance, len(payload.Accounts))
	for _, account := range payload.Accounts {
		balance, err := schema.MakeBalance(account.Balance.Float(), 0, nil)
		if err != nil {
			return schema.Balances{}, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		accounts[strings.ToUpper(account.Currency)] = balance
	}
	return schema.Balances{Accounts: accounts, Info: raw}, nil
}

// parseOpenOrders stamps orders with the caller's clock: the venue's own
// timestamps are unreliable.
func parseOpenOrders(raw []byte, symbol string, now int64) ([]schema.Order, error) {
	var payload struct {
		YourOpenOrders []json.RawMessage `json:"your_open_orders"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
	}
	out := make([]schema.Order, 0, len(payload.YourOpenOrders))
	for _, entry := range payload.YourOpenOrders {
		var order struct {
			ID        json.Number `json:"id"`
			Type      string      `json:"type"`
			Price     safe.Number `json:"price"`
			AmntTrade safe.Number `json:"amnt_trade"`
		}
		if err := json.Unmarshal(entry, &order); err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		side, err := schema.ParseTradeSide(order.Type)
		if err != nil {
			return nil, errs.New(Name, errs.CodeData, errs.WithCause(err))
		}
		out = append(out, schema.Order{
			ID:        order.ID.String(),
			Timestamp: now,
			Status:    schema.OrderStatusOpen,
			Symbol:    symbol,
			Side:      side,
			Price:     order.Price.Ptr(),
			Amount:    order.AmntTrade.Ptr(),
			Filled:    schema.Float(0),
			Remaining: order.AmntTrade.Ptr(),
			Info:      entry,
		})
	}
	return out, nil
}

func extractOrderID(raw []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if id := safe.String(payload, "id"); id != "" {
		return id
	}
	return safe.String(payload, "order_id")
}
