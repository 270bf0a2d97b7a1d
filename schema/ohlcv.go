package schema

// OHLCV is one candle. Timestamp is epoch milliseconds regardless of the
// source layout; adapters reorder source arrays into this shape.
type OHLCV struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}
