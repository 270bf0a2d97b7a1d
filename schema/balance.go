package schema

import (
	"errors"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// balanceTolerance bounds the acceptable drift between a wire-reported total
// and the recomputed free+used sum.
var balanceTolerance = decimal.New(1, -9)

// ErrTotalMismatch signals that a reported balance total diverges from
// free+used beyond tolerance.
var ErrTotalMismatch = errors.New("balance total diverges from free+used")

// Balance holds the funds of one currency. Total is always recomputed as
// Free+Used; it is never trusted blindly from the wire.
type Balance struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// Balances maps canonical currency codes to their balances.
type Balances struct {
	Accounts map[string]Balance `json:"accounts"`
	Info     json.RawMessage    `json:"info,omitempty"`
}

// MakeBalance recomputes the total from free and used. When the wire reports
// its own total, a divergence beyond tolerance returns ErrTotalMismatch
// rather than silently picking one value.
func MakeBalance(free, used float64, reported *float64) (Balance, error) {
	total := decimal.NewFromFloat(free).Add(decimal.NewFromFloat(used))
	if reported != nil {
		drift := decimal.NewFromFloat(*reported).Sub(total).Abs()
		if drift.GreaterThan(balanceTolerance) {
			return Balance{}, ErrTotalMismatch
		}
	}
	value, _ := total.Float64()
	return Balance{Free: free, Used: used, Total: value}, nil
}
