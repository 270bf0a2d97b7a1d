// Package safe provides total, side-effect-free extraction helpers for the
// loose JSON payloads exchanges emit: numbers arrive interchangeably as
// strings or floats, and optional fields may be absent entirely.
package safe

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Number decodes a JSON value that may be a quoted or unquoted number.
// Non-coercible values decode to zero rather than failing the payload.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*n = 0
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		trimmed = strings.TrimSpace(s)
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(parsed)
	return nil
}

// Float returns the underlying float64.
func (n Number) Float() float64 { return float64(n) }

// Ptr converts an optional Number into an optional float64.
func (n *Number) Ptr() *float64 {
	if n == nil {
		return nil
	}
	v := float64(*n)
	return &v
}

// Float extracts a coercible number from a decoded payload, or nil when the
// key is absent or the value cannot be coerced.
func Float(payload map[string]any, key string) *float64 {
	value, ok := payload[key]
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case float64:
		return &v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		return &parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

// FloatOr extracts a coercible number, falling back to def.
func FloatOr(payload map[string]any, key string, def float64) float64 {
	if v := Float(payload, key); v != nil {
		return *v
	}
	return def
}

// String extracts a string value, coercing numbers; absent keys yield "".
func String(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Int extracts an integral number, or nil when absent or non-coercible.
func Int(payload map[string]any, key string) *int64 {
	f := Float(payload, key)
	if f == nil {
		return nil
	}
	v := int64(*f)
	return &v
}

// ParseFloat coerces a trimmed string to float64.
func ParseFloat(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
