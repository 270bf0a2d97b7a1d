// Package codec implements the wire-level building blocks shared by all
// adapters: parameter encoding, request signing and nonce generation.
package codec

import (
	"net/url"
	"sort"
	"strings"
)

// Params is an ordered-insensitive parameter set; both encoders emit keys in
// sorted order so signatures are deterministic.
type Params map[string]string

// Clone returns a shallow copy with extra merged in. The receiver is never
// mutated, keeping signing functions pure.
func (p Params) Clone(extra Params) Params {
	out := make(Params, len(p)+len(extra))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// URLEncode renders the parameters as a percent-escaped query string with
// sorted keys.
func URLEncode(params Params) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

// RawEncode renders the parameters as key=value pairs with sorted keys and
// no percent escaping. Several venues sign over this raw form.
func RawEncode(params Params) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}
