// Package errs provides the structured error envelope shared by all exchange adapters.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a canonical, exchange-agnostic error category.
type Code string

const (
	// CodeAuthentication indicates bad or missing credentials, or a bad signature.
	CodeAuthentication Code = "authentication"
	// CodeInsufficientFunds indicates the account balance cannot cover the request.
	CodeInsufficientFunds Code = "insufficient_funds"
	// CodeInvalidOrder indicates a price/amount outside exchange limits or an unsupported order type.
	CodeInvalidOrder Code = "invalid_order"
	// CodeOrderNotFound indicates that the referenced order does not exist.
	CodeOrderNotFound Code = "order_not_found"
	// CodeInvalidNonce indicates a nonce or clock desynchronization.
	CodeInvalidNonce Code = "invalid_nonce"
	// CodeDDoSProtection indicates the request was rate limited; callers should back off.
	CodeDDoSProtection Code = "ddos_protection"
	// CodeExchangeNotAvailable indicates the exchange is down or under maintenance.
	CodeExchangeNotAvailable Code = "exchange_not_available"
	// CodeNotSupported indicates the operation is not implemented for this venue or market.
	CodeNotSupported Code = "not_supported"
	// CodeExchange captures unclassified exchange-side failures.
	CodeExchange Code = "exchange_error"
	// CodeData indicates a malformed or self-inconsistent response that cannot be normalized.
	CodeData Code = "data_error"
	// CodeNetwork indicates a transport-level failure.
	CodeNetwork Code = "network"
)

// E captures structured error information produced across the adapter stack.
type E struct {
	Exchange string
	Code     Code
	HTTP     int
	RawCode  string
	RawMsg   string
	Message  string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the exchange and error code.
func New(exchange string, code Code, opts ...Option) *E {
	e := &E{
		Exchange: strings.TrimSpace(exchange),
		Code:     code,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawCode captures the raw exchange error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.RawCode = trimmed
	}
}

// WithRawMessage captures the raw exchange error payload for diagnosis.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	exchange := strings.TrimSpace(e.Exchange)
	if exchange == "" {
		exchange = "unknown"
	}
	parts = append(parts, "exchange="+exchange)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = string(CodeExchange)
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawCode != "" {
		parts = append(parts, "raw_code="+strconv.Quote(e.RawCode))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the canonical code from err, or CodeExchange when err is
// not an envelope.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeExchange
}

// Is reports whether err carries the given canonical code.
func Is(err error, code Code) bool {
	var e *E
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// NotSupported returns a standardized error for operations a venue cannot serve.
func NotSupported(exchange, op string) *E {
	return New(exchange, CodeNotSupported, WithMessage(op+" is not supported"))
}
