// Package errs provides structured error types and helpers for fxlane components.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a trade-engine error category.
type Code string

const (
	// CodeInvalidAmount indicates a trade amount outside the offer limits.
	CodeInvalidAmount Code = "invalid_amount"
	// CodeTradeLimit indicates the buyer already holds an active trade.
	CodeTradeLimit Code = "trade_limit"
	// CodeIllegalTransition indicates the requested event is not valid from the current status.
	CodeIllegalTransition Code = "illegal_transition"
	// CodeUnauthorized indicates the acting role may not trigger the event.
	CodeUnauthorized Code = "unauthorized"
	// CodeTransport indicates a network or backend failure, including timeouts.
	CodeTransport Code = "transport"
	// CodeNotFound indicates a missing trade or offer.
	CodeNotFound Code = "not_found"
	// CodeConflict indicates the backend rejected a request it deemed stale.
	CodeConflict Code = "conflict"
)

// E captures structured error information produced across the fxlane stack.
type E struct {
	Component string
	Code      Code
	HTTP      int
	RawCode   string
	RawMsg    string
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and error code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{
		Component: strings.TrimSpace(component),
		Code:      code,
		HTTP:      0,
		RawCode:   "",
		RawMsg:    "",
		Message:   "",
		cause:     nil,
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

// WithRawCode captures the raw backend error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.RawCode = trimmed
	}
}

// WithRawMessage captures the raw backend error message.
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

	component := strings.TrimSpace(e.Component)
	if component == "" {
		component = "unknown"
	}
	parts = append(parts, "component="+component)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
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

// CodeOf extracts the engine error code from err, or the empty Code when err
// does not wrap an *E.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given engine error code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
