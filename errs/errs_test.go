package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesRawBackendDetail(t *testing.T) {
	err := New(
		"transport",
		CodeTransport,
		WithHTTP(502),
		WithMessage("trade fetch failed"),
		WithRawCode("BACKEND_DOWN"),
		WithRawMessage("upstream unavailable"),
		WithCause(errors.New("dial tcp: connection refused")),
	)

	out := err.Error()
	if !strings.Contains(out, "component=transport") {
		t.Fatalf("expected component marker in error string: %s", out)
	}
	if !strings.Contains(out, "code=transport") {
		t.Fatalf("expected code in error string: %s", out)
	}
	if !strings.Contains(out, "http=502") {
		t.Fatalf("expected http status in error string: %s", out)
	}
	if !strings.Contains(out, "raw_code=\"BACKEND_DOWN\"") {
		t.Fatalf("expected raw backend code in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"dial tcp: connection refused\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := New("orchestrator", CodeIllegalTransition, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find cause through Unwrap")
	}
}

func TestCodeOfThroughWrapping(t *testing.T) {
	inner := New("orchestrator", CodeInvalidAmount, WithMessage("amount below minimum"))
	wrapped := fmt.Errorf("create trade: %w", inner)

	if got := CodeOf(wrapped); got != CodeInvalidAmount {
		t.Fatalf("expected invalid_amount through wrapping, got %q", got)
	}
	if !IsCode(wrapped, CodeInvalidAmount) {
		t.Fatalf("expected IsCode to match wrapped code")
	}
	if IsCode(wrapped, CodeTradeLimit) {
		t.Fatalf("IsCode matched the wrong code")
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty code for plain error, got %q", got)
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("expected <nil> string for nil error, got %q", got)
	}
}
