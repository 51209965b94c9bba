package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeInvalidOrder, "price out of range")
	want := "[INVALID_ORDER] price out of range"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	cause := stderrors.New("boom")
	wrapped := Wrap(CodeAPIError, "post failed", cause)
	want = "[API_ERROR] post failed: boom"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := Wrap(CodeNetworkError, "fetch failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(CodeAuthError, "missing creds")); got != CodeAuthError {
		t.Errorf("GetCode = %s, want %s", got, CodeAuthError)
	}

	// Code survives further wrapping with %w.
	inner := New(CodeInvalidToken, "bad token id")
	outer := fmt.Errorf("building order: %w", inner)
	if got := GetCode(outer); got != CodeInvalidToken {
		t.Errorf("GetCode through fmt wrap = %s, want %s", got, CodeInvalidToken)
	}

	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Errorf("GetCode on plain error = %s, want %s", got, CodeUnknown)
	}
}

func TestHasCode(t *testing.T) {
	err := Newf(CodeInvalidOrder, "size %f must be positive", 0.0)
	if !HasCode(err, CodeInvalidOrder) {
		t.Error("HasCode should match")
	}
	if HasCode(err, CodeAPIError) {
		t.Error("HasCode should not match a different code")
	}
}
