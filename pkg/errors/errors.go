// Package errors provides the coded error type shared across the
// client. Codes mirror the CLOB API error taxonomy so callers can
// route on them: validation failures (INVALID_*) are never retriable,
// API/NETWORK failures are surfaced verbatim and the retry decision
// belongs to the caller.
package errors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeUnknown       Code = "UNKNOWN"
	CodeInvalidMarket Code = "INVALID_MARKET"
	CodeInvalidToken  Code = "INVALID_TOKEN"
	CodeInvalidOrder  Code = "INVALID_ORDER"
	CodeMarketClosed  Code = "MARKET_CLOSED"
	CodeAPIError      Code = "API_ERROR"
	CodeWSError       Code = "WEBSOCKET_ERROR"
	CodeAuthError     Code = "AUTH_ERROR"
	CodeConfigError   Code = "CONFIG_ERROR"
	CodeSigningError  Code = "SIGNING_ERROR"
	CodeParseError    Code = "PARSE_ERROR"
	CodeNetworkError  Code = "NETWORK_ERROR"
	CodeStorageError  Code = "STORAGE_ERROR"
)

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Wrapf(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// GetCode extracts the Code from an error chain, or CodeUnknown if no
// *Error is present.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}
