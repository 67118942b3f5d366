package gaxios

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorType defines the category of a request failure.
type ErrorType string

const (
	// ValidationError marks bad input detected before any network activity.
	ValidationError ErrorType = "validation"
	// TransportError marks a connection-level failure with no HTTP response.
	TransportError ErrorType = "transport"
	// HTTPError marks a response rejected by the status validator.
	HTTPError ErrorType = "http"
	// DecodeError marks a body that could not be decoded as the caller required.
	DecodeError ErrorType = "decode"
	// ContentLengthError marks a response rejected before reading because its
	// declared length exceeds the configured maximum.
	ContentLengthError ErrorType = "content_length"
	// CancelError marks a caller-initiated cancellation. Never retried.
	CancelError ErrorType = "canceled"
	// TimeoutError marks a cancellation triggered by the library's own
	// per-attempt timeout. Retried like any other failure.
	TimeoutError ErrorType = "timeout"
)

// Error is the single failure wrapper produced by the request pipeline.
// It carries redacted snapshots of the config and partial response; the
// fields the retry engine inspects (status, code, type) are never redacted.
type Error struct {
	// Config is a redacted snapshot of the request configuration at the
	// time of failure. Mutating it has no effect on in-flight retries.
	Config *RequestConfig
	// Response is a redacted snapshot of the partial response, if any.
	Response *Response
	// Status is the HTTP status code when a response exists, 0 otherwise.
	Status int
	// Code is a short machine-readable code: "timeout", "canceled", a
	// transport code, or the numeric HTTP status as fallback.
	Code string
	// Attempt is the retry attempt count at the time the error became
	// terminal (0 when the first attempt failed without retries).
	Attempt int

	errType ErrorType
	message string
	cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Status > 0:
		return fmt.Sprintf("%s error: %s (status: %d)", e.errType, e.message, e.Status)
	case e.cause != nil:
		return fmt.Sprintf("%s error: %s: %v", e.errType, e.message, e.cause)
	default:
		return fmt.Sprintf("%s error: %s", e.errType, e.message)
	}
}

// Type returns the failure category.
func (e *Error) Type() ErrorType {
	return e.errType
}

// Unwrap exposes the underlying transport or decode error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// StatusCode returns the HTTP status code, or 0 when no response exists.
func (e *Error) StatusCode() int {
	return e.Status
}

// newError wraps a failed attempt exactly once. Snapshotting and redaction
// run synchronously here so the error is scrubbed before any caller or the
// retry engine can observe it. Redaction only touches credential-shaped
// fields; method, status and retry state survive for the retry decision.
func newError(errType ErrorType, message string, cause error, cfg *RequestConfig, resp *Response) *Error {
	e := &Error{
		errType: errType,
		message: message,
		cause:   cause,
	}
	if resp != nil {
		e.Status = resp.StatusCode
		e.Code = strconv.Itoa(resp.StatusCode)
	}
	switch errType {
	case TimeoutError:
		e.Code = "timeout"
	case CancelError:
		e.Code = "canceled"
	}

	var redactor Redactor
	if cfg != nil {
		e.Config = snapshotConfig(cfg)
		redactor = cfg.ErrorRedactor
	}
	e.Response = snapshotResponse(resp)
	if redactor == nil {
		redactor = defaultRedactor
	}
	// Redaction is best-effort: a panicking redactor leaves the snapshot
	// unredacted rather than crashing the error path.
	func() {
		defer func() { _ = recover() }()
		redactor(e.Config, e.Response)
	}()
	return e
}

// asError normalizes any failure into *Error; values that already are one
// pass through unwrapped so errors are never double-wrapped.
func asError(err error, cfg *RequestConfig) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return newError(TransportError, "request failed", err, cfg, nil)
}

// IsErrorType checks whether err is a gaxios error of the given category.
func IsErrorType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Type() == errType
	}
	return false
}

// IsHTTPStatusError checks whether err carries the given HTTP status code.
func IsHTTPStatusError(err error, statusCode int) bool {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.StatusCode() == statusCode
	}
	return false
}

// IsSuccessStatus reports whether a status code is in the 2xx range. It is
// the default status validator.
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
