package gaxios

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ResponseType determines how the response body is decoded.
type ResponseType string

const (
	// ResponseTypeUnknown sniffs the response Content-Type header:
	// application/json decodes as JSON (text fallback on parse failure),
	// text/* decodes as text, anything else is returned as raw bytes.
	ResponseTypeUnknown ResponseType = ""
	// ResponseTypeJSON decodes the body as JSON into Response.Data.
	ResponseTypeJSON ResponseType = "json"
	// ResponseTypeText decodes the body as a string.
	ResponseTypeText ResponseType = "text"
	// ResponseTypeBytes buffers the body fully and returns raw bytes.
	ResponseTypeBytes ResponseType = "bytes"
	// ResponseTypeStream returns the raw body stream unconsumed.
	ResponseTypeStream ResponseType = "stream"
)

// Fetcher executes a single HTTP exchange. It is the transport boundary:
// the dispatcher hands it a fully-resolved request and consumes the
// response descriptor it returns. The default fetcher is built on net/http
// with the agent selected during preparation.
type Fetcher func(req *http.Request) (*http.Response, error)

// Redactor scrubs credential-shaped fields from the error's config and
// response snapshots. It never runs against the live config carried
// forward for retries. Either argument may be nil.
type Redactor func(cfg *RequestConfig, resp *Response)

// RequestConfig describes one logical request. Instance defaults and
// per-call options are deep-merged into a fresh, fully-owned config during
// preparation, so concurrent calls never observe each other's mutations.
type RequestConfig struct {
	// URL is the request target. It may be relative when BaseURL is set;
	// after preparation it is always absolute.
	URL string
	// BaseURL resolves a relative URL. Typically set on instance defaults.
	BaseURL string
	// Method is the HTTP verb. Defaults to GET.
	Method string
	// Headers are merged case-insensitively; per-call values overwrite
	// defaults except repeatable headers (Set-Cookie), which accumulate.
	Headers http.Header
	// Params are appended to the URL query string, coexisting with any
	// query already present on the URL.
	Params url.Values
	// ParamsSerializer overrides the standard URL-encoded serialization of
	// Params. A leading "?" in its output is stripped.
	ParamsSerializer func(params url.Values) string
	// Body is the request payload, one of the closed set of kinds
	// constructed via JSON, String, Bytes, Reader, Form or Multipart.
	Body Body

	// Timeout bounds a single dispatch attempt. The derived cancellation
	// combines with the caller's context so either one aborts the attempt.
	Timeout time.Duration
	// MaxRedirects caps redirect following. 0 means the net/http default.
	MaxRedirects int
	// MaxContentLength rejects responses whose declared Content-Length
	// exceeds it, before the body is read. 0 disables the check.
	MaxContentLength int64
	// ValidateStatus accepts or rejects a response by status code.
	// nil accepts 200-299.
	ValidateStatus func(status int) bool
	// ResponseType selects the body decoding strategy.
	ResponseType ResponseType

	// Proxy is an explicit proxy URL. It takes precedence over the
	// HTTPS_PROXY/HTTP_PROXY environment variables.
	Proxy string
	// NoProxy rules suppress proxy use for matching targets. They are
	// concatenated with rules from the NO_PROXY environment variable.
	NoProxy []string
	// Agent, when set, is used verbatim and skips all proxy/mTLS logic.
	Agent http.RoundTripper
	// CertPEM and KeyPEM configure a client certificate for mutual TLS.
	CertPEM []byte
	KeyPEM  []byte
	// Fetcher overrides the transport function. Mainly for tests.
	Fetcher Fetcher

	// Retry enables retries with the given policy. nil disables retries.
	Retry *RetryConfig
	// OnRetryAttempt is invoked after a retry is approved and before the
	// backoff sleep. Its error is logged, not treated as a failure.
	OnRetryAttempt func(ctx context.Context, err *Error) error
	// ErrorRedactor overrides the default redaction of error snapshots.
	// Use NoRedactor to disable redaction entirely.
	ErrorRedactor Redactor

	// agent is the transport selected during preparation (nil = direct).
	agent http.RoundTripper
	// fetch is the resolved transport function used by the dispatcher.
	fetch Fetcher
	// bodyBytes holds a deterministic payload re-sent on every attempt;
	// bodyStream holds a one-shot payload (multipart, caller reader).
	bodyBytes  []byte
	bodyStream io.Reader
}

// Response is the decoded result of a logical request.
type Response struct {
	// StatusCode is the HTTP status of the final attempt.
	StatusCode int
	// Header holds the response headers. Keys are case-insensitive and
	// repeatable headers keep all values.
	Header http.Header
	// Data is the decoded body: any JSON value, a string for text, or
	// []byte for raw bytes. nil in stream mode.
	Data any
	// Bytes is the raw buffered body. nil in stream mode unless the
	// status validator rejected the response, in which case the stream is
	// drained here so errors carry the full body.
	Bytes []byte
	// Body is the unconsumed stream in ResponseTypeStream mode.
	Body io.ReadCloser
	// Config is the prepared configuration the response was produced
	// with, including final retry state.
	Config *RequestConfig
	// Stats describes the logical request's execution.
	Stats Stats
}

// Stats contains request execution statistics.
type Stats struct {
	// ElapsedTime spans all attempts of the logical request.
	ElapsedTime time.Duration
	// Attempts is the number of dispatches, including the first.
	Attempts int
}

// ClientStats are cumulative counters across all requests of a client.
type ClientStats struct {
	TotalRequests uint64
	TotalErrors   uint64
	TotalRetries  uint64
}
