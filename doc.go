// Package gaxios provides a configurable HTTP client with
// request/response interceptors, content-type aware decoding,
// environment-driven proxy selection, and a retry mechanism with
// deterministic exponential backoff.
//
// Requests
//   - Every call is described by a RequestConfig; instance defaults set
//     via WithDefaults are merged under it, the per-call config winning
//     key by key.
//   - Bodies are built with the JSON, String, Bytes, Reader, Form and
//     Multipart constructors. Deterministic bodies are re-encoded on every
//     attempt; Reader bodies are one-shot and unsafe to retry.
//   - Validation failures surface before any network activity.
//
// Retries
//   - Controlled via RequestConfig.Retry.
//   - Failures with an HTTP response retry when both the method and the
//     status code match the policy (default: idempotent verbs; 1xx, 408,
//     429 and 5xx).
//   - Failures with no response at all use a separate NoResponseRetries
//     budget regardless of method.
//   - Cancellation is never retried; per-attempt timeouts are.
//
// Backoff Strategy
//   - Deterministic exponential backoff: delay = RetryDelay * multiplier^attempt,
//     no jitter, capped at MaxRetryDelay when set.
//   - TotalTimeout bounds the whole logical request; a computed delay is
//     shortened to the remaining budget rather than sleeping past it.
//   - A Retry-After response header raises the floor of a computed delay.
//
// Notes
//   - Request interceptors run once per logical request; retries re-enter
//     the dispatcher only.
//   - Errors carry a redacted snapshot of the request config, never the
//     live value.
package gaxios
