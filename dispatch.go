package gaxios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// errAttemptTimeout is the cancellation cause installed by the library's
// own per-attempt timeout, so it can be told apart from caller-initiated
// cancellation when classifying failures.
var errAttemptTimeout = errors.New("gaxios: attempt timeout")

// dispatch executes one attempt against the transport and decodes the
// response. Every failure is normalized into *Error before returning.
func (c *Client) dispatch(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeoutCause(ctx, cfg.Timeout, errAttemptTimeout)
	}
	// The stream body must outlive this call; everything else is buffered
	// before returning.
	streaming := cfg.ResponseType == ResponseTypeStream

	body, contentLength := cfg.bodyReader()
	req, err := http.NewRequestWithContext(attemptCtx, cfg.Method, cfg.URL, body)
	if err != nil {
		cancel()
		return nil, newError(ValidationError, "building request failed", err, cfg, nil)
	}
	if contentLength >= 0 {
		req.ContentLength = contentLength
	}
	req.Header = cfg.Headers.Clone()

	res, err := cfg.fetch(req)
	if err != nil {
		// Classify against the still-live attempt context; releasing it
		// first would make every failure look like a cancellation.
		gerr := classifyTransportError(attemptCtx, cfg, err)
		cancel()
		return nil, gerr
	}

	resp, gerr := c.decodeResponse(attemptCtx, cfg, res)
	if gerr != nil {
		cancel()
		return nil, gerr
	}
	if streaming {
		// Releasing the timeout now would kill the stream mid-read; the
		// body carries the cancel instead.
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	} else {
		cancel()
	}

	if !cfg.ValidateStatus(resp.StatusCode) {
		if streaming && resp.Body != nil {
			// Deliberately drain the whole stream so the error carries the
			// full body instead of a half-consumed reader.
			drained, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			resp.Body = nil
			resp.Bytes = drained
		}
		return nil, newError(
			HTTPError,
			fmt.Sprintf("request failed with status code %d", resp.StatusCode),
			nil, cfg, resp,
		)
	}
	return resp, nil
}

// decodeResponse enforces the content-length bound and decodes the body
// according to the declared or sniffed response type.
func (c *Client) decodeResponse(ctx context.Context, cfg *RequestConfig, res *http.Response) (*Response, *Error) {
	resp := &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Config:     cfg,
	}

	// Declared-length check happens before any read.
	if cfg.MaxContentLength > 0 && res.ContentLength > cfg.MaxContentLength {
		res.Body.Close()
		return nil, newError(
			ContentLengthError,
			fmt.Sprintf("response content length %d exceeds limit %d", res.ContentLength, cfg.MaxContentLength),
			nil, cfg, resp,
		)
	}

	if cfg.ResponseType == ResponseTypeStream {
		resp.Body = res.Body
		return resp, nil
	}

	raw, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, classifyTransportError(ctx, cfg, err)
	}
	resp.Bytes = raw

	switch cfg.ResponseType {
	case ResponseTypeJSON:
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			// The body is fully consumed as text, but the caller required
			// JSON: surface a decode failure.
			resp.Data = string(raw)
			return nil, newError(DecodeError, "response is not valid JSON", err, cfg, resp)
		}
		resp.Data = data
	case ResponseTypeText:
		resp.Data = string(raw)
	case ResponseTypeBytes:
		resp.Data = raw
	default:
		resp.Data = sniffData(res.Header.Get("Content-Type"), raw)
	}
	return resp, nil
}

// sniffData decodes the body based on the declared content type:
// application/json parses as JSON with a silent text fallback, text/*
// decodes as text, anything else stays raw bytes.
func sniffData(contentType string, raw []byte) any {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json"):
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			return string(raw)
		}
		return data
	case strings.HasPrefix(ct, "text/"):
		return string(raw)
	default:
		return raw
	}
}

// classifyTransportError distinguishes the library's own timeout (retried
// like any other failure) from caller-initiated cancellation (never
// retried), funneling everything else into a transport error.
func classifyTransportError(ctx context.Context, cfg *RequestConfig, err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}

	if ctx.Err() != nil {
		if errors.Is(context.Cause(ctx), errAttemptTimeout) {
			return newError(TimeoutError, fmt.Sprintf("request exceeded timeout of %v", cfg.Timeout), err, cfg, nil)
		}
		return newError(CancelError, "request canceled", err, cfg, nil)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(TimeoutError, "request timed out", err, cfg, nil)
	}
	return newError(TransportError, "request execution failed", err, cfg, nil)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
