package gaxios

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/googleapis/gaxios/logger"
)

// Client holds instance-level defaults and the two interceptor chains.
// Concurrent requests against one client are fully independent except for
// the shared agent cache.
type Client struct {
	// Interceptors transform the outbound config and the terminal
	// response or error of each logical request.
	Interceptors Interceptors

	defaults *RequestConfig
	logger   logger.Logger
	limiter  *rate.Limiter
	agents   *agentCache
	env      *proxyEnv
	direct   http.RoundTripper

	logPayloads     bool
	maxPayloadBytes int

	totalRequests atomic.Uint64
	totalErrors   atomic.Uint64
	totalRetries  atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithDefaults sets the instance-level request defaults merged under every
// per-call config.
func WithDefaults(defaults *RequestConfig) Option {
	return func(c *Client) { c.defaults = defaults }
}

// WithLogger sets the structured logger. Without one, nothing is logged.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// WithRateLimit bounds the rate of dispatch attempts (including retries)
// with a token bucket.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// defaultMaxPayloadLogBytes caps logged payload previews.
const defaultMaxPayloadLogBytes = 1024

// WithPayloadLogging enables truncated request/response payload previews
// on log events. maxBytes <= 0 selects the default cap. Stream bodies are
// never previewed.
func WithPayloadLogging(maxBytes int) Option {
	return func(c *Client) {
		c.logPayloads = true
		if maxBytes <= 0 {
			maxBytes = defaultMaxPayloadLogBytes
		}
		c.maxPayloadBytes = maxBytes
	}
}

// New creates a Client. Proxy environment variables are read once here;
// explicit configuration always takes precedence over them.
func New(opts ...Option) *Client {
	c := &Client{
		logger: logger.NewNoop(),
		agents: newAgentCache(),
		env:    loadProxyEnv(),
		direct: baseTransport(),
	}
	c.Interceptors.Request = &Chain[*RequestConfig]{}
	c.Interceptors.Response = &Chain[*Response]{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns a snapshot of the client's cumulative counters.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		TotalRequests: c.totalRequests.Load(),
		TotalErrors:   c.totalErrors.Load(),
		TotalRetries:  c.totalRetries.Load(),
	}
}

// Request executes one logical request: preparation, the request
// interceptor chain (once per logical call, regardless of retries), the
// dispatch/retry loop, and the response interceptor chain (once per
// terminal outcome).
func (c *Client) Request(ctx context.Context, opts *RequestConfig) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.totalRequests.Add(1)

	cfg, err := c.prepare(opts)
	if err != nil {
		c.totalErrors.Add(1)
		return nil, err
	}

	var resp *Response
	cfg, err = c.Interceptors.Request.apply(ctx, cfg, nil)
	if err == nil {
		resp, err = c.run(ctx, cfg)
	} else {
		err = asError(err, cfg)
	}

	resp, err = c.Interceptors.Response.apply(ctx, resp, err)
	if err != nil {
		c.totalErrors.Add(1)
		return nil, err
	}
	return resp, nil
}

// run drives the attempt loop: dispatch, classify, consult the retry
// policy, sleep, re-dispatch. Preparation and request interceptors are not
// redone on retries; the loop re-enters the dispatcher with the same
// prepared config carrying updated retry state.
func (c *Client) run(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	rc := cfg.Retry
	if rc != nil && rc.firstRequestTime.IsZero() {
		rc.firstRequestTime = time.Now()
	}
	start := time.Now()
	attempts := 0

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, newError(CancelError, "rate limit wait canceled", err, cfg, nil)
			}
		}
		attempts++
		c.logAttempt(cfg, attempts)

		resp, err := c.dispatch(ctx, cfg)
		if err == nil {
			resp.Stats = Stats{ElapsedTime: time.Since(start), Attempts: attempts}
			c.logResponse(resp)
			return resp, nil
		}

		gerr := asError(err, cfg)
		if rc == nil {
			c.logFailure(cfg, gerr)
			return nil, gerr
		}

		delay, retry, verr := rc.evaluate(ctx, cfg.Method, gerr)
		if verr != nil || !retry {
			gerr.Attempt = rc.CurrentAttempt
			c.logFailure(cfg, gerr)
			return nil, gerr
		}
		rc.CurrentAttempt++
		c.totalRetries.Add(1)

		if cfg.OnRetryAttempt != nil {
			// Callback errors are not double-failures; the retry proceeds.
			if cbErr := cfg.OnRetryAttempt(ctx, gerr); cbErr != nil {
				c.logger.Warn().Err(cbErr).Msg("onRetryAttempt callback failed")
			}
		}
		c.logRetry(cfg, gerr, delay)

		select {
		case <-ctx.Done():
			return nil, newError(CancelError, "request canceled during backoff", ctx.Err(), cfg, nil)
		case <-time.After(delay):
		}
	}
}

func (c *Client) logAttempt(cfg *RequestConfig, attempt int) {
	event := c.logger.Info().
		Str("direction", "outbound").
		Str("method", cfg.Method).
		Str("url", cfg.URL).
		Int("attempt", attempt)
	if c.logPayloads && len(cfg.bodyBytes) > 0 {
		event = event.Bytes("payload", c.payloadPreview(cfg.bodyBytes))
	}
	event.Msg("http client request")
}

func (c *Client) logResponse(resp *Response) {
	event := c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int("attempts", resp.Stats.Attempts)
	if len(resp.Bytes) > 0 {
		event = event.Int("body_size", len(resp.Bytes))
		if c.logPayloads {
			event = event.Bytes("payload", c.payloadPreview(resp.Bytes))
		}
	}
	event.Msg("http client response")
}

func (c *Client) payloadPreview(payload []byte) []byte {
	if len(payload) > c.maxPayloadBytes {
		return payload[:c.maxPayloadBytes]
	}
	return payload
}

func (c *Client) logRetry(cfg *RequestConfig, gerr *Error, delay time.Duration) {
	c.logger.Warn().
		Str("method", cfg.Method).
		Str("url", cfg.URL).
		Str("error_type", string(gerr.Type())).
		Int("status", gerr.Status).
		Int("next_attempt", cfg.Retry.CurrentAttempt).
		Dur("delay", delay).
		Msg("retrying request")
}

func (c *Client) logFailure(cfg *RequestConfig, gerr *Error) {
	c.logger.Error().
		Str("method", cfg.Method).
		Str("url", cfg.URL).
		Str("error_type", string(gerr.Type())).
		Int("status", gerr.Status).
		Err(gerr).
		Msg("http client request failed")
}

var defaultClient = sync.OnceValue(func() *Client { return New() })

// Request executes a logical request on a shared default client.
func Request(ctx context.Context, opts *RequestConfig) (*Response, error) {
	return defaultClient().Request(ctx, opts)
}
