package gaxios

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Interceptor is one entry in a chain: Resolved transforms the current
// value, Rejected observes the current error. A Rejected handler that
// returns a nil error swallows the failure and its value becomes the new
// chain value, mirroring promise-chain semantics.
type Interceptor[T any] struct {
	Resolved func(ctx context.Context, v T) (T, error)
	Rejected func(ctx context.Context, err error) (T, error)
}

// Chain is an ordered, mutable collection of interceptors. It is safe for
// concurrent use; handlers themselves run strictly sequentially.
type Chain[T any] struct {
	mu      sync.Mutex
	entries []chainEntry[T]
}

type chainEntry[T any] struct {
	h     Interceptor[T]
	inert bool
}

// Add appends a handler and returns its identifier. Identifiers are
// insertion indexes and stay stable for the lifetime of the chain; they
// are never reused even after Remove.
func (c *Chain[T]) Add(h Interceptor[T]) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, chainEntry[T]{h: h})
	return len(c.entries) - 1
}

// Remove marks the slot inert without shifting other identifiers. Unknown
// identifiers are ignored.
func (c *Chain[T]) Remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id >= 0 && id < len(c.entries) {
		c.entries[id] = chainEntry[T]{inert: true}
	}
}

// RemoveAll clears the chain. Handlers added afterwards restart the
// identifier sequence at 0.
func (c *Chain[T]) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

// apply runs the chain sequentially over the (value, error) pair. For each
// non-inert entry in insertion order the matching handler runs: Resolved
// while no error is pending, Rejected otherwise. Later handlers observe
// only the output of earlier ones.
func (c *Chain[T]) apply(ctx context.Context, v T, err error) (T, error) {
	c.mu.Lock()
	entries := slices.Clone(c.entries)
	c.mu.Unlock()

	for _, e := range entries {
		if e.inert {
			continue
		}
		if err == nil {
			if e.h.Resolved != nil {
				v, err = e.h.Resolved(ctx, v)
			}
		} else if e.h.Rejected != nil {
			v, err = e.h.Rejected(ctx, err)
		}
	}
	return v, err
}

// Interceptors groups the two chains of a client: one applied to the
// outbound config, one to the inbound response or terminal error.
type Interceptors struct {
	Request  *Chain[*RequestConfig]
	Response *Chain[*Response]
}

// HeaderXRequestID is the header stamped by NewTraceIDInterceptor.
const HeaderXRequestID = "X-Request-Id"

// NewTraceIDInterceptor returns a request interceptor that adds a fresh
// request ID header when none is present.
func NewTraceIDInterceptor() Interceptor[*RequestConfig] {
	return Interceptor[*RequestConfig]{
		Resolved: func(_ context.Context, cfg *RequestConfig) (*RequestConfig, error) {
			if cfg.Headers.Get(HeaderXRequestID) == "" {
				cfg.Headers.Set(HeaderXRequestID, uuid.NewString())
			}
			return cfg, nil
		},
	}
}
