package gaxios

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry policy defaults.
const (
	DefaultMaxRetries           = 3
	DefaultNoResponseRetries    = 2
	DefaultRetryDelay           = 100 * time.Millisecond
	DefaultRetryDelayMultiplier = 2.0
)

// defaultRetryableMethods are the idempotent verbs retried out of the box.
// POST and PATCH are excluded since they are not idempotent.
var defaultRetryableMethods = []string{"GET", "HEAD", "PUT", "OPTIONS", "DELETE"}

// defaultStatusCodeRanges are the inclusive status ranges retried out of
// the box: informational, too-many-requests and server errors.
var defaultStatusCodeRanges = [][2]int{{100, 199}, {408, 408}, {429, 429}, {500, 599}}

// RetryConfig is the retry policy and state carried across the attempts of
// one logical request. The zero value of each field selects its default.
type RetryConfig struct {
	// MaxRetries bounds re-dispatches for failures that produced an HTTP
	// response. Default 3.
	MaxRetries int
	// NoResponseRetries bounds re-dispatches for failures with no HTTP
	// response at all, e.g. connection errors. Default 2.
	NoResponseRetries int
	// RetryDelay is the base backoff delay. Default 100ms.
	RetryDelay time.Duration
	// RetryDelayMultiplier grows the delay exponentially. Default 2.
	RetryDelayMultiplier float64
	// MaxRetryDelay caps a single backoff delay. 0 means uncapped.
	MaxRetryDelay time.Duration
	// TotalTimeout is the deadline across all attempts. 0 means unbounded.
	// A computed delay never sleeps past it: the delay is shortened to
	// exactly the remaining budget.
	TotalTimeout time.Duration
	// RetryableMethods replaces the default idempotent-verb list.
	RetryableMethods []string
	// StatusCodeRanges replaces the default inclusive status ranges.
	StatusCodeRanges [][2]int
	// ShouldRetry can veto (but not force) a retry the built-in rules
	// would allow. Its error counts as a veto.
	ShouldRetry func(ctx context.Context, err *Error) (bool, error)
	// Backoff overrides delay computation entirely. It receives the
	// current attempt number (0 before the first retry).
	Backoff func(ctx context.Context, attempt int) (time.Duration, error)

	// CurrentAttempt counts re-dispatches of this logical request. It
	// increases strictly by one per retry and is never decremented.
	CurrentAttempt int

	// firstRequestTime is captured on the first attempt and anchors the
	// TotalTimeout budget.
	firstRequestTime time.Time
	// delays produces the deterministic exponential delay sequence.
	delays *backoff.ExponentialBackOff
}

// mergeRetryConfig merges a per-call policy over an instance default
// key-by-key, returning an owned copy so retry state never leaks between
// logical requests.
func mergeRetryConfig(defaults, opts *RetryConfig) *RetryConfig {
	if defaults == nil && opts == nil {
		return nil
	}
	merged := &RetryConfig{}
	if defaults != nil {
		*merged = *defaults
		merged.firstRequestTime = time.Time{}
		merged.delays = nil
		merged.CurrentAttempt = 0
		if defaults.RetryableMethods != nil {
			merged.RetryableMethods = append([]string(nil), defaults.RetryableMethods...)
		}
		if defaults.StatusCodeRanges != nil {
			merged.StatusCodeRanges = append([][2]int(nil), defaults.StatusCodeRanges...)
		}
	}
	if opts != nil {
		if opts.MaxRetries != 0 {
			merged.MaxRetries = opts.MaxRetries
		}
		if opts.NoResponseRetries != 0 {
			merged.NoResponseRetries = opts.NoResponseRetries
		}
		if opts.RetryDelay != 0 {
			merged.RetryDelay = opts.RetryDelay
		}
		if opts.RetryDelayMultiplier != 0 {
			merged.RetryDelayMultiplier = opts.RetryDelayMultiplier
		}
		if opts.MaxRetryDelay != 0 {
			merged.MaxRetryDelay = opts.MaxRetryDelay
		}
		if opts.TotalTimeout != 0 {
			merged.TotalTimeout = opts.TotalTimeout
		}
		if opts.RetryableMethods != nil {
			merged.RetryableMethods = append([]string(nil), opts.RetryableMethods...)
		}
		if opts.StatusCodeRanges != nil {
			merged.StatusCodeRanges = append([][2]int(nil), opts.StatusCodeRanges...)
		}
		if opts.ShouldRetry != nil {
			merged.ShouldRetry = opts.ShouldRetry
		}
		if opts.Backoff != nil {
			merged.Backoff = opts.Backoff
		}
	}
	return merged
}

func (rc *RetryConfig) maxRetries() int {
	if rc.MaxRetries > 0 {
		return rc.MaxRetries
	}
	return DefaultMaxRetries
}

func (rc *RetryConfig) noResponseRetries() int {
	if rc.NoResponseRetries > 0 {
		return rc.NoResponseRetries
	}
	return DefaultNoResponseRetries
}

func (rc *RetryConfig) retryableMethods() []string {
	if rc.RetryableMethods != nil {
		return rc.RetryableMethods
	}
	return defaultRetryableMethods
}

func (rc *RetryConfig) statusCodeRanges() [][2]int {
	if rc.StatusCodeRanges != nil {
		return rc.StatusCodeRanges
	}
	return defaultStatusCodeRanges
}

// evaluate classifies a failed attempt and decides whether and when to
// re-dispatch. It returns the delay to sleep before the next attempt.
// Callers must increment CurrentAttempt after an approved retry.
func (rc *RetryConfig) evaluate(ctx context.Context, method string, gerr *Error) (time.Duration, bool, error) {
	if !rc.eligible(method, gerr) {
		return 0, false, nil
	}

	if rc.ShouldRetry != nil {
		ok, err := rc.ShouldRetry(ctx, gerr)
		if err != nil || !ok {
			return 0, false, err
		}
	}

	delay, err := rc.nextDelay(ctx, gerr)
	if err != nil {
		return 0, false, err
	}

	if rc.TotalTimeout > 0 {
		remaining := rc.TotalTimeout - time.Since(rc.firstRequestTime)
		if remaining <= 0 {
			return 0, false, nil
		}
		// Never sleep past the deadline.
		if delay > remaining {
			delay = remaining
		}
	}
	return delay, true, nil
}

// eligible applies the built-in classification rules: cancellation is
// never retried, responseless failures burn the no-response budget, and
// failures with a response must match both method and status rules.
func (rc *RetryConfig) eligible(method string, gerr *Error) bool {
	switch gerr.Type() {
	case CancelError, ValidationError:
		return false
	}

	if gerr.Status == 0 {
		return rc.CurrentAttempt < rc.noResponseRetries()
	}

	if rc.CurrentAttempt >= rc.maxRetries() {
		return false
	}
	methodOK := false
	for _, m := range rc.retryableMethods() {
		if strings.EqualFold(m, method) {
			methodOK = true
			break
		}
	}
	if !methodOK {
		return false
	}
	for _, r := range rc.statusCodeRanges() {
		if gerr.Status >= r[0] && gerr.Status <= r[1] {
			return true
		}
	}
	return false
}

// nextDelay computes the backoff before the next attempt: a caller
// supplied function when present, otherwise the deterministic exponential
// sequence retryDelay * multiplier^attempt capped at MaxRetryDelay. A
// Retry-After response header raises the floor of the computed delay.
func (rc *RetryConfig) nextDelay(ctx context.Context, gerr *Error) (time.Duration, error) {
	var delay time.Duration
	if rc.Backoff != nil {
		d, err := rc.Backoff(ctx, rc.CurrentAttempt)
		if err != nil {
			return 0, err
		}
		delay = d
	} else {
		if rc.delays == nil {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = rc.RetryDelay
			if b.InitialInterval <= 0 {
				b.InitialInterval = DefaultRetryDelay
			}
			b.Multiplier = rc.RetryDelayMultiplier
			if b.Multiplier <= 0 {
				b.Multiplier = DefaultRetryDelayMultiplier
			}
			b.RandomizationFactor = 0 // deterministic, jitter-free
			b.MaxElapsedTime = 0      // the TotalTimeout budget is enforced here
			if rc.MaxRetryDelay > 0 {
				b.MaxInterval = rc.MaxRetryDelay
			} else {
				b.MaxInterval = time.Duration(math.MaxInt64)
			}
			b.Reset()
			rc.delays = b
		}
		delay = rc.delays.NextBackOff()
	}

	if gerr.Response != nil {
		if ra := parseRetryAfter(gerr.Response.Header.Get("Retry-After")); ra > delay {
			delay = ra
			if rc.MaxRetryDelay > 0 && delay > rc.MaxRetryDelay {
				delay = rc.MaxRetryDelay
			}
		}
	}
	return delay, nil
}

// parseRetryAfter parses a Retry-After header value in either seconds or
// HTTP-date format. It returns 0 when the value is absent or unparseable.
func parseRetryAfter(val string) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil && secs >= 0 {
		return time.Duration(math.Ceil(secs)) * time.Second
	}
	for _, layout := range []string{time.RFC1123, time.RFC850, time.ANSIC} {
		if t, err := time.Parse(layout, val); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
			return 0
		}
	}
	return 0
}
