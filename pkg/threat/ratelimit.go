package threat

import (
	"fmt"
	"sync"
	"time"

	"github.com/quillmind/governd/pkg/alert"
	"github.com/quillmind/governd/pkg/model"
)

const (
	// DefaultMaxAttempts failed attempts within the window lock the
	// identifier out.
	DefaultMaxAttempts = 5
	// DefaultWindow is the sliding lockout window.
	DefaultWindow = 15 * time.Minute
)

type attemptState struct {
	count   int
	lastAt  time.Time
	flagged bool
}

// RateLimitResult is the outcome of a limit check.
type RateLimitResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// RateLimiter counts failed attempts per identifier inside a sliding
// window. A counter resets once the window has elapsed since the last
// attempt; a successful attempt clears it immediately.
type RateLimiter struct {
	alerts      *alert.Log
	maxAttempts int
	window      time.Duration

	mx       sync.Mutex
	attempts map[string]*attemptState
	now      func() time.Time
}

func NewRateLimiter(alerts *alert.Log) *RateLimiter {
	return &RateLimiter{
		alerts:      alerts,
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
		attempts:    map[string]*attemptState{},
		now:         time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	r.now = now
	return r
}

// WithLimits overrides the attempt threshold and window.
func (r *RateLimiter) WithLimits(maxAttempts int, window time.Duration) *RateLimiter {
	r.maxAttempts = maxAttempts
	r.window = window
	return r
}

// RecordFailedAttempt bumps the counter for identifier. Crossing the
// threshold emits a high-severity finding once per lockout.
func (r *RateLimiter) RecordFailedAttempt(identifier string) {
	r.mx.Lock()
	now := r.now()
	st, ok := r.attempts[identifier]
	if !ok || now.Sub(st.lastAt) > r.window {
		st = &attemptState{}
		r.attempts[identifier] = st
	}
	st.count++
	st.lastAt = now
	emit := st.count >= r.maxAttempts && !st.flagged
	if emit {
		st.flagged = true
	}
	count := st.count
	r.mx.Unlock()

	if emit && r.alerts != nil {
		r.alerts.Append(alert.NewFinding(model.FindingRateLimited, model.SeverityHigh,
			fmt.Sprintf("identifier %q exceeded %d failed attempts", identifier, r.maxAttempts),
			map[string]any{"identifier": identifier, "attempts": count}))
	}
}

// RecordSuccessfulAttempt clears the identifier's counter immediately.
func (r *RateLimiter) RecordSuccessfulAttempt(identifier string) {
	r.mx.Lock()
	delete(r.attempts, identifier)
	r.mx.Unlock()
}

// CheckRateLimit reports whether identifier may proceed.
func (r *RateLimiter) CheckRateLimit(identifier string) RateLimitResult {
	r.mx.Lock()
	defer r.mx.Unlock()
	st, ok := r.attempts[identifier]
	if !ok {
		return RateLimitResult{Allowed: true}
	}
	if r.now().Sub(st.lastAt) > r.window {
		delete(r.attempts, identifier)
		return RateLimitResult{Allowed: true}
	}
	if st.count >= r.maxAttempts {
		return RateLimitResult{
			Allowed: false,
			Reason:  fmt.Sprintf("too many failed attempts, retry after %s", r.window),
		}
	}
	return RateLimitResult{Allowed: true}
}
