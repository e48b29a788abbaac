// Package ratelimit provides per-client admission control for the document
// pipeline: a sliding-window request counter plus a concurrent in-flight cap.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/right-flow/docguard/internal/errors"
)

// Denial reasons reported in a Decision.
const (
	ReasonRateLimited         = errors.CodeRateLimited
	ReasonConcurrencyExceeded = errors.CodeConcurrencyExceeded
)

// Decision is the single result type for admission checks. Denials are data,
// not errors: callers back off or queue based on Reason and RetryAfter.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// Err converts a denial into a typed admission error for callers that
// propagate failures instead of consuming decisions. Allowed decisions
// return nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return errors.NewAdmissionError(d.Reason, "request rejected by rate limiter").
		WithContext("retryAfterMs", d.RetryAfter.Milliseconds())
}

// clientBudget tracks one client's recent requests and in-flight count.
type clientBudget struct {
	timestamps []time.Time // Request times inside the sliding window
	inFlight   int         // Currently executing requests
}

// Limiter implements sliding-window rate limiting with a per-client
// concurrency cap. All methods are safe for concurrent use.
type Limiter struct {
	maxRequests   int
	window        time.Duration
	maxConcurrent int

	mu      sync.Mutex
	clients map[string]*clientBudget

	now func() time.Time // Injectable clock for tests
}

// Config carries the limiter options from the configuration surface.
type Config struct {
	MaxRequests   int
	Window        time.Duration
	MaxConcurrent int
}

// New creates a Limiter. Invalid configuration is programmer misuse and is
// rejected with a config error rather than silently defaulted.
func New(cfg Config) (*Limiter, error) {
	if cfg.MaxRequests <= 0 || cfg.Window <= 0 || cfg.MaxConcurrent <= 0 {
		return nil, errors.NewConfigError("INVALID_CONFIG",
			fmt.Sprintf("rate limiter options must be positive: maxRequests=%d window=%v maxConcurrent=%d",
				cfg.MaxRequests, cfg.Window, cfg.MaxConcurrent))
	}

	return &Limiter{
		maxRequests:   cfg.MaxRequests,
		window:        cfg.Window,
		maxConcurrent: cfg.MaxConcurrent,
		clients:       make(map[string]*clientBudget),
		now:           time.Now,
	}, nil
}

// Check admits or denies one request attempt for clientID. An allowed
// decision counts the request in the window and acquires an in-flight slot;
// the caller must pair it with Release.
func (l *Limiter) Check(clientID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	budget, ok := l.clients[clientID]
	if !ok {
		budget = &clientBudget{timestamps: make([]time.Time, 0, l.maxRequests)}
		l.clients[clientID] = budget
	}

	l.pruneLocked(budget, now)

	if len(budget.timestamps) >= l.maxRequests {
		return Decision{
			Allowed:    false,
			Reason:     ReasonRateLimited,
			RetryAfter: l.retryAfterLocked(budget, now),
		}
	}

	if budget.inFlight >= l.maxConcurrent {
		// Concurrency pressure clears as soon as a request finishes, so the
		// hint is a short poll interval rather than a window-derived wait.
		return Decision{
			Allowed:    false,
			Reason:     ReasonConcurrencyExceeded,
			RetryAfter: 100 * time.Millisecond,
		}
	}

	budget.timestamps = append(budget.timestamps, now)
	budget.inFlight++

	return Decision{Allowed: true}
}

// Release ends an in-flight request for clientID. Releasing an unknown or
// idle client is a no-op; the in-flight count never goes negative.
func (l *Limiter) Release(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	budget, ok := l.clients[clientID]
	if !ok {
		return
	}

	if budget.inFlight > 0 {
		budget.inFlight--
	}

	// Evict fully idle clients whose window has drained so the map does not
	// grow with one entry per client ever seen.
	l.pruneLocked(budget, l.now())
	if budget.inFlight == 0 && len(budget.timestamps) == 0 {
		delete(l.clients, clientID)
	}
}

// CurrentCount returns the number of requests inside clientID's window.
func (l *Limiter) CurrentCount(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	budget, ok := l.clients[clientID]
	if !ok {
		return 0
	}

	l.pruneLocked(budget, l.now())

	return len(budget.timestamps)
}

// InFlight returns clientID's current concurrent request count.
func (l *Limiter) InFlight(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if budget, ok := l.clients[clientID]; ok {
		return budget.inFlight
	}

	return 0
}

// Reset clears all client state.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.clients = make(map[string]*clientBudget)
}

// pruneLocked drops timestamps that fell out of the sliding window.
// Must be called with the mutex held.
func (l *Limiter) pruneLocked(budget *clientBudget, now time.Time) {
	cutoff := now.Add(-l.window)

	keep := 0
	for _, ts := range budget.timestamps {
		if ts.After(cutoff) {
			break
		}
		keep++
	}

	if keep > 0 {
		budget.timestamps = append(budget.timestamps[:0], budget.timestamps[keep:]...)
	}
}

// retryAfterLocked computes when the oldest request exits the window.
// Must be called with the mutex held.
func (l *Limiter) retryAfterLocked(budget *clientBudget, now time.Time) time.Duration {
	if len(budget.timestamps) == 0 {
		return 0
	}

	expire := budget.timestamps[0].Add(l.window)
	if expire.After(now) {
		return expire.Sub(now)
	}

	return 0
}
