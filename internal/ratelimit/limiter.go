package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a rate limit check. Remaining and ResetAt are
// surfaced to callers so the HTTP layer can emit quota headers.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter implements fixed-window counters keyed by (subject, operation).
// A window is created lazily on first use and reset wholesale once its
// deadline passes. Exceeding the limit never errors; the caller decides the
// user-visible consequence.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	cleanupInterval time.Duration
	lastCleanup     time.Time
}

// New constructs a limiter with the default stale-entry cleanup cadence.
func New() *Limiter {
	return &Limiter{
		windows:         make(map[string]*window),
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
	}
}

// NewWithClock is used by tests to control window expiry.
func NewWithClock(now func() time.Time) *Limiter {
	limiter := New()
	limiter.now = now
	limiter.lastCleanup = now()
	return limiter
}

func key(subject, operation string) string {
	if subject == "" {
		subject = "anonymous"
	}
	return subject + ":" + operation
}

// Check counts one call against the (subject, operation) window and reports
// whether it is admitted. Constant-time and non-blocking.
func (l *Limiter) Check(subject, operation string, limit int, windowDur time.Duration) Decision {
	if limit <= 0 || windowDur <= 0 {
		return Decision{Allowed: true, Remaining: -1}
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeCleanupLocked(now)

	k := key(subject, operation)
	w, ok := l.windows[k]
	if !ok || now.After(w.resetAt) {
		// Hard reset: the common case just overwrites the elapsed window.
		w = &window{resetAt: now.Add(windowDur)}
		l.windows[k] = w
	}

	if w.count >= limit {
		return Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: limit - w.count,
		ResetAt:   w.resetAt,
	}
}

// maybeCleanupLocked discards windows whose reset time has long passed so the
// map does not grow with one-shot subjects.
func (l *Limiter) maybeCleanupLocked(now time.Time) {
	if l.cleanupInterval <= 0 || now.Sub(l.lastCleanup) < l.cleanupInterval {
		return
	}
	for k, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, k)
		}
	}
	l.lastCleanup = now
}

// Len reports the number of live windows; used by tests and metrics.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
