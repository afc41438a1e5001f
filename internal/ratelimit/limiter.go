package ratelimit

import (
	"sync"
	"time"
)

// Category is the rate-limiting bucket an action belongs to.
type Category string

const (
	CategoryAPICalls    Category = "api_calls"
	CategoryScreenshots Category = "screenshots"
	CategoryInputEvents Category = "input_events"
)

type State int

const (
	Allowed State = iota
	Deferred
	Rejected
)

// Result is the outcome of a check. RetryAfter is set for Deferred,
// Reason for Rejected.
type Result struct {
	State      State
	RetryAfter time.Duration
	Reason     string
}

// WindowRule is a fixed-window counter: at most MaxCount permits per Window.
type WindowRule struct {
	MaxCount int
	Window   time.Duration
}

// IntervalRule enforces a minimum spacing between consecutive permits.
// MaxDefer caps how far ahead a caller may be asked to wait; a computed
// delay beyond it yields Rejected instead of Deferred. Zero means no cap.
type IntervalRule struct {
	MinInterval time.Duration
	MaxDefer    time.Duration
}

type Config struct {
	Windows   map[Category]WindowRule
	Intervals map[Category]IntervalRule
}

// DefaultConfig mirrors the agent loop's operating limits: 50 API calls
// per minute, one screenshot per second, input events spaced 50ms apart.
func DefaultConfig() Config {
	return Config{
		Windows: map[Category]WindowRule{
			CategoryAPICalls: {MaxCount: 50, Window: time.Minute},
		},
		Intervals: map[Category]IntervalRule{
			CategoryScreenshots: {MinInterval: time.Second},
			CategoryInputEvents: {MinInterval: 50 * time.Millisecond},
		},
	}
}

type windowState struct {
	rule        WindowRule
	windowStart time.Time
	count       int
}

type intervalState struct {
	rule IntervalRule
	last time.Time
}

// Limiter tracks per-category request counts. It never errors; every
// check returns one of Allowed, Deferred or Rejected. Checks for unknown
// categories are allowed unconditionally.
type Limiter struct {
	mu        sync.Mutex
	windows   map[Category]*windowState
	intervals map[Category]*intervalState
	now       func() time.Time
}

func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		windows:   make(map[Category]*windowState, len(cfg.Windows)),
		intervals: make(map[Category]*intervalState, len(cfg.Intervals)),
		now:       time.Now,
	}
	for cat, rule := range cfg.Windows {
		l.windows[cat] = &windowState{rule: rule}
	}
	for cat, rule := range cfg.Intervals {
		l.intervals[cat] = &intervalState{rule: rule}
	}
	return l
}

// Check records one permit for the category if allowed. On Deferred the
// permit is not consumed; the caller waits RetryAfter and checks again.
func (l *Limiter) Check(category Category) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if w, ok := l.windows[category]; ok {
		return w.check(now)
	}
	if iv, ok := l.intervals[category]; ok {
		return iv.check(now)
	}
	return Result{State: Allowed}
}

func (w *windowState) check(now time.Time) Result {
	if w.windowStart.IsZero() || !now.Before(w.windowStart.Add(w.rule.Window)) {
		w.windowStart = now
		w.count = 0
	}
	if w.count < w.rule.MaxCount {
		w.count++
		return Result{State: Allowed}
	}
	remaining := w.windowStart.Add(w.rule.Window).Sub(now)
	return Result{State: Deferred, RetryAfter: remaining}
}

func (iv *intervalState) check(now time.Time) Result {
	if iv.last.IsZero() || now.Sub(iv.last) >= iv.rule.MinInterval {
		iv.last = now
		return Result{State: Allowed}
	}
	remaining := iv.rule.MinInterval - now.Sub(iv.last)
	if iv.rule.MaxDefer > 0 && remaining > iv.rule.MaxDefer {
		return Result{State: Rejected, Reason: "minimum interval exceeds retry budget"}
	}
	return Result{State: Deferred, RetryAfter: remaining}
}
