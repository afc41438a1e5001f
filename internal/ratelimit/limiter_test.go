package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := NewLimiter(cfg)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestWindowLimit_AllowsUpToMax(t *testing.T) {
	l, _ := newTestLimiter(Config{
		Windows: map[Category]WindowRule{
			CategoryAPICalls: {MaxCount: 50, Window: time.Minute},
		},
	})

	for i := 0; i < 50; i++ {
		res := l.Check(CategoryAPICalls)
		if res.State != Allowed {
			t.Fatalf("check %d: expected Allowed, got %v", i+1, res.State)
		}
	}

	res := l.Check(CategoryAPICalls)
	if res.State != Deferred {
		t.Fatalf("51st check: expected Deferred, got %v", res.State)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Errorf("unexpected RetryAfter: %v", res.RetryAfter)
	}
}

func TestWindowLimit_ResetsAfterWindow(t *testing.T) {
	l, now := newTestLimiter(Config{
		Windows: map[Category]WindowRule{
			CategoryAPICalls: {MaxCount: 2, Window: time.Minute},
		},
	})

	l.Check(CategoryAPICalls)
	l.Check(CategoryAPICalls)
	if res := l.Check(CategoryAPICalls); res.State != Deferred {
		t.Fatalf("expected Deferred, got %v", res.State)
	}

	*now = now.Add(61 * time.Second)
	if res := l.Check(CategoryAPICalls); res.State != Allowed {
		t.Fatalf("after window elapsed: expected Allowed, got %v", res.State)
	}
}

func TestWindowLimit_DeferredDoesNotConsume(t *testing.T) {
	l, now := newTestLimiter(Config{
		Windows: map[Category]WindowRule{
			CategoryAPICalls: {MaxCount: 1, Window: time.Minute},
		},
	})

	l.Check(CategoryAPICalls)
	for i := 0; i < 5; i++ {
		l.Check(CategoryAPICalls)
	}

	*now = now.Add(time.Minute)
	if res := l.Check(CategoryAPICalls); res.State != Allowed {
		t.Fatalf("expected Allowed after reset, got %v", res.State)
	}
}

func TestIntervalThrottle(t *testing.T) {
	l, now := newTestLimiter(Config{
		Intervals: map[Category]IntervalRule{
			CategoryScreenshots: {MinInterval: time.Second},
		},
	})

	if res := l.Check(CategoryScreenshots); res.State != Allowed {
		t.Fatalf("first check: expected Allowed, got %v", res.State)
	}

	*now = now.Add(300 * time.Millisecond)
	res := l.Check(CategoryScreenshots)
	if res.State != Deferred {
		t.Fatalf("expected Deferred, got %v", res.State)
	}
	if res.RetryAfter != 700*time.Millisecond {
		t.Errorf("expected RetryAfter=700ms, got %v", res.RetryAfter)
	}

	*now = now.Add(res.RetryAfter)
	if res := l.Check(CategoryScreenshots); res.State != Allowed {
		t.Fatalf("after waiting out the delay: expected Allowed, got %v", res.State)
	}
}

func TestIntervalThrottle_RejectsBeyondMaxDefer(t *testing.T) {
	l, now := newTestLimiter(Config{
		Intervals: map[Category]IntervalRule{
			CategoryInputEvents: {MinInterval: 10 * time.Second, MaxDefer: time.Second},
		},
	})

	l.Check(CategoryInputEvents)
	*now = now.Add(time.Millisecond)
	res := l.Check(CategoryInputEvents)
	if res.State != Rejected {
		t.Fatalf("expected Rejected, got %v", res.State)
	}
	if res.Reason == "" {
		t.Error("expected a reason on Rejected")
	}
}

func TestUnknownCategoryAlwaysAllowed(t *testing.T) {
	l, _ := newTestLimiter(Config{})
	for i := 0; i < 100; i++ {
		if res := l.Check(Category("unconfigured")); res.State != Allowed {
			t.Fatalf("expected Allowed, got %v", res.State)
		}
	}
}
