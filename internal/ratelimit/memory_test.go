package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_AllowsUpToMax(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "key-a")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed, remaining=%d", i, res.Remaining)
		}
	}

	res, err := l.Allow(ctx, "key-a")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if res.Allowed {
		t.Error("4th request within the window should be rejected")
	}
	if res.RetryAfterS <= 0 {
		t.Errorf("RetryAfterS = %d, want > 0", res.RetryAfterS)
	}
	if res.Limit != 3 {
		t.Errorf("Limit = %d, want 3", res.Limit)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "key-a"); !res.Allowed {
		t.Fatal("first request for key-a should be allowed")
	}
	if res, _ := l.Allow(ctx, "key-b"); !res.Allowed {
		t.Fatal("first request for key-b should be allowed, independent of key-a")
	}
	if res, _ := l.Allow(ctx, "key-a"); res.Allowed {
		t.Error("second request for key-a should be rejected")
	}
}

func TestMemoryLimiter_WindowExpires(t *testing.T) {
	l := NewMemoryLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "key-a"); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res, _ := l.Allow(ctx, "key-a"); res.Allowed {
		t.Fatal("second immediate request should be rejected")
	}

	time.Sleep(30 * time.Millisecond)

	res, err := l.Allow(ctx, "key-a")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !res.Allowed {
		t.Error("request after the window elapsed should be allowed")
	}
}

func TestMemoryLimiter_RemainingCountsDown(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	ctx := context.Background()

	res1, _ := l.Allow(ctx, "key-a")
	if res1.Remaining != 1 {
		t.Errorf("Remaining after 1st request = %d, want 1", res1.Remaining)
	}
	res2, _ := l.Allow(ctx, "key-a")
	if res2.Remaining != 0 {
		t.Errorf("Remaining after 2nd request = %d, want 0", res2.Remaining)
	}
}
