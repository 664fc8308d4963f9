package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestLocalLockerExcludesConcurrentHolders(t *testing.T) {
	l := NewLocalLocker()

	release, errAcquire := l.Acquire(context.Background(), "billing:2026-01", time.Minute)
	if errAcquire != nil {
		t.Fatalf("acquire: %v", errAcquire)
	}
	if _, errSecond := l.Acquire(context.Background(), "billing:2026-01", time.Minute); !errors.Is(errSecond, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", errSecond)
	}
	if _, errOther := l.Acquire(context.Background(), "billing:2026-02", time.Minute); errOther != nil {
		t.Fatalf("other key should be free: %v", errOther)
	}

	release()
	release()
	if _, errAgain := l.Acquire(context.Background(), "billing:2026-01", time.Minute); errAgain != nil {
		t.Fatalf("acquire after release: %v", errAgain)
	}
}

func TestLocalLockerExpiresStaleHolders(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return now }

	staleRelease, errAcquire := l.Acquire(context.Background(), "k", time.Second)
	if errAcquire != nil {
		t.Fatalf("acquire: %v", errAcquire)
	}

	now = now.Add(2 * time.Second)
	if _, errAcquire = l.Acquire(context.Background(), "k", time.Minute); errAcquire != nil {
		t.Fatalf("expected expired lock to be reacquired, got %v", errAcquire)
	}

	// Releasing the stale handle must not drop the new holder.
	staleRelease()
	if _, errThird := l.Acquire(context.Background(), "k", time.Minute); !errors.Is(errThird, ErrNotAcquired) {
		t.Fatalf("expected lock still held, got %v", errThird)
	}
}

func TestLocalLockerRejectsEmptyKeyAndCancelledContext(t *testing.T) {
	l := NewLocalLocker()
	if _, err := l.Acquire(context.Background(), "  ", time.Minute); err == nil {
		t.Fatalf("expected error for empty key")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Acquire(ctx, "k", time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLocalLockerSingleWinnerUnderContention(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := NewLocalLocker()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(context.Background(), "billing:2026-04", time.Minute); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one holder, got %d", got)
	}
}
