package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("first Acquire error = %v", err)
	}
	if _, err := l.Acquire(ctx, "k", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Errorf("second Acquire error = %v, want ErrLockHeld", err)
	}
	if _, err := l.Acquire(ctx, "other", time.Minute); err != nil {
		t.Errorf("Acquire on other key error = %v", err)
	}

	release()
	if _, err := l.Acquire(ctx, "k", time.Minute); err != nil {
		t.Errorf("Acquire after release error = %v", err)
	}
}

func TestLocalLockerExpires(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return now }

	stale, err := l.Acquire(context.Background(), "k", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Second)
	if _, err := l.Acquire(context.Background(), "k", time.Second); err != nil {
		t.Fatalf("Acquire after ttl error = %v", err)
	}
	// a stale release must not free the new holder
	stale()
	if _, err := l.Acquire(context.Background(), "k", time.Second); !errors.Is(err, ErrLockHeld) {
		t.Errorf("Acquire after stale release error = %v, want ErrLockHeld", err)
	}
}
