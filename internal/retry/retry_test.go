package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	retries := 0
	p := Policy{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond}

	started := time.Now()
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(attempt int, wait time.Duration, err error) {
		retries++
	})
	elapsed := time.Since(started)

	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if retries != 2 {
		t.Fatalf("expected 2 retry callbacks, got %d", retries)
	}
	// Waits of 5ms then 10ms between attempts.
	if elapsed < 15*time.Millisecond {
		t.Fatalf("elapsed %v does not reflect backoff waits", elapsed)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("still down")
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	err := p.Do(context.Background(), func() error {
		calls++
		return wantErr
	}, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour}
	err := p.Do(ctx, func() error {
		return errors.New("transient")
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffDoubles(t *testing.T) {
	p := Default()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}
