package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{Attempts: 5, Wait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond}
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{failures: 1, want: 100 * time.Millisecond},
		{failures: 2, want: 200 * time.Millisecond},
		{failures: 3, want: 300 * time.Millisecond},
		{failures: 6, want: 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.delay(tt.failures); got != tt.want {
			t.Fatalf("delay(%d): got %v, want %v", tt.failures, got, tt.want)
		}
	}
	if got := (RetryPolicy{}).delay(3); got != 0 {
		t.Fatalf("zero policy should not wait, got %v", got)
	}
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), RetryPolicy{Attempts: 3}, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset")
		}
		return "vec", nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != "vec" || calls != 3 {
		t.Fatalf("unexpected result %q after %d calls", got, calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{Attempts: 2}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("upstream down")
	})
	if err == nil || err.Error() != "upstream down" {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryZeroPolicyCallsOnce(t *testing.T) {
	calls := 0
	err := RetryErr(context.Background(), RetryPolicy{}, func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	base := errors.New("bad request")
	calls := 0
	err := RetryErr(context.Background(), RetryPolicy{Attempts: 5}, func(context.Context) error {
		calls++
		return Permanent(base)
	})
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}
}

func TestRetryStopsOnContextError(t *testing.T) {
	calls := 0
	err := RetryErr(context.Background(), RetryPolicy{Attempts: 5}, func(context.Context) error {
		calls++
		if calls == 2 {
			return context.DeadlineExceeded
		}
		return errors.New("transient")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Retry(ctx, DefaultRetry, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls, got %d", calls)
	}
}

func TestRetryCanceledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := RetryErr(ctx, RetryPolicy{Attempts: 3, Wait: time.Minute}, func(context.Context) error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("retry did not stop waiting when the context ended")
	}
}
