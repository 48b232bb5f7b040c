package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	result, attempts, err := Do(context.Background(), "noop", Policy{MaxRetries: 3}, func(attempt, total int) (string, error) {
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		return "ok", nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || attempts != 1 {
		t.Errorf("result=%q attempts=%d", result, attempts)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	var events []Event
	calls := 0

	start := time.Now()
	result, attempts, err := Do(context.Background(), "flaky", Policy{MaxRetries: 3, Delay: 10 * time.Millisecond},
		func(attempt, total int) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		},
		func(e Event) { events = append(events, e) })
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d", result)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(events) != 2 {
		t.Fatalf("onRetry fired %d times, want 2", len(events))
	}
	if events[0].Attempt != 1 || events[1].Attempt != 2 {
		t.Errorf("event attempts = %d,%d", events[0].Attempt, events[1].Attempt)
	}
	if events[0].TotalAttempts != 4 {
		t.Errorf("event total = %d", events[0].TotalAttempts)
	}
	// Linear backoff: 10ms*1 + 10ms*2.
	if elapsed < 30*time.Millisecond {
		t.Errorf("elapsed %v, expected at least 30ms of backoff", elapsed)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	var events []Event
	calls := 0

	_, attempts, err := Do(context.Background(), "doomed", Policy{MaxRetries: 1, Delay: time.Millisecond},
		func(attempt, total int) (struct{}, error) {
			calls++
			return struct{}{}, errors.New("always fails")
		},
		func(e Event) { events = append(events, e) })

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 || attempts != 2 {
		t.Errorf("calls=%d attempts=%d, want 2,2", calls, attempts)
	}
	if len(events) != 1 {
		t.Errorf("onRetry fired %d times, want 1", len(events))
	}
	if !strings.Contains(err.Error(), "always fails") {
		t.Errorf("error should wrap the last failure: %v", err)
	}
}

func TestDoZeroRetriesSingleAttempt(t *testing.T) {
	calls := 0
	_, attempts, err := Do(context.Background(), "once", Policy{}, func(attempt, total int) (struct{}, error) {
		calls++
		if total != 1 {
			t.Errorf("total = %d", total)
		}
		return struct{}{}, errors.New("nope")
	}, func(Event) { t.Error("onRetry must not fire") })

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("calls=%d attempts=%d", calls, attempts)
	}
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := Do(ctx, "cancelled", Policy{MaxRetries: 5, Delay: time.Second},
		func(attempt, total int) (struct{}, error) {
			return struct{}{}, errors.New("fail")
		}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
