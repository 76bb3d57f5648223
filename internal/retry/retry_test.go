package retry_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"reelay/internal/retry"
	"reelay/internal/services"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	policy := retry.New(3, time.Millisecond, discard())
	err := policy.Do(t.Context(), "publish", func(context.Context) error {
		calls++
		if calls < 3 {
			return services.Wrap(services.ErrProvider, "publisher", "publish", "status 502", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := services.Wrap(services.ErrProvider, "convert", "wait", "status 500", nil)
	policy := retry.New(3, time.Millisecond, discard())
	err := policy.Do(t.Context(), "convert", func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected final provider error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	policy := retry.New(5, time.Millisecond, discard())
	err := policy.Do(t.Context(), "plan", func(context.Context) error {
		calls++
		return services.Wrap(services.ErrValidation, "subtitle", "plan", "no units", nil)
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("validation errors must not be retried, got %d attempts", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	policy := retry.New(10, 50*time.Millisecond, discard())
	calls := 0
	errs := make(chan error, 1)
	go func() {
		errs <- policy.Do(ctx, "dub", func(context.Context) error {
			calls++
			return services.Wrap(services.ErrProvider, "dubbing", "wait", "status 503", nil)
		})
	}()
	cancel()
	select {
	case err := <-errs:
		if !errors.Is(err, context.Canceled) && !errors.Is(err, services.ErrProvider) {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoValue(t *testing.T) {
	calls := 0
	policy := retry.New(2, time.Millisecond, discard())
	got, err := retry.DoValue(t.Context(), policy, "translate", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", services.Wrap(services.ErrProvider, "translate", "deepl", "status 429", nil)
		}
		return "hola", nil
	})
	if err != nil || got != "hola" {
		t.Fatalf("DoValue = %q, %v", got, err)
	}
}

func TestNewClampsAttempts(t *testing.T) {
	policy := retry.New(0, time.Millisecond, discard())
	calls := 0
	policy.Do(t.Context(), "x", func(context.Context) error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}
