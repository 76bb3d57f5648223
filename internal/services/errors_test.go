package services_test

import (
	"errors"
	"fmt"
	"testing"

	"reelay/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	base := fmt.Errorf("connection refused")
	err := services.Wrap(services.ErrProvider, "publisher", "publish photo", "upload failed", base)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapDefaultsToProviderMarker(t *testing.T) {
	err := services.Wrap(nil, "compositor", "burn subtitles", "", nil)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected default provider marker, got %v", err)
	}
}

func TestWrapBuildsDetail(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "planner", "plan", "empty transcript", nil)
	want := "validation error: planner: plan: empty transcript"
	if err.Error() != want {
		t.Fatalf("unexpected message: got %q want %q", err.Error(), want)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", services.Wrap(services.ErrValidation, "planner", "plan", "no words", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "load", "missing token", nil), false},
		{"provider", services.Wrap(services.ErrProvider, "publisher", "publish", "status 500", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "dubbing", "poll", "wait exceeded", nil), true},
		{"plain", errors.New("boom"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
