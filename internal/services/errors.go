package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProvider marks failures of an external provider: non-2xx HTTP
	// responses, non-zero process exit codes, malformed response bodies.
	ErrProvider = errors.New("provider error")
	// ErrValidation marks unusable input: empty transcripts, zero usable
	// words, missing required values.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or contradictory configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTimeout marks a provider-imposed wait that was exceeded.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrProvider
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error is worth retrying. Validation and
// configuration failures are deterministic and never retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration) {
		return false
	}
	return true
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
