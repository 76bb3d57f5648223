// Package translate produces translated captions via DeepL with an OpenAI
// chat-completion fallback, and enforces the publisher caption length limit.
package translate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Provider translates a single text into the target language.
type Provider interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Translator tries the primary provider and falls back to the secondary when
// the primary fails. A nil fallback disables the second path.
type Translator struct {
	primary  Provider
	fallback Provider
	logger   *slog.Logger
}

// NewTranslator wires the providers.
func NewTranslator(primary, fallback Provider, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{primary: primary, fallback: fallback, logger: logger}
}

// Translate returns the translated text. Empty input short-circuits to empty
// output without a provider call.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	translated, err := t.primary.Translate(ctx, text)
	if err == nil {
		return translated, nil
	}
	if t.fallback == nil {
		return "", err
	}

	t.logger.Warn("primary translation failed, using fallback", "error", err)
	translated, fallbackErr := t.fallback.Translate(ctx, text)
	if fallbackErr != nil {
		return "", errors.Join(err, fallbackErr)
	}
	return translated, nil
}

// ellipsis replaces the tail of captions that exceed the length limit.
const ellipsis = "..."

// Truncate enforces the caption length limit: captions longer than limit are
// cut to exactly limit runes, the last three being the ellipsis marker.
// Captions within the limit pass through unchanged. A non-positive limit
// disables truncation.
func Truncate(caption string, limit int) string {
	if limit <= 0 {
		return caption
	}
	runes := []rune(caption)
	if len(runes) <= limit {
		return caption
	}
	if limit <= len(ellipsis) {
		return strings.Repeat(".", limit)
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}
