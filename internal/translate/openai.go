package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reelay/internal/services"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAI is the fallback caption translation provider, driven through the
// chat completions endpoint.
type OpenAI struct {
	baseURL    string
	apiKey     string
	model      string
	targetLang string
	http       *http.Client
	logger     *slog.Logger
}

// NewOpenAI constructs the fallback translator. targetLang is a language
// name or ISO code embedded in the prompt.
func NewOpenAI(apiKey, targetLang string, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		baseURL:    defaultOpenAIBaseURL,
		apiKey:     apiKey,
		model:      defaultOpenAIModel,
		targetLang: targetLang,
		http:       &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the API endpoint (for testing).
func (o *OpenAI) WithBaseURL(base string) *OpenAI {
	if base != "" {
		o.baseURL = strings.TrimRight(base, "/")
	}
	return o
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Translate implements Provider.
func (o *OpenAI) Translate(ctx context.Context, text string) (string, error) {
	request := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"Translate the user's social media caption into %s. Keep hashtags, mentions, and emoji unchanged. Reply with the translation only.",
					o.targetLang),
			},
			{Role: "user", Content: text},
		},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "translate", "openai", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "translate", "openai", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "translate", "openai", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "translate", "openai", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrProvider, "translate", "openai",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", services.Wrap(services.ErrProvider, "translate", "openai", "parse response", err)
	}
	if len(decoded.Choices) == 0 {
		return "", services.Wrap(services.ErrProvider, "translate", "openai", "empty choices array", nil)
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
