package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelay/internal/services"
)

const defaultDeepLBaseURL = "https://api-free.deepl.com/v2"

// DeepL is the primary caption translation provider.
type DeepL struct {
	baseURL    string
	apiKey     string
	targetLang string
	http       *http.Client
	logger     *slog.Logger
}

// NewDeepL constructs a DeepL client. targetLang is a DeepL target language
// code such as "ES" or "EN-US".
func NewDeepL(apiKey, targetLang string, logger *slog.Logger) *DeepL {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeepL{
		baseURL:    defaultDeepLBaseURL,
		apiKey:     apiKey,
		targetLang: strings.ToUpper(strings.TrimSpace(targetLang)),
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the API endpoint (for testing).
func (d *DeepL) WithBaseURL(base string) *DeepL {
	if base != "" {
		d.baseURL = strings.TrimRight(base, "/")
	}
	return d
}

// Translate implements Provider.
func (d *DeepL) Translate(ctx context.Context, text string) (string, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", d.targetLang)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "translate", "deepl", "build request", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "translate", "deepl", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "translate", "deepl", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrProvider, "translate", "deepl",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}

	var decoded struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", services.Wrap(services.ErrProvider, "translate", "deepl", "parse response", err)
	}
	if len(decoded.Translations) == 0 {
		return "", services.Wrap(services.ErrProvider, "translate", "deepl", "empty translations array", nil)
	}
	return decoded.Translations[0].Text, nil
}
