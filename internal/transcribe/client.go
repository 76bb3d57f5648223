// Package transcribe retrieves timed speech transcripts from the OpenAI
// audio transcription API.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"reelay/internal/services"
	"reelay/internal/subtitle"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"
)

// Client calls the transcription endpoint with multipart audio uploads.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithModel overrides the transcription model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// New constructs a transcription client.
func New(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	client := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   defaultModel,
		http:    &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Transcript is the provider response mapped to subtitle units. Segments are
// always present; Words is populated only when word granularity was
// requested and the provider returned word timestamps.
type Transcript struct {
	Language string
	Segments []subtitle.Unit
	Words    []subtitle.Unit
}

// Units returns the units matching the requested granularity, falling back
// to segments when no word timestamps are available.
func (t Transcript) Units(granularity subtitle.Granularity) ([]subtitle.Unit, subtitle.Granularity) {
	if granularity == subtitle.GranularityWord && len(t.Words) > 0 {
		return t.Words, subtitle.GranularityWord
	}
	return t.Segments, subtitle.GranularitySegment
}

type verboseResponse struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Words []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Word  string  `json:"word"`
	} `json:"words"`
}

// Transcribe uploads audio bytes and returns the timed transcript. The
// language is an ISO-639-1 code; granularity selects segment- or word-level
// timestamps.
func (c *Client) Transcribe(ctx context.Context, audio []byte, language string, granularity subtitle.Granularity) (Transcript, error) {
	if len(audio) == 0 {
		return Transcript{}, services.Wrap(services.ErrValidation, "transcribe", "transcribe", "empty audio payload", nil)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "audio.mp3")
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "build request", "", err)
	}
	if _, err := part.Write(audio); err != nil {
		return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "build request", "", err)
	}
	fields := map[string]string{
		"model":           c.model,
		"response_format": "verbose_json",
	}
	if language != "" {
		fields["language"] = language
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "build request", "", err)
		}
	}
	if granularity == subtitle.GranularityWord {
		if err := writer.WriteField("timestamp_granularities[]", "word"); err != nil {
			return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "build request", "", err)
		}
	}
	if err := writer.Close(); err != nil {
		return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "build request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "build request", "", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Info("transcribing audio", "bytes", len(audio), "language", language, "granularity", string(granularity))
	resp, err := c.http.Do(req)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "transcribe", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "transcribe", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "transcribe",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}

	var decoded verboseResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Transcript{}, services.Wrap(services.ErrProvider, "transcribe", "transcribe", "parse response", err)
	}

	transcript := Transcript{Language: decoded.Language}
	for _, segment := range decoded.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, subtitle.Unit{Start: segment.Start, End: segment.End, Text: text})
	}
	for _, word := range decoded.Words {
		text := strings.TrimSpace(word.Word)
		if text == "" {
			continue
		}
		transcript.Words = append(transcript.Words, subtitle.Unit{Start: word.Start, End: word.End, Text: text})
	}
	if len(transcript.Segments) == 0 && len(transcript.Words) == 0 {
		return Transcript{}, services.Wrap(services.ErrValidation, "transcribe", "transcribe", "transcript contains no speech", nil)
	}

	c.logger.Info("transcription complete",
		"segments", len(transcript.Segments),
		"words", len(transcript.Words),
		"detected_language", transcript.Language)
	return transcript, nil
}
