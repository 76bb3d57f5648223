// Package dubbing submits hosted videos to HeyGen for voice translation and
// polls the job until the dubbed video is available.
package dubbing

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

const defaultBaseURL = "https://api.heygen.com/v2"

// Client drives the HeyGen video translate API.
type Client struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// New constructs a dubbing client. pollInterval and waitTimeout bound the
// status polling loop.
func New(apiKey string, pollInterval, waitTimeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Minute
	}
	return &Client{
		baseURL:      defaultBaseURL,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
		pollInterval: pollInterval,
		waitTimeout:  waitTimeout,
	}
}

// WithBaseURL overrides the API endpoint (for testing).
func (c *Client) WithBaseURL(base string) *Client {
	if base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	return c
}

// Dub submits the hosted video for translation into outputLanguage and waits
// for the dubbed result. It returns the URL of the dubbed video.
func (c *Client) Dub(ctx context.Context, videoURL, outputLanguage, title string) (string, error) {
	if strings.TrimSpace(videoURL) == "" {
		return "", services.Wrap(services.ErrValidation, "dubbing", "dub", "empty video URL", nil)
	}
	if strings.TrimSpace(outputLanguage) == "" {
		return "", services.Wrap(services.ErrValidation, "dubbing", "dub", "empty output language", nil)
	}
	if title == "" {
		title = "reelay dub"
	}

	jobID, err := c.submit(ctx, videoURL, outputLanguage, title)
	if err != nil {
		return "", err
	}
	c.logger.Info("dubbing job submitted", "job_id", jobID, "language", outputLanguage)
	return c.wait(ctx, jobID)
}

func (c *Client) submit(ctx context.Context, videoURL, outputLanguage, title string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"video_url":       videoURL,
		"output_language": outputLanguage,
		"title":           title,
	})
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "dubbing", "submit", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/video_translate", bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "dubbing", "submit", "build request", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var decoded struct {
		Data struct {
			VideoTranslateID string `json:"video_translate_id"`
		} `json:"data"`
	}
	if err := c.do(req, &decoded); err != nil {
		return "", services.Wrap(services.ErrProvider, "dubbing", "submit", "", err)
	}
	if decoded.Data.VideoTranslateID == "" {
		return "", services.Wrap(services.ErrProvider, "dubbing", "submit", "response carries no job id", nil)
	}
	return decoded.Data.VideoTranslateID, nil
}

func (c *Client) wait(ctx context.Context, jobID string) (string, error) {
	deadline := time.Now().Add(c.waitTimeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/video_translate/"+jobID, nil)
		if err != nil {
			return "", services.Wrap(services.ErrProvider, "dubbing", "wait", "build request", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)

		var decoded struct {
			Data struct {
				Status  string `json:"status"`
				URL     string `json:"url"`
				Message string `json:"message"`
			} `json:"data"`
		}
		if err := c.do(req, &decoded); err != nil {
			return "", services.Wrap(services.ErrProvider, "dubbing", "wait", "", err)
		}

		switch decoded.Data.Status {
		case "success":
			if decoded.Data.URL == "" {
				return "", services.Wrap(services.ErrProvider, "dubbing", "wait", "success status without video URL", nil)
			}
			c.logger.Info("dubbing finished", "job_id", jobID)
			return decoded.Data.URL, nil
		case "failed":
			message := decoded.Data.Message
			if message == "" {
				message = "unknown error"
			}
			return "", services.Wrap(services.ErrProvider, "dubbing", "wait", "job failed: "+message, nil)
		}

		if time.Now().After(deadline) {
			return "", services.Wrap(services.ErrTimeout, "dubbing", "wait",
				fmt.Sprintf("job %s not finished within %s", jobID, c.waitTimeout), nil)
		}
		select {
		case <-ctx.Done():
			return "", services.Wrap(services.ErrTimeout, "dubbing", "wait", "", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
