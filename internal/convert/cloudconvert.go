// Package convert uploads raw video bytes to CloudConvert, transcodes them to
// an MP4 (H.264/AAC) and returns a hosted URL for the result.
package convert

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
)

const defaultBaseURL = "https://api.cloudconvert.com/v2"

// Client drives the CloudConvert job API.
type Client struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// New constructs a converter client. pollInterval and waitTimeout bound the
// job status polling loop.
func New(apiKey string, pollInterval, waitTimeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Minute
	}
	return &Client{
		baseURL:      defaultBaseURL,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 120 * time.Second},
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

type job struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Tasks  []task `json:"tasks"`
}

type task struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Result    *taskResult     `json:"-"`
	ResultRaw json.RawMessage `json:"result"`
}

type taskResult struct {
	Form *struct {
		URL        string            `json:"url"`
		Parameters map[string]string `json:"parameters"`
	} `json:"form"`
	Files []struct {
		URL string `json:"url"`
	} `json:"files"`
}

func (t *task) result() (*taskResult, error) {
	if t.Result != nil {
		return t.Result, nil
	}
	if len(t.ResultRaw) == 0 {
		return nil, fmt.Errorf("task %s has no result", t.Name)
	}
	var decoded taskResult
	if err := json.Unmarshal(t.ResultRaw, &decoded); err != nil {
		return nil, fmt.Errorf("parse task result: %w", err)
	}
	t.Result = &decoded
	return t.Result, nil
}

// ConvertToMP4URL uploads the video, converts it to MP4 with H.264 video and
// AAC audio, and returns the exported download URL.
func (c *Client) ConvertToMP4URL(ctx context.Context, video []byte, filename string) (string, error) {
	if len(video) == 0 {
		return "", services.Wrap(services.ErrValidation, "convert", "convert", "empty video payload", nil)
	}
	if filename == "" {
		filename = "video"
	}

	created, err := c.createJob(ctx)
	if err != nil {
		return "", err
	}
	c.logger.Info("conversion job created", "job_id", created.ID)

	uploadTask := findTask(created.Tasks, "import-video")
	if uploadTask == nil {
		return "", services.Wrap(services.ErrProvider, "convert", "convert", "job missing import task", nil)
	}
	if err := c.upload(ctx, uploadTask, video, filename); err != nil {
		return "", err
	}
	c.logger.Info("video uploaded for conversion", "bytes", len(video))

	finished, err := c.waitForJob(ctx, created.ID)
	if err != nil {
		return "", err
	}

	exportTask := findTask(finished.Tasks, "export-video")
	if exportTask == nil || exportTask.Status != "finished" {
		message := "unknown error"
		if exportTask != nil && exportTask.Message != "" {
			message = exportTask.Message
		}
		return "", services.Wrap(services.ErrProvider, "convert", "convert", "export failed: "+message, nil)
	}
	result, err := exportTask.result()
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "convert", "convert", "", err)
	}
	if len(result.Files) == 0 || result.Files[0].URL == "" {
		return "", services.Wrap(services.ErrProvider, "convert", "convert", "export produced no files", nil)
	}
	c.logger.Info("conversion finished", "job_id", finished.ID)
	return result.Files[0].URL, nil
}

func (c *Client) createJob(ctx context.Context) (*job, error) {
	payload := map[string]any{
		"tasks": map[string]any{
			"import-video": map[string]any{
				"operation": "import/upload",
			},
			"convert-video": map[string]any{
				"operation":     "convert",
				"input":         "import-video",
				"output_format": "mp4",
				"video_codec":   "x264",
				"audio_codec":   "aac",
			},
			"export-video": map[string]any{
				"operation": "export/url",
				"input":     "convert-video",
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "convert", "create job", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "convert", "create job", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		Data job `json:"data"`
	}
	if err := c.do(req, http.StatusCreated, &created); err != nil {
		return nil, services.Wrap(services.ErrProvider, "convert", "create job", "", err)
	}
	return &created.Data, nil
}

func (c *Client) upload(ctx context.Context, uploadTask *task, video []byte, filename string) error {
	result, err := uploadTask.result()
	if err != nil || result.Form == nil {
		return services.Wrap(services.ErrProvider, "convert", "upload", "import task carries no upload form", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range result.Form.Parameters {
		if err := writer.WriteField(key, value); err != nil {
			return services.Wrap(services.ErrProvider, "convert", "upload", "encode form", err)
		}
	}
	part, err := writer.CreateFormFile("file", filename+".bin")
	if err != nil {
		return services.Wrap(services.ErrProvider, "convert", "upload", "encode form", err)
	}
	if _, err := part.Write(video); err != nil {
		return services.Wrap(services.ErrProvider, "convert", "upload", "encode form", err)
	}
	if err := writer.Close(); err != nil {
		return services.Wrap(services.ErrProvider, "convert", "upload", "encode form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, result.Form.URL, body)
	if err != nil {
		return services.Wrap(services.ErrProvider, "convert", "upload", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrProvider, "convert", "upload", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return services.Wrap(services.ErrProvider, "convert", "upload",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}
	return nil
}

func (c *Client) waitForJob(ctx context.Context, jobID string) (*job, error) {
	deadline := time.Now().Add(c.waitTimeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
		if err != nil {
			return nil, services.Wrap(services.ErrProvider, "convert", "wait", "build request", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		var current struct {
			Data job `json:"data"`
		}
		if err := c.do(req, http.StatusOK, &current); err != nil {
			return nil, services.Wrap(services.ErrProvider, "convert", "wait", "", err)
		}

		switch current.Data.Status {
		case "finished":
			return &current.Data, nil
		case "error":
			return nil, services.Wrap(services.ErrProvider, "convert", "wait", "job failed", nil)
		}

		if time.Now().After(deadline) {
			return nil, services.Wrap(services.ErrTimeout, "convert", "wait",
				fmt.Sprintf("job %s not finished within %s", jobID, c.waitTimeout), nil)
		}
		select {
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrTimeout, "convert", "wait", "", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func findTask(tasks []task, name string) *task {
	for i := range tasks {
		if tasks[i].Name == name {
			return &tasks[i]
		}
	}
	return nil
}
