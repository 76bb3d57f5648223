// Package publisher posts photos, carousels, and videos to Instagram through
// the upload-post API.
package publisher

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

const (
	defaultBaseURL = "https://api.upload-post.com/api"
	platform       = "instagram"
)

// Client posts media through upload-post on behalf of a single profile.
type Client struct {
	baseURL string
	apiKey  string
	user    string
	http    *http.Client
	logger  *slog.Logger
}

// New constructs a publisher for the given upload-post profile name.
func New(apiKey, user string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		user:    user,
		http:    &http.Client{Timeout: 5 * time.Minute},
		logger:  logger,
	}
}

// WithBaseURL overrides the API endpoint (for testing).
func (c *Client) WithBaseURL(base string) *Client {
	if base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	return c
}

// PublishPhoto posts a single photo with the given caption.
func (c *Client) PublishPhoto(ctx context.Context, photo []byte, caption string) error {
	if len(photo) == 0 {
		return services.Wrap(services.ErrValidation, "publisher", "publish photo", "empty photo payload", nil)
	}
	return c.publishPhotos(ctx, [][]byte{photo}, caption, "publish photo")
}

// PublishCarousel posts multiple photos as a single carousel. Order is
// preserved.
func (c *Client) PublishCarousel(ctx context.Context, photos [][]byte, caption string) error {
	if len(photos) == 0 {
		return services.Wrap(services.ErrValidation, "publisher", "publish carousel", "no photos", nil)
	}
	for i, photo := range photos {
		if len(photo) == 0 {
			return services.Wrap(services.ErrValidation, "publisher", "publish carousel",
				fmt.Sprintf("photo %d is empty", i+1), nil)
		}
	}
	return c.publishPhotos(ctx, photos, caption, "publish carousel")
}

func (c *Client) publishPhotos(ctx context.Context, photos [][]byte, caption, operation string) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := c.writeCommonFields(writer, caption); err != nil {
		return services.Wrap(services.ErrProvider, "publisher", operation, "encode form", err)
	}
	for i, photo := range photos {
		part, err := writer.CreateFormFile("photos[]", fmt.Sprintf("photo-%d.jpg", i+1))
		if err != nil {
			return services.Wrap(services.ErrProvider, "publisher", operation, "encode form", err)
		}
		if _, err := part.Write(photo); err != nil {
			return services.Wrap(services.ErrProvider, "publisher", operation, "encode form", err)
		}
	}
	if err := writer.Close(); err != nil {
		return services.Wrap(services.ErrProvider, "publisher", operation, "encode form", err)
	}

	if err := c.post(ctx, "/upload_photos", writer.FormDataContentType(), body); err != nil {
		return services.Wrap(services.ErrProvider, "publisher", operation, "", err)
	}
	c.logger.Info("published to instagram", "kind", "photos", "count", len(photos), "user", c.user)
	return nil
}

// PublishVideo posts a single video (reel) with the given caption.
func (c *Client) PublishVideo(ctx context.Context, video []byte, caption string) error {
	if len(video) == 0 {
		return services.Wrap(services.ErrValidation, "publisher", "publish video", "empty video payload", nil)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := c.writeCommonFields(writer, caption); err != nil {
		return services.Wrap(services.ErrProvider, "publisher", "publish video", "encode form", err)
	}
	part, err := writer.CreateFormFile("video", "video.mp4")
	if err != nil {
		return services.Wrap(services.ErrProvider, "publisher", "publish video", "encode form", err)
	}
	if _, err := part.Write(video); err != nil {
		return services.Wrap(services.ErrProvider, "publisher", "publish video", "encode form", err)
	}
	if err := writer.Close(); err != nil {
		return services.Wrap(services.ErrProvider, "publisher", "publish video", "encode form", err)
	}

	if err := c.post(ctx, "/upload", writer.FormDataContentType(), body); err != nil {
		return services.Wrap(services.ErrProvider, "publisher", "publish video", "", err)
	}
	c.logger.Info("published to instagram", "kind", "video", "user", c.user)
	return nil
}

func (c *Client) writeCommonFields(writer *multipart.Writer, caption string) error {
	if err := writer.WriteField("title", caption); err != nil {
		return err
	}
	if err := writer.WriteField("user", c.user); err != nil {
		return err
	}
	return writer.WriteField("platform[]", platform)
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Apikey "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

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

	var decoded struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if !decoded.Success {
		message := decoded.Error
		if message == "" {
			message = strings.TrimSpace(string(payload))
		}
		return fmt.Errorf("upload rejected: %s", message)
	}
	return nil
}
