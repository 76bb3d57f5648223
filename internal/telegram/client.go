// Package telegram is a thin Bot API client covering the inbound edge:
// long-polled updates, file metadata, and file downloads.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// PhotoSize is one rendition of a photo. Telegram sends several per photo,
// ordered small to large.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

// Video is an inbound video attachment.
type Video struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	FileSize int64  `json:"file_size"`
}

// Chat identifies the conversation a message arrived in.
type Chat struct {
	ID int64 `json:"id"`
}

// Message is an inbound Telegram message with the fields the pipelines need.
type Message struct {
	MessageID    int64       `json:"message_id"`
	Chat         Chat        `json:"chat"`
	MediaGroupID string      `json:"media_group_id"`
	Caption      string      `json:"caption"`
	Photo        []PhotoSize `json:"photo"`
	Video        *Video      `json:"video"`
}

// LargestPhoto returns the highest-resolution rendition, or nil when the
// message carries no photo.
func (m *Message) LargestPhoto() *PhotoSize {
	if len(m.Photo) == 0 {
		return nil
	}
	best := &m.Photo[0]
	for i := range m.Photo {
		if m.Photo[i].Width*m.Photo[i].Height > best.Width*best.Height {
			best = &m.Photo[i]
		}
	}
	return best
}

// Update is one getUpdates entry.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Client talks to the Bot API for a single bot token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New constructs a Bot API client.
func New(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		// Long polls hold the connection open for up to the poll timeout;
		// leave generous headroom on top of it.
		http:   &http.Client{Timeout: 90 * time.Second},
		logger: logger,
	}
}

// WithBaseURL overrides the API endpoint (for testing).
func (c *Client) WithBaseURL(base string) *Client {
	if base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	return c
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// GetUpdates long-polls for updates after offset. pollTimeout is passed to
// the Bot API; the call returns early when updates arrive.
func (c *Client) GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]Update, error) {
	query := url.Values{}
	query.Set("offset", strconv.FormatInt(offset, 10))
	query.Set("timeout", strconv.Itoa(int(pollTimeout.Seconds())))
	query.Set("allowed_updates", `["message"]`)

	raw, err := c.call(ctx, "getUpdates", query)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("get updates: parse result: %w", err)
	}
	return updates, nil
}

// DownloadFile resolves fileID through getFile and downloads its content.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	query := url.Values{}
	query.Set("file_id", fileID)
	raw, err := c.call(ctx, "getFile", query)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	var meta struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("get file: parse result: %w", err)
	}
	if meta.FilePath == "" {
		return nil, fmt.Errorf("get file: empty file path for %s", fileID)
	}

	downloadURL := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, meta.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download file: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download file: read body: %w", err)
	}
	c.logger.Debug("downloaded telegram file", "file_id", fileID, "bytes", len(data))
	return data, nil
}

func (c *Client) call(ctx context.Context, method string, query url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s?%s", c.baseURL, c.token, method, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var decoded apiResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, decoded.Description)
	}
	return decoded.Result, nil
}
