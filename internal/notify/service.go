// Package notify delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the configured topic and
// gracefully degrades to a no-op when notifications are disabled. Processor
// code depends only on the Service interface.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "Reelay/0.1.0"

// Service defines the notification surface exposed to the processor.
type Service interface {
	NotifyPublished(ctx context.Context, kind, caption string) error
	NotifyCarouselAbandoned(ctx context.Context, groupID string, count, max int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when a topic URL is
// configured; otherwise a noop implementation is returned.
func NewService(topic string, timeout time.Duration) Service {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return noopService{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyPublished(ctx context.Context, kind, caption string) error {
	caption = strings.TrimSpace(caption)
	message := fmt.Sprintf("Published %s to Instagram", kind)
	if caption != "" {
		message = fmt.Sprintf("%s\nCaption: %s", message, caption)
	}
	data := payload{
		title:   "Reelay - Published",
		message: message,
		tags:    []string{"reelay", kind, "published"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCarouselAbandoned(ctx context.Context, groupID string, count, max int) error {
	data := payload{
		title:    "Reelay - Carousel Abandoned",
		message:  fmt.Sprintf("Media group %s collected %d items (limit %d), nothing published", groupID, count, max),
		tags:     []string{"reelay", "carousel", "abandoned"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Reelay - Error",
		message:  builder.String(),
		tags:     []string{"reelay", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Reelay - Test",
		message:  "Notification system test",
		tags:     []string{"reelay", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyPublished(context.Context, string, string) error           { return nil }
func (noopService) NotifyCarouselAbandoned(context.Context, string, int, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
