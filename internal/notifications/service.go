package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intake/internal/config"
)

const userAgent = "Intake-Go/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventDeliveryDetected Event = "delivery_detected"
	EventIngestStarted    Event = "ingest_started"
	EventIngestCompleted  Event = "ingest_completed"
	EventPublishCompleted Event = "publish_completed"
	EventReviewNeeded     Event = "review_needed"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries the event-specific values used to format a message.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventDeliveryDetected: cfg.Notifications.Delivery,
			EventIngestStarted:    cfg.Notifications.Ingest,
			EventIngestCompleted:  cfg.Notifications.Ingest,
			EventPublishCompleted: cfg.Notifications.Publish,
			EventReviewNeeded:     cfg.Notifications.Review,
			EventError:            cfg.Notifications.Errors,
			EventTest:             true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

// Publish formats and sends one event. Events disabled in configuration are
// dropped silently; unknown events are an error so new call sites fail loudly
// in tests rather than sending blank notifications.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if enabled, known := n.enabled[event]; known && !enabled {
		return nil
	}
	data, err := render(event, payload)
	if err != nil {
		return err
	}
	return n.send(ctx, data)
}

func render(event Event, payload Payload) (message, error) {
	switch event {
	case EventDeliveryDetected:
		return message{
			title: "Intake - Delivery Detected",
			body:  fmt.Sprintf("\U0001F4E6 Delivery detected: %s", payloadString(payload, "delivery", "unknown")),
			tags:  []string{"intake", "delivery", "detected"},
		}, nil
	case EventIngestStarted:
		return message{
			title: "Intake - Ingest Started",
			body:  fmt.Sprintf("Started ingesting queue with %s items", payloadString(payload, "count", "0")),
			tags:  []string{"intake", "ingest", "started"},
		}, nil
	case EventIngestCompleted:
		return renderIngestCompleted(payload), nil
	case EventPublishCompleted:
		return message{
			title:    "Intake - Published",
			body:     fmt.Sprintf("✅ Published: %s", payloadString(payload, "name", "unknown")),
			tags:     []string{"intake", "publish", "completed"},
			priority: "high",
		}, nil
	case EventReviewNeeded:
		body := fmt.Sprintf("Needs review: %s", payloadString(payload, "name", "unknown"))
		if reason := payloadString(payload, "reason", ""); reason != "" {
			body = fmt.Sprintf("%s\nReason: %s", body, reason)
		}
		return message{
			title: "Intake - Review Needed",
			body:  body,
			tags:  []string{"intake", "review", "attention"},
		}, nil
	case EventError:
		body := "❌ Error"
		if label := payloadString(payload, "context", ""); label != "" {
			body += " with " + label
		}
		body += ": " + payloadString(payload, "error", "unknown")
		return message{
			title:    "Intake - Error",
			body:     body,
			tags:     []string{"intake", "error", "alert"},
			priority: "high",
		}, nil
	case EventTest:
		return message{
			title:    "Intake - Test",
			body:     "\U0001F9EA Notification system test",
			tags:     []string{"intake", "test"},
			priority: "low",
		}, nil
	default:
		return message{}, fmt.Errorf("unknown notification event %q", event)
	}
}

func renderIngestCompleted(payload Payload) message {
	duration := time.Duration(0)
	if v, ok := payload["duration"].(time.Duration); ok {
		duration = v.Round(time.Second)
	}
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}
	processed := payloadString(payload, "processed", "0")
	failed := payloadString(payload, "failed", "0")

	if failed == "0" {
		return message{
			title: "Intake - Ingest Complete",
			body:  fmt.Sprintf("Ingest complete: %s items published in %s", processed, durationText),
			tags:  []string{"intake", "ingest", "completed"},
		}
	}
	return message{
		title: "Intake - Ingest Complete (with errors)",
		body:  fmt.Sprintf("Ingest complete: %s published, %s failed in %s", processed, failed, durationText),
		tags:  []string{"intake", "ingest", "completed"},
	}
}

func payloadString(payload Payload, key, fallback string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return fallback
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
