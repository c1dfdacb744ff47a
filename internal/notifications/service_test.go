package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"intake/internal/config"
	"intake/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventPublishCompleted, notifications.Payload{"name": "sh010_bg_v002"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "delivery detected",
			event:         notifications.EventDeliveryDetected,
			payload:       notifications.Payload{"delivery": "VND_0300"},
			expectTitle:   "Intake - Delivery Detected",
			expectMessage: "📦 Delivery detected: VND_0300",
			expectTags:    "intake,delivery,detected",
		},
		{
			name:          "ingest started",
			event:         notifications.EventIngestStarted,
			payload:       notifications.Payload{"count": 4},
			expectTitle:   "Intake - Ingest Started",
			expectMessage: "Started ingesting queue with 4 items",
			expectTags:    "intake,ingest,started",
		},
		{
			name:  "ingest completed with failures",
			event: notifications.EventIngestCompleted,
			payload: notifications.Payload{
				"processed": 3,
				"failed":    1,
				"duration":  90 * time.Second,
			},
			expectTitle:   "Intake - Ingest Complete (with errors)",
			expectMessage: "Ingest complete: 3 published, 1 failed in 1m30s",
			expectTags:    "intake,ingest,completed",
		},
		{
			name:           "publish completed",
			event:          notifications.EventPublishCompleted,
			payload:        notifications.Payload{"name": "sh010_bg_v002"},
			expectTitle:    "Intake - Published",
			expectMessage:  "✅ Published: sh010_bg_v002",
			expectTags:     "intake,publish,completed",
			expectPriority: "high",
		},
		{
			name:  "review needed",
			event: notifications.EventReviewNeeded,
			payload: notifications.Payload{
				"name":   "oddname.mov",
				"reason": "Missing required fields: shot, version",
			},
			expectTitle:   "Intake - Review Needed",
			expectMessage: "Needs review: oddname.mov\nReason: Missing required fields: shot, version",
			expectTags:    "intake,review,attention",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "publish (item #3)",
				"error":   errors.New("tracking service unreachable"),
			},
			expectTitle:    "Intake - Error",
			expectMessage:  "❌ Error with publish (item #3): tracking service unreachable",
			expectTags:     "intake,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("publish: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", captured.title, tc.expectTitle)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("message = %q, want %q", captured.body, tc.expectMessage)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", captured.tags, tc.expectTags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", captured.priority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Review = false
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventReviewNeeded, notifications.Payload{"name": "x"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if requests != 0 {
		t.Fatalf("disabled event should not reach ntfy, got %d requests", requests)
	}
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("publish test event: %v", err)
	}
	if requests != 1 {
		t.Fatalf("test event should always send, got %d requests", requests)
	}
}

func TestNtfyServiceSurfacesHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
