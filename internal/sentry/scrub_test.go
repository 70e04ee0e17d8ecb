package sentry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"

	"github.com/windowpeers/backend/internal/logging"
)

func TestScrubEvent_RedactsSensitiveHeaders(t *testing.T) {
	event := &sentry.Event{
		Request: &sentry.Request{
			Headers: map[string]string{
				"Authorization": "Bearer secret-token",
				"Cookie":        "wp_session=abc123",
				"Set-Cookie":    "wp_session=abc123; HttpOnly",
				"Content-Type":  "application/json",
			},
			Cookies: "wp_session=abc123",
		},
	}

	result := ScrubEvent(event, nil)

	for _, h := range []string{"Authorization", "Cookie", "Set-Cookie"} {
		if result.Request.Headers[h] != filtered {
			t.Errorf("expected %s to be %s, got %s", h, filtered, result.Request.Headers[h])
		}
	}
	if result.Request.Headers["Content-Type"] != "application/json" {
		t.Errorf("expected Content-Type to be preserved, got %s", result.Request.Headers["Content-Type"])
	}
	if result.Request.Cookies != filtered {
		t.Errorf("expected cookies to be filtered, got %s", result.Request.Cookies)
	}
}

func TestScrubEvent_StripsRequestBody(t *testing.T) {
	event := &sentry.Event{
		Request: &sentry.Request{
			Data: `{"connectionId":"c1","birthday":1}`,
		},
	}

	result := ScrubEvent(event, nil)

	if result.Request.Data != "" {
		t.Errorf("expected request body to be stripped, got %s", result.Request.Data)
	}
}

func TestScrubEvent_ScrubsTagsExtraAndBreadcrumbs(t *testing.T) {
	event := &sentry.Event{
		Tags: map[string]string{
			"environment": "production",
			"groupId":     "secret-group",
		},
		Extra: map[string]interface{}{
			"payload": map[string]any{"x": 1},
			"seqNum":  7,
		},
		Breadcrumbs: []*sentry.Breadcrumb{
			{Data: map[string]interface{}{"gid": "secret-group", "event": "join"}},
		},
	}

	result := ScrubEvent(event, nil)

	if result.Tags["groupId"] != filtered {
		t.Errorf("groupId tag = %s", result.Tags["groupId"])
	}
	if result.Tags["environment"] != "production" {
		t.Errorf("environment tag = %s", result.Tags["environment"])
	}
	if result.Extra["payload"] != filtered || result.Extra["seqNum"] != 7 {
		t.Errorf("extra = %v", result.Extra)
	}
	if result.Breadcrumbs[0].Data["gid"] != filtered || result.Breadcrumbs[0].Data["event"] != "join" {
		t.Errorf("breadcrumb data = %v", result.Breadcrumbs[0].Data)
	}
}

func TestScrubEvent_NilRequest(t *testing.T) {
	// Should not panic
	ScrubEvent(&sentry.Event{}, nil)
}

func TestCaptureWithoutInit(t *testing.T) {
	if err := Init("", "test"); err != nil {
		t.Fatalf("Init with empty DSN: %v", err)
	}
	ctx := logging.WithConnection(context.Background(), "c1", "abcd")

	// Should not panic while reporting is disabled.
	CaptureError(ctx, errors.New("boom"))
	CapturePanic(ctx, "boom")
}
