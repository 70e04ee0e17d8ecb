package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/windowpeers/backend/internal/logging"
)

// Init configures the Sentry client. With an empty dsn reporting stays
// disabled and every capture is a no-op.
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		BeforeSend:  ScrubEvent,
	})
}

// Flush waits up to timeout for buffered events to be sent.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureError reports err, tagged with the connection attributes in ctx.
func CaptureError(ctx context.Context, err error) {
	hub := scopedHub(ctx)
	hub.CaptureException(err)
}

// CapturePanic reports a recovered panic value.
func CapturePanic(ctx context.Context, v any) {
	hub := scopedHub(ctx)
	hub.Recover(v)
}

func scopedHub(ctx context.Context) *sentry.Hub {
	hub := sentry.CurrentHub().Clone()
	if attrs := logging.GetRequestAttrs(ctx); attrs != nil {
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("path", attrs.Path)
			if attrs.ConnectionID != "" {
				scope.SetTag("connection_id", attrs.ConnectionID)
			}
			if attrs.Group != "" {
				scope.SetTag("group", attrs.Group)
			}
		})
	}
	return hub
}
