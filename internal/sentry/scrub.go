// Package sentry reports connection-level failures to Sentry and scrubs
// session material from every event before it leaves the process.
package sentry

import (
	"github.com/getsentry/sentry-go"
)

const filtered = "[Filtered]"

// sensitiveHeaders are HTTP headers that should be redacted from Sentry events.
// The session cookie carries the group id, which is a bearer secret.
var sensitiveHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
}

// sensitiveKeys are field names that may hold group ids or relayed payloads.
var sensitiveKeys = map[string]bool{
	"groupId":         true,
	"gid":             true,
	"session":         true,
	"secret":          true,
	"token":           true,
	"payload":         true,
	"result":          true,
	"rejectionReason": true,
	"cookie":          true,
	"authorization":   true,
}

// ScrubEvent removes sensitive data from a Sentry event before it is sent.
// It redacts sensitive headers and cookies, strips request bodies, and
// scrubs tags, extra data, and breadcrumb data.
func ScrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		for header := range event.Request.Headers {
			if sensitiveHeaders[header] {
				event.Request.Headers[header] = filtered
			}
		}
		if event.Request.Cookies != "" {
			event.Request.Cookies = filtered
		}
		// Request bodies may carry relayed window payloads.
		event.Request.Data = ""
	}

	for key := range event.Tags {
		if sensitiveKeys[key] {
			event.Tags[key] = filtered
		}
	}
	for key := range event.Extra {
		if sensitiveKeys[key] {
			event.Extra[key] = filtered
		}
	}
	for i := range event.Breadcrumbs {
		for key := range event.Breadcrumbs[i].Data {
			if sensitiveKeys[key] {
				event.Breadcrumbs[i].Data[key] = filtered
			}
		}
	}

	return event
}
