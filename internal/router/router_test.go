package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/windowpeers/backend/internal/bus"
	"github.com/windowpeers/backend/internal/config"
	"github.com/windowpeers/backend/internal/peers"
	"github.com/windowpeers/backend/internal/protocol"
	"github.com/windowpeers/backend/internal/session"
	"github.com/windowpeers/backend/internal/ws"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		EventPrefix:        "wp.",
		RateLimitPerMinute: 60,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
	b := bus.New(16)
	events := peers.Events{Prefix: cfg.EventPrefix}
	identity := peers.NewIdentityService(nil)
	groups := peers.NewGroups(b, events)
	d := protocol.NewDispatcher(events, protocol.Components{
		Groups:     groups,
		Watch:      peers.NewWatchMaintainer(b),
		Correlator: peers.NewCorrelator(b, events),
		Relay:      peers.NewRelay(b, events),
	})
	store := session.NewStore("test-secret", "wp_session", time.Hour, false)

	return New(ctx, cfg, Deps{
		Bus:      b,
		Identity: identity,
		Groups:   groups,
		Sessions: store,
		Socket:   ws.NewHandler(b, identity, groups, d, store, ws.Options{PingInterval: time.Second}),
	})
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK, `"status":"ok"`},
		{"config", http.MethodGet, "/api/config", http.StatusOK, `"eventPrefix":"wp."`},
		{"session", http.MethodGet, "/api/session", http.StatusOK, `"groupId"`},
		{"join without body", http.MethodPost, "/api/groups/join", http.StatusBadRequest, `"error"`},
		{"plain request to socket", http.MethodGet, WSPath, http.StatusBadRequest, ""},
		{"unknown route", http.MethodGet, "/api/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
