package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/windowpeers/backend/internal/bus"
	"github.com/windowpeers/backend/internal/peers"
	"github.com/windowpeers/backend/internal/session"
)

type fixture struct {
	bus      *bus.Bus
	store    *session.Store
	handler  *GroupHandler
	identity *peers.IdentityService
}

func newFixture() *fixture {
	b := bus.New(16)
	events := peers.Events{}
	store := session.NewStore("test-secret", "wp_session", time.Hour, false)
	identity := peers.NewIdentityService(nil)
	return &fixture{
		bus:      b,
		store:    store,
		identity: identity,
		handler:  NewGroupHandler(b, identity, peers.NewGroups(b, events), store),
	}
}

// request builds a request carrying sess in its context, the way the
// session middleware would.
func (f *fixture) request(method, path, body string, sess *session.Session) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req = req.WithContext(session.WithSession(req.Context(), sess))
	}
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "wp_session" {
			return c
		}
	}
	return nil
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestConfigHandler_PublicConfig(t *testing.T) {
	rec := httptest.NewRecorder()
	NewConfigHandler("wp.", "/ws").PublicConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	var resp PublicConfig
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.EventPrefix != "wp." || resp.WSPath != "/ws" {
		t.Errorf("config = %+v", resp)
	}
}

func TestGroupHandler_SessionMintsAndPersists(t *testing.T) {
	f := newFixture()

	rec := httptest.NewRecorder()
	f.handler.Session(rec, f.request(http.MethodGet, "/api/session", "", &session.Session{}))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}

	var first SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&first); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if first.GroupID == "" {
		t.Fatal("expected a group id")
	}
	cookie := sessionCookie(t, rec)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}

	// A second call with the cookie returns the same group and writes nothing.
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	sess, err := f.store.Load(req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec = httptest.NewRecorder()
	f.handler.Session(rec, f.request(http.MethodGet, "/api/session", "", sess))

	var second SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&second); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if second.GroupID != first.GroupID {
		t.Errorf("GroupID = %q, want %q", second.GroupID, first.GroupID)
	}
	if sessionCookie(t, rec) != nil {
		t.Error("unchanged session should not be re-saved")
	}
}

func TestGroupHandler_SessionWithoutMiddleware(t *testing.T) {
	f := newFixture()
	rec := httptest.NewRecorder()
	f.handler.Session(rec, f.request(http.MethodGet, "/api/session", "", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if sessionCookie(t, rec) == nil {
		t.Error("expected a session cookie")
	}
}

func TestGroupHandler_Join(t *testing.T) {
	f := newFixture()
	c, queue := f.bus.Connect()
	sess := &session.Session{}
	group, err := f.identity.GetOrCreateGroupID(sess)
	if err != nil {
		t.Fatalf("GetOrCreateGroupID: %v", err)
	}
	f.handler.groups.Enter(c, group)

	body := `{"connectionId":"` + string(c) + `","birthday":1700000000}`
	rec := httptest.NewRecorder()
	f.handler.Join(rec, f.request(http.MethodPost, "/api/groups/join", body, sess))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp JoinGroupResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	gid, _ := sess.GroupID()
	if string(resp.GroupID) != gid || resp.ConnectionID != c {
		t.Errorf("response = %+v, want group %q connection %q", resp, gid, c)
	}
	if !f.bus.Exists(bus.GroupRoom(gid)) {
		t.Error("connection should be in its group room")
	}

	select {
	case msg := <-queue:
		if msg.Event != peers.EventHello {
			t.Fatalf("event = %q, want %q", msg.Event, peers.EventHello)
		}
		var hello peers.Hello
		if err := json.Unmarshal(msg.Payload, &hello); err != nil {
			t.Fatalf("decode hello: %v", err)
		}
		if string(hello.Birthday) != "1700000000" {
			t.Errorf("birthday = %s", hello.Birthday)
		}
	default:
		t.Fatal("expected a hello")
	}
}

func TestGroupHandler_JoinErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid json", "not json", http.StatusBadRequest},
		{"missing connection", `{"birthday":1}`, http.StatusBadRequest},
		{"unknown connection", `{"connectionId":"ghost"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec := httptest.NewRecorder()
			f.handler.Join(rec, f.request(http.MethodPost, "/api/groups/join", tt.body, &session.Session{}))

			if rec.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("expected an error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestGroupHandler_JoinRefusesOtherGroup(t *testing.T) {
	f := newFixture()
	c, queue := f.bus.Connect()
	f.handler.groups.Enter(c, "socket-group")

	caller := &session.Session{}
	caller.SetGroupID("caller-group")

	body := `{"connectionId":"` + string(c) + `"}`
	rec := httptest.NewRecorder()
	f.handler.Join(rec, f.request(http.MethodPost, "/api/groups/join", body, caller))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if f.bus.Exists(bus.GroupRoom("caller-group")) {
		t.Error("socket was moved into the caller's group")
	}
	select {
	case msg := <-queue:
		t.Errorf("unexpected %s", msg.Event)
	default:
	}
}
