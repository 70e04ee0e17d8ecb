package handlers

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/windowpeers/backend/internal/bus"
	"github.com/windowpeers/backend/internal/logging"
	"github.com/windowpeers/backend/internal/peers"
	"github.com/windowpeers/backend/internal/sentry"
	"github.com/windowpeers/backend/internal/session"
)

// SessionResponse carries the caller's group id.
type SessionResponse struct {
	GroupID peers.GroupID `json:"groupId"`
}

// JoinGroupRequest asks to place a live socket connection in the caller's group.
type JoinGroupRequest struct {
	ConnectionID string          `json:"connectionId" validate:"required,max=64"`
	Birthday     json.RawMessage `json:"birthday"`
}

// JoinGroupResponse echoes the membership that was established.
type JoinGroupResponse struct {
	GroupID      peers.GroupID `json:"groupId"`
	ConnectionID bus.ConnID    `json:"connectionId"`
}

// GroupHandler exposes group identity and membership over plain HTTP so a
// page can settle its group before opening a socket.
type GroupHandler struct {
	bus      *bus.Bus
	identity *peers.IdentityService
	groups   *peers.Groups
	sessions *session.Store
	validate *validator.Validate
}

// NewGroupHandler creates a GroupHandler with the required dependencies.
func NewGroupHandler(b *bus.Bus, identity *peers.IdentityService, groups *peers.Groups, sessions *session.Store) *GroupHandler {
	return &GroupHandler{
		bus:      b,
		identity: identity,
		groups:   groups,
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ensureGroup resolves the caller's group id and persists the session
// cookie when it was just minted. It writes the error response itself.
func (h *GroupHandler) ensureGroup(w http.ResponseWriter, r *http.Request) (peers.GroupID, bool) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		sess = &session.Session{}
	}

	gid, err := h.identity.GetOrCreateGroupID(sess)
	if err != nil {
		sentry.CaptureError(r.Context(), err)
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to assign group", err)
		return "", false
	}
	if err := h.sessions.Save(w, sess); err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to save session", err)
		return "", false
	}
	return gid, true
}

// Session returns the caller's group id, creating it on first contact.
func (h *GroupHandler) Session(w http.ResponseWriter, r *http.Request) {
	gid, ok := h.ensureGroup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{GroupID: gid})
}

// Join announces an already connected socket of the caller's group to the
// group's windows. Sockets of other groups are refused with 403.
func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "connectionId is required")
		return
	}

	c := bus.ConnID(req.ConnectionID)
	if !h.bus.Connected(c) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventUnknownPeer, "join for unknown connection")
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}

	gid, ok := h.ensureGroup(w, r)
	if !ok {
		return
	}
	// A socket's group is fixed when it connects, so only a socket of the
	// caller's own group may be announced.
	if !slices.Contains(h.bus.RoomsOf(c), bus.GroupRoom(string(gid))) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventUnknownPeer, "join for connection of another group")
		writeError(w, http.StatusForbidden, "connection belongs to another group")
		return
	}

	birthday := req.Birthday
	if len(birthday) == 0 {
		birthday = json.RawMessage("null")
	}
	hello := h.groups.Announce(r.Context(), c, gid, birthday)
	writeJSON(w, http.StatusOK, JoinGroupResponse{GroupID: hello.GroupID, ConnectionID: hello.ConnectionID})
}
