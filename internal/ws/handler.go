// Package ws is the WebSocket transport for the window-peers protocol. Each
// accepted socket becomes one bus connection: inbound frames go through the
// protocol dispatcher in the order they were sent, and the connection's bus
// queue is written back out as frames.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/windowpeers/backend/internal/bus"
	"github.com/windowpeers/backend/internal/crypto"
	"github.com/windowpeers/backend/internal/logging"
	"github.com/windowpeers/backend/internal/peers"
	"github.com/windowpeers/backend/internal/protocol"
	"github.com/windowpeers/backend/internal/sentry"
	"github.com/windowpeers/backend/internal/session"
)

// Options tune the transport.
type Options struct {
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int
	AllowedOrigins    []string
}

// Handler upgrades HTTP requests to window-peer connections.
type Handler struct {
	bus        *bus.Bus
	identity   *peers.IdentityService
	groups     *peers.Groups
	dispatcher *protocol.Dispatcher
	sessions   *session.Store
	opts       Options
	upgrader   websocket.Upgrader
}

// NewHandler creates a Handler.
func NewHandler(b *bus.Bus, identity *peers.IdentityService, groups *peers.Groups, d *protocol.Dispatcher, sessions *session.Store, opts Options) *Handler {
	h := &Handler{
		bus:        b,
		identity:   identity,
		groups:     groups,
		dispatcher: d,
		sessions:   sessions,
		opts:       opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts same-host and configured origins. Requests without an
// Origin header are not from a browser and are accepted.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	logging.LogSecurityEvent(r.Context(), logging.SecurityEventOriginRejected, "websocket origin rejected")
	return false
}

// ServeHTTP places the caller in its session group and runs the connection
// until either side closes it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess := session.FromContext(ctx)
	if sess == nil {
		sess = &session.Session{}
	}
	group, err := h.identity.GetOrCreateGroupID(sess)
	if err != nil {
		logging.LogErrorWithStatus(ctx, http.StatusInternalServerError, "failed to assign group", logging.WrapError(err, "assign group"))
		sentry.CaptureError(ctx, err)
		http.Error(w, `{"error":"group identity unavailable"}`, http.StatusInternalServerError)
		return
	}

	header := http.Header{}
	if sess.Dirty() {
		cookie, err := h.sessions.Cookie(sess)
		if err != nil {
			logging.LogErrorWithStatus(ctx, http.StatusInternalServerError, "failed to sign session", logging.WrapError(err, "sign session"))
			http.Error(w, `{"error":"session unavailable"}`, http.StatusInternalServerError)
			return
		}
		header.Add("Set-Cookie", cookie.String())
	}

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		// The upgrader has already written an error response.
		slog.DebugContext(ctx, "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	id, out := h.bus.Connect()
	h.groups.Enter(id, group)
	ctx = logging.WithConnection(ctx, string(id), crypto.Fingerprint(string(group)))
	slog.InfoContext(ctx, "window connected", logging.RequestFields(ctx)...)

	c := &connection{
		ws:      conn,
		peer:    protocol.Peer{ID: id, Group: group},
		out:     out,
		opts:    h.opts,
		limiter: rate.NewLimiter(rate.Limit(h.opts.MessagesPerSecond), h.opts.MessageBurst),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx)
	}()

	defer func() {
		if rec := recover(); rec != nil {
			sentry.CapturePanic(ctx, rec)
			logging.LogConnectionError(ctx, "panic while handling connection", fmt.Errorf("panic: %v", rec))
		}
		// Disconnecting closes the queue, which stops the writer.
		h.bus.Disconnect(id)
		<-writerDone
		slog.InfoContext(ctx, "window disconnected", logging.RequestFields(ctx)...)
	}()

	c.readPump(ctx, h.dispatcher)
}

// connection is one live socket.
type connection struct {
	ws      *websocket.Conn
	peer    protocol.Peer
	out     <-chan bus.Message
	opts    Options
	limiter *rate.Limiter
}

func (c *connection) pongWait() time.Duration {
	return 2 * c.opts.PingInterval
}

// readPump dispatches inbound frames one at a time until the socket fails,
// the peer closes it, the client asks to disconnect, or it exceeds its
// message rate.
func (c *connection) readPump(ctx context.Context, d *protocol.Dispatcher) {
	c.ws.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "websocket closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}

		// Dropping a frame could silently orphan a request, so a flooding
		// client is disconnected instead.
		if !c.limiter.Allow() {
			logging.LogSecurityEvent(ctx, logging.SecurityEventRateLimited, "message rate limit exceeded")
			closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit exceeded")
			_ = c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(c.opts.WriteTimeout))
			return
		}

		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			logging.LogSecurityEvent(ctx, logging.SecurityEventMalformedMessage, "frame is not valid JSON")
			continue
		}

		err = d.Dispatch(ctx, c.peer, frame)
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrDisconnectRequested):
			return
		case errors.Is(err, protocol.ErrMalformed):
			logging.LogSecurityEvent(ctx, logging.SecurityEventMalformedMessage, "rejected "+frame.Event+": "+err.Error())
		case errors.Is(err, protocol.ErrUnknownEvent):
			slog.DebugContext(ctx, "ignoring unknown event", slog.String("event", frame.Event))
		default:
			logging.LogConnectionError(ctx, "failed to handle "+frame.Event, logging.WrapError(err, frame.Event))
		}
	}
}

// writePump writes queued messages and keepalive pings. It closes the socket
// when the queue is closed or a write fails.
func (c *connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case msg, ok := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteJSON(protocol.Frame{Event: msg.Event, Data: msg.Payload}); err != nil {
				slog.DebugContext(ctx, "websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				slog.DebugContext(ctx, "websocket ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}
