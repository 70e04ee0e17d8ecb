// Package protocol maps inbound window-peer events to the peers components.
// Each inbound event name has exactly one entry in the dispatch table; messages
// are validated here so the components can assume well-formed input.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/windowpeers/backend/internal/bus"
	"github.com/windowpeers/backend/internal/peers"
)

var (
	// ErrMalformed marks a message that is missing required fields or is not valid JSON.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownEvent marks a message whose event name has no handler.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrDisconnectRequested asks the transport to close the sender's connection.
	ErrDisconnectRequested = errors.New("disconnect requested")
)

// Peer is the sender of an inbound message.
type Peer struct {
	ID    bus.ConnID
	Group peers.GroupID
}

// HandlerFunc handles the data of one inbound event.
type HandlerFunc func(ctx context.Context, p Peer, data json.RawMessage) error

// Components are the peers services the dispatch table routes to.
type Components struct {
	Groups     *peers.Groups
	Watch      *peers.WatchMaintainer
	Correlator *peers.Correlator
	Relay      *peers.Relay
}

// Dispatcher routes inbound frames by event name.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	validate *validator.Validate
	c        Components
}

// NewDispatcher builds the dispatch table for the given event prefix.
func NewDispatcher(events peers.Events, c Components) *Dispatcher {
	d := &Dispatcher{
		validate: validator.New(),
		c:        c,
	}
	d.handlers = map[string]HandlerFunc{
		events.Name(EventJoin):              d.join,
		events.Name(EventPublishMapping):    d.publishMapping,
		events.Name(EventMakeRequest):       d.makeRequest,
		events.Name(EventRespondToRequest):  d.respondToRequest,
		events.Name(EventPostMessage):       d.postMessage,
		events.Name(EventSendEvent):         d.sendEvent,
		events.Name(EventWelcome):           d.welcome,
		events.Name(EventDisconnectRequest): d.disconnect,
		events.Name(EventDepart):            d.disconnect,
	}
	return d
}

// Dispatch runs the handler registered for f.Event.
func (d *Dispatcher) Dispatch(ctx context.Context, p Peer, f Frame) error {
	h, ok := d.handlers[f.Event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
	return h(ctx, p, f.Data)
}

// decode unmarshals data into v and validates required fields. Absent data
// decodes as an empty object.
func (d *Dispatcher) decode(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := d.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// resolveRoom turns a client-supplied room into a bus room. Empty means the
// sender itself, the sender's group id means its group room, and anything
// else is taken as a connection id.
func resolveRoom(p Peer, room string) bus.RoomName {
	switch room {
	case "":
		return bus.ConnRoom(p.ID)
	case string(p.Group):
		return bus.GroupRoom(room)
	default:
		return bus.ConnRoom(bus.ConnID(room))
	}
}

func (d *Dispatcher) join(ctx context.Context, p Peer, data json.RawMessage) error {
	var msg joinMessage
	if err := d.decode(data, &msg); err != nil {
		return err
	}
	d.c.Groups.Announce(ctx, p.ID, p.Group, msg.Birthday)
	return nil
}

func (d *Dispatcher) publishMapping(ctx context.Context, p Peer, data json.RawMessage) error {
	var msg publishMappingMessage
	if err := d.decode(data, &msg); err != nil {
		return err
	}
	d.c.Watch.Reconcile(ctx, lo.Values(msg.Mapping))

	mapping, err := json.Marshal(msg.Mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	d.c.Relay.Send(ctx, p.ID, resolveRoom(p, msg.Room), peers.EventUpdateMapping, mapping, false)
	return nil
}

func (d *Dispatcher) makeRequest(ctx context.Context, p Peer, data json.RawMessage) error {
	var msg makeRequestMessage
	if err := d.decode(data, &msg); err != nil {
		return err
	}
	d.c.Correlator.ForwardRequest(ctx, p.ID, peers.Request{
		SeqNum:            *msg.SeqNum,
		DstConnection:     msg.DstConnection,
		HandlerDescriptor: msg.HandlerDescriptor,
		Payload:           msg.Payload,
	})
	return nil
}

func (d *Dispatcher) respondToRequest(ctx context.Context, _ Peer, data json.RawMessage) error {
	var msg respondToRequestMessage
	if err := d.decode(data, &msg); err != nil {
		return err
	}
	d.c.Correlator.ForwardReply(ctx, peers.Reply{
		SeqNum:        *msg.SeqNum,
		SrcConnection: msg.SrcConnection,
		Outcome:       replyOutcome(msg.Result, msg.RejectionReason),
	})
	return nil
}

// replyOutcome picks the reply channel from the presence of a result. Any
// present, non-null result selects success, falsy values included, and wins
// over a rejection reason sent alongside it so the requester still gets an
// answer. Without a result the reply is a failure carrying the rejection
// reason, which may be null.
func replyOutcome(result, reason json.RawMessage) peers.Outcome {
	if present(result) {
		return peers.Success(result)
	}
	if !present(reason) {
		reason = nil
	}
	return peers.Failure(reason)
}

func present(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) > 0 && !bytes.Equal(v, []byte("null"))
}

func (d *Dispatcher) postMessage(ctx context.Context, p Peer, data json.RawMessage) error {
	var msg addressedMessage
	if err := d.decode(data, &msg); err != nil {
		return err
	}
	d.c.Relay.Send(ctx, p.ID, resolveRoom(p, msg.Room), peers.EventHandleMessage, data, false)
	return nil
}

func (d *Dispatcher) sendEvent(ctx context.Context, p Peer, data json.RawMessage) error {
	var msg sendEventMessage
	if err := d.decode(data, &msg); err != nil {
		return err
	}
	event := msg.Event
	if !present(event) {
		event = json.RawMessage(`{}`)
	}
	includeSelf := msg.IncludeSelf == nil || *msg.IncludeSelf
	d.c.Relay.Send(ctx, p.ID, resolveRoom(p, msg.Room), peers.EventGeneric, event, !includeSelf)
	return nil
}

func (d *Dispatcher) welcome(ctx context.Context, p Peer, data json.RawMessage) error {
	var msg addressedMessage
	if err := d.decode(data, &msg); err != nil {
		return err
	}
	d.c.Relay.Send(ctx, p.ID, resolveRoom(p, msg.To), peers.EventWelcome, data, false)
	return nil
}

func (d *Dispatcher) disconnect(ctx context.Context, p Peer, _ json.RawMessage) error {
	slog.DebugContext(ctx, "client requested disconnect", slog.String("connection_id", string(p.ID)))
	return ErrDisconnectRequested
}
