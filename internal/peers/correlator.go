package peers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/windowpeers/backend/internal/bus"
)

// Request is one leg of a cross-window call, as delivered to the destination.
type Request struct {
	SeqNum            int64           `json:"seqNum"`
	SrcConnection     bus.ConnID      `json:"srcConnection"`
	DstConnection     bus.ConnID      `json:"dstConnection"`
	HandlerDescriptor string          `json:"handlerDescriptor"`
	Payload           json.RawMessage `json:"payload"`
}

// Outcome is the result of a request: either a success value or a rejection
// reason. The zero Outcome is a failure with no reason.
type Outcome struct {
	ok    bool
	value json.RawMessage
}

// Success returns a successful Outcome carrying result. Any JSON value is a
// valid result, including 0, false and "".
func Success(result json.RawMessage) Outcome {
	return Outcome{ok: true, value: result}
}

// Failure returns a failed Outcome carrying reason.
func Failure(reason json.RawMessage) Outcome {
	return Outcome{value: reason}
}

// OK reports whether o is a success.
func (o Outcome) OK() bool { return o.ok }

// Value returns the result or the rejection reason.
func (o Outcome) Value() json.RawMessage { return o.value }

// Reply answers the request identified by SeqNum and SrcConnection.
type Reply struct {
	SeqNum        int64
	SrcConnection bus.ConnID
	Outcome       Outcome
}

type successPayload struct {
	SeqNum        int64           `json:"seqNum"`
	SrcConnection bus.ConnID      `json:"srcConnection"`
	Result        json.RawMessage `json:"result"`
}

type errorPayload struct {
	SeqNum          int64           `json:"seqNum"`
	SrcConnection   bus.ConnID      `json:"srcConnection"`
	RejectionReason json.RawMessage `json:"rejectionReason"`
}

// Correlator routes both legs of a cross-window call. It keeps no state
// between them: the destination echoes SeqNum and SrcConnection back in its
// reply. Requests whose reply never comes are not tracked or timed out.
type Correlator struct {
	bus    RoomBus
	events Events
}

// NewCorrelator creates a Correlator over b.
func NewCorrelator(b RoomBus, events Events) *Correlator {
	return &Correlator{bus: b, events: events}
}

// ForwardRequest delivers req to its destination with SrcConnection set to
// src, whatever the caller put there.
func (c *Correlator) ForwardRequest(ctx context.Context, src bus.ConnID, req Request) {
	req.SrcConnection = src
	emitJSON(c.bus, c.events, bus.ConnRoom(req.DstConnection), EventHandleRequest, req, "")
	slog.DebugContext(ctx, "request forwarded",
		slog.Int64("seq_num", req.SeqNum),
		slog.String("src", string(src)),
		slog.String("dst", string(req.DstConnection)),
	)
}

// ForwardReply delivers reply to the original requester on the success or
// error channel according to its Outcome.
func (c *Correlator) ForwardReply(ctx context.Context, reply Reply) {
	room := bus.ConnRoom(reply.SrcConnection)
	if reply.Outcome.OK() {
		emitJSON(c.bus, c.events, room, EventSuccess, successPayload{
			SeqNum:        reply.SeqNum,
			SrcConnection: reply.SrcConnection,
			Result:        reply.Outcome.Value(),
		}, "")
	} else {
		emitJSON(c.bus, c.events, room, EventError, errorPayload{
			SeqNum:          reply.SeqNum,
			SrcConnection:   reply.SrcConnection,
			RejectionReason: reply.Outcome.Value(),
		}, "")
	}
	slog.DebugContext(ctx, "reply forwarded",
		slog.Int64("seq_num", reply.SeqNum),
		slog.String("src", string(reply.SrcConnection)),
		slog.Bool("success", reply.Outcome.OK()),
	)
}
