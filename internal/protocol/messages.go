package protocol

import (
	"encoding/json"

	"github.com/windowpeers/backend/internal/bus"
)

// Frame is the unit exchanged on a connection in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names, before the configured prefix is applied.
const (
	EventJoin              = "join"
	EventPublishMapping    = "publishMapping"
	EventMakeRequest       = "makeRequest"
	EventRespondToRequest  = "respondToRequest"
	EventPostMessage       = "postMessage"
	EventSendEvent         = "sendEvent"
	EventWelcome           = "welcome"
	EventDisconnectRequest = "disconnectRequest"
	EventDepart            = "depart"
)

type joinMessage struct {
	Birthday json.RawMessage `json:"birthday"`
}

type publishMappingMessage struct {
	Mapping map[string]bus.ConnID `json:"mapping" validate:"required"`
	Room    string                `json:"room" validate:"required"`
}

type makeRequestMessage struct {
	SeqNum            *int64          `json:"seqNum" validate:"required"`
	DstConnection     bus.ConnID      `json:"dstConnection" validate:"required"`
	HandlerDescriptor string          `json:"handlerDescriptor"`
	Payload           json.RawMessage `json:"payload"`
}

type respondToRequestMessage struct {
	SeqNum          *int64          `json:"seqNum" validate:"required"`
	SrcConnection   bus.ConnID      `json:"srcConnection" validate:"required"`
	Result          json.RawMessage `json:"result"`
	RejectionReason json.RawMessage `json:"rejectionReason"`
}

// addressedMessage picks the routing fields out of a message that is
// otherwise relayed verbatim.
type addressedMessage struct {
	Room string `json:"room"`
	To   string `json:"to"`
}

type sendEventMessage struct {
	Event       json.RawMessage `json:"event"`
	Room        string          `json:"room"`
	IncludeSelf *bool           `json:"includeSelf"`
}
