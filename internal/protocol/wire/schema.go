package wire

import (
	"fmt"

	"github.com/danmuck/bridgectl/internal/protocol"
)

// Field IDs from the wire contract.
const (
	FieldConnectorID  uint16 = 1
	FieldFunction     uint16 = 2
	FieldEvent        uint16 = 3
	FieldArg          uint16 = 4
	FieldPayload      uint16 = 5
	FieldErrorKind    uint16 = 6
	FieldErrorMessage uint16 = 7
)

// Error kinds carried by result frames.
const (
	ErrKindFunctionNotFound  = "function_not_found"
	ErrKindHandlerError      = "handler_error"
	ErrKindConnectorNotFound = "connector_not_found"
)

type Requirement struct {
	ID   uint16
	Type protocol.FieldType
}

type ValidationError struct {
	MessageType protocol.MessageType
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("wire: message_type=%s: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("wire: message_type=%s field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

// Required fields per message type. Result error/success shape depends on
// header flags, so only the routing field is required statically; the
// rest is checked in ParseResult. Unknown fields are ignored.
var requirements = map[protocol.MessageType][]Requirement{
	protocol.MessageAnnounce: {
		{FieldConnectorID, protocol.FieldString},
	},
	protocol.MessageCall: {
		{FieldConnectorID, protocol.FieldString},
		{FieldFunction, protocol.FieldString},
		{FieldArg, protocol.FieldBytes},
	},
	protocol.MessageResult: {
		{FieldConnectorID, protocol.FieldString},
	},
	protocol.MessageEvent: {
		{FieldConnectorID, protocol.FieldString},
		{FieldEvent, protocol.FieldString},
		{FieldArg, protocol.FieldBytes},
	},
}

// Validate enforces required fields and field types for a message type.
func Validate(messageType protocol.MessageType, fields []protocol.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := protocol.GetField(fields, req.ID)
		if !found {
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	return nil
}
