package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danmuck/bridgectl/internal/protocol"
)

// Announce is the connector-ready declaration sent by each side once it
// has registered an ID locally.
type Announce struct {
	ConnectorID string
}

func (a Announce) Validate() error {
	if strings.TrimSpace(a.ConnectorID) == "" {
		return fmt.Errorf("announce missing connector_id")
	}
	return nil
}

// Call is one correlated request. CallID rides in the frame header.
type Call struct {
	ConnectorID string
	CallID      uint64
	Function    string
	Arg         json.RawMessage
	Payload     []byte
}

func (c Call) Validate() error {
	if strings.TrimSpace(c.ConnectorID) == "" {
		return fmt.Errorf("call missing connector_id")
	}
	if c.CallID == 0 {
		return fmt.Errorf("call missing call_id")
	}
	if strings.TrimSpace(c.Function) == "" {
		return fmt.Errorf("call missing function")
	}
	if len(c.Arg) == 0 {
		return fmt.Errorf("call missing arg")
	}
	return nil
}

// Result answers exactly one Call, matched by CallID. On failure ErrKind
// and ErrMessage are set and Value/Payload are absent.
type Result struct {
	ConnectorID string
	CallID      uint64
	Value       json.RawMessage
	Payload     []byte
	IsError     bool
	ErrKind     string
	ErrMessage  string
}

func (r Result) Validate() error {
	if strings.TrimSpace(r.ConnectorID) == "" {
		return fmt.Errorf("result missing connector_id")
	}
	if r.CallID == 0 {
		return fmt.Errorf("result missing call_id")
	}
	if r.IsError {
		if strings.TrimSpace(r.ErrKind) == "" {
			return fmt.Errorf("result missing error_kind")
		}
		return nil
	}
	if len(r.Value) == 0 {
		return fmt.Errorf("result missing value")
	}
	return nil
}

// Event is one fire-and-forget notification. No correlation, no ack.
type Event struct {
	ConnectorID string
	Name        string
	Arg         json.RawMessage
	Payload     []byte
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.ConnectorID) == "" {
		return fmt.Errorf("event missing connector_id")
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("event missing name")
	}
	if len(e.Arg) == 0 {
		return fmt.Errorf("event missing arg")
	}
	return nil
}

// EncodeAnnounce encodes a connector-ready frame.
func EncodeAnnounce(a Announce) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return protocol.EncodeBytes(&protocol.Message{
		Header: protocol.Header{MessageType: protocol.MessageAnnounce},
		Fields: []protocol.Field{
			protocol.NewFieldString(FieldConnectorID, a.ConnectorID),
		},
	})
}

// EncodeCall encodes a call request frame. The structured argument and
// the optional binary payload travel in separate fields.
func EncodeCall(c Call) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	fields := []protocol.Field{
		protocol.NewFieldString(FieldConnectorID, c.ConnectorID),
		protocol.NewFieldString(FieldFunction, c.Function),
		protocol.NewFieldBytes(FieldArg, c.Arg),
	}
	if c.Payload != nil {
		fields = append(fields, protocol.NewFieldBytes(FieldPayload, c.Payload))
	}
	return protocol.EncodeBytes(&protocol.Message{
		Header: protocol.Header{
			MessageID:   c.CallID,
			MessageType: protocol.MessageCall,
		},
		Fields: fields,
	})
}

// EncodeResult encodes the response frame for one call.
func EncodeResult(r Result) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	flags := protocol.FlagIsResponse
	fields := []protocol.Field{
		protocol.NewFieldString(FieldConnectorID, r.ConnectorID),
	}
	if r.IsError {
		flags |= protocol.FlagIsError
		fields = append(fields,
			protocol.NewFieldString(FieldErrorKind, r.ErrKind),
			protocol.NewFieldString(FieldErrorMessage, r.ErrMessage),
		)
	} else {
		fields = append(fields, protocol.NewFieldBytes(FieldArg, r.Value))
		if r.Payload != nil {
			fields = append(fields, protocol.NewFieldBytes(FieldPayload, r.Payload))
		}
	}
	return protocol.EncodeBytes(&protocol.Message{
		Header: protocol.Header{
			MessageID:   r.CallID,
			MessageType: protocol.MessageResult,
			Flags:       flags,
		},
		Fields: fields,
	})
}

// EncodeEvent encodes a fire-and-forget event frame.
func EncodeEvent(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	fields := []protocol.Field{
		protocol.NewFieldString(FieldConnectorID, e.ConnectorID),
		protocol.NewFieldString(FieldEvent, e.Name),
		protocol.NewFieldBytes(FieldArg, e.Arg),
	}
	if e.Payload != nil {
		fields = append(fields, protocol.NewFieldBytes(FieldPayload, e.Payload))
	}
	return protocol.EncodeBytes(&protocol.Message{
		Header: protocol.Header{MessageType: protocol.MessageEvent},
		Fields: fields,
	})
}

// ParseAnnounce extracts an Announce from a decoded message.
func ParseAnnounce(msg *protocol.Message) (Announce, error) {
	if err := Validate(protocol.MessageAnnounce, msg.Fields); err != nil {
		return Announce{}, err
	}
	return Announce{ConnectorID: requiredString(msg.Fields, FieldConnectorID)}, nil
}

// ParseCall extracts a Call from a decoded message.
func ParseCall(msg *protocol.Message) (Call, error) {
	if err := Validate(protocol.MessageCall, msg.Fields); err != nil {
		return Call{}, err
	}
	call := Call{
		ConnectorID: requiredString(msg.Fields, FieldConnectorID),
		CallID:      msg.Header.MessageID,
		Function:    requiredString(msg.Fields, FieldFunction),
		Arg:         requiredBytes(msg.Fields, FieldArg),
	}
	payload, ok, err := optionalBytes(msg.Fields, FieldPayload)
	if err != nil {
		return Call{}, err
	}
	if ok {
		call.Payload = payload
	}
	if err := call.Validate(); err != nil {
		return Call{}, err
	}
	return call, nil
}

// ParseResult extracts a Result from a decoded message. The error shape
// is chosen by the frame's error flag.
func ParseResult(msg *protocol.Message) (Result, error) {
	if err := Validate(protocol.MessageResult, msg.Fields); err != nil {
		return Result{}, err
	}
	result := Result{
		ConnectorID: requiredString(msg.Fields, FieldConnectorID),
		CallID:      msg.Header.MessageID,
	}
	if msg.Header.Flags&protocol.FlagIsError != 0 {
		result.IsError = true
		result.ErrKind = requiredString(msg.Fields, FieldErrorKind)
		result.ErrMessage = optionalString(msg.Fields, FieldErrorMessage)
	} else {
		result.Value = requiredBytes(msg.Fields, FieldArg)
		payload, ok, err := optionalBytes(msg.Fields, FieldPayload)
		if err != nil {
			return Result{}, err
		}
		if ok {
			result.Payload = payload
		}
	}
	if err := result.Validate(); err != nil {
		return Result{}, err
	}
	return result, nil
}

// ParseEvent extracts an Event from a decoded message.
func ParseEvent(msg *protocol.Message) (Event, error) {
	if err := Validate(protocol.MessageEvent, msg.Fields); err != nil {
		return Event{}, err
	}
	event := Event{
		ConnectorID: requiredString(msg.Fields, FieldConnectorID),
		Name:        requiredString(msg.Fields, FieldEvent),
		Arg:         requiredBytes(msg.Fields, FieldArg),
	}
	payload, ok, err := optionalBytes(msg.Fields, FieldPayload)
	if err != nil {
		return Event{}, err
	}
	if ok {
		event.Payload = payload
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

func requiredString(fields []protocol.Field, id uint16) string {
	f, _ := protocol.GetField(fields, id)
	return string(f.Value)
}

func optionalString(fields []protocol.Field, id uint16) string {
	f, ok := protocol.GetField(fields, id)
	if !ok {
		return ""
	}
	return string(f.Value)
}

func requiredBytes(fields []protocol.Field, id uint16) []byte {
	f, _ := protocol.GetField(fields, id)
	buf := make([]byte, len(f.Value))
	copy(buf, f.Value)
	return buf
}

func optionalBytes(fields []protocol.Field, id uint16) ([]byte, bool, error) {
	f, ok := protocol.GetField(fields, id)
	if !ok {
		return nil, false, nil
	}
	buf, err := f.Bytes()
	if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}
