package wire

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/danmuck/bridgectl/internal/protocol"
)

func decode(t *testing.T, raw []byte) *protocol.Message {
	t.Helper()
	msg, err := protocol.DecodeBytes(raw, protocol.DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestAnnounceRoundTrip(t *testing.T) {
	raw, err := EncodeAnnounce(Announce{ConnectorID: "bridge.core"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseAnnounce(decode(t, raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ConnectorID != "bridge.core" {
		t.Fatalf("connector id mismatch: %q", got.ConnectorID)
	}
}

func TestCallRoundTripWithPayload(t *testing.T) {
	payload := []byte{0x00, 0xff, 0x10}
	raw, err := EncodeCall(Call{
		ConnectorID: "bridge.core",
		CallID:      7,
		Function:    "fs.read",
		Arg:         json.RawMessage(`{"path":"/tmp/x"}`),
		Payload:     payload,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := ParseCall(decode(t, raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.CallID != 7 || got.Function != "fs.read" {
		t.Fatalf("call fields mismatch: %+v", got)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("payload mismatch: %v", got.Payload)
	}
}

func TestCallWithoutPayloadDecodesNil(t *testing.T) {
	raw, err := EncodeCall(Call{
		ConnectorID: "bridge.core",
		CallID:      1,
		Function:    "bridge.ping",
		Arg:         json.RawMessage("null"),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseCall(decode(t, raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Payload != nil {
		t.Fatalf("expected nil payload, got %v", got.Payload)
	}
}

func TestCallEmptyPayloadStaysPresent(t *testing.T) {
	raw, err := EncodeCall(Call{
		ConnectorID: "bridge.core",
		CallID:      2,
		Function:    "bridge.echo",
		Arg:         json.RawMessage("null"),
		Payload:     []byte{},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseCall(decode(t, raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Payload == nil || len(got.Payload) != 0 {
		t.Fatalf("expected empty non-nil payload, got %v", got.Payload)
	}
}

func TestResultSuccessRoundTrip(t *testing.T) {
	raw, err := EncodeResult(Result{
		ConnectorID: "bridge.core",
		CallID:      9,
		Value:       json.RawMessage(`{"ok":true}`),
		Payload:     []byte{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	msg := decode(t, raw)
	if msg.Header.Flags&protocol.FlagIsResponse == 0 {
		t.Fatalf("response flag missing")
	}
	if msg.Header.Flags&protocol.FlagIsError != 0 {
		t.Fatalf("error flag set on success")
	}

	got, err := ParseResult(msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.IsError || got.CallID != 9 {
		t.Fatalf("result mismatch: %+v", got)
	}
	if string(got.Value) != `{"ok":true}` {
		t.Fatalf("value mismatch: %s", got.Value)
	}
	if !bytes.Equal(got.Payload, []byte{1, 2, 3}) {
		t.Fatalf("payload mismatch: %v", got.Payload)
	}
}

func TestResultErrorRoundTrip(t *testing.T) {
	raw, err := EncodeResult(Result{
		ConnectorID: "bridge.core",
		CallID:      3,
		IsError:     true,
		ErrKind:     ErrKindFunctionNotFound,
		ErrMessage:  "fs.read",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := ParseResult(decode(t, raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.IsError {
		t.Fatalf("expected error result")
	}
	if got.ErrKind != ErrKindFunctionNotFound || got.ErrMessage != "fs.read" {
		t.Fatalf("error shape mismatch: %+v", got)
	}
	if got.Value != nil || got.Payload != nil {
		t.Fatalf("error result carries value or payload: %+v", got)
	}
}

func TestEventRoundTrip(t *testing.T) {
	raw, err := EncodeEvent(Event{
		ConnectorID: "bridge.core",
		Name:        "download.progress",
		Arg:         json.RawMessage(`{"pct":50}`),
		Payload:     []byte{0xde, 0xad},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := ParseEvent(decode(t, raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Name != "download.progress" {
		t.Fatalf("event name mismatch: %q", got.Name)
	}
	if !bytes.Equal(got.Payload, []byte{0xde, 0xad}) {
		t.Fatalf("payload mismatch: %v", got.Payload)
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	if _, err := EncodeAnnounce(Announce{}); err == nil {
		t.Fatalf("expected error for blank connector id")
	}
	if _, err := EncodeCall(Call{ConnectorID: "c", Function: "f", Arg: json.RawMessage("1")}); err == nil {
		t.Fatalf("expected error for zero call id")
	}
	if _, err := EncodeResult(Result{ConnectorID: "c", CallID: 1, IsError: true}); err == nil {
		t.Fatalf("expected error for error result without kind")
	}
	if _, err := EncodeEvent(Event{ConnectorID: "c", Arg: json.RawMessage("1")}); err == nil {
		t.Fatalf("expected error for blank event name")
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	fields := []protocol.Field{
		protocol.NewFieldString(FieldConnectorID, "bridge.core"),
	}
	err := Validate(protocol.MessageCall, fields)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.FieldID != FieldFunction {
		t.Fatalf("expected field %d flagged, got %d", FieldFunction, verr.FieldID)
	}
}

func TestValidateIgnoresUnknownFields(t *testing.T) {
	fields := []protocol.Field{
		protocol.NewFieldString(FieldConnectorID, "bridge.core"),
		protocol.NewFieldUint32(99, 123),
	}
	if err := Validate(protocol.MessageAnnounce, fields); err != nil {
		t.Fatalf("unknown field should be ignored: %v", err)
	}
}
