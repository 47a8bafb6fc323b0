package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestRoundTripEncodeDecode(t *testing.T) {
	msg := &Message{
		Header: Header{
			MessageID:   42,
			MessageType: MessageCall,
			Flags:       FlagIsResponse,
		},
		Fields: []Field{
			NewFieldString(1, "bridge.core"),
			NewFieldUint64(2, 99),
			NewFieldBytes(5, []byte{0x01, 0x02, 0x00}),
		},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, msg); err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(bytes.NewReader(buf.Bytes()), DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var buf2 bytes.Buffer
	if err := Encode(&buf2, decoded); err != nil {
		t.Fatalf("re-encode: %v", err)
	}

	if !bytes.Equal(buf.Bytes(), buf2.Bytes()) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	msg := &Message{Header: Header{MessageID: 1, MessageType: MessageAnnounce}}
	raw, err := EncodeBytes(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[0], raw[1], raw[2], raw[3] = 0, 0, 0, 0

	_, err = DecodeBytes(raw, DefaultLimits())
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	msg := &Message{Header: Header{MessageID: 1, MessageType: MessageAnnounce}}
	raw, err := EncodeBytes(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	binary.BigEndian.PutUint16(raw[4:6], Version+1)

	_, err = DecodeBytes(raw, DefaultLimits())
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	msg := &Message{
		Header: Header{MessageID: 1, MessageType: MessageEvent},
		Fields: []Field{NewFieldString(3, "log")},
	}
	raw, err := EncodeBytes(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeBytes(raw[:len(raw)-2], DefaultLimits())
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDecodeInvalidFieldLength(t *testing.T) {
	payload := make([]byte, fieldHeaderSize+1)
	binary.BigEndian.PutUint16(payload[0:2], 5)
	payload[2] = byte(FieldBytes)
	binary.BigEndian.PutUint32(payload[3:7], 9)
	payload[7] = 0xff

	head := encodeHeader(Header{
		Magic:       Magic,
		Version:     Version,
		HeaderLen:   HeaderSize,
		MessageType: MessageCall,
		PayloadLen:  uint64(len(payload)),
	})
	raw := append(head, payload...)

	_, err := DecodeBytes(raw, DefaultLimits())
	if !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestDecodePayloadTooLarge(t *testing.T) {
	msg := &Message{
		Header: Header{MessageID: 1, MessageType: MessageCall},
		Fields: []Field{NewFieldBytes(5, make([]byte, 64))},
	}
	raw, err := EncodeBytes(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeBytes(raw, Limits{MaxPayloadBytes: 16})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeZeroLengthFieldIsPresent(t *testing.T) {
	msg := &Message{
		Header: Header{MessageID: 7, MessageType: MessageResult},
		Fields: []Field{NewFieldBytes(5, []byte{})},
	}
	raw, err := EncodeBytes(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeBytes(raw, DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	f, ok := GetField(decoded.Fields, 5)
	if !ok {
		t.Fatalf("expected field 5 present")
	}
	if f.Value == nil || len(f.Value) != 0 {
		t.Fatalf("expected non-nil empty value, got %v", f.Value)
	}
}

func TestReadRawCutsStreamIntoFrames(t *testing.T) {
	var stream bytes.Buffer
	first := &Message{
		Header: Header{MessageID: 1, MessageType: MessageCall},
		Fields: []Field{NewFieldString(2, "fn.a")},
	}
	second := &Message{
		Header: Header{MessageID: 2, MessageType: MessageEvent},
		Fields: []Field{NewFieldString(3, "ev.b")},
	}
	if err := Encode(&stream, first); err != nil {
		t.Fatalf("encode first: %v", err)
	}
	if err := Encode(&stream, second); err != nil {
		t.Fatalf("encode second: %v", err)
	}

	rawFirst, err := ReadRaw(&stream, DefaultLimits())
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	rawSecond, err := ReadRaw(&stream, DefaultLimits())
	if err != nil {
		t.Fatalf("read second: %v", err)
	}

	m1, err := DecodeBytes(rawFirst, DefaultLimits())
	if err != nil {
		t.Fatalf("decode first: %v", err)
	}
	m2, err := DecodeBytes(rawSecond, DefaultLimits())
	if err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if m1.Header.MessageID != 1 || m2.Header.MessageID != 2 {
		t.Fatalf("frame order lost: %d, %d", m1.Header.MessageID, m2.Header.MessageID)
	}
}

func TestFieldAccessorTypeMismatch(t *testing.T) {
	f := NewFieldString(1, "not-a-number")
	if _, err := f.Uint64(); !errors.Is(err, ErrFieldTypeMismatch) {
		t.Fatalf("expected ErrFieldTypeMismatch, got %v", err)
	}
	if _, err := f.Bytes(); !errors.Is(err, ErrFieldTypeMismatch) {
		t.Fatalf("expected ErrFieldTypeMismatch, got %v", err)
	}
}

func TestFieldBytesCopiesValue(t *testing.T) {
	src := []byte{1, 2, 3}
	f := NewFieldBytes(5, src)
	src[0] = 0xff

	got, err := f.Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if got[0] != 1 {
		t.Fatalf("field shares caller buffer")
	}
}
