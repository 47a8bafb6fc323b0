package protocol

// Wire identity constants.
const (
	Magic      uint32 = 0x42524447 // "BRDG"
	Version    uint16 = 1
	HeaderSize uint16 = 32
)

// Frame flags.
const (
	FlagIsResponse uint32 = 0x01
	FlagIsError    uint32 = 0x02
)

// MessageType identifies the bridge message carried by a frame.
type MessageType uint32

const (
	MessageAnnounce MessageType = 1
	MessageCall     MessageType = 2
	MessageResult   MessageType = 3
	MessageEvent    MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case MessageAnnounce:
		return "announce"
	case MessageCall:
		return "call"
	case MessageResult:
		return "result"
	case MessageEvent:
		return "event"
	default:
		return "unknown"
	}
}

// FieldType identifies the value encoding of one TLV field.
type FieldType uint8

const (
	FieldUint8  FieldType = 1
	FieldUint16 FieldType = 2
	FieldUint32 FieldType = 3
	FieldUint64 FieldType = 4
	FieldBool   FieldType = 5
	FieldString FieldType = 6
	FieldBytes  FieldType = 7
)

// Header is the fixed wire header. MessageID carries the call correlation
// ID for call/result frames and is zero for uncorrelated messages.
type Header struct {
	Magic       uint32
	Version     uint16
	HeaderLen   uint16
	MessageID   uint64
	MessageType MessageType
	Flags       uint32
	PayloadLen  uint64
}

// Field is one TLV field.
type Field struct {
	ID    uint16
	Type  FieldType
	Value []byte
}

// Message is one complete wire message.
type Message struct {
	Header Header
	Fields []Field
}

// Limits constrains decode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 8 * 1024 * 1024}
}
