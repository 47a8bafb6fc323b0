package transport

import "errors"

var ErrLinkClosed = errors.New("transport: link closed")

// Handler receives inbound frames and the single disconnect notification
// for one link. HandleDisconnect is invoked at most once, after all
// frames delivered before the disconnect.
type Handler interface {
	HandleFrame(raw []byte)
	HandleDisconnect(err error)
}

// Link sends opaque frames to the peer process. The connector ID is
// routing metadata for adapters that keep per-connector queues; stream
// adapters may ignore it since the frame itself carries the ID.
type Link interface {
	Send(connectorID string, raw []byte) error
	Close() error
}
