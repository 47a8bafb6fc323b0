package bridge

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/bridgectl/internal/observability"
	"github.com/danmuck/bridgectl/internal/protocol"
	"github.com/danmuck/bridgectl/internal/protocol/wire"
	"github.com/danmuck/bridgectl/internal/transport"
)

// Bridge routes one transport session's frames to its connectors. It
// implements transport.Handler; wiring is: construct the bridge over a
// link, then bind the bridge as the link's handler before creating
// connectors.
type Bridge struct {
	link     transport.Link
	registry *Registry
	ann      *announcements
	limits   protocol.Limits

	downOnce sync.Once
	down     chan struct{}
	downErr  error
}

func New(link transport.Link) *Bridge {
	return &Bridge{
		link:     link,
		registry: NewRegistry(),
		ann:      newAnnouncements(),
		limits:   protocol.DefaultLimits(),
		down:     make(chan struct{}),
	}
}

// Registry exposes the connector table for wiring and introspection.
func (b *Bridge) Registry() *Registry { return b.registry }

// Done is closed when the underlying session disconnects.
func (b *Bridge) Done() <-chan struct{} { return b.down }

// Err returns the disconnect cause, or nil while the session is live.
func (b *Bridge) Err() error {
	select {
	case <-b.down:
		return b.downErr
	default:
		return nil
	}
}

// CreateConnector registers id with the given exports, announces it to
// the peer, and blocks until the peer has announced the same ID. The
// core imposes no timeout of its own; cancel ctx to stop waiting, which
// releases the registration. A second create for a live id fails with
// ErrDuplicateConnector.
func (b *Bridge) CreateConnector(ctx context.Context, id string, exports map[string]Handler) (*Connector, error) {
	select {
	case <-b.down:
		return nil, ErrPeerDisconnected
	default:
	}

	c := newConnector(b, id, exports)
	if err := b.registry.Register(id, c); err != nil {
		c.terminate(err)
		return nil, err
	}
	if b.ann.consume(id) {
		c.markPeerReady()
	}

	frame, err := wire.EncodeAnnounce(wire.Announce{ConnectorID: id})
	if err != nil {
		b.registry.Unregister(id)
		c.terminate(err)
		return nil, err
	}
	if err := b.send(id, frame, "announce"); err != nil {
		b.registry.Unregister(id)
		c.terminate(err)
		return nil, err
	}

	select {
	case <-c.ready:
		log.Info().Str("connector_id", id).Msg("connector handshake complete")
		return c, nil
	case <-c.term:
		return nil, c.termErr
	case <-ctx.Done():
		b.registry.Unregister(id)
		c.terminate(ErrConnectorClosed)
		return nil, ctx.Err()
	}
}

// HandleFrame implements transport.Handler. Malformed frames are logged
// and dropped; well-formed frames route by connector ID.
func (b *Bridge) HandleFrame(raw []byte) {
	msg, err := protocol.DecodeBytes(raw, b.limits)
	if err != nil {
		log.Warn().Err(err).Msg("dropping undecodable frame")
		return
	}
	observability.RecordFrame("in", msg.Header.MessageType.String())

	switch msg.Header.MessageType {
	case protocol.MessageAnnounce:
		a, err := wire.ParseAnnounce(msg)
		if err != nil {
			log.Warn().Err(err).Msg("dropping invalid announce")
			return
		}
		b.handleAnnounce(a)
	case protocol.MessageCall:
		call, err := wire.ParseCall(msg)
		if err != nil {
			log.Warn().Err(err).Msg("dropping invalid call")
			return
		}
		b.handleCall(call)
	case protocol.MessageResult:
		res, err := wire.ParseResult(msg)
		if err != nil {
			log.Warn().Err(err).Msg("dropping invalid result")
			return
		}
		b.handleResult(res)
	case protocol.MessageEvent:
		event, err := wire.ParseEvent(msg)
		if err != nil {
			log.Warn().Err(err).Msg("dropping invalid event")
			return
		}
		b.handleEvent(event)
	default:
		log.Warn().
			Uint32("message_type", uint32(msg.Header.MessageType)).
			Msg("dropping frame with unknown message type")
	}
}

// HandleDisconnect implements transport.Handler. Session loss is the
// single terminal event: every pending call on every connector fails
// with ErrPeerDisconnected and parked handshakes give up.
func (b *Bridge) HandleDisconnect(err error) {
	b.downOnce.Do(func() {
		b.downErr = err
		close(b.down)
		b.ann.reset()
		for _, c := range b.registry.All() {
			c.terminate(ErrPeerDisconnected)
		}
		log.Warn().Err(err).Msg("bridge session disconnected")
	})
}

func (b *Bridge) handleAnnounce(a wire.Announce) {
	if c, ok := b.registry.Lookup(a.ConnectorID); ok {
		c.markPeerReady()
		return
	}
	// Peer announced before the local create; park it for consumption.
	b.ann.buffer(a.ConnectorID)
	log.Debug().Str("connector_id", a.ConnectorID).Msg("buffered peer announcement")
}

func (b *Bridge) handleCall(call wire.Call) {
	c, ok := b.registry.Lookup(call.ConnectorID)
	if !ok {
		// The dispatcher never drops a request silently: a call for an
		// id with no live local connector still gets its one result.
		b.sendResult(wire.Result{
			ConnectorID: call.ConnectorID,
			CallID:      call.CallID,
			IsError:     true,
			ErrKind:     wire.ErrKindConnectorNotFound,
			ErrMessage:  call.ConnectorID,
		})
		return
	}
	go c.serveCall(call)
}

func (b *Bridge) handleResult(res wire.Result) {
	c, ok := b.registry.Lookup(res.ConnectorID)
	if !ok {
		log.Debug().
			Str("connector_id", res.ConnectorID).
			Uint64("call_id", res.CallID).
			Msg("result for unknown connector dropped")
		return
	}
	c.resolveResult(res)
}

func (b *Bridge) handleEvent(event wire.Event) {
	c, ok := b.registry.Lookup(event.ConnectorID)
	if !ok {
		log.Debug().
			Str("connector_id", event.ConnectorID).
			Str("event", event.Name).
			Msg("event for unknown connector dropped")
		return
	}
	c.enqueueEvent(event)
}

func (b *Bridge) send(connectorID string, raw []byte, msgType string) error {
	if err := b.link.Send(connectorID, raw); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	observability.RecordFrame("out", msgType)
	return nil
}

func (b *Bridge) sendResult(res wire.Result) {
	frame, err := wire.EncodeResult(res)
	if err != nil {
		log.Error().
			Str("connector_id", res.ConnectorID).
			Uint64("call_id", res.CallID).
			Err(err).
			Msg("encode result failed")
		return
	}
	if err := b.send(res.ConnectorID, frame, "result"); err != nil {
		log.Warn().
			Str("connector_id", res.ConnectorID).
			Uint64("call_id", res.CallID).
			Err(err).
			Msg("send result failed")
	}
}
