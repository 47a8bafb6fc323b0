package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/bridgectl/internal/observability"
	"github.com/danmuck/bridgectl/internal/protocol/wire"
)

// Handler serves one named export. It receives the structured argument
// and the optional binary payload (nil when absent) and returns a
// structured result plus at most one binary buffer. Handlers run on
// their own goroutine and must honor ctx, which is cancelled when the
// connector terminates.
type Handler func(ctx context.Context, arg json.RawMessage, payload []byte) (Result, error)

// Result is the outcome of a successful peer call.
type Result struct {
	Value   json.RawMessage
	Payload []byte
}

// Connector is one side of a named channel between the two processes.
// It becomes usable once the peer has registered the same ID, and turns
// terminal on Close or peer disconnect.
type Connector struct {
	id      string
	bridge  *Bridge
	exports map[string]Handler

	calls     *pendingCalls
	listeners *listenerTable

	ctx    context.Context
	cancel context.CancelFunc

	readyOnce sync.Once
	ready     chan struct{}

	termOnce sync.Once
	term     chan struct{}
	termErr  error

	evMu     sync.Mutex
	evQueue  []wire.Event
	evWake   chan struct{}
	evClosed bool
}

func newConnector(b *Bridge, id string, exports map[string]Handler) *Connector {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connector{
		id:        id,
		bridge:    b,
		exports:   exports,
		calls:     newPendingCalls(),
		listeners: newListenerTable(),
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		term:      make(chan struct{}),
		evWake:    make(chan struct{}, 1),
	}
	go c.eventLoop()
	return c
}

// ID returns the connector's channel name.
func (c *Connector) ID() string { return c.id }

// PeerReady reports whether the creation handshake has completed.
func (c *Connector) PeerReady() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// Close tears the connector down locally: the ID is released for
// re-registration, outstanding calls fail, handlers are cancelled. The
// peer is not notified; it observes failures through its own calls.
func (c *Connector) Close() error {
	c.bridge.registry.Unregister(c.id)
	c.terminate(ErrConnectorClosed)
	return nil
}

// ExecPeer invokes the named function exported by the peer connector
// and blocks until the single matching response arrives. arg is JSON
// serialized; payload, when non-nil, rides alongside uninterpreted.
// Calls issued before the handshake completes wait for it. Concurrent
// calls are independent and may complete in any order.
func (c *Connector) ExecPeer(ctx context.Context, function string, arg any, payload []byte) (Result, error) {
	if err := c.terminated(); err != nil {
		return Result{}, err
	}
	select {
	case <-c.term:
		return Result{}, c.termErr
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-c.ready:
	}
	if err := c.terminated(); err != nil {
		return Result{}, err
	}

	raw, err := marshalArg(arg)
	if err != nil {
		return Result{}, err
	}
	callID, slot := c.calls.add()
	frame, err := wire.EncodeCall(wire.Call{
		ConnectorID: c.id,
		CallID:      callID,
		Function:    function,
		Arg:         raw,
		Payload:     payload,
	})
	if err != nil {
		c.calls.remove(callID)
		return Result{}, err
	}
	if err := c.bridge.send(c.id, frame, "call"); err != nil {
		c.calls.remove(callID)
		return Result{}, err
	}

	select {
	case out := <-slot:
		if out.err != nil {
			return Result{}, out.err
		}
		return Result{Value: out.value, Payload: out.payload}, nil
	case <-ctx.Done():
		// The slot stays allocated: evicting it would free the
		// correlation ID for a spurious later match. The late response
		// resolves into the buffered slot and is dropped.
		return Result{}, ctx.Err()
	case <-c.term:
		return Result{}, c.termErr
	}
}

// TriggerPeer sends a fire-and-forget event to the peer connector. It
// fails only when the link itself cannot send; peer-side listener
// behavior never propagates back.
func (c *Connector) TriggerPeer(name string, arg any, payload []byte) error {
	if err := c.terminated(); err != nil {
		return err
	}
	select {
	case <-c.term:
		return c.termErr
	case <-c.ready:
	}
	raw, err := marshalArg(arg)
	if err != nil {
		return err
	}
	frame, err := wire.EncodeEvent(wire.Event{
		ConnectorID: c.id,
		Name:        name,
		Arg:         raw,
		Payload:     payload,
	})
	if err != nil {
		return err
	}
	return c.bridge.send(c.id, frame, "event")
}

// On registers fn for events named name. Registrations are ordered and
// duplicates are distinct entries.
func (c *Connector) On(name string, fn Listener) Subscription {
	return c.listeners.add(name, fn)
}

// Off removes the registration identified by sub. Unknown subscriptions
// are a no-op.
func (c *Connector) Off(name string, sub Subscription) {
	c.listeners.remove(name, sub)
}

func (c *Connector) markPeerReady() {
	c.readyOnce.Do(func() {
		close(c.ready)
		log.Debug().Str("connector_id", c.id).Msg("connector peer ready")
	})
}

func (c *Connector) terminate(err error) {
	c.termOnce.Do(func() {
		c.termErr = err
		close(c.term)
		c.cancel()
		c.calls.failAll(err)
		c.closeEvents()
		log.Debug().Str("connector_id", c.id).Err(err).Msg("connector terminated")
	})
}

func (c *Connector) terminated() error {
	select {
	case <-c.term:
		return c.termErr
	default:
		return nil
	}
}

// serveCall is the dispatch path for one inbound request. Every request
// produces exactly one result frame, including on handler panic.
func (c *Connector) serveCall(call wire.Call) {
	handler, ok := c.exports[call.Function]
	if !ok {
		observability.RecordCall(c.id, "function_not_found")
		c.bridge.sendResult(wire.Result{
			ConnectorID: c.id,
			CallID:      call.CallID,
			IsError:     true,
			ErrKind:     wire.ErrKindFunctionNotFound,
			ErrMessage:  call.Function,
		})
		return
	}
	c.bridge.sendResult(c.invoke(handler, call))
}

func (c *Connector) invoke(handler Handler, call wire.Call) (out wire.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("connector_id", c.id).
				Str("function", call.Function).
				Interface("panic", r).
				Msg("export handler panicked")
			observability.RecordCall(c.id, "panic")
			out = wire.Result{
				ConnectorID: c.id,
				CallID:      call.CallID,
				IsError:     true,
				ErrKind:     wire.ErrKindHandlerError,
				ErrMessage:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	result, err := handler(c.ctx, call.Arg, call.Payload)
	if err != nil {
		kind, msg := wire.ErrKindHandlerError, err.Error()
		var remote *RemoteError
		if errors.As(err, &remote) {
			kind, msg = remote.Kind, remote.Message
		}
		observability.RecordCall(c.id, "error")
		return wire.Result{
			ConnectorID: c.id,
			CallID:      call.CallID,
			IsError:     true,
			ErrKind:     kind,
			ErrMessage:  msg,
		}
	}

	value := result.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	observability.RecordCall(c.id, "ok")
	return wire.Result{
		ConnectorID: c.id,
		CallID:      call.CallID,
		Value:       value,
		Payload:     result.Payload,
	}
}

func (c *Connector) resolveResult(res wire.Result) {
	var out callOutcome
	if res.IsError {
		switch res.ErrKind {
		case wire.ErrKindFunctionNotFound:
			out.err = fmt.Errorf("%w: %s", ErrFunctionNotFound, res.ErrMessage)
		default:
			out.err = &RemoteError{Kind: res.ErrKind, Message: res.ErrMessage}
		}
	} else {
		out.value = res.Value
		out.payload = res.Payload
	}
	if !c.calls.resolve(res.CallID, out) {
		log.Debug().
			Str("connector_id", c.id).
			Uint64("call_id", res.CallID).
			Msg("result without pending call dropped")
	}
}

func (c *Connector) enqueueEvent(e wire.Event) {
	c.evMu.Lock()
	if c.evClosed {
		c.evMu.Unlock()
		return
	}
	c.evQueue = append(c.evQueue, e)
	c.evMu.Unlock()
	c.wakeEvents()
}

func (c *Connector) closeEvents() {
	c.evMu.Lock()
	c.evClosed = true
	c.evMu.Unlock()
	c.wakeEvents()
}

func (c *Connector) wakeEvents() {
	select {
	case c.evWake <- struct{}{}:
	default:
	}
}

// eventLoop drains the inbound event queue on a single goroutine so
// listener execution never blocks frame dispatch, while deliveries for
// one connector stay in arrival order.
func (c *Connector) eventLoop() {
	for {
		c.evMu.Lock()
		batch := c.evQueue
		c.evQueue = nil
		closed := c.evClosed
		c.evMu.Unlock()

		for _, e := range batch {
			c.deliverEvent(e)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-c.evWake
	}
}

// deliverEvent runs the currently registered listeners in registration
// order. A listener panic is isolated: later listeners still run and
// nothing propagates to the sender.
func (c *Connector) deliverEvent(e wire.Event) {
	for _, fn := range c.listeners.snapshot(e.Name) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Str("connector_id", c.id).
						Str("event", e.Name).
						Interface("panic", r).
						Msg("event listener panicked")
				}
			}()
			fn(e.Arg, e.Payload)
		}()
	}
	observability.RecordEventDelivered(c.id)
}

func marshalArg(arg any) (json.RawMessage, error) {
	switch v := arg.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage("null"), nil
		}
		return v, nil
	default:
		raw, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("bridge: marshal arg: %w", err)
		}
		return raw, nil
	}
}
