package transport

import "sync"

// PipeLink is one end of an in-process link pair. Frames sent on one end
// are delivered to the other end's handler by a per-direction goroutine,
// preserving send order. Both ends observe disconnection when either end
// closes.
type PipeLink struct {
	mu      sync.Mutex
	peer    *PipeLink
	handler Handler
	inbox   [][]byte
	wake    chan struct{}
	closed  bool
	started bool
}

// NewPipe returns a connected link pair.
func NewPipe() (*PipeLink, *PipeLink) {
	a := &PipeLink{wake: make(chan struct{}, 1)}
	b := &PipeLink{wake: make(chan struct{}, 1)}
	a.peer = b
	b.peer = a
	return a, b
}

// Bind attaches the handler for frames addressed to this end and starts
// delivery. Frames received before Bind are queued.
func (l *PipeLink) Bind(h Handler) {
	l.mu.Lock()
	l.handler = h
	start := !l.started
	l.started = true
	l.mu.Unlock()
	if start {
		go l.run()
	}
}

func (l *PipeLink) Send(connectorID string, raw []byte) error {
	buf := make([]byte, len(raw))
	copy(buf, raw)

	p := l.peer
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrLinkClosed
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrLinkClosed
	}
	p.inbox = append(p.inbox, buf)
	p.mu.Unlock()
	p.signal()
	return nil
}

// Close tears down both ends. Each handler gets queued frames first,
// then exactly one HandleDisconnect.
func (l *PipeLink) Close() error {
	l.markClosed()
	l.peer.markClosed()
	return nil
}

func (l *PipeLink) markClosed() {
	l.mu.Lock()
	already := l.closed
	l.closed = true
	started := l.started
	l.mu.Unlock()
	if already {
		return
	}
	if started {
		l.signal()
		return
	}
	// Never bound: nothing will drain the inbox, nobody to notify.
}

func (l *PipeLink) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *PipeLink) run() {
	for {
		l.mu.Lock()
		batch := l.inbox
		l.inbox = nil
		closed := l.closed
		h := l.handler
		l.mu.Unlock()

		for _, raw := range batch {
			h.HandleFrame(raw)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			h.HandleDisconnect(ErrLinkClosed)
			return
		}
		<-l.wake
	}
}
