package bridge

import (
	"encoding/json"
	"sync"
)

type callOutcome struct {
	value   json.RawMessage
	payload []byte
	err     error
}

// pendingCalls allocates correlation IDs and holds one slot per
// outstanding call. IDs are monotonically increasing for the lifetime of
// the connector and never reused while a slot exists. A slot survives
// the caller abandoning the wait (external timeout): the matching late
// response still resolves and removes it, so a correlation ID can never
// be matched against the wrong call.
type pendingCalls struct {
	mu    sync.Mutex
	next  uint64
	slots map[uint64]chan callOutcome
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{slots: make(map[uint64]chan callOutcome)}
}

// add allocates the next correlation ID and its outcome slot. The
// channel is 1-buffered so resolution never blocks on an absent reader.
func (p *pendingCalls) add() (uint64, chan callOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	id := p.next
	ch := make(chan callOutcome, 1)
	p.slots[id] = ch
	return id, ch
}

// resolve removes the slot for id and delivers out into it. Returns
// false when no slot exists (never allocated, or already resolved).
func (p *pendingCalls) resolve(id uint64, out callOutcome) bool {
	p.mu.Lock()
	ch, ok := p.slots[id]
	if ok {
		delete(p.slots, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- out
	return true
}

// remove drops the slot without resolving it. Used only when the send
// itself failed and no response can ever arrive.
func (p *pendingCalls) remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.slots, id)
}

// failAll resolves every outstanding slot with err atomically with
// respect to new resolutions.
func (p *pendingCalls) failAll(err error) {
	p.mu.Lock()
	slots := p.slots
	p.slots = make(map[uint64]chan callOutcome)
	p.mu.Unlock()
	for _, ch := range slots {
		ch <- callOutcome{err: err}
	}
}

func (p *pendingCalls) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
