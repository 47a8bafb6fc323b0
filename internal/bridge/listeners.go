package bridge

import (
	"encoding/json"
	"sync"
)

// Listener observes one local event delivery. The payload is nil when
// the event carried no binary buffer.
type Listener func(arg json.RawMessage, payload []byte)

// Subscription identifies one listener registration. Go functions are
// not comparable, so Off takes the token returned by On instead of the
// handler itself.
type Subscription uint64

type listenerEntry struct {
	sub Subscription
	fn  Listener
}

// listenerTable keeps ordered listener lists per event name. Duplicate
// registrations of the same function are distinct entries.
type listenerTable struct {
	mu      sync.Mutex
	next    uint64
	entries map[string][]listenerEntry
}

func newListenerTable() *listenerTable {
	return &listenerTable{entries: make(map[string][]listenerEntry)}
}

func (t *listenerTable) add(event string, fn Listener) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	sub := Subscription(t.next)
	t.entries[event] = append(t.entries[event], listenerEntry{sub: sub, fn: fn})
	return sub
}

// remove drops the registration identified by sub. Removing an unknown
// subscription is a no-op.
func (t *listenerTable) remove(event string, sub Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.entries[event]
	for i, entry := range list {
		if entry.sub == sub {
			t.entries[event] = append(list[:i:i], list[i+1:]...)
			if len(t.entries[event]) == 0 {
				delete(t.entries, event)
			}
			return
		}
	}
}

// snapshot returns the current listeners for event in registration
// order.
func (t *listenerTable) snapshot(event string) []Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.entries[event]
	out := make([]Listener, len(list))
	for i, entry := range list {
		out[i] = entry.fn
	}
	return out
}
