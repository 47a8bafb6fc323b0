package bridge

import "sync"

// announcements buffers peer connector-ready declarations that arrived
// before the matching local registration. Each buffered entry is
// consumed at most once.
type announcements struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

func newAnnouncements() *announcements {
	return &announcements{pending: make(map[string]struct{})}
}

func (a *announcements) buffer(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[id] = struct{}{}
}

// consume reports whether an announcement for id was buffered, removing
// it if so.
func (a *announcements) consume(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[id]
	if ok {
		delete(a.pending, id)
	}
	return ok
}

func (a *announcements) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = make(map[string]struct{})
}
