package notify

import "sync"

// Guard admits at most one in-flight handler per session.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]struct{})}
}

// TryAcquire marks id in flight. When id is already in flight it returns
// ok=false and a nil release. Otherwise release must be called exactly once;
// extra calls are no-ops.
func (g *Guard) TryAcquire(id string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inflight[id]; busy {
		return nil, false
	}
	g.inflight[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, id)
			g.mu.Unlock()
		})
	}, true
}

// InFlight returns the number of sessions currently held.
func (g *Guard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}
