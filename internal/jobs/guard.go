package jobs

import "sync"

// InFlight admits at most one execution pipeline per job id.
type InFlight struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{active: make(map[string]struct{})}
}

// TryEnter marks jobID as running and reports whether the caller got the slot.
func (g *InFlight) TryEnter(jobID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[jobID]; busy {
		return false
	}
	g.active[jobID] = struct{}{}
	return true
}

// Leave releases the slot for jobID. Leaving a free slot is a no-op.
func (g *InFlight) Leave(jobID string) {
	g.mu.Lock()
	delete(g.active, jobID)
	g.mu.Unlock()
}

// Acquire is the scoped form of TryEnter: when ok is true the caller must
// invoke release exactly once, typically with defer. Extra calls are ignored.
func (g *InFlight) Acquire(jobID string) (release func(), ok bool) {
	if !g.TryEnter(jobID) {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(func() { g.Leave(jobID) }) }, true
}

// Active reports whether a pipeline currently holds jobID.
func (g *InFlight) Active(jobID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[jobID]
	return busy
}
