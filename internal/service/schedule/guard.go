package schedule

import (
	"sync"

	"github.com/google/uuid"
)

// RunGuard keeps a schedule from executing twice at once in this process.
type RunGuard struct {
	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

func NewRunGuard() *RunGuard {
	return &RunGuard{running: map[uuid.UUID]struct{}{}}
}

func (g *RunGuard) tryAcquire(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[id]; busy {
		return false
	}
	g.running[id] = struct{}{}
	return true
}

func (g *RunGuard) release(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, id)
}
