package rescheduling

import (
	"sync"

	"github.com/amal-center/platform/internal/shared/errors"
	"github.com/amal-center/platform/internal/shared/types"
)

// Guard enforces at most one concurrent reschedule commit per subscription.
// A second commit attempt while one is in flight is rejected, never queued.
type Guard struct {
	mu   sync.Mutex
	held map[types.ID]struct{}
}

// NewGuard creates an empty commit guard.
func NewGuard() *Guard {
	return &Guard{held: make(map[types.ID]struct{})}
}

// Acquire takes the commit slot for a subscription or returns a conflict error
// if it is already held.
func (g *Guard) Acquire(subID types.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[subID]; ok {
		return errors.Conflict(
			"a modification is already being committed for this subscription",
			"يوجد تعديل قيد التنفيذ لهذا الاشتراك بالفعل",
		)
	}
	g.held[subID] = struct{}{}
	return nil
}

// Release frees the commit slot. Safe to call for a subscription that is not
// held.
func (g *Guard) Release(subID types.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, subID)
}
