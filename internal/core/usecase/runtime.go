package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/carebridge/carechat/internal/core/domain"
)

// Registry tracks the in-flight external call of each session. A session
// admits at most one concurrent ingest or chat call; a second caller is
// rejected immediately instead of queueing behind a slow upstream.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sessionSlot
}

type sessionSlot struct {
	busy   bool
	cancel context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*sessionSlot)}
}

// Acquire claims the session's single call slot and derives a context that
// Cancel can abort. The returned release func must be called when the call
// finishes.
func (r *Registry) Acquire(ctx context.Context, sessionID, operation string) (context.Context, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.sessions[sessionID]
	if !ok {
		slot = &sessionSlot{}
		r.sessions[sessionID] = slot
	}
	if slot.busy {
		return nil, nil, domain.WrapError(domain.ErrSessionBusy, operation, fmt.Errorf("session %s has a call in flight", sessionID))
	}

	callCtx, cancel := context.WithCancel(ctx)
	slot.busy = true
	slot.cancel = cancel

	release := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		cancel()
		// An idle slot holds no state worth keeping; dropping it stops the
		// map from growing with every session that is never explicitly ended.
		if current, ok := r.sessions[sessionID]; ok && current == slot {
			delete(r.sessions, sessionID)
		}
	}
	return callCtx, release, nil
}

// Cancel aborts the session's in-flight call, if any, and forgets the
// session. Used when a session ends while a call is still running.
func (r *Registry) Cancel(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot, ok := r.sessions[sessionID]; ok {
		if slot.cancel != nil {
			slot.cancel()
		}
		delete(r.sessions, sessionID)
	}
}
