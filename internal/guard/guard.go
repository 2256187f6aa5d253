// Package guard serializes AI invocations per conversation. At most one
// invocation may be in flight for a given conversation at any time.
package guard

import (
	"context"
	"sync"
)

// Guard tracks in-flight invocations keyed by conversation id.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]chan struct{}
}

// New creates an empty guard.
func New() *Guard {
	return &Guard{inFlight: make(map[string]chan struct{})}
}

// TryAcquire claims the conversation if it is free. Returns false without
// waiting when an invocation is already in flight.
func (g *Guard) TryAcquire(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[conversationID]; busy {
		return false
	}
	g.inFlight[conversationID] = make(chan struct{})
	return true
}

// Acquire claims the conversation, waiting until it is free or the context
// is cancelled.
func (g *Guard) Acquire(ctx context.Context, conversationID string) error {
	for {
		g.mu.Lock()
		done, busy := g.inFlight[conversationID]
		if !busy {
			g.inFlight[conversationID] = make(chan struct{})
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release frees the conversation. Releasing an unheld conversation is a no-op.
func (g *Guard) Release(conversationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if done, busy := g.inFlight[conversationID]; busy {
		close(done)
		delete(g.inFlight, conversationID)
	}
}

// Held reports whether an invocation is in flight for the conversation.
func (g *Guard) Held(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[conversationID]
	return busy
}
