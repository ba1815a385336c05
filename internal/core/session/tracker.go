package session

import (
	"context"
	"sync"
)

// Token identifies one route calculation started with Tracker.Begin.
type Token struct {
	generation uint64
}

// Tracker owns the current RouteSession and discards results from superseded
// calculations. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current RouteSession
}

// NewTracker returns a tracker holding the empty session.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin starts a new calculation. The in-flight one, if any, is cancelled and its
// token invalidated.
func (t *Tracker) Begin(parent context.Context) (context.Context, Token) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	return ctx, Token{generation: t.gen}
}

// Commit installs s if tok is still current. It reports false for stale results,
// which are dropped.
func (t *Tracker) Commit(tok Token, s RouteSession) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tok.generation != t.gen {
		return false
	}
	t.stopLocked()
	s.generation = tok.generation
	t.current = s
	return true
}

// Abandon ends a failed calculation and leaves the current session untouched.
func (t *Tracker) Abandon(tok Token) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tok.generation == t.gen {
		t.stopLocked()
	}
}

// Clear cancels any calculation in flight and installs the empty session.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	t.current = Empty()
}

// Current returns the installed session.
func (t *Tracker) Current() RouteSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Close cancels any calculation in flight.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Tracker) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
