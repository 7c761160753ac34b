package authorization

import (
	"context"
	"sync"
	"time"

	"github.com/callguard/callguard/internal/entities"
)

// DefaultChainTTL is how long an orphaned chain entry survives before the
// background sweep evicts it.
const DefaultChainTTL = 2 * time.Minute

// ChainState tracks one in-flight call chain: an automation invoking a
// script invoking a device action all share the correlation id the host
// assigned to the root call.
type ChainState struct {
	ChainID     string
	UserID      string
	Depth       int
	RootVerdict *entities.Verdict // verdict of the root call, nil until recorded
	createdAt   time.Time
	lastSeen    time.Time
}

// ChainTracker tracks in-flight call chains so nested calls can inherit
// an allowed root verdict (the "allow chained actions" exemption). It is
// the one piece of mutable shared state touched by concurrent
// evaluations; a single coarse lock is enough at the expected contention.
type ChainTracker struct {
	mu     sync.Mutex
	chains map[string]*ChainState
	ttl    time.Duration
	now    func() time.Time // injectable clock for tests
}

// NewChainTracker creates a tracker with the given entry TTL. A
// non-positive TTL falls back to DefaultChainTTL.
func NewChainTracker(ttl time.Duration) *ChainTracker {
	if ttl <= 0 {
		ttl = DefaultChainTTL
	}
	return &ChainTracker{
		chains: make(map[string]*ChainState),
		ttl:    ttl,
		now:    time.Now,
	}
}

// BeginOrContinue returns the chain state for a correlation id, creating
// it on the first call of a chain. The returned depth is 1 for the root
// call and increments for each nested call.
func (t *ChainTracker) BeginOrContinue(chainID, userID string) *ChainState {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state, ok := t.chains[chainID]
	if !ok {
		state = &ChainState{
			ChainID:   chainID,
			UserID:    userID,
			createdAt: now,
		}
		t.chains[chainID] = state
	}
	state.Depth++
	state.lastSeen = now

	out := *state
	return &out
}

// RecordVerdict stores the root call's verdict for a chain. Only the
// first recorded verdict sticks; nested calls never overwrite it.
func (t *ChainTracker) RecordVerdict(chainID string, verdict entities.Verdict) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.chains[chainID]
	if !ok || state.RootVerdict != nil {
		return
	}
	v := verdict
	state.RootVerdict = &v
}

// IsNestedAllowed reports whether the chain has an already-allowed root
// verdict that a nested call may inherit. Missing or corrupted chain
// state is treated as an unchained depth-1 call, never as an error.
func (t *ChainTracker) IsNestedAllowed(chainID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.chains[chainID]
	if !ok || state.RootVerdict == nil {
		return false
	}
	return state.Depth > 1 && state.RootVerdict.Allowed()
}

// Complete discards a chain's state once the host signals the chain is
// done.
func (t *ChainTracker) Complete(chainID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.chains, chainID)
}

// ExpireStale evicts chain entries not touched within maxAge and returns
// the number evicted. Handles chains that never signal completion.
func (t *ChainTracker) ExpireStale(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxAge)
	evicted := 0
	for id, state := range t.chains {
		if state.lastSeen.Before(cutoff) {
			delete(t.chains, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked chains.
func (t *ChainTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.chains)
}

// Run sweeps stale chains at the given interval until the context is
// canceled. This is a background task, not tied to any call's lifecycle.
func (t *ChainTracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.ExpireStale(t.ttl)
		}
	}
}
