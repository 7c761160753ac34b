package cache

import (
	"sync"

	"github.com/callguard/callguard/internal/services/authorization"
)

// SnapshotManager holds the current configuration snapshot and swaps it
// atomically on reload. Readers always get a complete snapshot: an
// evaluation started against version v1 keeps reading v1 even if a reload
// to v2 completes mid-evaluation.
type SnapshotManager struct {
	mu      sync.RWMutex
	current *authorization.Snapshot
}

// NewSnapshotManager creates an empty manager. The first successful
// configuration load seeds it via Swap; Current returns nil until then.
func NewSnapshotManager() *SnapshotManager {
	return &SnapshotManager{}
}

// Current returns the current snapshot. Implements
// authorization.SnapshotProvider.
func (m *SnapshotManager) Current() *authorization.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Swap installs a new snapshot and returns the one it replaced.
// In-flight evaluations holding the old snapshot are unaffected.
func (m *SnapshotManager) Swap(next *authorization.Snapshot) *authorization.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.current
	m.current = next
	return prev
}

// Version returns the current snapshot's version token.
func (m *SnapshotManager) Version() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Version
}

var _ authorization.SnapshotProvider = (*SnapshotManager)(nil)
