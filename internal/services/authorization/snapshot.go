package authorization

import (
	"time"

	"github.com/callguard/callguard/internal/entities"
)

// Snapshot is an immutable view of one loaded configuration together with
// its derived indexes. Evaluations read a single snapshot end to end;
// reload produces a new snapshot and swaps it in atomically, so a decision
// never observes a half-updated role set.
type Snapshot struct {
	Config   *entities.Config
	Version  string // snapshot token, changes on every reload/update
	LoadedAt time.Time

	defaults *RestrictionIndex
	indexes  map[string]*PermissionIndex
}

// NewSnapshot builds a snapshot from a validated configuration: one
// permission index per role plus the default-restriction index.
func NewSnapshot(cfg *entities.Config, version string) *Snapshot {
	snap := &Snapshot{
		Config:   cfg,
		Version:  version,
		LoadedAt: time.Now(),
		defaults: BuildRestrictionIndex(cfg.DefaultRestrictions),
		indexes:  make(map[string]*PermissionIndex, len(cfg.Roles)),
	}
	for name, role := range cfg.Roles {
		snap.indexes[name] = BuildIndex(role)
	}
	return snap
}

// Index returns the permission index for a role, or nil for an unknown
// role name.
func (s *Snapshot) Index(roleName string) *PermissionIndex {
	return s.indexes[roleName]
}

// Defaults returns the default-restriction index.
func (s *Snapshot) Defaults() *RestrictionIndex {
	return s.defaults
}

// Settings returns the snapshot's global settings, falling back to the
// defaults when the configuration omitted them.
func (s *Snapshot) Settings() *entities.Settings {
	if s.Config.Settings != nil {
		return s.Config.Settings
	}
	return entities.DefaultSettings()
}
