package entities

import "slices"

// Sentinel role assignments for users.
const (
	// AssignmentDefault assigns the system default role.
	AssignmentDefault = "default"
	// AssignmentNone assigns no role: full access, default restrictions
	// still apply.
	AssignmentNone = "none"
)

// DefaultRestrictions is the system-wide floor rule set applied to every
// non-admin user regardless of resolved role. Rules here carry restriction
// semantics only: they can block, never grant.
type DefaultRestrictions struct {
	Domains  map[string]*Rule
	Entities map[string]*Rule
	Services []string // blanket always-blocked service names
}

// Clone returns a deep copy of the default restrictions.
func (d *DefaultRestrictions) Clone() *DefaultRestrictions {
	if d == nil {
		return nil
	}
	out := &DefaultRestrictions{Services: slices.Clone(d.Services)}
	if d.Domains != nil {
		out.Domains = make(map[string]*Rule, len(d.Domains))
		for k, v := range d.Domains {
			out.Domains[k] = v.Clone()
		}
	}
	if d.Entities != nil {
		out.Entities = make(map[string]*Rule, len(d.Entities))
		for k, v := range d.Entities {
			out.Entities[k] = v.Clone()
		}
	}
	return out
}

// UserAssignment maps a user to a role name, which may be a sentinel
// (AssignmentDefault, AssignmentNone) or a role key.
type UserAssignment struct {
	Role string
}

// Settings holds the process-wide enforcement switches. They are loaded
// once and mutated only through an explicit update that persists
// synchronously.
type Settings struct {
	Enabled                 bool
	ShowNotifications       bool
	SendEvent               bool
	LogDenyList             bool
	AllowChainedActions     bool
	FrontendBlockingEnabled bool
}

// DefaultSettings returns the settings applied when the configuration
// document omits the settings section.
func DefaultSettings() *Settings {
	return &Settings{
		Enabled:                 true,
		ShowNotifications:       true,
		SendEvent:               false,
		LogDenyList:             true,
		AllowChainedActions:     true,
		FrontendBlockingEnabled: true,
	}
}

// Config is the complete versioned permission configuration: roles,
// default restrictions, per-user role assignment, and global settings.
type Config struct {
	Version             string
	DefaultAccess       string // "allow" or "deny"; legacy simple-mode indicator
	DefaultRole         string // empty or AssignmentNone = no system default
	DefaultRestrictions *DefaultRestrictions
	Roles               map[string]*Role
	Users               map[string]*UserAssignment
	Settings            *Settings
}

// GetRole returns the role definition by name, or nil.
func (c *Config) GetRole(name string) *Role {
	if c == nil {
		return nil
	}
	return c.Roles[name]
}

// HasDefaultRole reports whether a usable system default role is set.
func (c *Config) HasDefaultRole() bool {
	return c.DefaultRole != "" && c.DefaultRole != AssignmentNone
}

// AssignedRole returns the role name assigned to a user after sentinel
// resolution. The second result is false when the user ends up
// unrestricted (no assignment and no system default, or an explicit
// "none" assignment).
func (c *Config) AssignedRole(userID string) (string, bool) {
	assignment, ok := c.Users[userID]
	switch {
	case !ok || assignment.Role == "" || assignment.Role == AssignmentDefault:
		if c.HasDefaultRole() {
			return c.DefaultRole, true
		}
		return "", false
	case assignment.Role == AssignmentNone:
		return "", false
	default:
		return assignment.Role, true
	}
}

// Clone returns a deep copy of the configuration. Update operations
// mutate a clone and swap it in atomically so in-flight evaluations keep
// reading the prior snapshot.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{
		Version:             c.Version,
		DefaultAccess:       c.DefaultAccess,
		DefaultRole:         c.DefaultRole,
		DefaultRestrictions: c.DefaultRestrictions.Clone(),
	}
	if c.Roles != nil {
		out.Roles = make(map[string]*Role, len(c.Roles))
		for k, v := range c.Roles {
			out.Roles[k] = v.Clone()
		}
	}
	if c.Users != nil {
		out.Users = make(map[string]*UserAssignment, len(c.Users))
		for k, v := range c.Users {
			u := *v
			out.Users[k] = &u
		}
	}
	if c.Settings != nil {
		s := *c.Settings
		out.Settings = &s
	}
	return out
}
