package entities

import "slices"

// Rule governs a single domain or entity scope.
// An empty Services set means the whole scope is governed by Allow
// (total allow or total block), not "no services restricted".
type Rule struct {
	Allow    bool
	Services []string // ordered service names; empty = all services
}

// ListsService reports whether the rule's service set covers the given
// service. An empty set covers every service on the scope.
func (r *Rule) ListsService(service string) bool {
	if len(r.Services) == 0 {
		return true
	}
	return slices.Contains(r.Services, service)
}

// PermitsService applies the rule's stance to a service.
// allow=true: listed (or empty set) services pass, the rest are blocked.
// allow=false: listed (or empty set) services are blocked, the rest pass.
func (r *Rule) PermitsService(service string) bool {
	return r.ListsService(service) == r.Allow
}

// Restricts reports whether the rule, read with restriction semantics,
// blocks the given service. Restriction rules never grant access: a rule
// with allow=true is inert here.
func (r *Rule) Restricts(service string) bool {
	return !r.Allow && r.ListsService(service)
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	return &Rule{Allow: r.Allow, Services: slices.Clone(r.Services)}
}

// RuleSet is the permissions section of a role: per-domain and per-entity
// rules. Entity rules always take precedence over domain rules.
type RuleSet struct {
	Domains  map[string]*Rule
	Entities map[string]*Rule
}

// GetDomain returns the rule for a domain, or nil.
func (s *RuleSet) GetDomain(domain string) *Rule {
	if s == nil {
		return nil
	}
	return s.Domains[domain]
}

// GetEntity returns the rule for an entity, or nil.
func (s *RuleSet) GetEntity(entityID string) *Rule {
	if s == nil {
		return nil
	}
	return s.Entities[entityID]
}

// Clone returns a deep copy of the rule set.
func (s *RuleSet) Clone() *RuleSet {
	if s == nil {
		return nil
	}
	out := &RuleSet{}
	if s.Domains != nil {
		out.Domains = make(map[string]*Rule, len(s.Domains))
		for k, v := range s.Domains {
			out.Domains[k] = v.Clone()
		}
	}
	if s.Entities != nil {
		out.Entities = make(map[string]*Rule, len(s.Entities))
		for k, v := range s.Entities {
			out.Entities[k] = v.Clone()
		}
	}
	return out
}

// Role is a named bundle of permission rules plus admin/template/fallback
// metadata. Admins bypass all restriction evaluation, including default
// restrictions.
type Role struct {
	Name         string
	Description  string
	Admin        bool
	DenyAll      bool   // inverts the implicit stance for unmatched calls
	Template     string // optional conditional expression; empty = always applies
	FallbackRole string // role used when Template evaluates false
	Permissions  *RuleSet
}

// HasTemplate reports whether the role is conditional.
func (r *Role) HasTemplate() bool {
	return r.Template != ""
}

// Clone returns a deep copy of the role.
func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	out := *r
	out.Permissions = r.Permissions.Clone()
	return &out
}
