package authorization

import (
	"github.com/callguard/callguard/internal/entities"
)

// MatchScope identifies which rule level produced a match. Entity rules
// always beat domain rules for the same call.
type MatchScope int

const (
	ScopeEntity MatchScope = iota
	ScopeDomain
)

// String returns "entity" or "domain".
func (s MatchScope) String() string {
	if s == ScopeEntity {
		return "entity"
	}
	return "domain"
}

// RuleMatch is the result of a permission index lookup.
type RuleMatch struct {
	Scope    MatchScope
	Allow    bool
	Services []string
}

// Permits applies the matched rule's stance to a service.
func (m *RuleMatch) Permits(service string) bool {
	rule := entities.Rule{Allow: m.Allow, Services: m.Services}
	return rule.PermitsService(service)
}

// PermissionIndex is a precomputed fast-lookup view of one role's
// domain/entity rules. It is built once per role definition when the
// configuration loads and shared read-only across evaluations; identical
// role definitions produce identical indexes.
type PermissionIndex struct {
	role    string
	admin   bool
	denyAll bool

	domains  map[string]*entities.Rule
	entities map[string]*entities.Rule
}

// BuildIndex builds the permission index for a role. Build is pure: it
// copies the role's rules and holds no reference back into the config.
func BuildIndex(role *entities.Role) *PermissionIndex {
	ix := &PermissionIndex{
		role:     role.Name,
		admin:    role.Admin,
		denyAll:  role.DenyAll,
		domains:  make(map[string]*entities.Rule),
		entities: make(map[string]*entities.Rule),
	}
	if role.Permissions != nil {
		for domain, rule := range role.Permissions.Domains {
			ix.domains[domain] = rule.Clone()
		}
		for entityID, rule := range role.Permissions.Entities {
			ix.entities[entityID] = rule.Clone()
		}
	}
	return ix
}

// Role returns the name of the indexed role.
func (ix *PermissionIndex) Role() string { return ix.role }

// Admin reports whether the indexed role is admin-flagged.
func (ix *PermissionIndex) Admin() bool { return ix.admin }

// DenyAll reports whether unmatched calls default to deny for this role.
func (ix *PermissionIndex) DenyAll() bool { return ix.denyAll }

// Lookup returns the matching rule for a (domain, entity) pair, or nil
// when neither level has a rule. An entity-level rule takes precedence
// over a domain-level rule regardless of polarity.
func (ix *PermissionIndex) Lookup(domain, entityID string) *RuleMatch {
	if entityID != "" {
		if rule, ok := ix.entities[entityID]; ok {
			return &RuleMatch{Scope: ScopeEntity, Allow: rule.Allow, Services: rule.Services}
		}
	}
	if rule, ok := ix.domains[domain]; ok {
		return &RuleMatch{Scope: ScopeDomain, Allow: rule.Allow, Services: rule.Services}
	}
	return nil
}

// RestrictionIndex is the queryable view of the system-wide default
// restrictions. Rules here can only block; an allow-stanced rule is inert.
type RestrictionIndex struct {
	domains  map[string]*entities.Rule
	entities map[string]*entities.Rule
	services map[string]struct{} // blanket always-blocked service names
}

// BuildRestrictionIndex builds the default-restriction index. A nil
// restriction set produces an index that blocks nothing.
func BuildRestrictionIndex(d *entities.DefaultRestrictions) *RestrictionIndex {
	ix := &RestrictionIndex{
		domains:  make(map[string]*entities.Rule),
		entities: make(map[string]*entities.Rule),
		services: make(map[string]struct{}),
	}
	if d == nil {
		return ix
	}
	for domain, rule := range d.Domains {
		ix.domains[domain] = rule.Clone()
	}
	for entityID, rule := range d.Entities {
		ix.entities[entityID] = rule.Clone()
	}
	for _, service := range d.Services {
		ix.services[service] = struct{}{}
	}
	return ix
}

// Blocks reports whether the default restrictions deny the given call.
// Entity, domain, and blanket service rules are all consulted: the floor
// denies when any of them restricts the service.
func (ix *RestrictionIndex) Blocks(domain, entityID, service string) bool {
	if entityID != "" {
		if rule, ok := ix.entities[entityID]; ok && rule.Restricts(service) {
			return true
		}
	}
	if rule, ok := ix.domains[domain]; ok && rule.Restricts(service) {
		return true
	}
	_, blanket := ix.services[service]
	return blanket
}
