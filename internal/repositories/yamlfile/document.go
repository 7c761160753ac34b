package yamlfile

import (
	"slices"

	"github.com/callguard/callguard/internal/entities"
)

// configDoc is the on-disk document shape. It accepts both the canonical
// schema and the legacy spellings (`allowlist`/`restrictions` blocks,
// `hide:` flags, `access:` siblings) and normalizes everything into the
// canonical entities.Config.
type configDoc struct {
	Version             string                `yaml:"version"`
	DefaultAccess       string                `yaml:"default_access,omitempty"`
	DefaultRole         string                `yaml:"default_role,omitempty"`
	DefaultRestrictions *restrictionsDoc      `yaml:"default_restrictions,omitempty"`
	Roles               map[string]*roleDoc   `yaml:"roles,omitempty"`
	Users               map[string]*userDoc   `yaml:"users,omitempty"`
	Settings            *settingsDoc          `yaml:"settings,omitempty"`

	// Legacy: document-level restriction block, merged into
	// default_restrictions.
	Restrictions *restrictionsDoc `yaml:"restrictions,omitempty"`
}

type restrictionsDoc struct {
	Domains  map[string]*ruleDoc `yaml:"domains,omitempty"`
	Entities map[string]*ruleDoc `yaml:"entities,omitempty"`
	Services []string            `yaml:"services,omitempty"`
}

type ruleSetDoc struct {
	Domains  map[string]*ruleDoc `yaml:"domains,omitempty"`
	Entities map[string]*ruleDoc `yaml:"entities,omitempty"`
}

type ruleDoc struct {
	Allow    *bool    `yaml:"allow,omitempty"`
	Hide     *bool    `yaml:"hide,omitempty"` // legacy spelling of allow=false
	Services []string `yaml:"services,omitempty"`
}

type roleDoc struct {
	Description  string      `yaml:"description,omitempty"`
	Admin        bool        `yaml:"admin,omitempty"`
	DenyAll      bool        `yaml:"deny_all,omitempty"`
	Template     string      `yaml:"template,omitempty"`
	FallbackRole string      `yaml:"fallback_role,omitempty"`
	Permissions  *ruleSetDoc `yaml:"permissions,omitempty"`

	// Legacy shape: separate allow/deny lists with an access-mode
	// sibling instead of a permissions block.
	Allowlist    *ruleSetDoc `yaml:"allowlist,omitempty"`
	Restrictions *ruleSetDoc `yaml:"restrictions,omitempty"`
	Access       string      `yaml:"access,omitempty"` // "allow" or "deny"
}

type userDoc struct {
	Role string `yaml:"role,omitempty"`
}

type settingsDoc struct {
	Enabled                 *bool `yaml:"enabled,omitempty"`
	ShowNotifications       *bool `yaml:"show_notifications,omitempty"`
	SendEvent               *bool `yaml:"send_event,omitempty"`
	LogDenyList             *bool `yaml:"log_deny_list,omitempty"`
	AllowChainedActions     *bool `yaml:"allow_chained_actions,omitempty"`
	FrontendBlockingEnabled *bool `yaml:"frontend_blocking_enabled,omitempty"`
}

// stance resolves a rule's allow flag. The default differs by context:
// permission blocks default to allow, restriction blocks to deny.
func (r *ruleDoc) stance(defaultAllow bool) bool {
	if r.Allow != nil {
		return *r.Allow
	}
	if r.Hide != nil {
		return !*r.Hide
	}
	return defaultAllow
}

func (r *ruleDoc) toRule(defaultAllow bool) *entities.Rule {
	return &entities.Rule{
		Allow:    r.stance(defaultAllow),
		Services: slices.Clone(r.Services),
	}
}

func rulesFromDoc(docs map[string]*ruleDoc, defaultAllow bool) map[string]*entities.Rule {
	if docs == nil {
		return nil
	}
	out := make(map[string]*entities.Rule, len(docs))
	for key, doc := range docs {
		out[key] = doc.toRule(defaultAllow)
	}
	return out
}

// normalize converts the parsed document into the canonical config.
func (d *configDoc) normalize() *entities.Config {
	cfg := &entities.Config{
		Version:       d.Version,
		DefaultAccess: d.DefaultAccess,
		DefaultRole:   d.DefaultRole,
		Roles:         make(map[string]*entities.Role, len(d.Roles)),
		Users:         make(map[string]*entities.UserAssignment, len(d.Users)),
	}
	if cfg.Version == "" {
		cfg.Version = "2.0"
	}
	if cfg.DefaultAccess == "" {
		cfg.DefaultAccess = "allow"
	}

	cfg.DefaultRestrictions = normalizeRestrictions(d.DefaultRestrictions, d.Restrictions)

	for name, doc := range d.Roles {
		cfg.Roles[name] = doc.normalize(name)
	}
	for userID, doc := range d.Users {
		cfg.Users[userID] = &entities.UserAssignment{Role: doc.Role}
	}

	cfg.Settings = normalizeSettings(d.Settings)
	return cfg
}

// normalizeRestrictions merges the canonical default_restrictions block
// with the legacy document-level restrictions block. Rules here default
// to deny: they are restriction-only.
func normalizeRestrictions(canonical, legacy *restrictionsDoc) *entities.DefaultRestrictions {
	out := &entities.DefaultRestrictions{
		Domains:  map[string]*entities.Rule{},
		Entities: map[string]*entities.Rule{},
	}
	for _, doc := range []*restrictionsDoc{legacy, canonical} {
		if doc == nil {
			continue
		}
		for domain, rule := range doc.Domains {
			out.Domains[domain] = rule.toRule(false)
		}
		for entityID, rule := range doc.Entities {
			out.Entities[entityID] = rule.toRule(false)
		}
		for _, service := range doc.Services {
			if !slices.Contains(out.Services, service) {
				out.Services = append(out.Services, service)
			}
		}
	}
	slices.Sort(out.Services)
	return out
}

// normalize converts one role document, folding legacy allowlist and
// restrictions blocks into the canonical permissions section. An
// `access: deny` sibling becomes deny_all.
func (d *roleDoc) normalize(name string) *entities.Role {
	role := &entities.Role{
		Name:         name,
		Description:  d.Description,
		Admin:        d.Admin,
		DenyAll:      d.DenyAll,
		Template:     d.Template,
		FallbackRole: d.FallbackRole,
	}
	if d.Access == "deny" {
		role.DenyAll = true
	}

	set := &entities.RuleSet{
		Domains:  map[string]*entities.Rule{},
		Entities: map[string]*entities.Rule{},
	}
	if d.Restrictions != nil {
		for domain, rule := range d.Restrictions.Domains {
			set.Domains[domain] = rule.toRule(false)
		}
		for entityID, rule := range d.Restrictions.Entities {
			set.Entities[entityID] = rule.toRule(false)
		}
	}
	if d.Allowlist != nil {
		for domain, rule := range d.Allowlist.Domains {
			set.Domains[domain] = rule.toRule(true)
		}
		for entityID, rule := range d.Allowlist.Entities {
			set.Entities[entityID] = rule.toRule(true)
		}
	}
	if d.Permissions != nil {
		for domain, rule := range d.Permissions.Domains {
			set.Domains[domain] = rule.toRule(true)
		}
		for entityID, rule := range d.Permissions.Entities {
			set.Entities[entityID] = rule.toRule(true)
		}
	}
	if len(set.Domains) > 0 || len(set.Entities) > 0 {
		role.Permissions = set
	}
	return role
}

func normalizeSettings(doc *settingsDoc) *entities.Settings {
	settings := entities.DefaultSettings()
	if doc == nil {
		return settings
	}
	apply := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&settings.Enabled, doc.Enabled)
	apply(&settings.ShowNotifications, doc.ShowNotifications)
	apply(&settings.SendEvent, doc.SendEvent)
	apply(&settings.LogDenyList, doc.LogDenyList)
	apply(&settings.AllowChainedActions, doc.AllowChainedActions)
	apply(&settings.FrontendBlockingEnabled, doc.FrontendBlockingEnabled)
	return settings
}

// newConfigDoc builds the canonical document for serialization. Legacy
// fields are never written back.
func newConfigDoc(cfg *entities.Config) *configDoc {
	doc := &configDoc{
		Version:       cfg.Version,
		DefaultAccess: cfg.DefaultAccess,
		DefaultRole:   cfg.DefaultRole,
		Roles:         make(map[string]*roleDoc, len(cfg.Roles)),
		Users:         make(map[string]*userDoc, len(cfg.Users)),
	}

	if cfg.DefaultRestrictions != nil {
		doc.DefaultRestrictions = &restrictionsDoc{
			Domains:  rulesToDoc(cfg.DefaultRestrictions.Domains),
			Entities: rulesToDoc(cfg.DefaultRestrictions.Entities),
			Services: slices.Clone(cfg.DefaultRestrictions.Services),
		}
	}

	for name, role := range cfg.Roles {
		rd := &roleDoc{
			Description:  role.Description,
			Admin:        role.Admin,
			DenyAll:      role.DenyAll,
			Template:     role.Template,
			FallbackRole: role.FallbackRole,
		}
		if role.Permissions != nil {
			rd.Permissions = &ruleSetDoc{
				Domains:  rulesToDoc(role.Permissions.Domains),
				Entities: rulesToDoc(role.Permissions.Entities),
			}
		}
		doc.Roles[name] = rd
	}

	for userID, assignment := range cfg.Users {
		doc.Users[userID] = &userDoc{Role: assignment.Role}
	}

	if cfg.Settings != nil {
		s := cfg.Settings
		doc.Settings = &settingsDoc{
			Enabled:                 &s.Enabled,
			ShowNotifications:       &s.ShowNotifications,
			SendEvent:               &s.SendEvent,
			LogDenyList:             &s.LogDenyList,
			AllowChainedActions:     &s.AllowChainedActions,
			FrontendBlockingEnabled: &s.FrontendBlockingEnabled,
		}
	}
	return doc
}

func rulesToDoc(rules map[string]*entities.Rule) map[string]*ruleDoc {
	if rules == nil {
		return nil
	}
	out := make(map[string]*ruleDoc, len(rules))
	for key, rule := range rules {
		allow := rule.Allow
		out[key] = &ruleDoc{Allow: &allow, Services: slices.Clone(rule.Services)}
	}
	return out
}
