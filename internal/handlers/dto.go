package handlers

import (
	"time"

	"github.com/callguard/callguard/internal/entities"
)

// Wire shapes for the admin API. The entities stay transport-agnostic;
// the JSON contract lives here.

type ruleDTO struct {
	Allow    bool     `json:"allow"`
	Services []string `json:"services,omitempty"`
}

type ruleSetDTO struct {
	Domains  map[string]*ruleDTO `json:"domains,omitempty"`
	Entities map[string]*ruleDTO `json:"entities,omitempty"`
}

type restrictionsDTO struct {
	Domains  map[string]*ruleDTO `json:"domains,omitempty"`
	Entities map[string]*ruleDTO `json:"entities,omitempty"`
	Services []string            `json:"services,omitempty"`
}

type roleDTO struct {
	Description  string      `json:"description,omitempty"`
	Admin        bool        `json:"admin,omitempty"`
	DenyAll      bool        `json:"deny_all,omitempty"`
	Template     string      `json:"template,omitempty"`
	FallbackRole string      `json:"fallback_role,omitempty"`
	Permissions  *ruleSetDTO `json:"permissions,omitempty"`
}

type userDTO struct {
	Role string `json:"role"`
}

type settingsDTO struct {
	Enabled                 bool `json:"enabled"`
	ShowNotifications       bool `json:"show_notifications"`
	SendEvent               bool `json:"send_event"`
	LogDenyList             bool `json:"log_deny_list"`
	AllowChainedActions     bool `json:"allow_chained_actions"`
	FrontendBlockingEnabled bool `json:"frontend_blocking_enabled"`
}

type configDTO struct {
	Version             string              `json:"version"`
	DefaultAccess       string              `json:"default_access,omitempty"`
	DefaultRole         string              `json:"default_role,omitempty"`
	DefaultRestrictions *restrictionsDTO    `json:"default_restrictions,omitempty"`
	Roles               map[string]*roleDTO `json:"roles"`
	Users               map[string]*userDTO `json:"users"`
	Settings            *settingsDTO        `json:"settings,omitempty"`
}

type denialDTO struct {
	ID       int64  `json:"id,omitempty"`
	Time     string `json:"time"`
	UserID   string `json:"user_id"`
	Domain   string `json:"domain"`
	EntityID string `json:"entity_id,omitempty"`
	Service  string `json:"service"`
	Reason   string `json:"reason"`
	Role     string `json:"role,omitempty"`
	ChainID  string `json:"chain_id,omitempty"`
}

func ruleToDTO(rule *entities.Rule) *ruleDTO {
	if rule == nil {
		return nil
	}
	return &ruleDTO{Allow: rule.Allow, Services: rule.Services}
}

func rulesToDTO(rules map[string]*entities.Rule) map[string]*ruleDTO {
	if rules == nil {
		return nil
	}
	out := make(map[string]*ruleDTO, len(rules))
	for key, rule := range rules {
		out[key] = ruleToDTO(rule)
	}
	return out
}

func configToDTO(cfg *entities.Config) *configDTO {
	dto := &configDTO{
		Version:       cfg.Version,
		DefaultAccess: cfg.DefaultAccess,
		DefaultRole:   cfg.DefaultRole,
		Roles:         make(map[string]*roleDTO, len(cfg.Roles)),
		Users:         make(map[string]*userDTO, len(cfg.Users)),
	}
	if cfg.DefaultRestrictions != nil {
		dto.DefaultRestrictions = &restrictionsDTO{
			Domains:  rulesToDTO(cfg.DefaultRestrictions.Domains),
			Entities: rulesToDTO(cfg.DefaultRestrictions.Entities),
			Services: cfg.DefaultRestrictions.Services,
		}
	}
	for name, role := range cfg.Roles {
		rd := &roleDTO{
			Description:  role.Description,
			Admin:        role.Admin,
			DenyAll:      role.DenyAll,
			Template:     role.Template,
			FallbackRole: role.FallbackRole,
		}
		if role.Permissions != nil {
			rd.Permissions = &ruleSetDTO{
				Domains:  rulesToDTO(role.Permissions.Domains),
				Entities: rulesToDTO(role.Permissions.Entities),
			}
		}
		dto.Roles[name] = rd
	}
	for userID, assignment := range cfg.Users {
		dto.Users[userID] = &userDTO{Role: assignment.Role}
	}
	if cfg.Settings != nil {
		dto.Settings = &settingsDTO{
			Enabled:                 cfg.Settings.Enabled,
			ShowNotifications:       cfg.Settings.ShowNotifications,
			SendEvent:               cfg.Settings.SendEvent,
			LogDenyList:             cfg.Settings.LogDenyList,
			AllowChainedActions:     cfg.Settings.AllowChainedActions,
			FrontendBlockingEnabled: cfg.Settings.FrontendBlockingEnabled,
		}
	}
	return dto
}

func dtoToRule(dto *ruleDTO) *entities.Rule {
	if dto == nil {
		return nil
	}
	return &entities.Rule{Allow: dto.Allow, Services: dto.Services}
}

func dtoToRules(dtos map[string]*ruleDTO) map[string]*entities.Rule {
	if dtos == nil {
		return nil
	}
	out := make(map[string]*entities.Rule, len(dtos))
	for key, dto := range dtos {
		out[key] = dtoToRule(dto)
	}
	return out
}

func dtoToConfig(dto *configDTO) *entities.Config {
	cfg := &entities.Config{
		Version:       dto.Version,
		DefaultAccess: dto.DefaultAccess,
		DefaultRole:   dto.DefaultRole,
		Roles:         make(map[string]*entities.Role, len(dto.Roles)),
		Users:         make(map[string]*entities.UserAssignment, len(dto.Users)),
	}
	if dto.DefaultRestrictions != nil {
		cfg.DefaultRestrictions = &entities.DefaultRestrictions{
			Domains:  dtoToRules(dto.DefaultRestrictions.Domains),
			Entities: dtoToRules(dto.DefaultRestrictions.Entities),
			Services: dto.DefaultRestrictions.Services,
		}
	}
	for name, rd := range dto.Roles {
		role := &entities.Role{
			Name:         name,
			Description:  rd.Description,
			Admin:        rd.Admin,
			DenyAll:      rd.DenyAll,
			Template:     rd.Template,
			FallbackRole: rd.FallbackRole,
		}
		if rd.Permissions != nil {
			role.Permissions = &entities.RuleSet{
				Domains:  dtoToRules(rd.Permissions.Domains),
				Entities: dtoToRules(rd.Permissions.Entities),
			}
		}
		cfg.Roles[name] = role
	}
	for userID, ud := range dto.Users {
		cfg.Users[userID] = &entities.UserAssignment{Role: ud.Role}
	}
	if dto.Settings != nil {
		cfg.Settings = &entities.Settings{
			Enabled:                 dto.Settings.Enabled,
			ShowNotifications:       dto.Settings.ShowNotifications,
			SendEvent:               dto.Settings.SendEvent,
			LogDenyList:             dto.Settings.LogDenyList,
			AllowChainedActions:     dto.Settings.AllowChainedActions,
			FrontendBlockingEnabled: dto.Settings.FrontendBlockingEnabled,
		}
	} else {
		cfg.Settings = entities.DefaultSettings()
	}
	return cfg
}

func denialToDTO(d *entities.Denial) *denialDTO {
	return &denialDTO{
		ID:       d.ID,
		Time:     d.Time.Format(time.RFC3339),
		UserID:   d.UserID,
		Domain:   d.Domain,
		EntityID: d.EntityID,
		Service:  d.Service,
		Reason:   string(d.Reason),
		Role:     d.Role,
		ChainID:  d.ChainID,
	}
}
