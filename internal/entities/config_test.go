package entities

import "testing"

func TestConfig_AssignedRole(t *testing.T) {
	cfg := &Config{
		DefaultRole: "user",
		Roles: map[string]*Role{
			"user":  {Name: "user"},
			"guest": {Name: "guest"},
		},
		Users: map[string]*UserAssignment{
			"alice": {Role: "guest"},
			"bob":   {Role: AssignmentDefault},
			"carol": {Role: AssignmentNone},
		},
	}

	tests := []struct {
		name       string
		userID     string
		wantRole   string
		wantBound  bool
	}{
		{"explicit role", "alice", "guest", true},
		{"default sentinel uses system default", "bob", "user", true},
		{"none sentinel is unrestricted", "carol", "", false},
		{"unassigned user uses system default", "dave", "user", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, bound := cfg.AssignedRole(tt.userID)
			if role != tt.wantRole || bound != tt.wantBound {
				t.Errorf("AssignedRole(%q) = (%q, %v), want (%q, %v)",
					tt.userID, role, bound, tt.wantRole, tt.wantBound)
			}
		})
	}
}

func TestConfig_AssignedRole_NoDefault(t *testing.T) {
	cfg := &Config{
		DefaultRole: AssignmentNone,
		Users:       map[string]*UserAssignment{},
	}

	if _, bound := cfg.AssignedRole("nobody"); bound {
		t.Error("AssignedRole() with no system default should be unrestricted")
	}
}

func TestConfig_Clone_Independent(t *testing.T) {
	cfg := &Config{
		Version: "2.0",
		Roles: map[string]*Role{
			"guest": {Name: "guest", Permissions: &RuleSet{
				Entities: map[string]*Rule{
					"light.bedroom": {Allow: false, Services: []string{"turn_off"}},
				},
			}},
		},
		Users:    map[string]*UserAssignment{"alice": {Role: "guest"}},
		Settings: DefaultSettings(),
		DefaultRestrictions: &DefaultRestrictions{
			Services: []string{"restart"},
		},
	}

	clone := cfg.Clone()
	clone.Roles["guest"].Permissions.Entities["light.bedroom"].Allow = true
	clone.Users["alice"].Role = "user"
	clone.Settings.Enabled = false
	clone.DefaultRestrictions.Services[0] = "stop"

	if cfg.Roles["guest"].Permissions.Entities["light.bedroom"].Allow {
		t.Error("Clone() shares role rules with original")
	}
	if cfg.Users["alice"].Role != "guest" {
		t.Error("Clone() shares user assignments with original")
	}
	if !cfg.Settings.Enabled {
		t.Error("Clone() shares settings with original")
	}
	if cfg.DefaultRestrictions.Services[0] != "restart" {
		t.Error("Clone() shares default restrictions with original")
	}
}
