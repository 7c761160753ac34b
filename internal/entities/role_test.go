package entities

import "testing"

func TestRule_PermitsService(t *testing.T) {
	tests := []struct {
		name    string
		rule    *Rule
		service string
		want    bool
	}{
		{
			name:    "allow with empty services permits everything",
			rule:    &Rule{Allow: true},
			service: "turn_on",
			want:    true,
		},
		{
			name:    "allow with listed service permits it",
			rule:    &Rule{Allow: true, Services: []string{"turn_on"}},
			service: "turn_on",
			want:    true,
		},
		{
			name:    "allow with unlisted service blocks it",
			rule:    &Rule{Allow: true, Services: []string{"turn_on"}},
			service: "turn_off",
			want:    false,
		},
		{
			name:    "deny with empty services blocks everything",
			rule:    &Rule{Allow: false},
			service: "turn_on",
			want:    false,
		},
		{
			name:    "deny with listed service blocks it",
			rule:    &Rule{Allow: false, Services: []string{"turn_off"}},
			service: "turn_off",
			want:    false,
		},
		{
			name:    "deny with unlisted service permits it",
			rule:    &Rule{Allow: false, Services: []string{"turn_off"}},
			service: "turn_on",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.PermitsService(tt.service); got != tt.want {
				t.Errorf("PermitsService(%q) = %v, want %v", tt.service, got, tt.want)
			}
		})
	}
}

func TestRule_Restricts(t *testing.T) {
	tests := []struct {
		name    string
		rule    *Rule
		service string
		want    bool
	}{
		{
			name:    "deny rule with listed service restricts",
			rule:    &Rule{Allow: false, Services: []string{"restart", "stop"}},
			service: "restart",
			want:    true,
		},
		{
			name:    "deny rule with unlisted service does not restrict",
			rule:    &Rule{Allow: false, Services: []string{"restart"}},
			service: "turn_on",
			want:    false,
		},
		{
			name:    "deny rule with empty services restricts everything",
			rule:    &Rule{Allow: false},
			service: "anything",
			want:    true,
		},
		{
			name:    "allow rule never restricts",
			rule:    &Rule{Allow: true, Services: []string{"restart"}},
			service: "restart",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Restricts(tt.service); got != tt.want {
				t.Errorf("Restricts(%q) = %v, want %v", tt.service, got, tt.want)
			}
		})
	}
}

func TestRole_Clone_Independent(t *testing.T) {
	role := &Role{
		Name:    "guest",
		DenyAll: true,
		Permissions: &RuleSet{
			Domains: map[string]*Rule{
				"light": {Allow: true, Services: []string{"turn_on"}},
			},
		},
	}

	clone := role.Clone()
	clone.Permissions.Domains["light"].Services[0] = "turn_off"

	if role.Permissions.Domains["light"].Services[0] != "turn_on" {
		t.Error("Clone() shares service slice with original")
	}
}
