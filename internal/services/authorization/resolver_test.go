package authorization

import (
	"errors"
	"testing"

	"github.com/callguard/callguard/internal/entities"
)

// stubTemplates resolves expressions from a fixed table; unknown
// expressions error.
type stubTemplates struct {
	results map[string]bool
}

func (s *stubTemplates) Evaluate(expression string, _ *TemplateContext) (bool, error) {
	result, ok := s.results[expression]
	if !ok {
		return false, errors.New("stub: unknown expression")
	}
	return result, nil
}

func (s *stubTemplates) Validate(string) error { return nil }

func resolverTestSnapshot() *Snapshot {
	cfg := &entities.Config{
		DefaultRole: "user",
		Roles: map[string]*entities.Role{
			"admin": {Name: "admin", Admin: true},
			"user":  {Name: "user"},
			"guest": {Name: "guest"},
			"home_user": {
				Name:         "home_user",
				Template:     "at_home",
				FallbackRole: "guest",
			},
			"away_user": {
				Name:         "away_user",
				Template:     "never_true",
				FallbackRole: "guest",
			},
			"broken": {
				Name:         "broken",
				Template:     "boom",
				FallbackRole: "guest",
			},
			"dead_end": {
				Name:     "dead_end",
				Template: "never_true",
			},
		},
		Users: map[string]*entities.UserAssignment{
			"alice":  {Role: "admin"},
			"bob":    {Role: "home_user"},
			"carol":  {Role: "away_user"},
			"dave":   {Role: entities.AssignmentNone},
			"erin":   {Role: "broken"},
			"frank":  {Role: "dead_end"},
		},
		Settings: entities.DefaultSettings(),
	}
	return NewSnapshot(cfg, "test")
}

func TestResolver_Resolve(t *testing.T) {
	snap := resolverTestSnapshot()
	resolver := NewResolver(&stubTemplates{results: map[string]bool{
		"at_home":    true,
		"never_true": false,
	}}, nil)

	tests := []struct {
		name             string
		userID           string
		wantRole         string
		wantAdmin        bool
		wantUnrestricted bool
		wantUnresolved   bool
	}{
		{
			name:      "admin role short-circuits",
			userID:    "alice",
			wantRole:  "admin",
			wantAdmin: true,
		},
		{
			name:     "template true uses the conditional role",
			userID:   "bob",
			wantRole: "home_user",
		},
		{
			name:     "template false falls back",
			userID:   "carol",
			wantRole: "guest",
		},
		{
			name:             "none assignment is unrestricted",
			userID:           "dave",
			wantUnrestricted: true,
		},
		{
			name:     "template error falls back when a fallback exists",
			userID:   "erin",
			wantRole: "guest",
		},
		{
			name:           "template false with no fallback is unresolved",
			userID:         "frank",
			wantUnresolved: true,
		},
		{
			name:     "unassigned user gets the system default role",
			userID:   "nobody",
			wantRole: "user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resolver.Resolve(snap, tt.userID, nil)
			if res.RoleName != tt.wantRole ||
				res.Admin != tt.wantAdmin ||
				res.Unrestricted != tt.wantUnrestricted ||
				res.Unresolved != tt.wantUnresolved {
				t.Errorf("Resolve(%q) = %+v, want role=%q admin=%v unrestricted=%v unresolved=%v",
					tt.userID, res, tt.wantRole, tt.wantAdmin, tt.wantUnrestricted, tt.wantUnresolved)
			}
			if tt.wantRole != "" && !tt.wantAdmin && res.Index == nil {
				t.Errorf("Resolve(%q) returned nil index for resolved role", tt.userID)
			}
		})
	}
}

func TestResolver_Resolve_NoDefaultRole(t *testing.T) {
	cfg := &entities.Config{
		Roles:    map[string]*entities.Role{},
		Users:    map[string]*entities.UserAssignment{},
		Settings: entities.DefaultSettings(),
	}
	resolver := NewResolver(&stubTemplates{}, nil)

	res := resolver.Resolve(NewSnapshot(cfg, "test"), "anyone", nil)
	if !res.Unrestricted {
		t.Errorf("Resolve() = %+v, want unrestricted", res)
	}
}

type recordedEvals struct {
	results []string
}

func (r *recordedEvals) RecordTemplateEval(result string) {
	r.results = append(r.results, result)
}

func TestResolver_RecordsTemplateEvals(t *testing.T) {
	snap := resolverTestSnapshot()
	evals := &recordedEvals{}
	resolver := NewResolver(&stubTemplates{results: map[string]bool{
		"at_home":    true,
		"never_true": false,
	}}, evals)

	// bob: template true. carol: template false, fallback to guest (no
	// template). erin: template errors, fallback to guest.
	resolver.Resolve(snap, "bob", nil)
	resolver.Resolve(snap, "carol", nil)
	resolver.Resolve(snap, "erin", nil)

	want := []string{"true", "false", "error"}
	if len(evals.results) != len(want) {
		t.Fatalf("recorded %v, want %v", evals.results, want)
	}
	for i, result := range want {
		if evals.results[i] != result {
			t.Errorf("recorded[%d] = %q, want %q", i, evals.results[i], result)
		}
	}
}

func TestResolver_Resolve_DepthBound(t *testing.T) {
	// Two conditional roles pointing at each other: load-time validation
	// would reject this, so the runtime bound is the only net here.
	cfg := &entities.Config{
		Roles: map[string]*entities.Role{
			"a": {Name: "a", Template: "never_true", FallbackRole: "b"},
			"b": {Name: "b", Template: "never_true", FallbackRole: "a"},
		},
		Users: map[string]*entities.UserAssignment{
			"alice": {Role: "a"},
		},
		Settings: entities.DefaultSettings(),
	}
	resolver := NewResolver(&stubTemplates{results: map[string]bool{"never_true": false}}, nil)

	res := resolver.Resolve(NewSnapshot(cfg, "test"), "alice", nil)
	if !res.Unresolved {
		t.Errorf("Resolve() on cyclic chain = %+v, want unresolved", res)
	}
}
