package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/callguard/callguard/internal/entities"
	"github.com/callguard/callguard/internal/infrastructure/cache"
	"github.com/callguard/callguard/internal/infrastructure/logging"
	"github.com/callguard/callguard/internal/repositories"
	"github.com/callguard/callguard/internal/services/authorization"
)

// PolicyServiceInterface defines the interface for permission-config management.
type PolicyServiceInterface interface {
	Load(ctx context.Context) (*authorization.Snapshot, error)
	Reload(ctx context.Context) (*authorization.Snapshot, error)
	Update(ctx context.Context, cfg *entities.Config) (*authorization.Snapshot, error)
	Validate(cfg *entities.Config) error
}

// ReloadRecorder receives the outcome of configuration reloads.
type ReloadRecorder interface {
	RecordConfigReload(result string)
}

// ValidationError aggregates every problem found in a configuration so a
// caller can fix them all at once.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration:\n%s", strings.Join(e.Issues, "\n"))
}

// PolicyService owns the permission configuration lifecycle: loading the
// document, validating it, and publishing an immutable snapshot. In-flight
// decisions keep the snapshot they started with.
type PolicyService struct {
	repo      repositories.ConfigRepository
	snapshots *cache.SnapshotManager
	templates authorization.TemplateEvaluator
	reloads   ReloadRecorder
	logger    *slog.Logger
}

// NewPolicyService creates a new PolicyService. reloads may be nil.
func NewPolicyService(
	repo repositories.ConfigRepository,
	snapshots *cache.SnapshotManager,
	templates authorization.TemplateEvaluator,
	reloads ReloadRecorder,
	logger *slog.Logger,
) *PolicyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyService{
		repo:      repo,
		snapshots: snapshots,
		templates: templates,
		reloads:   reloads,
		logger:    logger,
	}
}

// Load reads the configuration document, validates it, and publishes the
// initial snapshot.
func (s *PolicyService) Load(ctx context.Context) (*authorization.Snapshot, error) {
	return s.publish(ctx, nil)
}

// Reload re-reads the document and atomically swaps in a new snapshot. On
// validation failure the previous snapshot stays in effect.
func (s *PolicyService) Reload(ctx context.Context) (*authorization.Snapshot, error) {
	snap, err := s.publish(ctx, nil)
	if err != nil {
		s.recordReload("error")
		return nil, err
	}
	s.recordReload("ok")
	return snap, nil
}

// Update validates the given configuration, persists it, and swaps in a
// snapshot built from it. Nothing is written if validation fails.
func (s *PolicyService) Update(ctx context.Context, cfg *entities.Config) (*authorization.Snapshot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	return s.publish(ctx, cfg)
}

// publish is the single path to a snapshot swap: validate first, persist
// when the config came from a caller, then build and swap.
func (s *PolicyService) publish(ctx context.Context, cfg *entities.Config) (*authorization.Snapshot, error) {
	persist := cfg != nil
	if cfg == nil {
		loaded, err := s.repo.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	if err := s.Validate(cfg); err != nil {
		return nil, err
	}
	if persist {
		if err := s.repo.Save(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to persist configuration: %w", err)
		}
	}

	snap := authorization.NewSnapshot(cfg, uuid.NewString())
	prev := s.snapshots.Swap(snap)

	attrs := []any{logging.ConfigVersion(snap.Version), slog.Int("roles", len(cfg.Roles)), slog.Int("users", len(cfg.Users))}
	if prev != nil {
		attrs = append(attrs, slog.String("previous_version", prev.Version))
	}
	s.logger.Info("configuration published", attrs...)
	return snap, nil
}

func (s *PolicyService) recordReload(result string) {
	if s.reloads != nil {
		s.reloads.RecordConfigReload(result)
	}
}

// Validate checks the configuration for structural problems: dangling role
// references, fallback cycles, and templates that do not compile. It
// returns a *ValidationError listing every issue found.
func (s *PolicyService) Validate(cfg *entities.Config) error {
	if cfg == nil {
		return &ValidationError{Issues: []string{"configuration is nil"}}
	}
	var issues []string

	roleNames := make([]string, 0, len(cfg.Roles))
	for name := range cfg.Roles {
		roleNames = append(roleNames, name)
	}
	sort.Strings(roleNames)

	for _, name := range roleNames {
		role := cfg.Roles[name]
		if role == nil {
			issues = append(issues, fmt.Sprintf("role %q: empty definition", name))
			continue
		}
		if role.FallbackRole != "" && cfg.GetRole(role.FallbackRole) == nil {
			issues = append(issues, fmt.Sprintf("role %q: fallback_role %q is not defined", name, role.FallbackRole))
		}
		if role.FallbackRole != "" && !role.HasTemplate() {
			issues = append(issues, fmt.Sprintf("role %q: fallback_role without a template is unreachable", name))
		}
		if role.HasTemplate() && s.templates != nil {
			if err := s.templates.Validate(role.Template); err != nil {
				issues = append(issues, fmt.Sprintf("role %q: invalid template: %v", name, err))
			}
		}
		issues = append(issues, validateRuleSet(name, role.Permissions)...)
	}

	issues = append(issues, findFallbackCycles(cfg)...)

	if cfg.HasDefaultRole() && cfg.GetRole(cfg.DefaultRole) == nil {
		issues = append(issues, fmt.Sprintf("default_role %q is not defined", cfg.DefaultRole))
	}

	userIDs := make([]string, 0, len(cfg.Users))
	for id := range cfg.Users {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	for _, id := range userIDs {
		assignment := cfg.Users[id]
		if assignment == nil || assignment.Role == "" {
			continue
		}
		role := assignment.Role
		if role == entities.AssignmentDefault || role == entities.AssignmentNone {
			continue
		}
		if cfg.GetRole(role) == nil {
			issues = append(issues, fmt.Sprintf("user %q: assigned role %q is not defined", id, role))
		}
	}

	if cfg.DefaultRestrictions != nil {
		issues = append(issues, validateServices("default_restrictions", cfg.DefaultRestrictions.Services)...)
		for domain, rule := range cfg.DefaultRestrictions.Domains {
			if rule != nil {
				issues = append(issues, validateServices(fmt.Sprintf("default_restrictions domain %q", domain), rule.Services)...)
			}
		}
		for entityID, rule := range cfg.DefaultRestrictions.Entities {
			if rule != nil {
				issues = append(issues, validateServices(fmt.Sprintf("default_restrictions entity %q", entityID), rule.Services)...)
			}
		}
	}

	if len(issues) > 0 {
		sort.Strings(issues)
		return &ValidationError{Issues: issues}
	}
	return nil
}

func validateRuleSet(roleName string, set *entities.RuleSet) []string {
	if set == nil {
		return nil
	}
	var issues []string
	for domain, rule := range set.Domains {
		if domain == "" {
			issues = append(issues, fmt.Sprintf("role %q: empty domain key", roleName))
		}
		if rule != nil {
			issues = append(issues, validateServices(fmt.Sprintf("role %q domain %q", roleName, domain), rule.Services)...)
		}
	}
	for entityID, rule := range set.Entities {
		if !strings.Contains(entityID, ".") {
			issues = append(issues, fmt.Sprintf("role %q: entity key %q is not domain.object", roleName, entityID))
		}
		if rule != nil {
			issues = append(issues, validateServices(fmt.Sprintf("role %q entity %q", roleName, entityID), rule.Services)...)
		}
	}
	return issues
}

func validateServices(context string, services []string) []string {
	var issues []string
	for _, service := range services {
		if service == "" || strings.ContainsAny(service, " \t") {
			issues = append(issues, fmt.Sprintf("%s: malformed service name %q", context, service))
		}
	}
	return issues
}

// findFallbackCycles walks the fallback graph from every role. The graph
// has out-degree at most one, so a colored DFS reduces to following the
// chain with a visited set.
func findFallbackCycles(cfg *entities.Config) []string {
	var issues []string
	reported := make(map[string]bool)

	names := make([]string, 0, len(cfg.Roles))
	for name := range cfg.Roles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, start := range names {
		if reported[start] {
			continue
		}
		seen := map[string]int{}
		path := []string{}
		current := start
		for current != "" && cfg.GetRole(current) != nil {
			if at, ok := seen[current]; ok {
				cycle := append(path[at:], current)
				for _, member := range cycle {
					reported[member] = true
				}
				issues = append(issues, fmt.Sprintf("fallback cycle: %s", strings.Join(cycle, " -> ")))
				break
			}
			seen[current] = len(path)
			path = append(path, current)
			current = cfg.GetRole(current).FallbackRole
		}
	}
	return issues
}

var _ PolicyServiceInterface = (*PolicyService)(nil)
