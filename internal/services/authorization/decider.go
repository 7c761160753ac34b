package authorization

import (
	"context"
	"log/slog"

	"github.com/callguard/callguard/internal/entities"
	"github.com/callguard/callguard/internal/infrastructure/logging"
)

// DefaultExemptDomains are never enforced: blocking them would lock the
// admin surface out or recurse through the deny-notification path.
var DefaultExemptDomains = []string{"http", "auth", "persistent_notification"}

// SnapshotProvider yields the current immutable configuration snapshot.
// Implementations must return a fully built snapshot; evaluations hold it
// for their whole lifetime.
type SnapshotProvider interface {
	Current() *Snapshot
}

// DenyReporter receives every denied call exactly once. Notification,
// event emission, and deny-log persistence are delegated behind this
// interface; they are collaborators of the decision engine, not part of
// the decision logic.
type DenyReporter interface {
	ReportDeny(ctx context.Context, denial *entities.Denial, settings *entities.Settings)
}

// CallRequest describes one intercepted service call.
type CallRequest struct {
	UserID    string
	Domain    string
	EntityIDs []string // target entities; empty for domain-wide calls
	Service   string
	ChainID   string // host correlation id; empty = unchained call
	Template  *TemplateContext
}

// Decider combines resolved role, permission index, default restrictions,
// and chain context into an allow/deny verdict with a reason code.
type Decider struct {
	snapshots SnapshotProvider
	resolver  *Resolver
	chains    *ChainTracker
	reporter  DenyReporter
	exempt    map[string]struct{}
	logger    *slog.Logger
}

// NewDecider creates a Decider. The reporter may be nil when deny side
// effects are unwanted (tests, dry runs).
func NewDecider(
	snapshots SnapshotProvider,
	resolver *Resolver,
	chains *ChainTracker,
	reporter DenyReporter,
) *Decider {
	exempt := make(map[string]struct{}, len(DefaultExemptDomains))
	for _, domain := range DefaultExemptDomains {
		exempt[domain] = struct{}{}
	}
	return &Decider{
		snapshots: snapshots,
		resolver:  resolver,
		chains:    chains,
		reporter:  reporter,
		exempt:    exempt,
		logger:    slog.Default(),
	}
}

// Decide evaluates one intercepted call and returns the verdict. Denied
// calls trigger the reporter exactly once; allowed calls never do.
// Evaluation reads a single snapshot throughout and never returns an
// error: internal failures resolve to a safe default instead.
func (d *Decider) Decide(ctx context.Context, req *CallRequest) entities.Verdict {
	snap := d.snapshots.Current()
	verdict := d.evaluate(req, snap)

	if req.ChainID != "" {
		d.chains.RecordVerdict(req.ChainID, verdict)
	}

	if !verdict.Allowed() {
		d.logger.Warn("service call denied",
			logging.UserID(req.UserID),
			logging.Domain(req.Domain),
			logging.Service(req.Service),
			slog.Any("entities", req.EntityIDs),
			logging.Reason(string(verdict.Reason)),
			logging.Role(verdict.Role))
		d.report(ctx, req, verdict, snap.Settings())
	}

	return verdict
}

// evaluate runs the ordered decision steps; the first decisive match wins.
func (d *Decider) evaluate(req *CallRequest, snap *Snapshot) entities.Verdict {
	// System calls carry no user id and are always allowed.
	if req.UserID == "" {
		return entities.Allow(entities.ReasonSystemCall)
	}

	if _, ok := d.exempt[req.Domain]; ok {
		return entities.Allow(entities.ReasonExemptDomain)
	}

	settings := snap.Settings()
	if !settings.Enabled {
		return entities.Allow(entities.ReasonKillSwitch)
	}

	if req.ChainID != "" {
		d.chains.BeginOrContinue(req.ChainID, req.UserID)
		if settings.AllowChainedActions && d.chains.IsNestedAllowed(req.ChainID) {
			return entities.Allow(entities.ReasonChainExempt)
		}
	}

	res := d.resolver.Resolve(snap, req.UserID, req.Template)
	if res.Admin {
		return entities.Verdict{Effect: entities.EffectAllow, Reason: entities.ReasonAdminBypass, Role: res.RoleName}
	}

	// Default restrictions are the floor for every non-admin user,
	// regardless of what the role would allow.
	for _, target := range targets(req) {
		if snap.Defaults().Blocks(req.Domain, target, req.Service) {
			return entities.Verdict{Effect: entities.EffectDeny, Reason: entities.ReasonDefaultRestriction, Role: res.RoleName}
		}
	}

	if res.Unrestricted {
		return entities.Allow(entities.ReasonNoRestriction)
	}
	if res.Unresolved {
		return entities.Deny(entities.ReasonRoleUnresolved)
	}

	// A call with several targets is allowed only when every target is.
	var verdict *entities.Verdict
	for _, target := range targets(req) {
		v := decideTarget(res, req.Domain, target, req.Service)
		if !v.Allowed() {
			return v
		}
		if verdict == nil {
			verdict = &v
		}
	}
	return *verdict
}

// decideTarget applies the role's permission index to one target. Entity
// rules override domain rules regardless of polarity; unmatched calls
// fall through to the role's deny_all default.
func decideTarget(res Resolution, domain, entityID, service string) entities.Verdict {
	match := res.Index.Lookup(domain, entityID)
	if match != nil {
		reason := entities.ReasonDomainRule
		if match.Scope == ScopeEntity {
			reason = entities.ReasonEntityRule
		}
		effect := entities.EffectDeny
		if match.Permits(service) {
			effect = entities.EffectAllow
		}
		return entities.Verdict{Effect: effect, Reason: reason, Role: res.RoleName}
	}

	if res.Index.DenyAll() {
		return entities.Verdict{Effect: entities.EffectDeny, Reason: entities.ReasonRoleDenyAllDefault, Role: res.RoleName}
	}
	return entities.Verdict{Effect: entities.EffectAllow, Reason: entities.ReasonImplicitAllow, Role: res.RoleName}
}

// targets returns the entity ids to evaluate; a call without targets is
// evaluated once at domain scope.
func targets(req *CallRequest) []string {
	if len(req.EntityIDs) == 0 {
		return []string{""}
	}
	return req.EntityIDs
}

// report invokes the deny side effects exactly once per denied call.
func (d *Decider) report(ctx context.Context, req *CallRequest, verdict entities.Verdict, settings *entities.Settings) {
	if d.reporter == nil {
		return
	}
	entityID := ""
	if len(req.EntityIDs) > 0 {
		entityID = req.EntityIDs[0]
	}
	d.reporter.ReportDeny(ctx, &entities.Denial{
		UserID:   req.UserID,
		Domain:   req.Domain,
		EntityID: entityID,
		Service:  req.Service,
		Reason:   verdict.Reason,
		Role:     verdict.Role,
		ChainID:  req.ChainID,
	}, settings)
}
