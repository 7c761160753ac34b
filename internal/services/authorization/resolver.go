package authorization

import (
	"log/slog"
)

// MaxFallbackDepth bounds fallback-role chains at runtime. Cycles are
// rejected at load time; this caps chains that slip past validation.
const MaxFallbackDepth = 10

// Resolution is the outcome of resolving a user's effective role.
type Resolution struct {
	RoleName string
	Index    *PermissionIndex // nil unless a concrete role resolved

	// Admin: the resolved role is admin-flagged. Admins bypass role
	// permissions and the default-restriction floor.
	Admin bool

	// Unrestricted: no role assigned and no system default. Role
	// permissions are skipped; default restrictions still apply.
	Unrestricted bool

	// Unresolved: the template/fallback chain exhausted without any role
	// resolving. Fails closed.
	Unresolved bool
}

// TemplateEvalRecorder receives the outcome of every role template
// evaluation: "true", "false", or "error".
type TemplateEvalRecorder interface {
	RecordTemplateEval(result string)
}

// Resolver determines the effective role for a user, following
// conditional-template and fallback-role chains until a stable role is
// reached.
type Resolver struct {
	templates TemplateEvaluator
	evals     TemplateEvalRecorder
	logger    *slog.Logger
}

// NewResolver creates a Resolver using the given template evaluator.
// evals may be nil.
func NewResolver(templates TemplateEvaluator, evals TemplateEvalRecorder) *Resolver {
	return &Resolver{
		templates: templates,
		evals:     evals,
		logger:    slog.Default(),
	}
}

func (r *Resolver) recordEval(result string) {
	if r.evals != nil {
		r.evals.RecordTemplateEval(result)
	}
}

// Resolve determines the effective role for a user against one snapshot.
// Template evaluation errors are non-fatal: they are logged and treated as
// a false condition, falling back when a fallback role exists.
func (r *Resolver) Resolve(snap *Snapshot, userID string, tctx *TemplateContext) Resolution {
	roleName, bound := snap.Config.AssignedRole(userID)
	if !bound {
		return Resolution{Unrestricted: true}
	}

	for depth := 0; depth <= MaxFallbackDepth; depth++ {
		role := snap.Config.GetRole(roleName)
		if role == nil {
			// Load-time validation rejects unknown references; a miss
			// here means the snapshot is inconsistent. Fail closed.
			r.logger.Warn("resolved role not found in snapshot",
				"user_id", userID, "role", roleName)
			return Resolution{Unresolved: true}
		}

		if role.Admin {
			return Resolution{RoleName: roleName, Admin: true}
		}

		if !role.HasTemplate() {
			return Resolution{RoleName: roleName, Index: snap.Index(roleName)}
		}

		applies, err := r.templates.Evaluate(role.Template, tctx)
		switch {
		case err != nil:
			r.recordEval("error")
			r.logger.Warn("role template evaluation failed",
				"user_id", userID, "role", roleName, "error", err)
			applies = false
		case applies:
			r.recordEval("true")
		default:
			r.recordEval("false")
		}
		if applies {
			return Resolution{RoleName: roleName, Index: snap.Index(roleName)}
		}

		if role.FallbackRole == "" {
			return Resolution{Unresolved: true}
		}
		roleName = role.FallbackRole
	}

	r.logger.Warn("role fallback chain exceeded maximum depth",
		"user_id", userID, "role", roleName, "max_depth", MaxFallbackDepth)
	return Resolution{Unresolved: true}
}
