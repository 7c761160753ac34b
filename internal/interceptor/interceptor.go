// Package interceptor is the seam between the host platform's dispatch
// pipeline and the decision engine. The host registers the hook once and
// calls it synchronously before executing every service call.
package interceptor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/callguard/callguard/internal/entities"
	"github.com/callguard/callguard/internal/services/authorization"
)

// Decider evaluates one intercepted call.
type Decider interface {
	Decide(ctx context.Context, req *authorization.CallRequest) entities.Verdict
}

// DecisionRecorder receives decision metrics. Implementations must be
// safe for concurrent use.
type DecisionRecorder interface {
	RecordDecision(effect, reason string, durationSeconds float64)
	RecordChainExemption()
}

// Call is the host's pre-call payload: who is calling what, plus the
// correlation ids the platform attaches to nested invocations.
type Call struct {
	UserID       string
	Domain       string
	Service      string
	EntityIDs    []string
	CallID       string // id of this invocation
	ParentCallID string // id of the invocation that triggered this one
	Template     *authorization.TemplateContext
}

// PreCallFunc is the function shape the host's dispatch pipeline expects:
// return false to abort the call before it executes.
type PreCallFunc func(ctx context.Context, call Call) bool

// Hook adapts intercepted calls into decision requests. It derives the
// chain id from the host's correlation ids and records decision metrics.
type Hook struct {
	decider Decider
	metrics DecisionRecorder
	now     func() time.Time
}

// NewHook creates a Hook. metrics may be nil.
func NewHook(decider Decider, metrics DecisionRecorder) *Hook {
	return &Hook{decider: decider, metrics: metrics, now: time.Now}
}

// BeforeCall evaluates one call and returns its verdict. The boolean is
// the host-facing abort signal.
func (h *Hook) BeforeCall(ctx context.Context, call Call) (bool, entities.Verdict) {
	start := h.now()

	req := &authorization.CallRequest{
		UserID:    call.UserID,
		Domain:    call.Domain,
		EntityIDs: call.EntityIDs,
		Service:   call.Service,
		ChainID:   chainID(call),
		Template:  call.Template,
	}
	verdict := h.decider.Decide(ctx, req)

	if h.metrics != nil {
		h.metrics.RecordDecision(verdict.Effect.String(), string(verdict.Reason), h.now().Sub(start).Seconds())
		if verdict.Reason == entities.ReasonChainExempt {
			h.metrics.RecordChainExemption()
		}
	}
	return verdict.Allowed(), verdict
}

// Func returns the registration shape for the host's pre-call hook.
func (h *Hook) Func() PreCallFunc {
	return func(ctx context.Context, call Call) bool {
		allowed, _ := h.BeforeCall(ctx, call)
		return allowed
	}
}

// chainID picks the correlation token for chain tracking. A nested call
// joins its parent's chain; a root call starts a chain under its own id
// so descendants can claim the exemption. A call with no ids at all gets
// a synthesized chain of its own (depth 1, no exemption possible).
func chainID(call Call) string {
	if call.ParentCallID != "" {
		return call.ParentCallID
	}
	if call.CallID != "" {
		return call.CallID
	}
	return uuid.NewString()
}
