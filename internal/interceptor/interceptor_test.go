package interceptor

import (
	"context"
	"testing"

	"github.com/callguard/callguard/internal/entities"
	"github.com/callguard/callguard/internal/services/authorization"
)

type stubDecider struct {
	verdict entities.Verdict
	lastReq *authorization.CallRequest
}

func (s *stubDecider) Decide(ctx context.Context, req *authorization.CallRequest) entities.Verdict {
	s.lastReq = req
	return s.verdict
}

type recordedMetrics struct {
	effects    []string
	reasons    []string
	exemptions int
}

func (r *recordedMetrics) RecordDecision(effect, reason string, durationSeconds float64) {
	r.effects = append(r.effects, effect)
	r.reasons = append(r.reasons, reason)
}

func (r *recordedMetrics) RecordChainExemption() { r.exemptions++ }

func TestHook_BeforeCall(t *testing.T) {
	decider := &stubDecider{verdict: entities.Deny(entities.ReasonEntityRule)}
	metrics := &recordedMetrics{}
	hook := NewHook(decider, metrics)

	allowed, verdict := hook.BeforeCall(context.Background(), Call{
		UserID: "alice", Domain: "light", Service: "turn_off",
		EntityIDs: []string{"light.bedroom"},
		CallID:    "call-1", ParentCallID: "call-0",
	})

	if allowed {
		t.Error("BeforeCall() should signal abort for a denied verdict")
	}
	if verdict.Reason != entities.ReasonEntityRule {
		t.Errorf("verdict reason = %v, want entity_rule", verdict.Reason)
	}
	if decider.lastReq.ChainID != "call-0" {
		t.Errorf("ChainID = %q, want parent call id", decider.lastReq.ChainID)
	}
	if len(metrics.effects) != 1 || metrics.effects[0] != entities.EffectDeny.String() {
		t.Errorf("recorded effects = %v, want one deny", metrics.effects)
	}
}

func TestHook_ChainIDDerivation(t *testing.T) {
	tests := []struct {
		name string
		call Call
		want string // "" means synthesized
	}{
		{name: "nested call joins parent chain", call: Call{CallID: "c2", ParentCallID: "c1"}, want: "c1"},
		{name: "root call starts its own chain", call: Call{CallID: "c1"}, want: "c1"},
		{name: "no ids gets a synthesized chain", call: Call{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decider := &stubDecider{verdict: entities.Allow(entities.ReasonImplicitAllow)}
			hook := NewHook(decider, nil)

			hook.BeforeCall(context.Background(), tt.call)

			got := decider.lastReq.ChainID
			if tt.want != "" && got != tt.want {
				t.Errorf("ChainID = %q, want %q", got, tt.want)
			}
			if tt.want == "" && got == "" {
				t.Error("ChainID should be synthesized when the host provides none")
			}
		})
	}
}

func TestHook_RecordsChainExemption(t *testing.T) {
	decider := &stubDecider{verdict: entities.Allow(entities.ReasonChainExempt)}
	metrics := &recordedMetrics{}
	hook := NewHook(decider, metrics)

	hook.BeforeCall(context.Background(), Call{UserID: "alice", CallID: "c1"})

	if metrics.exemptions != 1 {
		t.Errorf("exemptions = %d, want 1", metrics.exemptions)
	}
}

func TestHook_FuncMatchesHostContract(t *testing.T) {
	decider := &stubDecider{verdict: entities.Allow(entities.ReasonAdminBypass)}
	pre := NewHook(decider, nil).Func()

	if !pre(context.Background(), Call{UserID: "alice", Domain: "light", Service: "turn_on"}) {
		t.Error("registered hook should pass allowed calls through")
	}
}
