package entities

import "time"

// Effect is the outcome of a decision evaluation.
type Effect int

const (
	EffectAllow Effect = iota
	EffectDeny
)

// String returns "allow" or "deny".
func (e Effect) String() string {
	if e == EffectDeny {
		return "deny"
	}
	return "allow"
}

// Reason identifies which evaluation step produced a verdict.
type Reason string

const (
	ReasonKillSwitch         Reason = "kill_switch"
	ReasonSystemCall         Reason = "system_call"
	ReasonExemptDomain       Reason = "exempt_domain"
	ReasonChainExempt        Reason = "chain_exempt"
	ReasonAdminBypass        Reason = "admin_bypass"
	ReasonDefaultRestriction Reason = "default_restriction"
	ReasonNoRestriction      Reason = "no_restriction"
	ReasonEntityRule         Reason = "entity_rule"
	ReasonDomainRule         Reason = "domain_rule"
	ReasonRoleDenyAllDefault Reason = "role_deny_all_default"
	ReasonImplicitAllow      Reason = "implicit_allow"
	ReasonRoleUnresolved     Reason = "role_unresolved"
)

// Verdict is the result of evaluating one intercepted service call.
type Verdict struct {
	Effect Effect
	Reason Reason
	Role   string // effective role name, empty when none applied
}

// Allowed reports whether the call may proceed.
func (v Verdict) Allowed() bool {
	return v.Effect == EffectAllow
}

// Allow builds an allowing verdict.
func Allow(reason Reason) Verdict {
	return Verdict{Effect: EffectAllow, Reason: reason}
}

// Deny builds a denying verdict.
func Deny(reason Reason) Verdict {
	return Verdict{Effect: EffectDeny, Reason: reason}
}

// Denial is one entry in the deny log.
type Denial struct {
	ID       int64
	Time     time.Time
	UserID   string
	Domain   string
	EntityID string
	Service  string
	Reason   Reason
	Role     string
	ChainID  string
}
