package authz

// DecisionSource tags which stage produced the final decision.
type DecisionSource string

// Decision sources. Exactly one applies to every result.
const (
	SourceRbac        DecisionSource = "rbac"
	SourcePolicy      DecisionSource = "policy"
	SourceDefaultDeny DecisionSource = "default_deny"
)

// CheckRequest asks whether a user may perform an action on a resource
// within a tenant. Context feeds opaque policy conditions; it is never
// persisted.
type CheckRequest struct {
	UserID   int64          `json:"user_id"`
	TenantID int64          `json:"tenant_id"`
	Resource string         `json:"resource"`
	Action   string         `json:"action"`
	Context  map[string]any `json:"context,omitempty"`
}

// CheckResult is the decision for a single request.
//
// MatchedPermission is set iff Source is rbac; MatchedPolicyID is set iff
// Source is policy. RBAC decisions are always grants; explicit denial is only
// representable through a policy or the default deny.
type CheckResult struct {
	Allowed           bool           `json:"allowed"`
	Source            DecisionSource `json:"decision_source"`
	DeniedReason      string         `json:"denied_reason,omitempty"`
	MatchedPermission string         `json:"matched_permission,omitempty"`
	MatchedPolicyID   *int64         `json:"matched_policy_id,omitempty"`
}

// DefaultDenyReason is returned when neither a policy nor RBAC produced a
// grant.
const DefaultDenyReason = "No matching permission or policy found"
