package policy

import "time"

// Effect is the outcome a policy produces when it matches.
type Effect string

// Policy effects.
const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Valid reports whether the effect is one of the two known values.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// Wildcard matches any subject, resource or action in a pattern list.
const Wildcard = "*"

// Policy is an attribute-based access rule scoped to a tenant.
//
// Subjects, Resources and Actions are exact-string pattern lists; "*" matches
// everything. Conditions is an opaque predicate evaluated by an injected
// ConditionEvaluator after the pattern lists match; nil means unconditional.
type Policy struct {
	ID          int64          `json:"id"`
	TenantID    int64          `json:"tenant_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Effect      Effect         `json:"effect"`
	Subjects    []string       `json:"subjects"`
	Resources   []string       `json:"resources"`
	Actions     []string       `json:"actions"`
	Conditions  map[string]any `json:"conditions,omitempty"`
	Priority    int            `json:"priority"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
