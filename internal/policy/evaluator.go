package policy

import (
	"fmt"
	"reflect"
)

// ConditionEvaluator decides whether a policy's opaque condition predicate
// holds against the request context. No expression grammar is defined here;
// callers inject whatever semantics their conditions carry.
type ConditionEvaluator func(conditions, requestCtx map[string]any) (bool, error)

// EqualityConditions is the default ConditionEvaluator: every condition key
// must be present in the request context with a deeply equal value.
func EqualityConditions(conditions, requestCtx map[string]any) (bool, error) {
	for key, want := range conditions {
		got, ok := requestCtx[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

// EvalInput carries the attributes a policy is matched against.
type EvalInput struct {
	SubjectDescriptors []string
	Resource           string
	Action             string
	Context            map[string]any
}

// Verdict is the outcome of evaluating a policy list.
//
// Matched=false means no policy applied; that is not a decision, the caller
// must fall back to RBAC.
type Verdict struct {
	Matched      bool
	Allowed      bool
	PolicyID     int64
	DeniedReason string
}

// Evaluator is a pure first-applicable policy evaluator. It performs no I/O
// and holds no mutable state.
type Evaluator struct {
	conditions ConditionEvaluator
}

// NewEvaluator constructs an Evaluator. A nil conditions function falls back
// to EqualityConditions.
func NewEvaluator(conditions ConditionEvaluator) *Evaluator {
	if conditions == nil {
		conditions = EqualityConditions
	}
	return &Evaluator{conditions: conditions}
}

// Evaluate walks policies in the order supplied (the caller guarantees
// priority-descending order) and returns the verdict of the first match.
//
// This is first-applicable combining, not deny-overrides: once any policy
// matches, later policies are never consulted.
func (e *Evaluator) Evaluate(policies []Policy, in EvalInput) (Verdict, error) {
	for i := range policies {
		p := &policies[i]
		if !p.IsActive {
			// The store should already filter these; skip defensively.
			continue
		}
		if !matchesAny(p.Subjects, in.SubjectDescriptors) {
			continue
		}
		if !matchesOne(p.Resources, in.Resource) {
			continue
		}
		if !matchesOne(p.Actions, in.Action) {
			continue
		}
		if p.Conditions != nil {
			ok, err := e.conditions(p.Conditions, in.Context)
			if err != nil {
				return Verdict{}, fmt.Errorf("policy %d: evaluate conditions: %w", p.ID, err)
			}
			if !ok {
				continue
			}
		}

		verdict := Verdict{Matched: true, PolicyID: p.ID, Allowed: p.Effect == EffectAllow}
		if !verdict.Allowed {
			verdict.DeniedReason = fmt.Sprintf("denied by policy %q", p.Name)
		}
		return verdict, nil
	}
	return Verdict{}, nil
}

// matchesOne reports whether the pattern list contains the wildcard or the
// exact value.
func matchesOne(patterns []string, value string) bool {
	for _, pattern := range patterns {
		if pattern == Wildcard || pattern == value {
			return true
		}
	}
	return false
}

// matchesAny reports whether the pattern list contains the wildcard or any of
// the values.
func matchesAny(patterns []string, values []string) bool {
	for _, pattern := range patterns {
		if pattern == Wildcard {
			return true
		}
		for _, value := range values {
			if pattern == value {
				return true
			}
		}
	}
	return false
}
