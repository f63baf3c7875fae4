package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDecisionLogged persists one authorization decision to the audit trail.
	TaskDecisionLogged = "authz:decision_logged"
	// TaskPolicyWarmup re-primes tenant policy caches.
	TaskPolicyWarmup = "authz:policy_warmup"
)

// DecisionLoggedPayload carries one decision to the audit writer.
type DecisionLoggedPayload struct {
	TenantID          int64     `json:"tenant_id"`
	UserID            int64     `json:"user_id"`
	Resource          string    `json:"resource"`
	Action            string    `json:"action"`
	Allowed           bool      `json:"allowed"`
	Source            string    `json:"source"`
	DeniedReason      string    `json:"denied_reason,omitempty"`
	MatchedPermission string    `json:"matched_permission,omitempty"`
	MatchedPolicyID   *int64    `json:"matched_policy_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// NewDecisionLoggedTask builds the asynq task for a decision.
func NewDecisionLoggedTask(payload DecisionLoggedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDecisionLogged, data), nil
}

// PolicyWarmupPayload scopes a warmup run. A zero TenantID warms every tenant
// that has policies.
type PolicyWarmupPayload struct {
	TenantID int64 `json:"tenant_id,omitempty"`
}

// NewPolicyWarmupTask builds the asynq task for a cache warmup.
func NewPolicyWarmupTask(payload PolicyWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPolicyWarmup, data), nil
}
