package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/aegis/internal/authz"
)

// Recorder enqueues decisions for the background audit writer. It implements
// authz.DecisionRecorder; enqueue failures surface to the caller, which logs
// and drops them without affecting the decision.
type Recorder struct {
	client *asynq.Client
}

// NewRecorder wraps an asynq client.
func NewRecorder(client *asynq.Client) *Recorder {
	return &Recorder{client: client}
}

// RecordDecision enqueues one decision log task.
func (r *Recorder) RecordDecision(ctx context.Context, req authz.CheckRequest, result authz.CheckResult) error {
	task, err := NewDecisionLoggedTask(DecisionLoggedPayload{
		TenantID:          req.TenantID,
		UserID:            req.UserID,
		Resource:          req.Resource,
		Action:            req.Action,
		Allowed:           result.Allowed,
		Source:            string(result.Source),
		DeniedReason:      result.DeniedReason,
		MatchedPermission: result.MatchedPermission,
		MatchedPolicyID:   result.MatchedPolicyID,
		OccurredAt:        time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("jobs: build decision task: %w", err)
	}
	if _, err := r.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		return fmt.Errorf("jobs: enqueue decision task: %w", err)
	}
	return nil
}

var _ authz.DecisionRecorder = (*Recorder)(nil)
