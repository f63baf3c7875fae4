package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/aegis/internal/audit"
)

// DecisionLogJob writes enqueued decisions into the audit trail.
type DecisionLogJob struct {
	Audit  *audit.Service
	Logger *slog.Logger
}

// NewDecisionLogJob wires dependencies for the decision log handler.
func NewDecisionLogJob(auditSvc *audit.Service, logger *slog.Logger) *DecisionLogJob {
	return &DecisionLogJob{Audit: auditSvc, Logger: logger}
}

// Handle processes TaskDecisionLogged tasks.
func (j *DecisionLogJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("decision log: handler not configured")
	}
	var payload DecisionLoggedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	err := j.Audit.Record(ctx, audit.DecisionLog{
		TenantID:          payload.TenantID,
		UserID:            payload.UserID,
		Resource:          payload.Resource,
		Action:            payload.Action,
		Allowed:           payload.Allowed,
		Source:            payload.Source,
		DeniedReason:      payload.DeniedReason,
		MatchedPermission: payload.MatchedPermission,
		MatchedPolicyID:   payload.MatchedPolicyID,
		OccurredAt:        payload.OccurredAt,
	})
	if err != nil {
		j.Logger.Error("persist decision log", slog.Any("error", err))
		return err
	}
	return nil
}
