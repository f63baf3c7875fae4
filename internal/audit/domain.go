package audit

import (
	"time"

	"github.com/google/uuid"
)

// DecisionLog is one persisted authorization decision.
type DecisionLog struct {
	ID                uuid.UUID
	TenantID          int64
	UserID            int64
	Resource          string
	Action            string
	Allowed           bool
	Source            string
	DeniedReason      string
	MatchedPermission string
	MatchedPolicyID   *int64
	OccurredAt        time.Time
}
