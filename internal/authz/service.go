package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/aegis/internal/policy"
	"github.com/noah-isme/aegis/internal/role"
	"github.com/noah-isme/aegis/internal/shared"
)

// batchConcurrency bounds in-flight evaluations during BatchCheck.
const batchConcurrency = 10

// RoleResolver resolves effective roles and checks permission grants.
type RoleResolver interface {
	Resolve(ctx context.Context, tenantID, userID int64) (role.Resolution, error)
	HasPermission(ctx context.Context, tenantID, userID int64, code string) (string, bool, error)
}

// PolicySource serves active policies in evaluation order.
type PolicySource interface {
	ActivePolicies(ctx context.Context, tenantID int64) ([]policy.Policy, error)
}

// PolicyEvaluator evaluates an ordered policy list against a request.
type PolicyEvaluator interface {
	Evaluate(policies []policy.Policy, in policy.EvalInput) (policy.Verdict, error)
}

// DecisionRecorder receives completed decisions for the audit trail.
// Recording is best-effort; failures never affect the decision.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, req CheckRequest, result CheckResult) error
}

// Service is the policy decision point: it combines the policy evaluator with
// the RBAC fallback into the final decision.
type Service struct {
	roles     RoleResolver
	policies  PolicySource
	evaluator PolicyEvaluator
	recorder  DecisionRecorder
	metrics   *Metrics
	logger    *slog.Logger
}

// NewService constructs a Service. recorder and metrics may be nil.
func NewService(roles RoleResolver, policies PolicySource, evaluator PolicyEvaluator, recorder DecisionRecorder, metrics *Metrics, logger *slog.Logger) *Service {
	return &Service{
		roles:     roles,
		policies:  policies,
		evaluator: evaluator,
		recorder:  recorder,
		metrics:   metrics,
		logger:    logger,
	}
}

func validateRequest(req CheckRequest) error {
	if req.TenantID <= 0 {
		return fmt.Errorf("tenant id must be positive: %w", shared.ErrValidation)
	}
	if req.UserID <= 0 {
		return fmt.Errorf("user id must be positive: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(req.Resource) == "" {
		return fmt.Errorf("resource required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(req.Action) == "" {
		return fmt.Errorf("action required: %w", shared.ErrValidation)
	}
	return nil
}

// Check decides a single authorization request.
//
// A policy match, allow or deny, is terminal; RBAC is only consulted when no
// policy applied. Errors propagate instead of producing a result: callers
// must fail closed.
func (s *Service) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	start := time.Now()
	result, err := s.check(ctx, req)
	if err != nil {
		s.metrics.ObserveError()
		return CheckResult{}, err
	}
	s.metrics.ObserveDecision(result, time.Since(start))
	s.record(ctx, req, result)
	return result, nil
}

func (s *Service) check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	if err := validateRequest(req); err != nil {
		return CheckResult{}, err
	}

	resolution, err := s.roles.Resolve(ctx, req.TenantID, req.UserID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("authz: resolve roles: %w", err)
	}

	policies, err := s.policies.ActivePolicies(ctx, req.TenantID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("authz: load policies: %w", err)
	}

	verdict, err := s.evaluator.Evaluate(policies, policy.EvalInput{
		SubjectDescriptors: subjectDescriptors(req.UserID, resolution.Roles),
		Resource:           req.Resource,
		Action:             req.Action,
		Context:            req.Context,
	})
	if err != nil {
		return CheckResult{}, fmt.Errorf("authz: evaluate policies: %w", err)
	}
	if verdict.Matched {
		policyID := verdict.PolicyID
		return CheckResult{
			Allowed:         verdict.Allowed,
			Source:          SourcePolicy,
			DeniedReason:    verdict.DeniedReason,
			MatchedPolicyID: &policyID,
		}, nil
	}

	code := req.Resource + ":" + req.Action
	matched, granted, err := s.roles.HasPermission(ctx, req.TenantID, req.UserID, code)
	if err != nil {
		return CheckResult{}, fmt.Errorf("authz: check permission: %w", err)
	}
	if granted {
		return CheckResult{
			Allowed:           true,
			Source:            SourceRbac,
			MatchedPermission: matched,
		}, nil
	}

	return CheckResult{
		Allowed:      false,
		Source:       SourceDefaultDeny,
		DeniedReason: DefaultDenyReason,
	}, nil
}

// BatchCheck decides all requests concurrently with a bounded fan-out.
//
// Results preserve input order: each worker writes to its request's index.
// The first error aborts the whole batch; callers never receive a partial
// success/failure mix.
func (s *Service) BatchCheck(ctx context.Context, reqs []CheckRequest) ([]CheckResult, error) {
	results := make([]CheckResult, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			result, err := s.Check(ctx, req)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) record(ctx context.Context, req CheckRequest, result CheckResult) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordDecision(ctx, req, result); err != nil {
		s.logger.Warn("decision audit record failed", slog.Any("error", err))
	}
}

func subjectDescriptors(userID int64, roles []role.Role) []string {
	descriptors := make([]string, 0, len(roles)+1)
	descriptors = append(descriptors, "user:"+strconv.FormatInt(userID, 10))
	for _, r := range roles {
		descriptors = append(descriptors, "role:"+r.Code)
	}
	return descriptors
}
