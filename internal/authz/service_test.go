package authz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aegis/internal/policy"
	"github.com/noah-isme/aegis/internal/role"
	"github.com/noah-isme/aegis/internal/shared"
)

type fakeRoles struct {
	resolution role.Resolution
	resolveErr error

	grantCode string

	mu       sync.Mutex
	inflight int64
	maxSeen  int64
	delay    time.Duration
}

func (f *fakeRoles) Resolve(_ context.Context, _, _ int64) (role.Resolution, error) {
	current := atomic.AddInt64(&f.inflight, 1)
	defer atomic.AddInt64(&f.inflight, -1)

	f.mu.Lock()
	if current > f.maxSeen {
		f.maxSeen = current
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.resolveErr != nil {
		return role.Resolution{}, f.resolveErr
	}
	return f.resolution, nil
}

func (f *fakeRoles) HasPermission(_ context.Context, _, _ int64, code string) (string, bool, error) {
	if f.grantCode != "" && code == f.grantCode {
		return code, true, nil
	}
	return "", false, nil
}

type fakePolicies struct {
	policies []policy.Policy
	err      error
	calls    int64
}

func (f *fakePolicies) ActivePolicies(_ context.Context, _ int64) ([]policy.Policy, error) {
	atomic.AddInt64(&f.calls, 1)
	return f.policies, f.err
}

type capturingRecorder struct {
	mu      sync.Mutex
	results []CheckResult
	err     error
}

func (r *capturingRecorder) RecordDecision(_ context.Context, _ CheckRequest, result CheckResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return r.err
}

func newTestService(roles *fakeRoles, policies *fakePolicies, recorder DecisionRecorder) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(roles, policies, policy.NewEvaluator(nil), recorder, nil, logger)
}

func checkRequest() CheckRequest {
	return CheckRequest{UserID: 7, TenantID: 1, Resource: "orders", Action: "read"}
}

func TestCheckDefaultDeny(t *testing.T) {
	svc := newTestService(&fakeRoles{}, &fakePolicies{}, nil)

	result, err := svc.Check(context.Background(), checkRequest())
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Equal(t, SourceDefaultDeny, result.Source)
	require.Equal(t, DefaultDenyReason, result.DeniedReason)
	require.Empty(t, result.MatchedPermission)
	require.Nil(t, result.MatchedPolicyID)
}

func TestCheckRbacGrant(t *testing.T) {
	roles := &fakeRoles{grantCode: "orders:read"}
	svc := newTestService(roles, &fakePolicies{}, nil)

	result, err := svc.Check(context.Background(), checkRequest())
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Equal(t, SourceRbac, result.Source)
	require.Equal(t, "orders:read", result.MatchedPermission)
	require.Nil(t, result.MatchedPolicyID)
	require.Empty(t, result.DeniedReason)
}

func TestCheckPolicyDenyBeatsRbac(t *testing.T) {
	// The user holds the permission, but a deny policy applies first.
	roles := &fakeRoles{grantCode: "orders:read"}
	policies := &fakePolicies{policies: []policy.Policy{{
		ID: 3, Name: "freeze-orders", Effect: policy.EffectDeny, IsActive: true,
		Subjects: []string{"*"}, Resources: []string{"orders"}, Actions: []string{"*"},
	}}}
	svc := newTestService(roles, policies, nil)

	result, err := svc.Check(context.Background(), checkRequest())
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Equal(t, SourcePolicy, result.Source)
	require.NotNil(t, result.MatchedPolicyID)
	require.Equal(t, int64(3), *result.MatchedPolicyID)
	require.Contains(t, result.DeniedReason, "freeze-orders")
	require.Empty(t, result.MatchedPermission)
}

func TestCheckPolicyAllowIsTerminal(t *testing.T) {
	policies := &fakePolicies{policies: []policy.Policy{{
		ID: 4, Name: "open-orders", Effect: policy.EffectAllow, IsActive: true,
		Subjects: []string{"user:7"}, Resources: []string{"orders"}, Actions: []string{"read"},
	}}}
	svc := newTestService(&fakeRoles{}, policies, nil)

	result, err := svc.Check(context.Background(), checkRequest())
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Equal(t, SourcePolicy, result.Source)
	require.NotNil(t, result.MatchedPolicyID)
	require.Equal(t, int64(4), *result.MatchedPolicyID)
	require.Empty(t, result.MatchedPermission)
}

func TestCheckPolicySeesRoleDescriptors(t *testing.T) {
	roles := &fakeRoles{resolution: role.Resolution{
		Roles: []role.Role{{ID: 1, Code: "admin", IsActive: true}},
	}}
	policies := &fakePolicies{policies: []policy.Policy{{
		ID: 5, Name: "admin-everything", Effect: policy.EffectAllow, IsActive: true,
		Subjects: []string{"role:admin"}, Resources: []string{"*"}, Actions: []string{"*"},
	}}}
	svc := newTestService(roles, policies, nil)

	result, err := svc.Check(context.Background(), checkRequest())
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Equal(t, SourcePolicy, result.Source)
}

func TestCheckValidation(t *testing.T) {
	svc := newTestService(&fakeRoles{}, &fakePolicies{}, nil)

	bad := []CheckRequest{
		{UserID: 0, TenantID: 1, Resource: "orders", Action: "read"},
		{UserID: 7, TenantID: 0, Resource: "orders", Action: "read"},
		{UserID: 7, TenantID: 1, Resource: " ", Action: "read"},
		{UserID: 7, TenantID: 1, Resource: "orders", Action: ""},
	}
	for _, req := range bad {
		_, err := svc.Check(context.Background(), req)
		require.ErrorIs(t, err, shared.ErrValidation)
	}
}

func TestCheckFailsClosedOnResolveError(t *testing.T) {
	roles := &fakeRoles{resolveErr: errors.New("postgres down")}
	svc := newTestService(roles, &fakePolicies{}, nil)

	_, err := svc.Check(context.Background(), checkRequest())
	require.Error(t, err)
	require.ErrorContains(t, err, "resolve roles")
}

func TestCheckFailsClosedOnPolicyLoadError(t *testing.T) {
	policies := &fakePolicies{err: errors.New("postgres down")}
	svc := newTestService(&fakeRoles{}, policies, nil)

	_, err := svc.Check(context.Background(), checkRequest())
	require.Error(t, err)
	require.ErrorContains(t, err, "load policies")
}

func TestCheckRecorderFailureIsSilent(t *testing.T) {
	recorder := &capturingRecorder{err: errors.New("queue full")}
	svc := newTestService(&fakeRoles{grantCode: "orders:read"}, &fakePolicies{}, recorder)

	result, err := svc.Check(context.Background(), checkRequest())
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Len(t, recorder.results, 1)
}

func TestBatchCheckPreservesInputOrder(t *testing.T) {
	roles := &fakeRoles{grantCode: "orders:read"}
	svc := newTestService(roles, &fakePolicies{}, nil)

	reqs := make([]CheckRequest, 40)
	for i := range reqs {
		reqs[i] = checkRequest()
		if i%2 == 1 {
			reqs[i].Resource = "invoices" // no grant, default deny
		}
	}

	results, err := svc.BatchCheck(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 40)
	for i, result := range results {
		if i%2 == 0 {
			require.True(t, result.Allowed, "index %d", i)
			require.Equal(t, SourceRbac, result.Source)
		} else {
			require.False(t, result.Allowed, "index %d", i)
			require.Equal(t, SourceDefaultDeny, result.Source)
		}
	}
}

func TestBatchCheckBoundsConcurrency(t *testing.T) {
	roles := &fakeRoles{grantCode: "orders:read", delay: 5 * time.Millisecond}
	svc := newTestService(roles, &fakePolicies{}, nil)

	reqs := make([]CheckRequest, 50)
	for i := range reqs {
		reqs[i] = checkRequest()
	}

	_, err := svc.BatchCheck(context.Background(), reqs)
	require.NoError(t, err)

	roles.mu.Lock()
	maxSeen := roles.maxSeen
	roles.mu.Unlock()
	require.LessOrEqual(t, maxSeen, int64(batchConcurrency))
}

func TestBatchCheckFailsWholeBatch(t *testing.T) {
	roles := &fakeRoles{resolveErr: errors.New("postgres down")}
	svc := newTestService(roles, &fakePolicies{}, nil)

	results, err := svc.BatchCheck(context.Background(), []CheckRequest{checkRequest(), checkRequest()})
	require.Error(t, err)
	require.Nil(t, results)
}

func TestBatchCheckEmptyInput(t *testing.T) {
	svc := newTestService(&fakeRoles{}, &fakePolicies{}, nil)

	results, err := svc.BatchCheck(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, results)
}
