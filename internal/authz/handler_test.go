package authz

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, svc *Service) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	NewHandler(logger, svc).MountRoutes(r)
	return r
}

func TestCheckEndpoint(t *testing.T) {
	svc := newTestService(&fakeRoles{grantCode: "orders:read"}, &fakePolicies{}, nil)
	router := newTestRouter(t, svc)

	body := `{"user_id":7,"tenant_id":1,"resource":"orders","action":"read"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rr.Code)

	var result CheckResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.True(t, result.Allowed)
	require.Equal(t, SourceRbac, result.Source)
	require.Equal(t, "orders:read", result.MatchedPermission)
}

func TestCheckEndpointRejectsBadPayload(t *testing.T) {
	svc := newTestService(&fakeRoles{}, &fakePolicies{}, nil)
	router := newTestRouter(t, svc)

	cases := []string{
		`not json`,
		`{"user_id":0,"tenant_id":1,"resource":"orders","action":"read"}`,
		`{"user_id":7,"tenant_id":1,"action":"read"}`,
	}
	for _, body := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/check", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestBatchCheckEndpoint(t *testing.T) {
	svc := newTestService(&fakeRoles{grantCode: "orders:read"}, &fakePolicies{}, nil)
	router := newTestRouter(t, svc)

	body := `{"checks":[
		{"user_id":7,"tenant_id":1,"resource":"orders","action":"read"},
		{"user_id":7,"tenant_id":1,"resource":"invoices","action":"read"}
	]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/batch-check", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		Results []CheckResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Results, 2)
	require.True(t, payload.Results[0].Allowed)
	require.False(t, payload.Results[1].Allowed)
	require.Equal(t, SourceDefaultDeny, payload.Results[1].Source)
}

func TestBatchCheckEndpointLimits(t *testing.T) {
	svc := newTestService(&fakeRoles{}, &fakePolicies{}, nil)
	router := newTestRouter(t, svc)

	// Empty batch.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/batch-check", strings.NewReader(`{"checks":[]}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Oversized batch.
	var sb strings.Builder
	sb.WriteString(`{"checks":[`)
	for i := 0; i <= maxBatchSize; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"user_id":7,"tenant_id":1,"resource":"orders","action":"read"}`)
	}
	sb.WriteString(`]}`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/batch-check", strings.NewReader(sb.String())))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
