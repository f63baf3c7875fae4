package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/noah-isme/aegis/internal/auth"
	"github.com/noah-isme/aegis/internal/authz"
	"github.com/noah-isme/aegis/internal/observability"
	"github.com/noah-isme/aegis/internal/permission"
	"github.com/noah-isme/aegis/internal/policy"
	"github.com/noah-isme/aegis/internal/role"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthMiddleware    auth.Middleware
	AuthzHandler      *authz.Handler
	PermissionHandler *permission.Handler
	RoleHandler       *role.Handler
	PolicyHandler     *policy.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Aegis defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	rateLimit := 200
	rateWindow := time.Second
	if params.Config != nil {
		if params.Config.CheckRateLimit > 0 {
			rateLimit = params.Config.CheckRateLimit
		}
		if params.Config.CheckRateWindow > 0 {
			rateWindow = params.Config.CheckRateWindow
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.AuthMiddleware.Require)

		r.Route("/authz", func(r chi.Router) {
			r.Use(httprate.LimitByIP(rateLimit, rateWindow))
			params.AuthzHandler.MountRoutes(r)
		})
		r.Route("/permissions", params.PermissionHandler.MountRoutes)
		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			params.RoleHandler.MountRoutes(r)
			r.Route("/policies", params.PolicyHandler.MountRoutes)
		})
	})

	return r
}
