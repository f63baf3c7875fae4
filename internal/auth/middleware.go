package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/noah-isme/aegis/internal/platform/httpx"
	"github.com/noah-isme/aegis/internal/shared"
)

// Middleware authenticates callers by bearer API key.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require rejects requests without a valid API key and stores the resolved
// principal in the request context.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		rawKey, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || rawKey == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer API key")
			return
		}
		principal, err := m.Service.Authenticate(r.Context(), rawKey)
		if err != nil {
			m.Logger.Warn("api key rejected", slog.String("path", r.URL.Path))
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid API key")
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
