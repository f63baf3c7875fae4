package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/aegis/internal/platform/httpx"
)

// maxBatchSize caps a single batch-check payload.
const maxBatchSize = 100

// Handler wires HTTP endpoints for the decision API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers decision endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
	r.Post("/batch-check", h.batchCheck)
}

type checkPayload struct {
	UserID   int64          `json:"user_id" validate:"required,gt=0"`
	TenantID int64          `json:"tenant_id" validate:"required,gt=0"`
	Resource string         `json:"resource" validate:"required"`
	Action   string         `json:"action" validate:"required"`
	Context  map[string]any `json:"context"`
}

type batchPayload struct {
	Checks []checkPayload `json:"checks" validate:"required,min=1,dive"`
}

func (p checkPayload) toRequest() CheckRequest {
	return CheckRequest{
		UserID:   p.UserID,
		TenantID: p.TenantID,
		Resource: p.Resource,
		Action:   p.Action,
		Context:  p.Context,
	}
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var payload checkPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Check(r.Context(), payload.toRequest())
	if err != nil {
		// Fail closed: an error is never a grant. The transport surfaces the
		// error; it does not fabricate an allow/deny result.
		h.logger.Error("authorization check failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) batchCheck(w http.ResponseWriter, r *http.Request) {
	var payload batchPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if len(payload.Checks) > maxBatchSize {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "too many checks in one batch")
		return
	}

	reqs := make([]CheckRequest, len(payload.Checks))
	for i, c := range payload.Checks {
		reqs[i] = c.toRequest()
	}
	results, err := h.service.BatchCheck(r.Context(), reqs)
	if err != nil {
		h.logger.Error("batch authorization check failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}
