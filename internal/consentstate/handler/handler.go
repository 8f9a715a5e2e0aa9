package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentstate/internal/consentstate/models"
	dErrors "consentstate/pkg/domain-errors"
	"consentstate/pkg/platform/httputil"
	"consentstate/pkg/requestcontext"
)

// Service defines the consent state operations the handler exposes.
type Service interface {
	Resolve(ctx context.Context, visitorID, expectedHash string) (models.ResolvedState, error)
	Save(ctx context.Context, visitorID string, req *models.SaveRequest) (models.ResolvedState, error)
	Clear(ctx context.Context, visitorID string) error
}

// Handler serves the banner state endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a new consent state Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// Register registers the consent state routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/consent/state", h.HandleGetState)
	r.Put("/consent/state", h.HandleSaveState)
	r.Delete("/consent/state", h.HandleClearState)
}

// HandleGetState returns the banner state for the calling visitor.
// The optional hash query parameter overrides the current policy hash.
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	visitorID, ok := h.requireVisitor(w, r)
	if !ok {
		return
	}

	state, err := h.service.Resolve(ctx, visitorID, r.URL.Query().Get("hash"))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve consent state",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, state)
}

// HandleSaveState records the visitor's choices and returns the new banner state.
func (h *Handler) HandleSaveState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	visitorID, ok := h.requireVisitor(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeJSON[models.SaveRequest](ctx, w, r, h.logger, requestID)
	if !ok {
		return
	}

	state, err := h.service.Save(ctx, visitorID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to save consent state",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, state)
}

// HandleClearState forgets the visitor's choices.
func (h *Handler) HandleClearState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	visitorID, ok := h.requireVisitor(w, r)
	if !ok {
		return
	}

	if err := h.service.Clear(ctx, visitorID); err != nil {
		h.logger.ErrorContext(ctx, "failed to clear consent state",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireVisitor(w http.ResponseWriter, r *http.Request) (string, bool) {
	visitorID := requestcontext.VisitorID(r.Context())
	if visitorID == "" {
		h.logger.ErrorContext(r.Context(), "visitor id missing from context despite visitor middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "visitor context error"))
		return "", false
	}
	return visitorID, true
}
