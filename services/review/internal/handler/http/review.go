package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/ReviewPulse/pkg/httputil"
	"github.com/utafrali/ReviewPulse/pkg/middleware"
	"github.com/utafrali/ReviewPulse/pkg/validator"
	"github.com/utafrali/ReviewPulse/services/review/internal/service"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// ConnectionRequest is the token pair handed over when a user finishes the OAuth flow.
type ConnectionRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
	ExpiresIn    int    `json:"expires_in" validate:"gte=0"`
}

// ListReviews handles GET /api/v1/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	unrepliedOnly, err := httputil.QueryBool(r, "unreplied_only")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	feed, err := h.service.ListReviews(r.Context(),
		middleware.UserIDFromContext(r.Context()),
		r.URL.Query().Get("store_id"),
		service.Filters{UnrepliedOnly: unrepliedOnly, Limit: limit},
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, feed)
}

// GetAnalytics handles GET /api/v1/reviews/analytics
func (h *ReviewHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	periodDays, err := httputil.QueryInt(r, "period_days", service.DefaultPeriodDays)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	snap, err := h.service.GetAnalytics(r.Context(),
		middleware.UserIDFromContext(r.Context()),
		r.URL.Query().Get("store_id"),
		periodDays,
	)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, snap)
}

// Connect handles PUT /api/v1/reviews/connection
func (h *ReviewHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	err := h.service.Connect(r.Context(), middleware.UserIDFromContext(r.Context()), service.ConnectInput{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    req.ExpiresIn,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Disconnect handles DELETE /api/v1/reviews/connection
func (h *ReviewHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Disconnect(r.Context(), middleware.UserIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
