package usage

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/types"
)

type Handler struct {
	usageService Service
	logger       *slog.Logger
}

func NewUsageHandler(usageService Service, logger *slog.Logger) *Handler {
	return &Handler{
		usageService: usageService,
		logger:       logger,
	}
}

// GetSummary godoc
// @Summary      All Month Summaries
// @Description  Returns every calendar-month usage bucket with per-feature counts and costs.
// @Tags         Admin
// @Produce      json
// @Success      200 {object} SummaryResponse
// @Security     BearerAuth
// @Router       /admin/usage/summary [get]
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetSummary"))

	summaries, err := h.usageService.MonthlySummaries(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to aggregate usage", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to aggregate usage")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, SummaryResponse{Summaries: summaries})
}

// GetMonthSummary godoc
// @Summary      Month Summary
// @Description  Returns one month's usage breakdown. Defaults to the current UTC month.
// @Tags         Admin
// @Produce      json
// @Param        month path string true "Month bucket (YYYY-MM)"
// @Success      200 {object} types.MonthlySummary
// @Failure      400 {object} types.Response "Invalid Month"
// @Security     BearerAuth
// @Router       /admin/usage/summary/{month} [get]
func (h *Handler) GetMonthSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetMonthSummary"))

	month := chi.URLParam(r, "month")
	if month != "" && !ValidMonthKey(month) {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "month must be YYYY-MM")
		return
	}

	summary, err := h.usageService.MonthSummary(ctx, month)
	if err != nil {
		l.ErrorContext(ctx, "Failed to aggregate month", slog.String("month", month), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to aggregate usage")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, summary)
}

// GetTopUsers godoc
// @Summary      Top Users By Spend
// @Description  Ranks users by total usage cost, descending.
// @Tags         Admin
// @Produce      json
// @Param        limit query int false "Maximum rows (default 10)"
// @Success      200 {object} TopUsersResponse
// @Security     BearerAuth
// @Router       /admin/usage/top [get]
func (h *Handler) GetTopUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetTopUsers"))

	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	users, err := h.usageService.TopUsers(ctx, limit)
	if err != nil {
		l.ErrorContext(ctx, "Failed to rank users", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to rank users")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, TopUsersResponse{Users: users})
}

// GetDashboard godoc
// @Summary      Usage Dashboard
// @Description  Returns the current month breakdown plus the spend ranking in one call.
// @Tags         Admin
// @Produce      json
// @Param        month query string false "Month bucket (YYYY-MM), defaults to current"
// @Param        limit query int false "Ranking rows (default 10)"
// @Success      200 {object} DashboardView
// @Security     BearerAuth
// @Router       /admin/usage/dashboard [get]
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetDashboard"))

	month := r.URL.Query().Get("month")
	if month != "" && !ValidMonthKey(month) {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "month must be YYYY-MM")
		return
	}

	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	view, err := h.usageService.Dashboard(ctx, month, limit)
	if err != nil {
		l.ErrorContext(ctx, "Failed to build dashboard", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to build dashboard")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

// AggregateBatch godoc
// @Summary      Aggregate Raw Records
// @Description  Aggregates a posted batch of raw usage records into month buckets. Field names tolerate snake_case and camelCase.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body body AggregateRequest true "Raw usage records"
// @Success      200 {object} SummaryResponse
// @Failure      400 {object} types.Response "Invalid Records"
// @Security     BearerAuth
// @Router       /admin/usage/aggregate [post]
func (h *Handler) AggregateBatch(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("handler", "AggregateBatch"))

	var req AggregateRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(r.Context(), "Failed to decode batch", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	for i, event := range req.Events {
		if !types.ValidFeature(event.Feature) {
			api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation,
				fmt.Sprintf("record %d: unknown feature %q", i, event.Feature))
			return
		}
	}

	summaries := h.usageService.AggregateBatch(req.Events)
	api.WriteJSONResponse(w, r, http.StatusOK, SummaryResponse{Summaries: summaries})
}
