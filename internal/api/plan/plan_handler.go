package plan

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/api/auth"
	"github.com/briefly-ai/briefly-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetPlan(w http.ResponseWriter, r *http.Request)
	Subscribe(w http.ResponseWriter, r *http.Request)
	Upgrade(w http.ResponseWriter, r *http.Request)
	Downgrade(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	planService Service
	logger      *slog.Logger
}

// NewHandlerImpl creates a new plan HandlerImpl instance.
func NewHandlerImpl(planService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		planService: planService,
		logger:      logger,
	}
}

func (h *HandlerImpl) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userIDStr == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, api.CodeNotLoggedIn, "Authentication required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// GetPlan godoc
// @Summary      Get Plan State
// @Description  Returns the authenticated user's derived plan state.
// @Tags         Plan
// @Produce      json
// @Success      200 {object} PlanResponse "Plan State"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /plan [get]
func (h *HandlerImpl) GetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetPlan"))

	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	_, state, err := h.planService.GetPlanState(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to get plan state", slog.Any("error", err))
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, api.CodeProfileNotFound, "Profile not found")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to retrieve plan state")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, PlanResponse{Success: true, PlanState: state})
}

// Subscribe godoc
// @Summary      Subscribe
// @Description  Moves a trial profile to a paid tier.
// @Tags         Plan
// @Accept       json
// @Produce      json
// @Param        body body SubscribeRequest true "Target tier"
// @Success      200 {object} types.Response "Subscribed"
// @Failure      409 {object} types.Response "Already Paid"
// @Security     BearerAuth
// @Router       /plan/subscribe [post]
func (h *HandlerImpl) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Subscribe"))

	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if req.Tier != types.PlanTierStarter && req.Tier != types.PlanTierPro {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "tier must be 'starter' or 'pro'")
		return
	}

	if err := h.planService.Subscribe(ctx, userID, req.Tier); err != nil {
		h.writeTransitionError(w, r, err, "Failed to subscribe")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "Subscription active"})
}

// Upgrade godoc
// @Summary      Upgrade Plan
// @Description  Moves a paid starter profile to pro.
// @Tags         Plan
// @Produce      json
// @Success      200 {object} types.Response "Upgraded"
// @Failure      409 {object} types.Response "Invalid Transition"
// @Security     BearerAuth
// @Router       /plan/upgrade [post]
func (h *HandlerImpl) Upgrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.planService.Upgrade(r.Context(), userID); err != nil {
		h.writeTransitionError(w, r, err, "Failed to upgrade")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "Plan upgraded to pro"})
}

// Downgrade godoc
// @Summary      Downgrade Plan
// @Description  Moves a paid pro profile to starter, effective immediately.
// @Tags         Plan
// @Produce      json
// @Success      200 {object} types.Response "Downgraded"
// @Failure      409 {object} types.Response "Invalid Transition"
// @Security     BearerAuth
// @Router       /plan/downgrade [post]
func (h *HandlerImpl) Downgrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.planService.Downgrade(r.Context(), userID); err != nil {
		h.writeTransitionError(w, r, err, "Failed to downgrade")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "Plan downgraded to starter"})
}

// Cancel godoc
// @Summary      Cancel Plan
// @Description  Flags the paid plan for non-renewal; access remains until the validity window elapses.
// @Tags         Plan
// @Produce      json
// @Success      200 {object} types.Response "Cancellation flagged"
// @Failure      409 {object} types.Response "No Paid Plan"
// @Security     BearerAuth
// @Router       /plan/cancel [post]
func (h *HandlerImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.planService.Cancel(r.Context(), userID); err != nil {
		h.writeTransitionError(w, r, err, "Failed to cancel")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "Cancellation recorded; access remains until the end of the paid period"})
}

func (h *HandlerImpl) writeTransitionError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	h.logger.ErrorContext(r.Context(), logMsg, slog.Any("error", err))
	switch {
	case errors.Is(err, ErrAlreadyPaid):
		api.ErrorResponse(w, r, http.StatusConflict, api.CodeAlreadyPaid, "Profile is already on a paid plan")
	case errors.Is(err, ErrNotOnStarter):
		api.ErrorResponse(w, r, http.StatusConflict, api.CodeNotOnStarter, "Upgrade requires an active starter plan")
	case errors.Is(err, ErrNotOnPro):
		api.ErrorResponse(w, r, http.StatusConflict, api.CodeNotOnPro, "Downgrade requires an active pro plan")
	case errors.Is(err, ErrNotPaid):
		api.ErrorResponse(w, r, http.StatusConflict, api.CodeValidation, "No paid plan to cancel")
	case errors.Is(err, types.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, api.CodeProfileNotFound, "Profile not found")
	default:
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Plan operation failed")
	}
}
