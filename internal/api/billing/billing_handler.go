package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/briefly-ai/briefly-api/config"
	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/api/auth"
	"github.com/briefly-ai/briefly-api/internal/api/plan"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// maxWebhookBodyBytes bounds the webhook payload read.
const maxWebhookBodyBytes = int64(65536)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Checkout(w http.ResponseWriter, r *http.Request)
	Confirm(w http.ResponseWriter, r *http.Request)
	Webhook(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	billingService Service
	webhookSecret  string
	logger         *slog.Logger
}

// NewHandlerImpl creates a new billing HandlerImpl instance.
func NewHandlerImpl(billingService Service, cfg config.StripeConfig, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		billingService: billingService,
		webhookSecret:  cfg.WebhookSecret,
		logger:         logger,
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

// Checkout godoc
// @Summary      Create Checkout Session
// @Description  Starts a Stripe Checkout Session for the chosen tier and returns the hosted page URL.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        body body CheckoutRequest true "Target tier"
// @Success      200 {object} CheckoutResponse
// @Failure      400 {object} types.Response "Invalid Tier"
// @Security     BearerAuth
// @Router       /billing/checkout [post]
func (h *HandlerImpl) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Checkout"))

	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if req.Tier != types.PlanTierStarter && req.Tier != types.PlanTierPro {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "tier must be 'starter' or 'pro'")
		return
	}

	url, err := h.billingService.CreateCheckoutSession(ctx, userID, req.Tier)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create checkout session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to start checkout")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, CheckoutResponse{URL: url})
}

// Confirm godoc
// @Summary      Confirm Checkout
// @Description  Verifies a finished checkout session with Stripe and applies the purchased plan.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Param        body body ConfirmRequest true "Checkout session id"
// @Success      200 {object} ConfirmResponse
// @Failure      400 {object} types.Response "Payment Incomplete"
// @Security     BearerAuth
// @Router       /billing/confirm [post]
func (h *HandlerImpl) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Confirm"))

	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if req.SessionID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "session_id is required")
		return
	}

	tier, err := h.billingService.ConfirmCheckout(ctx, userID, req.SessionID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to confirm checkout", slog.Any("error", err))
		switch {
		case errors.Is(err, ErrPaymentIncomplete):
			api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "Payment has not completed")
		case errors.Is(err, ErrSessionMismatch):
			api.ErrorResponse(w, r, http.StatusForbidden, api.CodeValidation, "Checkout session belongs to a different user")
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, api.CodeProfileNotFound, "Profile not found")
		case errors.Is(err, plan.ErrAlreadyPaid):
			api.ErrorResponse(w, r, http.StatusConflict, api.CodeAlreadyPaid, "Profile is already on a paid plan")
		default:
			api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to confirm payment")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, ConfirmResponse{Success: true, Tier: tier})
}

// Webhook godoc
// @Summary      Stripe Webhook
// @Description  Receives signature-verified Stripe events and applies plan changes.
// @Tags         Billing
// @Accept       json
// @Produce      json
// @Success      200 {object} types.Response "Acknowledged"
// @Failure      400 {object} types.Response "Bad Signature"
// @Router       /billing/webhook [post]
func (h *HandlerImpl) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Webhook"))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		l.WarnContext(ctx, "Failed to read webhook body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "invalid payload")
		return
	}

	if h.webhookSecret == "" {
		l.ErrorContext(ctx, "Webhook secret not configured")
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "webhook not configured")
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		r.Header.Get("Stripe-Signature"),
		h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		l.WarnContext(ctx, "Webhook signature verification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "signature verification failed")
		return
	}

	if err := h.billingService.HandleWebhookEvent(ctx, event); err != nil {
		l.ErrorContext(ctx, "Webhook processing failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "failed to process event")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "ok"})
}
