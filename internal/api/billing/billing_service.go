package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"

	"github.com/briefly-ai/briefly-api/config"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// PlanApplier is the slice of the plan service billing needs: applying a
// verified payment and revoking a gone subscription. Both are idempotent.
type PlanApplier interface {
	ConfirmPaid(ctx context.Context, userID uuid.UUID, tier types.PlanTier) error
	RevokePaid(ctx context.Context, userID uuid.UUID) error
}

// Service defines the business logic contract for Stripe billing.
type Service interface {
	// CreateCheckoutSession starts a hosted Checkout Session for the tier and
	// returns its URL.
	CreateCheckoutSession(ctx context.Context, userID uuid.UUID, tier types.PlanTier) (string, error)
	// ConfirmCheckout verifies a finished session with Stripe and applies the
	// purchased tier. Confirming an already-applied session is a no-op
	// success.
	ConfirmCheckout(ctx context.Context, userID uuid.UUID, sessionID string) (types.PlanTier, error)
	// HandleWebhookEvent dispatches a signature-verified Stripe event.
	HandleWebhookEvent(ctx context.Context, event stripe.Event) error
}

// InitStripe wires the Stripe API key. Call once at startup.
func InitStripe(cfg config.StripeConfig) {
	stripe.Key = cfg.SecretKey
}

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger      *slog.Logger
	cfg         config.StripeConfig
	planApplier PlanApplier
}

func NewBillingService(planApplier PlanApplier, cfg config.StripeConfig, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:      logger,
		cfg:         cfg,
		planApplier: planApplier,
	}
}

func (s *ServiceImpl) priceIDForTier(tier types.PlanTier) (string, error) {
	switch tier {
	case types.PlanTierStarter:
		if s.cfg.PriceIDStarter == "" {
			return "", fmt.Errorf("starter price not configured")
		}
		return s.cfg.PriceIDStarter, nil
	case types.PlanTierPro:
		if s.cfg.PriceIDPro == "" {
			return "", fmt.Errorf("pro price not configured")
		}
		return s.cfg.PriceIDPro, nil
	}
	return "", fmt.Errorf("unknown tier %q", tier)
}

func (s *ServiceImpl) tierForPriceID(priceID string) (types.PlanTier, error) {
	switch priceID {
	case s.cfg.PriceIDStarter:
		return types.PlanTierStarter, nil
	case s.cfg.PriceIDPro:
		return types.PlanTierPro, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPrice, priceID)
}

func (s *ServiceImpl) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, tier types.PlanTier) (string, error) {
	l := s.logger.With(slog.String("method", "CreateCheckoutSession"), slog.String("userID", userID.String()))

	priceID, err := s.priceIDForTier(tier)
	if err != nil {
		return "", err
	}

	frontendURL := strings.TrimRight(s.cfg.FrontendURL, "/")
	if frontendURL == "" {
		return "", fmt.Errorf("billing frontend URL not configured")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + s.cfg.CheckoutSuccessPath + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(frontendURL + s.cfg.CheckoutCancelPath),
		Metadata: map[string]string{
			"user_id": userID.String(),
			"tier":    string(tier),
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": userID.String(),
			},
		},
	}

	sess, err := session.New(params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create checkout session", slog.Any("error", err))
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	l.InfoContext(ctx, "Checkout session created", slog.String("sessionID", sess.ID), slog.String("tier", string(tier)))
	return sess.URL, nil
}

func (s *ServiceImpl) ConfirmCheckout(ctx context.Context, userID uuid.UUID, sessionID string) (types.PlanTier, error) {
	l := s.logger.With(slog.String("method", "ConfirmCheckout"), slog.String("userID", userID.String()))

	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("line_items")
	sess, err := session.Get(sessionID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to retrieve checkout session", slog.Any("error", err))
		return "", fmt.Errorf("failed to retrieve checkout session: %w", err)
	}

	if sess.ClientReferenceID != userID.String() {
		return "", ErrSessionMismatch
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return "", fmt.Errorf("%w: status %s", ErrPaymentIncomplete, sess.PaymentStatus)
	}

	tier, err := s.sessionTier(sess)
	if err != nil {
		return "", err
	}

	if err := s.planApplier.ConfirmPaid(ctx, userID, tier); err != nil {
		return "", err
	}

	l.InfoContext(ctx, "Checkout confirmed", slog.String("tier", string(tier)))
	return tier, nil
}

// sessionTier resolves the purchased tier, preferring the price ID on the
// session's line items over the metadata hint.
func (s *ServiceImpl) sessionTier(sess *stripe.CheckoutSession) (types.PlanTier, error) {
	if sess.LineItems != nil && len(sess.LineItems.Data) > 0 && sess.LineItems.Data[0].Price != nil {
		return s.tierForPriceID(sess.LineItems.Data[0].Price.ID)
	}
	if tier := types.PlanTier(sess.Metadata["tier"]); tier == types.PlanTierStarter || tier == types.PlanTierPro {
		return tier, nil
	}
	return "", fmt.Errorf("%w: session %s carries no resolvable price", ErrUnknownPrice, sess.ID)
}

func (s *ServiceImpl) HandleWebhookEvent(ctx context.Context, event stripe.Event) error {
	l := s.logger.With(slog.String("method", "HandleWebhookEvent"), slog.String("event", string(event.Type)))

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("invalid session payload: %w", err)
		}

		userID, err := uuid.Parse(sess.ClientReferenceID)
		if err != nil {
			return fmt.Errorf("session %s carries no user reference: %w", sess.ID, err)
		}

		tier, err := s.sessionTier(&sess)
		if err != nil {
			return err
		}

		if err := s.planApplier.ConfirmPaid(ctx, userID, tier); err != nil {
			return fmt.Errorf("failed to apply paid plan: %w", err)
		}
		l.InfoContext(ctx, "Plan applied from webhook", slog.String("userID", userID.String()), slog.String("tier", string(tier)))

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("invalid subscription payload: %w", err)
		}

		userID, err := uuid.Parse(sub.Metadata["user_id"])
		if err != nil {
			return fmt.Errorf("subscription %s carries no user reference: %w", sub.ID, err)
		}

		if err := s.planApplier.RevokePaid(ctx, userID); err != nil {
			return fmt.Errorf("failed to revoke paid plan: %w", err)
		}
		l.InfoContext(ctx, "Plan revoked from webhook", slog.String("userID", userID.String()))

	default:
		// Unhandled event types are acknowledged and dropped.
		l.DebugContext(ctx, "Ignoring webhook event")
	}
	return nil
}
