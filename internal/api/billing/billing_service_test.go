package billing

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/briefly-ai/briefly-api/config"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// MockPlanApplier is a mock implementation of the PlanApplier interface
type MockPlanApplier struct {
	mock.Mock
}

func (m *MockPlanApplier) ConfirmPaid(ctx context.Context, userID uuid.UUID, tier types.PlanTier) error {
	args := m.Called(ctx, userID, tier)
	return args.Error(0)
}

func (m *MockPlanApplier) RevokePaid(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var testStripeCfg = config.StripeConfig{
	PriceIDStarter: "price_starter_123",
	PriceIDPro:     "price_pro_456",
	FrontendURL:    "https://app.briefly.example",
}

func newTestBillingService() (*ServiceImpl, *MockPlanApplier) {
	applier := new(MockPlanApplier)
	return NewBillingService(applier, testStripeCfg, slog.Default()), applier
}

func TestTierPriceMapping(t *testing.T) {
	service, _ := newTestBillingService()

	t.Run("RoundTrips", func(t *testing.T) {
		for _, tier := range []types.PlanTier{types.PlanTierStarter, types.PlanTierPro} {
			priceID, err := service.priceIDForTier(tier)
			require.NoError(t, err)
			got, err := service.tierForPriceID(priceID)
			require.NoError(t, err)
			assert.Equal(t, tier, got)
		}
	})

	t.Run("UnknownPrice", func(t *testing.T) {
		_, err := service.tierForPriceID("price_who_knows")
		assert.ErrorIs(t, err, ErrUnknownPrice)
	})

	t.Run("UnknownTier", func(t *testing.T) {
		_, err := service.priceIDForTier(types.PlanTier("platinum"))
		assert.Error(t, err)
	})
}

func TestSessionTier(t *testing.T) {
	service, _ := newTestBillingService()

	t.Run("PrefersLineItemPrice", func(t *testing.T) {
		sess := &stripe.CheckoutSession{
			LineItems: &stripe.LineItemList{
				Data: []*stripe.LineItem{
					{Price: &stripe.Price{ID: "price_pro_456"}},
				},
			},
			Metadata: map[string]string{"tier": "starter"},
		}

		tier, err := service.sessionTier(sess)
		require.NoError(t, err)
		assert.Equal(t, types.PlanTierPro, tier)
	})

	t.Run("FallsBackToMetadata", func(t *testing.T) {
		sess := &stripe.CheckoutSession{
			Metadata: map[string]string{"tier": "starter"},
		}

		tier, err := service.sessionTier(sess)
		require.NoError(t, err)
		assert.Equal(t, types.PlanTierStarter, tier)
	})

	t.Run("NoResolvablePrice", func(t *testing.T) {
		_, err := service.sessionTier(&stripe.CheckoutSession{})
		assert.ErrorIs(t, err, ErrUnknownPrice)
	})
}

func webhookEvent(t *testing.T, eventType string, payload any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleWebhookEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("CheckoutCompletedAppliesPlan", func(t *testing.T) {
		service, applier := newTestBillingService()
		userID := uuid.New()

		event := webhookEvent(t, "checkout.session.completed", map[string]any{
			"id":                  "cs_test_1",
			"client_reference_id": userID.String(),
			"metadata":            map[string]string{"tier": "pro"},
		})

		applier.On("ConfirmPaid", ctx, userID, types.PlanTierPro).Return(nil).Once()

		err := service.HandleWebhookEvent(ctx, event)

		assert.NoError(t, err)
		applier.AssertExpectations(t)
	})

	t.Run("CheckoutCompletedWithoutUserReference", func(t *testing.T) {
		service, applier := newTestBillingService()

		event := webhookEvent(t, "checkout.session.completed", map[string]any{
			"id":       "cs_test_2",
			"metadata": map[string]string{"tier": "pro"},
		})

		err := service.HandleWebhookEvent(ctx, event)

		assert.Error(t, err)
		applier.AssertNotCalled(t, "ConfirmPaid", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("SubscriptionDeletedRevokesPlan", func(t *testing.T) {
		service, applier := newTestBillingService()
		userID := uuid.New()

		event := webhookEvent(t, "customer.subscription.deleted", map[string]any{
			"id":       "sub_test_1",
			"metadata": map[string]string{"user_id": userID.String()},
		})

		applier.On("RevokePaid", ctx, userID).Return(nil).Once()

		err := service.HandleWebhookEvent(ctx, event)

		assert.NoError(t, err)
		applier.AssertExpectations(t)
	})

	t.Run("UnhandledEventAcknowledged", func(t *testing.T) {
		service, applier := newTestBillingService()

		event := webhookEvent(t, "invoice.created", map[string]any{"id": "in_test_1"})

		err := service.HandleWebhookEvent(ctx, event)

		assert.NoError(t, err)
		applier.AssertNotCalled(t, "ConfirmPaid", mock.Anything, mock.Anything, mock.Anything)
		applier.AssertNotCalled(t, "RevokePaid", mock.Anything, mock.Anything)
	})
}
