package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/payrouter/server/internal/module/payment/provider"
)

func newTestService(registry *Registry, config *RoutingConfig) *Service {
	router := NewRouter(registry, config)
	monitor := NewHealthMonitor(registry, nil)
	return NewService(registry, router, monitor, nil, zap.NewNop())
}

func intentRequest(amount int64, currency string) provider.PaymentIntentRequest {
	return provider.PaymentIntentRequest{Amount: amount, Currency: currency}
}

func TestService_CreatePayment_PinnedProvider(t *testing.T) {
	registry := NewRegistry()
	stripe := newFakeProvider("stripe")
	paypal := newFakeProvider("paypal")
	registry.Register(stripe)
	registry.Register(paypal)
	svc := newTestService(registry, nil)

	t.Run("pinned provider bypasses routing", func(t *testing.T) {
		intent, err := svc.CreatePayment(context.Background(), &PaymentRequest{
			Provider: "paypal",
			Intent:   intentRequest(1000, "USD"),
		})
		require.NoError(t, err)
		assert.Equal(t, "paypal_pi_1", intent.ID)
		assert.Equal(t, 0, stripe.callCount("create_intent"))
	})

	t.Run("pinned provider failure has no fallback", func(t *testing.T) {
		paypal.createIntentErr = errors.New("gateway down")
		defer func() { paypal.createIntentErr = nil }()
		before := stripe.callCount("create_intent")

		_, err := svc.CreatePayment(context.Background(), &PaymentRequest{
			Provider: "paypal",
			Intent:   intentRequest(1000, "USD"),
		})
		require.Error(t, err)
		assert.Equal(t, before, stripe.callCount("create_intent"))
	})

	t.Run("unknown pinned provider is a config error", func(t *testing.T) {
		_, err := svc.CreatePayment(context.Background(), &PaymentRequest{
			Provider: "klarna",
			Intent:   intentRequest(1000, "USD"),
		})
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})
}

func TestService_CreatePayment_Fallback(t *testing.T) {
	t.Run("primary failure falls back exactly once", func(t *testing.T) {
		registry := NewRegistry()
		stripe := newFakeProvider("stripe")
		stripe.createIntentErr = errors.New("gateway down")
		paypal := newFakeProvider("paypal")
		paddle := newFakeProvider("paddle")
		registry.Register(stripe)
		registry.Register(paypal)
		registry.Register(paddle)
		svc := newTestService(registry, nil)

		intent, err := svc.CreatePayment(context.Background(), &PaymentRequest{
			Intent: intentRequest(1000, "USD"),
		})
		require.NoError(t, err)
		assert.Equal(t, "paypal_pi_1", intent.ID)
		assert.Equal(t, 1, stripe.callCount("create_intent"))
		assert.Equal(t, 1, paypal.callCount("create_intent"))
		assert.Equal(t, 0, paddle.callCount("create_intent"))
	})

	t.Run("two attempts is the ceiling", func(t *testing.T) {
		registry := NewRegistry()
		stripe := newFakeProvider("stripe")
		stripe.createIntentErr = errors.New("gateway down")
		paypal := newFakeProvider("paypal")
		paypal.createIntentErr = errors.New("also down")
		paddle := newFakeProvider("paddle")
		registry.Register(stripe)
		registry.Register(paypal)
		registry.Register(paddle)
		svc := newTestService(registry, nil)

		_, err := svc.CreatePayment(context.Background(), &PaymentRequest{
			Intent: intentRequest(1000, "USD"),
		})
		require.Error(t, err)
		assert.Equal(t, 0, paddle.callCount("create_intent"))

		var pe *PaymentError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "paypal", pe.Provider)
	})

	t.Run("single candidate fails without fallback", func(t *testing.T) {
		registry := NewRegistry()
		stripe := newFakeProvider("stripe")
		stripe.createIntentErr = errors.New("gateway down")
		registry.Register(stripe)
		svc := newTestService(registry, nil)

		_, err := svc.CreatePayment(context.Background(), &PaymentRequest{
			Intent: intentRequest(1000, "USD"),
		})
		require.Error(t, err)
		assert.Equal(t, 1, stripe.callCount("create_intent"))
	})

	t.Run("filters removing everything fail fast", func(t *testing.T) {
		registry := NewRegistry()
		stripe := newFakeProvider("stripe")
		registry.Register(stripe)
		svc := newTestService(registry, nil)

		_, err := svc.CreatePayment(context.Background(), &PaymentRequest{
			ExcludeProviders: []string{"stripe"},
			Intent:           intentRequest(1000, "USD"),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoEligibleProvider)
		assert.True(t, IsConfigError(err))
		assert.Equal(t, 0, stripe.callCount("create_intent"))
	})
}

func TestService_CreatePayment_Routing(t *testing.T) {
	registry := NewRegistry()
	stripe := newFakeProvider("stripe")
	paypal := newFakeProvider("paypal")
	registry.Register(stripe)
	registry.Register(paypal)
	svc := newTestService(registry, &RoutingConfig{
		HighAmountThreshold: 100000,
		HighTrustProviders:  []string{"paypal"},
		EUCurrencies:        []string{"EUR"},
	})

	intent, err := svc.CreatePayment(context.Background(), &PaymentRequest{
		Intent: intentRequest(150000, "USD"),
	})
	require.NoError(t, err)
	assert.Equal(t, "paypal_pi_1", intent.ID)
	assert.Equal(t, 0, stripe.callCount("create_intent"))
}

func TestService_ConfirmPayment(t *testing.T) {
	registry := NewRegistry()
	stripe := newFakeProvider("stripe")
	registry.Register(stripe)
	svc := newTestService(registry, nil)

	t.Run("success", func(t *testing.T) {
		result, err := svc.ConfirmPayment(context.Background(), "", "pi_1")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, provider.StatusSucceeded, result.PaymentIntent.Status)
	})

	t.Run("business decline is data not error", func(t *testing.T) {
		stripe.confirmResult = &provider.PaymentResult{
			Success:     false,
			DeclineCode: "insufficient_funds",
			Message:     "Your card has insufficient funds.",
		}
		defer func() { stripe.confirmResult = nil }()

		result, err := svc.ConfirmPayment(context.Background(), "stripe", "pi_1")
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "insufficient_funds", result.DeclineCode)
	})

	t.Run("transport failure is classified", func(t *testing.T) {
		stripe.confirmErr = errors.New("connection refused")
		defer func() { stripe.confirmErr = nil }()

		_, err := svc.ConfirmPayment(context.Background(), "stripe", "pi_1")
		require.Error(t, err)
		var pe *PaymentError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, CodeProviderError, pe.Code)
	})
}

func TestService_CustomerOperations(t *testing.T) {
	registry := NewRegistry()
	stripe := newFakeProvider("stripe")
	registry.Register(stripe)
	svc := newTestService(registry, nil)
	ctx := context.Background()

	t.Run("empty provider name resolves to default", func(t *testing.T) {
		customer, err := svc.CreateCustomer(ctx, "", provider.CustomerParams{Email: "a@b.com"})
		require.NoError(t, err)
		assert.Equal(t, "stripe", customer.Provider)
	})

	t.Run("update and delete reach the provider", func(t *testing.T) {
		_, err := svc.UpdateCustomer(ctx, "stripe", "cus_1", provider.CustomerParams{Name: "New"})
		require.NoError(t, err)
		require.NoError(t, svc.DeleteCustomer(ctx, "stripe", "cus_1"))
		assert.Equal(t, 1, stripe.callCount("update_customer"))
		assert.Equal(t, 1, stripe.callCount("delete_customer"))
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := svc.CreateCustomer(ctx, "klarna", provider.CustomerParams{Email: "a@b.com"})
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})
}

func TestService_Subscriptions(t *testing.T) {
	registry := NewRegistry()
	stripe := newFakeProvider("stripe")
	registry.Register(stripe)
	svc := newTestService(registry, nil)
	ctx := context.Background()

	sub, err := svc.CreateSubscription(ctx, "", provider.SubscriptionParams{CustomerID: "cus_1", PriceID: "price_1"})
	require.NoError(t, err)
	assert.Equal(t, provider.SubscriptionActive, sub.Status)

	cancelAtEnd := true
	_, err = svc.UpdateSubscription(ctx, "", sub.ID, provider.SubscriptionUpdate{CancelAtPeriodEnd: &cancelAtEnd})
	require.NoError(t, err)

	canceled, err := svc.CancelSubscription(ctx, "", sub.ID, true)
	require.NoError(t, err)
	assert.Equal(t, provider.SubscriptionCanceled, canceled.Status)
}

func TestService_CreateRefund(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeRefundProvider{fakeProvider: newFakeProvider("stripe")})
	registry.Register(newFakeProvider("alipay"))
	svc := newTestService(registry, nil)
	ctx := context.Background()

	t.Run("refund through default provider", func(t *testing.T) {
		refund, err := svc.CreateRefund(ctx, "", "pi_1", 500, "requested_by_customer")
		require.NoError(t, err)
		assert.Equal(t, "pi_1", refund.PaymentIntentID)
		assert.Equal(t, int64(500), refund.Amount)
		assert.Equal(t, "usd", refund.Currency)
		assert.Equal(t, "succeeded", refund.Status)
		assert.False(t, refund.CreatedAt.IsZero())
	})

	t.Run("provider without refund support", func(t *testing.T) {
		_, err := svc.CreateRefund(ctx, "alipay", "pi_1", 500, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, provider.ErrUnsupportedOperation)
	})
}

func TestService_HealthCheck(t *testing.T) {
	registry := NewRegistry()
	stripe := newFakeProvider("stripe")
	paypal := newFakeProvider("paypal")
	paypal.healthErr = errors.New("gateway timeout")
	registry.Register(stripe)
	registry.Register(paypal)
	svc := newTestService(registry, nil)

	t.Run("checks every provider when name empty", func(t *testing.T) {
		reports := svc.HealthCheck(context.Background(), "")
		require.Len(t, reports, 2)
		assert.Equal(t, HealthStatusHealthy, reports[0].Status)
		assert.Equal(t, HealthStatusUnhealthy, reports[1].Status)
		assert.Equal(t, "gateway timeout", reports[1].Error)
	})

	t.Run("checks one provider by name", func(t *testing.T) {
		reports := svc.HealthCheck(context.Background(), "stripe")
		require.Len(t, reports, 1)
		assert.Equal(t, "stripe", reports[0].Provider)
		assert.Equal(t, HealthStatusHealthy, reports[0].Status)
	})

	t.Run("unknown provider reports unknown status", func(t *testing.T) {
		reports := svc.HealthCheck(context.Background(), "klarna")
		require.Len(t, reports, 1)
		assert.Equal(t, HealthStatusUnknown, reports[0].Status)
	})
}

func TestService_Providers(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newFakeProvider("stripe"))
	registry.Register(newFakeProvider("alipay"))
	svc := newTestService(registry, nil)

	assert.Equal(t, []string{"stripe", "alipay"}, svc.Providers())
}
