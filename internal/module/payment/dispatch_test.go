package payment

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrouter/server/internal/module/payment/provider"
)

func eventOf(eventType string, data string) *provider.WebhookEvent {
	if data == "" {
		data = `{}`
	}
	return &provider.WebhookEvent{
		ID:   "evt_1",
		Type: eventType,
		Data: json.RawMessage(data),
	}
}

func TestDispatch_EventTable(t *testing.T) {
	tests := []struct {
		eventType  string
		data       string
		wantAction string
	}{
		{"checkout.session.completed", `{"mode":"subscription"}`, "checkout:subscription"},
		{"checkout.session.completed", `{"mode":"payment"}`, "checkout:payment"},
		{"checkout.session.completed", `{}`, "checkout:payment"},

		{"payment_intent.succeeded", "", "payment_succeeded"},
		{"transaction.completed", "", "payment_succeeded"},
		{"transaction.paid", "", "payment_succeeded"},
		{"PAYMENT.CAPTURE.COMPLETED", "", "payment_succeeded"},

		{"payment_intent.payment_failed", "", "payment_failed"},
		{"transaction.payment_failed", "", "payment_failed"},
		{"PAYMENT.CAPTURE.DENIED", "", "payment_failed"},

		{"customer.subscription.created", "", "subscription_created"},
		{"subscription.created", "", "subscription_created"},
		{"BILLING.SUBSCRIPTION.CREATED", "", "subscription_created"},

		{"customer.subscription.updated", "", "subscription_updated"},
		{"subscription.updated", "", "subscription_updated"},
		{"BILLING.SUBSCRIPTION.UPDATED", "", "subscription_updated"},

		{"customer.subscription.deleted", "", "subscription_deleted"},
		{"subscription.canceled", "", "subscription_deleted"},
		{"BILLING.SUBSCRIPTION.CANCELLED", "", "subscription_deleted"},

		{"invoice.paid", "", "invoice_paid"},
		{"invoice.payment_succeeded", "", "invoice_paid"},
		{"invoice.payment_failed", "", "invoice_payment_failed"},
		{"invoice.upcoming", "", "invoice_upcoming"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			hooks := &recordingHooks{}
			result := dispatch(context.Background(), hooks, eventOf(tt.eventType, tt.data))

			assert.True(t, result.Processed)
			require.Len(t, hooks.actions, 1)
			assert.Equal(t, tt.wantAction, hooks.actions[0])
		})
	}
}

func TestDispatch_UnhandledType(t *testing.T) {
	hooks := &recordingHooks{}
	result := dispatch(context.Background(), hooks, eventOf("charge.refunded", ""))

	assert.False(t, result.Processed)
	assert.Empty(t, result.Error)
	assert.Equal(t, "Unhandled event type: charge.refunded", result.Message)
	assert.Empty(t, hooks.actions)
}

func TestDispatch_HandlerError(t *testing.T) {
	hooks := &recordingHooks{err: assert.AnError}
	result := dispatch(context.Background(), hooks, eventOf("invoice.payment_failed", ""))

	assert.False(t, result.Processed)
	assert.Equal(t, assert.AnError.Error(), result.Error)
	assert.Equal(t, "invoice payment failed", result.Message)
}

type panickingHooks struct {
	recordingHooks
}

func (h *panickingHooks) PaymentSucceeded(ctx context.Context, event *provider.WebhookEvent) error {
	panic("hook blew up")
}

func TestDispatch_HandlerPanic(t *testing.T) {
	result := dispatch(context.Background(), &panickingHooks{}, eventOf("payment_intent.succeeded", ""))

	require.NotNil(t, result)
	assert.False(t, result.Processed)
	assert.Equal(t, "handler panic: hook blew up", result.Error)
}

func TestCheckoutMode(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected string
	}{
		{"subscription mode", `{"mode":"subscription"}`, "subscription"},
		{"payment mode", `{"mode":"payment"}`, "payment"},
		{"missing mode defaults to payment", `{}`, "payment"},
		{"malformed data defaults to payment", `not json`, "payment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checkoutMode(json.RawMessage(tt.data)))
		})
	}
}
