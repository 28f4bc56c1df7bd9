package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/payrouter/server/internal/module/payment/provider"
)

// Hooks receives dispatched webhook events. Implementations own persistence
// and business reactions; the processor only routes. Returning an error marks
// the delivery failed in the result without aborting the HTTP response.
type Hooks interface {
	CheckoutCompleted(ctx context.Context, event *provider.WebhookEvent, mode string) error
	PaymentSucceeded(ctx context.Context, event *provider.WebhookEvent) error
	PaymentFailed(ctx context.Context, event *provider.WebhookEvent) error
	SubscriptionCreated(ctx context.Context, event *provider.WebhookEvent) error
	SubscriptionUpdated(ctx context.Context, event *provider.WebhookEvent) error
	SubscriptionDeleted(ctx context.Context, event *provider.WebhookEvent) error
	InvoicePaid(ctx context.Context, event *provider.WebhookEvent) error
	InvoicePaymentFailed(ctx context.Context, event *provider.WebhookEvent) error
	InvoiceUpcoming(ctx context.Context, event *provider.WebhookEvent) error
}

// dispatch routes one parsed event to its handler. Event types are the
// provider-namespaced strings each adapter emits; the table folds equivalent
// vocabularies onto one handler so downstream code sees a single set of
// domain actions. Unknown types are a normal outcome, not an error.
func dispatch(ctx context.Context, hooks Hooks, event *provider.WebhookEvent) (result *WebhookResult) {
	// A panicking hook must not take down the delivery endpoint; report it
	// as a failed delivery so the provider redelivers.
	defer func() {
		if r := recover(); r != nil {
			result = &WebhookResult{
				Processed: false,
				Error:     fmt.Sprintf("handler panic: %v", r),
			}
		}
	}()

	var err error
	var message string

	switch event.Type {
	case "checkout.session.completed":
		mode := checkoutMode(event.Data)
		err = hooks.CheckoutCompleted(ctx, event, mode)
		message = "checkout completed (" + mode + ")"

	case "payment_intent.succeeded",
		"transaction.completed",
		"transaction.paid",
		"PAYMENT.CAPTURE.COMPLETED":
		err = hooks.PaymentSucceeded(ctx, event)
		message = "payment succeeded"

	case "payment_intent.payment_failed",
		"transaction.payment_failed",
		"PAYMENT.CAPTURE.DENIED":
		err = hooks.PaymentFailed(ctx, event)
		message = "payment failed"

	case "customer.subscription.created",
		"subscription.created",
		"BILLING.SUBSCRIPTION.CREATED":
		err = hooks.SubscriptionCreated(ctx, event)
		message = "subscription created"

	case "customer.subscription.updated",
		"subscription.updated",
		"BILLING.SUBSCRIPTION.UPDATED":
		err = hooks.SubscriptionUpdated(ctx, event)
		message = "subscription updated"

	case "customer.subscription.deleted",
		"subscription.canceled",
		"BILLING.SUBSCRIPTION.CANCELLED":
		err = hooks.SubscriptionDeleted(ctx, event)
		message = "subscription deleted"

	case "invoice.paid",
		"invoice.payment_succeeded":
		err = hooks.InvoicePaid(ctx, event)
		message = "invoice paid"

	case "invoice.payment_failed":
		err = hooks.InvoicePaymentFailed(ctx, event)
		message = "invoice payment failed"

	case "invoice.upcoming":
		err = hooks.InvoiceUpcoming(ctx, event)
		message = "invoice upcoming"

	default:
		return &WebhookResult{
			Processed: false,
			Message:   fmt.Sprintf("Unhandled event type: %s", event.Type),
		}
	}

	if err != nil {
		return &WebhookResult{
			Processed: false,
			Message:   message,
			Error:     err.Error(),
		}
	}
	return &WebhookResult{Processed: true, Message: message}
}

// checkoutMode branches a completed checkout into one-time payment vs
// subscription signup.
func checkoutMode(data json.RawMessage) string {
	var session struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(data, &session); err != nil || session.Mode == "" {
		return "payment"
	}
	return session.Mode
}

// LoggingHooks is the default Hooks implementation: log and acknowledge.
// Real business reactions live in the caller's implementation.
type LoggingHooks struct {
	logger *zap.Logger
}

// NewLoggingHooks creates log-only hooks.
func NewLoggingHooks(logger *zap.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

func (h *LoggingHooks) log(action string, event *provider.WebhookEvent) {
	h.logger.Info("webhook event",
		zap.String("action", action),
		zap.String("provider", event.Provider),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))
}

func (h *LoggingHooks) CheckoutCompleted(ctx context.Context, event *provider.WebhookEvent, mode string) error {
	h.log("checkout_completed_"+mode, event)
	return nil
}

func (h *LoggingHooks) PaymentSucceeded(ctx context.Context, event *provider.WebhookEvent) error {
	h.log("payment_succeeded", event)
	return nil
}

func (h *LoggingHooks) PaymentFailed(ctx context.Context, event *provider.WebhookEvent) error {
	h.log("payment_failed", event)
	return nil
}

func (h *LoggingHooks) SubscriptionCreated(ctx context.Context, event *provider.WebhookEvent) error {
	h.log("subscription_created", event)
	return nil
}

func (h *LoggingHooks) SubscriptionUpdated(ctx context.Context, event *provider.WebhookEvent) error {
	h.log("subscription_updated", event)
	return nil
}

func (h *LoggingHooks) SubscriptionDeleted(ctx context.Context, event *provider.WebhookEvent) error {
	h.log("subscription_deleted", event)
	return nil
}

func (h *LoggingHooks) InvoicePaid(ctx context.Context, event *provider.WebhookEvent) error {
	h.log("invoice_paid", event)
	return nil
}

func (h *LoggingHooks) InvoicePaymentFailed(ctx context.Context, event *provider.WebhookEvent) error {
	h.log("invoice_payment_failed", event)
	return nil
}

func (h *LoggingHooks) InvoiceUpcoming(ctx context.Context, event *provider.WebhookEvent) error {
	h.log("invoice_upcoming", event)
	return nil
}
