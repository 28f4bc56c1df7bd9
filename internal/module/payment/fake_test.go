package payment

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/payrouter/server/internal/module/payment/provider"
)

// fakeProvider is a configurable in-memory provider used across the package
// tests. Zero value behaves like a healthy provider that succeeds everything.
type fakeProvider struct {
	name    string
	version string

	mu    sync.Mutex
	calls map[string]int

	createIntentErr error
	confirmResult   *provider.PaymentResult
	confirmErr      error
	cancelResult    *provider.PaymentResult
	validateErr     error
	processEvent    *provider.WebhookEvent
	processErr      error
	healthErr       error
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{
		name:    name,
		version: "test",
		calls:   make(map[string]int),
	}
}

func (f *fakeProvider) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeProvider) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Version() string { return f.version }

func (f *fakeProvider) CreateCustomer(ctx context.Context, params provider.CustomerParams) (*provider.Customer, error) {
	f.record("create_customer")
	return &provider.Customer{
		ID:       f.name + "_cus_1",
		Email:    params.Email,
		Name:     params.Name,
		Provider: f.name,
		Metadata: params.Metadata,
	}, nil
}

func (f *fakeProvider) UpdateCustomer(ctx context.Context, customerID string, params provider.CustomerParams) (*provider.Customer, error) {
	f.record("update_customer")
	return &provider.Customer{ID: customerID, Email: params.Email, Provider: f.name}, nil
}

func (f *fakeProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	f.record("delete_customer")
	return nil
}

func (f *fakeProvider) CreatePaymentIntent(ctx context.Context, req *provider.PaymentIntentRequest) (*provider.PaymentIntent, error) {
	f.record("create_intent")
	if f.createIntentErr != nil {
		return nil, f.createIntentErr
	}
	return &provider.PaymentIntent{
		ID:        f.name + "_pi_1",
		Status:    provider.StatusRequiresConfirmation,
		Amount:    req.Amount,
		Currency:  req.Currency,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeProvider) ConfirmPayment(ctx context.Context, paymentIntentID string) (*provider.PaymentResult, error) {
	f.record("confirm_payment")
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	if f.confirmResult != nil {
		return f.confirmResult, nil
	}
	return &provider.PaymentResult{
		Success:       true,
		PaymentIntent: &provider.PaymentIntent{ID: paymentIntentID, Status: provider.StatusSucceeded},
	}, nil
}

func (f *fakeProvider) CancelPayment(ctx context.Context, paymentIntentID string) (*provider.PaymentResult, error) {
	f.record("cancel_payment")
	if f.cancelResult != nil {
		return f.cancelResult, nil
	}
	return &provider.PaymentResult{
		Success:       true,
		PaymentIntent: &provider.PaymentIntent{ID: paymentIntentID, Status: provider.StatusCanceled},
	}, nil
}

func (f *fakeProvider) CreateSubscription(ctx context.Context, params provider.SubscriptionParams) (*provider.Subscription, error) {
	f.record("create_subscription")
	return &provider.Subscription{
		ID:         f.name + "_sub_1",
		CustomerID: params.CustomerID,
		Status:     provider.SubscriptionActive,
	}, nil
}

func (f *fakeProvider) UpdateSubscription(ctx context.Context, subscriptionID string, update provider.SubscriptionUpdate) (*provider.Subscription, error) {
	f.record("update_subscription")
	return &provider.Subscription{ID: subscriptionID, Status: provider.SubscriptionActive}, nil
}

func (f *fakeProvider) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*provider.Subscription, error) {
	f.record("cancel_subscription")
	return &provider.Subscription{ID: subscriptionID, Status: provider.SubscriptionCanceled}, nil
}

func (f *fakeProvider) ValidateWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	f.record("validate_webhook")
	return f.validateErr
}

func (f *fakeProvider) ProcessWebhook(ctx context.Context, payload []byte) (*provider.WebhookEvent, error) {
	f.record("process_webhook")
	if f.processErr != nil {
		return nil, f.processErr
	}
	if f.processEvent != nil {
		return f.processEvent, nil
	}
	return &provider.WebhookEvent{
		ID:       "evt_1",
		Type:     "payment_intent.succeeded",
		Data:     []byte(`{}`),
		Created:  time.Now(),
		Provider: f.name,
	}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error {
	f.record("health_check")
	return f.healthErr
}

// fakeRefundProvider adds refund support on top of fakeProvider.
type fakeRefundProvider struct {
	*fakeProvider
	refundErr error
}

func (f *fakeRefundProvider) CreateRefund(ctx context.Context, paymentIntentID string, amount int64, reason string) (*provider.Refund, error) {
	f.record("create_refund")
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return &provider.Refund{
		ID:              "re_1",
		PaymentIntentID: paymentIntentID,
		Amount:          amount,
		Currency:        "usd",
		Status:          "succeeded",
		Reason:          reason,
		CreatedAt:       time.Now(),
	}, nil
}
