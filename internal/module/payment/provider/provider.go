package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// syntheticCustomerID derives a stable customer ID from an email for backends
// that have no customer object of their own. The same email always yields the
// same ID.
func syntheticCustomerID(prefix, email string) string {
	return prefix + uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(email))).String()
}

// ErrUnsupportedOperation marks a capability a backend cannot serve natively.
// Adapters return it wrapped with operation context; it is never retryable.
var ErrUnsupportedOperation = errors.New("operation not supported by provider")

// PaymentStatus is the canonical payment intent status. Every adapter maps its
// native status vocabulary onto exactly one of these values.
type PaymentStatus string

const (
	StatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	StatusRequiresConfirmation  PaymentStatus = "requires_confirmation"
	StatusRequiresAction        PaymentStatus = "requires_action"
	StatusProcessing            PaymentStatus = "processing"
	StatusSucceeded             PaymentStatus = "succeeded"
	StatusCanceled              PaymentStatus = "canceled"
	StatusFailed                PaymentStatus = "failed"
)

// Valid reports whether s is one of the canonical statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusRequiresPaymentMethod, StatusRequiresConfirmation, StatusRequiresAction,
		StatusProcessing, StatusSucceeded, StatusCanceled, StatusFailed:
		return true
	}
	return false
}

// SubscriptionStatus is the normalized subscription status used by all adapters.
type SubscriptionStatus string

const (
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

// CaptureMethod controls whether a payment is captured automatically on
// confirmation or held for a later explicit capture.
type CaptureMethod string

const (
	CaptureAutomatic CaptureMethod = "automatic"
	CaptureManual    CaptureMethod = "manual"
)

// CustomerParams holds the fields for creating or updating a customer.
type CustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// Customer represents a provider-side customer. IDs are provider-scoped and
// never reused across providers.
type Customer struct {
	ID       string
	Email    string
	Name     string
	Provider string
	Metadata map[string]string
}

// PaymentIntentRequest describes a payment to be created. Amount is always in
// the smallest currency unit; adapters own any conversion their backend needs.
type PaymentIntentRequest struct {
	Amount             int64
	Currency           string
	CustomerID         string
	Description        string
	Metadata           map[string]string
	PaymentMethodTypes []string
	CaptureMethod      CaptureMethod
}

// Validate checks the request invariants shared by all adapters.
func (r *PaymentIntentRequest) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be a positive integer in minor units, got %d", r.Amount)
	}
	if len(r.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO 4217 code, got %q", r.Currency)
	}
	if r.CaptureMethod != "" && r.CaptureMethod != CaptureAutomatic && r.CaptureMethod != CaptureManual {
		return fmt.Errorf("invalid capture method %q", r.CaptureMethod)
	}
	return nil
}

// PaymentIntent is the canonical view of a provider-side payment.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       PaymentStatus
	Amount       int64
	Currency     string
	CustomerID   string
	CreatedAt    time.Time
	Metadata     map[string]string
}

// PaymentResult models the outcome of confirm/cancel operations. A business
// decline is data (Success=false plus decline details); only transport or
// validation failures surface as errors.
type PaymentResult struct {
	Success       bool
	PaymentIntent *PaymentIntent
	DeclineCode   string
	Message       string
}

// SubscriptionParams holds the fields for creating a subscription.
type SubscriptionParams struct {
	CustomerID string
	PriceID    string
	TrialDays  int
	Metadata   map[string]string
}

// SubscriptionUpdate holds the mutable subscription fields. Nil pointers leave
// the provider-side value untouched.
type SubscriptionUpdate struct {
	PriceID           string
	CancelAtPeriodEnd *bool
	Metadata          map[string]string
}

// Subscription is the canonical view of a provider-side subscription.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// WebhookEvent is a verified, uniformly parsed provider callback.
type WebhookEvent struct {
	ID       string
	Type     string
	Data     json.RawMessage
	Created  time.Time
	Provider string
}

// Refund represents a provider-side refund.
type Refund struct {
	ID              string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Status          string
	Reason          string
	CreatedAt       time.Time
}

// Provider is the capability contract implemented by every payment backend.
// All methods are mandatory; adapters that cannot support an operation natively
// implement it with a documented degraded behavior (for example a synthetic
// customer keyed by email) instead of omitting it.
type Provider interface {
	// Name returns the registry name of the provider.
	Name() string

	// Version returns the backing API or SDK version string.
	Version() string

	// Customer management.
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, params CustomerParams) (*Customer, error)
	DeleteCustomer(ctx context.Context, customerID string) error

	// CreatePaymentIntent returns the provider-side state after the call; the
	// returned Amount always equals the requested amount in minor units.
	CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntent, error)

	// ConfirmPayment and CancelPayment never return an error for a business
	// decline; declines come back as PaymentResult data.
	ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error)
	CancelPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error)

	// Subscriptions.
	CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, update SubscriptionUpdate) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*Subscription, error)

	// ValidateWebhook verifies the provider signature over the raw body.
	// Some providers verify with a network round trip, hence the context.
	ValidateWebhook(ctx context.Context, payload []byte, headers http.Header) error

	// ProcessWebhook parses a verified raw payload into a uniform event.
	ProcessWebhook(ctx context.Context, payload []byte) (*WebhookEvent, error)

	// HealthCheck probes the provider backend.
	HealthCheck(ctx context.Context) error
}

// RefundProvider extends Provider for backends that support refunds against a
// captured payment.
type RefundProvider interface {
	Provider

	CreateRefund(ctx context.Context, paymentIntentID string, amount int64, reason string) (*Refund, error)
}
