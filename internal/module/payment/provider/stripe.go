package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/balance"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeProvider implements the Provider contract for Stripe.
type StripeProvider struct {
	apiKey        string
	webhookSecret string
}

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
}

// NewStripeProvider creates a new Stripe provider.
func NewStripeProvider(config *StripeConfig) *StripeProvider {
	stripe.Key = config.APIKey
	return &StripeProvider{
		apiKey:        config.APIKey,
		webhookSecret: config.WebhookSecret,
	}
}

// Name returns the provider name.
func (p *StripeProvider) Name() string {
	return "stripe"
}

// Version returns the pinned Stripe API version.
func (p *StripeProvider) Version() string {
	return stripe.APIVersion
}

// --- Customer Management ---

func (p *StripeProvider) CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	cp := &stripe.CustomerParams{
		Email: stripe.String(params.Email),
		Name:  stripe.String(params.Name),
	}
	cp.Context = ctx
	for k, v := range params.Metadata {
		cp.AddMetadata(k, v)
	}
	c, err := customer.New(cp)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return mapStripeCustomer(c), nil
}

func (p *StripeProvider) UpdateCustomer(ctx context.Context, customerID string, params CustomerParams) (*Customer, error) {
	cp := &stripe.CustomerParams{}
	cp.Context = ctx
	if params.Email != "" {
		cp.Email = stripe.String(params.Email)
	}
	if params.Name != "" {
		cp.Name = stripe.String(params.Name)
	}
	for k, v := range params.Metadata {
		cp.AddMetadata(k, v)
	}
	c, err := customer.Update(customerID, cp)
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return mapStripeCustomer(c), nil
}

func (p *StripeProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	cp := &stripe.CustomerParams{}
	cp.Context = ctx
	if _, err := customer.Del(customerID, cp); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

// --- Payment Intents ---

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if len(req.PaymentMethodTypes) > 0 {
		params.PaymentMethodTypes = stripe.StringSlice(req.PaymentMethodTypes)
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}
	if req.CaptureMethod == CaptureManual {
		params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return mapStripePaymentIntent(pi), nil
}

func (p *StripeProvider) ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	pi, err := paymentintent.Confirm(paymentIntentID, params)
	if err != nil {
		if result, ok := stripeDecline(err); ok {
			return result, nil
		}
		return nil, fmt.Errorf("confirm payment intent: %w", err)
	}
	return &PaymentResult{
		Success:       pi.Status == stripe.PaymentIntentStatusSucceeded || pi.Status == stripe.PaymentIntentStatusProcessing,
		PaymentIntent: mapStripePaymentIntent(pi),
	}, nil
}

func (p *StripeProvider) CancelPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	pi, err := paymentintent.Cancel(paymentIntentID, params)
	if err != nil {
		if result, ok := stripeDecline(err); ok {
			return result, nil
		}
		return nil, fmt.Errorf("cancel payment intent: %w", err)
	}
	return &PaymentResult{
		Success:       pi.Status == stripe.PaymentIntentStatusCanceled,
		PaymentIntent: mapStripePaymentIntent(pi),
	}, nil
}

// stripeDecline converts a card-type error into decline data. Other errors
// stay errors.
func stripeDecline(err error) (*PaymentResult, bool) {
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.Type == stripe.ErrorTypeCard {
		return &PaymentResult{
			Success:     false,
			DeclineCode: string(sErr.DeclineCode),
			Message:     sErr.Msg,
		}, true
	}
	return nil, false
}

// --- Subscriptions ---

func (p *StripeProvider) CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error) {
	sp := &stripe.SubscriptionParams{
		Customer: stripe.String(params.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(params.PriceID)},
		},
	}
	sp.Context = ctx
	if params.TrialDays > 0 {
		sp.TrialPeriodDays = stripe.Int64(int64(params.TrialDays))
	}
	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}
	sub, err := subscription.New(sp)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return mapStripeSubscription(sub), nil
}

func (p *StripeProvider) UpdateSubscription(ctx context.Context, subscriptionID string, update SubscriptionUpdate) (*Subscription, error) {
	sp := &stripe.SubscriptionParams{}
	sp.Context = ctx
	if update.PriceID != "" {
		sp.Items = []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(update.PriceID)},
		}
	}
	if update.CancelAtPeriodEnd != nil {
		sp.CancelAtPeriodEnd = stripe.Bool(*update.CancelAtPeriodEnd)
	}
	for k, v := range update.Metadata {
		sp.AddMetadata(k, v)
	}
	sub, err := subscription.Update(subscriptionID, sp)
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return mapStripeSubscription(sub), nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*Subscription, error) {
	if immediately {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		sub, err := subscription.Cancel(subscriptionID, params)
		if err != nil {
			return nil, fmt.Errorf("cancel subscription: %w", err)
		}
		return mapStripeSubscription(sub), nil
	}
	sp := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	sp.Context = ctx
	sub, err := subscription.Update(subscriptionID, sp)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription at period end: %w", err)
	}
	return mapStripeSubscription(sub), nil
}

// --- Webhooks ---

func (p *StripeProvider) ValidateWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	_, err := webhook.ConstructEvent(payload, headers.Get("Stripe-Signature"), p.webhookSecret)
	return err
}

func (p *StripeProvider) ProcessWebhook(ctx context.Context, payload []byte) (*WebhookEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("parse webhook event: %w", err)
	}
	return &WebhookEvent{
		ID:       event.ID,
		Type:     string(event.Type),
		Data:     event.Data.Raw,
		Created:  time.Unix(event.Created, 0),
		Provider: p.Name(),
	}, nil
}

// --- Health ---

func (p *StripeProvider) HealthCheck(ctx context.Context) error {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	if _, err := balance.Get(params); err != nil {
		return fmt.Errorf("stripe health check: %w", err)
	}
	return nil
}

// --- Refunds ---

func (p *StripeProvider) CreateRefund(ctx context.Context, paymentIntentID string, amount int64, reason string) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	if amount > 0 {
		params.Amount = stripe.Int64(amount)
	}
	if reason != "" {
		params.Reason = stripe.String(reason)
	}
	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return &Refund{
		ID:              r.ID,
		PaymentIntentID: paymentIntentID,
		Amount:          r.Amount,
		Currency:        string(r.Currency),
		Status:          string(r.Status),
		Reason:          string(r.Reason),
		CreatedAt:       time.Unix(r.Created, 0),
	}, nil
}

// --- Helpers ---

func mapStripeCustomer(c *stripe.Customer) *Customer {
	out := &Customer{
		ID:       c.ID,
		Email:    c.Email,
		Name:     c.Name,
		Provider: "stripe",
	}
	if c.Metadata != nil {
		out.Metadata = c.Metadata
	}
	return out
}

func mapStripePaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       mapStripeIntentStatus(pi.Status),
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		CreatedAt:    time.Unix(pi.Created, 0),
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	if pi.Metadata != nil {
		out.Metadata = pi.Metadata
	}
	return out
}

// mapStripeIntentStatus maps every Stripe intent status onto the canonical set.
func mapStripeIntentStatus(status stripe.PaymentIntentStatus) PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return StatusRequiresPaymentMethod
	case stripe.PaymentIntentStatusRequiresConfirmation:
		return StatusRequiresConfirmation
	case stripe.PaymentIntentStatusRequiresAction:
		return StatusRequiresAction
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		// A manually capturable intent is still in flight from the payer's
		// point of view.
		return StatusProcessing
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusCanceled
	default:
		return StatusFailed
	}
}

func mapStripeSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                 sub.ID,
		Status:             mapStripeSubscriptionStatus(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Metadata != nil {
		out.Metadata = sub.Metadata
	}
	return out
}

func mapStripeSubscriptionStatus(status stripe.SubscriptionStatus) SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusTrialing:
		return SubscriptionTrialing
	case stripe.SubscriptionStatusActive:
		return SubscriptionActive
	case stripe.SubscriptionStatusPastDue:
		return SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return SubscriptionCanceled
	case stripe.SubscriptionStatusUnpaid:
		return SubscriptionUnpaid
	case stripe.SubscriptionStatusIncomplete:
		return SubscriptionIncomplete
	default:
		return SubscriptionIncomplete
	}
}
