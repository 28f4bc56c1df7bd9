package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// PaddleConfig holds Paddle Billing configuration.
type PaddleConfig struct {
	APIKey        string
	WebhookSecret string
	Sandbox       bool
	BaseURL       string // overrides the environment default, used in tests
}

// PaddleProvider implements the Provider contract for Paddle Billing, a
// VAT-aware merchant-of-record backend. Paddle speaks plain JSON over HTTP
// with bearer auth; amounts are already strings of minor units so no unit
// conversion is needed.
type PaddleProvider struct {
	config *PaddleConfig
	http   *http.Client
}

// NewPaddleProvider creates a new Paddle provider.
func NewPaddleProvider(config *PaddleConfig) *PaddleProvider {
	return &PaddleProvider{
		config: config,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Name returns the provider name.
func (p *PaddleProvider) Name() string {
	return "paddle"
}

// Version returns the Paddle API version in use.
func (p *PaddleProvider) Version() string {
	return "2024-10"
}

func (p *PaddleProvider) baseURL() string {
	if p.config.BaseURL != "" {
		return p.config.BaseURL
	}
	if p.config.Sandbox {
		return "https://sandbox-api.paddle.com"
	}
	return "https://api.paddle.com"
}

// --- Wire types, decoded at the adapter boundary ---

type paddleCustomer struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	CustomData map[string]string `json:"custom_data,omitempty"`
}

type paddleMoney struct {
	Amount       string `json:"amount"` // minor units as a string
	CurrencyCode string `json:"currency_code"`
}

type paddleTransaction struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	CustomerID  string            `json:"customer_id"`
	CheckoutURL string            `json:"checkout_url,omitempty"`
	Details     *paddleMoney      `json:"totals,omitempty"`
	CustomData  map[string]string `json:"custom_data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type paddleSubscription struct {
	ID                 string            `json:"id"`
	CustomerID         string            `json:"customer_id"`
	Status             string            `json:"status"`
	CurrentPeriodStart time.Time         `json:"current_billing_period_start"`
	CurrentPeriodEnd   time.Time         `json:"current_billing_period_end"`
	ScheduledCancel    bool              `json:"scheduled_cancel"`
	CustomData         map[string]string `json:"custom_data,omitempty"`
}

// PaddleAPIError is the wire-level failure shape surfaced to the classifier.
type PaddleAPIError struct {
	Op         string
	StatusCode int
	Code       string `json:"code"`
	Detail     string `json:"detail"`
}

func (e *PaddleAPIError) Error() string {
	return fmt.Sprintf("paddle %s: %s (%d): %s", e.Op, e.Code, e.StatusCode, e.Detail)
}

// --- Customer Management ---

func (p *PaddleProvider) CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	body := map[string]any{"email": params.Email, "name": params.Name}
	if len(params.Metadata) > 0 {
		body["custom_data"] = params.Metadata
	}
	var out paddleCustomer
	if err := p.do(ctx, http.MethodPost, "/customers", body, &out); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return p.mapCustomer(&out), nil
}

func (p *PaddleProvider) UpdateCustomer(ctx context.Context, customerID string, params CustomerParams) (*Customer, error) {
	body := map[string]any{}
	if params.Email != "" {
		body["email"] = params.Email
	}
	if params.Name != "" {
		body["name"] = params.Name
	}
	if len(params.Metadata) > 0 {
		body["custom_data"] = params.Metadata
	}
	var out paddleCustomer
	if err := p.do(ctx, http.MethodPatch, "/customers/"+customerID, body, &out); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return p.mapCustomer(&out), nil
}

// DeleteCustomer archives the customer; Paddle keeps records for tax audits
// and offers no hard delete.
func (p *PaddleProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	body := map[string]any{"status": "archived"}
	if err := p.do(ctx, http.MethodPatch, "/customers/"+customerID, body, nil); err != nil {
		return fmt.Errorf("archive customer: %w", err)
	}
	return nil
}

// --- Payment Intents (Paddle transactions) ---

func (p *PaddleProvider) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	item := map[string]any{
		"quantity": 1,
		"price": map[string]any{
			"description": req.Description,
			"unit_price": paddleMoney{
				Amount:       strconv.FormatInt(req.Amount, 10),
				CurrencyCode: currency,
			},
		},
	}
	body := map[string]any{
		"items":         []map[string]any{item},
		"currency_code": currency,
	}
	if req.CustomerID != "" {
		body["customer_id"] = req.CustomerID
	}
	if req.CaptureMethod == CaptureManual {
		body["collection_mode"] = "manual"
	}
	if len(req.Metadata) > 0 {
		body["custom_data"] = req.Metadata
	}

	var out paddleTransaction
	if err := p.do(ctx, http.MethodPost, "/transactions", body, &out); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return p.mapTransaction(&out, req.Amount, currency), nil
}

func (p *PaddleProvider) ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error) {
	var out paddleTransaction
	err := p.do(ctx, http.MethodPost, "/transactions/"+paymentIntentID+"/confirm", map[string]any{}, &out)
	if err != nil {
		var apiErr *PaddleAPIError
		if asPaddleDecline(err, &apiErr) {
			return &PaymentResult{
				Success:     false,
				DeclineCode: apiErr.Code,
				Message:     "The payment was declined.",
			}, nil
		}
		return nil, fmt.Errorf("confirm transaction: %w", err)
	}
	pi := p.mapTransaction(&out, 0, "")
	return &PaymentResult{
		Success:       pi.Status == StatusSucceeded || pi.Status == StatusProcessing,
		PaymentIntent: pi,
	}, nil
}

func (p *PaddleProvider) CancelPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error) {
	var out paddleTransaction
	err := p.do(ctx, http.MethodPost, "/transactions/"+paymentIntentID+"/cancel", map[string]any{}, &out)
	if err != nil {
		return nil, fmt.Errorf("cancel transaction: %w", err)
	}
	pi := p.mapTransaction(&out, 0, "")
	return &PaymentResult{
		Success:       pi.Status == StatusCanceled,
		PaymentIntent: pi,
	}, nil
}

// --- Subscriptions ---

func (p *PaddleProvider) CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error) {
	body := map[string]any{
		"customer_id": params.CustomerID,
		"items": []map[string]any{
			{"price_id": params.PriceID, "quantity": 1},
		},
	}
	if params.TrialDays > 0 {
		body["trial_period"] = map[string]any{"interval": "day", "frequency": params.TrialDays}
	}
	if len(params.Metadata) > 0 {
		body["custom_data"] = params.Metadata
	}
	var out paddleSubscription
	if err := p.do(ctx, http.MethodPost, "/subscriptions", body, &out); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return p.mapSubscription(&out), nil
}

func (p *PaddleProvider) UpdateSubscription(ctx context.Context, subscriptionID string, update SubscriptionUpdate) (*Subscription, error) {
	body := map[string]any{}
	if update.PriceID != "" {
		body["items"] = []map[string]any{
			{"price_id": update.PriceID, "quantity": 1},
		}
	}
	if update.CancelAtPeriodEnd != nil {
		body["scheduled_cancel"] = *update.CancelAtPeriodEnd
	}
	if len(update.Metadata) > 0 {
		body["custom_data"] = update.Metadata
	}
	var out paddleSubscription
	if err := p.do(ctx, http.MethodPatch, "/subscriptions/"+subscriptionID, body, &out); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return p.mapSubscription(&out), nil
}

func (p *PaddleProvider) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*Subscription, error) {
	effective := "next_billing_period"
	if immediately {
		effective = "immediately"
	}
	body := map[string]any{"effective_from": effective}
	var out paddleSubscription
	if err := p.do(ctx, http.MethodPost, "/subscriptions/"+subscriptionID+"/cancel", body, &out); err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	return p.mapSubscription(&out), nil
}

// --- Webhooks ---

// ValidateWebhook checks the Paddle-Signature header: "ts=<unix>;h1=<hex>"
// where h1 is HMAC-SHA256 over "<ts>:<raw body>" with the webhook secret.
func (p *PaddleProvider) ValidateWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	sig := headers.Get("Paddle-Signature")
	if sig == "" {
		return fmt.Errorf("missing Paddle-Signature header")
	}

	var ts, h1 string
	for _, part := range strings.Split(sig, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "h1":
			h1 = v
		}
	}
	if ts == "" || h1 == "" {
		return fmt.Errorf("malformed Paddle-Signature header")
	}

	mac := hmac.New(sha256.New, []byte(p.config.WebhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(h1)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func (p *PaddleProvider) ProcessWebhook(ctx context.Context, payload []byte) (*WebhookEvent, error) {
	var event struct {
		EventID    string          `json:"event_id"`
		EventType  string          `json:"event_type"`
		OccurredAt time.Time       `json:"occurred_at"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("parse webhook event: %w", err)
	}
	return &WebhookEvent{
		ID:       event.EventID,
		Type:     event.EventType,
		Data:     event.Data,
		Created:  event.OccurredAt,
		Provider: p.Name(),
	}, nil
}

// --- Health ---

func (p *PaddleProvider) HealthCheck(ctx context.Context) error {
	if err := p.do(ctx, http.MethodGet, "/event-types", nil, nil); err != nil {
		return fmt.Errorf("paddle health check: %w", err)
	}
	return nil
}

// --- HTTP plumbing ---

// do issues one API call and decodes the "data" envelope into out.
func (p *PaddleProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &PaddleAPIError{Op: method + " " + path, StatusCode: resp.StatusCode}
		var envelope struct {
			Error *PaddleAPIError `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Detail = envelope.Error.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// --- Helpers ---

func (p *PaddleProvider) mapCustomer(c *paddleCustomer) *Customer {
	return &Customer{
		ID:       c.ID,
		Email:    c.Email,
		Name:     c.Name,
		Provider: p.Name(),
		Metadata: c.CustomData,
	}
}

// mapTransaction converts a Paddle transaction into the canonical intent. The
// requested amount wins over the wire totals so the amount invariant holds
// even when Paddle adds tax to the totals.
func (p *PaddleProvider) mapTransaction(t *paddleTransaction, amount int64, currency string) *PaymentIntent {
	out := &PaymentIntent{
		ID:           t.ID,
		ClientSecret: t.CheckoutURL,
		Status:       mapPaddleTransactionStatus(t.Status),
		Amount:       amount,
		Currency:     currency,
		CustomerID:   t.CustomerID,
		CreatedAt:    t.CreatedAt,
		Metadata:     t.CustomData,
	}
	if out.Amount == 0 && t.Details != nil {
		if v, err := strconv.ParseInt(t.Details.Amount, 10, 64); err == nil {
			out.Amount = v
		}
		out.Currency = strings.ToUpper(t.Details.CurrencyCode)
	}
	return out
}

// mapPaddleTransactionStatus maps every Paddle transaction status onto the
// canonical set.
func mapPaddleTransactionStatus(status string) PaymentStatus {
	switch status {
	case "draft":
		return StatusRequiresPaymentMethod
	case "ready":
		return StatusRequiresConfirmation
	case "billed":
		return StatusProcessing
	case "paid", "completed":
		return StatusSucceeded
	case "canceled":
		return StatusCanceled
	default:
		return StatusFailed
	}
}

func (p *PaddleProvider) mapSubscription(s *paddleSubscription) *Subscription {
	return &Subscription{
		ID:                 s.ID,
		CustomerID:         s.CustomerID,
		Status:             mapPaddleSubscriptionStatus(s.Status),
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.ScheduledCancel,
		Metadata:           s.CustomData,
	}
}

func mapPaddleSubscriptionStatus(status string) SubscriptionStatus {
	switch status {
	case "trialing":
		return SubscriptionTrialing
	case "active":
		return SubscriptionActive
	case "past_due":
		return SubscriptionPastDue
	case "canceled":
		return SubscriptionCanceled
	case "paused":
		return SubscriptionUnpaid
	default:
		return SubscriptionIncomplete
	}
}

// asPaddleDecline reports whether err is a Paddle payment decline.
func asPaddleDecline(err error, out **PaddleAPIError) bool {
	apiErr, ok := err.(*PaddleAPIError)
	if !ok {
		return false
	}
	switch apiErr.Code {
	case "payment_declined", "transaction_payment_declined", "insufficient_funds":
		*out = apiErr
		return true
	}
	return false
}
