package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/paypal"
	"github.com/google/uuid"
)

// PayPalConfig holds PayPal configuration.
type PayPalConfig struct {
	ClientID  string
	Secret    string
	WebhookID string // ID of the registered webhook, required for verification
	IsProd    bool
	ReturnURL string
	CancelURL string
}

// PayPalProvider implements the Provider contract for PayPal. Payment intents
// map onto PayPal Orders: create builds an order with an approval link,
// confirm captures it. PayPal has no first-class customer object, so customer
// operations run degraded with a synthetic customer keyed by email.
type PayPalProvider struct {
	client *paypal.Client
	config *PayPalConfig
	http   *http.Client
}

// NewPayPalProvider creates a new PayPal provider.
func NewPayPalProvider(config *PayPalConfig) (*PayPalProvider, error) {
	client, err := paypal.NewClient(config.ClientID, config.Secret, config.IsProd)
	if err != nil {
		return nil, fmt.Errorf("create paypal client: %w", err)
	}
	return &PayPalProvider{
		client: client,
		config: config,
		http:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Name returns the provider name.
func (p *PayPalProvider) Name() string {
	return "paypal"
}

// Version returns the PayPal REST API version.
func (p *PayPalProvider) Version() string {
	return "v2"
}

func (p *PayPalProvider) baseURL() string {
	if p.config.IsProd {
		return "https://api-m.paypal.com"
	}
	return "https://api-m.sandbox.paypal.com"
}

// --- Customer Management (degraded: synthetic customers) ---

// CreateCustomer returns a synthetic customer keyed by email. PayPal exposes
// payer identity only at approval time, so no network call is made.
func (p *PayPalProvider) CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	if params.Email == "" {
		return nil, fmt.Errorf("paypal synthetic customers require an email")
	}
	return &Customer{
		ID:       syntheticCustomerID("paypal_cus_", params.Email),
		Email:    params.Email,
		Name:     params.Name,
		Provider: p.Name(),
		Metadata: params.Metadata,
	}, nil
}

func (p *PayPalProvider) UpdateCustomer(ctx context.Context, customerID string, params CustomerParams) (*Customer, error) {
	if params.Email == "" {
		return nil, fmt.Errorf("paypal synthetic customers require an email")
	}
	return &Customer{
		ID:       customerID,
		Email:    params.Email,
		Name:     params.Name,
		Provider: p.Name(),
		Metadata: params.Metadata,
	}, nil
}

func (p *PayPalProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	// Nothing exists on the provider side for synthetic customers.
	return nil
}

// --- Payment Intents (PayPal Orders) ---

func (p *PayPalProvider) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	intent := "CAPTURE"
	if req.CaptureMethod == CaptureManual {
		intent = "AUTHORIZE"
	}

	unit := map[string]any{
		"reference_id": uuid.New().String(),
		"amount": map[string]string{
			"currency_code": currency,
			"value":         MinorToDecimal(req.Amount, currency),
		},
	}
	if req.Description != "" {
		unit["description"] = req.Description
	}
	if req.CustomerID != "" {
		unit["custom_id"] = req.CustomerID
	}

	bm := make(gopay.BodyMap)
	bm.Set("intent", intent).
		Set("purchase_units", []map[string]any{unit})
	if p.config.ReturnURL != "" || p.config.CancelURL != "" {
		bm.SetBodyMap("application_context", func(b gopay.BodyMap) {
			if p.config.ReturnURL != "" {
				b.Set("return_url", p.config.ReturnURL)
			}
			if p.config.CancelURL != "" {
				b.Set("cancel_url", p.config.CancelURL)
			}
		})
	}

	rsp, err := p.client.CreateOrder(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if rsp.Code != paypal.Success {
		return nil, newPayPalAPIError("create order", rsp.Code, rsp.Error, rsp.ErrorResponse)
	}

	return p.mapOrder(rsp.Response, req.Amount, currency, req.CustomerID, req.Metadata), nil
}

func (p *PayPalProvider) ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error) {
	rsp, err := p.client.OrderCapture(ctx, paymentIntentID, nil)
	if err != nil {
		return nil, fmt.Errorf("capture order: %w", err)
	}
	if rsp.Code != paypal.Success {
		if issue := paypalDeclineIssue(rsp.ErrorResponse); issue != "" {
			return &PaymentResult{
				Success:     false,
				DeclineCode: issue,
				Message:     "The payment was declined by PayPal.",
			}, nil
		}
		return nil, newPayPalAPIError("capture order", rsp.Code, rsp.Error, rsp.ErrorResponse)
	}
	return &PaymentResult{
		Success:       true,
		PaymentIntent: p.mapOrder(rsp.Response, 0, "", "", nil),
	}, nil
}

// CancelPayment is degraded for PayPal: uncaptured orders cannot be voided via
// the Orders API, they expire on their own.
func (p *PayPalProvider) CancelPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error) {
	return nil, fmt.Errorf("cancel order %s: %w (paypal orders expire when not captured)", paymentIntentID, ErrUnsupportedOperation)
}

// --- Subscriptions (degraded: requires billing-plan onboarding) ---

func (p *PayPalProvider) CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error) {
	return nil, fmt.Errorf("create subscription: %w (paypal subscriptions require billing plan onboarding)", ErrUnsupportedOperation)
}

func (p *PayPalProvider) UpdateSubscription(ctx context.Context, subscriptionID string, update SubscriptionUpdate) (*Subscription, error) {
	return nil, fmt.Errorf("update subscription: %w", ErrUnsupportedOperation)
}

func (p *PayPalProvider) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*Subscription, error) {
	return nil, fmt.Errorf("cancel subscription: %w", ErrUnsupportedOperation)
}

// --- Webhooks ---

// ValidateWebhook verifies the delivery through PayPal's verify endpoint.
// PayPal signatures cannot be checked offline, so this is a network call.
func (p *PayPalProvider) ValidateWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	token, err := p.fetchAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("fetch access token: %w", err)
	}

	body := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        p.config.WebhookID,
		"webhook_event":     json.RawMessage(payload),
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL()+"/v1/notifications/verify-webhook-signature", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode verify response: %w", err)
	}
	if out.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("webhook verification failed: %s", out.VerificationStatus)
	}
	return nil
}

func (p *PayPalProvider) ProcessWebhook(ctx context.Context, payload []byte) (*WebhookEvent, error) {
	var event struct {
		ID         string          `json:"id"`
		EventType  string          `json:"event_type"`
		CreateTime time.Time       `json:"create_time"`
		Resource   json.RawMessage `json:"resource"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("parse webhook event: %w", err)
	}
	return &WebhookEvent{
		ID:       event.ID,
		Type:     event.EventType,
		Data:     event.Resource,
		Created:  event.CreateTime,
		Provider: p.Name(),
	}, nil
}

// --- Health ---

func (p *PayPalProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.fetchAccessToken(ctx); err != nil {
		return fmt.Errorf("paypal health check: %w", err)
	}
	return nil
}

// fetchAccessToken obtains a client-credentials token for the REST endpoints
// that the SDK does not cover.
func (p *PayPalProvider) fetchAccessToken(ctx context.Context) (string, error) {
	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+"/v1/oauth2/token", form)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.config.ClientID, p.config.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// --- Helpers ---

// mapOrder converts a PayPal order into the canonical intent. The requested
// amount and currency are carried through so unit conversion never leaks.
func (p *PayPalProvider) mapOrder(order *paypal.OrderDetail, amount int64, currency, customerID string, metadata map[string]string) *PaymentIntent {
	out := &PaymentIntent{
		Status:     mapPayPalOrderStatus(order.Status),
		Amount:     amount,
		Currency:   currency,
		CustomerID: customerID,
		CreatedAt:  time.Now(),
		Metadata:   metadata,
	}
	out.ID = order.Id
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			out.ClientSecret = link.Href
			break
		}
	}
	return out
}

// mapPayPalOrderStatus maps every PayPal order status onto the canonical set.
func mapPayPalOrderStatus(status string) PaymentStatus {
	switch status {
	case "CREATED", "PAYER_ACTION_REQUIRED":
		return StatusRequiresAction
	case "SAVED":
		return StatusRequiresPaymentMethod
	case "APPROVED":
		return StatusRequiresConfirmation
	case "COMPLETED":
		return StatusSucceeded
	case "VOIDED":
		return StatusCanceled
	default:
		return StatusFailed
	}
}

// PayPalAPIError is the wire-level failure shape surfaced to the classifier.
type PayPalAPIError struct {
	Op         string
	StatusCode int
	Name       string
	Msg        string
}

func (e *PayPalAPIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("paypal %s: %s (%d): %s", e.Op, e.Name, e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("paypal %s: status %d: %s", e.Op, e.StatusCode, e.Msg)
}

func newPayPalAPIError(op string, code int, msg string, errRsp *paypal.ErrorResponse) error {
	apiErr := &PayPalAPIError{Op: op, StatusCode: code, Msg: msg}
	if errRsp != nil {
		apiErr.Name = errRsp.Name
		if errRsp.Message != "" {
			apiErr.Msg = errRsp.Message
		}
	}
	return apiErr
}

// paypalDeclineIssue extracts a decline issue code from an error response, if
// the failure is a payer-level decline rather than an API fault.
func paypalDeclineIssue(errRsp *paypal.ErrorResponse) string {
	if errRsp == nil {
		return ""
	}
	for _, d := range errRsp.Details {
		switch d.Issue {
		case "INSTRUMENT_DECLINED", "PAYER_CANNOT_PAY", "TRANSACTION_REFUSED",
			"PAYEE_BLOCKED_TRANSACTION", "ORDER_NOT_APPROVED":
			return d.Issue
		}
	}
	return ""
}
