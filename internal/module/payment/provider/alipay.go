package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/alipay"
	"github.com/google/uuid"
)

const alipaySuccessCode = "10000"

// AlipayConfig holds Alipay configuration.
type AlipayConfig struct {
	AppID           string // Application ID
	PrivateKey      string // RSA2 private key (PEM format)
	AlipayPublicKey string // Alipay public key for verification (PEM format)
	IsProd          bool   // Production environment flag
	NotifyURL       string // Default notify URL
}

// AlipayProvider implements the Provider contract for Alipay QR payments.
// Alipay has no customer object and no card vault, so customers are synthetic
// records keyed by email, and subscriptions are unsupported because periodic
// deduction requires a separate agreement signing flow.
type AlipayProvider struct {
	client *alipay.Client
	config *AlipayConfig
}

// NewAlipayProvider creates a new Alipay provider.
func NewAlipayProvider(config *AlipayConfig) (*AlipayProvider, error) {
	client, err := alipay.NewClient(config.AppID, config.PrivateKey, config.IsProd)
	if err != nil {
		return nil, fmt.Errorf("create alipay client: %w", err)
	}

	// Set public key for auto signature verification
	client.AutoVerifySign([]byte(config.AlipayPublicKey))

	return &AlipayProvider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *AlipayProvider) Name() string {
	return "alipay"
}

// Version returns the Alipay OpenAPI version in use.
func (p *AlipayProvider) Version() string {
	return "1.0"
}

// --- Customer Management (synthetic, Alipay has no customer API) ---

func (p *AlipayProvider) CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	if params.Email == "" {
		return nil, errors.New("email is required for alipay customers")
	}
	return &Customer{
		ID:       syntheticCustomerID("alipay_cus_", params.Email),
		Email:    params.Email,
		Name:     params.Name,
		Provider: p.Name(),
		Metadata: params.Metadata,
	}, nil
}

func (p *AlipayProvider) UpdateCustomer(ctx context.Context, customerID string, params CustomerParams) (*Customer, error) {
	return &Customer{
		ID:       customerID,
		Email:    params.Email,
		Name:     params.Name,
		Provider: p.Name(),
		Metadata: params.Metadata,
	}, nil
}

func (p *AlipayProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	// Synthetic records hold no remote state.
	return nil
}

// --- Payment Intents (face-to-face QR trades) ---

// CreatePaymentIntent precreates a QR trade. The QR code URL is returned as
// the client secret so the caller can render it for scanning.
func (p *AlipayProvider) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(req.Currency)
	if currency != "CNY" {
		return nil, fmt.Errorf("alipay only supports CNY, got %s", currency)
	}
	if req.CaptureMethod == CaptureManual {
		return nil, fmt.Errorf("manual capture: %w", ErrUnsupportedOperation)
	}

	orderID := "pr_" + uuid.NewString()
	subject := req.Description
	if subject == "" {
		subject = "Payment " + orderID
	}

	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", orderID)
	bm.Set("total_amount", MinorToDecimal(req.Amount, currency))
	bm.Set("subject", subject)
	bm.Set("timeout_express", "30m")
	bm.Set("product_code", "FACE_TO_FACE_PAYMENT")

	// Carry metadata through the notify round trip as passback_params.
	if len(req.Metadata) > 0 {
		passback, _ := json.Marshal(req.Metadata)
		bm.Set("passback_params", string(passback))
	}

	resp, err := p.client.TradePrecreate(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("precreate trade: %w", err)
	}
	if resp.Response.Code != alipaySuccessCode {
		return nil, newAlipayAPIError("precreate trade", resp.Response.Code, resp.Response.Msg)
	}

	return &PaymentIntent{
		ID:           orderID,
		ClientSecret: resp.Response.QrCode,
		Status:       StatusRequiresAction,
		Amount:       req.Amount,
		Currency:     currency,
		CustomerID:   req.CustomerID,
		CreatedAt:    time.Now(),
		Metadata:     req.Metadata,
	}, nil
}

// ConfirmPayment queries the trade. Alipay payments complete on the buyer's
// device, so confirmation is an observation of the trade state rather than a
// server-side capture.
func (p *AlipayProvider) ConfirmPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error) {
	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", paymentIntentID)

	resp, err := p.client.TradeQuery(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("query trade: %w", err)
	}
	if resp.Response.Code != alipaySuccessCode {
		// Trade not found means the buyer never scanned, not an outage.
		if resp.Response.Code == "40004" {
			return &PaymentResult{
				Success:     false,
				DeclineCode: "trade_not_exist",
				Message:     "The trade has not been paid.",
			}, nil
		}
		return nil, newAlipayAPIError("query trade", resp.Response.Code, resp.Response.Msg)
	}

	status := mapAlipayTradeStatus(resp.Response.TradeStatus)
	pi := &PaymentIntent{
		ID:        paymentIntentID,
		Status:    status,
		Currency:  "CNY",
		CreatedAt: time.Now(),
	}
	if amount, err := DecimalToMinor(resp.Response.TotalAmount, "CNY"); err == nil {
		pi.Amount = amount
	}

	if status != StatusSucceeded {
		return &PaymentResult{
			Success:       false,
			PaymentIntent: pi,
			DeclineCode:   "buyer_not_paid",
			Message:       "The buyer has not completed the payment.",
		}, nil
	}
	return &PaymentResult{Success: true, PaymentIntent: pi}, nil
}

// CancelPayment closes an unpaid trade.
func (p *AlipayProvider) CancelPayment(ctx context.Context, paymentIntentID string) (*PaymentResult, error) {
	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", paymentIntentID)

	resp, err := p.client.TradeClose(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("close trade: %w", err)
	}
	if resp.Response.Code != alipaySuccessCode {
		// Closing a paid trade is a business refusal, not an outage.
		if resp.Response.Code == "40004" {
			return &PaymentResult{
				Success:     false,
				DeclineCode: "trade_not_closable",
				Message:     "The trade cannot be closed in its current state.",
			}, nil
		}
		return nil, newAlipayAPIError("close trade", resp.Response.Code, resp.Response.Msg)
	}

	return &PaymentResult{
		Success: true,
		PaymentIntent: &PaymentIntent{
			ID:        paymentIntentID,
			Status:    StatusCanceled,
			Currency:  "CNY",
			CreatedAt: time.Now(),
		},
	}, nil
}

// --- Subscriptions (require a separate agreement signing flow) ---

func (p *AlipayProvider) CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error) {
	return nil, fmt.Errorf("alipay subscriptions: %w", ErrUnsupportedOperation)
}

func (p *AlipayProvider) UpdateSubscription(ctx context.Context, subscriptionID string, update SubscriptionUpdate) (*Subscription, error) {
	return nil, fmt.Errorf("alipay subscriptions: %w", ErrUnsupportedOperation)
}

func (p *AlipayProvider) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*Subscription, error) {
	return nil, fmt.Errorf("alipay subscriptions: %w", ErrUnsupportedOperation)
}

// --- Refunds ---

func (p *AlipayProvider) CreateRefund(ctx context.Context, paymentIntentID string, amount int64, reason string) (*Refund, error) {
	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", paymentIntentID)
	bm.Set("out_request_no", "re_"+uuid.NewString())
	bm.Set("refund_amount", MinorToDecimal(amount, "CNY"))
	if reason != "" {
		bm.Set("refund_reason", reason)
	}

	resp, err := p.client.TradeRefund(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("refund trade: %w", err)
	}
	if resp.Response.Code != alipaySuccessCode {
		return nil, newAlipayAPIError("refund trade", resp.Response.Code, resp.Response.Msg)
	}

	refunded := amount
	if v, err := DecimalToMinor(resp.Response.RefundFee, "CNY"); err == nil {
		refunded = v
	}
	return &Refund{
		ID:              resp.Response.TradeNo,
		PaymentIntentID: paymentIntentID,
		Amount:          refunded,
		Currency:        "CNY",
		Status:          "succeeded",
		Reason:          reason,
		CreatedAt:       time.Now(),
	}, nil
}

// --- Webhooks (form-urlencoded async notify) ---

// ValidateWebhook parses the notify form and verifies its RSA2 signature
// against the Alipay public key.
func (p *AlipayProvider) ValidateWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	bm, err := parseAlipayNotify(ctx, payload)
	if err != nil {
		return err
	}
	ok, err := alipay.VerifySign(p.config.AlipayPublicKey, bm)
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	if !ok {
		return errors.New("invalid signature")
	}
	return nil
}

// ProcessWebhook converts the notify form into a normalized event. Trade
// state notifications map onto payment intent event types so downstream
// handlers see one vocabulary across providers.
func (p *AlipayProvider) ProcessWebhook(ctx context.Context, payload []byte) (*WebhookEvent, error) {
	bm, err := parseAlipayNotify(ctx, payload)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(bm)
	if err != nil {
		return nil, fmt.Errorf("encode notify data: %w", err)
	}

	created := time.Now()
	if ts := bm.Get("notify_time"); ts != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
			created = t
		}
	}

	return &WebhookEvent{
		ID:       bm.Get("notify_id"),
		Type:     alipayEventType(bm.Get("trade_status")),
		Data:     data,
		Created:  created,
		Provider: p.Name(),
	}, nil
}

// --- Health ---

// HealthCheck queries a nonexistent trade. A well-formed business error from
// the gateway proves reachability and valid credentials.
func (p *AlipayProvider) HealthCheck(ctx context.Context) error {
	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", "health_probe")

	resp, err := p.client.TradeQuery(ctx, bm)
	if err != nil {
		return fmt.Errorf("alipay health check: %w", err)
	}
	switch resp.Response.Code {
	case alipaySuccessCode, "40004":
		return nil
	}
	return newAlipayAPIError("health check", resp.Response.Code, resp.Response.Msg)
}

// --- Helpers ---

// AlipayAPIError is the gateway-level failure shape surfaced to the classifier.
type AlipayAPIError struct {
	Op   string
	Code string
	Msg  string
}

func (e *AlipayAPIError) Error() string {
	return fmt.Sprintf("alipay %s: %s - %s", e.Op, e.Code, e.Msg)
}

func newAlipayAPIError(op, code, msg string) *AlipayAPIError {
	return &AlipayAPIError{Op: op, Code: code, Msg: msg}
}

func parseAlipayNotify(ctx context.Context, payload []byte) (gopay.BodyMap, error) {
	// gopay parses notifications from an *http.Request.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	bm, err := alipay.ParseNotifyToBodyMap(req)
	if err != nil {
		return nil, fmt.Errorf("parse notify: %w", err)
	}
	return bm, nil
}

func mapAlipayTradeStatus(status string) PaymentStatus {
	switch status {
	case "WAIT_BUYER_PAY":
		return StatusRequiresAction
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		return StatusSucceeded
	case "TRADE_CLOSED":
		return StatusCanceled
	default:
		return StatusFailed
	}
}

func alipayEventType(tradeStatus string) string {
	switch tradeStatus {
	case "TRADE_SUCCESS", "TRADE_FINISHED":
		return "payment_intent.succeeded"
	case "TRADE_CLOSED":
		return "payment_intent.canceled"
	case "WAIT_BUYER_PAY":
		return "payment_intent.requires_action"
	default:
		return "payment_intent.updated"
	}
}
