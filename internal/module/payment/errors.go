package payment

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for registry and routing lookups.
var (
	ErrProviderNotFound   = errors.New("provider not found")
	ErrNoEligibleProvider = errors.New("no eligible provider for request")
)

// Error codes carried by PaymentError.
const (
	CodeValidation          = "validation_error"
	CodeCardDeclined        = "card_declined"
	CodeInsufficientFunds   = "insufficient_funds"
	CodeExpiredCard         = "expired_card"
	CodeIncorrectCVC        = "incorrect_cvc"
	CodeRateLimit           = "rate_limit"
	CodeInvalidRequest      = "invalid_request"
	CodeAuthentication      = "authentication_error"
	CodeProviderUnavailable = "provider_unavailable"
	CodeCustomer            = "customer_error"
	CodePaymentIntent       = "payment_intent_error"
	CodeSubscription        = "subscription_error"
	CodeWebhookValidation   = "webhook_validation_error"
	CodeTimeout             = "timeout"
	CodeProviderError       = "provider_error"
)

// PaymentError is the classified failure shape every facade operation returns.
// Retryable tells the caller whether the same request may be replayed;
// RetryAfter, when nonzero, is the minimum backoff before doing so.
type PaymentError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Provider   string        `json:"provider,omitempty"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
	Err        error         `json:"-"`
}

func (e *PaymentError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// ValidationError reports a malformed request. Never retryable.
func ValidationError(message string) *PaymentError {
	return &PaymentError{
		Code:    CodeValidation,
		Message: message,
	}
}

// CustomerError wraps a customer operation failure.
func CustomerError(provider, message string, err error) *PaymentError {
	return &PaymentError{
		Code:     CodeCustomer,
		Message:  message,
		Provider: provider,
		Err:      err,
	}
}

// PaymentIntentError wraps a payment intent operation failure.
func PaymentIntentError(provider, message string, err error) *PaymentError {
	return &PaymentError{
		Code:     CodePaymentIntent,
		Message:  message,
		Provider: provider,
		Err:      err,
	}
}

// SubscriptionError wraps a subscription operation failure.
func SubscriptionError(provider, message string, err error) *PaymentError {
	return &PaymentError{
		Code:     CodeSubscription,
		Message:  message,
		Provider: provider,
		Err:      err,
	}
}

// WebhookValidationError reports a webhook that failed signature or parse
// checks. Never retryable: the sender must fix the payload.
func WebhookValidationError(provider, message string, err error) *PaymentError {
	return &PaymentError{
		Code:     CodeWebhookValidation,
		Message:  message,
		Provider: provider,
		Err:      err,
	}
}
