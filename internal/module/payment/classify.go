package payment

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/payrouter/server/internal/module/payment/provider"
)

// Classify normalizes any error coming off a provider edge into a
// *PaymentError with a retryability verdict. Already classified errors pass
// through unchanged, so calling Classify twice is safe.
func Classify(err error, providerName string) *PaymentError {
	if err == nil {
		return nil
	}

	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return classifyStripe(stripeErr, providerName, err)
	}

	var paypalErr *provider.PayPalAPIError
	if errors.As(err, &paypalErr) {
		return classifyHTTPStatus(paypalErr.StatusCode, paypalErr.Name, providerName, err)
	}

	var paddleErr *provider.PaddleAPIError
	if errors.As(err, &paddleErr) {
		return classifyHTTPStatus(paddleErr.StatusCode, paddleErr.Code, providerName, err)
	}

	var alipayErr *provider.AlipayAPIError
	if errors.As(err, &alipayErr) {
		return classifyAlipay(alipayErr, providerName, err)
	}

	// A deadline hit mid-request leaves the remote outcome unknown; blind
	// replay could double charge, so the caller must reconcile first.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &PaymentError{
			Code:     CodeTimeout,
			Message:  "request aborted before the provider responded; outcome unknown",
			Provider: providerName,
			Err:      err,
		}
	}

	return &PaymentError{
		Code:      CodeProviderError,
		Message:   err.Error(),
		Provider:  providerName,
		Retryable: true,
		Err:       err,
	}
}

func classifyStripe(stripeErr *stripe.Error, providerName string, cause error) *PaymentError {
	out := &PaymentError{
		Message:  stripeErr.Msg,
		Provider: providerName,
		Err:      cause,
	}

	// Throttling and credential failures arrive under the generic
	// invalid_request error type, so check code and HTTP status first.
	switch {
	case stripeErr.Code == stripe.ErrorCodeRateLimit || stripeErr.HTTPStatusCode == 429:
		out.Code = CodeRateLimit
		out.Retryable = true
		out.RetryAfter = 2 * time.Second
	case stripeErr.HTTPStatusCode == 401 || stripeErr.HTTPStatusCode == 403:
		out.Code = CodeAuthentication
	default:
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			out.Code, out.Retryable, out.RetryAfter = classifyDecline(string(stripeErr.DeclineCode))
		case stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
			out.Code = CodeInvalidRequest
		default:
			out.Code = CodeProviderUnavailable
			out.Retryable = true
			out.RetryAfter = 500 * time.Millisecond
		}
	}
	return out
}

// classifyDecline maps an issuer decline code onto the error vocabulary.
// Most declines are final, but a handful signal transient issuer trouble
// where a delayed retry of the same card can succeed.
func classifyDecline(declineCode string) (code string, retryable bool, retryAfter time.Duration) {
	switch declineCode {
	case "insufficient_funds":
		return CodeInsufficientFunds, false, 0
	case "expired_card":
		return CodeExpiredCard, false, 0
	case "incorrect_cvc":
		return CodeIncorrectCVC, false, 0
	case "processing_error", "try_again_later", "issuer_not_available", "reenter_transaction":
		return CodeCardDeclined, true, 5 * time.Second
	default:
		return CodeCardDeclined, false, 0
	}
}

// classifyHTTPStatus covers adapters that surface raw HTTP statuses. Server
// side failures and throttling are retryable, everything else is on us.
func classifyHTTPStatus(status int, code, providerName string, cause error) *PaymentError {
	out := &PaymentError{
		Message:  cause.Error(),
		Provider: providerName,
		Err:      cause,
	}
	switch {
	case status == 429 || code == "RATE_LIMIT_REACHED":
		out.Code = CodeRateLimit
		out.Retryable = true
		out.RetryAfter = 2 * time.Second
	case status >= 500:
		out.Code = CodeProviderUnavailable
		out.Retryable = true
		out.RetryAfter = 500 * time.Millisecond
	case status == 401 || status == 403:
		out.Code = CodeAuthentication
	default:
		out.Code = CodeInvalidRequest
	}
	return out
}

func classifyAlipay(alipayErr *provider.AlipayAPIError, providerName string, cause error) *PaymentError {
	out := &PaymentError{
		Message:  cause.Error(),
		Provider: providerName,
		Err:      cause,
	}
	switch alipayErr.Code {
	case "20000":
		// Gateway busy, safe to retry.
		out.Code = CodeProviderUnavailable
		out.Retryable = true
		out.RetryAfter = 500 * time.Millisecond
	case "20001":
		out.Code = CodeAuthentication
	default:
		out.Code = CodeInvalidRequest
	}
	return out
}
