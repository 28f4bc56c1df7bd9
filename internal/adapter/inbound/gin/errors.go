package gin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payrouter/server/internal/module/payment"
)

// errorResponse is the JSON error body for 4xx responses.
type errorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// handleError maps payment errors to HTTP responses. Classified provider
// errors keep their code and provider so clients can drive retry loops.
func handleError(c *gin.Context, err error) {
	if payment.IsConfigError(err) {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: err.Error(),
			Code:  "provider_not_found",
		})
		return
	}

	var pe *payment.PaymentError
	if errors.As(err, &pe) {
		status := http.StatusBadGateway
		switch pe.Code {
		case payment.CodeValidation, payment.CodeInvalidRequest:
			status = http.StatusBadRequest
		case payment.CodeCardDeclined, payment.CodeInsufficientFunds,
			payment.CodeExpiredCard, payment.CodeIncorrectCVC:
			status = http.StatusPaymentRequired
		case payment.CodeAuthentication:
			status = http.StatusBadGateway
		case payment.CodeRateLimit:
			status = http.StatusTooManyRequests
		case payment.CodeTimeout:
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, errorResponse{
			Error:    pe.Message,
			Code:     pe.Code,
			Provider: pe.Provider,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
