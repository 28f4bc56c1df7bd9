package gin

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/payrouter/server/internal/module/payment"
)

// WebhookHandler receives provider webhook callbacks.
type WebhookHandler struct {
	processor *payment.WebhookProcessor
	logger    *zap.Logger
}

// NewWebhookHandler creates a new webhook HTTP handler.
func NewWebhookHandler(processor *payment.WebhookProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, logger: logger}
}

// RegisterRoutes registers one webhook route per provider.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/:provider", h.Handle)
}

// Handle runs one delivery through the processor. Unhandled event types
// still answer 200 so the provider stops redelivering; only signature and
// parse failures get a 400.
func (h *WebhookHandler) Handle(c *gin.Context) {
	providerName := c.Param("provider")

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse{Error: "failed to read body", Code: "invalid_input"})
		return
	}

	result, err := h.processor.Process(c.Request.Context(), providerName, payload, c.Request.Header)
	if err != nil {
		var pe *payment.PaymentError
		switch {
		case errors.As(err, &pe) && pe.Code == payment.CodeWebhookValidation:
			h.logger.Warn("webhook rejected",
				zap.String("provider", providerName),
				zap.Error(err))
			c.JSON(http.StatusBadRequest, errorResponse{
				Error:    pe.Message,
				Code:     pe.Code,
				Provider: pe.Provider,
			})
		case payment.IsConfigError(err):
			c.JSON(http.StatusBadRequest, errorResponse{
				Error: err.Error(),
				Code:  "provider_not_found",
			})
		default:
			h.logger.Error("webhook processing failed",
				zap.String("provider", providerName),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":  true,
		"processed": result.Processed,
		"message":   result.Message,
		"eventType": result.EventType,
		"eventId":   result.EventID,
	})
}
