package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/payrouter/server/internal/module/payment"
	"github.com/payrouter/server/internal/module/payment/provider"
)

// PaymentHandler exposes the payment service over HTTP.
type PaymentHandler struct {
	service *payment.Service
	logger  *zap.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(service *payment.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

// RegisterRoutes registers payment routes.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	customers := r.Group("/customers")
	{
		customers.POST("", h.CreateCustomer)
		customers.PATCH("/:id", h.UpdateCustomer)
		customers.DELETE("/:id", h.DeleteCustomer)
	}

	payments := r.Group("/payments")
	{
		payments.POST("", h.CreatePayment)
		payments.POST("/:id/confirm", h.ConfirmPayment)
		payments.POST("/:id/cancel", h.CancelPayment)
		payments.POST("/:id/refund", h.CreateRefund)
	}

	subscriptions := r.Group("/subscriptions")
	{
		subscriptions.POST("", h.CreateSubscription)
		subscriptions.PATCH("/:id", h.UpdateSubscription)
		subscriptions.DELETE("/:id", h.CancelSubscription)
	}

	providers := r.Group("/providers")
	{
		providers.GET("", h.ListProviders)
		providers.GET("/health", h.ProviderHealth)
	}
}

// --- Customers ---

type customerRequest struct {
	Provider string            `json:"provider"`
	Email    string            `json:"email" binding:"required,email"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

func (h *PaymentHandler) CreateCustomer(c *gin.Context) {
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	customer, err := h.service.CreateCustomer(c.Request.Context(), req.Provider, provider.CustomerParams{
		Email:    req.Email,
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *PaymentHandler) UpdateCustomer(c *gin.Context) {
	var req struct {
		Provider string            `json:"provider"`
		Email    string            `json:"email"`
		Name     string            `json:"name"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	customer, err := h.service.UpdateCustomer(c.Request.Context(), req.Provider, c.Param("id"), provider.CustomerParams{
		Email:    req.Email,
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *PaymentHandler) DeleteCustomer(c *gin.Context) {
	if err := h.service.DeleteCustomer(c.Request.Context(), c.Query("provider"), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Payments ---

type createPaymentRequest struct {
	Provider           string            `json:"provider"`
	PreferredProviders []string          `json:"preferredProviders"`
	ExcludeProviders   []string          `json:"excludeProviders"`
	Amount             int64             `json:"amount" binding:"required"`
	Currency           string            `json:"currency" binding:"required"`
	CustomerID         string            `json:"customerId"`
	Description        string            `json:"description"`
	CaptureMethod      string            `json:"captureMethod"`
	Metadata           map[string]string `json:"metadata"`
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	intent, err := h.service.CreatePayment(c.Request.Context(), &payment.PaymentRequest{
		Provider:           req.Provider,
		PreferredProviders: req.PreferredProviders,
		ExcludeProviders:   req.ExcludeProviders,
		Intent: provider.PaymentIntentRequest{
			Amount:        req.Amount,
			Currency:      req.Currency,
			CustomerID:    req.CustomerID,
			Description:   req.Description,
			CaptureMethod: provider.CaptureMethod(req.CaptureMethod),
			Metadata:      req.Metadata,
		},
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}

func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	result, err := h.service.ConfirmPayment(c.Request.Context(), c.Query("provider"), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	// Declines answer 200 with success false; they are outcomes, not errors.
	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	result, err := h.service.CancelPayment(c.Request.Context(), c.Query("provider"), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type refundRequest struct {
	Provider string `json:"provider"`
	Amount   int64  `json:"amount" binding:"required"`
	Reason   string `json:"reason"`
}

func (h *PaymentHandler) CreateRefund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	refund, err := h.service.CreateRefund(c.Request.Context(), req.Provider, c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, refund)
}

// --- Subscriptions ---

type subscriptionRequest struct {
	Provider   string            `json:"provider"`
	CustomerID string            `json:"customerId" binding:"required"`
	PriceID    string            `json:"priceId" binding:"required"`
	TrialDays  int               `json:"trialDays"`
	Metadata   map[string]string `json:"metadata"`
}

func (h *PaymentHandler) CreateSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	sub, err := h.service.CreateSubscription(c.Request.Context(), req.Provider, provider.SubscriptionParams{
		CustomerID: req.CustomerID,
		PriceID:    req.PriceID,
		TrialDays:  req.TrialDays,
		Metadata:   req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *PaymentHandler) UpdateSubscription(c *gin.Context) {
	var req struct {
		Provider          string            `json:"provider"`
		PriceID           string            `json:"priceId"`
		CancelAtPeriodEnd *bool             `json:"cancelAtPeriodEnd"`
		Metadata          map[string]string `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	sub, err := h.service.UpdateSubscription(c.Request.Context(), req.Provider, c.Param("id"), provider.SubscriptionUpdate{
		PriceID:           req.PriceID,
		CancelAtPeriodEnd: req.CancelAtPeriodEnd,
		Metadata:          req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *PaymentHandler) CancelSubscription(c *gin.Context) {
	immediately := c.Query("immediately") == "true"
	sub, err := h.service.CancelSubscription(c.Request.Context(), c.Query("provider"), c.Param("id"), immediately)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// --- Providers ---

func (h *PaymentHandler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.service.Providers()})
}

func (h *PaymentHandler) ProviderHealth(c *gin.Context) {
	reports := h.service.HealthCheck(c.Request.Context(), c.Query("provider"))
	c.JSON(http.StatusOK, gin.H{"providers": reports})
}
