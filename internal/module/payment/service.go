package payment

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/payrouter/server/internal/module/payment/provider"
	"github.com/payrouter/server/internal/utils/metrics"
)

// Service is the single entry point for payment operations. Every method
// resolves a provider through the registry, delegates, and classifies any
// failure on the way out. Provider name is optional on every call; empty
// means the registry default.
type Service struct {
	registry *Registry
	router   *Router
	monitor  *HealthMonitor
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService creates a new payment service. Metrics may be nil.
func NewService(registry *Registry, router *Router, monitor *HealthMonitor, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		router:   router,
		monitor:  monitor,
		metrics:  m,
		logger:   logger,
	}
}

func (s *Service) resolve(providerName string) (provider.Provider, error) {
	if providerName == "" {
		return s.registry.Default()
	}
	return s.registry.Get(providerName)
}

// --- Customer Management ---

func (s *Service) CreateCustomer(ctx context.Context, providerName string, params provider.CustomerParams) (*provider.Customer, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, err
	}
	customer, err := p.CreateCustomer(ctx, params)
	s.metrics.RecordPaymentOperation(p.Name(), "create_customer", err)
	if err != nil {
		return nil, Classify(err, p.Name())
	}
	return customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, providerName, customerID string, params provider.CustomerParams) (*provider.Customer, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, err
	}
	customer, err := p.UpdateCustomer(ctx, customerID, params)
	s.metrics.RecordPaymentOperation(p.Name(), "update_customer", err)
	if err != nil {
		return nil, Classify(err, p.Name())
	}
	return customer, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, providerName, customerID string) error {
	p, err := s.resolve(providerName)
	if err != nil {
		return err
	}
	err = p.DeleteCustomer(ctx, customerID)
	s.metrics.RecordPaymentOperation(p.Name(), "delete_customer", err)
	if err != nil {
		return Classify(err, p.Name())
	}
	return nil
}

// --- Payments ---

// PaymentRequest is the facade-level payment creation request. Provider pins
// the adapter; when empty the router picks one.
type PaymentRequest struct {
	Provider           string
	PreferredProviders []string
	ExcludeProviders   []string
	Intent             provider.PaymentIntentRequest
}

// CreatePayment creates a payment intent. A pinned provider is used as-is;
// otherwise smart routing selects one, with at most one fallback attempt
// against the next candidate. Two attempts is the hard ceiling so a flapping
// provider cannot fan a single payment out across the fleet.
func (s *Service) CreatePayment(ctx context.Context, req *PaymentRequest) (*provider.PaymentIntent, error) {
	if req.Provider != "" {
		p, err := s.registry.Get(req.Provider)
		if err != nil {
			return nil, err
		}
		return s.createIntent(ctx, p, &req.Intent)
	}

	candidates, err := s.router.Route(RouteRequest{
		Amount:             req.Intent.Amount,
		Currency:           req.Intent.Currency,
		PreferredProviders: req.PreferredProviders,
		ExcludeProviders:   req.ExcludeProviders,
	})
	if err != nil {
		return nil, err
	}

	primary, err := s.registry.Get(candidates[0])
	if err != nil {
		return nil, err
	}
	intent, primaryErr := s.createIntent(ctx, primary, &req.Intent)
	if primaryErr == nil {
		return intent, nil
	}
	if len(candidates) < 2 {
		return nil, primaryErr
	}

	fallback, err := s.registry.Get(candidates[1])
	if err != nil {
		return nil, primaryErr
	}
	s.logger.Warn("payment routing falling back",
		zap.String("from", primary.Name()),
		zap.String("to", fallback.Name()),
		zap.Error(primaryErr))
	s.metrics.RecordRoutingFallback(primary.Name(), fallback.Name())

	return s.createIntent(ctx, fallback, &req.Intent)
}

func (s *Service) createIntent(ctx context.Context, p provider.Provider, req *provider.PaymentIntentRequest) (*provider.PaymentIntent, error) {
	intent, err := p.CreatePaymentIntent(ctx, req)
	s.metrics.RecordPaymentOperation(p.Name(), "create_intent", err)
	if err != nil {
		return nil, Classify(err, p.Name())
	}
	return intent, nil
}

// ConfirmPayment confirms a payment intent. A business decline comes back as
// a result with Success false, never as an error.
func (s *Service) ConfirmPayment(ctx context.Context, providerName, paymentIntentID string) (*provider.PaymentResult, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, err
	}
	result, err := p.ConfirmPayment(ctx, paymentIntentID)
	s.metrics.RecordPaymentOperation(p.Name(), "confirm_payment", err)
	if err != nil {
		return nil, Classify(err, p.Name())
	}
	if !result.Success {
		s.metrics.RecordPaymentDecline(p.Name(), result.DeclineCode)
	}
	return result, nil
}

func (s *Service) CancelPayment(ctx context.Context, providerName, paymentIntentID string) (*provider.PaymentResult, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, err
	}
	result, err := p.CancelPayment(ctx, paymentIntentID)
	s.metrics.RecordPaymentOperation(p.Name(), "cancel_payment", err)
	if err != nil {
		return nil, Classify(err, p.Name())
	}
	return result, nil
}

// --- Subscriptions ---

func (s *Service) CreateSubscription(ctx context.Context, providerName string, params provider.SubscriptionParams) (*provider.Subscription, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, err
	}
	sub, err := p.CreateSubscription(ctx, params)
	s.metrics.RecordPaymentOperation(p.Name(), "create_subscription", err)
	if err != nil {
		return nil, Classify(err, p.Name())
	}
	return sub, nil
}

func (s *Service) UpdateSubscription(ctx context.Context, providerName, subscriptionID string, update provider.SubscriptionUpdate) (*provider.Subscription, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, err
	}
	sub, err := p.UpdateSubscription(ctx, subscriptionID, update)
	s.metrics.RecordPaymentOperation(p.Name(), "update_subscription", err)
	if err != nil {
		return nil, Classify(err, p.Name())
	}
	return sub, nil
}

func (s *Service) CancelSubscription(ctx context.Context, providerName, subscriptionID string, immediately bool) (*provider.Subscription, error) {
	p, err := s.resolve(providerName)
	if err != nil {
		return nil, err
	}
	sub, err := p.CancelSubscription(ctx, subscriptionID, immediately)
	s.metrics.RecordPaymentOperation(p.Name(), "cancel_subscription", err)
	if err != nil {
		return nil, Classify(err, p.Name())
	}
	return sub, nil
}

// --- Refunds ---

func (s *Service) CreateRefund(ctx context.Context, providerName, paymentIntentID string, amount int64, reason string) (*provider.Refund, error) {
	name := providerName
	if name == "" {
		p, err := s.registry.Default()
		if err != nil {
			return nil, err
		}
		name = p.Name()
	}
	rp, err := s.registry.Refunder(name)
	if err != nil {
		return nil, err
	}
	refund, err := rp.CreateRefund(ctx, paymentIntentID, amount, reason)
	s.metrics.RecordPaymentOperation(name, "create_refund", err)
	if err != nil {
		return nil, Classify(err, name)
	}
	return refund, nil
}

// --- Health ---

// HealthCheck probes one provider, or every provider when name is empty.
// Probe failures are reported as data.
func (s *Service) HealthCheck(ctx context.Context, name string) []HealthReport {
	var reports []HealthReport
	if name != "" {
		reports = []HealthReport{s.monitor.Check(ctx, name)}
	} else {
		reports = s.monitor.CheckAll(ctx)
	}
	for _, report := range reports {
		s.metrics.SetProviderHealth(report.Provider, report.Status == HealthStatusHealthy)
	}
	return reports
}

// Providers returns registered provider names in registration order.
func (s *Service) Providers() []string {
	return s.registry.List()
}

// IsConfigError reports whether err is a registry or routing lookup failure
// rather than a provider failure.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrProviderNotFound) || errors.Is(err, ErrNoEligibleProvider)
}
