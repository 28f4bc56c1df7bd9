package payment

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/payrouter/server/internal/module/payment/eventstore"
	"github.com/payrouter/server/internal/utils/metrics"
)

// WebhookResult is the structured outcome of one webhook delivery. Processed
// false with an empty Error means the event type is intentionally ignored;
// the sender still gets a 2xx so it stops redelivering.
type WebhookResult struct {
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	EventType string `json:"eventType,omitempty"`
	EventID   string `json:"eventId,omitempty"`
}

// WebhookProcessor verifies, parses, deduplicates and dispatches inbound
// provider webhooks.
type WebhookProcessor struct {
	registry *Registry
	store    eventstore.Store
	hooks    Hooks
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewWebhookProcessor creates a webhook processor. A nil store disables
// deduplication, nil hooks fall back to log-only handlers, nil metrics
// disable recording.
func NewWebhookProcessor(registry *Registry, store eventstore.Store, hooks Hooks, m *metrics.Metrics, logger *zap.Logger) *WebhookProcessor {
	if hooks == nil {
		hooks = NewLoggingHooks(logger)
	}
	return &WebhookProcessor{
		registry: registry,
		store:    store,
		hooks:    hooks,
		metrics:  m,
		logger:   logger,
	}
}

// Process runs one delivery through verification, parsing and dispatch.
// Signature and parse failures return a WebhookValidationError and never
// reach the dispatch table. Handler failures come back inside the result,
// not as an error, so one bad event cannot crash the delivery path.
func (w *WebhookProcessor) Process(ctx context.Context, providerName string, payload []byte, headers http.Header) (*WebhookResult, error) {
	p, err := w.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	if err := p.ValidateWebhook(ctx, payload, headers); err != nil {
		w.metrics.RecordWebhookEvent(p.Name(), "unknown", "rejected", time.Since(start))
		return nil, WebhookValidationError(p.Name(), "webhook signature verification failed", err)
	}

	event, err := p.ProcessWebhook(ctx, payload)
	if err != nil {
		w.metrics.RecordWebhookEvent(p.Name(), "unknown", "rejected", time.Since(start))
		return nil, WebhookValidationError(p.Name(), "webhook payload could not be parsed", err)
	}

	// Dedup is best effort. A store failure is logged and the event goes
	// through anyway.
	if w.store != nil && event.ID != "" {
		seen, err := w.store.MarkProcessed(ctx, p.Name(), event.ID)
		if err != nil {
			w.logger.Error("webhook dedup store failed",
				zap.String("provider", p.Name()),
				zap.String("event_id", event.ID),
				zap.Error(err))
		} else if seen {
			w.logger.Info("webhook event already processed",
				zap.String("provider", p.Name()),
				zap.String("event_id", event.ID))
			w.metrics.RecordWebhookEvent(p.Name(), event.Type, "duplicate", time.Since(start))
			return &WebhookResult{
				Processed: true,
				Message:   "event already processed",
				EventType: event.Type,
				EventID:   event.ID,
			}, nil
		}
	}

	result := dispatch(ctx, w.hooks, event)
	result.EventType = event.Type
	result.EventID = event.ID

	outcome := "unhandled"
	if result.Processed {
		outcome = "processed"
	}
	if result.Error != "" {
		outcome = "failed"
	}
	w.metrics.RecordWebhookEvent(p.Name(), event.Type, outcome, time.Since(start))

	w.logger.Info("webhook dispatched",
		zap.String("provider", p.Name()),
		zap.String("event_type", event.Type),
		zap.String("event_id", event.ID),
		zap.Bool("processed", result.Processed))

	return result, nil
}
