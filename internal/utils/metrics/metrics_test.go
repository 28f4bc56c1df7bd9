package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// createTestMetrics creates metrics with a custom registry for testing.
// This avoids conflicts with the default registry.
func createTestMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "test"
	}

	reg := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		PaymentOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "operations_total",
				Help:      "Total number of payment operations by provider and outcome",
			},
			[]string{"provider", "operation", "status"},
		),
		PaymentDeclinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "declines_total",
				Help:      "Total number of business-level payment declines",
			},
			[]string{"provider", "decline_code"},
		),
		RoutingFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "routing_fallbacks_total",
				Help:      "Total number of smart routing fallback attempts",
			},
			[]string{"from", "to"},
		),
		ProviderHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "payment",
				Name:      "provider_health",
				Help:      "Provider health status (1=healthy, 0=unhealthy)",
			},
			[]string{"provider"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Total number of webhook deliveries by outcome",
			},
			[]string{"provider", "event_type", "outcome"},
		),
		WebhookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "duration_seconds",
				Help:      "Webhook processing duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"provider"},
		),
	}

	// Register with test registry
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PaymentOperationsTotal,
		m.PaymentDeclinesTotal,
		m.RoutingFallbacksTotal,
		m.ProviderHealth,
		m.WebhookEventsTotal,
		m.WebhookDuration,
	)

	return m
}

func TestNew(t *testing.T) {
	t.Run("creates with default namespace", func(t *testing.T) {
		// Note: This test may fail if run multiple times in the same process
		// due to prometheus global registry. In practice, use createTestMetrics.
		m := New("test_new")
		assert.NotNil(t, m)
		assert.NotNil(t, m.HTTPRequestsTotal)
		assert.NotNil(t, m.HTTPRequestDuration)
		assert.NotNil(t, m.HTTPRequestsInFlight)
		assert.NotNil(t, m.PaymentOperationsTotal)
		assert.NotNil(t, m.PaymentDeclinesTotal)
		assert.NotNil(t, m.RoutingFallbacksTotal)
		assert.NotNil(t, m.ProviderHealth)
		assert.NotNil(t, m.WebhookEventsTotal)
		assert.NotNil(t, m.WebhookDuration)
	})
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := createTestMetrics("http_test")

	t.Run("records request with 2xx status", func(t *testing.T) {
		m.RecordHTTPRequest("GET", "/api/v1/payments", 200, 100*time.Millisecond)

		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/payments", "2xx"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("records request with 4xx status", func(t *testing.T) {
		m.RecordHTTPRequest("POST", "/api/v1/customers", 400, 50*time.Millisecond)

		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/customers", "4xx"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("records request with 5xx status", func(t *testing.T) {
		m.RecordHTTPRequest("PUT", "/api/v1/subscriptions", 500, 200*time.Millisecond)

		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("PUT", "/api/v1/subscriptions", "5xx"))
		assert.Equal(t, float64(1), count)
	})
}

func TestMetrics_RecordPaymentOperation(t *testing.T) {
	m := createTestMetrics("payment_test")

	t.Run("records successful operation", func(t *testing.T) {
		m.RecordPaymentOperation("stripe", "create_intent", nil)

		count := testutil.ToFloat64(m.PaymentOperationsTotal.WithLabelValues("stripe", "create_intent", "ok"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("records failed operation", func(t *testing.T) {
		m.RecordPaymentOperation("paypal", "confirm_payment", assert.AnError)

		count := testutil.ToFloat64(m.PaymentOperationsTotal.WithLabelValues("paypal", "confirm_payment", "error"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("tolerates nil receiver", func(t *testing.T) {
		var none *Metrics
		none.RecordPaymentOperation("stripe", "create_intent", nil)
	})
}

func TestMetrics_RecordPaymentDecline(t *testing.T) {
	m := createTestMetrics("decline_test")

	t.Run("records decline with code", func(t *testing.T) {
		m.RecordPaymentDecline("stripe", "insufficient_funds")

		count := testutil.ToFloat64(m.PaymentDeclinesTotal.WithLabelValues("stripe", "insufficient_funds"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("maps empty decline code to unknown", func(t *testing.T) {
		m.RecordPaymentDecline("paddle", "")

		count := testutil.ToFloat64(m.PaymentDeclinesTotal.WithLabelValues("paddle", "unknown"))
		assert.Equal(t, float64(1), count)
	})
}

func TestMetrics_RecordRoutingFallback(t *testing.T) {
	m := createTestMetrics("routing_test")

	m.RecordRoutingFallback("stripe", "paypal")
	m.RecordRoutingFallback("stripe", "paypal")

	count := testutil.ToFloat64(m.RoutingFallbacksTotal.WithLabelValues("stripe", "paypal"))
	assert.Equal(t, float64(2), count)
}

func TestMetrics_SetProviderHealth(t *testing.T) {
	m := createTestMetrics("health_test")

	t.Run("sets provider as healthy", func(t *testing.T) {
		m.SetProviderHealth("stripe", true)

		health := testutil.ToFloat64(m.ProviderHealth.WithLabelValues("stripe"))
		assert.Equal(t, float64(1), health)
	})

	t.Run("sets provider as unhealthy", func(t *testing.T) {
		m.SetProviderHealth("alipay", false)

		health := testutil.ToFloat64(m.ProviderHealth.WithLabelValues("alipay"))
		assert.Equal(t, float64(0), health)
	})
}

func TestMetrics_RecordWebhookEvent(t *testing.T) {
	m := createTestMetrics("webhook_test")

	t.Run("records processed event", func(t *testing.T) {
		m.RecordWebhookEvent("stripe", "payment_intent.succeeded", "processed", 10*time.Millisecond)

		count := testutil.ToFloat64(m.WebhookEventsTotal.WithLabelValues("stripe", "payment_intent.succeeded", "processed"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("records rejected event", func(t *testing.T) {
		m.RecordWebhookEvent("paddle", "unknown", "rejected", time.Millisecond)

		count := testutil.ToFloat64(m.WebhookEventsTotal.WithLabelValues("paddle", "unknown", "rejected"))
		assert.Equal(t, float64(1), count)
	})
}

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{299, "2xx"},
		{300, "3xx"},
		{301, "3xx"},
		{399, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{499, "4xx"},
		{500, "5xx"},
		{502, "5xx"},
		{599, "5xx"},
		{100, "unknown"},
		{0, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := statusCodeToString(tt.code)
			assert.Equal(t, tt.expected, result)
		})
	}
}
