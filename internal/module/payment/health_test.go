package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitor_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy provider", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newFakeProvider("stripe"))
		monitor := NewHealthMonitor(registry, nil)

		report := monitor.Check(ctx, "stripe")
		assert.Equal(t, "stripe", report.Provider)
		assert.Equal(t, HealthStatusHealthy, report.Status)
		assert.Empty(t, report.Error)
		assert.False(t, report.CheckedAt.IsZero())
	})

	t.Run("failing probe is data not error", func(t *testing.T) {
		registry := NewRegistry()
		p := newFakeProvider("paypal")
		p.healthErr = errors.New("gateway timeout")
		registry.Register(p)
		monitor := NewHealthMonitor(registry, nil)

		report := monitor.Check(ctx, "paypal")
		assert.Equal(t, HealthStatusUnhealthy, report.Status)
		assert.Equal(t, "gateway timeout", report.Error)
	})

	t.Run("unknown provider reports unknown", func(t *testing.T) {
		monitor := NewHealthMonitor(NewRegistry(), nil)

		report := monitor.Check(ctx, "klarna")
		assert.Equal(t, HealthStatusUnknown, report.Status)
		assert.NotEmpty(t, report.Error)
	})
}

func TestHealthMonitor_CheckAll(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newFakeProvider("stripe"))
	registry.Register(newFakeProvider("paypal"))
	registry.Register(newFakeProvider("paddle"))
	monitor := NewHealthMonitor(registry, nil)

	reports := monitor.CheckAll(context.Background())
	require.Len(t, reports, 3)
	assert.Equal(t, "stripe", reports[0].Provider)
	assert.Equal(t, "paypal", reports[1].Provider)
	assert.Equal(t, "paddle", reports[2].Provider)
}

func TestHealthMonitor_CircuitBreaker(t *testing.T) {
	registry := NewRegistry()
	p := newFakeProvider("stripe")
	p.healthErr = errors.New("gateway down")
	registry.Register(p)

	monitor := NewHealthMonitor(registry, &HealthMonitorConfig{
		CheckInterval:    time.Minute,
		CheckTimeout:     time.Second,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	})
	ctx := context.Background()

	// Two consecutive failures trip the breaker.
	monitor.Check(ctx, "stripe")
	monitor.Check(ctx, "stripe")

	// An open breaker short-circuits: the provider is not probed again.
	before := p.callCount("health_check")
	report := monitor.Check(ctx, "stripe")
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
	assert.Equal(t, before, p.callCount("health_check"))
}

func TestHealthMonitor_IsHealthy(t *testing.T) {
	registry := NewRegistry()
	stripe := newFakeProvider("stripe")
	paypal := newFakeProvider("paypal")
	paypal.healthErr = errors.New("down")
	registry.Register(stripe)
	registry.Register(paypal)
	monitor := NewHealthMonitor(registry, nil)

	t.Run("never probed is assumed healthy", func(t *testing.T) {
		assert.True(t, monitor.IsHealthy("stripe"))
	})

	t.Run("tracks last probe outcome", func(t *testing.T) {
		monitor.CheckAll(context.Background())
		assert.True(t, monitor.IsHealthy("stripe"))
		assert.False(t, monitor.IsHealthy("paypal"))

		report, ok := monitor.LastReport("paypal")
		require.True(t, ok)
		assert.Equal(t, HealthStatusUnhealthy, report.Status)
	})
}

func TestHealthMonitor_StartStop(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newFakeProvider("stripe"))
	monitor := NewHealthMonitor(registry, &HealthMonitorConfig{
		CheckInterval:    10 * time.Millisecond,
		CheckTimeout:     time.Second,
		FailureThreshold: 5,
		OpenTimeout:      time.Minute,
	})

	monitor.Start()
	time.Sleep(30 * time.Millisecond)
	monitor.Stop()
	// Stop is idempotent.
	monitor.Stop()

	_, ok := monitor.LastReport("stripe")
	assert.True(t, ok)
}
