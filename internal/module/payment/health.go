package payment

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/payrouter/server/internal/module/payment/provider"
)

// HealthStatus represents the probed status of a provider.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthReport is one provider's probe outcome. Check failures are reported
// here as data, never as an error from the monitor itself.
type HealthReport struct {
	Provider  string        `json:"provider"`
	Status    HealthStatus  `json:"status"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checkedAt"`
	Latency   time.Duration `json:"latency"`
}

// HealthMonitorConfig contains health monitor configuration.
type HealthMonitorConfig struct {
	CheckInterval    time.Duration
	CheckTimeout     time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultHealthMonitorConfig returns the default health monitor configuration.
func DefaultHealthMonitorConfig() *HealthMonitorConfig {
	return &HealthMonitorConfig{
		CheckInterval:    30 * time.Second,
		CheckTimeout:     10 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// HealthMonitor probes registered providers behind per-provider circuit
// breakers. An open breaker short-circuits probes until the cool-down expires
// so a dead gateway is not hammered.
type HealthMonitor struct {
	mu sync.RWMutex

	registry *Registry
	config   *HealthMonitorConfig
	breakers map[string]*gobreaker.CircuitBreaker[any]
	reports  map[string]HealthReport

	stopMonitor chan struct{}
	stopOnce    sync.Once
}

// NewHealthMonitor creates a new health monitor over the registry.
func NewHealthMonitor(registry *Registry, config *HealthMonitorConfig) *HealthMonitor {
	if config == nil {
		config = DefaultHealthMonitorConfig()
	}
	return &HealthMonitor{
		registry:    registry,
		config:      config,
		breakers:    make(map[string]*gobreaker.CircuitBreaker[any]),
		reports:     make(map[string]HealthReport),
		stopMonitor: make(chan struct{}),
	}
}

// Start begins periodic background probing.
func (m *HealthMonitor) Start() {
	go m.monitorLoop()
}

// Stop stops the background probing.
func (m *HealthMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopMonitor) })
}

func (m *HealthMonitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopMonitor:
			return
		case <-ticker.C:
			m.CheckAll(context.Background())
		}
	}
}

// Check probes one provider and records the outcome.
func (m *HealthMonitor) Check(ctx context.Context, name string) HealthReport {
	p, err := m.registry.Get(name)
	if err != nil {
		return HealthReport{
			Provider:  name,
			Status:    HealthStatusUnknown,
			Error:     err.Error(),
			CheckedAt: time.Now(),
		}
	}
	return m.checkProvider(ctx, p)
}

// CheckAll probes every registered provider. Probes run sequentially in
// registration order; a failing provider never fails the sweep.
func (m *HealthMonitor) CheckAll(ctx context.Context) []HealthReport {
	names := m.registry.List()
	reports := make([]HealthReport, 0, len(names))
	for _, name := range names {
		reports = append(reports, m.Check(ctx, name))
	}
	return reports
}

func (m *HealthMonitor) checkProvider(ctx context.Context, p provider.Provider) HealthReport {
	breaker := m.getOrCreateBreaker(p.Name())

	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, m.config.CheckTimeout)
	defer cancel()

	_, err := breaker.Execute(func() (any, error) {
		return nil, p.HealthCheck(probeCtx)
	})

	report := HealthReport{
		Provider:  p.Name(),
		Status:    HealthStatusHealthy,
		CheckedAt: time.Now(),
		Latency:   time.Since(start),
	}
	if err != nil {
		report.Status = HealthStatusUnhealthy
		report.Error = err.Error()
	}

	m.mu.Lock()
	m.reports[p.Name()] = report
	m.mu.Unlock()

	return report
}

// IsHealthy reports whether the most recent probe of a provider succeeded.
// Providers never probed are assumed healthy.
func (m *HealthMonitor) IsHealthy(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.reports[name]
	if !ok {
		return true
	}
	return report.Status == HealthStatusHealthy
}

// LastReport returns the most recent probe outcome for a provider.
func (m *HealthMonitor) LastReport(name string) (HealthReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.reports[name]
	return report, ok
}

func (m *HealthMonitor) getOrCreateBreaker(name string) *gobreaker.CircuitBreaker[any] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, ok := m.breakers[name]; ok {
		return breaker
	}

	threshold := m.config.FailureThreshold
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     m.config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	m.breakers[name] = breaker
	return breaker
}
