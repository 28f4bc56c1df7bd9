// Package app wires configuration, providers, the payment service and the
// HTTP surface into a runnable application.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ginadapter "github.com/payrouter/server/internal/adapter/inbound/gin"
	"github.com/payrouter/server/internal/module/payment"
	"github.com/payrouter/server/internal/module/payment/eventstore"
	"github.com/payrouter/server/internal/module/payment/provider"
	"github.com/payrouter/server/internal/shared/cache"
	"github.com/payrouter/server/internal/shared/config"
	"github.com/payrouter/server/internal/shared/database"
	"github.com/payrouter/server/internal/shared/logger"
	"github.com/payrouter/server/internal/utils/metrics"
)

// App holds the wired application.
type App struct {
	config *config.Config
	logger *zap.Logger

	db    *gorm.DB
	redis redis.UniversalClient

	registry  *payment.Registry
	monitor   *payment.HealthMonitor
	service   *payment.Service
	processor *payment.WebhookProcessor

	router *gin.Engine
}

// New builds the application from configuration. Providers with missing
// credentials are skipped; at least one must be configured.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{
		config: cfg,
		logger: log,
	}

	if err := a.initProviders(); err != nil {
		return nil, err
	}

	m := metrics.New("payrouter")

	a.monitor = payment.NewHealthMonitor(a.registry, &payment.HealthMonitorConfig{
		CheckInterval:    cfg.Health.CheckInterval,
		CheckTimeout:     cfg.Health.CheckTimeout,
		FailureThreshold: cfg.Health.FailureThreshold,
		OpenTimeout:      cfg.Health.CircuitTimeout,
	})

	router := payment.NewRouter(a.registry, &payment.RoutingConfig{
		HighAmountThreshold: cfg.Routing.HighAmountThreshold,
		HighTrustProviders:  cfg.Routing.HighTrustProviders,
		EUCurrencies:        cfg.Routing.EUCurrencies,
		EUPreferredProvider: cfg.Routing.EUPreferredProvider,
	})

	a.service = payment.NewService(a.registry, router, a.monitor, m, log)

	store, err := a.initEventStore()
	if err != nil {
		return nil, err
	}
	a.processor = payment.NewWebhookProcessor(a.registry, store, nil, m, log)

	a.router = ginadapter.NewRouter(ginadapter.RouterConfig{
		PaymentHandler: ginadapter.NewPaymentHandler(a.service, log),
		WebhookHandler: ginadapter.NewWebhookHandler(a.processor, log),
		Metrics:        m,
		Logger:         log,
		Debug:          cfg.Log.Level == "debug",
	})

	return a, nil
}

// initProviders registers every provider with credentials. Registration
// order fixes the default routing order: stripe, paypal, paddle, alipay.
func (a *App) initProviders() error {
	a.registry = payment.NewRegistry()
	cfg := a.config.Providers

	if cfg.Stripe.APIKey != "" {
		a.registry.Register(provider.NewStripeProvider(&provider.StripeConfig{
			APIKey:        cfg.Stripe.APIKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		}))
	}

	if cfg.PayPal.ClientID != "" {
		p, err := provider.NewPayPalProvider(&provider.PayPalConfig{
			ClientID:  cfg.PayPal.ClientID,
			Secret:    cfg.PayPal.Secret,
			WebhookID: cfg.PayPal.WebhookID,
			IsProd:    cfg.PayPal.IsProd,
			ReturnURL: cfg.PayPal.ReturnURL,
			CancelURL: cfg.PayPal.CancelURL,
		})
		if err != nil {
			return fmt.Errorf("init paypal provider: %w", err)
		}
		a.registry.Register(p)
	}

	if cfg.Paddle.APIKey != "" {
		a.registry.Register(provider.NewPaddleProvider(&provider.PaddleConfig{
			APIKey:        cfg.Paddle.APIKey,
			WebhookSecret: cfg.Paddle.WebhookSecret,
			Sandbox:       cfg.Paddle.Sandbox,
		}))
	}

	if cfg.Alipay.AppID != "" {
		p, err := provider.NewAlipayProvider(&provider.AlipayConfig{
			AppID:           cfg.Alipay.AppID,
			PrivateKey:      cfg.Alipay.PrivateKey,
			AlipayPublicKey: cfg.Alipay.AlipayPublicKey,
			IsProd:          cfg.Alipay.IsProd,
			NotifyURL:       cfg.Alipay.NotifyURL,
		})
		if err != nil {
			return fmt.Errorf("init alipay provider: %w", err)
		}
		a.registry.Register(p)
	}

	if len(a.registry.List()) == 0 {
		return fmt.Errorf("no payment provider configured")
	}

	if cfg.Default != "" {
		if err := a.registry.SetDefault(cfg.Default); err != nil {
			return fmt.Errorf("set default provider: %w", err)
		}
	}

	a.logger.Info("payment providers registered",
		zap.Strings("providers", a.registry.List()))
	return nil
}

// initEventStore builds the webhook dedup backend selected by config.
func (a *App) initEventStore() (eventstore.Store, error) {
	cfg := a.config.Webhook

	switch cfg.DedupStore {
	case "redis":
		client, err := cache.NewRedisClient(&a.config.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		return eventstore.NewRedis(client, cfg.DedupTTL), nil

	case "postgres":
		db, err := database.New(&a.config.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.db = db
		store, err := eventstore.NewPostgres(db)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return eventstore.NewMemory(cfg.DedupTTL), nil
	}
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Start begins background work (provider health probing).
func (a *App) Start(ctx context.Context) {
	a.monitor.Start()
	a.monitor.CheckAll(ctx)
}

// Stop shuts down background work and closes connections.
func (a *App) Stop() {
	a.monitor.Stop()
	if a.redis != nil {
		if err := cache.Close(a.redis); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
