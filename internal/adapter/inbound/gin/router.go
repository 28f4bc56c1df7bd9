package gin

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/payrouter/server/internal/shared/middleware"
	"github.com/payrouter/server/internal/utils/metrics"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	PaymentHandler *PaymentHandler
	WebhookHandler *WebhookHandler
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	Debug          bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	cfg.PaymentHandler.RegisterRoutes(api)
	cfg.WebhookHandler.RegisterRoutes(api.Group("/webhooks"))

	return r
}
