package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/server/handlers"
)

// Options configures the engine. Webhook routes are only mounted when
// Webhook is set.
type Options struct {
	Mode           string
	AllowedOrigins []string
	Webhook        *handlers.WebhookHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(materials *handlers.MaterialsHandler, production *handlers.ProductionHandler, opts Options, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = gin.ReleaseMode
	}
	gin.SetMode(opts.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(corsMiddleware(opts.AllowedOrigins))

	api := r.Group("/api")

	raw := api.Group("/raw-materials")
	raw.GET("", materials.List)
	raw.POST("", materials.Receive)
	raw.PUT("/:id", materials.Update)

	prod := api.Group("/production")
	prod.POST("", production.Log)
	prod.POST("/cakes", production.LogCakes)
	prod.POST("/materials", production.LogMaterials)
	prod.POST("/wages/pay", production.PayWages)
	prod.POST("/daily-reset", production.DailyReset)
	prod.GET("/summary/daily", production.DailySummary)
	prod.GET("/summary/range", production.RangeSummary)

	if opts.Webhook != nil {
		r.GET("/webhook", opts.Webhook.Verify)
		r.POST("/webhook", opts.Webhook.Receive)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	logger.Info("router initialized")
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
