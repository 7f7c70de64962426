package restapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter builds the gin engine of the dashboard.
func SetupRouter(h *DashboardHandler, zapLogger *zap.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))
	router.Use(ZapLoggerMiddleware(zapLogger))
	router.Use(gin.Recovery())

	router.GET("/", h.PageHandler)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/state", h.StateHandler)
		v1.POST("/validate", h.ValidateHandler)
		v1.POST("/wallet/connect", h.ConnectHandler)
		v1.POST("/wallet/disconnect", h.DisconnectHandler)
		v1.POST("/deposit", h.DepositHandler)
		v1.POST("/withdraw", h.WithdrawHandler)
		v1.POST("/claim", h.ClaimHandler)
		v1.GET("/max-amount", h.MaxAmountHandler)
		v1.GET("/events", h.EventsHandler)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// ZapLoggerMiddleware logs every request through zap.
func ZapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			logger.Error("Request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		logger.Info("Request", fields...)
	}
}
