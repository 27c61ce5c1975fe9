package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/remitgrid-transfer-core/internal/api_gateway/handler"
	"github.com/remitgrid-transfer-core/internal/api_gateway/middleware"
	"github.com/remitgrid-transfer-core/internal/metrics"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	transferHandler *handler.TransferHandler,
	balanceHandler *handler.BalanceHandler,
	m *metrics.Metrics,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Transfer operations
		transfers := v1.Group("/transfers")
		{
			transfers.POST("", transferHandler.Create)
			transfers.GET("/:id", transferHandler.GetByID)
			transfers.GET("/:id/receipts", transferHandler.GetReceipts)
		}

		// Read-only balance access
		balances := v1.Group("/balances")
		{
			balances.GET("/:userId", balanceHandler.GetByUserID)
		}

		// Manual-review queue for operators
		v1.GET("/reviews", transferHandler.GetOpenReviews)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
}
