package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adpulse-org/adpulse/metrics"
)

// NewRouter assembles the gin engine: middleware, health and metrics
// endpoints, and the versioned API routes.
func NewRouter(h *Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(log), Recovery(log))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/insights/aggregate", h.Aggregate)
		v1.POST("/insights/ask", h.Ask)
		v1.POST("/sync/historical", h.SyncHistorical)
		v1.POST("/sync/shopify", h.SyncShopify)
	}
	return r
}
