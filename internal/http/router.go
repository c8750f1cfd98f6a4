// Package httpapi wires the ops HTTP surface (Gin): liveness, Prometheus
// exposition, and a small status endpoint for dashboards. The bot itself
// talks to users over Telegram; nothing here serves end-user traffic.
//
// Middleware order matters: RequestID → Logger → Recovery → Metrics, so
// panics and errors are logged with the correlation ID and every request is
// counted.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvoronin/go-gift-analyst/internal/http/middleware"
	"github.com/nvoronin/go-gift-analyst/internal/state"
)

// WatchStats reports how many per-user alert timers are armed.
type WatchStats interface {
	ActiveCount() int
}

// RegisterRoutes attaches the middleware stack and the ops endpoints to the
// given Gin engine.
func RegisterRoutes(r *gin.Engine, st *state.Store, watches WatchStats) {
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Liveness
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Coarse process status for dashboards. Counts only, no user data.
	r.GET("/status", func(c *gin.Context) {
		snap := st.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"connections":    len(snap.Connections),
			"active_watches": watches.ActiveCount(),
			"catalog_size":   len(snap.LastCatalog),
		})
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "route not found"})
	})
}
