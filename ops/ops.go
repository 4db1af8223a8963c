package ops

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the Gin engine for the ops listener. Only two routes:
// a liveness probe and the Prometheus scrape endpoint. No auth — the
// listener is opt-in and meant for localhost or a private network.
func NewRouter(startTime time.Time) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"uptime": time.Since(startTime).Round(time.Second).String(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Start serves the ops router on addr in the background and returns the
// server for shutdown. Listen errors are logged, not fatal: the scrape run
// does not depend on the ops listener.
func Start(addr string, startTime time.Time) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: NewRouter(startTime),
	}

	go func() {
		slog.Info("ops listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops listener error", "error", err)
		}
	}()

	return srv
}
