package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"qr-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 2 * time.Second

type dependencyStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Every checker runs concurrently and
// a single failure degrades the response to 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		var (
			mu   sync.Mutex
			deps = make(map[string]dependencyStatus, len(checkers))
			g    errgroup.Group
		)
		for _, checker := range checkers {
			g.Go(func() error {
				start := time.Now()
				err := checker.Ping(ctx)
				st := dependencyStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					st.Status, st.Error = "unhealthy", err.Error()
				}

				mu.Lock()
				deps[checker.Name()] = st
				mu.Unlock()
				return err
			})
		}

		status, code := "healthy", http.StatusOK
		if err := g.Wait(); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
