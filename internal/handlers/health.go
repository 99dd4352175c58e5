package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kosarica/catalog-service/internal/database"
)

// Ping answers liveness checks
// @Summary Liveness check
// @Tags health
// @Produce plain
// @Success 200 {string} string "pong"
// @Router /ping [get]
func (h *Handler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// Healthy reports whether the database answers
// @Summary Readiness check
// @Tags health
// @Produce plain
// @Success 200 {string} string "healthy"
// @Failure 503 {string} string "unhealthy"
// @Router /healthy [get]
func (h *Handler) Healthy(c *gin.Context) {
	if h.pool != nil {
		if err := database.Status(c.Request.Context(), h.pool); err != nil {
			h.log.Warn().Err(err).Msg("Database health check failed")
			if h.metrics != nil {
				h.metrics.SetDBHealthy(false)
			}
			c.String(http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}
	if h.metrics != nil {
		h.metrics.SetDBHealthy(true)
	}
	c.String(http.StatusOK, "healthy")
}
