package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/renewal/pkg/response"
)

const healthCheckTimeout = 2 * time.Second

// Pinger checks one backing dependency.
type Pinger func(ctx context.Context) error

// @Summary      Health check
// @Description  Returns ok when the database and Redis answer a ping
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		status := map[string]string{"status": "ok"}
		failed := false
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				status[name] = err.Error()
				failed = true
				continue
			}
			status[name] = "ok"
		}
		if failed {
			status["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, response.ErrorT(response.APIResponseCodeError, status))
			return
		}
		c.JSON(http.StatusOK, response.OKT(status))
	}
}

func RegisterHealthRoutes(r gin.IRouter, checks map[string]Pinger) {
	r.GET("/healthz", Healthz(checks))
}
