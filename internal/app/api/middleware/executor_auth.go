package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/renewal/pkg/config"
	"github.com/fatflowers/renewal/pkg/logctx"
	"github.com/fatflowers/renewal/pkg/response"
)

// ExecutorAuthMiddleware checks the shared executor secret, sent either in the
// configured header or as a bearer token. Without a configured secret, requests
// pass outside production and are refused in production.
func ExecutorAuthMiddleware(cfg *config.Config, base *zap.SugaredLogger) gin.HandlerFunc {
	secret := []byte(cfg.Executor.Secret)
	header := cfg.Executor.Header
	if len(secret) == 0 && !cfg.IsProd() {
		base.Warnw("executor authentication disabled", "env", cfg.Env)
	}

	return func(c *gin.Context) {
		if len(secret) == 0 {
			if cfg.IsProd() {
				reject(c, base, "executor secret not configured")
				return
			}
			c.Next()
			return
		}

		got := extractExecutorSecret(c, header)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), secret) != 1 {
			reject(c, base, "bad or missing executor credential")
			return
		}
		c.Next()
	}
}

func extractExecutorSecret(c *gin.Context, header string) string {
	if header != "" {
		if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
			return v
		}
	}
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func reject(c *gin.Context, base *zap.SugaredLogger, reason string) {
	logctx.FromGin(c, base).Warnw("executor_unauthorized", "reason", reason, "client_ip", c.ClientIP())
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
}
