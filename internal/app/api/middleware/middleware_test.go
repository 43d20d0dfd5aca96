package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/renewal/pkg/config"
	"github.com/fatflowers/renewal/pkg/logctx"
)

func newAuthRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", ExecutorAuthMiddleware(cfg, zap.NewNop().Sugar()), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func doGet(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExecutorAuthMiddleware(t *testing.T) {
	cfg := &config.Config{Env: config.EnvProd, Executor: config.ExecutorConfig{Secret: "s3cret", Header: "X-Executor-Secret"}}
	r := newAuthRouter(cfg)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong header value", map[string]string{"X-Executor-Secret": "nope"}, http.StatusUnauthorized},
		{"header", map[string]string{"X-Executor-Secret": "s3cret"}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"wrong bearer", map[string]string{"Authorization": "Bearer s3cre"}, http.StatusUnauthorized},
		{"basic scheme", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(r, tt.headers)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":40100`)
			}
		})
	}
}

func TestExecutorAuthMiddleware_NoSecret(t *testing.T) {
	dev := newAuthRouter(&config.Config{Env: config.EnvDev})
	assert.Equal(t, http.StatusOK, doGet(dev, nil).Code)

	prod := newAuthRouter(&config.Config{Env: config.EnvProd})
	assert.Equal(t, http.StatusUnauthorized, doGet(prod, nil).Code)
}

func TestTraceAndRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()

	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(base), AccessLogMiddleware(base))
	var ctxTrace string
	r.GET("/x", func(c *gin.Context) {
		ctxTrace = logctx.TraceID(c.Request.Context())
		logctx.FromCtx(c.Request.Context(), base).Infow("inside")
		c.Status(http.StatusNoContent)
	})

	w := doGet(r, map[string]string{RequestIDHeader: "trace-abc"})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "trace-abc", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "trace-abc", ctxTrace)

	require.Equal(t, 2, logs.Len())
	for _, e := range logs.All() {
		assert.Equal(t, "trace-abc", e.ContextMap()["trace_id"])
	}
	assert.Equal(t, "http_access", logs.All()[1].Message)

	generated := doGet(r, nil)
	assert.NotEmpty(t, generated.Header().Get(RequestIDHeader))
}
