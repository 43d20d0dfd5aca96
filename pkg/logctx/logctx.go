package logctx

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ctxKey string

const (
	// GinLoggerKey / GinTraceIDKey are the gin.Context keys set by the middleware.
	GinLoggerKey  = "logger"
	GinTraceIDKey = "traceID"

	loggerKey ctxKey = "logger"
	traceKey  ctxKey = "traceID"
	walletKey ctxKey = "wallet_address"
)

// WithLogger stores a request-scoped logger on ctx.
func WithLogger(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceID stores the request trace id on ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey, traceID)
}

// WithWallet tags ctx with the subscriber wallet a request operates on.
func WithWallet(ctx context.Context, wallet string) context.Context {
	return context.WithValue(ctx, walletKey, wallet)
}

// TraceID returns the trace id carried by ctx, if any.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tid, _ := ctx.Value(traceKey).(string)
	return tid
}

// FromGin returns a request-scoped logger from gin.Context if present,
// otherwise returns the provided base logger.
func FromGin(c *gin.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return base
	}
	if l, ok := c.Get(GinLoggerKey); ok {
		if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
			return lg
		}
	}
	return FromCtx(c.Request.Context(), base)
}

// FromCtx returns a logger from context if set, otherwise attempts to enrich
// base with trace_id from context values. A wallet tag is always appended.
func FromCtx(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if ctx == nil {
		return base
	}
	lg := base
	if l, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok && l != nil {
		lg = l
	} else if tid := TraceID(ctx); tid != "" {
		lg = lg.With("trace_id", tid)
	}
	if w, ok := ctx.Value(walletKey).(string); ok && w != "" {
		lg = lg.With("wallet_address", w)
	}
	return lg
}
