package logctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromCtx_EnrichesTraceAndWallet(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	ctx := WithWallet(WithTraceID(context.Background(), "trace-1"), "0xabc")
	FromCtx(ctx, base).Infow("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "trace-1", fields["trace_id"])
	require.Equal(t, "0xabc", fields["wallet_address"])
}

func TestFromCtx_PrefersAttachedLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	attached := zap.New(core).Sugar().With("source", "request")

	ctx := WithLogger(context.Background(), attached)
	FromCtx(ctx, zap.NewNop().Sugar()).Infow("hello")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "request", logs.All()[0].ContextMap()["source"])
	require.Equal(t, "", TraceID(ctx))
}
