package response

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorT_UsesTaxonomyMessage(t *testing.T) {
	res := ErrorT[any](APIResponseCodeCancelLocked, map[string]int64{"locked_until": 1})
	require.Equal(t, APIResponseCodeCancelLocked, res.Code)
	require.Equal(t, "cancel_locked", res.Message)

	ok := OKT("x")
	require.Equal(t, APIResponseCodeOK, ok.Code)
	require.Equal(t, "ok", ok.Message)
}
