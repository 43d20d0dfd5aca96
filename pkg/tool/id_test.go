package tool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDV7_Ordered(t *testing.T) {
	a := GenerateUUIDV7()
	b := GenerateUUIDV7()
	require.True(t, IsUUID(a))
	require.NotEqual(t, a, b)
	require.Less(t, a, b)
}

func TestIsUUID(t *testing.T) {
	require.True(t, IsUUID(NewToken()))
	require.False(t, IsUUID("not-a-uuid"))
	require.False(t, IsUUID(""))
}
