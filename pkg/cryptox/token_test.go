package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit token", TokenSize128, 22},
		{"256-bit token", TokenSize256, 43},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)

			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestGenerateNumericCode(t *testing.T) {
	for _, length := range []int{1, 6, 8, 32} {
		code, err := GenerateNumericCode(length)
		require.NoError(t, err)
		require.Len(t, code, length)
		require.True(t, IsNumericCode(code), "code %q", code)
	}

	_, err := GenerateNumericCode(0)
	require.Error(t, err)
}

func TestGenerateNumericCode_Spread(t *testing.T) {
	seen := make(map[byte]bool)
	for range 200 {
		code, err := GenerateNumericCode(6)
		require.NoError(t, err)
		for i := range len(code) {
			seen[code[i]] = true
		}
	}
	require.Len(t, seen, 10, "every digit should show up across 1200 draws")
}

func TestIsNumericCode(t *testing.T) {
	require.True(t, IsNumericCode("000123"))
	require.False(t, IsNumericCode(""))
	require.False(t, IsNumericCode("12a4"))
	require.False(t, IsNumericCode("*"))
	require.False(t, IsNumericCode("12 34"))
}
