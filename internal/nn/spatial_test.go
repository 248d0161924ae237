package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowOutput(t *testing.T) {
	tests := []struct {
		n, k, s    int
		padding    string
		out, first int
	}{
		{n: 28, k: 3, s: 1, padding: PaddingValid, out: 26},
		{n: 28, k: 2, s: 2, padding: PaddingValid, out: 14},
		{n: 2, k: 3, s: 1, padding: PaddingValid, out: 0},
		{n: 28, k: 3, s: 1, padding: PaddingSame, out: 28, first: 1},
		{n: 5, k: 2, s: 2, padding: PaddingSame, out: 3, first: 0},
	}
	for _, tt := range tests {
		out, first := WindowOutput(tt.n, tt.k, tt.s, tt.padding)
		assert.Equal(t, tt.out, out, "%+v", tt)
		assert.Equal(t, tt.first, first, "%+v", tt)
	}
}

func TestParsePadding(t *testing.T) {
	p, err := ParsePadding(" SAME ")
	require.NoError(t, err)
	assert.Equal(t, PaddingSame, p)

	_, err = ParsePadding("causal")
	assert.ErrorContains(t, err, "'valid' or 'same'")
}
