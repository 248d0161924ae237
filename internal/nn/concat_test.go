package nn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

func TestConcatenateBuild(t *testing.T) {
	tests := []struct {
		name    string
		inputs  [][]int
		want    []int
		wantErr string
	}{
		{name: "vectors", inputs: [][]int{{2}, {3}}, want: []int{5}},
		{name: "feature maps", inputs: [][]int{{4, 4, 1}, {4, 4, 2}, {4, 4, 3}}, want: []int{4, 4, 6}},
		{name: "single input", inputs: [][]int{{2}}, wantErr: "at least 2 inputs"},
		{name: "rank mismatch", inputs: [][]int{{2}, {2, 2}}, wantErr: "all but the last axis"},
		{name: "leading mismatch", inputs: [][]int{{3, 1}, {4, 1}}, wantErr: "all but the last axis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewConcatenate("concat_x").Build(tt.inputs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrShape))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConcatenateForwardBackward(t *testing.T) {
	c := NewConcatenate("concat_x")
	_, err := c.Build([][]int{{1}, {2}})
	require.NoError(t, err)

	a := tensor.FromData([]int{2, 1}, []float64{1, 2})
	b := tensor.FromData([]int{2, 2}, []float64{3, 4, 5, 6})
	out, err := c.Forward([]*tensor.Tensor{a, b}, false)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, out.Shape)
	assert.Equal(t, []float64{1, 3, 4, 2, 5, 6}, out.Data)

	grads, err := c.Backward(out)
	require.NoError(t, err)
	require.Len(t, grads, 2)
	assert.Equal(t, a.Data, grads[0].Data)
	assert.Equal(t, b.Data, grads[1].Data)
	assert.Equal(t, []int{2, 2}, grads[1].Shape)
}
