package maxpool2d

import (
	"testing"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
	"github.com/specialistvlad/tensorgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	l, err := New("pool", Params{PoolSize: []int{2, 2}, Strides: []int{0, 0}, Padding: "valid"})
	require.NoError(t, err)
	out, err := l.Build([][]int{{26, 26, 8}})
	require.NoError(t, err)
	assert.Equal(t, []int{13, 13, 8}, out)

	l, err = New("pool", Params{PoolSize: []int{3, 3}, Strides: []int{2, 2}, Padding: "same"})
	require.NoError(t, err)
	out, err = l.Build([][]int{{7, 7, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 1}, out)

	_, err = New("pool", Params{PoolSize: []int{2, 2}, Strides: []int{1, -1}, Padding: "valid"})
	assert.ErrorContains(t, err, "parameter 'strides' must be positive")

	l, _ = New("pool", Params{PoolSize: []int{4, 4}, Strides: []int{0, 0}, Padding: "valid"})
	_, err = l.Build([][]int{{3, 3, 1}})
	assert.ErrorContains(t, err, "does not fit")
}

func TestForwardBackward(t *testing.T) {
	l, err := New("pool", Params{PoolSize: []int{2, 2}, Strides: []int{0, 0}, Padding: "valid"})
	require.NoError(t, err)
	_, err = l.Build([][]int{{2, 4, 1}})
	require.NoError(t, err)

	x := tensor.FromData([]int{1, 2, 4, 1}, []float64{
		1, 5, 2, 0,
		3, 4, 8, 7,
	})
	y, err := l.Forward([]*tensor.Tensor{x}, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 1}, y.Shape)
	assert.Equal(t, []float64{5, 8}, y.Data)

	dx, err := l.Backward(tensor.FromData([]int{1, 1, 2, 1}, []float64{10, 20}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 0, 0, 0, 0, 20, 0}, dx[0].Data)
}

func TestGradients(t *testing.T) {
	l, err := New("pool", Params{PoolSize: []int{2, 2}, Strides: []int{1, 1}, Padding: "same"})
	require.NoError(t, err)
	out, err := l.Build([][]int{{4, 4, 2}})
	require.NoError(t, err)
	testutil.CheckLayerGradients(t, l, testutil.Ramp(1, 4, 4, 2), testutil.Ramp(append([]int{1}, out...)...), 1e-5)
}
