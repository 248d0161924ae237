package dropout

import (
	"testing"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, rate := range []float64{-0.1, 1, 1.5} {
		_, err := New("drop", Params{Rate: rate})
		assert.ErrorContains(t, err, "parameter 'rate' must be in [0, 1)", "rate %v", rate)
	}
}

func TestForward(t *testing.T) {
	l, err := New("drop", Params{Rate: 0.5})
	require.NoError(t, err)
	_, err = l.Build([][]int{{1000}})
	require.NoError(t, err)

	x := tensor.New(1, 1000)
	for i := range x.Data {
		x.Data[i] = 1
	}

	t.Run("identity at inference", func(t *testing.T) {
		y, err := l.Forward([]*tensor.Tensor{x}, false)
		require.NoError(t, err)
		assert.Same(t, x, y)
	})

	t.Run("inverted scaling when training", func(t *testing.T) {
		y, err := l.Forward([]*tensor.Tensor{x}, true)
		require.NoError(t, err)
		var kept int
		for _, v := range y.Data {
			if v != 0 {
				assert.Equal(t, 2.0, v)
				kept++
			}
		}
		assert.InDelta(t, 500, kept, 100)

		g := tensor.New(1, 1000)
		for i := range g.Data {
			g.Data[i] = 1
		}
		dx, err := l.Backward(g)
		require.NoError(t, err)
		assert.Equal(t, y.Data, dx[0].Data, "gradient follows the same mask")
	})
}
