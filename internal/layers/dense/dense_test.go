package dense

import (
	"errors"
	"testing"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New("d", Params{Units: 0})
	assert.True(t, errors.Is(err, registry.ErrInvalidParameter))
	assert.ErrorContains(t, err, "parameter 'units' must be a positive integer, got '0'")

	_, err = New("d", Params{Units: 2, Activation: "gelu"})
	assert.ErrorContains(t, err, "parameter 'activation' unknown activation")
}

func TestBuild(t *testing.T) {
	l, err := New("dense_1", Params{Units: 3, UseBias: true})
	require.NoError(t, err)

	out, err := l.Build([][]int{{4}})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, out)
	assert.Equal(t, 4*3+3, nn.CountParams(l.Params()))

	t.Run("rank-2 input needs a flatten", func(t *testing.T) {
		l, _ := New("dense_2", Params{Units: 3})
		_, err := l.Build([][]int{{28, 28}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, nn.ErrShape))
		assert.Contains(t, err.Error(), "expected a rank-1 input, got (None, 28, 28)")
	})

	t.Run("kernel above the parameter limit", func(t *testing.T) {
		l, _ := New("dense_4", Params{Units: 50000})
		_, err := l.Build([][]int{{50000}})
		assert.ErrorIs(t, err, nn.ErrTooLarge)
		assert.Empty(t, l.Params())
	})

	t.Run("without bias", func(t *testing.T) {
		l, _ := New("dense_3", Params{Units: 2})
		_, err := l.Build([][]int{{5}})
		require.NoError(t, err)
		assert.Equal(t, 10, nn.CountParams(l.Params()))
	})
}

func TestGradients(t *testing.T) {
	for _, act := range []string{"linear", "tanh", "sigmoid", "softmax"} {
		t.Run(act, func(t *testing.T) {
			l, err := New("dense_"+act, Params{Units: 3, Activation: act, UseBias: true})
			require.NoError(t, err)
			_, err = l.Build([][]int{{4}})
			require.NoError(t, err)
			testutil.CheckLayerGradients(t, l, testutil.Ramp(2, 4), testutil.Ramp(2, 3), 1e-5)
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a, _ := New("same", Params{Units: 2})
	b, _ := New("same", Params{Units: 2})
	_, _ = a.Build([][]int{{3}})
	_, _ = b.Build([][]int{{3}})
	assert.Equal(t, a.w.Value.Data, b.w.Value.Data)
}
