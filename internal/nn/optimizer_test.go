package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizersMinimiseQuadratic(t *testing.T) {
	for _, name := range []string{"sgd", "adam", "rmsprop", "adagrad"} {
		t.Run(name, func(t *testing.T) {
			opt, err := OptimizerByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, opt.Name())

			p, err := NewParam("w", 2)
			require.NoError(t, err)
			p.Value.Data[0], p.Value.Data[1] = 3, -2
			start := p.Value.Data[0]*p.Value.Data[0] + p.Value.Data[1]*p.Value.Data[1]

			for i := 0; i < 200; i++ {
				for j, v := range p.Value.Data {
					p.Grad.Data[j] = 2 * v
				}
				opt.Step([]*Param{p})
			}
			end := p.Value.Data[0]*p.Value.Data[0] + p.Value.Data[1]*p.Value.Data[1]
			assert.Less(t, end, start)
		})
	}
}

func TestOptimizerByNameUnknown(t *testing.T) {
	_, err := OptimizerByName("lbfgs")
	assert.ErrorContains(t, err, "unknown optimizer")

	opt, err := OptimizerByName(" Adam ")
	require.NoError(t, err)
	assert.Equal(t, "adam", opt.Name())
}
