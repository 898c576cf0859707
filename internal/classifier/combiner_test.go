package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChiSquareQ(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		dof  int
		want float64
	}{
		{name: "zero statistic", x: 0, dof: 2, want: 1},
		{name: "negative statistic", x: -3, dof: 2, want: 1},
		{name: "two dof is plain exponential", x: 9.21034, dof: 2, want: 0.01},
		{name: "small statistic stays near one", x: 0.0201007, dof: 2, want: 0.99},
		{name: "four dof", x: 2.77259, dof: 4, want: 0.5966},
		{name: "large statistic underflows to zero", x: 5000, dof: 2, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, chiSquareQ(tt.x, tt.dof), 1e-4)
		})
	}
}

func TestRobinsonFisher(t *testing.T) {
	c := RobinsonFisher{}

	t.Run("no evidence is neutral", func(t *testing.T) {
		assert.Equal(t, 0.5, c.Combine(nil))
	})

	t.Run("single strong predictor", func(t *testing.T) {
		assert.InDelta(t, 0.99, c.Combine([]float64{0.99}), 1e-9)
	})

	t.Run("single weak predictor", func(t *testing.T) {
		assert.InDelta(t, 0.01, c.Combine([]float64{0.01}), 1e-9)
	})

	t.Run("balanced evidence stays neutral", func(t *testing.T) {
		assert.InDelta(t, 0.5, c.Combine([]float64{0.5, 0.5, 0.5}), 1e-12)
	})

	t.Run("symmetry", func(t *testing.T) {
		high := c.Combine([]float64{0.9, 0.8})
		low := c.Combine([]float64{0.1, 0.2})
		assert.InDelta(t, high, 1-low, 1e-12)
	})

	t.Run("result stays in range", func(t *testing.T) {
		probs := []float64{0.99, 0.99, 0.01, 0.6, 0.4, 0.99}
		got := c.Combine(probs)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	})
}

func TestOddsProduct(t *testing.T) {
	c := OddsProduct{}

	t.Run("no evidence is zero, not one half", func(t *testing.T) {
		assert.Equal(t, 0.0, c.Combine(nil))
	})

	t.Run("single predictor passes through the odds", func(t *testing.T) {
		// 0.99 / (0.99 + 0.01)
		assert.InDelta(t, 0.99, c.Combine([]float64{0.99}), 1e-12)
	})

	t.Run("two agreeing predictors reinforce", func(t *testing.T) {
		// 0.64 / (0.64 + 0.04)
		assert.InDelta(t, 0.64/0.68, c.Combine([]float64{0.8, 0.8}), 1e-12)
	})

	t.Run("opposing predictors cancel", func(t *testing.T) {
		assert.InDelta(t, 0.5, c.Combine([]float64{0.9, 0.1}), 1e-12)
	})

	t.Run("long streak underflow yields zero", func(t *testing.T) {
		probs := make([]float64, 5000)
		for i := range probs {
			probs[i] = 0.5
		}
		got := c.Combine(probs)
		assert.False(t, math.IsNaN(got))
	})
}

func TestNewCombiner(t *testing.T) {
	rf, err := NewCombiner("robinson-fisher")
	require.NoError(t, err)
	assert.Equal(t, CombinerRobinsonFisher, rf.Name())

	op, err := NewCombiner("odds-product")
	require.NoError(t, err)
	assert.Equal(t, CombinerOddsProduct, op.Name())

	def, err := NewCombiner("")
	require.NoError(t, err)
	assert.Equal(t, CombinerRobinsonFisher, def.Name())

	_, err = NewCombiner("geometric-mean")
	assert.Error(t, err)
}
