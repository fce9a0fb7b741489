package portfolio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReward(t *testing.T) {
	p, err := New([]string{"ETH", "XRP"}, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Assets())
	assert.Equal(t, 2, p.NonCashAssets())
	assert.Equal(t, []string{"ETH", "XRP"}, p.Names())

	// All cash, no rebalancing: no change in value
	assert.Equal(t, 0.0, p.Reward([]float64{0, 0}, []float64{2, 0.5},
		[]float64{0, 0}))

	// Half in ETH which doubles, bought from all cash
	action := []float64{0.5, 0}
	mu := 1 - 0.01*0.5
	growth := mu * (0.5*1 + 0.5*2)
	assert.InDelta(t, growth, p.Growth(action, []float64{2, 1},
		[]float64{0, 0}), 1e-12)
	assert.InDelta(t, math.Log(growth), p.Reward(action, []float64{2, 1},
		[]float64{0, 0}), 1e-12)

	assert.InDelta(t, 1-0.01*(0.5+0.3), p.TransactionFactor(
		[]float64{0.5, 0}, []float64{0, 0.3}), 1e-12)
}

func TestGrowthPanics(t *testing.T) {
	p, err := New([]string{"ETH"}, 0)
	require.NoError(t, err)
	assert.Panics(t, func() {
		p.Growth([]float64{0.5, 0.5}, []float64{1}, []float64{0})
	})
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, 0.01)
	assert.Error(t, err)
	_, err = New([]string{"A"}, 1)
	assert.Error(t, err)
}
