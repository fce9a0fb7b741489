package ddpg

import (
	"testing"

	"github.com/samuelfneumann/ddpgportfolio/utils/floatutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExploration(t *testing.T, warmup int) *Exploration {
	c := DefaultConfig()
	c.WarmupSteps = warmup
	c.EpsilonDecayRate = 1e-2
	e, err := NewExploration(3, c, 1)
	require.NoError(t, err)
	return e
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"hybrid", "ou", "greedy"} {
		m, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, Mode(name), m)
	}
	_, err := ParseMode("boltzmann")
	assert.Error(t, err)
}

func TestUpdateEpsilon(t *testing.T) {
	e := newTestExploration(t, 100)
	assert.Equal(t, 1.0, e.Epsilon)

	for i := 0; i < 50; i++ {
		e.UpdateEpsilon()
	}
	assert.InDelta(t, 0.75, e.Epsilon, 1e-12)

	for i := 0; i < 50; i++ {
		e.UpdateEpsilon()
	}
	assert.Equal(t, 100, e.EpisodeCount)
	assert.InDelta(t, 0.5, e.Epsilon, 1e-12)

	prev := e.Epsilon
	for i := 0; i < 200; i++ {
		e.UpdateEpsilon()
		assert.LessOrEqual(t, e.Epsilon, prev)
		assert.GreaterOrEqual(t, e.Epsilon, e.EpsilonMin)
		prev = e.Epsilon
	}
	assert.Equal(t, e.EpsilonMin, e.Epsilon)
}

func TestUpdateEpsilonNoWarmup(t *testing.T) {
	e := newTestExploration(t, 0)
	e.UpdateEpsilon()
	assert.Less(t, e.Epsilon, e.EpsilonMax)
	assert.GreaterOrEqual(t, e.Epsilon, e.EpsilonMin)
}

func TestSelect(t *testing.T) {
	logits := []float64{0.1, -0.3, 0.7}

	t.Run("Deterministic", func(t *testing.T) {
		e := newTestExploration(t, 10)
		for _, mode := range []Mode{Hybrid, OU, Greedy} {
			action := e.Select(logits, false, mode)
			assert.InDeltaSlice(t, floatutils.NonCash(floatutils.Softmax(logits)),
				action, 1e-12)
		}
		assert.Equal(t, 0, e.EpisodeCount)
	})

	t.Run("Hybrid", func(t *testing.T) {
		e := newTestExploration(t, 3)
		sigma := e.Noise.Sigma()
		for i := 0; i < 3; i++ {
			action := e.Select(logits, true, Hybrid)
			require.Len(t, action, 2)
			require.NoError(t, floatutils.OnSimplex(floatutils.WithCash(action)))
		}
		assert.Equal(t, 3, e.EpisodeCount)
		assert.Equal(t, sigma, e.Noise.Sigma())

		// Past the warm-up, OU noise is used and its scale decays
		action := e.Select(logits, true, Hybrid)
		require.NoError(t, floatutils.OnSimplex(floatutils.WithCash(action)))
		assert.Equal(t, 3, e.EpisodeCount)
		assert.Less(t, e.Noise.Sigma(), sigma)
	})

	t.Run("OU", func(t *testing.T) {
		e := newTestExploration(t, 3)
		for i := 0; i < 20; i++ {
			action := e.Select(logits, true, OU)
			require.NoError(t, floatutils.OnSimplex(floatutils.WithCash(action)))
		}
		assert.Equal(t, 0, e.EpisodeCount)
	})

	t.Run("OUZeroSigma", func(t *testing.T) {
		c := DefaultConfig()
		c.OUSigma = 0
		e, err := NewExploration(3, c, 1)
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			action := e.Select(logits, true, OU)
			assert.InDeltaSlice(t,
				floatutils.NonCash(floatutils.Softmax(logits)), action, 1e-12)
			assert.Equal(t, 0.0, e.Noise.Sigma())
		}
	})

	t.Run("Greedy", func(t *testing.T) {
		// Epsilon starts at 1, so the first draw is always uniform
		e := newTestExploration(t, 10)
		action := e.Select(logits, true, Greedy)
		require.NoError(t, floatutils.OnSimplex(floatutils.WithCash(action)))
		assert.Equal(t, 1, e.EpisodeCount)
		assert.Less(t, e.Epsilon, 1.0)
	})

	t.Run("UnknownMode", func(t *testing.T) {
		e := newTestExploration(t, 10)
		assert.Panics(t, func() { e.Select(logits, true, Mode("none")) })
	})
}

func TestSelectUniformAction(t *testing.T) {
	e := newTestExploration(t, 10)
	for i := 0; i < 50; i++ {
		action := e.SelectUniformAction(4)
		require.Len(t, action, 4)
		require.NoError(t, floatutils.OnSimplex(action))
	}
}
