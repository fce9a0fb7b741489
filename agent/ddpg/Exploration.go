package ddpg

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/ddpgportfolio/noise"
	"github.com/samuelfneumann/ddpgportfolio/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mode is a way of exploring around the deterministic policy
type Mode string

const (
	// Hybrid draws uniform allocations for the first WarmupSteps
	// selections and then explores with OU noise
	Hybrid Mode = "hybrid"

	// OU adds Ornstein-Uhlenbeck noise to the policy logits
	OU Mode = "ou"

	// Greedy draws a uniform allocation with probability epsilon and
	// acts deterministically otherwise
	Greedy Mode = "greedy"
)

// ParseMode returns the Mode named by s
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Hybrid, OU, Greedy:
		return m, nil
	}
	return "", fmt.Errorf("parseMode: unknown exploration mode %q", s)
}

// Exploration holds the exploration state shared by every exploration
// mode: the selection counter, the epsilon schedule and the noise
// process. The counter is advanced both by hybrid warm-up draws and by
// epsilon updates.
type Exploration struct {
	EpisodeCount int
	WarmupSteps  int

	Epsilon    float64
	EpsilonMax float64
	EpsilonMin float64
	DecayRate  float64

	Noise *noise.OrnsteinUhlenbeck
	rng   distuv.Uniform
}

// NewExploration returns the exploration state for allocations over
// assets assets (including cash)
func NewExploration(assets int, c Config, seed uint64) (*Exploration,
	error) {
	ou, err := noise.NewOrnsteinUhlenbeck(assets, c.OUMu, c.OUTheta,
		c.OUSigma, c.OUSigmaMin, c.OUSigmaDecay, seed)
	if err != nil {
		return nil, fmt.Errorf("newExploration: %w", err)
	}

	return &Exploration{
		WarmupSteps: c.WarmupSteps,
		Epsilon:     c.EpsilonMax,
		EpsilonMax:  c.EpsilonMax,
		EpsilonMin:  c.EpsilonMin,
		DecayRate:   c.EpsilonDecayRate,
		Noise:       ou,
		rng:         distuv.Uniform{Min: 0, Max: 1, Src: rand.NewSource(seed + 1)},
	}, nil
}

// Select returns the non-cash allocation chosen for the policy logits,
// which hold the cash logit first. Without exploration the softmax of
// the logits is used.
func (e *Exploration) Select(logits []float64, explore bool,
	mode Mode) []float64 {
	if !explore {
		return floatutils.NonCash(floatutils.Softmax(logits))
	}

	switch mode {
	case Hybrid:
		if e.EpisodeCount < e.WarmupSteps {
			e.EpisodeCount++
			return floatutils.NonCash(e.SelectUniformAction(len(logits)))
		}
		return e.selectOU(logits)

	case OU:
		return e.selectOU(logits)

	case Greedy:
		if e.rng.Rand() < e.Epsilon {
			action := e.SelectUniformAction(len(logits))
			e.UpdateEpsilon()
			return floatutils.NonCash(action)
		}
		return floatutils.NonCash(floatutils.Softmax(logits))
	}

	panic(fmt.Sprintf("select: unknown exploration mode %q", mode))
}

func (e *Exploration) selectOU(logits []float64) []float64 {
	noisy := e.Noise.Sample()
	for i := range noisy {
		noisy[i] += logits[i]
	}
	e.Noise.DecaySigma()
	return floatutils.NonCash(floatutils.Softmax(noisy))
}

// SelectUniformAction returns a random full allocation over m assets
func (e *Exploration) SelectUniformAction(m int) []float64 {
	return floatutils.UniformSimplex(m, e.rng)
}

// UpdateEpsilon advances the counter and the epsilon schedule. During
// warm-up epsilon falls linearly from EpsilonMax to 0.5; afterwards it
// decays exponentially towards EpsilonMin.
func (e *Exploration) UpdateEpsilon() {
	// Count first, so the last warm-up update lands exactly on 0.5
	e.EpisodeCount++

	if e.EpisodeCount <= e.WarmupSteps {
		progress := float64(e.EpisodeCount) / float64(e.WarmupSteps)
		e.Epsilon = 0.5 + (e.EpsilonMax-0.5)*(1-progress)
	} else {
		steps := float64(e.EpisodeCount - e.WarmupSteps)
		e.Epsilon = math.Max(e.EpsilonMin,
			e.Epsilon*math.Exp(-e.DecayRate*steps))
	}

	e.Epsilon = floatutils.Clip(e.Epsilon, e.EpsilonMin, e.EpsilonMax)
}
