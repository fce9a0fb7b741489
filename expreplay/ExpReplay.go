// Package expreplay implements a proportional prioritized experience
// replay buffer
package expreplay

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/ddpgportfolio/timestep"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config implements a specific configuration of a prioritized replay
// buffer
type Config struct {
	Capacity      int
	Alpha         float64 // Prioritisation exponent, 0 is uniform
	Beta          float64 // Initial importance-sampling exponent
	BetaIncrement float64 // Added to Beta after every Sample call
	Epsilon       float64 // Added to |priority| so no slot has zero mass
}

// DefaultConfig returns the default buffer configuration
func DefaultConfig() Config {
	return Config{
		Capacity:      20000,
		Alpha:         0.6,
		Beta:          0.4,
		BetaIncrement: 1e-3,
		Epsilon:       1e-5,
	}
}

// Validate returns an error if the configuration is invalid
func (c Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("validate: capacity must be positive (%d)",
			c.Capacity)
	}
	if c.Alpha < 0 {
		return fmt.Errorf("validate: alpha must be non-negative (%v)",
			c.Alpha)
	}
	if c.Beta < 0 || c.Beta > 1 {
		return fmt.Errorf("validate: beta must be in [0, 1] (%v)", c.Beta)
	}
	if c.BetaIncrement < 0 {
		return fmt.Errorf("validate: beta increment must be non-negative "+
			"(%v)", c.BetaIncrement)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("validate: epsilon must be positive (%v)",
			c.Epsilon)
	}
	return nil
}

// Create creates and returns the buffer with the specified Config.
func (c Config) Create(seed uint64) (*Prioritized, error) {
	return New(c, seed)
}

// Prioritized is a fixed-capacity ring buffer of experiences which
// samples each stored experience with probability proportional to its
// priority. Once full, the oldest experience is overwritten.
//
// Prioritized is not safe for concurrent use.
type Prioritized struct {
	config Config
	beta   float64

	data []timestep.Experience
	tree *sumTree
	next int
	size int

	maxPriority float64
	rng         distuv.Uniform
}

// New creates and returns a new Prioritized buffer
func New(c Config, seed uint64) (*Prioritized, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	return &Prioritized{
		config:      c,
		beta:        c.Beta,
		data:        make([]timestep.Experience, c.Capacity),
		tree:        newSumTree(c.Capacity),
		maxPriority: 1.0,
		rng:         distuv.Uniform{Min: 0, Max: 1, Src: rand.NewSource(seed)},
	}, nil
}

// priority transforms a raw priority signal into sampling mass
func (p *Prioritized) priority(signal float64) float64 {
	return math.Pow(math.Abs(signal)+p.config.Epsilon, p.config.Alpha)
}

// Add adds an experience to the buffer with a raw priority signal.
// A NaN signal is replaced by the largest priority seen so far.
func (p *Prioritized) Add(e timestep.Experience, signal float64) error {
	prio := p.maxPriority
	if !math.IsNaN(signal) && !math.IsInf(signal, 0) {
		prio = p.priority(signal)
	}

	p.data[p.next] = e
	p.tree.set(p.next, prio)
	p.maxPriority = math.Max(p.maxPriority, prio)

	p.next = (p.next + 1) % p.config.Capacity
	if p.size < p.config.Capacity {
		p.size++
	}
	return nil
}

// Sample samples a batch of experiences by splitting the total
// priority mass into batch equal segments and drawing one experience
// from each. The buffer indices and the importance-sampling weights,
// normalised so that the largest weight is 1, are returned with the
// experiences.
func (p *Prioritized) Sample(batch int) ([]timestep.Experience, []int,
	[]float64, error) {
	if p.size == 0 {
		return nil, nil, nil, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}
	if batch < 1 || p.size < batch {
		return nil, nil, nil, &ExpReplayError{
			Op: "sample",
			Err: fmt.Errorf("%w (have %d, want %d)", errInsufficientSamples,
				p.size, batch),
		}
	}

	total := p.tree.total()
	segment := total / float64(batch)

	experiences := make([]timestep.Experience, batch)
	indices := make([]int, batch)
	weights := make([]float64, batch)

	maxWeight := 0.0
	for i := 0; i < batch; i++ {
		value := segment * (float64(i) + p.rng.Rand())
		if value >= total {
			value = math.Nextafter(total, 0)
		}
		idx := p.tree.find(value)
		if idx >= p.size {
			// Rounding can land past the filled slots
			idx = p.size - 1
		}

		prob := p.tree.get(idx) / total
		weights[i] = math.Pow(float64(p.size)*prob, -p.beta)
		maxWeight = math.Max(maxWeight, weights[i])

		experiences[i] = p.data[idx]
		indices[i] = idx
	}

	for i := range weights {
		weights[i] /= maxWeight
	}
	p.beta = math.Min(1.0, p.beta+p.config.BetaIncrement)

	return experiences, indices, weights, nil
}

// UpdatePriorities sets the priorities of the argument buffer indices
// from their TD errors
func (p *Prioritized) UpdatePriorities(indices []int,
	tdErrors []float64) error {
	if len(indices) != len(tdErrors) {
		return &ExpReplayError{
			Op: "updatePriorities",
			Err: fmt.Errorf("%d indices but %d TD errors", len(indices),
				len(tdErrors)),
		}
	}

	for i, idx := range indices {
		if idx < 0 || idx >= p.size {
			return &ExpReplayError{
				Op:  "updatePriorities",
				Err: fmt.Errorf("%w: %d", errIndexOutOfRange, idx),
			}
		}
		prio := p.priority(tdErrors[i])
		p.tree.set(idx, prio)
		p.maxPriority = math.Max(p.maxPriority, prio)
	}
	return nil
}

// Len returns the number of experiences in the buffer
func (p *Prioritized) Len() int {
	return p.size
}

// Capacity returns the maximum number of experiences in the buffer
func (p *Prioritized) Capacity() int {
	return p.config.Capacity
}

// Beta returns the current importance-sampling exponent
func (p *Prioritized) Beta() float64 {
	return p.beta
}

// Priority returns the sampling mass of buffer index i
func (p *Prioritized) Priority(i int) (float64, error) {
	if i < 0 || i >= p.size {
		return 0, &ExpReplayError{
			Op:  "priority",
			Err: fmt.Errorf("%w: %d", errIndexOutOfRange, i),
		}
	}
	return p.tree.get(i), nil
}
