package solver

import G "gorgonia.org/gorgonia"

// AdamConfig describes a configuration of the Adam solver
type AdamConfig struct {
	StepSize    float64
	WeightDecay float64 // L2 regularisation, 0 to disable
	Epsilon     float64 // Smoothing factor
	Beta1       float64
	Beta2       float64
	Batch       int
}

// NewDefaultAdam returns a new Adam Solver with default hyperparameters
func NewDefaultAdam(stepSize, weightDecay float64, batchSize int) (*Solver,
	error) {
	return NewAdam(stepSize, weightDecay, 1e-8, 0.9, 0.999, batchSize)
}

// NewAdam returns a new Adam Solver
func NewAdam(stepSize, weightDecay, epsilon, beta1, beta2 float64,
	batchSize int) (*Solver, error) {
	adam := AdamConfig{
		StepSize:    stepSize,
		WeightDecay: weightDecay,
		Epsilon:     epsilon,
		Beta1:       beta1,
		Beta2:       beta2,
		Batch:       batchSize,
	}

	return newSolver(Adam, adam)
}

// Create returns a new Gorgonia Adam Solver as described by the
// AdamConfig
func (a AdamConfig) Create() G.Solver {
	opts := []G.SolverOpt{
		G.WithLearnRate(a.StepSize),
		G.WithEps(a.Epsilon),
		G.WithBeta1(a.Beta1),
		G.WithBeta2(a.Beta2),
		G.WithBatchSize(float64(a.Batch)),
	}
	if a.WeightDecay > 0 {
		opts = append(opts, G.WithL2Reg(a.WeightDecay))
	}
	return G.NewAdamSolver(opts...)
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (a AdamConfig) ValidType(t Type) bool {
	return t == Adam
}

// LearnRate returns the initial learning rate
func (a AdamConfig) LearnRate() float64 {
	return a.StepSize
}
