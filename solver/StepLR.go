package solver

import (
	"fmt"
	"math"
)

// StepLR decays the learning rate of a Solver by gamma every stepSize
// calls to Step
type StepLR struct {
	solver   *Solver
	base     float64
	stepSize int
	gamma    float64
	steps    int
}

// NewStepLR returns a new StepLR schedule for the argument Solver,
// starting at the Solver's configured learning rate
func NewStepLR(s *Solver, stepSize int, gamma float64) (*StepLR, error) {
	if stepSize < 1 {
		return nil, fmt.Errorf("newStepLR: step size must be positive (%d)",
			stepSize)
	}
	if gamma <= 0 {
		return nil, fmt.Errorf("newStepLR: gamma must be positive (%v)",
			gamma)
	}
	return &StepLR{
		solver:   s,
		base:     s.Config.LearnRate(),
		stepSize: stepSize,
		gamma:    gamma,
	}, nil
}

// Step advances the schedule by one step
func (s *StepLR) Step() {
	s.steps++
	if s.steps%s.stepSize == 0 {
		s.solver.SetLearnRate(s.LearnRate())
	}
}

// LearnRate returns the current learning rate of the schedule
func (s *StepLR) LearnRate() float64 {
	return s.base * math.Pow(s.gamma, float64(s.steps/s.stepSize))
}

// Steps returns the number of calls to Step so far
func (s *StepLR) Steps() int {
	return s.steps
}
