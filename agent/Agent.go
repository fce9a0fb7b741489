// Package agent defines the agent interface and the interfaces of the
// collaborators that an agent trains against
package agent

import (
	"github.com/samuelfneumann/ddpgportfolio/experiment/tracker"
	"github.com/samuelfneumann/ddpgportfolio/timestep"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses allocations in each state. The Policy chooses which
// allocations are taken, and the Learner uses these to update the
// Policy.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// PreTrain fills the replay buffer by walking the dataset once
	PreTrain() error

	// Train runs episodes of iterations over the replay buffer and
	// returns the statistics of each episode
	Train(episodes, iterations int) ([]tracker.EpisodeStats, error)
}

// Policy represents a policy that an agent can have.
//
// For a given agent, the Policy and Learner should have pointers to the
// same weights so that any changes the learner makes to the weights are
// reflected in the allocations the Policy chooses.
type Policy interface {
	// SelectAction returns the non-cash allocation to hold in state s
	SelectAction(s timestep.State) []float64
	Eval()        // Set policy to evaluation mode
	Explore()     // Set policy to exploration mode
	IsEval() bool // Indicates if in evaluation mode
}

// Dataset provides market observations by sample index
type Dataset interface {
	// Len returns the number of samples
	Len() int

	// Periods returns the number of periods covered by the dataset,
	// which is also the number of portfolio vector memory slots needed
	Periods() int

	// At returns the observation of sample i and the portfolio vector
	// memory index of the allocation held before sample i
	At(i int) (timestep.Observation, int, error)
}

// Portfolio computes the reward of rebalancing into an allocation
type Portfolio interface {
	Assets() int        // Number of assets including cash
	NonCashAssets() int // Number of assets excluding cash

	// Reward returns the reward of moving from the previous non-cash
	// allocation to action when prices move by relativePrices
	Reward(action, relativePrices, previous []float64) float64
}

// PriorityReplayer is a prioritized experience replay buffer
type PriorityReplayer interface {
	Add(e timestep.Experience, priority float64) error

	// Sample returns a batch of experiences, their buffer indices and
	// their importance-sampling weights
	Sample(batch int) ([]timestep.Experience, []int, []float64, error)

	UpdatePriorities(indices []int, tdErrors []float64) error
	Len() int
}

// VectorMemory stores one non-cash allocation per period
type VectorMemory interface {
	Update(action []float64, index int) error
	Get(index int) ([]float64, error)
}
