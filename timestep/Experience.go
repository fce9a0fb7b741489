package timestep

import "fmt"

// State is everything available to the policy and value function at
// decision time: the current observation and the non-cash allocation
// held before acting.
type State struct {
	Observation Observation
	Previous    []float64
}

// NewState returns a new State
func NewState(o Observation, previous []float64) State {
	return State{Observation: o, Previous: previous}
}

// Experience is a single stored transition. Actions are non-cash
// allocations. PreviousIndex is the portfolio vector memory index of
// the allocation held before the action was taken.
//
// Experiences are created once and never mutated afterwards.
type Experience struct {
	State         State
	Action        []float64
	Reward        float64
	Next          State
	PreviousIndex int
}

// NewExperience creates and returns a new Experience
func NewExperience(s State, action []float64, reward float64, next State,
	previousIndex int) Experience {
	return Experience{
		State:         s,
		Action:        action,
		Reward:        reward,
		Next:          next,
		PreviousIndex: previousIndex,
	}
}

func (e Experience) String() string {
	str := "Experience | Reward: %.4f  |  Previous Index: %d  |  Action: %v"
	return fmt.Sprintf(str, e.Reward, e.PreviousIndex, e.Action)
}
