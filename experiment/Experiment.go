// Package experiment implements functionality for running an experiment
package experiment

import (
	"fmt"

	"github.com/samuelfneumann/ddpgportfolio/agent"
	"github.com/samuelfneumann/ddpgportfolio/experiment/tracker"
)

// Interface Experiment outlines structs that can run experiments.
// Run trains the agent and then evaluates it. Every episode of
// training is sent to the registered trackers, and Save asks each of
// them to persist what they recorded.
type Experiment interface {
	Run() (Backtest, error)

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment
	Register(t tracker.Tracker)

	// Save all tracked data
	Save() error
}

type Type string

const (
	OfflineExp Type = "OfflineExperiment"
)

// Config represents a configuration of an experiment.
type Config struct {
	Type
	Episodes   int
	Iterations int
	AgentConf  agent.TypedConfig
}

// Validate returns an error if the configuration is invalid
func (c Config) Validate() error {
	if c.Type != OfflineExp {
		return fmt.Errorf("validate: no such experiment type %v", c.Type)
	}
	if c.Episodes < 0 {
		return fmt.Errorf("validate: episodes must be non-negative (%d)",
			c.Episodes)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("validate: iterations must be positive (%d)",
			c.Iterations)
	}
	if c.AgentConf.Config == nil {
		return fmt.Errorf("validate: no agent configuration")
	}
	if err := c.AgentConf.Validate(); err != nil {
		return fmt.Errorf("validate: agent: %w", err)
	}
	return nil
}

// CreateExp creates the experiment described by the Config together
// with its agent
func (c Config) CreateExp(data agent.Dataset, p agent.Portfolio,
	seed uint64, t ...tracker.Tracker) (Experiment, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: %w", err)
	}

	a, err := c.AgentConf.CreateAgent(data, p, seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create agent: %w", err)
	}

	switch c.Type {
	case OfflineExp:
		return NewOffline(data, p, a, c.Episodes, c.Iterations, t...), nil
	}

	return nil, fmt.Errorf("createExp: no such experiment type %v", c.Type)
}
