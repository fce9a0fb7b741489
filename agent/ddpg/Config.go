package ddpg

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samuelfneumann/ddpgportfolio/agent"
	"github.com/samuelfneumann/ddpgportfolio/experiment/tracker"
	"github.com/samuelfneumann/ddpgportfolio/expreplay"
	"github.com/samuelfneumann/ddpgportfolio/initwfn"
	"github.com/samuelfneumann/ddpgportfolio/memory"
	"github.com/samuelfneumann/ddpgportfolio/network"
	"github.com/samuelfneumann/ddpgportfolio/solver"
)

func init() {
	agent.Register(agent.DDPGMLP, Config{})
}

// TDTarget is the way the critic's regression target is computed
type TDTarget string

const (
	// RewardOverBatch regresses the critic onto reward / batch size
	RewardOverBatch TDTarget = "RewardOverBatch"

	// Bootstrapped regresses the critic onto
	// reward + gamma * Q_target(s', mu_target(s'))
	Bootstrapped TDTarget = "Bootstrapped"
)

// Config implements a configuration for a DDPG agent whose actor and
// critic are MLPs
type Config struct {
	BatchSize int

	// Actor (policy) network
	ActorLayers      []int
	ActorBiases      []bool
	ActorActivations []*network.Activation

	// Critic (action-value) network
	CriticLayers      []int
	CriticBiases      []bool
	CriticActivations []*network.Activation

	InitWFn      *initwfn.InitWFn
	ActorSolver  *solver.Solver
	CriticSolver *solver.Solver

	// Both learning rates decay by LRGamma every LRStepSize updates
	LRStepSize int
	LRGamma    float64

	Gamma             float64
	Tau               float64
	TDTarget          TDTarget
	SoftUpdateTargets bool

	// Exploration
	ExplorationMode  Mode
	PreTrainMode     Mode
	EpsilonMax       float64
	EpsilonMin       float64
	EpsilonDecayRate float64
	WarmupSteps      int
	OUMu             float64
	OUTheta          float64
	OUSigma          float64
	OUSigmaMin       float64
	OUSigmaDecay     float64

	Replay expreplay.Config

	CriticWarmupIterations  int
	NormalizeRewards        bool
	NormalizeBatchRewards   bool
	CriticGradClip          float64 // <= 0 disables clipping
	ActorGradClip           float64 // <= 0 disables clipping
	EntropyCoef             float64
	ActorCashReconstruction bool

	// ActorPerSampleWeights weights each sample's Q-value by its
	// importance-sampling weight in the actor loss. Otherwise the loss
	// is the mean Q-value scaled by the mean weight.
	ActorPerSampleWeights bool
}

// DefaultConfig returns the default DDPG configuration
func DefaultConfig() Config {
	weights, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}
	actorSolver, err := solver.NewDefaultAdam(1e-5, 1e-5, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}
	criticSolver, err := solver.NewDefaultAdam(1e-5, 1e-5, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}

	return Config{
		BatchSize: 32,

		ActorLayers:      []int{64, 64},
		ActorBiases:      []bool{true, true},
		ActorActivations: []*network.Activation{network.ReLU(), network.ReLU()},

		CriticLayers:      []int{64, 64},
		CriticBiases:      []bool{true, true},
		CriticActivations: []*network.Activation{network.ReLU(), network.ReLU()},

		InitWFn:      weights,
		ActorSolver:  actorSolver,
		CriticSolver: criticSolver,

		LRStepSize: 100,
		LRGamma:    0.9,

		Gamma:    0.9,
		Tau:      0.05,
		TDTarget: RewardOverBatch,

		ExplorationMode:  Hybrid,
		PreTrainMode:     Hybrid,
		EpsilonMax:       1.0,
		EpsilonMin:       0.01,
		EpsilonDecayRate: 1e-5,
		WarmupSteps:      6000,
		OUMu:             0.0,
		OUTheta:          0.2,
		OUSigma:          0.5,
		OUSigmaMin:       0.05,
		OUSigmaDecay:     0.9999,

		Replay: expreplay.DefaultConfig(),

		CriticGradClip: 1.0,
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface. Fields
// missing from data keep their default values.
func (c *Config) UnmarshalJSON(data []byte) error {
	type config Config
	d := config(DefaultConfig())
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*c = Config(d)
	return nil
}

// Validate checks a Config to ensure it is a valid configuration
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive (%d)", c.BatchSize)
	}

	if len(c.ActorLayers) != len(c.ActorBiases) ||
		len(c.ActorLayers) != len(c.ActorActivations) {
		return fmt.Errorf("actor: number of layers (%d), biases (%d) and "+
			"activations (%d) differ", len(c.ActorLayers), len(c.ActorBiases),
			len(c.ActorActivations))
	}
	if len(c.CriticLayers) != len(c.CriticBiases) ||
		len(c.CriticLayers) != len(c.CriticActivations) {
		return fmt.Errorf("critic: number of layers (%d), biases (%d) and "+
			"activations (%d) differ", len(c.CriticLayers),
			len(c.CriticBiases), len(c.CriticActivations))
	}

	if c.InitWFn == nil {
		return fmt.Errorf("no weight initializer")
	}
	if c.ActorSolver == nil || c.CriticSolver == nil {
		return fmt.Errorf("actor and critic solvers must be set")
	}

	if c.LRStepSize < 1 {
		return fmt.Errorf("learning rate step size must be positive (%d)",
			c.LRStepSize)
	}
	if c.LRGamma <= 0 {
		return fmt.Errorf("learning rate decay must be positive (%v)",
			c.LRGamma)
	}

	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be in [0, 1] (%v)", c.Gamma)
	}
	if c.Tau < 0 || c.Tau > 1 {
		return fmt.Errorf("tau must be in [0, 1] (%v)", c.Tau)
	}
	if c.TDTarget != RewardOverBatch && c.TDTarget != Bootstrapped {
		return fmt.Errorf("unknown TD target %q", c.TDTarget)
	}

	if _, err := ParseMode(string(c.ExplorationMode)); err != nil {
		return err
	}
	if _, err := ParseMode(string(c.PreTrainMode)); err != nil {
		return err
	}
	if c.EpsilonMin < 0 || c.EpsilonMax > 1 || c.EpsilonMin > 0.5 ||
		c.EpsilonMax < 0.5 {
		return fmt.Errorf("epsilon bounds must satisfy 0 <= min (%v) <= "+
			"0.5 <= max (%v) <= 1", c.EpsilonMin, c.EpsilonMax)
	}
	if c.EpsilonDecayRate < 0 {
		return fmt.Errorf("epsilon decay rate must be non-negative (%v)",
			c.EpsilonDecayRate)
	}
	if c.WarmupSteps < 0 {
		return fmt.Errorf("warmup steps must be non-negative (%d)",
			c.WarmupSteps)
	}
	if c.OUSigma < 0 || c.OUSigmaMin <= 0 {
		return fmt.Errorf("OU sigma (%v) must be non-negative and its "+
			"floor (%v) positive", c.OUSigma, c.OUSigmaMin)
	}
	if c.OUSigmaDecay <= 0 || c.OUSigmaDecay >= 1 {
		return fmt.Errorf("OU sigma decay must be in (0, 1) (%v)",
			c.OUSigmaDecay)
	}

	if err := c.Replay.Validate(); err != nil {
		return err
	}

	if c.CriticWarmupIterations < 0 {
		return fmt.Errorf("critic warmup iterations must be non-negative "+
			"(%d)", c.CriticWarmupIterations)
	}
	if c.EntropyCoef < 0 {
		return fmt.Errorf("entropy coefficient must be non-negative (%v)",
			c.EntropyCoef)
	}

	return nil
}

// CreateAgent creates a DDPG agent with a fresh prioritized replay
// buffer, an all-cash portfolio vector memory and an in-memory history
// tracker
func (c Config) CreateAgent(data agent.Dataset, p agent.Portfolio,
	seed uint64) (agent.Agent, error) {
	replay, err := c.Replay.Create(seed)
	if err != nil {
		return nil, fmt.Errorf("createAgent: %w", err)
	}
	pvm, err := memory.New(data.Periods(), p.NonCashAssets())
	if err != nil {
		return nil, fmt.Errorf("createAgent: %w", err)
	}

	return New(c, data, p, replay, pvm, tracker.NewHistory(""), log.Logger,
		seed)
}

// ValidAgent returns true if the argument agent can be constructed
// from the Config
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*DDPG)
	return ok
}

// Type returns the type of agent that can be constructed from the
// Config
func (c Config) Type() agent.Type {
	return agent.DDPGMLP
}
