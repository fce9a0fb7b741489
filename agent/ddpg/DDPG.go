// Package ddpg implements the Deep Deterministic Policy Gradient
// algorithm for portfolio allocation. The actor maps an observation and
// the previously held allocation to a new allocation on the simplex;
// the critic scores (observation, previous allocation, allocation)
// triples.
package ddpg

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/ddpgportfolio/agent"
	"github.com/samuelfneumann/ddpgportfolio/dataset"
	"github.com/samuelfneumann/ddpgportfolio/experiment/tracker"
	"github.com/samuelfneumann/ddpgportfolio/network"
	"github.com/samuelfneumann/ddpgportfolio/solver"
	"github.com/samuelfneumann/ddpgportfolio/timestep"
	"github.com/samuelfneumann/ddpgportfolio/utils/floatutils"
	"github.com/samuelfneumann/ddpgportfolio/utils/statutils"
	G "gorgonia.org/gorgonia"
)

// DDPG implements the DDPG algorithm over a fixed market dataset. The
// replay buffer is filled once by PreTrain, after which Train runs
// episodes of updates sampled from the buffer.
//
// Four gorgonia graphs are kept: the critic training graph, the actor
// training graph (which holds a copy of the critic), a single-state
// behaviour policy and the target actor and critic. Weights are synced
// between them by copying values in place.
//
// DDPG is not safe for concurrent use.
type DDPG struct {
	config    Config
	batchSize int
	assets    int // Including cash
	obsSize   int

	data      agent.Dataset
	portfolio agent.Portfolio
	replay    agent.PriorityReplayer
	pvm       agent.VectorMemory
	tracker   tracker.Tracker
	log       zerolog.Logger

	critic    *criticGraph
	actor     *actorGraph
	behaviour *behaviourGraph
	target    *targetGraph

	criticSolver *solver.Solver
	actorSolver  *solver.Solver
	criticLR     *solver.StepLR
	actorLR      *solver.StepLR

	exploration *Exploration
	normalizer  *statutils.RewardNormalizer

	eval        bool
	episodes    int
	lastEntropy float64
}

// New creates and returns a new DDPG agent trained on data. The replay
// buffer must be able to hold data.Len() + dataset.Lookahead
// experiences, and the portfolio vector memory must have one slot per
// period of the dataset.
func New(c Config, data agent.Dataset, p agent.Portfolio,
	replay agent.PriorityReplayer, pvm agent.VectorMemory,
	t tracker.Tracker, log zerolog.Logger, seed uint64) (*DDPG, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: invalid config: %w", err)
	}
	if data.Len() < 1 {
		return nil, fmt.Errorf("new: dataset has no samples")
	}
	if c.BatchSize > data.Len()+dataset.Lookahead {
		return nil, fmt.Errorf("new: batch size %d exceeds the number of "+
			"experiences %d", c.BatchSize, data.Len()+dataset.Lookahead)
	}
	if r, ok := replay.(interface{ Capacity() int }); ok {
		if r.Capacity() < data.Len()+dataset.Lookahead {
			return nil, fmt.Errorf("new: replay capacity %d cannot hold %d "+
				"experiences", r.Capacity(), data.Len()+dataset.Lookahead)
		}
	}
	if t == nil {
		t = tracker.NewHistory("")
	}

	obs, _, err := data.At(0)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if obs.Assets != p.NonCashAssets() {
		return nil, fmt.Errorf("new: dataset has %d assets but the "+
			"portfolio has %d non-cash assets", obs.Assets,
			p.NonCashAssets())
	}
	assets := p.Assets()
	obsSize := obs.Len()

	critic, err := newCriticGraph(c, obsSize, assets)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	actor, err := newActorGraph(c, obsSize, assets, critic.net)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	behaviour, err := newBehaviourGraph(c, obsSize, assets)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	target, err := newTargetGraph(c, obsSize, assets)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	// All copies of the actor and critic start from the online weights
	if err := network.CopyNodes(behaviour.policy.Learnables(),
		actor.policy.Learnables()); err != nil {
		return nil, fmt.Errorf("new: could not sync behaviour policy: %w",
			err)
	}
	if err := network.CopyNodes(target.policy.Learnables(),
		actor.policy.Learnables()); err != nil {
		return nil, fmt.Errorf("new: could not sync target actor: %w", err)
	}
	if err := network.CopyNodes(target.critic.Learnables(),
		critic.net.Learnables()); err != nil {
		return nil, fmt.Errorf("new: could not sync target critic: %w", err)
	}

	// Optimizer state is never shared between agents built from the
	// same Config
	criticSolver := c.CriticSolver.Clone()
	actorSolver := c.ActorSolver.Clone()
	criticLR, err := solver.NewStepLR(criticSolver, c.LRStepSize, c.LRGamma)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	actorLR, err := solver.NewStepLR(actorSolver, c.LRStepSize, c.LRGamma)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	exploration, err := NewExploration(assets, c, seed)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	return &DDPG{
		config:       c,
		batchSize:    c.BatchSize,
		assets:       assets,
		obsSize:      obsSize,
		data:         data,
		portfolio:    p,
		replay:       replay,
		pvm:          pvm,
		tracker:      t,
		log:          log.With().Str("component", "ddpg").Logger(),
		critic:       critic,
		actor:        actor,
		behaviour:    behaviour,
		target:       target,
		criticSolver: criticSolver,
		actorSolver:  actorSolver,
		criticLR:     criticLR,
		actorLR:      actorLR,
		exploration:  exploration,
		normalizer:   statutils.NewRewardNormalizer(),
	}, nil
}

// Act returns the non-cash allocation selected in state s. The
// behaviour policy computes the logits, and the exploration state
// perturbs them according to mode if explore is true.
func (d *DDPG) Act(s timestep.State, explore bool, mode Mode) []float64 {
	if err := network.SetNode(d.behaviour.obs, s.Observation.Data); err != nil {
		panic(fmt.Sprintf("act: could not set observation: %v", err))
	}
	if err := network.SetNode(d.behaviour.prev, s.Previous); err != nil {
		panic(fmt.Sprintf("act: could not set previous allocation: %v",
			err))
	}

	if err := d.behaviour.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("act: could not run behaviour policy: %v", err))
	}
	logits, err := network.Floats(d.behaviour.policy.logitsVal)
	d.behaviour.vm.Reset()
	if err != nil {
		panic(fmt.Sprintf("act: %v", err))
	}

	return d.exploration.Select(logits, explore, mode)
}

// SelectAction implements the agent.Policy interface. In evaluation
// mode the deterministic allocation is returned; otherwise the
// configured exploration mode is used.
func (d *DDPG) SelectAction(s timestep.State) []float64 {
	return d.Act(s, !d.eval, d.config.ExplorationMode)
}

// Eval sets the agent into evaluation mode
func (d *DDPG) Eval() { d.eval = true }

// Explore sets the agent into exploration mode
func (d *DDPG) Explore() { d.eval = false }

// IsEval returns whether the agent is in evaluation mode
func (d *DDPG) IsEval() bool { return d.eval }

// Exploration returns the exploration state of the agent
func (d *DDPG) Exploration() *Exploration { return d.exploration }

// LastEntropy returns the policy entropy computed by the most recent
// actor update
func (d *DDPG) LastEntropy() float64 { return d.lastEntropy }

// PreTrain fills the replay buffer with one experience per sample of
// the dataset, including the lookahead samples. Allocations are
// selected by the behaviour policy with the pre-training exploration
// mode, and the previous allocation of each state is read from the
// portfolio vector memory.
func (d *DDPG) PreTrain() error {
	d.exploration.Noise.Reset()
	n := d.data.Len()
	d.log.Info().Int("samples", n+dataset.Lookahead).Msg("pre-training")

	for i := 1; i <= n+dataset.Lookahead; i++ {
		obs, prevIndex, err := d.data.At(i - 1)
		if err != nil {
			return fmt.Errorf("preTrain: %w", err)
		}
		prev, err := d.pvm.Get(prevIndex)
		if err != nil {
			return fmt.Errorf("preTrain: %w", err)
		}
		state := timestep.NewState(obs, prev)
		action := d.Act(state, true, d.config.PreTrainMode)

		next, _, err := d.data.At(i)
		if err != nil {
			return fmt.Errorf("preTrain: %w", err)
		}
		reward := d.portfolio.Reward(action, next.RelativePrices(), prev)
		if d.config.NormalizeRewards {
			d.normalizer.Update(reward)
			reward = d.normalizer.Normalize(reward)
		}

		e := timestep.NewExperience(state, action, reward,
			timestep.NewState(next, action), prevIndex)
		if err := d.replay.Add(e, reward); err != nil {
			return fmt.Errorf("preTrain: %w", err)
		}
	}

	if d.replay.Len() != n+dataset.Lookahead {
		panic(fmt.Sprintf("preTrain: replay buffer holds %d experiences, "+
			"want %d", d.replay.Len(), n+dataset.Lookahead))
	}
	d.log.Info().Int("buffer", d.replay.Len()).Msg("pre-training finished")

	if d.config.CriticWarmupIterations > 0 {
		return d.WarmUpCritic(d.config.CriticWarmupIterations)
	}
	return nil
}

// WarmUpCritic performs iterations critic-only updates. If the replay
// buffer holds fewer experiences than a batch, it logs a warning and
// does nothing.
func (d *DDPG) WarmUpCritic(iterations int) error {
	if d.replay.Len() < d.batchSize {
		d.log.Warn().
			Int("buffer", d.replay.Len()).
			Int("batch", d.batchSize).
			Msg("not enough experiences to warm up critic, skipping")
		return nil
	}

	for i := 0; i < iterations; i++ {
		batch, indices, weights, err := d.replay.Sample(d.batchSize)
		if err != nil {
			return fmt.Errorf("warmUpCritic: %w", err)
		}
		td, _, err := d.TrainCritic(batch, weights)
		if err != nil {
			return fmt.Errorf("warmUpCritic: %w", err)
		}
		if err := d.replay.UpdatePriorities(indices, td); err != nil {
			return fmt.Errorf("warmUpCritic: %w", err)
		}
	}
	d.log.Info().Int("iterations", iterations).Msg("critic warm-up finished")
	return nil
}

// Train runs episodes episodes of iterations updates each. Every
// iteration samples a batch, updates the critic and the batch
// priorities, updates the actor and writes the actor's allocations to
// the portfolio vector memory. The statistics of each episode are sent
// to the tracker and returned.
func (d *DDPG) Train(episodes, iterations int) ([]tracker.EpisodeStats,
	error) {
	if d.replay.Len() == 0 {
		return nil, fmt.Errorf("train: %w", ErrEmptyReplay)
	}
	if iterations < 1 {
		return nil, fmt.Errorf("train: iterations must be positive (%d)",
			iterations)
	}

	stats := make([]tracker.EpisodeStats, 0, episodes)
	for ep := 0; ep < episodes; ep++ {
		var actorLoss, criticLoss, reward float64

		for it := 0; it < iterations; it++ {
			batch, indices, weights, err := d.replay.Sample(d.batchSize)
			if err != nil {
				return stats, fmt.Errorf("train: %w", err)
			}

			td, cLoss, err := d.TrainCritic(batch, weights)
			if err != nil {
				return stats, fmt.Errorf("train: %w", err)
			}
			if err := d.replay.UpdatePriorities(indices, td); err != nil {
				return stats, fmt.Errorf("train: %w", err)
			}

			actions, aLoss, err := d.TrainActor(batch, weights)
			if err != nil {
				return stats, fmt.Errorf("train: %w", err)
			}
			for i, e := range batch {
				if err := d.pvm.Update(actions[i], e.PreviousIndex+1); err != nil {
					panic(fmt.Sprintf("train: could not update portfolio "+
						"vector memory: %v", err))
				}
				reward += e.Reward
			}

			actorLoss += aLoss
			criticLoss += cLoss
			d.criticLR.Step()
			d.actorLR.Step()
		}

		s := tracker.EpisodeStats{
			Episode:    d.episodes,
			ActorLoss:  actorLoss / float64(iterations),
			CriticLoss: criticLoss / float64(iterations),
			Reward:     reward / float64(d.batchSize),
			Entropy:    d.lastEntropy,
		}
		d.episodes++
		stats = append(stats, s)

		if err := d.tracker.Track(s); err != nil {
			return stats, fmt.Errorf("train: %w", err)
		}
		if d.config.SoftUpdateTargets {
			if err := d.UpdateTargetNetworks(); err != nil {
				return stats, fmt.Errorf("train: %w", err)
			}
		}
	}
	return stats, nil
}

// checkBatch ensures a batch and its importance-sampling weights have
// the configured batch size
func (d *DDPG) checkBatch(batch []timestep.Experience,
	weights []float64) error {
	if len(batch) != d.batchSize {
		return fmt.Errorf("%w: batch has %d experiences, want %d",
			ErrBatchSize, len(batch), d.batchSize)
	}
	if len(weights) != d.batchSize {
		return fmt.Errorf("%w: %d importance-sampling weights, want %d",
			ErrBatchSize, len(weights), d.batchSize)
	}
	return nil
}

// TrainCritic performs one critic update on a batch weighted by its
// importance-sampling weights. The TD errors of the batch and the
// critic loss are returned.
func (d *DDPG) TrainCritic(batch []timestep.Experience,
	weights []float64) ([]float64, float64, error) {
	if err := d.checkBatch(batch, weights); err != nil {
		return nil, 0, fmt.Errorf("trainCritic: %w", err)
	}

	obs := make([]float64, 0, d.batchSize*d.obsSize)
	prev := make([]float64, 0, d.batchSize*d.assets)
	action := make([]float64, 0, d.batchSize*d.assets)
	rewards := make([]float64, d.batchSize)
	for i, e := range batch {
		obs = append(obs, e.State.Observation.Data...)
		prev = append(prev, floatutils.WithCash(e.State.Previous)...)
		action = append(action, floatutils.WithCash(e.Action)...)
		rewards[i] = e.Reward
	}
	if d.config.NormalizeBatchRewards {
		rewards = statutils.NormalizeBatch(rewards)
	}

	targets, err := d.targets(batch, rewards)
	if err != nil {
		return nil, 0, fmt.Errorf("trainCritic: %w", err)
	}

	c := d.critic
	for _, in := range []struct {
		node   *G.Node
		values []float64
	}{
		{c.obs, obs},
		{c.prev, prev},
		{c.action, action},
		{c.target, targets},
		{c.weights, weights},
	} {
		if err := network.SetNode(in.node, in.values); err != nil {
			return nil, 0, fmt.Errorf("trainCritic: %w", err)
		}
	}

	if err := c.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("trainCritic: could not run critic graph: %v", err))
	}
	if d.config.CriticGradClip > 0 {
		if _, err := network.ClipGradNorm(c.net.Learnables(),
			d.config.CriticGradClip); err != nil {
			panic(fmt.Sprintf("trainCritic: %v", err))
		}
	}
	if err := d.criticSolver.Step(c.net.Model()); err != nil {
		panic(fmt.Sprintf("trainCritic: could not step solver: %v", err))
	}

	td, err := network.Floats(c.tdVal)
	if err != nil {
		panic(fmt.Sprintf("trainCritic: %v", err))
	}
	loss, err := network.Scalar(c.lossVal)
	if err != nil {
		panic(fmt.Sprintf("trainCritic: %v", err))
	}
	c.vm.Reset()

	return td, loss, nil
}

// targets returns the critic's regression targets for a batch with
// the given rewards
func (d *DDPG) targets(batch []timestep.Experience,
	rewards []float64) ([]float64, error) {
	targets := make([]float64, len(rewards))

	if d.config.TDTarget == RewardOverBatch {
		for i, r := range rewards {
			targets[i] = r / float64(d.batchSize)
		}
		return targets, nil
	}

	obs := make([]float64, 0, d.batchSize*d.obsSize)
	prev := make([]float64, 0, d.batchSize*(d.assets-1))
	prevFull := make([]float64, 0, d.batchSize*d.assets)
	for _, e := range batch {
		obs = append(obs, e.Next.Observation.Data...)
		prev = append(prev, e.Next.Previous...)
		prevFull = append(prevFull, floatutils.WithCash(e.Next.Previous)...)
	}

	t := d.target
	if err := network.SetNode(t.obs, obs); err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}
	if err := network.SetNode(t.prev, prev); err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}
	if err := network.SetNode(t.prevFull, prevFull); err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}

	if err := t.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("targets: could not run target graph: %v", err))
	}
	next, err := network.Floats(t.critic.Output())
	t.vm.Reset()
	if err != nil {
		return nil, fmt.Errorf("targets: %w", err)
	}

	for i, r := range rewards {
		targets[i] = r + d.config.Gamma*next[i]
	}
	return targets, nil
}

// TrainActor performs one actor update on a batch weighted by its
// importance-sampling weights, then copies the actor into the behaviour
// policy. The non-cash allocations predicted for the batch before the
// update and the actor loss are returned.
func (d *DDPG) TrainActor(batch []timestep.Experience,
	weights []float64) ([][]float64, float64, error) {
	if err := d.checkBatch(batch, weights); err != nil {
		return nil, 0, fmt.Errorf("trainActor: %w", err)
	}

	a := d.actor
	if err := network.CopyNodes(a.critic.Learnables(),
		d.critic.net.Learnables()); err != nil {
		return nil, 0, fmt.Errorf("trainActor: could not sync critic: %w",
			err)
	}

	obs := make([]float64, 0, d.batchSize*d.obsSize)
	prev := make([]float64, 0, d.batchSize*(d.assets-1))
	prevFull := make([]float64, 0, d.batchSize*d.assets)
	for _, e := range batch {
		obs = append(obs, e.State.Observation.Data...)
		prev = append(prev, e.State.Previous...)
		prevFull = append(prevFull, floatutils.WithCash(e.State.Previous)...)
	}

	for _, in := range []struct {
		node   *G.Node
		values []float64
	}{
		{a.obs, obs},
		{a.prev, prev},
		{a.prevFull, prevFull},
		{a.weights, weights},
	} {
		if err := network.SetNode(in.node, in.values); err != nil {
			return nil, 0, fmt.Errorf("trainActor: %w", err)
		}
	}

	if err := a.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("trainActor: could not run actor graph: %v", err))
	}
	if d.config.ActorGradClip > 0 {
		if _, err := network.ClipGradNorm(a.policy.Learnables(),
			d.config.ActorGradClip); err != nil {
			panic(fmt.Sprintf("trainActor: %v", err))
		}
	}
	if err := d.actorSolver.Step(a.policy.Model()); err != nil {
		panic(fmt.Sprintf("trainActor: could not step solver: %v", err))
	}

	probs, err := network.Floats(a.policy.probsVal)
	if err != nil {
		panic(fmt.Sprintf("trainActor: %v", err))
	}
	loss, err := network.Scalar(a.lossVal)
	if err != nil {
		panic(fmt.Sprintf("trainActor: %v", err))
	}
	if d.lastEntropy, err = network.Scalar(a.entropyVal); err != nil {
		panic(fmt.Sprintf("trainActor: %v", err))
	}
	a.vm.Reset()

	if err := network.CopyNodes(d.behaviour.policy.Learnables(),
		a.policy.Learnables()); err != nil {
		return nil, 0, fmt.Errorf("trainActor: could not sync behaviour "+
			"policy: %w", err)
	}

	rows := floatutils.Rows(probs, d.assets)
	actions := make([][]float64, len(rows))
	for i, row := range rows {
		actions[i] = floatutils.NonCash(row)
	}
	return actions, loss, nil
}

// UpdateTargetNetworks moves the target actor and critic towards the
// online actor and critic by Tau
func (d *DDPG) UpdateTargetNetworks() error {
	if err := network.SoftUpdate(d.target.policy.Learnables(),
		d.actor.policy.Learnables(), d.config.Tau); err != nil {
		return fmt.Errorf("updateTargetNetworks: actor: %w", err)
	}
	if err := network.SoftUpdate(d.target.critic.Learnables(),
		d.critic.net.Learnables(), d.config.Tau); err != nil {
		return fmt.Errorf("updateTargetNetworks: critic: %w", err)
	}
	return nil
}

// Close releases the resources held by the agent's virtual machines
func (d *DDPG) Close() error {
	for _, vm := range []G.VM{d.critic.vm, d.actor.vm, d.behaviour.vm,
		d.target.vm} {
		if err := vm.Close(); err != nil {
			return fmt.Errorf("close: %w", err)
		}
	}
	return nil
}
