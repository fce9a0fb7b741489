package ddpg

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/ddpgportfolio/agent"
	"github.com/samuelfneumann/ddpgportfolio/dataset"
	"github.com/samuelfneumann/ddpgportfolio/experiment/tracker"
	"github.com/samuelfneumann/ddpgportfolio/expreplay"
	"github.com/samuelfneumann/ddpgportfolio/memory"
	"github.com/samuelfneumann/ddpgportfolio/network"
	"github.com/samuelfneumann/ddpgportfolio/portfolio"
	"github.com/samuelfneumann/ddpgportfolio/solver"
	"github.com/samuelfneumann/ddpgportfolio/timestep"
	"github.com/samuelfneumann/ddpgportfolio/utils/floatutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	G "gorgonia.org/gorgonia"
)

const (
	testAssets  = 2 // Non-cash
	testPeriods = 61
	testWindow  = 3
	testBatch   = 4
)

// testConfig returns a small configuration. Weight decay is disabled
// so that a zero gradient leaves the weights untouched.
func testConfig(t *testing.T) Config {
	c := DefaultConfig()
	c.BatchSize = testBatch
	c.ActorLayers = []int{8}
	c.ActorBiases = []bool{true}
	c.ActorActivations = []*network.Activation{network.ReLU()}
	c.CriticLayers = []int{8}
	c.CriticBiases = []bool{true}
	c.CriticActivations = []*network.Activation{network.ReLU()}
	c.WarmupSteps = 20

	var err error
	c.ActorSolver, err = solver.NewDefaultAdam(1e-3, 0, 1)
	require.NoError(t, err)
	c.CriticSolver, err = solver.NewDefaultAdam(1e-3, 0, 1)
	require.NoError(t, err)
	return c
}

func newTestData(t *testing.T) *dataset.Windows {
	bars := dataset.Synthetic(testAssets, testPeriods, 7)
	closes := make([][]float64, testAssets)
	highs := make([][]float64, testAssets)
	lows := make([][]float64, testAssets)
	for a, series := range bars {
		for _, b := range series {
			closes[a] = append(closes[a], b.Close)
			highs[a] = append(highs[a], b.High)
			lows[a] = append(lows[a], b.Low)
		}
	}

	w, err := dataset.NewWindows(closes, highs, lows, testWindow)
	require.NoError(t, err)
	require.Equal(t, 10, w.Len())
	return w
}

type testAgent struct {
	*DDPG
	data    *dataset.Windows
	replay  *expreplay.Prioritized
	pvm     *memory.PortfolioVectorMemory
	history *tracker.History
}

func newTestAgent(t *testing.T, c Config) testAgent {
	data := newTestData(t)
	p, err := portfolio.New([]string{"A", "B"}, portfolio.DefaultCommission)
	require.NoError(t, err)

	replay, err := expreplay.New(c.Replay, 1)
	require.NoError(t, err)
	pvm, err := memory.New(data.Periods(), p.NonCashAssets())
	require.NoError(t, err)
	history := tracker.NewHistory("")

	d, err := New(c, data, p, replay, pvm, history, zerolog.Nop(), 1)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	return testAgent{DDPG: d, data: data, replay: replay, pvm: pvm,
		history: history}
}

// snapshot copies the current values of nodes
func snapshot(nodes G.Nodes) [][]float64 {
	out := make([][]float64, len(nodes))
	for i, n := range nodes {
		v := n.Value().Data().([]float64)
		out[i] = append([]float64(nil), v...)
	}
	return out
}

// recordingReplay calls onSample with every batch sampled from the
// wrapped buffer
type recordingReplay struct {
	agent.PriorityReplayer
	onSample func(batch []timestep.Experience)
}

func (r *recordingReplay) Sample(n int) ([]timestep.Experience, []int,
	[]float64, error) {
	batch, indices, weights, err := r.PriorityReplayer.Sample(n)
	if err == nil && r.onSample != nil {
		r.onSample(batch)
	}
	return batch, indices, weights, err
}

// learnRate returns the learning rate held by the gorgonia Adam solver
func learnRate(t *testing.T, s *solver.Solver) float64 {
	t.Helper()
	adam, ok := s.Solver.(*G.AdamSolver)
	require.True(t, ok, "solver is %T", s.Solver)
	return reflect.ValueOf(adam).Elem().FieldByName("eta").Float()
}

func requireOnSimplex(t *testing.T, nonCash []float64) {
	t.Helper()
	require.Len(t, nonCash, testAssets)
	require.NoError(t, floatutils.OnSimplex(floatutils.WithCash(nonCash)))
}

func TestNew(t *testing.T) {
	a := newTestAgent(t, testConfig(t))
	assert.Equal(t, 3, a.assets)
	assert.Equal(t, dataset.Features*testAssets*testWindow, a.obsSize)

	// Every copy of the networks starts from the online weights
	assert.Equal(t, snapshot(a.actor.policy.Learnables()),
		snapshot(a.behaviour.policy.Learnables()))
	assert.Equal(t, snapshot(a.actor.policy.Learnables()),
		snapshot(a.target.policy.Learnables()))
	assert.Equal(t, snapshot(a.critic.net.Learnables()),
		snapshot(a.target.critic.Learnables()))
}

func TestNewErrors(t *testing.T) {
	data := newTestData(t)
	p, err := portfolio.New([]string{"A", "B"}, 0)
	require.NoError(t, err)
	pvm, err := memory.New(data.Periods(), 2)
	require.NoError(t, err)

	c := testConfig(t)
	c.Replay.Capacity = 10
	replay, err := expreplay.New(c.Replay, 1)
	require.NoError(t, err)
	_, err = New(c, data, p, replay, pvm, nil, zerolog.Nop(), 1)
	assert.Error(t, err, "replay too small")

	c = testConfig(t)
	replay, err = expreplay.New(c.Replay, 1)
	require.NoError(t, err)
	wrong, err := portfolio.New([]string{"A", "B", "C"}, 0)
	require.NoError(t, err)
	_, err = New(c, data, wrong, replay, pvm, nil, zerolog.Nop(), 1)
	assert.Error(t, err, "asset mismatch")

	c.EpsilonMin = 0.6
	_, err = New(c, data, p, replay, pvm, nil, zerolog.Nop(), 1)
	assert.Error(t, err, "invalid config")
}

func TestTrainBeforePreTrain(t *testing.T) {
	a := newTestAgent(t, testConfig(t))
	_, err := a.Train(1, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyReplay))
}

func TestWarmUpCriticSkipsOnSmallBuffer(t *testing.T) {
	a := newTestAgent(t, testConfig(t))
	before := snapshot(a.critic.net.Learnables())
	require.NoError(t, a.WarmUpCritic(5))
	assert.Equal(t, before, snapshot(a.critic.net.Learnables()))
}

func TestPreTrain(t *testing.T) {
	a := newTestAgent(t, testConfig(t))
	require.NoError(t, a.PreTrain())

	n := a.data.Len() + dataset.Lookahead
	assert.Equal(t, 58, n)
	assert.Equal(t, n, a.replay.Len())

	// Warm-up draws are counted by the shared exploration state
	assert.Equal(t, 20, a.Exploration().EpisodeCount)

	batch, _, _, err := a.replay.Sample(n)
	require.NoError(t, err)
	for _, e := range batch {
		requireOnSimplex(t, e.Action)
		assert.Equal(t, e.Action, e.Next.Previous)
		assert.False(t, math.IsNaN(e.Reward))

		// The PVM is all cash until training writes to it
		assert.Equal(t, []float64{0, 0}, e.State.Previous)
	}
}

func TestPreTrainWithCriticWarmUp(t *testing.T) {
	c := testConfig(t)
	c.CriticWarmupIterations = 3
	c.NormalizeRewards = true
	a := newTestAgent(t, c)

	before := snapshot(a.critic.net.Learnables())
	require.NoError(t, a.PreTrain())
	assert.NotEqual(t, before, snapshot(a.critic.net.Learnables()))
	assert.Equal(t, 58, a.normalizer.Count())
}

func TestZeroImportanceWeights(t *testing.T) {
	a := newTestAgent(t, testConfig(t))
	require.NoError(t, a.PreTrain())

	batch, _, _, err := a.replay.Sample(testBatch)
	require.NoError(t, err)
	zeros := make([]float64, testBatch)

	critic := snapshot(a.critic.net.Learnables())
	td, loss, err := a.TrainCritic(batch, zeros)
	require.NoError(t, err)
	assert.Len(t, td, testBatch)
	assert.Equal(t, 0.0, math.Abs(loss))
	assert.Equal(t, critic, snapshot(a.critic.net.Learnables()))

	actor := snapshot(a.actor.policy.Learnables())
	actions, loss, err := a.TrainActor(batch, zeros)
	require.NoError(t, err)
	assert.Len(t, actions, testBatch)
	assert.Equal(t, 0.0, math.Abs(loss))
	assert.Equal(t, actor, snapshot(a.actor.policy.Learnables()))
}

func TestTrainStepsUpdateWeights(t *testing.T) {
	a := newTestAgent(t, testConfig(t))
	require.NoError(t, a.PreTrain())

	batch, _, weights, err := a.replay.Sample(testBatch)
	require.NoError(t, err)

	critic := snapshot(a.critic.net.Learnables())
	td, loss, err := a.TrainCritic(batch, weights)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, loss, 0.0)
	assert.NotEqual(t, critic, snapshot(a.critic.net.Learnables()))

	// With a reward-over-batch target the TD error is r/B - Q, where Q
	// is the critic's estimate before the update
	q, err := network.Floats(a.critic.qVal)
	require.NoError(t, err)
	require.Len(t, q, testBatch)
	for i, e := range batch {
		require.False(t, math.IsNaN(td[i]))
		assert.InDelta(t, e.Reward/testBatch-q[i], td[i], 1e-9)
	}
	sq := make([]float64, testBatch)
	floats.MulTo(sq, td, td)
	assert.InDelta(t, floats.Dot(weights, sq)/testBatch, loss, 1e-9)

	actions, _, err := a.TrainActor(batch, weights)
	require.NoError(t, err)
	for _, action := range actions {
		requireOnSimplex(t, action)
	}
	assert.Equal(t, snapshot(a.actor.policy.Learnables()),
		snapshot(a.behaviour.policy.Learnables()))

	// The critic copy inside the actor graph follows the online critic
	assert.Equal(t, snapshot(a.critic.net.Learnables()),
		snapshot(a.actor.critic.Learnables()))
	assert.Greater(t, a.LastEntropy(), 0.0)
	assert.LessOrEqual(t, a.LastEntropy(), math.Log(3)+1e-6)
}

func TestTrainBatchSize(t *testing.T) {
	a := newTestAgent(t, testConfig(t))
	require.NoError(t, a.PreTrain())

	batch, _, weights, err := a.replay.Sample(testBatch)
	require.NoError(t, err)

	_, _, err = a.TrainCritic(batch[:2], weights[:2])
	assert.True(t, errors.Is(err, ErrBatchSize))
	_, _, err = a.TrainCritic(batch, weights[:2])
	assert.True(t, errors.Is(err, ErrBatchSize))
	_, _, err = a.TrainActor(batch[:3], weights)
	assert.True(t, errors.Is(err, ErrBatchSize))
}

func TestActorLoss(t *testing.T) {
	// Non-uniform importance-sampling weights separate the two forms
	weights := []float64{1, 0.25, 0.5, 0.75}

	tests := map[string]struct {
		perSample bool
		want      func(q []float64) float64
	}{
		"MeanWeight": {
			perSample: false,
			want: func(q []float64) float64 {
				return -stat.Mean(q, nil) * stat.Mean(weights, nil)
			},
		},
		"PerSample": {
			perSample: true,
			want: func(q []float64) float64 {
				return -floats.Dot(weights, q) / testBatch
			},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c := testConfig(t)
			c.ActorPerSampleWeights = test.perSample
			a := newTestAgent(t, c)
			require.NoError(t, a.PreTrain())

			batch, _, _, err := a.replay.Sample(testBatch)
			require.NoError(t, err)
			_, loss, err := a.TrainActor(batch, weights)
			require.NoError(t, err)

			q, err := network.Floats(a.actor.qVal)
			require.NoError(t, err)
			require.Len(t, q, testBatch)
			assert.InDelta(t, test.want(q), loss, 1e-9)
		})
	}
}

func TestTrainWritesActionsToPVM(t *testing.T) {
	c := testConfig(t)
	data := newTestData(t)
	p, err := portfolio.New([]string{"A", "B"}, portfolio.DefaultCommission)
	require.NoError(t, err)
	replay, err := expreplay.New(c.Replay, 1)
	require.NoError(t, err)
	pvm, err := memory.New(data.Periods(), p.NonCashAssets())
	require.NoError(t, err)

	recorder := &recordingReplay{PriorityReplayer: replay}
	d, err := New(c, data, p, recorder, pvm, nil, zerolog.Nop(), 1)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.PreTrain())

	// The batch is sampled before the actor update, so the behaviour
	// policy still holds the weights the actor predicts with
	want := make(map[int][]float64)
	recorder.onSample = func(batch []timestep.Experience) {
		for _, e := range batch {
			want[e.PreviousIndex+1] = d.Act(e.State, false, Hybrid)
		}
	}

	_, err = d.Train(1, 1)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	for idx, action := range want {
		got, err := pvm.Get(idx)
		require.NoError(t, err)
		assert.InDeltaSlice(t, action, got, 1e-9, "pvm index %d", idx)
		assert.NotEqual(t, []float64{0, 0}, got)
	}
}

func TestTrainStepsLearnRate(t *testing.T) {
	c := testConfig(t)
	c.LRStepSize = 2
	c.LRGamma = 0.5
	a := newTestAgent(t, c)
	require.NoError(t, a.PreTrain())

	assert.InDelta(t, 1e-3, learnRate(t, a.criticSolver), 1e-15)
	assert.InDelta(t, 1e-3, learnRate(t, a.actorSolver), 1e-15)

	_, err := a.Train(1, 4)
	require.NoError(t, err)

	// Two decays of 0.5 reach the gorgonia solvers
	assert.InDelta(t, 2.5e-4, a.criticLR.LearnRate(), 1e-15)
	assert.InDelta(t, 2.5e-4, learnRate(t, a.criticSolver), 1e-15)
	assert.InDelta(t, 2.5e-4, learnRate(t, a.actorSolver), 1e-15)

	// The configured solvers are untouched
	assert.Equal(t, 1e-3, c.CriticSolver.LearnRate())
	assert.InDelta(t, 1e-3, learnRate(t, c.CriticSolver), 1e-15)
}

func TestUpdateTargetNetworks(t *testing.T) {
	c := testConfig(t)
	c.Tau = 1.0
	a := newTestAgent(t, c)
	require.NoError(t, a.PreTrain())

	batch, _, weights, err := a.replay.Sample(testBatch)
	require.NoError(t, err)
	_, _, err = a.TrainCritic(batch, weights)
	require.NoError(t, err)
	_, _, err = a.TrainActor(batch, weights)
	require.NoError(t, err)

	require.NotEqual(t, snapshot(a.critic.net.Learnables()),
		snapshot(a.target.critic.Learnables()))
	require.NoError(t, a.UpdateTargetNetworks())
	assert.Equal(t, snapshot(a.critic.net.Learnables()),
		snapshot(a.target.critic.Learnables()))
	assert.Equal(t, snapshot(a.actor.policy.Learnables()),
		snapshot(a.target.policy.Learnables()))
}

func TestTrainEndToEnd(t *testing.T) {
	a := newTestAgent(t, testConfig(t))
	require.NoError(t, a.PreTrain())

	stats, err := a.Train(2, 3)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, stats, a.history.Data())

	for i, s := range stats {
		assert.Equal(t, i, s.Episode)
		assert.False(t, math.IsNaN(s.ActorLoss))
		assert.False(t, math.IsNaN(s.CriticLoss))
		assert.False(t, math.IsNaN(s.Reward))
		assert.Greater(t, s.Entropy, 0.0)
	}
	assert.Equal(t, 6, a.criticLR.Steps())
	assert.Equal(t, 6, a.actorLR.Steps())

	// Training writes valid allocations into the PVM
	for i := 0; i < a.pvm.Capacity(); i++ {
		prev, err := a.pvm.Get(i)
		require.NoError(t, err)
		requireOnSimplex(t, prev)
	}

	// Evaluation is deterministic
	obs, prevIndex, err := a.data.At(0)
	require.NoError(t, err)
	prev, err := a.pvm.Get(prevIndex)
	require.NoError(t, err)
	state := timestep.NewState(obs, prev)

	a.Eval()
	require.True(t, a.IsEval())
	first := a.SelectAction(state)
	requireOnSimplex(t, first)
	assert.Equal(t, first, a.SelectAction(state))

	a.Explore()
	require.False(t, a.IsEval())
	requireOnSimplex(t, a.SelectAction(state))

	// Episode numbers continue across calls
	stats, err = a.Train(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats[0].Episode)
}

func TestTrainAllOptions(t *testing.T) {
	c := testConfig(t)
	c.TDTarget = Bootstrapped
	c.SoftUpdateTargets = true
	c.ActorCashReconstruction = true
	c.EntropyCoef = 0.01
	c.ActorGradClip = 1.0
	c.NormalizeRewards = true
	c.NormalizeBatchRewards = true
	c.CriticWarmupIterations = 2
	c.ExplorationMode = Greedy
	c.PreTrainMode = OU
	a := newTestAgent(t, c)

	target := snapshot(a.target.critic.Learnables())
	require.NoError(t, a.PreTrain())
	stats, err := a.Train(2, 2)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	for _, s := range stats {
		assert.False(t, math.IsNaN(s.ActorLoss))
		assert.False(t, math.IsNaN(s.CriticLoss))
	}
	assert.NotEqual(t, target, snapshot(a.target.critic.Learnables()))
}

func TestConfigJSON(t *testing.T) {
	var c Config
	data := []byte(`{"BatchSize": 8, "TDTarget": "Bootstrapped",
		"ActorActivations": ["tanh", "tanh"],
		"CriticSolver": {"Type": "Adam", "Config": {"StepSize": 0.01,
			"Epsilon": 1e-8, "Beta1": 0.9, "Beta2": 0.999, "Batch": 1}}}`)
	require.NoError(t, json.Unmarshal(data, &c))

	assert.Equal(t, 8, c.BatchSize)
	assert.Equal(t, Bootstrapped, c.TDTarget)
	assert.Equal(t, "tanh", c.ActorActivations[0].String())
	assert.Equal(t, 0.01, c.CriticSolver.LearnRate())

	// Defaults are kept for missing fields
	assert.Equal(t, 0.9, c.Gamma)
	assert.Equal(t, 6000, c.WarmupSteps)
	assert.Equal(t, 1e-5, c.ActorSolver.LearnRate())
	assert.NoError(t, c.Validate())
}

func TestTypedConfig(t *testing.T) {
	var tc agent.TypedConfig
	data := []byte(`{"Type": "DDPG-MLP", "Config": {"BatchSize": 16}}`)
	require.NoError(t, json.Unmarshal(data, &tc))

	assert.Equal(t, agent.DDPGMLP, tc.Type)
	c, ok := tc.Config.(Config)
	require.True(t, ok)
	assert.Equal(t, 16, c.BatchSize)
	assert.Equal(t, 0.05, c.Tau)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := map[string]func(c *Config){
		"BatchSize":   func(c *Config) { c.BatchSize = 0 },
		"Layers":      func(c *Config) { c.ActorBiases = []bool{true} },
		"Gamma":       func(c *Config) { c.Gamma = 1.5 },
		"Tau":         func(c *Config) { c.Tau = -0.1 },
		"TDTarget":    func(c *Config) { c.TDTarget = "Monte-Carlo" },
		"Mode":        func(c *Config) { c.ExplorationMode = "boltzmann" },
		"EpsilonMax":  func(c *Config) { c.EpsilonMax = 0.4 },
		"SigmaMin":    func(c *Config) { c.OUSigmaMin = 0 },
		"SigmaDecay":  func(c *Config) { c.OUSigmaDecay = 1 },
		"Replay":      func(c *Config) { c.Replay.Capacity = 0 },
		"EntropyCoef": func(c *Config) { c.EntropyCoef = -1 },
		"LRStepSize":  func(c *Config) { c.LRStepSize = 0 },
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestCreateAgent(t *testing.T) {
	data := newTestData(t)
	p, err := portfolio.New([]string{"A", "B"}, portfolio.DefaultCommission)
	require.NoError(t, err)

	c := testConfig(t)
	a, err := c.CreateAgent(data, p, 3)
	require.NoError(t, err)
	assert.True(t, c.ValidAgent(a))
	assert.Equal(t, agent.DDPGMLP, c.Type())

	require.NoError(t, a.PreTrain())
	stats, err := a.Train(1, 1)
	require.NoError(t, err)
	assert.Len(t, stats, 1)
}
