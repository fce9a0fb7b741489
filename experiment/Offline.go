package experiment

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/ddpgportfolio/agent"
	"github.com/samuelfneumann/ddpgportfolio/experiment/tracker"
	"github.com/samuelfneumann/ddpgportfolio/timestep"
	"gonum.org/v1/gonum/stat"
)

// Offline is an Experiment that fills the agent's replay buffer once,
// trains the agent on it and then backtests the greedy policy over the
// dataset.
type Offline struct {
	data       agent.Dataset
	portfolio  agent.Portfolio
	agent      agent.Agent
	episodes   int
	iterations int
	trackers   []tracker.Tracker

	// Progress, if set, is called after pre-training and after every
	// episode
	Progress func()
}

// NewOffline creates and returns a new offline experiment that trains
// a for episodes episodes of iterations updates each
func NewOffline(data agent.Dataset, p agent.Portfolio, a agent.Agent,
	episodes, iterations int, t ...tracker.Tracker) *Offline {
	return &Offline{
		data:       data,
		portfolio:  p,
		agent:      a,
		episodes:   episodes,
		iterations: iterations,
		trackers:   t,
	}
}

// Register registers a tracker.Tracker with an Experiment so that
// episode statistics generated during the experiment can be tracked
// and saved
func (o *Offline) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// Agent returns the agent trained by the experiment
func (o *Offline) Agent() agent.Agent {
	return o.agent
}

// Run pre-trains the agent, trains it one episode at a time and
// backtests the result
func (o *Offline) Run() (Backtest, error) {
	if err := o.agent.PreTrain(); err != nil {
		return Backtest{}, fmt.Errorf("run: %w", err)
	}
	o.progress()

	for ep := 0; ep < o.episodes; ep++ {
		stats, err := o.agent.Train(1, o.iterations)
		if err != nil {
			return Backtest{}, fmt.Errorf("run: %w", err)
		}
		for _, s := range stats {
			if err := o.track(s); err != nil {
				return Backtest{}, fmt.Errorf("run: %w", err)
			}
		}
		o.progress()
	}

	return RunBacktest(o.agent, o.data, o.portfolio)
}

// Save saves all the data cached by the Trackers
func (o *Offline) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// track sends the statistics of an episode to each tracker
func (o *Offline) track(s tracker.EpisodeStats) error {
	for _, t := range o.trackers {
		if err := t.Track(s); err != nil {
			return err
		}
	}
	return nil
}

func (o *Offline) progress() {
	if o.Progress != nil {
		o.Progress()
	}
}

// Backtest summarises a walk of the greedy policy over a dataset
type Backtest struct {
	LogReturns  []float64 // Reward of each rebalancing
	FinalValue  float64   // Portfolio value, starting from 1
	Sharpe      float64   // Mean over standard deviation of LogReturns
	MaxDrawdown float64   // Largest relative fall from a running peak
}

// RunBacktest walks the samples of data in order, rebalancing into the
// allocation the agent selects in evaluation mode. The portfolio starts
// fully in cash, and each allocation becomes the previous allocation of
// the next sample. The agent's mode is restored afterwards.
func RunBacktest(a agent.Agent, data agent.Dataset,
	p agent.Portfolio) (Backtest, error) {
	if !a.IsEval() {
		a.Eval()
		defer a.Explore()
	}

	prev := make([]float64, p.NonCashAssets())
	value, peak := 1.0, 1.0
	result := Backtest{LogReturns: make([]float64, 0, data.Len())}

	for i := 0; i < data.Len(); i++ {
		obs, _, err := data.At(i)
		if err != nil {
			return Backtest{}, fmt.Errorf("runBacktest: %w", err)
		}
		next, _, err := data.At(i + 1)
		if err != nil {
			return Backtest{}, fmt.Errorf("runBacktest: %w", err)
		}

		action := a.SelectAction(timestep.NewState(obs, prev))
		reward := p.Reward(action, next.RelativePrices(), prev)
		result.LogReturns = append(result.LogReturns, reward)

		value *= math.Exp(reward)
		peak = math.Max(peak, value)
		result.MaxDrawdown = math.Max(result.MaxDrawdown, 1-value/peak)
		prev = action
	}

	result.FinalValue = value
	if len(result.LogReturns) > 1 {
		mean, std := stat.MeanStdDev(result.LogReturns, nil)
		if std > 0 {
			result.Sharpe = mean / std
		}
	}
	return result, nil
}
