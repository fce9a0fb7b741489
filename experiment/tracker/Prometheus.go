package tracker

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exposes the statistics of the latest episode as gauges
// and counts episodes
type Prometheus struct {
	actorLoss  prometheus.Gauge
	criticLoss prometheus.Gauge
	reward     prometheus.Gauge
	entropy    prometheus.Gauge
	episodes   prometheus.Counter
}

// NewPrometheus creates the training metrics and registers them with
// reg
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ddpg",
			Name:      name,
			Help:      help,
		})
	}

	p := &Prometheus{
		actorLoss:  gauge("actor_loss", "Mean actor loss of the last episode."),
		criticLoss: gauge("critic_loss", "Mean critic loss of the last episode."),
		reward:     gauge("episode_reward", "Reward of the last episode."),
		entropy:    gauge("policy_entropy", "Policy entropy at the end of the last episode."),
		episodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ddpg",
			Name:      "episodes_total",
			Help:      "Number of finished training episodes.",
		}),
	}

	for _, c := range []prometheus.Collector{p.actorLoss, p.criticLoss,
		p.reward, p.entropy, p.episodes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("newPrometheus: %w", err)
		}
	}
	return p, nil
}

// Track implements the Tracker interface
func (p *Prometheus) Track(s EpisodeStats) error {
	p.actorLoss.Set(s.ActorLoss)
	p.criticLoss.Set(s.CriticLoss)
	p.reward.Set(s.Reward)
	p.entropy.Set(s.Entropy)
	p.episodes.Inc()
	return nil
}

// Save implements the Tracker interface
func (p *Prometheus) Save() error { return nil }
