package tracker

import (
	"fmt"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog"
)

// Log writes one structured log line per episode, including the mean
// reward over a rolling window of recent episodes
type Log struct {
	log     zerolog.Logger
	window  int
	rewards *deque.Deque[float64]
	sum     float64
}

// NewLog returns a new Log tracker with a rolling window of the given
// size
func NewLog(log zerolog.Logger, window int) (*Log, error) {
	if window < 1 {
		return nil, fmt.Errorf("newLog: window must be positive (%d)",
			window)
	}
	return &Log{
		log:     log,
		window:  window,
		rewards: deque.New[float64](window),
	}, nil
}

// Track implements the Tracker interface
func (l *Log) Track(s EpisodeStats) error {
	l.rewards.PushBack(s.Reward)
	l.sum += s.Reward
	if l.rewards.Len() > l.window {
		l.sum -= l.rewards.PopFront()
	}

	l.log.Info().
		Int("episode", s.Episode).
		Float64("actor_loss", s.ActorLoss).
		Float64("critic_loss", s.CriticLoss).
		Float64("reward", s.Reward).
		Float64("entropy", s.Entropy).
		Float64("rolling_reward", l.RollingReward()).
		Msg("episode finished")
	return nil
}

// RollingReward returns the mean reward over the most recent episodes
func (l *Log) RollingReward() float64 {
	if l.rewards.Len() == 0 {
		return 0
	}
	return l.sum / float64(l.rewards.Len())
}

// Save implements the Tracker interface
func (l *Log) Save() error {
	l.log.Info().
		Float64("rolling_reward", l.RollingReward()).
		Msg("training finished")
	return nil
}
