// Package statutils implements running and batch statistics used to
// standardise rewards
package statutils

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RewardNormalizer standardises rewards using a running mean and
// (population) standard deviation computed with Welford's algorithm.
type RewardNormalizer struct {
	count int
	mean  float64
	m2    float64 // Sum of squared deviations from the mean
}

// NewRewardNormalizer returns a new RewardNormalizer with no
// observations
func NewRewardNormalizer() *RewardNormalizer {
	return &RewardNormalizer{}
}

// Update folds a single reward into the running statistics
func (r *RewardNormalizer) Update(reward float64) {
	r.count++
	delta := reward - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (reward - r.mean)
}

// Count returns the number of rewards seen
func (r *RewardNormalizer) Count() int {
	return r.count
}

// Stats returns the running mean and standard deviation. The standard
// deviation is +Inf when fewer than two rewards have been seen.
func (r *RewardNormalizer) Stats() (mean, std float64) {
	if r.count < 2 {
		return r.mean, math.Inf(1)
	}
	return r.mean, math.Sqrt(r.m2 / float64(r.count))
}

// Normalize standardises a reward with the current statistics. The
// reward is returned unchanged when the standard deviation is infinite
// or zero.
func (r *RewardNormalizer) Normalize(reward float64) float64 {
	mean, std := r.Stats()
	if math.IsInf(std, 1) || std == 0 {
		return reward
	}
	return (reward - mean) / std
}

// NormalizeBatch standardises a batch of rewards by the batch mean and
// sample standard deviation, returning a new slice.
func NormalizeBatch(rewards []float64) []float64 {
	out := make([]float64, len(rewards))
	if len(rewards) < 2 {
		copy(out, rewards)
		return out
	}
	mean, std := stat.MeanStdDev(rewards, nil)
	for i, r := range rewards {
		out[i] = (r - mean) / (std + 1e-5)
	}
	return out
}
