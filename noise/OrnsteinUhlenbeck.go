// Package noise implements temporally correlated exploration noise
package noise

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// OrnsteinUhlenbeck is a mean-reverting noise process. Each call to
// Sample moves the state towards mu with rate theta and adds Gaussian
// noise scaled by sigma. Sigma can be annealed towards a positive floor
// with DecaySigma; a sigma that starts below the floor stays where it
// is.
type OrnsteinUhlenbeck struct {
	mu       float64
	theta    float64
	sigma    float64
	sigmaMin float64
	decay    float64

	x      []float64
	normal distuv.Normal
}

// NewOrnsteinUhlenbeck returns a new OrnsteinUhlenbeck process of the
// given size with its state set to mu
func NewOrnsteinUhlenbeck(size int, mu, theta, sigma, sigmaMin,
	decay float64, seed uint64) (*OrnsteinUhlenbeck, error) {
	if size < 1 {
		return nil, fmt.Errorf("newOrnsteinUhlenbeck: size must be "+
			"positive (%d)", size)
	}
	if sigma < 0 {
		return nil, fmt.Errorf("newOrnsteinUhlenbeck: sigma must be "+
			"non-negative (%v)", sigma)
	}
	if sigmaMin <= 0 {
		return nil, fmt.Errorf("newOrnsteinUhlenbeck: sigmaMin must be "+
			"positive (%v)", sigmaMin)
	}
	if decay <= 0 || decay >= 1 {
		return nil, fmt.Errorf("newOrnsteinUhlenbeck: decay must be in "+
			"(0, 1) (%v)", decay)
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}

	ou := &OrnsteinUhlenbeck{
		mu:       mu,
		theta:    theta,
		sigma:    sigma,
		sigmaMin: sigmaMin,
		decay:    decay,
		x:        make([]float64, size),
		normal:   normal,
	}
	ou.Reset()
	return ou, nil
}

// Reset sets the state back to mu
func (o *OrnsteinUhlenbeck) Reset() {
	for i := range o.x {
		o.x[i] = o.mu
	}
}

// Sample advances the process by one step and returns a copy of the
// new state
func (o *OrnsteinUhlenbeck) Sample() []float64 {
	for i := range o.x {
		o.x[i] += o.theta*(o.mu-o.x[i]) + o.sigma*o.normal.Rand()
	}
	out := make([]float64, len(o.x))
	copy(out, o.x)
	return out
}

// DecaySigma moves sigma geometrically towards its floor. A sigma at
// or below the floor is left unchanged, so sigma never increases.
func (o *OrnsteinUhlenbeck) DecaySigma() {
	if o.sigma <= o.sigmaMin {
		return
	}
	o.sigma = o.sigmaMin + (o.sigma-o.sigmaMin)*o.decay
}

// Sigma returns the current noise scale
func (o *OrnsteinUhlenbeck) Sigma() float64 {
	return o.sigma
}

// State returns a copy of the current state of the process
func (o *OrnsteinUhlenbeck) State() []float64 {
	out := make([]float64, len(o.x))
	copy(out, o.x)
	return out
}

// Size returns the dimension of the process
func (o *OrnsteinUhlenbeck) Size() int {
	return len(o.x)
}
