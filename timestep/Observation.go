// Package timestep implements the values exchanged between the dataset,
// the agent and the replay buffer at each step of a market simulation
package timestep

import (
	"fmt"
)

// Observation is a window of price features for the non-cash assets.
//
// Data is stored feature-major so that the value of feature f for asset
// a at window column t is Data[f*Assets*Window + a*Window + t]. Feature 0
// is the closing price normalised by the latest closing price in the
// window.
type Observation struct {
	Features int
	Assets   int
	Window   int
	Data     []float64
}

// NewObservation returns a new Observation, checking that the backing
// data has the correct size.
func NewObservation(features, assets, window int,
	data []float64) (Observation, error) {
	if features < 1 || assets < 1 || window < 2 {
		return Observation{}, fmt.Errorf("newObservation: invalid "+
			"dimensions (features=%d, assets=%d, window=%d)", features,
			assets, window)
	}
	if len(data) != features*assets*window {
		return Observation{}, fmt.Errorf("newObservation: invalid data "+
			"length \n\twant(%d) \n\thave(%d)", features*assets*window,
			len(data))
	}
	return Observation{
		Features: features,
		Assets:   assets,
		Window:   window,
		Data:     data,
	}, nil
}

// At returns feature f of asset a at window column t
func (o Observation) At(f, a, t int) float64 {
	return o.Data[f*o.Assets*o.Window+a*o.Window+t]
}

// Len returns the number of values in the flattened observation
func (o Observation) Len() int {
	return len(o.Data)
}

// RelativePrices returns the price relative vector of the last period
// in the window, one entry per non-cash asset. Since closing prices are
// normalised by the latest close, the relative price of asset a is
// 1 / close[a][Window-2].
func (o Observation) RelativePrices() []float64 {
	y := make([]float64, o.Assets)
	for a := range y {
		y[a] = 1.0 / o.At(0, a, o.Window-2)
	}
	return y
}

func (o Observation) String() string {
	return fmt.Sprintf("Observation | Features: %d  |  Assets: %d  |  "+
		"Window: %d", o.Features, o.Assets, o.Window)
}
