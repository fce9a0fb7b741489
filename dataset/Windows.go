// Package dataset implements market datasets of sliding price windows
package dataset

import (
	"fmt"

	"github.com/samuelfneumann/ddpgportfolio/timestep"
)

// Lookahead is the number of windows available past Len. Pre-training
// walks Len() + Lookahead windows.
const Lookahead = 48

// Features is the number of price features per asset: close, high and
// low
const Features = 3

// Windows is a dataset of sliding price windows over a fixed set of
// non-cash assets. Sample i covers periods [i, i+window). The prices of
// every window are normalised by the latest closing price of each
// asset.
type Windows struct {
	closes, highs, lows [][]float64
	window              int
	periods             int
}

// NewWindows returns a new Windows dataset. Prices are indexed by
// [asset][period] and must be positive.
func NewWindows(closes, highs, lows [][]float64, window int) (*Windows,
	error) {
	if window < 2 {
		return nil, fmt.Errorf("newWindows: window must be at least 2 (%d)",
			window)
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("newWindows: no assets")
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, fmt.Errorf("newWindows: close, high and low have "+
			"different numbers of assets (%d, %d, %d)", len(closes),
			len(highs), len(lows))
	}

	periods := len(closes[0])
	for a := range closes {
		for _, series := range [][]float64{closes[a], highs[a], lows[a]} {
			if len(series) != periods {
				return nil, fmt.Errorf("newWindows: asset %d has %d "+
					"periods, want %d", a, len(series), periods)
			}
			for t, v := range series {
				if v <= 0 {
					return nil, fmt.Errorf("newWindows: asset %d has "+
						"non-positive price %v at period %d", a, v, t)
				}
			}
		}
	}

	if periods-window-Lookahead < 1 {
		return nil, fmt.Errorf("newWindows: %d periods is too few for "+
			"window %d (need at least %d)", periods, window,
			window+Lookahead+1)
	}

	return &Windows{
		closes:  closes,
		highs:   highs,
		lows:    lows,
		window:  window,
		periods: periods,
	}, nil
}

// Len returns the number of samples
func (w *Windows) Len() int {
	return w.periods - w.window - Lookahead
}

// Periods returns the number of periods covered by the dataset
func (w *Windows) Periods() int {
	return w.periods
}

// Assets returns the number of non-cash assets
func (w *Windows) Assets() int {
	return len(w.closes)
}

// Window returns the number of periods in each observation
func (w *Windows) Window() int {
	return w.window
}

// At returns the observation of sample i together with the index of
// the second to last period of the window, which is where the
// allocation held before the sample is stored. Samples are valid for i
// in [0, Len() + Lookahead].
func (w *Windows) At(i int) (timestep.Observation, int, error) {
	if i < 0 || i > w.Len()+Lookahead {
		return timestep.Observation{}, 0, fmt.Errorf("at: index %d out "+
			"of range [0, %d]", i, w.Len()+Lookahead)
	}

	assets := len(w.closes)
	data := make([]float64, Features*assets*w.window)
	for a := 0; a < assets; a++ {
		latest := w.closes[a][i+w.window-1]
		for f, series := range [][]float64{w.closes[a], w.highs[a], w.lows[a]} {
			offset := f*assets*w.window + a*w.window
			for t := 0; t < w.window; t++ {
				data[offset+t] = series[i+t] / latest
			}
		}
	}

	obs, err := timestep.NewObservation(Features, assets, w.window, data)
	if err != nil {
		return timestep.Observation{}, 0, fmt.Errorf("at: %w", err)
	}
	return obs, i + w.window - 2, nil
}
