package dataset

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/ddpgportfolio/store"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// FromStore builds a Windows dataset from the price history of the
// named assets. If assets is empty, every asset in the store is used.
// All assets must cover the same periods. The names of the assets, in
// dataset order, are returned with the dataset.
func FromStore(s *store.Store, assets []string, window int) (*Windows,
	[]string, error) {
	if len(assets) == 0 {
		var err error
		if assets, err = s.Assets(); err != nil {
			return nil, nil, fmt.Errorf("fromStore: %w", err)
		}
		if len(assets) == 0 {
			return nil, nil, fmt.Errorf("fromStore: store has no prices")
		}
	}

	closes := make([][]float64, len(assets))
	highs := make([][]float64, len(assets))
	lows := make([][]float64, len(assets))

	var first []store.Bar
	for a, name := range assets {
		bars, err := s.Prices(name)
		if err != nil {
			return nil, nil, fmt.Errorf("fromStore: %w", err)
		}
		if a == 0 {
			first = bars
		} else if err := samePeriods(first, bars); err != nil {
			return nil, nil, fmt.Errorf("fromStore: asset %s: %w", name,
				err)
		}

		closes[a] = make([]float64, len(bars))
		highs[a] = make([]float64, len(bars))
		lows[a] = make([]float64, len(bars))
		for t, b := range bars {
			closes[a][t], highs[a][t], lows[a][t] = b.Close, b.High, b.Low
		}
	}

	w, err := NewWindows(closes, highs, lows, window)
	if err != nil {
		return nil, nil, fmt.Errorf("fromStore: %w", err)
	}
	return w, assets, nil
}

func samePeriods(want, have []store.Bar) error {
	if len(want) != len(have) {
		return fmt.Errorf("has %d periods, want %d", len(have), len(want))
	}
	for i := range want {
		if want[i].Period != have[i].Period {
			return fmt.Errorf("period %d does not match period %d",
				have[i].Period, want[i].Period)
		}
	}
	return nil
}

// Synthetic returns bars of a geometric random walk for each asset.
// Highs and lows bracket the close by a random fraction of its
// volatility.
func Synthetic(assets, periods int, seed uint64) [][]store.Bar {
	src := rand.NewSource(seed)
	returns := distuv.Normal{Mu: 0.0002, Sigma: 0.01, Src: src}
	spread := distuv.Uniform{Min: 0, Max: 0.01, Src: src}

	out := make([][]store.Bar, assets)
	for a := range out {
		price := 1.0 + float64(a)
		bars := make([]store.Bar, periods)
		for t := range bars {
			price *= math.Exp(returns.Rand())
			bars[t] = store.Bar{
				Period: t,
				Close:  price,
				High:   price * (1 + spread.Rand()),
				Low:    price * (1 - spread.Rand()),
			}
		}
		out[a] = bars
	}
	return out
}
