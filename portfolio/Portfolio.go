// Package portfolio implements the reward of rebalancing a portfolio
// of a cash asset and a fixed universe of non-cash assets
package portfolio

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/ddpgportfolio/utils/floatutils"
	"gonum.org/v1/gonum/floats"
)

// DefaultCommission is the default proportional transaction cost
const DefaultCommission = 0.0025

// Portfolio holds cash plus the named non-cash assets. Allocations
// passed to a Portfolio are non-cash; the cash weight is implied.
type Portfolio struct {
	assets     []string
	commission float64
}

// New returns a new Portfolio over the named non-cash assets
func New(assets []string, commission float64) (*Portfolio, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("new: no non-cash assets")
	}
	if commission < 0 || commission >= 1 {
		return nil, fmt.Errorf("new: commission must be in [0, 1) (%v)",
			commission)
	}

	names := make([]string, len(assets))
	copy(names, assets)
	return &Portfolio{assets: names, commission: commission}, nil
}

// Assets returns the number of assets including cash
func (p *Portfolio) Assets() int {
	return len(p.assets) + 1
}

// NonCashAssets returns the number of non-cash assets
func (p *Portfolio) NonCashAssets() int {
	return len(p.assets)
}

// Names returns the names of the non-cash assets
func (p *Portfolio) Names() []string {
	names := make([]string, len(p.assets))
	copy(names, p.assets)
	return names
}

// TransactionFactor returns the fraction of portfolio value kept after
// rebalancing from previous to action
func (p *Portfolio) TransactionFactor(action, previous []float64) float64 {
	turnover := 0.0
	for i := range action {
		turnover += math.Abs(action[i] - previous[i])
	}
	return 1 - p.commission*turnover
}

// Growth returns the factor by which the portfolio value changes over
// one period when holding action after rebalancing from previous and
// non-cash prices change by relativePrices
func (p *Portfolio) Growth(action, relativePrices, previous []float64) float64 {
	if len(action) != len(p.assets) || len(previous) != len(p.assets) ||
		len(relativePrices) != len(p.assets) {
		panic(fmt.Sprintf("growth: invalid vector lengths (action=%d, "+
			"prices=%d, previous=%d, want %d)", len(action),
			len(relativePrices), len(previous), len(p.assets)))
	}

	y := append([]float64{1.0}, relativePrices...)
	w := floatutils.WithCash(action)
	return p.TransactionFactor(action, previous) * floats.Dot(y, w)
}

// Reward returns the log return of one period: the logarithm of Growth
func (p *Portfolio) Reward(action, relativePrices, previous []float64) float64 {
	return math.Log(p.Growth(action, relativePrices, previous))
}
