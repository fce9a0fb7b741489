// Package memory implements the portfolio vector memory, which records
// the allocation held at every period of the dataset
package memory

import (
	"fmt"
)

// PortfolioVectorMemory stores one non-cash allocation per period.
// Every slot starts as the all-cash allocation (all zeros).
type PortfolioVectorMemory struct {
	assets int
	memory [][]float64
}

// New returns a new PortfolioVectorMemory with capacity slots of
// non-cash allocations over the given number of non-cash assets
func New(capacity, nonCashAssets int) (*PortfolioVectorMemory, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("new: capacity must be positive (%d)",
			capacity)
	}
	if nonCashAssets < 1 {
		return nil, fmt.Errorf("new: number of non-cash assets must be "+
			"positive (%d)", nonCashAssets)
	}

	memory := make([][]float64, capacity)
	for i := range memory {
		memory[i] = make([]float64, nonCashAssets)
	}
	return &PortfolioVectorMemory{assets: nonCashAssets, memory: memory}, nil
}

func (p *PortfolioVectorMemory) checkIndex(op string, index int) error {
	if index < 0 || index >= len(p.memory) {
		return fmt.Errorf("%s: index %d out of range [0, %d)", op, index,
			len(p.memory))
	}
	return nil
}

// Update stores a copy of the non-cash allocation at index
func (p *PortfolioVectorMemory) Update(action []float64, index int) error {
	if err := p.checkIndex("update", index); err != nil {
		return err
	}
	if len(action) != p.assets {
		return fmt.Errorf("update: invalid allocation length \n\twant(%d)"+
			"\n\thave(%d)", p.assets, len(action))
	}
	copy(p.memory[index], action)
	return nil
}

// Get returns a copy of the non-cash allocation at index
func (p *PortfolioVectorMemory) Get(index int) ([]float64, error) {
	if err := p.checkIndex("get", index); err != nil {
		return nil, err
	}
	out := make([]float64, p.assets)
	copy(out, p.memory[index])
	return out, nil
}

// Capacity returns the number of slots
func (p *PortfolioVectorMemory) Capacity() int {
	return len(p.memory)
}
