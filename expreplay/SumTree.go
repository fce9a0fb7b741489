package expreplay

// sumTree is a binary tree stored in an array where each internal node
// holds the sum of its children. Leaves hold the priorities of the
// buffer slots.
type sumTree struct {
	capacity int
	nodes    []float64
}

func newSumTree(capacity int) *sumTree {
	return &sumTree{
		capacity: capacity,
		nodes:    make([]float64, 2*capacity-1),
	}
}

// total returns the sum of all priorities
func (s *sumTree) total() float64 {
	return s.nodes[0]
}

// get returns the priority of slot i
func (s *sumTree) get(i int) float64 {
	return s.nodes[i+s.capacity-1]
}

// set sets the priority of slot i and updates the sums above it
func (s *sumTree) set(i int, priority float64) {
	node := i + s.capacity - 1
	delta := priority - s.nodes[node]
	s.nodes[node] = priority
	for node > 0 {
		node = (node - 1) / 2
		s.nodes[node] += delta
	}
}

// find returns the slot whose cumulative priority range contains
// value, for value in [0, total)
func (s *sumTree) find(value float64) int {
	node := 0
	for {
		left := 2*node + 1
		if left >= len(s.nodes) {
			break
		}
		if value < s.nodes[left] || s.nodes[left+1] <= 0 {
			node = left
		} else {
			value -= s.nodes[left]
			node = left + 1
		}
	}
	return node - (s.capacity - 1)
}
