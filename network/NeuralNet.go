// Package network implements feed-forward neural networks on gorgonia
// computational graphs
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a neural network that lives on a single computational
// graph. The network owns its learnable nodes, but not necessarily its
// input nodes, which may be shared with other networks on the same
// graph.
type NeuralNet interface {
	Graph() *G.ExprGraph

	// CloneWithInputTo clones the network onto graph g using inputs as
	// the input nodes. The clone's weights are copies and are not
	// shared with the original.
	CloneWithInputTo(inputs []*G.Node, g *G.ExprGraph) (NeuralNet, error)

	BatchSize() int
	Features() int
	Outputs() int

	Set(NeuralNet) error
	Polyak(NeuralNet, float64) error
	Learnables() G.Nodes
	Model() []G.ValueGrad

	Output() G.Value
	Prediction() *G.Node
}
