package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// newfcLayer adds the weights of a fully connected layer to the graph
func newfcLayer(g *G.ExprGraph, in, out int, bias bool, act *Activation,
	init G.InitWFn, name string) *fcLayer {
	weights := G.NewMatrix(g, tensor.Float64, G.WithShape(in, out),
		G.WithName(name+"W"), G.WithInit(init))

	var b *G.Node
	if bias {
		b = G.NewMatrix(g, tensor.Float64, G.WithShape(1, out),
			G.WithName(name+"B"), G.WithInit(G.Zeroes()))
	}

	return &fcLayer{weights: weights, bias: b, act: act}
}

// addfcLayers adds one fully connected layer per hidden size to the
// graph. Node names are prefixed so that several networks can share a
// graph.
func addfcLayers(g *G.ExprGraph, features int, sizes []int, biases []bool,
	activations []*Activation, init G.InitWFn, prefix string) []*fcLayer {
	layers := make([]*fcLayer, len(sizes))
	in := features
	for i, out := range sizes {
		name := fmt.Sprintf("%sL%d", prefix, i)
		layers[i] = newfcLayer(g, in, out, biases[i], activations[i], init,
			name)
		in = out
	}
	return layers
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x, err := G.Mul(x, f.weights)
	if err != nil {
		return nil, err
	}
	if f.bias != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		if x, err = G.BroadcastAdd(x, f.bias, nil, []byte{0}); err != nil {
			return nil, err
		}
	}
	if f.act == nil || f.act.IsNil() {
		return x, nil
	}
	return f.act.fwd(x)
}

// cloneTo creates a copy of the fcLayer on graph g. The weights of the
// copy are backed by new tensors.
func (f *fcLayer) cloneTo(g *G.ExprGraph) (*fcLayer, error) {
	weights, err := cloneNodeTo(f.weights, g)
	if err != nil {
		return nil, err
	}

	var bias *G.Node
	if f.bias != nil {
		if bias, err = cloneNodeTo(f.bias, g); err != nil {
			return nil, err
		}
	}

	return &fcLayer{weights: weights, bias: bias, act: f.act}, nil
}

// cloneNodeTo creates a new matrix node on g with the same name and
// shape as n, holding a copy of n's value
func cloneNodeTo(n *G.Node, g *G.ExprGraph) (*G.Node, error) {
	clone := G.NewMatrix(g, tensor.Float64, G.WithShape(n.Shape()...),
		G.WithName(n.Name()), G.WithInit(G.Zeroes()))
	if err := CopyNodes(G.Nodes{clone}, G.Nodes{n}); err != nil {
		return nil, fmt.Errorf("cloneNodeTo: %w", err)
	}
	return clone, nil
}
