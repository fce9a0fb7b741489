package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// mlp implements a multi-layered perceptron. The inputs of the network
// are concatenated along the feature (column) dimension before the
// first layer.
type mlp struct {
	g          *G.ExprGraph
	layers     []*fcLayer
	inputs     []*G.Node
	prefix     string
	numOutputs int
	numInputs  int
	batchSize  int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new multi-layered perceptron on graph g
// which reads from the argument input nodes. All input nodes must be
// matrices with the same number of rows (the batch size) and belong
// to g.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// linear layer with a bias unit and no activation is always added so
// that the network predicts outputs values per row of input. For index
// i, hiddenSizes[i] is the number of nodes in hidden layer i; biases[i]
// is true if the hidden layer will contain a bias unit and false
// otherwise; and activations[i] is the activation function for hidden
// layer i. The parameter init determines the weight initialization
// scheme. All learnable node names are prefixed with prefix, which
// must be unique amongst networks sharing a graph.
func NewMLP(inputs []*G.Node, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation, prefix string) (NeuralNet, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newMLP: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newMLP: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	if outputs < 1 {
		return nil, fmt.Errorf("newMLP: outputs must be positive (%d)",
			outputs)
	}

	batch, features, err := checkInputs(inputs, g)
	if err != nil {
		return nil, fmt.Errorf("newMLP: %w", err)
	}

	sizes := append(append([]int{}, hiddenSizes...), outputs)
	bias := append(append([]bool{}, biases...), true)
	acts := append(append([]*Activation{}, activations...), Identity())
	layers := addfcLayers(g, features, sizes, bias, acts, init, prefix)

	net := &mlp{
		g:          g,
		layers:     layers,
		inputs:     inputs,
		prefix:     prefix,
		numOutputs: outputs,
		numInputs:  features,
		batchSize:  batch,
	}
	if err := net.fwd(); err != nil {
		return nil, fmt.Errorf("newMLP: could not compute forward pass: %w",
			err)
	}
	return net, nil
}

// checkInputs ensures all inputs are matrices on g with the same
// number of rows and returns the batch size and the total number of
// input features
func checkInputs(inputs []*G.Node, g *G.ExprGraph) (int, int, error) {
	if len(inputs) == 0 {
		return 0, 0, fmt.Errorf("no input nodes")
	}

	batch := inputs[0].Shape()[0]
	features := 0
	for _, input := range inputs {
		if input.Graph() != g {
			return 0, 0, fmt.Errorf("not all inputs have the same graph")
		}
		if !input.IsMatrix() {
			return 0, 0, fmt.Errorf("input %v must be a matrix",
				input.Name())
		}
		if input.Shape()[0] != batch {
			return 0, 0, fmt.Errorf("input %v has batch size %d, want %d",
				input.Name(), input.Shape()[0], batch)
		}
		features += input.Shape()[1]
	}
	return batch, features, nil
}

// Graph returns the computational graph of the mlp.
func (m *mlp) Graph() *G.ExprGraph {
	return m.g
}

// CloneWithInputTo clones the mlp onto a graph with new input nodes
func (m *mlp) CloneWithInputTo(inputs []*G.Node,
	g *G.ExprGraph) (NeuralNet, error) {
	batch, features, err := checkInputs(inputs, g)
	if err != nil {
		return nil, fmt.Errorf("cloneWithInputTo: %w", err)
	}
	if features != m.numInputs {
		return nil, fmt.Errorf("cloneWithInputTo: invalid number of "+
			"features \n\twant(%d) \n\thave(%d)", m.numInputs, features)
	}

	layers := make([]*fcLayer, len(m.layers))
	for i := range m.layers {
		if layers[i], err = m.layers[i].cloneTo(g); err != nil {
			return nil, fmt.Errorf("cloneWithInputTo: layer %d: %w", i, err)
		}
	}

	net := &mlp{
		g:          g,
		layers:     layers,
		inputs:     inputs,
		prefix:     m.prefix,
		numOutputs: m.numOutputs,
		numInputs:  m.numInputs,
		batchSize:  batch,
	}
	if err := net.fwd(); err != nil {
		return nil, fmt.Errorf("cloneWithInputTo: could not compute "+
			"forward pass: %w", err)
	}
	return net, nil
}

// BatchSize returns the batch size of inputs to the network
func (m *mlp) BatchSize() int {
	return m.batchSize
}

// Features returns the total number of input features in a single row
// of input
func (m *mlp) Features() int {
	return m.numInputs
}

// Outputs returns the number of outputs per row of input
func (m *mlp) Outputs() int {
	return m.numOutputs
}

// Set sets the weights of the mlp to be equal to the weights of
// another network with the same architecture
func (m *mlp) Set(source NeuralNet) error {
	return CopyNodes(m.Learnables(), source.Learnables())
}

// Polyak sets the weights of the mlp to be a polyak average between
// its existing weights and the weights of another network:
// w <- tau * source + (1 - tau) * w
func (m *mlp) Polyak(source NeuralNet, tau float64) error {
	return SoftUpdate(m.Learnables(), source.Learnables(), tau)
}

// Learnables returns the learnable nodes in the mlp
func (m *mlp) Learnables() G.Nodes {
	// Lazy instantiation
	if m.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(m.layers))
		for _, l := range m.layers {
			learnables = append(learnables, l.weights)
			if l.bias != nil {
				learnables = append(learnables, l.bias)
			}
		}
		m.learnables = learnables
	}
	return m.learnables
}

// Model returns the learnables nodes with their gradients.
func (m *mlp) Model() []G.ValueGrad {
	// Lazy instantiation
	if m.model == nil {
		model := make([]G.ValueGrad, 0, len(m.Learnables()))
		for _, node := range m.Learnables() {
			model = append(model, node)
		}
		m.model = model
	}
	return m.model
}

// fwd adds the forward pass of the mlp to its graph
func (m *mlp) fwd() error {
	pred := m.inputs[0]
	if len(m.inputs) > 1 {
		var err error
		if pred, err = G.Concat(1, m.inputs...); err != nil {
			return fmt.Errorf("fwd: could not concatenate inputs: %w", err)
		}
	}

	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			return fmt.Errorf("fwd: could not compute forward pass of "+
				"layer %v: %w", i, err)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)
	return nil
}

// Output returns the output of the mlp after the graph has been run
func (m *mlp) Output() G.Value {
	return m.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the mlp
func (m *mlp) Prediction() *G.Node {
	return m.prediction
}
