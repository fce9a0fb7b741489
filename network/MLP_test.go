package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func newInput(g *G.ExprGraph, name string, batch, features int) *G.Node {
	return G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName(name), G.WithInit(G.Zeroes()))
}

func newTestMLP(t *testing.T, prefix string) (NeuralNet, []*G.Node) {
	t.Helper()
	g := G.NewGraph()
	inputs := []*G.Node{newInput(g, "x", 2, 3), newInput(g, "y", 2, 1)}
	net, err := NewMLP(inputs, 2, g, []int{4}, []bool{true},
		G.GlorotU(1.0), []*Activation{TanH()}, prefix)
	require.NoError(t, err)
	return net, inputs
}

func run(t *testing.T, net NeuralNet, inputs []*G.Node,
	values ...[]float64) []float64 {
	t.Helper()
	for i, input := range inputs {
		require.NoError(t, SetNode(input, values[i]))
	}
	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	require.NoError(t, vm.RunAll())
	out, err := Floats(net.Output())
	require.NoError(t, err)
	return out
}

func TestNewMLP(t *testing.T) {
	net, inputs := newTestMLP(t, "net")
	assert.Equal(t, 2, net.BatchSize())
	assert.Equal(t, 4, net.Features())
	assert.Equal(t, 2, net.Outputs())
	assert.Len(t, net.Learnables(), 4)
	assert.Len(t, net.Model(), 4)
	assert.Equal(t, []int{2, 2}, []int(net.Prediction().Shape()))

	out := run(t, net, inputs, []float64{1, 2, 3, 4, 5, 6}, []float64{1, -1})
	assert.Len(t, out, 4)

	_, err := NewMLP(inputs, 2, net.Graph(), []int{4}, []bool{true, true},
		G.GlorotU(1.0), []*Activation{TanH()}, "bad")
	assert.Error(t, err)

	other := G.NewGraph()
	_, err = NewMLP([]*G.Node{newInput(other, "x", 3, 1), inputs[0]}, 1, other,
		nil, nil, G.GlorotU(1.0), nil, "bad")
	assert.Error(t, err)
}

func TestCloneWithInputTo(t *testing.T) {
	net, inputs := newTestMLP(t, "net")

	g := G.NewGraph()
	cloneInputs := []*G.Node{newInput(g, "x", 2, 3), newInput(g, "y", 2, 1)}
	clone, err := net.CloneWithInputTo(cloneInputs, g)
	require.NoError(t, err)

	x, y := []float64{1, 2, 3, 4, 5, 6}, []float64{1, -1}
	assert.InDeltaSlice(t, run(t, net, inputs, x, y),
		run(t, clone, cloneInputs, x, y), 1e-12)

	// Changing the clone's weights leaves the original untouched
	w, err := data(clone.Learnables()[0])
	require.NoError(t, err)
	orig, err := data(net.Learnables()[0])
	require.NoError(t, err)
	before := orig[0]
	w[0] += 1
	assert.Equal(t, before, orig[0])

	_, err = net.CloneWithInputTo([]*G.Node{newInput(g, "z", 2, 2)}, g)
	assert.Error(t, err)
}

func TestSoftUpdate(t *testing.T) {
	online, _ := newTestMLP(t, "online")
	target, _ := newTestMLP(t, "target")

	snapshot := func(net NeuralNet) [][]float64 {
		out := make([][]float64, 0)
		for _, n := range net.Learnables() {
			d, err := data(n)
			require.NoError(t, err)
			out = append(out, append([]float64{}, d...))
		}
		return out
	}
	onlineBefore := snapshot(online)
	targetBefore := snapshot(target)

	// tau = 0 leaves the target unchanged
	require.NoError(t, SoftUpdate(target.Learnables(), online.Learnables(), 0))
	assert.Equal(t, targetBefore, snapshot(target))

	// tau = 0.5 averages
	require.NoError(t, target.Polyak(online, 0.5))
	avg := snapshot(target)
	for i := range avg {
		for j := range avg[i] {
			assert.InDelta(t, 0.5*(onlineBefore[i][j]+targetBefore[i][j]),
				avg[i][j], 1e-12)
		}
	}

	// tau = 1 copies exactly
	require.NoError(t, SoftUpdate(target.Learnables(), online.Learnables(), 1))
	assert.Equal(t, onlineBefore, snapshot(target))
	assert.Equal(t, onlineBefore, snapshot(online))

	assert.Error(t, SoftUpdate(target.Learnables(), online.Learnables(), 2))
	assert.Error(t, SoftUpdate(target.Learnables()[:1], online.Learnables(), 1))
	assert.Error(t, SoftUpdate(target.Learnables()[:2],
		online.Learnables()[1:3], 1))
}

func TestSet(t *testing.T) {
	a, inputs := newTestMLP(t, "a")
	b, bInputs := newTestMLP(t, "b")
	require.NoError(t, b.Set(a))

	x, y := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, []float64{0, 1}
	assert.Equal(t, run(t, a, inputs, x, y), run(t, b, bInputs, x, y))
}

func TestClipGradNorm(t *testing.T) {
	g := G.NewGraph()
	w := G.NewMatrix(g, tensor.Float64, G.WithShape(1, 2), G.WithName("w"),
		G.WithValue(tensor.New(tensor.WithShape(1, 2),
			tensor.WithBacking([]float64{3, 4}))))
	cost := G.Must(G.Sum(G.Must(G.Square(w))))
	_, err := G.Grad(cost, w)
	require.NoError(t, err)

	vm := G.NewTapeMachine(g, G.BindDualValues(w))
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	// d/dw sum(w^2) = 2w = (6, 8), norm 10
	norm, err := ClipGradNorm(G.Nodes{w}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, norm, 1e-12)

	grad, err := w.Grad()
	require.NoError(t, err)
	clipped := grad.Data().([]float64)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, clipped, 1e-12)

	norm, err = ClipGradNorm(G.Nodes{w}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm, 1e-12)
}

func TestScalar(t *testing.T) {
	v, err := Scalar(G.NewF64(2.5))
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	v, err = Scalar(tensor.New(tensor.WithShape(1), tensor.WithBacking([]float64{-1})))
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)

	_, err = Scalar(nil)
	assert.Error(t, err)
}

func TestActivationJSON(t *testing.T) {
	act, err := ParseActivation("relu")
	require.NoError(t, err)
	b, err := act.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"relu"`, string(b))

	var decoded Activation
	require.NoError(t, decoded.UnmarshalJSON([]byte(`"tanh"`)))
	assert.Equal(t, "tanh", decoded.String())
	assert.Error(t, decoded.UnmarshalJSON([]byte(`"softplus"`)))
}
