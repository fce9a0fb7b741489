package network

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// data returns the backing slice of a node's value
func data(n *G.Node) ([]float64, error) {
	if n.Value() == nil {
		return nil, fmt.Errorf("node %v has no value", n.Name())
	}
	d, ok := n.Value().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("node %v does not hold float64 data",
			n.Name())
	}
	return d, nil
}

// checkPairs ensures two node lists can be combined element-wise
func checkPairs(dst, src G.Nodes) error {
	if len(dst) != len(src) {
		return fmt.Errorf("number of nodes differ \n\tdst(%d) \n\tsrc(%d)",
			len(dst), len(src))
	}
	for i := range dst {
		if !dst[i].Shape().Eq(src[i].Shape()) {
			return fmt.Errorf("node %d shapes differ \n\tdst(%v) \n\tsrc(%v)",
				i, dst[i].Shape(), src[i].Shape())
		}
	}
	return nil
}

// CopyNodes copies the values of src into the values of dst, in place.
// The node lists must have the same length and pairwise shapes.
func CopyNodes(dst, src G.Nodes) error {
	return SoftUpdate(dst, src, 1.0)
}

// SoftUpdate moves each target node towards its online counterpart in
// place: target <- tau * online + (1 - tau) * target. Nodes are paired
// by position.
func SoftUpdate(target, online G.Nodes, tau float64) error {
	if tau < 0 || tau > 1 {
		return fmt.Errorf("softUpdate: tau must be in [0, 1] (%v)", tau)
	}
	if err := checkPairs(target, online); err != nil {
		return fmt.Errorf("softUpdate: %w", err)
	}

	for i := range target {
		dst, err := data(target[i])
		if err != nil {
			return fmt.Errorf("softUpdate: %w", err)
		}
		src, err := data(online[i])
		if err != nil {
			return fmt.Errorf("softUpdate: %w", err)
		}

		switch tau {
		case 0:
		case 1:
			copy(dst, src)
		default:
			for j := range dst {
				dst[j] = tau*src[j] + (1-tau)*dst[j]
			}
		}
	}
	return nil
}

// SetNode sets the value of an input node to a tensor backed by values.
// The tensor takes the shape of the node.
func SetNode(n *G.Node, values []float64) error {
	if len(values) != n.Shape().TotalSize() {
		return fmt.Errorf("setNode: invalid number of values for %v"+
			"\n\twant(%d)\n\thave(%d)", n.Name(), n.Shape().TotalSize(),
			len(values))
	}
	t := tensor.New(
		tensor.WithBacking(values),
		tensor.WithShape(n.Shape()...),
	)
	return G.Let(n, t)
}

// ClipGradNorm scales the gradients of the argument nodes in place so
// that their global L2 norm is at most max. The norm before clipping is
// returned. Nodes must have been bound with dual values.
func ClipGradNorm(nodes G.Nodes, max float64) (float64, error) {
	grads := make([][]float64, len(nodes))
	var sq float64
	for i, n := range nodes {
		grad, err := n.Grad()
		if err != nil {
			return 0, fmt.Errorf("clipGradNorm: %w", err)
		}
		g, ok := grad.Data().([]float64)
		if !ok {
			return 0, fmt.Errorf("clipGradNorm: gradient of %v does not "+
				"hold float64 data", n.Name())
		}
		for _, v := range g {
			sq += v * v
		}
		grads[i] = g
	}

	norm := math.Sqrt(sq)
	if max <= 0 || norm <= max || norm == 0 {
		return norm, nil
	}

	scale := max / norm
	for _, g := range grads {
		for j := range g {
			g[j] *= scale
		}
	}
	return norm, nil
}

// Scalar returns the value of a scalar (or single element) node value
func Scalar(v G.Value) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("scalar: nil value")
	}
	switch d := v.Data().(type) {
	case float64:
		return d, nil
	case []float64:
		if len(d) != 1 {
			return 0, fmt.Errorf("scalar: value has %d elements", len(d))
		}
		return d[0], nil
	}
	return 0, fmt.Errorf("scalar: unsupported data type %T", v.Data())
}

// Floats returns a copy of the data of a float64 tensor value
func Floats(v G.Value) ([]float64, error) {
	if v == nil {
		return nil, fmt.Errorf("floats: nil value")
	}
	d, ok := v.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("floats: unsupported data type %T", v.Data())
	}
	out := make([]float64, len(d))
	copy(out, d)
	return out, nil
}
