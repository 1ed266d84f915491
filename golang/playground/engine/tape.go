package engine

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type tapeKind int

const (
	predictTape tapeKind = iota
	evaluateTape
	fitTape
)

type tapeKey struct {
	kind tapeKind
	rows int
}

//maxTapes bounds the compiled graphs a network keeps around. Every distinct batch row
//count needs its own graph.
const maxTapes = 8

//tape is one compiled expression graph over the network weights for a fixed number of
//rows. Weights enter the graph as leaf nodes and are rebound before every run.
type tape struct {
	graph      *gorgonia.ExprGraph
	x, y       *gorgonia.Node
	learnables gorgonia.Nodes
	out        *gorgonia.Node //probabilities [rows, 1]
	objective  *gorgonia.Node //mean loss without the penalty
	cost       *gorgonia.Node //objective plus the L2 penalty
	machine    gorgonia.VM
}

func (n *Network) compile(key tapeKey) (*tape, error) {
	g := gorgonia.NewGraph()
	t := &tape{graph: g}
	t.x = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(key.rows, n.params.InputDim), gorgonia.WithName("x"))

	act := t.x
	var logits *gorgonia.Node
	for i, layer := range n.layers {
		kernel := gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(layer.kernel.Shape()...), gorgonia.WithName(fmt.Sprintf("kernel_%d", i)), gorgonia.WithValue(layer.kernel))
		bias := gorgonia.NewMatrix(g, tensor.Float64,
			gorgonia.WithShape(layer.bias.Shape()...), gorgonia.WithName(fmt.Sprintf("bias_%d", i)), gorgonia.WithValue(layer.bias))
		t.learnables = append(t.learnables, kernel, bias)

		xw, err := gorgonia.Mul(act, kernel)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if logits, err = gorgonia.BroadcastAdd(xw, bias, nil, []byte{0}); err != nil {
			return nil, errors.Wrapf(err, "layer %d bias", i)
		}
		if act, err = layer.spec.Activation.activate(logits); err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
	}
	t.out = act

	if key.kind == predictTape {
		t.machine = gorgonia.NewTapeMachine(g)
		return t, nil
	}

	t.y = gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(key.rows, 1), gorgonia.WithName("y"))
	var err error
	if t.objective, err = n.objective(t.y, logits, act); err != nil {
		return nil, err
	}
	if key.kind == evaluateTape {
		t.machine = gorgonia.NewTapeMachine(g)
		return t, nil
	}

	t.cost = t.objective
	if n.params.L2 > 0 {
		var penalty *gorgonia.Node
		for _, w := range t.learnables {
			sq, err := gorgonia.Square(w)
			if err != nil {
				return nil, err
			}
			s, err := gorgonia.Sum(sq)
			if err != nil {
				return nil, err
			}
			if penalty == nil {
				penalty = s
			} else if penalty, err = gorgonia.Add(penalty, s); err != nil {
				return nil, err
			}
		}
		if penalty, err = gorgonia.Mul(gorgonia.NewConstant(n.params.L2), penalty); err != nil {
			return nil, err
		}
		if t.cost, err = gorgonia.Add(t.objective, penalty); err != nil {
			return nil, err
		}
	}
	if _, err = gorgonia.Grad(t.cost, t.learnables...); err != nil {
		return nil, errors.Wrap(err, "gradient")
	}
	t.machine = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(t.learnables...))
	return t, nil
}

//objective is the mean per-example loss. Cross entropy is written on the logits of the
//sigmoid output, softplus(z) - y*z, which stays finite where log(p) would not.
func (n *Network) objective(y, logits, out *gorgonia.Node) (*gorgonia.Node, error) {
	var perExample *gorgonia.Node
	switch n.params.Loss {
	case MeanSquaredError:
		diff, err := gorgonia.Sub(out, y)
		if err != nil {
			return nil, err
		}
		if perExample, err = gorgonia.Square(diff); err != nil {
			return nil, err
		}
	default:
		sp, err := gorgonia.Softplus(logits)
		if err != nil {
			return nil, err
		}
		yz, err := gorgonia.HadamardProd(y, logits)
		if err != nil {
			return nil, err
		}
		if perExample, err = gorgonia.Sub(sp, yz); err != nil {
			return nil, err
		}
	}
	return gorgonia.Mean(perExample)
}

//tape returns the compiled graph for key, compiling it on first use.
func (n *Network) tape(key tapeKey) (*tape, error) {
	if t, ok := n.tapes[key]; ok {
		return t, nil
	}
	if len(n.tapes) >= maxTapes {
		n.closeTapes()
	}
	t, err := n.compile(key)
	if err != nil {
		return nil, err
	}
	n.tapes[key] = t
	return t, nil
}

func (n *Network) closeTapes() {
	for key, t := range n.tapes {
		t.machine.Close()
		delete(n.tapes, key)
	}
}

//run binds the current weights and the batch, then executes the graph once.
func (t *tape) run(weights []*tensor.Dense, x, y *tensor.Dense) error {
	t.machine.Reset()
	for i, w := range weights {
		if v, ok := t.learnables[i].Value().(*tensor.Dense); ok && v == w {
			continue
		}
		if err := gorgonia.Let(t.learnables[i], w); err != nil {
			return errors.Wrapf(err, "bind %s", t.learnables[i].Name())
		}
	}
	if err := gorgonia.Let(t.x, x); err != nil {
		return errors.Wrap(err, "bind x")
	}
	if t.y != nil {
		if err := gorgonia.Let(t.y, y); err != nil {
			return errors.Wrap(err, "bind y")
		}
	}
	return t.machine.RunAll()
}

//syncWeights copies the values the solver left in the graph back into weights when the
//solver did not update them in place.
func (t *tape) syncWeights(weights []*tensor.Dense) {
	for i, w := range weights {
		v, ok := t.learnables[i].Value().(*tensor.Dense)
		if ok && v != w {
			copy(w.Data().([]float64), v.Data().([]float64))
		}
	}
}

func floats(v gorgonia.Value) []float64 {
	switch d := v.Data().(type) {
	case []float64:
		return d
	case float64:
		return []float64{d}
	}
	return nil
}

func scalar(node *gorgonia.Node) (float64, error) {
	v := floats(node.Value())
	if len(v) != 1 {
		return 0, errors.Errorf("%s is not a scalar", node.Name())
	}
	return v[0], nil
}
