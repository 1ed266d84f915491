package engine

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

//Activation is the element-wise nonlinearity of a dense layer.
type Activation string

const (
	Tanh    Activation = "tanh"
	ReLU    Activation = "relu"
	Sigmoid Activation = "sigmoid"
	Linear  Activation = "linear"
)

//Activations lists the supported activations.
func Activations() []Activation {
	return []Activation{Tanh, ReLU, Sigmoid, Linear}
}

//ParseActivation converts a configuration string into an Activation.
func ParseActivation(name string) (Activation, error) {
	for _, act := range Activations() {
		if string(act) == name {
			return act, nil
		}
	}
	return "", errors.Errorf("unknown activation %q", name)
}

//activate adds the nonlinearity on top of z to z's graph.
func (a Activation) activate(z *gorgonia.Node) (*gorgonia.Node, error) {
	switch a {
	case Tanh:
		return gorgonia.Tanh(z)
	case ReLU:
		return gorgonia.Rectify(z)
	case Sigmoid:
		return gorgonia.Sigmoid(z)
	case Linear:
		return z, nil
	}
	return nil, errors.Errorf("unknown activation %q", a)
}
