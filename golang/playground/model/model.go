//Package model builds trainable binary classifiers from a declarative topology.
package model

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tarstars/nn_playground/golang/playground/engine"
)

//Problem selects the objective the model is compiled with.
type Problem string

const (
	Classification Problem = "classification"
	Regression     Problem = "regression"
)

//ParseProblem converts a configuration string into a Problem.
func ParseProblem(name string) (Problem, error) {
	switch Problem(name) {
	case Classification, Regression:
		return Problem(name), nil
	}
	return "", errors.Errorf("unknown problem type %q", name)
}

//MaxLayerWidth is the widest hidden layer the factory accepts.
const MaxLayerWidth = 64

//Handle is the contract of a trained model. Implementations serialize calls, and
//Predict returns a tensor that the caller releases.
type Handle interface {
	FitOneEpoch(ctx context.Context, x, y *engine.Tensor, batchSize int) (engine.History, error)
	Predict(x *engine.Tensor) (*engine.Tensor, error)
	Release()
}

//Topology describes the hidden layers and training hyperparameters.
type Topology struct {
	Layers       []int
	Activation   engine.Activation
	LearningRate float64
	L2           float64
	Problem      Problem
}

//ClampWidth pulls a hidden layer width into [1, MaxLayerWidth].
func ClampWidth(units int) int {
	if units < 1 {
		return 1
	}
	if units > MaxLayerWidth {
		return MaxLayerWidth
	}
	return units
}

//LayerSpecs stacks the hidden layers and appends the single sigmoid output unit. An
//empty topology yields logistic regression on the inputs.
func LayerSpecs(topology Topology) []engine.LayerSpec {
	specs := make([]engine.LayerSpec, 0, len(topology.Layers)+1)
	for _, units := range topology.Layers {
		specs = append(specs, engine.LayerSpec{Units: ClampWidth(units), Activation: topology.Activation})
	}
	return append(specs, engine.LayerSpec{Units: 1, Activation: engine.Sigmoid})
}

//Loss returns the objective for the problem type.
func (t Topology) Loss() engine.Loss {
	if t.Problem == Regression {
		return engine.MeanSquaredError
	}
	return engine.BinaryCrossEntropy
}

//Build creates a network for inputDim features. The caller owns the returned handle.
func Build(arena *engine.Arena, topology Topology, inputDim int, seed int64) (*engine.Network, error) {
	if _, err := engine.ParseActivation(string(topology.Activation)); err != nil {
		return nil, err
	}
	network, err := engine.NewNetwork(arena, engine.NetworkParams{
		InputDim:     inputDim,
		Layers:       LayerSpecs(topology),
		L2:           topology.L2,
		LearningRate: topology.LearningRate,
		Loss:         topology.Loss(),
		Seed:         seed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build model")
	}
	return network, nil
}
