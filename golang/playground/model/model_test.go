package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarstars/nn_playground/golang/playground/engine"
)

func TestEmptyTopologyIsLogisticRegression(t *testing.T) {
	arena := engine.NewArena()
	network, err := Build(arena, Topology{Activation: engine.ReLU, LearningRate: 0.03}, 5, 1)
	require.NoError(t, err)
	defer network.Release()

	require.Equal(t, []engine.LayerSpec{{Units: 1, Activation: engine.Sigmoid}}, network.Layers())
	require.Equal(t, 5, network.Params().InputDim)
}

func TestHiddenLayersEndInSigmoid(t *testing.T) {
	for _, act := range engine.Activations() {
		arena := engine.NewArena()
		network, err := Build(arena, Topology{Layers: []int{8, 4}, Activation: act, LearningRate: 0.03}, 2, 1)
		require.NoError(t, err)

		require.Equal(t, []engine.LayerSpec{
			{Units: 8, Activation: act},
			{Units: 4, Activation: act},
			{Units: 1, Activation: engine.Sigmoid},
		}, network.Layers())
		network.Release()
		require.Equal(t, 0, arena.LiveNetworks())
	}
}

func TestLayerWidthsAreClamped(t *testing.T) {
	specs := LayerSpecs(Topology{Layers: []int{0, 100, 12}, Activation: engine.Tanh})
	require.Len(t, specs, 4)
	require.Equal(t, 1, specs[0].Units)
	require.Equal(t, MaxLayerWidth, specs[1].Units)
	require.Equal(t, 12, specs[2].Units)
}

func TestProblemSelectsLoss(t *testing.T) {
	require.Equal(t, engine.BinaryCrossEntropy, Topology{Problem: Classification}.Loss())
	require.Equal(t, engine.BinaryCrossEntropy, Topology{}.Loss())
	require.Equal(t, engine.MeanSquaredError, Topology{Problem: Regression}.Loss())

	arena := engine.NewArena()
	network, err := Build(arena, Topology{Layers: []int{3}, Activation: engine.Tanh, LearningRate: 0.01, L2: 0.001, Problem: Regression}, 2, 4)
	require.NoError(t, err)
	defer network.Release()
	require.Equal(t, engine.MeanSquaredError, network.Params().Loss)
	require.Equal(t, 0.001, network.Params().L2)
}

func TestBuildRejectsUnknownActivation(t *testing.T) {
	_, err := Build(engine.NewArena(), Topology{Activation: "swish", LearningRate: 0.1}, 2, 0)
	require.Error(t, err)

	_, err = ParseProblem("ranking")
	require.Error(t, err)
}

func TestNetworkSatisfiesHandle(t *testing.T) {
	var _ Handle = (*engine.Network)(nil)
}
