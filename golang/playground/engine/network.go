package engine

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	//ErrDiverged is returned when an epoch produces a non-finite loss.
	ErrDiverged = errors.New("training diverged")
	//ErrReleased is returned by calls on a released network.
	ErrReleased = errors.New("network has been released")
)

//Loss selects the training objective.
type Loss string

const (
	BinaryCrossEntropy Loss = "binaryCrossentropy"
	MeanSquaredError   Loss = "meanSquaredError"
)

//MetricName is the key of the metric tracked for a loss: accuracy for classification and
//mean squared error for regression.
func (l Loss) MetricName() string {
	if l == MeanSquaredError {
		return "mse"
	}
	return "acc"
}

const adamEpsilon = 1e-7

//LayerSpec describes one dense layer.
type LayerSpec struct {
	Units      int
	Activation Activation
}

//NetworkParams collect arguments required to construct a network.
type NetworkParams struct {
	InputDim     int
	Layers       []LayerSpec
	L2           float64
	LearningRate float64
	Loss         Loss
	Seed         int64
}

//History is the outcome of one epoch. Loss includes the L2 penalty.
type History struct {
	Loss       float64
	Metric     float64
	MetricName string
	Examples   int
	Batches    int
}

type denseLayer struct {
	spec   LayerSpec
	kernel *tensor.Dense // in x units
	bias   *tensor.Dense // 1 x units
}

func newDenseLayer(in int, spec LayerSpec, rng *rand.Rand) *denseLayer {
	limit := math.Sqrt(6.0 / float64(in+spec.Units))
	raw := make([]float64, in*spec.Units)
	for i := range raw {
		raw[i] = (2*rng.Float64() - 1) * limit
	}
	return &denseLayer{
		spec:   spec,
		kernel: tensor.New(tensor.WithShape(in, spec.Units), tensor.WithBacking(raw)),
		bias:   tensor.New(tensor.WithShape(1, spec.Units), tensor.WithBacking(make([]float64, spec.Units))),
	}
}

//Network is a stack of dense layers trained with Adam. The forward pass, gradients and
//optimizer steps run on gorgonia expression graphs. Fit, Predict and Release are
//serialized, so there is never more than one call in flight against the weights.
type Network struct {
	arena  *Arena
	params NetworkParams
	layers []*denseLayer
	solver *gorgonia.AdamSolver
	rng    *rand.Rand
	tapes  map[tapeKey]*tape

	mu       sync.Mutex
	released bool
}

//NewNetwork builds and initializes a network. Kernels are Glorot-uniform, biases zero.
func NewNetwork(arena *Arena, params NetworkParams) (*Network, error) {
	if params.InputDim < 1 {
		return nil, errors.Errorf("input dimension must be positive, got %d", params.InputDim)
	}
	if len(params.Layers) == 0 {
		return nil, errors.New("network needs at least one layer")
	}
	if params.LearningRate <= 0 {
		return nil, errors.Errorf("learning rate must be positive, got %v", params.LearningRate)
	}
	if params.L2 < 0 {
		return nil, errors.Errorf("l2 must be non-negative, got %v", params.L2)
	}
	if params.Loss == "" {
		params.Loss = BinaryCrossEntropy
	}
	output := params.Layers[len(params.Layers)-1]
	if params.Loss == BinaryCrossEntropy && (output.Units != 1 || output.Activation != Sigmoid) {
		return nil, errors.New("cross entropy needs a single sigmoid output unit")
	}

	rng := rand.New(rand.NewSource(params.Seed))
	network := &Network{
		arena:  arena,
		params: params,
		solver: gorgonia.NewAdamSolver(gorgonia.WithLearnRate(params.LearningRate), gorgonia.WithEps(adamEpsilon)),
		rng:    rng,
		tapes:  make(map[tapeKey]*tape),
	}
	in := params.InputDim
	for i, spec := range params.Layers {
		if spec.Units < 1 {
			return nil, errors.Errorf("layer %d has %d units", i, spec.Units)
		}
		network.layers = append(network.layers, newDenseLayer(in, spec, rng))
		in = spec.Units
	}
	arena.liveNetworks.Add(1)
	return network, nil
}

//Params returns the construction parameters.
func (n *Network) Params() NetworkParams {
	return n.params
}

//Layers describes the dense layers from input to output.
func (n *Network) Layers() []LayerSpec {
	out := make([]LayerSpec, len(n.params.Layers))
	copy(out, n.params.Layers)
	return out
}

//weights lists kernel and bias of every layer in the order the graphs declare them.
func (n *Network) weights() []*tensor.Dense {
	out := make([]*tensor.Dense, 0, 2*len(n.layers))
	for _, layer := range n.layers {
		out = append(out, layer.kernel, layer.bias)
	}
	return out
}

//metric sums accuracy hits or squared errors over the rows of p.
func (n *Network) metric(p, y []float64) float64 {
	metric := 0.0
	for i := range p {
		if n.params.Loss == MeanSquaredError {
			d := p[i] - y[i]
			metric += d * d
		} else if (p[i] > 0.5) == (y[i] > 0.5) {
			metric++
		}
	}
	return metric
}

func gatherRows(src []float64, cols int, order []int, w Window) *tensor.Dense {
	dst := make([]float64, 0, w.Len()*cols)
	for i := w.Begin; i < w.End; i++ {
		row := order[i] * cols
		dst = append(dst, src[row:row+cols]...)
	}
	return tensor.New(tensor.WithShape(w.Len(), cols), tensor.WithBacking(dst))
}

//step fits one mini-batch and returns its cost (before the update) and metric sum.
func (n *Network) step(x, y *tensor.Dense, rows int) (cost, metric float64, err error) {
	t, err := n.tape(tapeKey{kind: fitTape, rows: rows})
	if err != nil {
		return 0, 0, err
	}
	weights := n.weights()
	if err = t.run(weights, x, y); err != nil {
		return 0, 0, errors.Wrap(err, "forward")
	}
	if cost, err = scalar(t.cost); err != nil {
		return 0, 0, err
	}
	metric = n.metric(floats(t.out.Value()), y.Data().([]float64))
	if err = n.solver.Step(gorgonia.NodesToValueGrads(t.learnables)); err != nil {
		return 0, 0, errors.Wrap(err, "adam step")
	}
	t.syncWeights(weights)
	return cost, metric, nil
}

//FitOneEpoch trains on x [k, inputDim] against y [k, 1] for one shuffled pass in
//mini-batches of batchSize. The context is checked before every mini-batch.
func (n *Network) FitOneEpoch(ctx context.Context, x, y *Tensor, batchSize int) (History, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.released {
		return History{}, ErrReleased
	}

	xRows, xCols := x.Shape()
	yRows, yCols := y.Shape()
	if xCols != n.params.InputDim {
		return History{}, errors.Errorf("input has %d columns, network expects %d", xCols, n.params.InputDim)
	}
	if yRows != xRows || yCols != 1 {
		return History{}, errors.Errorf("target shape [%d, %d] does not match input rows %d", yRows, yCols, xRows)
	}

	features := x.Data()
	targets := y.Data()
	order := n.rng.Perm(xRows)

	history := History{MetricName: n.params.Loss.MetricName()}
	batches := NewBatchRange(xRows, batchSize)
	for batches.HasNext() {
		if err := ctx.Err(); err != nil {
			return History{}, err
		}
		w := batches.GetNext()
		batchX := gatherRows(features, xCols, order, w)
		batchY := gatherRows(targets, 1, order, w)

		cost, metric, err := n.step(batchX, batchY, w.Len())
		if err != nil {
			return History{}, err
		}
		history.Loss += cost * float64(w.Len())
		history.Metric += metric
		history.Examples += w.Len()
		history.Batches++
	}

	history.Loss /= float64(history.Examples)
	history.Metric /= float64(history.Examples)
	if math.IsNaN(history.Loss) || math.IsInf(history.Loss, 0) {
		return history, errors.Wrapf(ErrDiverged, "epoch loss %v", history.Loss)
	}
	return history, nil
}

//Predict evaluates the network on x [k, inputDim] and returns a [k, 1] tensor of outputs
//allocated from the network's arena. The caller releases it.
func (n *Network) Predict(x *Tensor) (*Tensor, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.released {
		return nil, ErrReleased
	}

	rows, cols := x.Shape()
	if cols != n.params.InputDim {
		return nil, errors.Errorf("input has %d columns, network expects %d", cols, n.params.InputDim)
	}
	t, err := n.tape(tapeKey{kind: predictTape, rows: rows})
	if err != nil {
		return nil, err
	}
	if err := t.run(n.weights(), x.dense, nil); err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	data := make([]float64, rows)
	copy(data, floats(t.out.Value()))
	return n.arena.NewTensor(rows, 1, data)
}

//Evaluate reports the objective and metric of the current weights on x [k, inputDim]
//against y [k, 1] without training. The L2 penalty is not included.
func (n *Network) Evaluate(x, y *Tensor) (History, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.released {
		return History{}, ErrReleased
	}

	rows, cols := x.Shape()
	yRows, yCols := y.Shape()
	if cols != n.params.InputDim || yRows != rows || yCols != 1 {
		return History{}, errors.Errorf("evaluate shapes [%d, %d] and [%d, %d] do not fit input dim %d", rows, cols, yRows, yCols, n.params.InputDim)
	}
	t, err := n.tape(tapeKey{kind: evaluateTape, rows: rows})
	if err != nil {
		return History{}, err
	}
	if err := t.run(n.weights(), x.dense, y.dense); err != nil {
		return History{}, errors.Wrap(err, "evaluate")
	}
	loss, err := scalar(t.objective)
	if err != nil {
		return History{}, err
	}
	return History{
		Loss:       loss,
		Metric:     n.metric(floats(t.out.Value()), y.Data()) / float64(rows),
		MetricName: n.params.Loss.MetricName(),
		Examples:   rows,
		Batches:    1,
	}, nil
}

//Release frees the weights. It waits for an in-flight fit or predict and is idempotent.
func (n *Network) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.released {
		return
	}
	n.released = true
	n.closeTapes()
	n.layers = nil
	n.arena.liveNetworks.Add(-1)
}
