package training

import (
	"context"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tarstars/nn_playground/golang/playground/datasets"
	"github.com/tarstars/nn_playground/golang/playground/engine"
	"github.com/tarstars/nn_playground/golang/playground/features"
	"github.com/tarstars/nn_playground/golang/playground/model"
)

//scriptedModel returns a fixed history and records what it was asked to fit.
type scriptedModel struct {
	mu      sync.Mutex
	history engine.History
	err     error
	fits    int
	shapes  [][2]int
	batches []int
}

func (m *scriptedModel) FitOneEpoch(ctx context.Context, x, y *engine.Tensor, batchSize int) (engine.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fits++
	rows, cols := x.Shape()
	m.shapes = append(m.shapes, [2]int{rows, cols})
	m.batches = append(m.batches, batchSize)
	return m.history, m.err
}

func (m *scriptedModel) Predict(x *engine.Tensor) (*engine.Tensor, error) {
	return nil, nil
}

func (m *scriptedModel) Release() {}

//gatedModel blocks inside the fit until the test opens the gate, ignoring cancellation.
type gatedModel struct {
	entered chan struct{}
	gate    chan struct{}
}

func (m *gatedModel) FitOneEpoch(ctx context.Context, x, y *engine.Tensor, batchSize int) (engine.History, error) {
	m.entered <- struct{}{}
	<-m.gate
	return engine.History{Loss: 0.1, Metric: 1, MetricName: "acc"}, nil
}

func (m *gatedModel) Predict(x *engine.Tensor) (*engine.Tensor, error) {
	return nil, nil
}

func (m *gatedModel) Release() {}

func testSplit(t *testing.T, kind datasets.Kind, n int, fraction float64) *datasets.Split {
	t.Helper()
	set, err := datasets.NewGenerator(7).Generate(kind, n, 0.05)
	require.NoError(t, err)
	split, err := datasets.NewSplit(set, fraction)
	require.NoError(t, err)
	return split
}

func rawBasis() features.Basis {
	return features.NewBasis(features.Toggles{X: true, Y: true})
}

func newTestController(t *testing.T) (*Controller, *FrameScheduler, *engine.Arena) {
	arena := engine.NewArena()
	scheduler := NewFrameScheduler(clock.NewMock(), DefaultFrameRate)
	return NewController(arena, scheduler, zaptest.NewLogger(t).Sugar()), scheduler, arena
}

func TestStartRequiresModelAndTrainingData(t *testing.T) {
	c, _, _ := newTestController(t)
	split := testSplit(t, datasets.Circle, 100, 0.5)

	require.ErrorIs(t, c.Start(Job{Split: split, Basis: rawBasis(), BatchSize: 8}), ErrNotReady)
	require.ErrorIs(t, c.Start(Job{Model: &scriptedModel{}, Basis: rawBasis(), BatchSize: 8}), ErrNotReady)

	empty, err := split.Resplit(0)
	require.NoError(t, err)
	require.ErrorIs(t, c.Start(Job{Model: &scriptedModel{}, Split: empty, Basis: rawBasis(), BatchSize: 8}), ErrNotReady)

	require.Error(t, c.Start(Job{Model: &scriptedModel{}, Split: split, Basis: rawBasis(), BatchSize: 0}))
	require.Equal(t, Idle, c.State())
}

func TestTicksPublishOneEpochPerFrame(t *testing.T) {
	c, scheduler, arena := newTestController(t)
	m := &scriptedModel{history: engine.History{Loss: 0.5, Metric: 0.9, MetricName: "acc"}}
	split := testSplit(t, datasets.Xor, 200, 0.3)

	var published []Progress
	c.OnProgress(func(p Progress) { published = append(published, p) })
	basis := features.NewBasis(features.Toggles{X: true, Y: true, XY: true})
	require.NoError(t, c.Start(Job{Model: m, Split: split, Basis: basis, BatchSize: 16}))
	require.Equal(t, Running, c.State())

	for i := 0; i < 3; i++ {
		require.Equal(t, 1, scheduler.Flush())
	}
	require.Equal(t, 3, m.fits)
	require.Equal(t, [2]int{60, 3}, m.shapes[0])
	require.Equal(t, []int{16, 16, 16}, m.batches)
	require.Len(t, published, 3)
	require.Equal(t, 3, c.Progress().Epoch)
	require.Equal(t, "epoch 3  |  loss 0.5000  |  acc 90.0%", c.Progress().String())
	require.Equal(t, 3, c.History().Len())
	require.Equal(t, 0, arena.LiveTensors())

	c.Stop()
	require.Equal(t, Idle, c.State())
	require.Equal(t, 0, scheduler.Flush())
	require.Equal(t, 3, m.fits)
}

func TestRestartKeepsEpochCountAndResetClearsIt(t *testing.T) {
	c, scheduler, _ := newTestController(t)
	m := &scriptedModel{history: engine.History{Loss: 0.2, Metric: 0.01, MetricName: "mse"}}
	split := testSplit(t, datasets.Circle, 100, 0.5)

	require.NoError(t, c.Start(Job{Model: m, Split: split, Basis: rawBasis(), BatchSize: 8}))
	scheduler.Flush()
	require.NoError(t, c.Start(Job{Model: m, Split: split, Basis: rawBasis(), BatchSize: 4}))
	require.Equal(t, 1, scheduler.Pending())
	scheduler.Flush()

	require.Equal(t, []int{8, 4}, m.batches)
	require.Equal(t, "epoch 2  |  loss 0.2000  |  mse 0.0100", c.Progress().String())

	c.Reset()
	require.Equal(t, Idle, c.State())
	require.Equal(t, Progress{}, c.Progress())
	require.Zero(t, c.History().Len())
}

func TestCancelledTickPublishesNothingAndReleasesTensors(t *testing.T) {
	c, scheduler, arena := newTestController(t)
	m := &gatedModel{entered: make(chan struct{}), gate: make(chan struct{})}
	split := testSplit(t, datasets.Gaussian, 100, 0.5)

	published := false
	c.OnProgress(func(Progress) { published = true })
	require.NoError(t, c.Start(Job{Model: m, Split: split, Basis: rawBasis(), BatchSize: 10}))

	done := make(chan struct{})
	go func() {
		scheduler.Flush()
		close(done)
	}()
	<-m.entered
	require.Equal(t, 2, arena.LiveTensors())

	c.Stop()
	close(m.gate)
	<-done

	require.False(t, published)
	require.Zero(t, c.Progress().Epoch)
	require.Equal(t, Idle, c.State())
	require.Equal(t, 0, arena.LiveTensors())
	require.Zero(t, scheduler.Pending())
}

func TestFitFailureHaltsTheLoop(t *testing.T) {
	c, scheduler, arena := newTestController(t)
	m := &scriptedModel{err: engine.ErrDiverged}
	split := testSplit(t, datasets.Spiral, 100, 0.5)

	var halted error
	c.OnHalt(func(err error) { halted = err })
	require.NoError(t, c.Start(Job{Model: m, Split: split, Basis: rawBasis(), BatchSize: 10}))
	scheduler.Flush()

	require.ErrorIs(t, halted, engine.ErrDiverged)
	require.Equal(t, Idle, c.State())
	require.Zero(t, c.Progress().Epoch)
	require.Zero(t, scheduler.Pending())
	require.Equal(t, 0, arena.LiveTensors())
}

func TestDisposeIsTerminal(t *testing.T) {
	c, scheduler, _ := newTestController(t)
	m := &scriptedModel{}
	split := testSplit(t, datasets.Linear, 100, 0.5)

	require.NoError(t, c.Start(Job{Model: m, Split: split, Basis: rawBasis(), BatchSize: 10}))
	c.Dispose()
	require.Equal(t, Disposed, c.State())
	require.Zero(t, scheduler.Flush())
	require.ErrorIs(t, c.Start(Job{Model: m, Split: split, Basis: rawBasis(), BatchSize: 10}), ErrDisposed)
	require.Zero(t, m.fits)
}

func TestXorTrainsEndToEnd(t *testing.T) {
	c, scheduler, arena := newTestController(t)
	set, err := datasets.NewGenerator(7).Generate(datasets.Xor, 800, 0)
	require.NoError(t, err)
	split, err := datasets.NewSplit(set, 0.5)
	require.NoError(t, err)
	basis := rawBasis()

	network, err := model.Build(arena, model.Topology{
		Layers:       []int{8, 4},
		Activation:   engine.Tanh,
		LearningRate: 0.03,
	}, basis.Dim(), 1)
	require.NoError(t, err)
	defer network.Release()

	require.NoError(t, c.Start(Job{Model: network, Split: split, Basis: basis, BatchSize: 32}))
	for c.Progress().Epoch < 50 {
		require.Equal(t, 1, scheduler.Flush())
	}
	c.Stop()

	history := c.History()
	require.Equal(t, 50, history.Len())
	require.Equal(t, "acc", history.MetricName)
	require.Greater(t, history.Metric[49], 0.9)
	require.Less(t, history.Loss[49], history.Loss[0])
	// the loss falls on average over the run, not necessarily epoch by epoch
	trend, err := history.Trend(25)
	require.NoError(t, err)
	require.Less(t, trend, 0.0)
	require.Equal(t, 0, arena.LiveTensors())
}
