//Package training drives a model through repeated one-epoch fits, one per frame.
package training

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tarstars/nn_playground/golang/playground/datasets"
	"github.com/tarstars/nn_playground/golang/playground/engine"
	"github.com/tarstars/nn_playground/golang/playground/features"
	"github.com/tarstars/nn_playground/golang/playground/model"
)

var (
	//ErrNotReady is returned by Start for a job without a model or training examples.
	ErrNotReady = errors.New("training needs a model and a non-empty training split")
	//ErrDisposed is returned by Start after Dispose.
	ErrDisposed = errors.New("controller is disposed")
)

//State is the lifecycle state of a Controller.
type State int

const (
	Idle State = iota
	Running
	Disposed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

//Job is everything one run borrows. The controller never releases Model.
type Job struct {
	Model     model.Handle
	Split     *datasets.Split
	Basis     features.Basis
	BatchSize int
}

func (j Job) validate() error {
	if j.Model == nil || j.Split == nil || j.Split.Index == 0 || j.Basis.Dim() == 0 {
		return ErrNotReady
	}
	if j.BatchSize < 1 {
		return errors.Errorf("batch size must be at least 1, got %d", j.BatchSize)
	}
	return nil
}

//Progress is what the last completed epoch published.
type Progress struct {
	Epoch      int
	Loss       float64
	Metric     float64
	MetricName string
}

//String is the status line of the epoch.
func (p Progress) String() string {
	if p.MetricName == "acc" {
		return fmt.Sprintf("epoch %d  |  loss %.4f  |  acc %.1f%%", p.Epoch, p.Loss, p.Metric*100)
	}
	return fmt.Sprintf("epoch %d  |  loss %.4f  |  %s %.4f", p.Epoch, p.Loss, p.MetricName, p.Metric)
}

//Controller is the Idle -> Running -> Idle | Disposed state machine of the training
//loop. Each tick fits one epoch and, while still running, schedules the next tick.
type Controller struct {
	arena     *engine.Arena
	scheduler Scheduler
	logger    *zap.SugaredLogger

	mu         sync.Mutex
	state      State
	token      *Token
	pending    Handle
	hasPending bool
	progress   Progress
	history    History
	onProgress func(Progress)
	onHalt     func(error)
}

//NewController creates an idle controller whose ticks allocate from arena.
func NewController(arena *engine.Arena, scheduler Scheduler, logger *zap.SugaredLogger) *Controller {
	return &Controller{arena: arena, scheduler: scheduler, logger: logger}
}

//OnProgress registers a hook called after every published epoch.
func (c *Controller) OnProgress(fn func(Progress)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProgress = fn
}

//OnHalt registers a hook called when a fit failure stops the loop.
func (c *Controller) OnHalt(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onHalt = fn
}

//State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

//Progress returns the last published epoch.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

//History returns a copy of the learning curve since the last Reset.
func (c *Controller) History() History {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.clone()
}

//Start cancels any current run and begins a new one on job. Progress carries over, so
//restarting with a different batch size keeps counting epochs of the same model.
func (c *Controller) Start(job Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Disposed {
		return ErrDisposed
	}
	c.stopLocked()

	token := newToken(context.Background())
	c.token = token
	c.state = Running
	c.scheduleLocked(token, job)
	c.logger.Debugw("training started", "train_examples", job.Split.Index, "dim", job.Basis.Dim(), "batch_size", job.BatchSize)
	return nil
}

//Stop cancels the pending tick and the in-flight fit. It does not wait for the fit to
//return; whatever that fit produces is discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

//Reset stops training and forgets the progress of the previous model.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.progress = Progress{}
	c.history = History{}
}

//Dispose stops training for good.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.state = Disposed
}

func (c *Controller) stopLocked() {
	if c.token != nil {
		c.token.Cancel()
		c.token = nil
	}
	if c.hasPending {
		c.scheduler.Cancel(c.pending)
		c.hasPending = false
	}
	if c.state == Running {
		c.state = Idle
	}
}

func (c *Controller) scheduleLocked(token *Token, job Job) {
	c.pending = c.scheduler.Schedule(func() { c.tick(token, job) })
	c.hasPending = true
}

//current reports whether token still owns the loop. Callers hold c.mu.
func (c *Controller) current(token *Token) bool {
	return c.token == token && !token.Cancelled() && c.state == Running
}

func (c *Controller) tick(token *Token, job Job) {
	c.mu.Lock()
	if !c.current(token) {
		c.mu.Unlock()
		return
	}
	c.hasPending = false
	c.mu.Unlock()

	epoch, err := c.fitEpoch(token, job)

	c.mu.Lock()
	if !c.current(token) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		token.Cancel()
		c.token = nil
		c.state = Idle
		onHalt := c.onHalt
		c.mu.Unlock()

		c.logger.Errorw("training halted", "error", err)
		if onHalt != nil {
			onHalt(err)
		}
		return
	}

	c.progress = Progress{
		Epoch:      c.progress.Epoch + 1,
		Loss:       epoch.Loss,
		Metric:     epoch.Metric,
		MetricName: epoch.MetricName,
	}
	c.history.Append(epoch)
	progress := c.progress
	onProgress := c.onProgress
	c.scheduleLocked(token, job)
	c.mu.Unlock()

	c.logger.Debugf("Logloss for epoch %d: %v", progress.Epoch, progress.Loss)
	if onProgress != nil {
		onProgress(progress)
	}
}

//Tensors expands points through basis into X [k, dim] and labels into Y [k, 1]. Both
//come from arena and the caller releases them.
func Tensors(arena *engine.Arena, basis features.Basis, points []datasets.Point, labels []int) (x, y *engine.Tensor, err error) {
	x, err = arena.NewTensor(len(points), basis.Dim(), basis.ExpandPoints(points))
	if err != nil {
		return nil, nil, errors.Wrap(err, "expand features")
	}
	targets := make([]float64, len(labels))
	for i, label := range labels {
		targets[i] = float64(label)
	}
	y, err = arena.NewTensor(len(labels), 1, targets)
	if err != nil {
		x.Release()
		return nil, nil, errors.Wrap(err, "labels")
	}
	return x, y, nil
}

//fitEpoch expands the training slice into fresh tensors, fits one epoch and releases the
//tensors on every path.
func (c *Controller) fitEpoch(token *Token, job Job) (engine.History, error) {
	points, labels := job.Split.Train()
	x, y, err := Tensors(c.arena, job.Basis, points, labels)
	if err != nil {
		return engine.History{}, err
	}
	defer x.Release()
	defer y.Release()

	return job.Model.FitOneEpoch(token.Context(), x, y, job.BatchSize)
}
