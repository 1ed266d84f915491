//Package shell owns the playground session: settings, sample set, model and training loop.
//Every change goes through one mutation point that regenerates data, rebuilds the model
//and restarts training as the dependency functions dictate.
package shell

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/tarstars/nn_playground/golang/playground/datasets"
	"github.com/tarstars/nn_playground/golang/playground/engine"
	"github.com/tarstars/nn_playground/golang/playground/features"
	"github.com/tarstars/nn_playground/golang/playground/model"
	"github.com/tarstars/nn_playground/golang/playground/render"
	"github.com/tarstars/nn_playground/golang/playground/training"
)

var (
	//ErrNoModel is returned when a session has no model to draw or evaluate.
	ErrNoModel = errors.New("no model")
	//ErrClosed is returned by every mutation after Close.
	ErrClosed = errors.New("session is closed")
)

//Shell is one playground session. It owns the settings, the sample set, the model and the
//training controller, and is safe for concurrent use.
type Shell struct {
	arena      *engine.Arena
	controller *training.Controller
	renderer   *render.Renderer
	logger     *zap.SugaredLogger

	mu        sync.Mutex
	settings  Settings
	generator *datasets.Generator
	split     *datasets.Split
	basis     features.Basis
	network   *engine.Network
	builds    int64
	halted    error
	closed    bool
}

//New creates a session that allocates from arena and trains on scheduler frames. Init
//must be called before anything else.
func New(arena *engine.Arena, scheduler training.Scheduler, logger *zap.SugaredLogger) *Shell {
	s := &Shell{
		arena:      arena,
		controller: training.NewController(arena, scheduler, logger.Named("training")),
		renderer:   render.NewRenderer(arena),
		logger:     logger,
	}
	s.renderer.Legend = true
	s.controller.OnHalt(s.onHalt)
	return s
}

//Init installs the first configuration: data, model and, if requested, the training loop.
func (s *Shell) Init(settings Settings) error {
	settings = settings.Clone()
	settings.Clamp()
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.settings = settings
	s.generator = datasets.NewGenerator(settings.Seed)
	if err := s.regenerateLocked(); err != nil {
		return err
	}
	if err := s.rebuildLocked(); err != nil {
		return err
	}
	if settings.Running {
		return s.startLocked()
	}
	return nil
}

//Settings returns a copy of the current settings.
func (s *Shell) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

//Update applies mutate to a copy of the settings, clamps and validates the result and
//reconciles data, model and training with it. On a validation error nothing changes.
func (s *Shell) Update(mutate func(*Settings)) error {
	return s.update(func(settings *Settings) error {
		mutate(settings)
		return nil
	})
}

func (s *Shell) update(mutate func(*Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	next := s.settings.Clone()
	if err := mutate(&next); err != nil {
		return err
	}
	next.Clamp()
	if err := next.Validate(); err != nil {
		return err
	}
	prev := s.settings
	s.settings = next
	return s.reconcileLocked(prev, next)
}

//Patch overlays a JSON object of settings on the current ones, as Update does.
func (s *Shell) Patch(patch []byte) error {
	return s.update(func(settings *Settings) error {
		decoder := json.NewDecoder(bytes.NewReader(patch))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(settings); err != nil {
			return &ConfigurationError{Option: "settings", Value: err}
		}
		return nil
	})
}

func (s *Shell) reconcileLocked(prev, next Settings) error {
	restart := ShouldRestartTraining(prev, next)
	if restart {
		s.controller.Stop()
	}

	if prev.Seed != next.Seed {
		s.generator = datasets.NewGenerator(next.Seed)
	}
	switch {
	case ShouldRegenerate(prev, next):
		if err := s.regenerateLocked(); err != nil {
			return err
		}
	case ShouldResplit(prev, next):
		split, err := s.split.Resplit(next.TrainSplit)
		if err != nil {
			return err
		}
		s.split = split
	}

	if ShouldRebuildModel(prev, next) {
		if err := s.rebuildLocked(); err != nil {
			return err
		}
	}
	if restart && next.Running {
		return s.startLocked()
	}
	return nil
}

//Regenerate draws a new sample set with the current settings.
func (s *Shell) Regenerate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.controller.Stop()
	if err := s.regenerateLocked(); err != nil {
		return err
	}
	if s.settings.Running {
		return s.startLocked()
	}
	return nil
}

//ResetModel stops training and replaces the model with a freshly initialized one.
func (s *Shell) ResetModel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.settings.Running = false
	s.controller.Stop()
	return s.rebuildLocked()
}

//SetRunning switches training on or off.
func (s *Shell) SetRunning(on bool) error {
	return s.Update(func(settings *Settings) { settings.Running = on })
}

//ToggleRunning flips the training switch and returns the new state.
func (s *Shell) ToggleRunning() (bool, error) {
	var running bool
	err := s.Update(func(settings *Settings) {
		settings.Running = !settings.Running
		running = settings.Running
	})
	return running, err
}

//AddLayer appends a hidden layer of NewLayerUnits units.
func (s *Shell) AddLayer() error {
	return s.Update(func(settings *Settings) { settings.Layers = append(settings.Layers, NewLayerUnits) })
}

//RemoveLayer drops the hidden layer at idx.
func (s *Shell) RemoveLayer(idx int) error {
	return s.update(func(settings *Settings) error {
		if err := checkLayer(settings, idx); err != nil {
			return err
		}
		settings.Layers = append(settings.Layers[:idx], settings.Layers[idx+1:]...)
		return nil
	})
}

//SetLayerUnits resizes one hidden layer; units are clamped to [1, 64].
func (s *Shell) SetLayerUnits(idx, units int) error {
	return s.update(func(settings *Settings) error {
		if err := checkLayer(settings, idx); err != nil {
			return err
		}
		settings.Layers[idx] = units
		return nil
	})
}

func checkLayer(settings *Settings, idx int) error {
	if idx < 0 || idx >= len(settings.Layers) {
		return &ConfigurationError{Option: "layer index", Value: idx}
	}
	return nil
}

func (s *Shell) regenerateLocked() error {
	set, err := s.generator.Generate(s.settings.Dataset, s.settings.Samples, s.settings.Noise)
	if err != nil {
		return errors.Wrap(err, "generate dataset")
	}
	split, err := datasets.NewSplit(set, s.settings.TrainSplit)
	if err != nil {
		return err
	}
	s.split = split
	s.logger.Debugw("dataset generated", "dataset", s.settings.Dataset, "samples", set.Len(), "train", split.Index)
	return nil
}

//rebuildLocked releases the current model before building its replacement and resets
//the epoch counter.
func (s *Shell) rebuildLocked() error {
	s.controller.Reset()
	s.halted = nil
	if s.network != nil {
		s.network.Release()
		s.network = nil
	}

	s.basis = features.NewBasis(s.settings.Features)
	s.builds++
	network, err := model.Build(s.arena, s.settings.Topology(), s.basis.Dim(), s.settings.Seed+s.builds)
	if err != nil {
		return err
	}
	s.network = network
	s.logger.Debugw("model built", "layers", s.settings.Layers, "activation", s.settings.Activation, "inputs", s.basis.Names())
	return nil
}

func (s *Shell) startLocked() error {
	s.halted = nil
	if s.network == nil {
		s.settings.Running = false
		return ErrNoModel
	}
	err := s.controller.Start(training.Job{
		Model:     s.network,
		Split:     s.split,
		Basis:     s.basis,
		BatchSize: s.settings.BatchSize,
	})
	if err != nil {
		s.settings.Running = false
		return err
	}
	return nil
}

func (s *Shell) onHalt(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = err
	s.settings.Running = false
}

//Status is the one-line session summary shown under the canvas.
func (s *Shell) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Shell) statusLocked() string {
	if s.halted != nil {
		return "training halted: " + s.halted.Error()
	}
	progress := s.controller.Progress()
	if progress.Epoch == 0 {
		return "idle"
	}
	return progress.String()
}

//Progress is the last published epoch of the current model.
func (s *Shell) Progress() training.Progress {
	return s.controller.Progress()
}

//History is the learning curve of the current model.
func (s *Shell) History() training.History {
	return s.controller.History()
}

//Render draws the current session on canvas from one consistent snapshot.
func (s *Shell) Render(canvas render.Canvas) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := render.Snapshot{
		Basis:          s.basis,
		Split:          s.split,
		ShowTest:       s.settings.ShowTest,
		GridResolution: s.settings.GridResolution,
		Status:         s.statusLocked(),
	}
	if s.network != nil {
		snapshot.Model = s.network
	}
	return s.renderer.Render(canvas, snapshot)
}

//Surface returns the grid over the configured canvas size and the model's probability
//at every cell center, one row of the matrix per grid row.
func (s *Shell) Surface() (render.Grid, *mat.Dense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.network == nil {
		return render.Grid{}, nil, ErrNoModel
	}
	grid, err := render.NewGrid(s.settings.Width, s.settings.Height, s.settings.GridResolution)
	if err != nil {
		return render.Grid{}, nil, err
	}
	surface, err := render.DecisionSurface(s.arena, s.network, s.basis, grid)
	return grid, surface, err
}

//Evaluate scores the current model on both sides of the split without training. test
//is zero when the split leaves no test points.
func (s *Shell) Evaluate() (train, test engine.History, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.network == nil || s.split == nil {
		return train, test, ErrNoModel
	}
	if train, err = s.evaluateLocked(s.split.Train()); err != nil {
		return train, test, err
	}
	if s.split.Index < s.split.Set.Len() {
		test, err = s.evaluateLocked(s.split.Test())
	}
	return train, test, err
}

func (s *Shell) evaluateLocked(points []datasets.Point, labels []int) (engine.History, error) {
	x, y, err := training.Tensors(s.arena, s.basis, points, labels)
	if err != nil {
		return engine.History{}, err
	}
	defer x.Release()
	defer y.Release()
	return s.network.Evaluate(x, y)
}

//RenderTopology writes the current model as a graph in figureType (png, svg or jpg).
func (s *Shell) RenderTopology(w io.Writer, figureType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.network == nil {
		return ErrNoModel
	}
	return s.network.RenderTopology(w, s.basis.Names(), figureType)
}

//Close stops training for good and releases the model.
func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.controller.Dispose()
	if s.network != nil {
		s.network.Release()
		s.network = nil
	}
}
