package shell

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/tarstars/nn_playground/golang/playground/datasets"
	"github.com/tarstars/nn_playground/golang/playground/engine"
	"github.com/tarstars/nn_playground/golang/playground/features"
	"github.com/tarstars/nn_playground/golang/playground/model"
)

//Settings is the single source of configuration truth of a playground session.
type Settings struct {
	Dataset        datasets.Kind     `json:"dataset"`
	Samples        int               `json:"samples"`
	Noise          float64           `json:"noise"`
	TrainSplit     float64           `json:"train_split"`
	ShowTest       bool              `json:"show_test"`
	Layers         []int             `json:"layers"`
	Activation     engine.Activation `json:"activation"`
	LearningRate   float64           `json:"learning_rate"`
	L2             float64           `json:"l2"`
	BatchSize      int               `json:"batch_size"`
	Features       features.Toggles  `json:"features"`
	GridResolution int               `json:"grid_resolution"`
	Running        bool              `json:"running"`
	ProblemType    model.Problem     `json:"problem_type"`
	Seed           int64             `json:"seed"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
}

//Option ranges.
const (
	MinSamples, MaxSamples               = 100, 5000
	MinNoise, MaxNoise                   = 0.0, 0.5
	MinTrainSplit, MaxTrainSplit         = 0.1, 0.9
	MinLearningRate, MaxLearningRate     = math.SmallestNonzeroFloat64, 0.3
	MinL2, MaxL2                         = 0.0, 0.02
	MinBatchSize, MaxBatchSize           = 4, 512
	MinGridResolution, MaxGridResolution = 3, 16
	MinSurface, MaxSurface               = 64, 2048

	NewLayerUnits = 4
)

//DefaultSettings is the configuration a session starts from.
func DefaultSettings() Settings {
	return Settings{
		Dataset:        datasets.Circle,
		Samples:        800,
		Noise:          0.05,
		TrainSplit:     0.5,
		ShowTest:       true,
		Layers:         []int{8, 4},
		Activation:     engine.Tanh,
		LearningRate:   0.03,
		L2:             0,
		BatchSize:      32,
		Features:       features.Toggles{X: true, Y: true},
		GridResolution: 8,
		Running:        false,
		ProblemType:    model.Classification,
		Seed:           1,
		Width:          512,
		Height:         512,
	}
}

//ConfigurationError reports an option value outside its domain.
type ConfigurationError struct {
	Option string
	Value  interface{}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Option, e.Value)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

//Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	s.Layers = append([]int{}, s.Layers...)
	return s
}

//Clamp pulls every numeric option into its range.
func (s *Settings) Clamp() {
	s.Samples = clampInt(s.Samples, MinSamples, MaxSamples)
	s.Noise = clampFloat(s.Noise, MinNoise, MaxNoise)
	s.TrainSplit = clampFloat(s.TrainSplit, MinTrainSplit, MaxTrainSplit)
	for i, units := range s.Layers {
		s.Layers[i] = model.ClampWidth(units)
	}
	s.LearningRate = clampFloat(s.LearningRate, MinLearningRate, MaxLearningRate)
	s.L2 = clampFloat(s.L2, MinL2, MaxL2)
	s.BatchSize = clampInt(s.BatchSize, MinBatchSize, MaxBatchSize)
	s.GridResolution = clampInt(s.GridResolution, MinGridResolution, MaxGridResolution)
	s.Width = clampInt(s.Width, MinSurface, MaxSurface)
	s.Height = clampInt(s.Height, MinSurface, MaxSurface)
}

//Validate rejects enum options that clamping cannot repair.
func (s Settings) Validate() error {
	if _, err := datasets.ParseKind(string(s.Dataset)); err != nil {
		return &ConfigurationError{Option: "dataset", Value: s.Dataset}
	}
	if _, err := engine.ParseActivation(string(s.Activation)); err != nil {
		return &ConfigurationError{Option: "activation", Value: s.Activation}
	}
	if _, err := model.ParseProblem(string(s.ProblemType)); err != nil {
		return &ConfigurationError{Option: "problem_type", Value: s.ProblemType}
	}
	return nil
}

//Topology is the model part of the settings.
func (s Settings) Topology() model.Topology {
	return model.Topology{
		Layers:       append([]int{}, s.Layers...),
		Activation:   s.Activation,
		LearningRate: s.LearningRate,
		L2:           s.L2,
		Problem:      s.ProblemType,
	}
}

func decodeConfig(srcConfig string, out interface{}) (err error) {
	file, err := os.Open(srcConfig)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

//LoadSettings overlays a JSON config file on the defaults, then clamps and validates it.
func LoadSettings(srcConfig string) (Settings, error) {
	settings := DefaultSettings()
	if err := decodeConfig(srcConfig, &settings); err != nil {
		return Settings{}, errors.Wrapf(err, "read config %s", srcConfig)
	}
	settings.Clamp()
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
