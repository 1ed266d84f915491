package training

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/tarstars/nn_playground/golang/playground/engine"
)

//History is the per-epoch learning curve of one model.
type History struct {
	MetricName string
	Loss       []float64
	Metric     []float64
}

//Append records one finished epoch.
func (h *History) Append(epoch engine.History) {
	h.MetricName = epoch.MetricName
	h.Loss = append(h.Loss, epoch.Loss)
	h.Metric = append(h.Metric, epoch.Metric)
}

//Len is the number of recorded epochs.
func (h History) Len() int {
	return len(h.Loss)
}

func (h History) clone() History {
	return History{
		MetricName: h.MetricName,
		Loss:       append([]float64(nil), h.Loss...),
		Metric:     append([]float64(nil), h.Metric...),
	}
}

//Trend is the mean loss of the last window epochs minus the mean of the window before
//them. A negative trend means the loss is still falling.
func (h History) Trend(window int) (float64, error) {
	if window < 1 {
		return 0, errors.Errorf("trend window must be positive, got %d", window)
	}
	if h.Len() < 2*window {
		return 0, errors.Errorf("trend over %d epochs needs %d, have %d", window, 2*window, h.Len())
	}
	n := h.Len()
	recent, err := stats.Mean(stats.Float64Data(h.Loss[n-window:]))
	if err != nil {
		return 0, err
	}
	before, err := stats.Mean(stats.Float64Data(h.Loss[n-2*window : n-window]))
	if err != nil {
		return 0, err
	}
	return recent - before, nil
}

//Best returns the lowest loss seen so far.
func (h History) Best() (float64, error) {
	return stats.Min(stats.Float64Data(h.Loss))
}
