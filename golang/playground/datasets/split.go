package datasets

import (
	"math"

	"github.com/pkg/errors"
)

//Split is a positional train/test partition of one SampleSet. It keeps a pointer to the
//set it was computed from, so an index can never be paired with a different set.
type Split struct {
	Set      *SampleSet
	Index    int
	Fraction float64
}

//NewSplit computes Index = floor(N * fraction) for set.
func NewSplit(set *SampleSet, fraction float64) (*Split, error) {
	if set == nil {
		return nil, errors.New("split of a nil sample set")
	}
	if fraction < 0 || fraction > 1 || math.IsNaN(fraction) {
		return nil, errors.Errorf("train split must be in [0, 1], got %v", fraction)
	}
	index := int(math.Floor(float64(set.Len()) * fraction))
	if index > set.Len() {
		index = set.Len()
	}
	return &Split{Set: set, Index: index, Fraction: fraction}, nil
}

//Resplit recomputes the index over the same set for a new fraction.
func (s *Split) Resplit(fraction float64) (*Split, error) {
	return NewSplit(s.Set, fraction)
}

//Train returns the points and labels in [0, Index).
func (s *Split) Train() ([]Point, []int) {
	return s.Set.Points[:s.Index], s.Set.Labels[:s.Index]
}

//Test returns the points and labels in [Index, N).
func (s *Split) Test() ([]Point, []int) {
	return s.Set.Points[s.Index:], s.Set.Labels[s.Index:]
}
