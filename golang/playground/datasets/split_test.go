package datasets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitIndex(t *testing.T) {
	set, err := NewGenerator(2).Generate(Circle, 1000, 0.05)
	require.NoError(t, err)

	split, err := NewSplit(set, 0.3)
	require.NoError(t, err)
	require.Equal(t, 300, split.Index)

	trainPoints, trainLabels := split.Train()
	testPoints, testLabels := split.Test()
	require.Len(t, trainPoints, 300)
	require.Len(t, trainLabels, 300)
	require.Len(t, testPoints, 700)
	require.Len(t, testLabels, 700)
}

func TestSplitBounds(t *testing.T) {
	set, err := NewGenerator(2).Generate(Xor, 7, 0)
	require.NoError(t, err)

	for _, fraction := range []float64{0, 0.1, 0.5, 0.99, 1} {
		split, err := NewSplit(set, fraction)
		require.NoError(t, err)
		require.GreaterOrEqual(t, split.Index, 0)
		require.LessOrEqual(t, split.Index, set.Len())
	}

	_, err = NewSplit(set, 1.5)
	require.Error(t, err)
	_, err = NewSplit(nil, 0.5)
	require.Error(t, err)
}

func TestResplitKeepsSet(t *testing.T) {
	set, err := NewGenerator(4).Generate(Linear, 200, 0)
	require.NoError(t, err)
	split, err := NewSplit(set, 0.5)
	require.NoError(t, err)

	next, err := split.Resplit(0.25)
	require.NoError(t, err)
	require.Same(t, set, next.Set)
	require.Equal(t, 50, next.Index)
}
