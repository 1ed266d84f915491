package datasets

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSizesAndLabels(t *testing.T) {
	g := NewGenerator(7)
	for _, kind := range Kinds() {
		for _, n := range []int{2, 3, 100, 801} {
			set, err := g.Generate(kind, n, 0.1)
			require.NoError(t, err)

			want := n
			if kind == Spiral {
				want = 2 * (n / 2)
			}
			require.Equal(t, want, len(set.Points), "kind %s n %d", kind, n)
			require.Equal(t, want, len(set.Labels), "kind %s n %d", kind, n)
			for _, label := range set.Labels {
				require.Contains(t, []int{0, 1}, label)
			}
		}
	}
}

func TestGeometricRulesWithoutNoise(t *testing.T) {
	g := NewGenerator(11)
	rules := map[Kind]func(Point) int{
		Circle: CircleLabel,
		Xor:    XorLabel,
		Linear: LinearLabel,
	}
	for kind, rule := range rules {
		set, err := g.Generate(kind, 1000, 0)
		require.NoError(t, err)
		for i, p := range set.Points {
			require.Equal(t, rule(p), set.Labels[i], "kind %s point %v", kind, p)
		}
	}
}

func TestCircleRadiusRange(t *testing.T) {
	set, err := NewGenerator(3).Generate(Circle, 500, 0)
	require.NoError(t, err)
	for i, p := range set.Points {
		r := math.Hypot(p.X, p.Y)
		require.GreaterOrEqual(t, r, 0.2-1e-12)
		require.LessOrEqual(t, r, 1.0+1e-12)
		require.Equal(t, r < 0.5, set.Labels[i] == 1)
	}
}

func TestSpiralArmsAreRotatedCopies(t *testing.T) {
	set, err := NewGenerator(5).Generate(Spiral, 200, 0)
	require.NoError(t, err)

	type key struct{ x, y int64 }
	quantize := func(p Point) key {
		return key{int64(math.Round(p.X * 1e9)), int64(math.Round(p.Y * 1e9))}
	}
	zeros := map[key]bool{}
	ones := 0
	for i, p := range set.Points {
		if set.Labels[i] == 0 {
			zeros[quantize(p)] = true
		} else {
			ones++
		}
	}
	require.Equal(t, 100, ones)
	for i, p := range set.Points {
		if set.Labels[i] == 1 {
			require.True(t, zeros[quantize(Point{-p.X, -p.Y})], "no rotated twin for %v", p)
		}
	}
}

func TestGaussianIsRoughlyBalanced(t *testing.T) {
	set, err := NewGenerator(13).Generate(Gaussian, 2000, 0)
	require.NoError(t, err)
	ones := 0
	for i, p := range set.Points {
		ones += set.Labels[i]
		c := gaussianCenters[set.Labels[i]]
		require.Less(t, math.Abs(p.X-c.X), 6*gaussianSpread)
	}
	require.InDelta(t, 1000, ones, 150)
}

func TestLabelsComeFromCleanGeometry(t *testing.T) {
	const noise = 0.1
	set, err := NewGenerator(21).Generate(Xor, 2000, noise)
	require.NoError(t, err)

	disagreements := 0
	for i, p := range set.Points {
		if math.Abs(p.X) > noise && math.Abs(p.Y) > noise {
			require.Equal(t, XorLabel(p), set.Labels[i], "point %v", p)
			continue
		}
		if XorLabel(p) != set.Labels[i] {
			disagreements++
		}
	}
	require.Greater(t, disagreements, 0, "jitter near the axes should move some points across the boundary")
}

func TestShuffleIsPermutation(t *testing.T) {
	set, err := NewGenerator(1).Generate(Spiral, 400, 0.2)
	require.NoError(t, err)

	type triple struct {
		x, y  float64
		label int
	}
	collect := func(s *SampleSet) []triple {
		out := make([]triple, s.Len())
		for i := range s.Points {
			out[i] = triple{s.Points[i].X, s.Points[i].Y, s.Labels[i]}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].x != out[j].x {
				return out[i].x < out[j].x
			}
			return out[i].y < out[j].y
		})
		return out
	}

	before := collect(set)
	set.Shuffle(rand.New(rand.NewSource(99)))
	require.Equal(t, before, collect(set))
}

func TestGenerateRejectsBadInput(t *testing.T) {
	g := NewGenerator(1)
	_, err := g.Generate(Circle, 0, 0)
	require.Error(t, err)
	_, err = g.Generate(Circle, 10, -0.1)
	require.Error(t, err)
	_, err = g.Generate(Kind("moons"), 10, 0)
	require.Error(t, err)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("spiral")
	require.NoError(t, err)
	require.Equal(t, Spiral, kind)
	_, err = ParseKind("blobs")
	require.Error(t, err)
}
