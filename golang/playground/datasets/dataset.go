package datasets

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

//Kind selects the geometric rule used to label generated points.
type Kind string

const (
	Circle   Kind = "circle"
	Xor      Kind = "xor"
	Gaussian Kind = "gaussian"
	Spiral   Kind = "spiral"
	Linear   Kind = "linear"
)

//Kinds lists every supported dataset shape in the order the controls present them.
func Kinds() []Kind {
	return []Kind{Circle, Xor, Gaussian, Spiral, Linear}
}

//ParseKind converts a configuration string into a Kind.
func ParseKind(name string) (Kind, error) {
	for _, kind := range Kinds() {
		if string(kind) == name {
			return kind, nil
		}
	}
	return "", errors.Errorf("unknown dataset kind %q", name)
}

//Point is a raw 2-D coordinate.
type Point struct {
	X, Y float64
}

//SampleSet is an ordered sequence of labeled points. Points[i] carries Labels[i].
type SampleSet struct {
	Points []Point
	Labels []int
}

//Len returns the number of samples.
func (set *SampleSet) Len() int {
	return len(set.Points)
}

//Shuffle permutes the samples in place with a Fisher-Yates pass, keeping every point
//paired with its label.
func (set *SampleSet) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(set.Points), func(i, j int) {
		set.Points[i], set.Points[j] = set.Points[j], set.Points[i]
		set.Labels[i], set.Labels[j] = set.Labels[j], set.Labels[i]
	})
}

func (set *SampleSet) add(p Point, label int) {
	set.Points = append(set.Points, p)
	set.Labels = append(set.Labels, label)
}

func (set *SampleSet) validate() error {
	if len(set.Points) != len(set.Labels) {
		return errors.Errorf("sample set has %d points but %d labels", len(set.Points), len(set.Labels))
	}
	return nil
}

//Generator produces labeled point clouds from a private random source.
type Generator struct {
	rng *rand.Rand
}

//NewGenerator creates a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

//Rand exposes the generator's random source so that callers can shuffle with it.
func (g *Generator) Rand() *rand.Rand {
	return g.rng
}

//Generate builds n samples of the given kind, jitters them by noise and shuffles the result.
//Spiral sets contain 2*floor(n/2) samples.
func (g *Generator) Generate(kind Kind, n int, noise float64) (*SampleSet, error) {
	if n <= 0 {
		return nil, errors.Errorf("sample count must be positive, got %d", n)
	}
	if noise < 0 || math.IsNaN(noise) {
		return nil, errors.Errorf("noise must be non-negative, got %v", noise)
	}

	var set *SampleSet
	switch kind {
	case Circle:
		set = g.circle(n, noise)
	case Xor:
		set = g.xor(n, noise)
	case Gaussian:
		set = g.gaussian(n, noise)
	case Spiral:
		set = g.spiral(n, noise)
	case Linear:
		set = g.linear(n, noise)
	default:
		return nil, errors.Errorf("unknown dataset kind %q", kind)
	}
	if err := set.validate(); err != nil {
		return nil, err
	}

	set.Shuffle(g.rng)
	return set, nil
}

func newSampleSet(capacity int) *SampleSet {
	return &SampleSet{Points: make([]Point, 0, capacity), Labels: make([]int, 0, capacity)}
}

//jitter perturbs each coordinate by uniform noise in [-noise, noise].
func (g *Generator) jitter(p Point, noise float64) Point {
	if noise <= 0 {
		return p
	}
	return Point{
		X: p.X + (g.rng.Float64()*2-1)*noise,
		Y: p.Y + (g.rng.Float64()*2-1)*noise,
	}
}

func (g *Generator) uniformSquare() Point {
	return Point{X: g.rng.Float64()*2 - 1, Y: g.rng.Float64()*2 - 1}
}

//randn draws from N(0, 1) with the Box-Muller transform.
func (g *Generator) randn() float64 {
	u, v := 0.0, 0.0
	for u == 0 {
		u = g.rng.Float64()
	}
	for v == 0 {
		v = g.rng.Float64()
	}
	return math.Sqrt(-2.0*math.Log(u)) * math.Cos(2.0*math.Pi*v)
}

func (g *Generator) circle(n int, noise float64) *SampleSet {
	set := newSampleSet(n)
	for i := 0; i < n; i++ {
		r := g.rng.Float64()
		a := g.rng.Float64() * 2 * math.Pi
		p := Point{X: math.Cos(a) * (0.2 + 0.8*r), Y: math.Sin(a) * (0.2 + 0.8*r)}
		set.add(g.jitter(p, noise), CircleLabel(p))
	}
	return set
}

func (g *Generator) xor(n int, noise float64) *SampleSet {
	set := newSampleSet(n)
	for i := 0; i < n; i++ {
		p := g.uniformSquare()
		set.add(g.jitter(p, noise), XorLabel(p))
	}
	return set
}

//gaussianCenters are indexed by label.
var gaussianCenters = [2]Point{{-0.5, -0.5}, {0.5, 0.5}}

const gaussianSpread = 0.3

func (g *Generator) gaussian(n int, noise float64) *SampleSet {
	set := newSampleSet(n)
	for i := 0; i < n; i++ {
		c := 1
		if g.rng.Float64() < 0.5 {
			c = 0
		}
		p := Point{
			X: gaussianCenters[c].X + g.randn()*gaussianSpread,
			Y: gaussianCenters[c].Y + g.randn()*gaussianSpread,
		}
		set.add(g.jitter(p, noise), c)
	}
	return set
}

const spiralTurns = 4.5

func (g *Generator) spiral(n int, noise float64) *SampleSet {
	m := n / 2
	set := newSampleSet(2 * m)
	for i := 0; i < m; i++ {
		r := float64(i) / float64(m)
		t := spiralTurns * r * math.Pi
		set.add(g.jitter(Point{X: r * math.Cos(t), Y: r * math.Sin(t)}, noise), 1)
		set.add(g.jitter(Point{X: r * math.Cos(t+math.Pi), Y: r * math.Sin(t+math.Pi)}, noise), 0)
	}
	return set
}

func (g *Generator) linear(n int, noise float64) *SampleSet {
	set := newSampleSet(n)
	for i := 0; i < n; i++ {
		p := g.uniformSquare()
		set.add(g.jitter(p, noise), LinearLabel(p))
	}
	return set
}

const (
	circleRadius    = 0.5
	linearSlope     = 0.5
	linearIntercept = 0.0
)

//CircleLabel is 1 inside the circle of radius 0.5 around the origin.
func CircleLabel(p Point) int {
	if math.Hypot(p.X, p.Y) < circleRadius {
		return 1
	}
	return 0
}

//XorLabel is 1 in the first and third quadrants.
func XorLabel(p Point) int {
	if p.X*p.Y > 0 {
		return 1
	}
	return 0
}

//LinearLabel is 1 above the line y = 0.5x.
func LinearLabel(p Point) int {
	if p.Y > linearSlope*p.X+linearIntercept {
		return 1
	}
	return 0
}
