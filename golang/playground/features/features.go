//Package features expands raw (x, y) coordinates into the input basis fed to a model.
package features

import (
	"math"

	"github.com/tarstars/nn_playground/golang/playground/datasets"
)

//Kind is one derived scalar feature.
type Kind int

const (
	X Kind = iota
	Y
	XY
	X2
	Y2
	SinX
	CosX
	SinY
	CosY
)

//Canonical is the fixed order in which enabled features appear in a vector.
var Canonical = []Kind{X, Y, XY, X2, Y2, SinX, CosX, SinY, CosY}

type definition struct {
	key   string
	label string
	eval  func(x, y float64) float64
}

var definitions = [...]definition{
	X:    {"x", "x", func(x, _ float64) float64 { return x }},
	Y:    {"y", "y", func(_, y float64) float64 { return y }},
	XY:   {"xy", "x*y", func(x, y float64) float64 { return x * y }},
	X2:   {"x2", "x^2", func(x, _ float64) float64 { return x * x }},
	Y2:   {"y2", "y^2", func(_, y float64) float64 { return y * y }},
	SinX: {"sinX", "sin(xπ)", func(x, _ float64) float64 { return math.Sin(math.Pi * x) }},
	CosX: {"cosX", "cos(xπ)", func(x, _ float64) float64 { return math.Cos(math.Pi * x) }},
	SinY: {"sinY", "sin(yπ)", func(_, y float64) float64 { return math.Sin(math.Pi * y) }},
	CosY: {"cosY", "cos(yπ)", func(_, y float64) float64 { return math.Cos(math.Pi * y) }},
}

//Eval computes the feature at (x, y).
func (k Kind) Eval(x, y float64) float64 {
	return definitions[k].eval(x, y)
}

//String returns the configuration key of the feature.
func (k Kind) String() string {
	return definitions[k].key
}

//Label is the human readable formula.
func (k Kind) Label() string {
	return definitions[k].label
}

//Toggles selects the active features.
type Toggles struct {
	X    bool `json:"x"`
	Y    bool `json:"y"`
	XY   bool `json:"xy"`
	X2   bool `json:"x2"`
	Y2   bool `json:"y2"`
	SinX bool `json:"sinX"`
	CosX bool `json:"cosX"`
	SinY bool `json:"sinY"`
	CosY bool `json:"cosY"`
}

//Enabled reports whether k is switched on.
func (t Toggles) Enabled(k Kind) bool {
	switch k {
	case X:
		return t.X
	case Y:
		return t.Y
	case XY:
		return t.XY
	case X2:
		return t.X2
	case Y2:
		return t.Y2
	case SinX:
		return t.SinX
	case CosX:
		return t.CosX
	case SinY:
		return t.SinY
	case CosY:
		return t.CosY
	}
	return false
}

//Set returns a copy of t with k switched to on.
func (t Toggles) Set(k Kind, on bool) Toggles {
	switch k {
	case X:
		t.X = on
	case Y:
		t.Y = on
	case XY:
		t.XY = on
	case X2:
		t.X2 = on
	case Y2:
		t.Y2 = on
	case SinX:
		t.SinX = on
	case CosX:
		t.CosX = on
	case SinY:
		t.SinY = on
	case CosY:
		t.CosY = on
	}
	return t
}

//Count is the number of enabled toggles.
func (t Toggles) Count() int {
	n := 0
	for _, k := range Canonical {
		if t.Enabled(k) {
			n++
		}
	}
	return n
}

//Basis is the compiled, ordered list of features for a toggle set. A model always gets at
//least two inputs: with fewer than two toggles enabled the basis is the raw (x, y) pair.
type Basis struct {
	kinds []Kind
}

var rawBasis = []Kind{X, Y}

//NewBasis compiles t.
func NewBasis(t Toggles) Basis {
	kinds := make([]Kind, 0, len(Canonical))
	for _, k := range Canonical {
		if t.Enabled(k) {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) < 2 {
		kinds = rawBasis
	}
	return Basis{kinds: kinds}
}

//Dim returns the length of every vector produced by Expand.
func (b Basis) Dim() int {
	return len(b.kinds)
}

//Kinds lists the features in vector order.
func (b Basis) Kinds() []Kind {
	out := make([]Kind, len(b.kinds))
	copy(out, b.kinds)
	return out
}

//Names lists the feature labels in vector order.
func (b Basis) Names() []string {
	names := make([]string, len(b.kinds))
	for i, k := range b.kinds {
		names[i] = k.Label()
	}
	return names
}

//Expand maps (x, y) to a feature vector.
func (b Basis) Expand(x, y float64) []float64 {
	return b.expandInto(make([]float64, len(b.kinds)), x, y)
}

func (b Basis) expandInto(dst []float64, x, y float64) []float64 {
	for i, k := range b.kinds {
		dst[i] = k.Eval(x, y)
	}
	return dst
}

//ExpandPoints expands every point into a row-major [len(points), Dim()] buffer.
func (b Basis) ExpandPoints(points []datasets.Point) []float64 {
	dim := b.Dim()
	out := make([]float64, len(points)*dim)
	for i, p := range points {
		b.expandInto(out[i*dim:(i+1)*dim], p.X, p.Y)
	}
	return out
}

//Dim is the effective dimension for a toggle set, max(count, 2).
func Dim(t Toggles) int {
	return NewBasis(t).Dim()
}

//Expand is a convenience wrapper over NewBasis(t).Expand(x, y).
func Expand(t Toggles, x, y float64) []float64 {
	return NewBasis(t).Expand(x, y)
}
