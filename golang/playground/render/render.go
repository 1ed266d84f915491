//Package render paints the decision surface of a model and the sample points on a canvas.
package render

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/tarstars/nn_playground/golang/playground/datasets"
	"github.com/tarstars/nn_playground/golang/playground/engine"
	"github.com/tarstars/nn_playground/golang/playground/features"
)

//Predictor is the part of a model the renderer borrows.
type Predictor interface {
	Predict(x *engine.Tensor) (*engine.Tensor, error)
}

//Snapshot is one self-consistent view of the playground.
type Snapshot struct {
	Model          Predictor
	Basis          features.Basis
	Split          *datasets.Split
	ShowTest       bool
	GridResolution int
	Status         string
}

const (
	pointRadius = 3.5
	testSide    = 6.0
	legendStrip = 18.0
)

//ToModel maps a pixel to model space: [-1, 1] on both axes with positive y up.
func ToModel(px, py, width, height float64) (x, y float64) {
	return px/width*2 - 1, 1 - py/height*2
}

//ToPixel is the inverse of ToModel.
func ToPixel(x, y, width, height float64) (px, py float64) {
	return (x + 1) / 2 * width, (1 - (y+1)/2) * height
}

//Grid partitions a width x height surface into square cells of side Cell. The last
//row and column may hang over the edge.
type Grid struct {
	Width, Height int
	Cell          int
	Cols, Rows    int
}

//NewGrid lays cells of side cell over a width x height surface.
func NewGrid(width, height, cell int) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, errors.Errorf("invalid surface %dx%d", width, height)
	}
	if cell < 1 {
		return Grid{}, errors.Errorf("grid resolution must be at least 1, got %d", cell)
	}
	return Grid{
		Width:  width,
		Height: height,
		Cell:   cell,
		Cols:   int(math.Ceil(float64(width) / float64(cell))),
		Rows:   int(math.Ceil(float64(height) / float64(cell))),
	}, nil
}

//Cells is the number of cells in the grid.
func (g Grid) Cells() int {
	return g.Cols * g.Rows
}

//Center returns the model-space coordinates of the center of a cell.
func (g Grid) Center(col, row int) (x, y float64) {
	half := float64(g.Cell) / 2
	return ToModel(float64(col*g.Cell)+half, float64(row*g.Cell)+half, float64(g.Width), float64(g.Height))
}

//DecisionSurface predicts every cell center in one batch and returns the probabilities
//as a Rows x Cols matrix.
func DecisionSurface(arena *engine.Arena, predictor Predictor, basis features.Basis, grid Grid) (*mat.Dense, error) {
	centers := make([]datasets.Point, 0, grid.Cells())
	for r := 0; r < grid.Rows; r++ {
		for c := 0; c < grid.Cols; c++ {
			x, y := grid.Center(c, r)
			centers = append(centers, datasets.Point{X: x, Y: y})
		}
	}

	x, err := arena.NewTensor(len(centers), basis.Dim(), basis.ExpandPoints(centers))
	if err != nil {
		return nil, errors.Wrap(err, "expand grid")
	}
	defer x.Release()

	p, err := predictor.Predict(x)
	if err != nil {
		return nil, errors.Wrap(err, "predict grid")
	}
	defer p.Release()

	probs := p.Data()
	if len(probs) != grid.Cells() {
		return nil, errors.Errorf("model returned %d predictions for %d cells", len(probs), grid.Cells())
	}
	surface := mat.NewDense(grid.Rows, grid.Cols, nil)
	for i, v := range probs {
		surface.Set(i/grid.Cols, i%grid.Cols, v)
	}
	return surface, nil
}

//Renderer draws snapshots. Legend adds the class key and status line along the bottom.
type Renderer struct {
	arena  *engine.Arena
	Legend bool
}

//NewRenderer creates a renderer whose batches are allocated from arena.
func NewRenderer(arena *engine.Arena) *Renderer {
	return &Renderer{arena: arena}
}

//Render paints snap on canvas. Without a dataset nothing is drawn; without a model only
//the points are drawn.
func (r *Renderer) Render(canvas Canvas, snap Snapshot) error {
	if snap.Split == nil {
		return nil
	}
	width, height := canvas.Size()
	canvas.Clear()

	if snap.Model != nil {
		grid, err := NewGrid(width, height, snap.GridResolution)
		if err != nil {
			return err
		}
		surface, err := DecisionSurface(r.arena, snap.Model, snap.Basis, grid)
		if err != nil {
			return err
		}
		cell := float64(grid.Cell)
		for row := 0; row < grid.Rows; row++ {
			for col := 0; col < grid.Cols; col++ {
				canvas.FillRect(float64(col)*cell, float64(row)*cell, cell, cell, Palette(surface.At(row, col)))
			}
		}
	}

	drawPoints(canvas, snap, float64(width), float64(height))
	if r.Legend {
		drawLegend(canvas, snap.Status, float64(height))
	}
	return nil
}

func drawPoints(canvas Canvas, snap Snapshot, width, height float64) {
	points, labels := snap.Split.Train()
	for i, p := range points {
		px, py := ToPixel(p.X, p.Y, width, height)
		canvas.Circle(px, py, pointRadius, LabelColor(labels[i]), outline)
	}
	if !snap.ShowTest {
		return
	}
	points, labels = snap.Split.Test()
	stroke := withAlpha(outline, testAlpha)
	for i, p := range points {
		px, py := ToPixel(p.X, p.Y, width, height)
		canvas.Square(px, py, testSide, withAlpha(LabelColor(labels[i]), testAlpha), stroke)
	}
}

func drawLegend(canvas Canvas, status string, height float64) {
	baseline := height - legendStrip/2 + 4
	canvas.Circle(10, baseline-4, pointRadius, classOne, outline)
	canvas.Text("Class 1", 18, baseline, textColor)
	canvas.Circle(80, baseline-4, pointRadius, classZero, outline)
	canvas.Text("Class 0", 88, baseline, textColor)
	if status != "" {
		canvas.Text(status, 150, baseline, textColor)
	}
}
