package render

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarstars/nn_playground/golang/playground/datasets"
	"github.com/tarstars/nn_playground/golang/playground/engine"
	"github.com/tarstars/nn_playground/golang/playground/features"
	"github.com/tarstars/nn_playground/golang/playground/model"
)

type recordingCanvas struct {
	width, height int
	clears        int
	rects         []color.Color
	circles       int
	squares       int
	texts         []string
}

func (c *recordingCanvas) Size() (int, int) { return c.width, c.height }
func (c *recordingCanvas) Clear()           { c.clears++ }
func (c *recordingCanvas) FillRect(x, y, w, h float64, fill color.Color) {
	c.rects = append(c.rects, fill)
}
func (c *recordingCanvas) Circle(x, y, r float64, fill, stroke color.Color)    { c.circles++ }
func (c *recordingCanvas) Square(x, y, side float64, fill, stroke color.Color) { c.squares++ }
func (c *recordingCanvas) Text(s string, x, y float64, col color.Color)         { c.texts = append(c.texts, s) }

//constantModel predicts the same probability everywhere.
type constantModel struct {
	arena *engine.Arena
	p     float64
	calls int
}

func (m *constantModel) Predict(x *engine.Tensor) (*engine.Tensor, error) {
	m.calls++
	rows, _ := x.Shape()
	out := make([]float64, rows)
	for i := range out {
		out[i] = m.p
	}
	return m.arena.NewTensor(rows, 1, out)
}

func sampleSplit(t *testing.T) *datasets.Split {
	t.Helper()
	set, err := datasets.NewGenerator(1).Generate(datasets.Circle, 100, 0)
	require.NoError(t, err)
	split, err := datasets.NewSplit(set, 0.3)
	require.NoError(t, err)
	return split
}

func TestGridCellCount(t *testing.T) {
	grid, err := NewGrid(100, 50, 8)
	require.NoError(t, err)
	require.Equal(t, 13, grid.Cols)
	require.Equal(t, 7, grid.Rows)
	require.Equal(t, 91, grid.Cells())

	grid, err = NewGrid(96, 48, 16)
	require.NoError(t, err)
	require.Equal(t, 18, grid.Cells())

	_, err = NewGrid(10, 10, 0)
	require.Error(t, err)
}

func TestPixelModelMapping(t *testing.T) {
	x, y := ToModel(0, 0, 200, 100)
	require.Equal(t, -1.0, x)
	require.Equal(t, 1.0, y)
	x, y = ToModel(200, 100, 200, 100)
	require.Equal(t, 1.0, x)
	require.Equal(t, -1.0, y)

	px, py := ToPixel(0.25, -0.5, 200, 100)
	x, y = ToModel(px, py, 200, 100)
	require.InDelta(t, 0.25, x, 1e-12)
	require.InDelta(t, -0.5, y, 1e-12)

	grid, err := NewGrid(40, 40, 20)
	require.NoError(t, err)
	x, y = grid.Center(0, 0)
	require.Equal(t, -0.5, x)
	require.Equal(t, 0.5, y)
}

func TestPaletteEndpoints(t *testing.T) {
	require.Equal(t, color.NRGBA{R: 255, G: 0, B: 140, A: 51}, Palette(0))
	require.Equal(t, color.NRGBA{R: 0, G: 255, B: 140, A: 51}, Palette(1))
	require.Equal(t, Palette(1), Palette(3))
	require.Equal(t, Palette(0), Palette(-1))
}

func TestRenderSurfaceAndPoints(t *testing.T) {
	arena := engine.NewArena()
	m := &constantModel{arena: arena, p: 1}
	canvas := &recordingCanvas{width: 100, height: 50}
	split := sampleSplit(t)

	err := NewRenderer(arena).Render(canvas, Snapshot{
		Model:          m,
		Basis:          features.NewBasis(features.Toggles{X: true, Y: true}),
		Split:          split,
		ShowTest:       true,
		GridResolution: 8,
	})
	require.NoError(t, err)

	require.Equal(t, 1, m.calls)
	require.Len(t, canvas.rects, 91)
	for _, c := range canvas.rects {
		require.Equal(t, Palette(1), c)
	}
	require.Equal(t, 30, canvas.circles)
	require.Equal(t, 70, canvas.squares)
	require.Equal(t, 0, arena.LiveTensors())
}

func TestRenderWithoutModelDrawsOnlyPoints(t *testing.T) {
	canvas := &recordingCanvas{width: 64, height: 64}
	err := NewRenderer(engine.NewArena()).Render(canvas, Snapshot{Split: sampleSplit(t), GridResolution: 8})
	require.NoError(t, err)

	require.Empty(t, canvas.rects)
	require.Equal(t, 30, canvas.circles)
	require.Zero(t, canvas.squares)
}

func TestRenderWithoutDatasetIsNoop(t *testing.T) {
	arena := engine.NewArena()
	m := &constantModel{arena: arena, p: 0.5}
	canvas := &recordingCanvas{width: 64, height: 64}
	require.NoError(t, NewRenderer(arena).Render(canvas, Snapshot{Model: m, GridResolution: 8}))

	require.Zero(t, canvas.clears)
	require.Zero(t, m.calls)
	require.Empty(t, canvas.rects)
}

func TestLegendShowsStatus(t *testing.T) {
	canvas := &recordingCanvas{width: 64, height: 64}
	r := NewRenderer(engine.NewArena())
	r.Legend = true
	require.NoError(t, r.Render(canvas, Snapshot{Split: sampleSplit(t), Status: "idle"}))
	require.Equal(t, []string{"Class 1", "Class 0", "idle"}, canvas.texts)
}

func TestRenderNetworkToPNG(t *testing.T) {
	arena := engine.NewArena()
	basis := features.NewBasis(features.Toggles{X: true, Y: true, X2: true, Y2: true})
	network, err := model.Build(arena, model.Topology{Layers: []int{4}, Activation: engine.Tanh, LearningRate: 0.03}, basis.Dim(), 1)
	require.NoError(t, err)
	defer network.Release()

	surface, err := DecisionSurface(arena, network, basis, Grid{Width: 32, Height: 32, Cell: 8, Cols: 4, Rows: 4})
	require.NoError(t, err)
	rows, cols := surface.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, 4, cols)

	canvas := NewGGCanvas(48, 32)
	require.NoError(t, NewRenderer(arena).Render(canvas, Snapshot{Model: network, Basis: basis, Split: sampleSplit(t), GridResolution: 8}))
	var buf bytes.Buffer
	require.NoError(t, canvas.EncodePNG(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 48, img.Bounds().Dx())
	require.Equal(t, 0, arena.LiveTensors())
}
