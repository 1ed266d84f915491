package render

import (
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
)

//Canvas is the drawing surface the renderer paints on. Colors carry their own alpha.
type Canvas interface {
	Size() (width, height int)
	Clear()
	FillRect(x, y, w, h float64, fill color.Color)
	Circle(x, y, r float64, fill, stroke color.Color)
	Square(x, y, side float64, fill, stroke color.Color)
	Text(s string, x, y float64, c color.Color)
}

//GGCanvas paints on an in-memory gg context.
type GGCanvas struct {
	dc *gg.Context
}

//NewGGCanvas creates a transparent width x height canvas.
func NewGGCanvas(width, height int) *GGCanvas {
	return &GGCanvas{dc: gg.NewContext(width, height)}
}

//Size returns the canvas size in pixels.
func (c *GGCanvas) Size() (int, int) {
	return c.dc.Width(), c.dc.Height()
}

//Clear resets every pixel to transparent.
func (c *GGCanvas) Clear() {
	c.dc.SetColor(color.Transparent)
	c.dc.Clear()
}

//FillRect fills an axis-aligned rectangle.
func (c *GGCanvas) FillRect(x, y, w, h float64, fill color.Color) {
	c.dc.DrawRectangle(x, y, w, h)
	c.dc.SetColor(fill)
	c.dc.Fill()
}

//Circle draws a filled circle with an outline.
func (c *GGCanvas) Circle(x, y, r float64, fill, stroke color.Color) {
	c.dc.DrawCircle(x, y, r)
	c.fillAndStroke(fill, stroke)
}

//Square draws a filled square of side side centered on (x, y) with an outline.
func (c *GGCanvas) Square(x, y, side float64, fill, stroke color.Color) {
	c.dc.DrawRectangle(x-side/2, y-side/2, side, side)
	c.fillAndStroke(fill, stroke)
}

func (c *GGCanvas) fillAndStroke(fill, stroke color.Color) {
	c.dc.SetColor(fill)
	c.dc.FillPreserve()
	c.dc.SetColor(stroke)
	c.dc.SetLineWidth(1)
	c.dc.Stroke()
}

//Text writes s with its baseline starting at (x, y).
func (c *GGCanvas) Text(s string, x, y float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawString(s, x, y)
}

//Image is the canvas content.
func (c *GGCanvas) Image() image.Image {
	return c.dc.Image()
}

//EncodePNG writes the canvas to w as PNG.
func (c *GGCanvas) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}

//SavePNG writes the canvas to a PNG file.
func (c *GGCanvas) SavePNG(path string) error {
	return c.dc.SavePNG(path)
}
