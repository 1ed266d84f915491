package render

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	negativeHue = colorful.Color{R: 1, G: 0, B: 140.0 / 255}
	positiveHue = colorful.Color{R: 0, G: 1, B: 140.0 / 255}

	classOne  = mustHex("#9ef0a7")
	classZero = mustHex("#ff9e9e")
	outline   = mustHex("#0b0f20")
	textColor = mustHex("#e6e8f0")
)

const (
	surfaceAlpha = 0.20
	testAlpha    = 0.65
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func withAlpha(c colorful.Color, alpha float64) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(alpha * 255))}
}

//Palette maps a predicted probability to the semi-transparent surface color, blending
//from magenta at 0 to green at 1.
func Palette(p float64) color.NRGBA {
	if math.IsNaN(p) {
		p = 0
	}
	p = math.Max(0, math.Min(1, p))
	return withAlpha(negativeHue.BlendRgb(positiveHue, p), surfaceAlpha)
}

//LabelColor is the fill used for points of the given class.
func LabelColor(label int) colorful.Color {
	if label != 0 {
		return classOne
	}
	return classZero
}
