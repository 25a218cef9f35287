package frame

import (
	"image"
	"math"
)

// Geometry is the pixel layout of a framed image: border widths and the size
// of the resulting canvas.
type Geometry struct {
	Left, Top, Right, Bottom int
	Width, Height            int
}

// Pixels converts the ratios for a w×h image. The canvas size is rounded as a
// whole, and Right/Bottom absorb the difference, so
// Width == round(w·(1+Left+Right)) exactly.
func (r Ratios) Pixels(w, h int) Geometry {
	g := Geometry{
		Left:   round(float64(w) * r.Left),
		Top:    round(float64(h) * r.Top),
		Width:  round(float64(w) * (1 + r.Left + r.Right)),
		Height: round(float64(h) * (1 + r.Top + r.Bottom)),
	}
	g.Right = g.Width - w - g.Left
	g.Bottom = g.Height - h - g.Top
	return g
}

// Interior is where the original image sits on the canvas.
func (g Geometry) Interior() image.Rectangle {
	return image.Rect(g.Left, g.Top, g.Width-g.Right, g.Height-g.Bottom)
}

// CornerRadius is ratio × the shorter canvas side, clamped so that two
// opposite corners never overlap on the image.
func (g Geometry) CornerRadius(ratio float64) float64 {
	r := ratio * float64(min(g.Width, g.Height))
	in := g.Interior()
	if limit := float64(min(in.Dx(), in.Dy())) / 2; r > limit {
		r = limit
	}
	return r
}

func round(v float64) int {
	return int(math.Round(v))
}
