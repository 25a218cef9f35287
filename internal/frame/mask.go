package frame

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// maskBlurSigma softens the rounded edge by about one pixel.
const maskBlurSigma = 0.5

// maskPad is how far corner tiles reach past the radius. The blur kernel
// spans two pixels each way; it must not be cut off by a tile edge where the
// mask still varies.
const maskPad = 4

// cornerMask is the coverage of a rounded rectangle over the photo. Only the
// corners are ever partially covered, so it keeps blurred tiles around them
// and every pixel outside the tiles counts as fully covered.
type cornerMask struct {
	tiles []*image.Alpha // bounds in photo coordinates
}

// roundedMask returns the coverage of a w×h rounded rectangle of the given
// radius: 255 inside, 0 outside, blurred so the curve is anti-aliased.
//
// imaging.Blur normalizes its kernel at the image edges. A tile edge is
// either a photo edge, where that keeps the straight sides fully opaque, or
// lies maskPad pixels past the curve, where the mask is flat.
func roundedMask(w, h int, radius float64) cornerMask {
	reach := int(math.Ceil(radius)) + maskPad

	var m cornerMask
	for _, ys := range spans(h, reach) {
		for _, xs := range spans(w, reach) {
			m.tiles = append(m.tiles, maskTile(image.Rect(xs[0], ys[0], xs[1], ys[1]), w, h, radius))
		}
	}
	return m
}

// spans returns the ranges of [0, n) within reach of either end. Two ranges
// that would touch are merged into one.
func spans(n, reach int) [][2]int {
	if 2*reach >= n {
		return [][2]int{{0, n}}
	}
	return [][2]int{{0, reach}, {n - reach, n}}
}

// maskTile rasterizes the part of the w×h rounded rectangle inside r and
// blurs it.
func maskTile(r image.Rectangle, w, h int, radius float64) *image.Alpha {
	hard := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	fw, fh := float64(w), float64(h)

	for y := 0; y < r.Dy(); y++ {
		py := float64(r.Min.Y+y) + 0.5
		cy := clamp(py, radius, fh-radius)
		row := hard.Pix[y*hard.Stride : y*hard.Stride+r.Dx()]
		for x := range row {
			px := float64(r.Min.X+x) + 0.5
			// Nearest point on the inner rectangle; inside the shape iff
			// within radius of it.
			cx := clamp(px, radius, fw-radius)
			if math.Hypot(px-cx, py-cy) <= radius {
				row[x] = 0xff
			}
		}
	}

	soft := imaging.Blur(hard, maskBlurSigma)

	tile := image.NewAlpha(r)
	for y := 0; y < r.Dy(); y++ {
		src := soft.Pix[y*soft.Stride:]
		dst := tile.Pix[y*tile.Stride:]
		for x := 0; x < r.Dx(); x++ {
			dst[x] = src[x*4] // grey in, so R == G == B
		}
	}
	return tile
}

// At returns the coverage of photo pixel (x, y).
func (m cornerMask) At(x, y int) uint8 {
	p := image.Pt(x, y)
	for _, t := range m.tiles {
		if p.In(t.Rect) {
			return t.AlphaAt(x, y).A
		}
	}
	return 0xff
}

// applyCorners recomputes the canvas pixels under the partially covered parts
// of mask: the source pixel, its alpha scaled by the mask, composited over
// the border color. Fully covered pixels already hold the source.
func applyCorners(canvas *image.NRGBA, src image.Image, at image.Point, mask cornerMask, border color.NRGBA) {
	sb := src.Bounds()
	for _, tile := range mask.tiles {
		b := tile.Rect
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				m := tile.Pix[tile.PixOffset(x, y)]
				if m == 0xff {
					continue
				}
				s := color.NRGBAModel.Convert(src.At(sb.Min.X+x, sb.Min.Y+y)).(color.NRGBA)
				s.A = uint8((uint32(s.A)*uint32(m) + 127) / 255)
				canvas.SetNRGBA(at.X+x, at.Y+y, over(s, border))
			}
		}
	}
}

// over is Porter-Duff source-over for non-premultiplied colors.
func over(src, dst color.NRGBA) color.NRGBA {
	sa := float64(src.A) / 255
	da := float64(dst.A) / 255
	outA := sa + da*(1-sa)
	if outA == 0 {
		return color.NRGBA{}
	}
	mix := func(s, d uint8) uint8 {
		return uint8(math.Round((float64(s)*sa + float64(d)*da*(1-sa)) / outA))
	}
	return color.NRGBA{
		R: mix(src.R, dst.R),
		G: mix(src.G, dst.G),
		B: mix(src.B, dst.B),
		A: uint8(math.Round(outA * 255)),
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}
