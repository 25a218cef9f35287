package frame

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/fleveque/frameseal/internal/fonts"
)

// Font fitting starts at initialFontSize and rescales proportionally until the
// measured line height is within fitTolerance of the target.
const (
	initialFontSize = 14.0
	fitTolerance    = 0.0468
	maxFitAttempts  = 5

	// strokeWidthRatio is the outline offset as a fraction of the point size.
	strokeWidthRatio = 0.018
)

// MetricError means no font size could produce the requested text height.
type MetricError struct {
	Target   float64
	Measured float64
	Attempts int
	Reason   string
}

func (e *MetricError) Error() string {
	return fmt.Sprintf("font fit failed after %d attempt(s): target %.2fpx, measured %.2fpx: %s",
		e.Attempts, e.Target, e.Measured, e.Reason)
}

// fittedFace is a face whose line height matches a target.
type fittedFace struct {
	face    font.Face
	size    float64
	ascent  float64
	descent float64
}

func (f *fittedFace) height() float64 { return f.ascent + f.descent }

// fitFont searches for the point size whose ascent+descent is within
// tolerance of target. The returned face must be closed by the caller.
func fitFont(fnt *fonts.Font, target float64) (*fittedFace, error) {
	if !(target > 0) {
		return nil, &MetricError{Target: target, Reason: "target height must be positive"}
	}

	size := initialFontSize
	var measured float64
	for attempt := 1; attempt <= maxFitAttempts; attempt++ {
		face, err := fnt.Face(size)
		if err != nil {
			return nil, &MetricError{Target: target, Measured: measured, Attempts: attempt, Reason: err.Error()}
		}

		m := face.Metrics()
		ascent, descent := fixedToFloat(m.Ascent), fixedToFloat(m.Descent)
		measured = ascent + descent
		if measured <= 0 {
			face.Close()
			return nil, &MetricError{Target: target, Attempts: attempt, Reason: "font reports zero line height"}
		}

		if math.Abs(measured-target) <= target*fitTolerance {
			return &fittedFace{face: face, size: size, ascent: ascent, descent: descent}, nil
		}

		face.Close()
		size *= target / measured
	}

	return nil, &MetricError{Target: target, Measured: measured, Attempts: maxFitAttempts, Reason: "did not converge"}
}

// drawText renders line with its baseline at (x, baseline): first an outline
// at half opacity, eight offset passes, then the solid fill on top.
func drawText(dst *image.NRGBA, f *fittedFace, line string, x, baseline float64, c color.NRGBA) {
	d := &font.Drawer{Dst: dst, Face: f.face}
	origin := fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(baseline)}

	if w := floatToFixed(strokeWidthRatio * f.size); w > 0 {
		stroke := c
		stroke.A = uint8(math.Round(float64(c.A) / 2))
		d.Src = image.NewUniform(stroke)
		for _, off := range [8][2]fixed.Int26_6{
			{-w, -w}, {0, -w}, {w, -w},
			{-w, 0}, {w, 0},
			{-w, w}, {0, w}, {w, w},
		} {
			d.Dot = fixed.Point26_6{X: origin.X + off[0], Y: origin.Y + off[1]}
			d.DrawString(line)
		}
	}

	d.Src = image.NewUniform(c)
	d.Dot = origin
	d.DrawString(line)
}

// textWidth is the advance width of line in pixels.
func textWidth(face font.Face, line string) float64 {
	return fixedToFloat(font.MeasureString(face, line))
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
