package frame

import (
	"image"

	"github.com/disintegration/imaging"
)

// layout is where the caption pieces land on the canvas.
type layout struct {
	textX    float64
	baseline float64
	textW    float64
	textH    float64

	icon   *image.NRGBA // nil when there is no icon to draw
	iconAt image.Point
}

// captionLayout centers the text (and the icon, if any) horizontally on the
// canvas and vertically on the bottom border. An icon is scaled to the text
// height and the text is pushed right by half of icon+gap, so the group as a
// whole stays centered.
func captionLayout(g Geometry, face *fittedFace, line string, icon image.Image, gapRatio float64) layout {
	w, h := float64(g.Width), float64(g.Height)
	bandMid := h - float64(g.Bottom)/2

	l := layout{
		textW: textWidth(face.face, line),
		textH: face.height(),
	}
	l.textX = (w - l.textW) / 2
	bandTop := bandMid - l.textH/2
	l.baseline = bandTop + face.ascent

	if icon == nil {
		return l
	}
	scaled := scaleIcon(icon, round(l.textH))
	if scaled == nil {
		return l
	}

	iconW := float64(scaled.Bounds().Dx())
	gap := gapRatio * l.textH
	iconX := l.textX - gap/2 - iconW/2
	l.textX += gap/2 + iconW/2

	l.icon = scaled
	l.iconAt = image.Pt(round(iconX), round(bandTop))
	return l
}

// iconLayout places the icon alone, centered on the bottom border, when the
// caption line came out empty.
func iconLayout(g Geometry, icon image.Image, height float64) layout {
	scaled := scaleIcon(icon, round(height))
	if scaled == nil {
		return layout{}
	}
	b := scaled.Bounds()
	return layout{
		icon: scaled,
		iconAt: image.Pt(
			round((float64(g.Width)-float64(b.Dx()))/2),
			round(float64(g.Height)-float64(g.Bottom)/2-float64(b.Dy())/2),
		),
	}
}

// scaleIcon returns a new image of the given height with the icon's aspect
// ratio. The shared icon is only read, so concurrent compositions are safe.
func scaleIcon(icon image.Image, height int) *image.NRGBA {
	if height < 1 || icon.Bounds().Empty() {
		return nil
	}
	return imaging.Resize(icon, 0, height, imaging.Lanczos)
}
