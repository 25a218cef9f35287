package frame

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/fleveque/frameseal/internal/metadata"
)

// Compositor draws frames. It holds no per-image state, so one Compositor can
// serve any number of goroutines.
type Compositor struct {
	logger *zap.Logger
}

// NewCompositor creates a Compositor. A nil logger disables logging.
func NewCompositor(logger *zap.Logger) *Compositor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{logger: logger}
}

// Compose returns img framed according to cfg, with the caption built from
// profile (which may be nil). The result is a new image unless cfg adds
// neither border nor corners, in which case img itself is returned.
//
// ctx is checked before each stage; a canceled composition returns ctx.Err()
// and no image. Once drawing starts it runs to completion.
func (c *Compositor) Compose(ctx context.Context, img image.Image, profile *metadata.Profile, cfg *Config) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.CornerRatio == 0 && cfg.Border.IsZero() {
		return img, nil
	}

	// Border.
	b := img.Bounds()
	g := cfg.Border.Pixels(b.Dx(), b.Dy())
	at := image.Pt(g.Left, g.Top)
	canvas := imaging.New(g.Width, g.Height, cfg.BorderColor)
	canvas = imaging.Overlay(canvas, img, at, 1.0)

	// Corners.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.CornerRatio > 0 {
		if r := g.CornerRadius(cfg.CornerRatio); r > 0 {
			applyCorners(canvas, img, at, roundedMask(b.Dx(), b.Dy(), r), cfg.BorderColor)
		}
	}

	// Caption.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Bottom == 0 {
		return canvas, nil
	}
	line := metadata.Line(cfg.Fields, profile, cfg.KeepPlaceholders)
	if line == "" && cfg.Icon == nil {
		return canvas, nil
	}
	target := cfg.TextHeightRatio * float64(g.Bottom)

	// Font size.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var face *fittedFace
	if line != "" {
		var err error
		if face, err = fitFont(cfg.Font, target); err != nil {
			return nil, err
		}
		defer face.face.Close()
	}

	// Layout.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var l layout
	if face != nil {
		l = captionLayout(g, face, line, cfg.Icon, cfg.IconGapRatio)
	} else {
		l = iconLayout(g, cfg.Icon, target)
	}

	// Draw.
	if l.icon != nil {
		r := l.icon.Bounds().Sub(l.icon.Bounds().Min).Add(l.iconAt)
		draw.Draw(canvas, r, l.icon, l.icon.Bounds().Min, draw.Over)
	}
	if face != nil {
		drawText(canvas, face, line, l.textX, l.baseline, cfg.TextColor)
	}

	c.logger.Debug("composed frame",
		zap.Int("width", g.Width),
		zap.Int("height", g.Height),
		zap.Int("bottom_px", g.Bottom),
		zap.String("caption", line),
		zap.Float64("font_size", fontSize(face)),
	)

	return canvas, nil
}

func fontSize(f *fittedFace) float64 {
	if f == nil {
		return 0
	}
	return f.size
}
