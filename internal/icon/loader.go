package icon

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"go.uber.org/zap"

	"github.com/fleveque/frameseal/internal/imageio"
)

// SVGRasterHeight is the height SVG icons are rasterized at. The compositor
// scales icons down to the caption height, so this only needs to be larger
// than any realistic caption.
const SVGRasterHeight = 512

// maxSVGAspect bounds width/height of an SVG viewBox. The raster width
// follows from it, so this also caps the raster at 16×512 pixels wide.
const maxSVGAspect = 16

// Loader resolves icon references through its sources, in order.
type Loader struct {
	sources []Source
	logger  *zap.Logger
}

// NewLoader creates a Loader that reads http(s) URLs and local paths.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		sources: []Source{NewHTTPSource(nil), FileSource{}},
		logger:  logger,
	}
}

// Load fetches and decodes the icon behind ref. An empty ref means no icon
// and returns (nil, nil).
func (l *Loader) Load(ctx context.Context, ref string) (image.Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	for _, src := range l.sources {
		if !src.Accepts(ref) {
			continue
		}

		data, err := src.Fetch(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("loading icon %s: %w", ref, err)
		}

		img, err := Decode(data, ref)
		if err != nil {
			return nil, fmt.Errorf("loading icon %s: %w", ref, err)
		}

		l.logger.Debug("icon loaded",
			zap.String("source", src.Name()),
			zap.String("ref", ref),
			zap.Int("width", img.Bounds().Dx()),
			zap.Int("height", img.Bounds().Dy()),
		)
		return img, nil
	}

	return nil, fmt.Errorf("no icon source accepts %q", ref)
}

// Decode turns icon bytes into an image. name is only used to recognize SVG
// by extension; SVG content is also sniffed.
func Decode(data []byte, name string) (image.Image, error) {
	if isSVG(data, name) {
		return rasterizeSVG(data, SVGRasterHeight)
	}

	p, err := imageio.Decode(data, false)
	if err != nil {
		return nil, err
	}
	return p.Image, nil
}

func isSVG(data []byte, name string) bool {
	if strings.EqualFold(filepath.Ext(name), ".svg") {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// rasterizeSVG draws an SVG at the given height, keeping the viewBox aspect.
func rasterizeSVG(data []byte, height int) (image.Image, error) {
	ic, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parsing svg: %w", err)
	}
	if ic.ViewBox.W <= 0 || ic.ViewBox.H <= 0 {
		return nil, fmt.Errorf("parsing svg: empty viewBox")
	}

	aspect := ic.ViewBox.W / ic.ViewBox.H
	if !(aspect <= maxSVGAspect) { // also catches NaN and +Inf
		return nil, fmt.Errorf("svg viewBox %gx%g is wider than %d:1: %w",
			ic.ViewBox.W, ic.ViewBox.H, maxSVGAspect, imageio.ErrTooLarge)
	}

	width := int(float64(height)*aspect + 0.5)
	if width < 1 {
		width = 1
	}
	ic.SetTarget(0, 0, float64(width), float64(height))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	ic.Draw(rasterx.NewDasher(width, height, scanner), 1)
	return img, nil
}
