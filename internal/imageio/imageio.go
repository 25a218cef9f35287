// Package imageio reads photos from disk or memory into a decoded image plus
// its EXIF profile.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	// Go note: image.Decode only knows the formats whose packages have been
	// imported. The blank imports run each package's init, which registers
	// its decoder; nothing else from them is used here.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"

	"github.com/fleveque/frameseal/internal/metadata"
)

// MaxPixels bounds width×height of the images Decode accepts. It is checked
// against the header, before any pixel memory is allocated; at 4 bytes per
// pixel the limit allows for an 800 MB bitmap.
const MaxPixels = 200_000_000

// maxExifBytes is the largest EXIF block a JPEG APP1 segment can carry,
// after its length field and the "Exif\x00\x00" marker.
const maxExifBytes = 0xFFFF - 2 - 6

// ErrTooLarge is returned for images whose decoded bitmap would exceed the
// size limits.
var ErrTooLarge = errors.New("image too large")

// Photo is a decoded input image.
type Photo struct {
	Image   image.Image
	Profile *metadata.Profile // nil when the file carries no readable EXIF
	Format  string            // "jpeg", "png", "bmp", "tiff" or "webp"

	// Exif is the TIFF-structured EXIF block to carry into outputs, nil when
	// there is none or it is too large to embed. When the pixels were
	// rotated upright, its orientation tag already says so.
	Exif []byte
}

// Load reads and decodes the file at path.
func Load(path string, autoOrient bool) (*Photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	p, err := Decode(data, autoOrient)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Decode decodes an in-memory image. With autoOrient set, the EXIF
// orientation tag is applied so the pixels come out upright.
func Decode(data []byte, autoOrient bool) (*Photo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("detecting image format: %w", err)
	}
	if err := CheckSize(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(autoOrient))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}

	// A missing or broken EXIF block is normal (screenshots, exports) and
	// only means the caption has nothing to show.
	profile, err := metadata.Read(bytes.NewReader(data))
	if err != nil {
		profile = nil
	}

	p := &Photo{Image: img, Profile: profile, Format: format}
	// Only JPEG keeps EXIF in a block of its own; a TIFF file's "block" is
	// the whole file. imaging applies the orientation of JPEG input only.
	if profile != nil && format == "jpeg" && len(profile.Raw) <= maxExifBytes {
		p.Exif = profile.Raw
		if autoOrient {
			p.Exif = metadata.WithUprightOrientation(profile.Raw)
		}
	}
	return p, nil
}

// CheckSize returns an error wrapping ErrTooLarge when a w×h image has more
// than MaxPixels pixels.
func CheckSize(w, h int) error {
	if int64(w)*int64(h) > MaxPixels {
		return fmt.Errorf("%dx%d is over %d pixels: %w", w, h, MaxPixels, ErrTooLarge)
	}
	return nil
}

// Thumbnail scales img down so that its longer edge is at most maxEdge.
// Smaller images, and maxEdge <= 0, return img as is.
func Thumbnail(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	if maxEdge <= 0 || (b.Dx() <= maxEdge && b.Dy() <= maxEdge) {
		return img
	}
	return imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
}
