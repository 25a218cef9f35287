// Package metadata reads the EXIF profile of a photo and turns single tags into
// display strings for the caption printed on the bottom border.
package metadata

import (
	"fmt"
	"io"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// Profile holds the EXIF fields the extractors know how to format.
// Zero values mean the tag is absent; EXIF never stores a zero exposure or aperture.
type Profile struct {
	Make             string
	Model            string
	LensMake         string
	LensModel        string
	Artist           string
	Copyright        string
	Software         string
	DateTimeOriginal string

	ExposureTime    float64 // seconds
	FNumber         float64
	FocalLength     float64 // millimetres
	FocalLength35mm int     // millimetres, 35mm-equivalent
	ISO             []int

	// Raw is the TIFF-structured EXIF block as stored in the file, starting
	// at the byte-order mark. For a JPEG it is the APP1 payload after the
	// "Exif\x00\x00" marker.
	Raw []byte
}

// Read decodes the EXIF block from r (a JPEG or TIFF stream).
// A non-nil error means there is no usable profile; callers treat that the
// same as a photo without metadata rather than failing the image.
func Read(r io.Reader) (*Profile, error) {
	x, err := exif.Decode(r)
	if err != nil {
		// goexif returns a partially filled *Exif together with non-critical
		// errors (e.g. one malformed tag). Keep what it could parse.
		if x == nil || exif.IsCriticalError(err) {
			return nil, fmt.Errorf("decoding exif: %w", err)
		}
	}

	p := &Profile{
		Make:             stringTag(x, exif.Make),
		Model:            stringTag(x, exif.Model),
		LensMake:         stringTag(x, exif.LensMake),
		LensModel:        stringTag(x, exif.LensModel),
		Artist:           stringTag(x, exif.Artist),
		Copyright:        stringTag(x, exif.Copyright),
		Software:         stringTag(x, exif.Software),
		DateTimeOriginal: stringTag(x, exif.DateTimeOriginal),
		ExposureTime:     ratTag(x, exif.ExposureTime),
		FNumber:          ratTag(x, exif.FNumber),
		FocalLength:      ratTag(x, exif.FocalLength),
		Raw:              x.Raw,
	}

	if tag, err := x.Get(exif.FocalLengthIn35mmFilm); err == nil {
		if v, err := tag.Int(0); err == nil {
			p.FocalLength35mm = v
		}
	}

	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		p.ISO = intValues(tag)
	}

	return p, nil
}

func stringTag(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	// Camera firmware pads ASCII tags with NULs and spaces.
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func ratTag(x *exif.Exif, field exif.FieldName) float64 {
	tag, err := x.Get(field)
	if err != nil {
		return 0
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func intValues(tag *tiff.Tag) []int {
	values := make([]int, 0, tag.Count)
	for i := 0; i < int(tag.Count); i++ {
		v, err := tag.Int(i)
		if err != nil {
			break
		}
		values = append(values, v)
	}
	return values
}
