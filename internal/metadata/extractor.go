package metadata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Placeholder is what an extractor returns when its tag is missing or unusable.
const Placeholder = "---"

// Separator joins the resolved fields of a caption line.
const Separator = "  "

// MaxFields is how many bindings a caption can hold.
const MaxFields = 5

// Key identifies one caption field. Go has no enums, so Key is a typed
// integer and every valid value has a row in the extractors table below.
type Key uint8

const (
	KeyManual Key = iota
	KeyCameraModel
	KeyCameraMake
	KeyLensModel
	KeyLensMake
	KeyFocalLength
	KeyFocalLength35mm
	KeyExposureTime
	KeyFNumber
	KeyISO
	KeyDateTimeOriginal
	KeyArtist
	KeyCopyright
	KeySoftware

	keyCount
)

// keyNames are the identifiers used in config files, CLI flags and the HTTP API.
var keyNames = [keyCount]string{
	KeyManual:           "manual",
	KeyCameraModel:      "camera_model",
	KeyCameraMake:       "camera_make",
	KeyLensModel:        "lens_model",
	KeyLensMake:         "lens_make",
	KeyFocalLength:      "focal_length",
	KeyFocalLength35mm:  "focal_length_35mm",
	KeyExposureTime:     "exposure_time",
	KeyFNumber:          "f_number",
	KeyISO:              "iso",
	KeyDateTimeOriginal: "date_time_original",
	KeyArtist:           "artist",
	KeyCopyright:        "copyright",
	KeySoftware:         "software",
}

// Extractor formats one field of a profile. It must accept a nil profile.
type Extractor func(p *Profile) string

// extractors is indexed by Key. KeyManual has no entry: its value is the
// binding's literal, see Resolve.
var extractors = [keyCount]Extractor{
	KeyCameraModel:      field(func(p *Profile) string { return p.Model }),
	KeyCameraMake:       field(func(p *Profile) string { return p.Make }),
	KeyLensModel:        field(func(p *Profile) string { return p.LensModel }),
	KeyLensMake:         field(func(p *Profile) string { return p.LensMake }),
	KeyFocalLength:      focalLength,
	KeyFocalLength35mm:  focalLength35mm,
	KeyExposureTime:     exposureTime,
	KeyFNumber:          fNumber,
	KeyISO:              iso,
	KeyDateTimeOriginal: field(func(p *Profile) string { return p.DateTimeOriginal }),
	KeyArtist:           field(func(p *Profile) string { return p.Artist }),
	KeyCopyright:        field(func(p *Profile) string { return p.Copyright }),
	KeySoftware:         field(func(p *Profile) string { return p.Software }),
}

// Keys returns every key in display order.
func Keys() []Key {
	keys := make([]Key, 0, keyCount)
	for k := Key(0); k < keyCount; k++ {
		keys = append(keys, k)
	}
	return keys
}

func (k Key) String() string {
	if k >= keyCount {
		return fmt.Sprintf("Key(%d)", uint8(k))
	}
	return keyNames[k]
}

// ParseKey maps a config identifier such as "exposure_time" to its Key.
func ParseKey(name string) (Key, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range keyNames {
		if n == name {
			return Key(k), nil
		}
	}
	return 0, fmt.Errorf("unknown metadata field %q", name)
}

// Binding ties a caption slot to a key. Literal is only read for KeyManual.
type Binding struct {
	Key     Key
	Literal string
}

// Resolve returns the function that produces the binding's text.
func Resolve(b Binding) Extractor {
	if b.Key == KeyManual || b.Key >= keyCount {
		literal := b.Literal
		return func(*Profile) string { return literal }
	}
	return extractors[b.Key]
}

// Line resolves the bindings against a profile and joins the non-blank
// results. Placeholders are dropped too unless keepPlaceholders is set, so a
// photo without EXIF yields "" and the caller skips drawing text.
func Line(bindings []Binding, p *Profile, keepPlaceholders bool) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		s := strings.TrimSpace(Resolve(b)(p))
		if s == "" {
			continue
		}
		if s == Placeholder && b.Key != KeyManual && !keepPlaceholders {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, Separator)
}

// field builds an extractor for a free-text tag.
func field(get func(*Profile) string) Extractor {
	return func(p *Profile) string {
		if p == nil {
			return Placeholder
		}
		if s := strings.TrimSpace(get(p)); s != "" {
			return s
		}
		return Placeholder
	}
}

func exposureTime(p *Profile) string {
	if p == nil || p.ExposureTime <= 0 {
		return Placeholder
	}
	s := p.ExposureTime
	if s > 0.37 {
		return decimal(s, 1) + " s"
	}
	return fmt.Sprintf("1/%d s", int64(math.Round(1/s)))
}

func focalLength(p *Profile) string {
	if p == nil {
		return Placeholder
	}
	f := p.FocalLength
	switch {
	case f >= 100:
		return decimal(f, 0) + " mm"
	case f >= 10:
		return decimal(f, 1) + " mm"
	case f > 0:
		return decimal(f, 2) + " mm"
	}
	return focalLength35mm(p)
}

func focalLength35mm(p *Profile) string {
	if p == nil || p.FocalLength35mm <= 0 {
		return Placeholder
	}
	return fmt.Sprintf("%d mm", p.FocalLength35mm)
}

func fNumber(p *Profile) string {
	if p == nil || p.FNumber <= 0 {
		return Placeholder
	}
	if p.FNumber >= 8 {
		return "f/" + decimal(p.FNumber, 1)
	}
	return "f/" + decimal(p.FNumber, 2)
}

func iso(p *Profile) string {
	if p == nil || len(p.ISO) == 0 || p.ISO[0] <= 0 {
		return Placeholder
	}
	return fmt.Sprintf("ISO %d", p.ISO[0])
}

// decimal renders v with at most digits fractional digits and no trailing
// zeros: decimal(2.50, 1) == "2.5", decimal(35.0, 1) == "35".
func decimal(v float64, digits int) string {
	scale := math.Pow(10, float64(digits))
	return strconv.FormatFloat(math.Round(v*scale)/scale, 'f', -1, 64)
}
