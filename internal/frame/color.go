package frame

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Red is what a color string that cannot be parsed turns into. A bright red
// border is easier to notice than an error buried in a log.
var Red = color.NRGBA{R: 255, A: 255}

// ParseColor accepts "#RGB", "#RRGGBB", "#RRGGBBAA" (the "#" is optional),
// "transparent", and the SVG 1.1 color names ("black", "goldenrod", ...).
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "transparent" {
		return color.NRGBA{}, nil
	}
	if c, ok := colornames.Map[s]; ok {
		// The named colors are all opaque, so RGBA and NRGBA agree.
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}

	hex := strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parsing color %q: %w", s, err)
	}

	switch len(hex) {
	case 3:
		r, g, b := uint8(v>>8&0xf), uint8(v>>4&0xf), uint8(v&0xf)
		return color.NRGBA{R: r * 0x11, G: g * 0x11, B: b * 0x11, A: 0xff}, nil
	case 6:
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	case 8:
		return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
	}
	return color.NRGBA{}, fmt.Errorf("parsing color %q: expected 3, 6 or 8 hex digits", s)
}

// ParseColorOrRed is ParseColor with the error replaced by Red.
func ParseColorOrRed(s string) color.NRGBA {
	c, err := ParseColor(s)
	if err != nil {
		return Red
	}
	return c
}
