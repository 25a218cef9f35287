// Package frame composites a border, rounded corners and a caption line onto
// a photo. Config is the validated, immutable description of one frame;
// Compositor applies it to images.
package frame

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fleveque/frameseal/internal/fonts"
	"github.com/fleveque/frameseal/internal/metadata"
)

// Defaults match the look FrameSeal ships with: a thin dark border that is
// thicker at the bottom to hold the caption, in a warm gold.
const (
	DefaultCornerRatio     = 0.025
	DefaultBorderColor     = "#080808"
	DefaultTextColor       = "#D0A010"
	DefaultTextHeightRatio = 0.33
	DefaultIconGapRatio    = 1.25
)

// Ratios are border widths as fractions of the image: Top and Bottom of its
// height, Left and Right of its width.
type Ratios struct {
	Top    float64 `json:"top" mapstructure:"top"`
	Right  float64 `json:"right" mapstructure:"right"`
	Bottom float64 `json:"bottom" mapstructure:"bottom"`
	Left   float64 `json:"left" mapstructure:"left"`
}

// DefaultBorder is the border used when nothing is configured.
var DefaultBorder = Ratios{Top: 0.03, Right: 0.02, Bottom: 0.06, Left: 0.02}

// IsZero reports whether no edge grows the canvas.
func (r Ratios) IsZero() bool {
	return r.Top == 0 && r.Right == 0 && r.Bottom == 0 && r.Left == 0
}

// Options is the unvalidated input to New. Colors and the font are given by
// name; New resolves them.
type Options struct {
	Border           Ratios
	CornerRatio      float64
	BorderColor      string
	TextColor        string
	FontName         string
	TextHeightRatio  float64
	IconGapRatio     float64
	Icon             image.Image
	Fields           []metadata.Binding
	KeepPlaceholders bool
}

// DefaultOptions returns the stock frame with an empty caption.
func DefaultOptions() Options {
	return Options{
		Border:          DefaultBorder,
		CornerRatio:     DefaultCornerRatio,
		BorderColor:     DefaultBorderColor,
		TextColor:       DefaultTextColor,
		FontName:        fonts.DefaultName,
		TextHeightRatio: DefaultTextHeightRatio,
		IconGapRatio:    DefaultIconGapRatio,
	}
}

// Config is a validated frame description. Build it with New and do not
// modify it afterwards: one Config is shared by every worker of a batch.
type Config struct {
	Border           Ratios
	CornerRatio      float64
	BorderColor      color.NRGBA
	TextColor        color.NRGBA
	Font             *fonts.Font
	TextHeightRatio  float64
	IconGapRatio     float64
	Icon             image.Image
	Fields           []metadata.Binding
	KeepPlaceholders bool
}

// ConfigError reports an option that cannot produce a frame.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid frame config: %s %s", e.Field, e.Reason)
}

// New validates opts and resolves its colors and font.
//
// Go note: the constructor returns a pointer plus an error, and the pointer is
// only non-nil when the error is nil. Callers never see a half-built Config.
func New(opts Options) (*Config, error) {
	cfg := &Config{
		Border:           opts.Border,
		CornerRatio:      opts.CornerRatio,
		BorderColor:      ParseColorOrRed(opts.BorderColor),
		TextColor:        ParseColorOrRed(opts.TextColor),
		TextHeightRatio:  opts.TextHeightRatio,
		IconGapRatio:     opts.IconGapRatio,
		Icon:             opts.Icon,
		Fields:           append([]metadata.Binding(nil), opts.Fields...),
		KeepPlaceholders: opts.KeepPlaceholders,
	}

	if err := cfg.validateGeometry(); err != nil {
		return nil, err
	}

	f, err := fonts.Load(opts.FontName)
	if err != nil {
		return nil, &ConfigError{Field: "font", Reason: err.Error()}
	}
	cfg.Font = f

	return cfg, nil
}

// Validate checks every invariant of c, including that a font is set.
func (c *Config) Validate() error {
	if err := c.validateGeometry(); err != nil {
		return err
	}
	if c.Font == nil {
		return &ConfigError{Field: "font", Reason: "is not set"}
	}
	return nil
}

// validateGeometry stops at the first violation, in a fixed order, so the
// same bad config always reports the same field.
func (c *Config) validateGeometry() error {
	if c.CornerRatio < 0 || c.CornerRatio > 0.5 {
		return &ConfigError{Field: "corner_ratio", Reason: fmt.Sprintf("must be within [0, 0.5], got %g", c.CornerRatio)}
	}

	edges := []struct {
		name  string
		value float64
	}{
		{"border.top", c.Border.Top},
		{"border.right", c.Border.Right},
		{"border.bottom", c.Border.Bottom},
		{"border.left", c.Border.Left},
	}
	for _, e := range edges {
		if e.value < 0 {
			return &ConfigError{Field: e.name, Reason: fmt.Sprintf("must be >= 0, got %g", e.value)}
		}
	}

	if c.TextHeightRatio <= 0 {
		return &ConfigError{Field: "text_height_ratio", Reason: fmt.Sprintf("must be > 0, got %g", c.TextHeightRatio)}
	}

	if len(c.Fields) > metadata.MaxFields {
		return &ConfigError{Field: "fields", Reason: fmt.Sprintf("at most %d allowed, got %d", metadata.MaxFields, len(c.Fields))}
	}

	return nil
}
