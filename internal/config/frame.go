package config

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/frameseal/internal/frame"
	"github.com/fleveque/frameseal/internal/icon"
	"github.com/fleveque/frameseal/internal/metadata"
)

// FrameConfig is the frame section as written in YAML, or as sent in the
// preview API's "settings" JSON. It uses names where frame.Options uses
// resolved values.
type FrameConfig struct {
	Border           frame.Ratios  `mapstructure:"border" json:"border"`
	CornerRatio      float64       `mapstructure:"corner_ratio" json:"corner_ratio"`
	BorderColor      string        `mapstructure:"border_color" json:"border_color"`
	TextColor        string        `mapstructure:"text_color" json:"text_color"`
	Font             string        `mapstructure:"font" json:"font"`
	TextHeightRatio  float64       `mapstructure:"text_height_ratio" json:"text_height_ratio"`
	IconGapRatio     float64       `mapstructure:"icon_gap_ratio" json:"icon_gap_ratio"`
	Icon             string        `mapstructure:"icon" json:"icon"`
	Fields           []FieldConfig `mapstructure:"fields" json:"fields"`
	KeepPlaceholders bool          `mapstructure:"keep_placeholders" json:"keep_placeholders"`
}

// FieldConfig is one caption slot: a metadata key, or "manual" with Text.
// A slot with only Text is treated as manual.
type FieldConfig struct {
	Key  string `mapstructure:"key" json:"key"`
	Text string `mapstructure:"text" json:"text"`
}

// Bindings parses the configured fields.
func (f FrameConfig) Bindings() ([]metadata.Binding, error) {
	bindings := make([]metadata.Binding, 0, len(f.Fields))
	for i, fc := range f.Fields {
		if strings.TrimSpace(fc.Key) == "" {
			bindings = append(bindings, metadata.Binding{Key: metadata.KeyManual, Literal: fc.Text})
			continue
		}
		key, err := metadata.ParseKey(fc.Key)
		if err != nil {
			return nil, &frame.ConfigError{Field: fmt.Sprintf("fields[%d]", i), Reason: err.Error()}
		}
		bindings = append(bindings, metadata.Binding{Key: key, Literal: fc.Text})
	}
	return bindings, nil
}

// Options converts the settings to frame.Options, loading the icon through
// icons. A text-height ratio <= 0 is replaced by the default with a warning
// instead of failing: it is the one setting that has a safe fallback.
func (f FrameConfig) Options(ctx context.Context, icons *icon.Loader, logger *zap.Logger) (frame.Options, error) {
	bindings, err := f.Bindings()
	if err != nil {
		return frame.Options{}, err
	}

	ratio := f.TextHeightRatio
	if ratio <= 0 {
		logger.Warn("text_height_ratio must be positive, using default",
			zap.Float64("configured", ratio),
			zap.Float64("default", frame.DefaultTextHeightRatio),
		)
		ratio = frame.DefaultTextHeightRatio
	}

	ic, err := icons.Load(ctx, f.Icon)
	if err != nil {
		return frame.Options{}, &frame.ConfigError{Field: "icon", Reason: err.Error()}
	}

	return frame.Options{
		Border:           f.Border,
		CornerRatio:      f.CornerRatio,
		BorderColor:      f.BorderColor,
		TextColor:        f.TextColor,
		FontName:         f.Font,
		TextHeightRatio:  ratio,
		IconGapRatio:     f.IconGapRatio,
		Icon:             ic,
		Fields:           bindings,
		KeepPlaceholders: f.KeepPlaceholders,
	}, nil
}

// Build resolves the settings into a validated frame.Config.
func (f FrameConfig) Build(ctx context.Context, icons *icon.Loader, logger *zap.Logger) (*frame.Config, error) {
	opts, err := f.Options(ctx, icons, logger)
	if err != nil {
		return nil, err
	}
	return frame.New(opts)
}
