// Package config loads FrameSeal's settings with Viper: defaults, then an
// optional YAML file, then FRAMESEAL_* environment variables.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fleveque/frameseal/internal/codec"
	"github.com/fleveque/frameseal/internal/fonts"
	"github.com/fleveque/frameseal/internal/frame"
	"github.com/fleveque/frameseal/internal/service"
)

// EnvPrefix namespaces environment overrides: FRAMESEAL_OUTPUT_FORMAT=bmp
// sets output.format.
const EnvPrefix = "FRAMESEAL"

// Config is the root configuration struct. `mapstructure` tags tell Viper how
// to map YAML/env keys to struct fields.
type Config struct {
	Frame     FrameConfig     `mapstructure:"frame"`
	Output    OutputConfig    `mapstructure:"output"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type OutputConfig struct {
	Format     string `mapstructure:"format"`
	AutoOrient bool   `mapstructure:"auto_orient"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

type PreviewConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	MaxEdge  int           `mapstructure:"max_edge"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// MaxUploadMB caps multipart preview uploads.
	MaxUploadMB int `mapstructure:"max_upload_mb"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// setDefaults registers every key. Viper's AutomaticEnv only overrides keys
// it already knows about, so a key without a default could not be set from
// the environment.
func setDefaults(v *viper.Viper) {
	d := frame.DefaultOptions()
	v.SetDefault("frame.border.top", d.Border.Top)
	v.SetDefault("frame.border.right", d.Border.Right)
	v.SetDefault("frame.border.bottom", d.Border.Bottom)
	v.SetDefault("frame.border.left", d.Border.Left)
	v.SetDefault("frame.corner_ratio", d.CornerRatio)
	v.SetDefault("frame.border_color", d.BorderColor)
	v.SetDefault("frame.text_color", d.TextColor)
	v.SetDefault("frame.font", fonts.DefaultName)
	v.SetDefault("frame.text_height_ratio", d.TextHeightRatio)
	v.SetDefault("frame.icon_gap_ratio", d.IconGapRatio)
	v.SetDefault("frame.icon", "")
	v.SetDefault("frame.fields", []map[string]string{
		{"key": "focal_length"},
		{"key": "exposure_time"},
		{"key": "f_number"},
		{"key": "iso"},
		{"key": "date_time_original"},
	})
	v.SetDefault("frame.keep_placeholders", false)

	v.SetDefault("output.format", codec.DefaultFormat)
	v.SetDefault("output.auto_orient", true)
	v.SetDefault("batch.workers", runtime.NumCPU())
	v.SetDefault("preview.debounce", service.DefaultDebounce)
	v.SetDefault("preview.max_edge", 1024)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("storage.database_path", "./storage/frameseal.db")
	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("auth.admin_keys", []string{})
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("log.level", "info")
}

// newViper builds a Viper instance with defaults, the config file location
// and env overrides, without reading anything yet.
func newViper(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("frameseal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// FRAMESEAL_ prefix + nested keys: FRAMESEAL_SERVER_PORT=9090 -> server.port
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from configPath (or ./frameseal.yaml,
// ./config/frameseal.yaml when empty) and the environment. A missing default
// file is fine; a missing explicit file is an error.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NewLogger returns a development logger (human-readable, debug level) for
// "debug" and a production JSON logger otherwise.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	if strings.EqualFold(l.Level, "debug") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(l.Level); err == nil {
		cfg.Level = lvl
	}
	return cfg.Build()
}
