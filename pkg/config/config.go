package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

// Config holds all bboxr configuration.
type Config struct {
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Slide     SlideConfig     `mapstructure:"slide"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Log       LogConfig       `mapstructure:"log"`
}

type ReconcileConfig struct {
	AxisTolerance  float64 `mapstructure:"axis_tolerance"`
	AllowUntrusted bool    `mapstructure:"allow_untrusted"`
}

type SlideConfig struct {
	Width              float64 `mapstructure:"width"`
	Height             float64 `mapstructure:"height"`
	DominantChildRatio float64 `mapstructure:"dominant_child_ratio"`
}

// Canvas returns the slide size as a pixel space
func (s SlideConfig) Canvas() models.PixelSpace {
	return models.PixelSpace{Width: s.Width, Height: s.Height}
}

type PipelineConfig struct {
	Workers           int     `mapstructure:"workers"`
	TableCellCoverage float64 `mapstructure:"table_cell_coverage"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ZapLevel parses the configured level
func (l LogConfig) ZapLevel() (zapcore.Level, error) {
	return zapcore.ParseLevel(l.Level)
}

// Load reads configuration from file and environment variables. An empty
// configFile searches for an optional bboxr.yaml in . and ./configs; a
// named file must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("reconcile.axis_tolerance", 0.05)
	v.SetDefault("reconcile.allow_untrusted", false)
	v.SetDefault("slide.width", 1920)
	v.SetDefault("slide.height", 1080)
	v.SetDefault("slide.dominant_child_ratio", 0.85)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.table_cell_coverage", 0.9)
	v.SetDefault("log.level", "info")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("bboxr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// Environment variables: BBOXR_SLIDE_WIDTH → slide.width
	v.SetEnvPrefix("BBOXR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every value and reports all violations at once.
func (c *Config) Validate() error {
	var errs []string

	if !(c.Reconcile.AxisTolerance > 0) || c.Reconcile.AxisTolerance >= 1 {
		errs = append(errs, fmt.Sprintf("reconcile.axis_tolerance must be in (0, 1), got %v", c.Reconcile.AxisTolerance))
	}
	if !(c.Slide.Width > 0) {
		errs = append(errs, fmt.Sprintf("slide.width must be positive, got %v", c.Slide.Width))
	}
	if !(c.Slide.Height > 0) {
		errs = append(errs, fmt.Sprintf("slide.height must be positive, got %v", c.Slide.Height))
	}
	if !(c.Slide.DominantChildRatio > 0) || c.Slide.DominantChildRatio > 1 {
		errs = append(errs, fmt.Sprintf("slide.dominant_child_ratio must be in (0, 1], got %v", c.Slide.DominantChildRatio))
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("pipeline.workers must be positive, got %d", c.Pipeline.Workers))
	}
	if !(c.Pipeline.TableCellCoverage > 0) || c.Pipeline.TableCellCoverage > 1 {
		errs = append(errs, fmt.Sprintf("pipeline.table_cell_coverage must be in (0, 1], got %v", c.Pipeline.TableCellCoverage))
	}
	if _, err := c.Log.ZapLevel(); err != nil {
		errs = append(errs, fmt.Sprintf("log.level: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
