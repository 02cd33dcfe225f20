// Package config loads airsketch configuration from a JSON file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Mode selects which landmark consumer runs.
type Mode string

const (
	// ModePaint is the single-hand air drawing mode.
	ModePaint Mode = "paint"
	// ModeDashboard is the multi-model visualization dashboard.
	ModeDashboard Mode = "dashboard"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "airsketch.json"

// CameraConfig holds capture device settings.
type CameraConfig struct {
	Device int `mapstructure:"device"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	FPS    int `mapstructure:"fps"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ModelsConfig selects the external landmark models and their options.
type ModelsConfig struct {
	Hands                  bool    `mapstructure:"hands"`
	Face                   bool    `mapstructure:"face"`
	Pose                   bool    `mapstructure:"pose"`
	MaxHands               int     `mapstructure:"maxHands"`
	MinDetectionConfidence float64 `mapstructure:"minDetectionConfidence"`
	MinTrackingConfidence  float64 `mapstructure:"minTrackingConfidence"`
	ScriptDir              string  `mapstructure:"scriptDir"`
}

// BrushConfig is the initial brush selection.
type BrushConfig struct {
	Size    int    `mapstructure:"size"`
	Opacity int    `mapstructure:"opacity"`
	Color   string `mapstructure:"color"`
	Type    string `mapstructure:"type"`
}

// EffectsConfig toggles the particle effects.
type EffectsConfig struct {
	Particles bool `mapstructure:"particles"`
	Trail     bool `mapstructure:"trail"`
}

// MotionConfig controls the activity gate in front of the models.
type MotionConfig struct {
	Gate      bool    `mapstructure:"gate"`
	Threshold float64 `mapstructure:"threshold"`
}

// Config is the full application configuration.
type Config struct {
	Mode       Mode          `mapstructure:"mode"`
	Addr       string        `mapstructure:"addr"`
	DataDir    string        `mapstructure:"dataDir"`
	Background string        `mapstructure:"background"`
	Tray       bool          `mapstructure:"tray"`
	Camera     CameraConfig  `mapstructure:"camera"`
	Logging    LoggingConfig `mapstructure:"logging"`
	Models     ModelsConfig  `mapstructure:"models"`
	Brush      BrushConfig   `mapstructure:"brush"`
	Effects    EffectsConfig `mapstructure:"effects"`
	Motion     MotionConfig  `mapstructure:"motion"`
}

// DefaultDir returns ~/.airsketch, or ".airsketch" when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".airsketch"
	}
	return filepath.Join(home, ".airsketch")
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("mode", string(ModePaint))
	v.SetDefault("addr", ":8080")
	v.SetDefault("dataDir", dir)
	v.SetDefault("background", "transparent")
	v.SetDefault("tray", false)

	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.width", 1280)
	v.SetDefault("camera.height", 720)
	v.SetDefault("camera.fps", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("models.hands", true)
	v.SetDefault("models.face", true)
	v.SetDefault("models.pose", true)
	v.SetDefault("models.maxHands", 0)
	v.SetDefault("models.minDetectionConfidence", 0.5)
	v.SetDefault("models.minTrackingConfidence", 0.5)
	v.SetDefault("models.scriptDir", filepath.Join(dir, "scripts"))

	v.SetDefault("brush.size", 5)
	v.SetDefault("brush.opacity", 100)
	v.SetDefault("brush.color", "#ff0080")
	v.SetDefault("brush.type", "normal")

	v.SetDefault("effects.particles", true)
	v.SetDefault("effects.trail", false)

	v.SetDefault("motion.gate", false)
	v.SetDefault("motion.threshold", 1.0)
}

// Load reads airsketch.json from dir, applies AIRSKETCH_* environment overrides
// and returns the validated configuration. A missing file is not an error.
func Load(dir string) (Config, error) {
	v := viper.New()
	setDefaults(v, dir)

	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("AIRSKETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize applies the per-mode model constraints.
func (c *Config) normalize() {
	c.Mode = Mode(strings.ToLower(string(c.Mode)))
	if c.Mode == ModePaint {
		c.Models.Hands = true
		c.Models.Face = false
		c.Models.Pose = false
	}
	if c.Models.MaxHands <= 0 {
		if c.Mode == ModeDashboard {
			c.Models.MaxHands = 2
		} else {
			c.Models.MaxHands = 1
		}
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch c.Mode {
	case ModePaint, ModeDashboard:
	default:
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera size %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Brush.Size < 1 {
		return fmt.Errorf("brush.size must be at least 1, got %d", c.Brush.Size)
	}
	if c.Brush.Opacity < 0 || c.Brush.Opacity > 100 {
		return fmt.Errorf("brush.opacity must be within 0-100, got %d", c.Brush.Opacity)
	}
	if !c.Models.Hands && !c.Models.Face && !c.Models.Pose {
		return errors.New("at least one model must be enabled")
	}
	return nil
}
