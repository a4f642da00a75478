// Package config holds the terminal's settings: built-in defaults,
// the optional YAML config file, and range validation. Flag handling
// lives in the command; flags override the file, the file overrides
// the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default font files, the stock DejaVu install locations.
const (
	DefaultFont     = "/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf"
	DefaultBoldFont = "/usr/share/fonts/truetype/dejavu/DejaVuSansMono-Bold.ttf"
)

// Config is the complete runtime configuration.
type Config struct {
	// Antialias selects alpha-blended glyph rendering; off means 1-bit
	// thresholded blits.
	Antialias bool `yaml:"antialias"`

	Font     string `yaml:"font"`
	BoldFont string `yaml:"bold_font"`

	// FontSize is the glyph height in pixels (6-128).
	FontSize uint `yaml:"font_size"`

	// RepeatDelayMs is the auto-repeat delay in milliseconds
	// (100-2000).
	RepeatDelayMs uint `yaml:"repeat_delay_ms"`

	// RepeatRateHz is the auto-repeat rate (1-50).
	RepeatRateHz uint `yaml:"repeat_rate_hz"`

	// IdleTimeoutS suspends the display after this many seconds of
	// keyboard inactivity; 0 disables, otherwise 30-86400.
	IdleTimeoutS uint `yaml:"idle_timeout_s"`

	Layout  string `yaml:"layout"`
	Variant string `yaml:"variant"`
	Options string `yaml:"options"`

	// Pivot rotates the screen in 90 degree steps (0-3).
	Pivot int `yaml:"pivot"`

	// WhiteBackground inverts the default attribute pair.
	WhiteBackground bool `yaml:"white_background"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Antialias:     true,
		FontSize:      16,
		RepeatDelayMs: 200,
		RepeatRateHz:  30,
		Layout:        "us",
	}
}

// DefaultPath is the config file location under the user's config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kmsterm", "config.yaml")
}

// LoadFile overlays the YAML file at path onto cfg. A missing file is
// not an error; unknown keys are.
func LoadFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate enforces the documented ranges.
func (c *Config) Validate() error {
	if c.FontSize < 6 || c.FontSize > 128 {
		return fmt.Errorf("font size %d out of range 6-128", c.FontSize)
	}
	if c.RepeatDelayMs < 100 || c.RepeatDelayMs > 2000 {
		return fmt.Errorf("key repeat delay %dms out of range 100-2000", c.RepeatDelayMs)
	}
	if c.RepeatRateHz < 1 || c.RepeatRateHz > 50 {
		return fmt.Errorf("key repeat rate %dHz out of range 1-50", c.RepeatRateHz)
	}
	if c.IdleTimeoutS != 0 && (c.IdleTimeoutS < 30 || c.IdleTimeoutS > 86400) {
		return fmt.Errorf("idle timeout %ds out of range 30-86400 (0 disables)", c.IdleTimeoutS)
	}
	if c.Pivot < 0 || c.Pivot > 3 {
		return fmt.Errorf("pivot %d out of range 0-3", c.Pivot)
	}
	return nil
}

// FillFontDefaults substitutes the stock fonts for unset paths. Both
// default together, matching the rule that a bold font alone is a
// usage error handled at the flag layer.
func (c *Config) FillFontDefaults() {
	if c.Font == "" {
		c.Font = DefaultFont
		if c.BoldFont == "" {
			c.BoldFont = DefaultBoldFont
		}
	}
}

// Locale returns the compose locale from the environment, the usual
// LC_ALL, LC_CTYPE, LANG precedence with a C fallback.
func Locale() string {
	for _, v := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if val := os.Getenv(v); val != "" {
			return val
		}
	}
	return "C"
}
