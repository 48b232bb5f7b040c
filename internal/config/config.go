package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures encoder and pipeline defaults shared by all projects in a
// data directory.
type Config struct {
	Version  int            `yaml:"version"`
	Video    VideoConfig    `yaml:"video"`
	Audio    AudioConfig    `yaml:"audio"`
	Retry    RetryConfig    `yaml:"retry"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Renderer RendererConfig `yaml:"renderer"`
}

// VideoConfig contains delivery codec parameters for re-encoded outputs.
type VideoConfig struct {
	Codec    string `yaml:"codec"`
	PixelFmt string `yaml:"pixel_format"`
}

// AudioConfig describes audio encoding parameters.
type AudioConfig struct {
	Codec       string `yaml:"acodec"`
	BitrateKbps int    `yaml:"bitrate_kbps"`
}

// RetryConfig carries the default bounded-retry policy. CLI flags and the
// CLIPFORGE_MAX_RETRIES / CLIPFORGE_RETRY_DELAY_MS environment variables
// override these, flags winning over both.
type RetryConfig struct {
	MaxRetries   int `yaml:"max_retries"`
	RetryDelayMs int `yaml:"retry_delay_ms"`
}

// TimeoutConfig bounds external process invocations.
type TimeoutConfig struct {
	EncodeMinutes int `yaml:"encode_minutes"`
	ProbeSeconds  int `yaml:"probe_seconds"`
}

// RendererConfig identifies the external template renderer binary.
type RendererConfig struct {
	Command string `yaml:"command"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Video: VideoConfig{
			Codec:    "libx264",
			PixelFmt: "yuv420p",
		},
		Audio: AudioConfig{
			Codec:       "aac",
			BitrateKbps: 192,
		},
		Retry: RetryConfig{
			MaxRetries:   2,
			RetryDelayMs: 1500,
		},
		Timeouts: TimeoutConfig{
			EncodeMinutes: 30,
			ProbeSeconds:  5,
		},
		Renderer: RendererConfig{
			Command: "template-renderer",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise
// returns the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Video.Codec == "" {
		c.Video.Codec = def.Video.Codec
	}
	if c.Video.PixelFmt == "" {
		c.Video.PixelFmt = def.Video.PixelFmt
	}
	if c.Audio.Codec == "" {
		c.Audio.Codec = def.Audio.Codec
	}
	if c.Audio.BitrateKbps <= 0 {
		c.Audio.BitrateKbps = def.Audio.BitrateKbps
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = def.Retry.MaxRetries
	}
	if c.Retry.RetryDelayMs <= 0 {
		c.Retry.RetryDelayMs = def.Retry.RetryDelayMs
	}
	if c.Timeouts.EncodeMinutes <= 0 {
		c.Timeouts.EncodeMinutes = def.Timeouts.EncodeMinutes
	}
	if c.Timeouts.ProbeSeconds <= 0 {
		c.Timeouts.ProbeSeconds = def.Timeouts.ProbeSeconds
	}
	if c.Renderer.Command == "" {
		c.Renderer.Command = def.Renderer.Command
	}
}

// EncodeTimeout returns the wall-clock bound for a single encoder invocation.
func (c Config) EncodeTimeout() time.Duration {
	return time.Duration(c.Timeouts.EncodeMinutes) * time.Minute
}

// ProbeTimeout returns the wall-clock bound for file existence probes.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Timeouts.ProbeSeconds) * time.Second
}
