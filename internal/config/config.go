// Package config loads spindle's runtime configuration via viper, in the
// same style the upstream player config tree uses: a nested, mapstructure
// tagged struct seeded with defaults, readable from a YAML file and
// overridable with SPINDLE_-prefixed environment variables.
package config

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/spf13/viper"

	"github.com/halcyon-audio/spindle/internal/platform"
)

// Config is spindle's full runtime configuration tree.
type Config struct {
	Device struct {
		Name       string `mapstructure:"name"`
		ID         string `mapstructure:"id"` // empty: derive from machine id on first run
		AppVersion string `mapstructure:"app_version"`
	} `mapstructure:"device"`

	Network struct {
		BaseURL           string `mapstructure:"base_url"`
		RequestsPerWindow int    `mapstructure:"requests_per_window"`
		WindowSeconds     int    `mapstructure:"window_seconds"`
		BurstSize         int    `mapstructure:"burst_size"`
		ConnectTimeoutMs  int    `mapstructure:"connect_timeout_ms"`
		ReadTimeoutMs     int    `mapstructure:"read_timeout_ms"`
		KeepAliveSeconds  int    `mapstructure:"keepalive_seconds"`
		Retries           int    `mapstructure:"retries"`
		UserAgent         string `mapstructure:"user_agent"`
	} `mapstructure:"network"`

	Audio struct {
		SampleRate       int     `mapstructure:"sample_rate"`
		BufferSize       int     `mapstructure:"buffer_size"`
		DefaultVolume    float64 `mapstructure:"default_volume"`
		Normalize        bool    `mapstructure:"normalize"`
		GainTargetDB     float64 `mapstructure:"gain_target_db"`
		Quality          string  `mapstructure:"quality"` // standard | high | lossless
	} `mapstructure:"audio"`

	Limiter struct {
		ThresholdDB float64 `mapstructure:"threshold_db"`
		KneeDB      float64 `mapstructure:"knee_db"`
		AttackMs    float64 `mapstructure:"attack_ms"`
		ReleaseMs   float64 `mapstructure:"release_ms"`
	} `mapstructure:"limiter"`

	Download struct {
		ReadAheadBytes int `mapstructure:"read_ahead_bytes"`
		RingBufferSize int `mapstructure:"ring_buffer_size"`
	} `mapstructure:"download"`

	NoInterruptions bool   `mapstructure:"no_interruptions"`
	Verbosity       string `mapstructure:"verbosity"` // quiet | warn | debug | trace
}

// Load reads spindle's config from configPath (if non-empty) or the
// platform config directory, overlaying SPINDLE_-prefixed env vars, the
// same precedence order as the upstream player's config loader.
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("spindle")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		configDir, err := platform.GetConfigDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SPINDLE")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("device.app_version", "1.0.0")

	viper.SetDefault("network.base_url", "https://connect.example.invalid")
	viper.SetDefault("network.requests_per_window", 50)
	viper.SetDefault("network.window_seconds", 5)
	viper.SetDefault("network.burst_size", 50)
	viper.SetDefault("network.connect_timeout_ms", 5000)
	viper.SetDefault("network.read_timeout_ms", 5000)
	viper.SetDefault("network.keepalive_seconds", 60)
	viper.SetDefault("network.retries", 3)
	viper.SetDefault("network.user_agent", "spindle/1.0.0")

	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.buffer_size", 16384)
	viper.SetDefault("audio.default_volume", 1.0)
	viper.SetDefault("audio.normalize", true)
	viper.SetDefault("audio.gain_target_db", -15.0)
	viper.SetDefault("audio.quality", "high")

	viper.SetDefault("limiter.threshold_db", -1.0)
	viper.SetDefault("limiter.knee_db", 4.0)
	viper.SetDefault("limiter.attack_ms", 5.0)
	viper.SetDefault("limiter.release_ms", 100.0)

	viper.SetDefault("download.read_ahead_bytes", 32*1024)
	viper.SetDefault("download.ring_buffer_size", 64*1024)

	viper.SetDefault("no_interruptions", false)
	viper.SetDefault("verbosity", "warn")
}

// ResolveDeviceID fills in Device.ID from a hash of the machine id when
// none is configured, so the Connect engine has a stable device identity derived
// from the host without the user ever entering one. Per §6 ("no database,
// no cache directory"), this is never written back to disk: a config file
// that sets device.id explicitly is honored instead of re-deriving it, but
// an unconfigured id is re-derived from the machine id every process start.
func (c *Config) ResolveDeviceID() (string, error) {
	if c.Device.ID != "" {
		return c.Device.ID, nil
	}
	id, err := machineid.ProtectedID("spindle")
	if err != nil {
		return "", err
	}
	c.Device.ID = id
	return id, nil
}
