// Package config provides the configuration structure for the adstudy
// platform.
package config

import (
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied when the corresponding TOML keys are absent.
const (
	DefaultBatchCap        = 50
	DefaultBatchDelayMS    = 500
	DefaultSignedURLTTLMin = 10
	DefaultHTTPAddr        = ":8080"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL             string `toml:"url"`
	RunBatchSubject string `toml:"run_batch_subject"`
	AudioBucket     string `toml:"audio_bucket"`
}

// TTSConfig holds the configuration for the external synthesis service.
type TTSConfig struct {
	ServiceURL     string  `toml:"service_url"`
	Voice          string  `toml:"voice"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// HTTPConfig holds the configuration for the participant-facing server.
type HTTPConfig struct {
	Addr          string `toml:"addr"`
	AdminToken    string `toml:"admin_token"`
	PublicBaseURL string `toml:"public_base_url"`
}

// BatchConfig holds the audio lifecycle batch tuning knobs.
type BatchConfig struct {
	Cap     int `toml:"cap"`
	DelayMS int `toml:"delay_ms"`
}

// SigningConfig holds the signed media URL settings.
type SigningConfig struct {
	Secret     string `toml:"secret"`
	TTLMinutes int    `toml:"ttl_minutes"`
}

// StoreConfig holds the participant record store settings.
type StoreConfig struct {
	SQLitePath string `toml:"sqlite_path"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS    NATSConfig    `toml:"nats"`
	TTS     TTSConfig     `toml:"tts"`
	HTTP    HTTPConfig    `toml:"http"`
	Batch   BatchConfig   `toml:"batch"`
	Signing SigningConfig `toml:"signing"`
	Store   StoreConfig   `toml:"store"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads the configuration for the adstudy platform and fills in
// defaults for optional fields.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills zero-valued optional fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Batch.Cap <= 0 {
		c.Batch.Cap = DefaultBatchCap
	}

	if c.Batch.DelayMS <= 0 {
		c.Batch.DelayMS = DefaultBatchDelayMS
	}

	if c.Signing.TTLMinutes <= 0 {
		c.Signing.TTLMinutes = DefaultSignedURLTTLMin
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
}

// BatchDelay returns the pause between medium/high records as a duration.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Batch.DelayMS) * time.Millisecond
}

// SignedURLTTL returns the signed media URL lifetime as a duration.
func (c *Config) SignedURLTTL() time.Duration {
	return time.Duration(c.Signing.TTLMinutes) * time.Minute
}

// TTSTimeout returns the synthesis request timeout as a duration.
func (c *Config) TTSTimeout() time.Duration {
	return time.Duration(c.TTS.TimeoutSeconds) * time.Second
}
