// Package config provides the configuration schema, loader, provider
// registry, and file watcher for the Sauti client.
package config

import "github.com/sautina/sauti/internal/language"

// LogLevel controls log verbosity for the client.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the Sauti client.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Backend       BackendConfig  `yaml:"backend"`
	Language      language.Code  `yaml:"language"`
	Capture       CaptureConfig  `yaml:"capture"`
	Playback      PlaybackConfig `yaml:"playback"`
	Notifications NotifyConfig   `yaml:"notifications"`
	Logging       LoggingConfig  `yaml:"logging"`
	Metrics       MetricsConfig  `yaml:"metrics"`
}

// BackendConfig points the client at its Sauti backend.
type BackendConfig struct {
	// URL is the backend origin (e.g., "http://localhost:8000").
	URL string `yaml:"url"`

	// TimeoutSeconds is the per-request HTTP timeout. 30 if zero.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// CaptureConfig configures speech capture: the recognition provider and the
// microphone subprocess.
type CaptureConfig struct {
	// Provider selects and configures the streaming recognition backend.
	Provider ProviderEntry `yaml:"provider"`

	// SampleRate in Hz for capture and recognition. 16000 if zero.
	SampleRate int `yaml:"sample_rate"`

	// Mic configures the ffmpeg microphone subprocess.
	Mic MicConfig `yaml:"mic"`
}

// ProviderEntry is the common configuration block for pluggable providers.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// Endpoint overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	Endpoint string `yaml:"endpoint"`

	// Model selects a specific model within the provider (e.g., "nova-2").
	Model string `yaml:"model"`
}

// MicConfig selects the ffmpeg input backend for microphone capture.
type MicConfig struct {
	// Command is the ffmpeg binary. "ffmpeg" from PATH if empty.
	Command string `yaml:"command"`

	// Format is the ffmpeg input driver ("pulse", "alsa", "avfoundation").
	// "pulse" if empty.
	Format string `yaml:"format"`

	// Device is the input device name for the driver. "default" if empty.
	Device string `yaml:"device"`
}

// PlaybackConfig configures reply audio playback.
type PlaybackConfig struct {
	// Command is the player binary. "ffplay" from PATH if empty.
	Command string `yaml:"command"`
}

// NotifyConfig configures desktop notifications.
type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level controls verbosity. "info" if empty.
	Level LogLevel `yaml:"level"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the address the /metrics endpoint listens on when
	// enabled (e.g., "127.0.0.1:9464").
	ListenAddr string `yaml:"listen_addr"`
}
