package config

import (
	"context"
	"strings"
	"testing"

	"github.com/sautina/sauti/internal/language"
	"github.com/sautina/sauti/pkg/asr"
	asrmock "github.com/sautina/sauti/pkg/asr/mock"
)

const validYAML = `
backend:
  url: "http://localhost:8000"
  timeout_seconds: 20
language: ha
capture:
  provider:
    name: deepgram
    api_key: dg-secret
    model: nova-2
  sample_rate: 16000
  mic:
    format: pulse
    device: default
playback:
  command: ffplay
notifications:
  enabled: true
logging:
  level: debug
metrics:
  enabled: true
  listen_addr: "127.0.0.1:9464"
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error: %v", err)
	}

	if cfg.Backend.URL != "http://localhost:8000" || cfg.Backend.TimeoutSeconds != 20 {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Language != language.Hausa {
		t.Errorf("language = %q, want ha", cfg.Language)
	}
	if cfg.Capture.Provider.Name != "deepgram" || cfg.Capture.Provider.Model != "nova-2" {
		t.Errorf("capture provider = %+v", cfg.Capture.Provider)
	}
	if cfg.Logging.Level != LogDebug {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddr != "127.0.0.1:9464" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	yaml := `
backend:
  url: "http://localhost:8000"
banckend_url: typo
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown top-level fields should be rejected")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Backend:  BackendConfig{URL: "not-a-url", TimeoutSeconds: -5},
		Language: "xx",
		Logging:  LoggingConfig{Level: "verbose"},
		Metrics:  MetricsConfig{Enabled: true},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, want := range []string{
		"backend.url",
		"timeout_seconds",
		`language "xx"`,
		"logging.level",
		"metrics.listen_addr",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidateRequiresBackendURL(t *testing.T) {
	t.Parallel()

	if err := Validate(&Config{}); err == nil || !strings.Contains(err.Error(), "backend.url is required") {
		t.Fatalf("Validate() error = %v, want missing backend.url", err)
	}
}

func TestLogLevelIsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []LogLevel{LogDebug, LogInfo, LogWarn, LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if LogLevel("trace").IsValid() {
		t.Error("\"trace\" should be invalid")
	}
}

func TestRegistryCreateASR(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RegisterASR("mock", func(entry ProviderEntry) (asr.Provider, error) {
		return &asrmock.Provider{}, nil
	})

	p, err := r.CreateASR(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateASR() error: %v", err)
	}
	if _, err := p.StartStream(context.Background(), asr.StreamConfig{}); err != nil {
		t.Fatalf("StartStream() error: %v", err)
	}

	if _, err := r.CreateASR(ProviderEntry{Name: "nope"}); err == nil {
		t.Fatal("CreateASR() should fail for an unregistered name")
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	old := &Config{
		Backend:       BackendConfig{URL: "http://localhost:8000"},
		Playback:      PlaybackConfig{Command: "ffplay"},
		Notifications: NotifyConfig{Enabled: true},
		Logging:       LoggingConfig{Level: LogInfo},
	}
	new := &Config{
		Backend:       BackendConfig{URL: "http://localhost:8000"},
		Playback:      PlaybackConfig{Command: "mpv"},
		Notifications: NotifyConfig{Enabled: false},
		Logging:       LoggingConfig{Level: LogDebug},
	}

	d := Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("log level diff = %+v", d)
	}
	if !d.NotificationsChanged || d.NotificationsEnabled {
		t.Errorf("notifications diff = %+v", d)
	}
	if !d.PlaybackCommandChanged || d.NewPlaybackCommand != "mpv" {
		t.Errorf("playback diff = %+v", d)
	}
	if d.Empty() {
		t.Error("Empty() = true for a non-empty diff")
	}

	if got := Diff(old, old); !got.Empty() {
		t.Errorf("Diff(x, x) = %+v, want empty", got)
	}
}
