// Command sauti is the terminal client for the Sauti voice assistant: typed
// and spoken conversation, a modal translator, and spoken reply playback.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sautina/sauti/internal/app"
	"github.com/sautina/sauti/internal/config"
	"github.com/sautina/sauti/internal/observe"
	"github.com/sautina/sauti/pkg/asr"
	"github.com/sautina/sauti/pkg/asr/deepgram"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("sauti exited with error", "err", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "sauti.yaml", "path to the YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("sauti", version)
		return nil
	}

	// The level var is shared with the config watcher so logging.level can be
	// changed without a restart.
	logLevel := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q not found; copy sauti.example.yaml and edit it: %w", *configPath, err)
		}
		return err
	}
	logLevel.Set(slogLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	providers := buildProviders(cfg)

	a, err := app.New(cfg, providers)
	if err != nil {
		return err
	}

	// Watch the config file for hot-reloadable changes. A broken watcher is
	// not fatal; the client just runs with the startup config.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.Empty() {
			return
		}
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		a.ApplyConfig(d)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("sauti starting",
		"version", version,
		"backend", cfg.Backend.URL,
		"language", cfg.Language,
		"capture_provider", cfg.Capture.Provider.Name,
	)

	runErr := a.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(stopCtx); err != nil {
		slog.Warn("shutdown incomplete", "err", err)
	}
	return runErr
}

// buildProviders instantiates the configured recognition provider. A missing
// or failing provider degrades to text-only operation instead of aborting.
func buildProviders(cfg *config.Config) *app.Providers {
	registry := config.NewRegistry()
	registry.RegisterASR("deepgram", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.Endpoint != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.Endpoint))
		}
		return deepgram.New(entry.APIKey, opts...), nil
	})

	providers := &app.Providers{}
	if name := cfg.Capture.Provider.Name; name != "" {
		p, err := registry.CreateASR(cfg.Capture.Provider)
		if err != nil {
			slog.Warn("capture provider unavailable, running text-only", "provider", name, "err", err)
		} else {
			providers.ASR = p
		}
	}
	return providers
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
