// Package app wires all Sauti subsystems into the interactive terminal
// client.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the input and event loops, and Shutdown tears
// everything down in order. User actions arrive on the input loop; capture
// events, voice commands, and resolved turns funnel through a single event
// channel so every state transition happens in one place.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/sautina/sauti/internal/audio"
	"github.com/sautina/sauti/internal/capture"
	"github.com/sautina/sauti/internal/config"
	"github.com/sautina/sauti/internal/conversation"
	"github.com/sautina/sauti/internal/dispatch"
	"github.com/sautina/sauti/internal/health"
	"github.com/sautina/sauti/internal/notify"
	"github.com/sautina/sauti/internal/observe"
	"github.com/sautina/sauti/internal/playback"
	"github.com/sautina/sauti/internal/translate"
	"github.com/sautina/sauti/internal/voicecmd"
	"github.com/sautina/sauti/pkg/asr"
	"github.com/sautina/sauti/pkg/backend"
)

// Providers holds one interface value per pluggable slot. A nil ASR provider
// means speech capture is unavailable in this environment.
type Providers struct {
	ASR asr.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	client  *backend.Client
	metrics *observe.Metrics

	session    *conversation.Session
	dispatcher *dispatch.Dispatcher
	capture    *capture.Session
	players    *playback.Controller
	notifier   *notify.Notifier

	// translator is non-nil while the translator surface is open. Only the
	// input loop touches it.
	translator *translate.Session

	in  io.Reader
	out io.Writer

	events chan event

	// captureOpen and captureStart live on the event loop goroutine.
	captureOpen  bool
	captureStart time.Time

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithInput replaces stdin as the command source.
func WithInput(r io.Reader) Option {
	return func(a *App) { a.in = r }
}

// WithOutput replaces stdout as the render target.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithMetrics injects a Metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main (populated via the config registry).
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		in:     os.Stdin,
		out:    os.Stdout,
		events: make(chan event, 128),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	var clientOpts []backend.Option
	if cfg.Backend.TimeoutSeconds > 0 {
		clientOpts = append(clientOpts, backend.WithTimeout(time.Duration(cfg.Backend.TimeoutSeconds)*time.Second))
	}
	client, err := backend.New(cfg.Backend.URL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: backend client: %w", err)
	}
	a.client = client

	a.session = conversation.NewSession(cfg.Language)
	a.dispatcher = dispatch.New(a.session, client, a.metrics)
	a.players = playback.NewController(playback.NewFFplayFactory(cfg.Playback.Command))
	a.notifier = notify.New(cfg.Notifications.Enabled)

	provider := providers.ASR
	if provider == nil {
		provider = unsupportedProvider{}
	}
	filter := voicecmd.New(a.session.Language, a.postCommand)
	mic := audio.NewFFmpegCapture(cfg.Capture.Mic.Command)
	a.capture = capture.NewSession(provider, mic, a, capture.Config{
		SampleRate: cfg.Capture.SampleRate,
		Mic: audio.Config{
			InputFormat: cfg.Capture.Mic.Format,
			InputDevice: cfg.Capture.Mic.Device,
		},
	}, capture.WithFinalFilter(filter))

	return a, nil
}

// Run executes the client until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Metrics.Enabled {
		a.serveMetrics()
	}

	a.printWelcome()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.inputLoop(ctx) })
	g.Go(func() error { return a.eventLoop(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

// Shutdown tears the client down: capture closed, players released, the
// translator surface discarded, then registered closers in reverse order.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		_ = a.capture.Stop()
		a.players.ReleaseAll()
		if a.translator != nil {
			a.translator.Close()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if cerr := a.closers[i](); cerr != nil && err == nil {
				err = cerr
			}
		}
		slog.Info("client shut down")
	})
	return err
}

// ApplyConfig applies a hot-reloadable config change.
func (a *App) ApplyConfig(d config.ConfigDiff) {
	if d.Empty() {
		return
	}
	if d.NotificationsChanged {
		a.notifier.SetEnabled(d.NotificationsEnabled)
		slog.Info("notifications toggled", "enabled", d.NotificationsEnabled)
	}
	if d.PlaybackCommandChanged {
		a.players.SetFactory(playback.NewFFplayFactory(d.NewPlaybackCommand))
		slog.Info("playback command updated", "command", d.NewPlaybackCommand)
	}
}

// serveMetrics starts the Prometheus scrape endpoint plus the health probes.
func (a *App) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(health.Backend(a.client.BaseURL(), nil)).Register(mux)
	srv := &http.Server{Addr: a.cfg.Metrics.ListenAddr, Handler: mux}

	go func() {
		slog.Info("metrics endpoint listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("metrics endpoint failed", "err", err)
		}
	}()
	a.closers = append(a.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// unsupportedProvider stands in when no recognition provider is configured.
type unsupportedProvider struct{}

func (unsupportedProvider) StartStream(context.Context, asr.StreamConfig) (asr.SessionHandle, error) {
	return nil, asr.ErrUnsupported
}
