package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sautina/sauti/internal/audio"
	"github.com/sautina/sauti/internal/language"
	"github.com/sautina/sauti/pkg/asr"
)

// Status models the capture lifecycle.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusListening Status = "listening"
	StatusStopping  Status = "stopping"
	StatusError     Status = "error"
)

// ErrAlreadyListening is returned by Start while a capture is active.
var ErrAlreadyListening = errors.New("capture: a capture session is already active")

// deviceWarning is the user-visible notice for a mid-session device failure.
// Committed transcript text survives; only the uncommitted tail is dropped.
const deviceWarning = "Speech capture stopped unexpectedly. Recognized text so far was kept."

// EventSink receives capture events. Implementations must not block; they are
// called from the capture goroutines in strict event order.
type EventSink interface {
	// CaptureStatusChanged reports every lifecycle transition.
	CaptureStatusChanged(status Status)

	// CaptureTranscript delivers transcript updates. interim previews carry
	// only the uncommitted tail; committed updates carry the full committed
	// text.
	CaptureTranscript(text string, interim bool)

	// CaptureWarning surfaces a transient, user-visible capture problem.
	CaptureWarning(message string)
}

// FinalFilter inspects final fragments before they enter the accumulator.
// Returning true consumes the fragment (e.g. a spoken command).
type FinalFilter interface {
	Intercept(text string) bool
}

// Microphone opens PCM capture sessions. Implemented by audio.FFmpegCapture.
type Microphone interface {
	Start(ctx context.Context, cfg audio.Config) (audio.Session, error)
}

// Config controls capture audio parameters.
type Config struct {
	// SampleRate in Hz. 16000 if zero.
	SampleRate int

	// Channels count. 1 if zero.
	Channels int

	// ChunkSize is the PCM read size per send. 4096 if below 256.
	ChunkSize int

	// Mic configures the microphone backend.
	Mic audio.Config
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithFinalFilter installs a filter consulted for every final fragment.
func WithFinalFilter(f FinalFilter) Option {
	return func(s *Session) {
		s.filter = f
	}
}

// Session is the speech capture state machine: idle → listening → idle on a
// normal stop, listening → error → idle on a device failure. One capture may
// be active at a time; each capture owns a fresh Accumulator, so no
// transcript state crosses a stop/start boundary.
//
// Capture is independent of any outstanding backend request: starting or
// stopping it neither cancels nor waits for network work.
type Session struct {
	provider asr.Provider
	mic      Microphone
	sink     EventSink
	filter   FinalFilter
	cfg      Config

	mu      sync.Mutex
	current *activeCapture
}

// NewSession creates a capture Session.
func NewSession(provider asr.Provider, mic Microphone, sink EventSink, cfg Config, opts ...Option) *Session {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	s := &Session{
		provider: provider,
		mic:      mic,
		sink:     sink,
		cfg:      cfg,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start opens a continuous, interim-enabled capture stream for the given
// language. When no capture capability is available the error satisfies
// errors.Is(err, asr.ErrUnsupported), the status stays idle, and the caller
// surfaces a notice instead of crashing.
func (s *Session) Start(ctx context.Context, lang language.Code) error {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return ErrAlreadyListening
	}
	s.mu.Unlock()

	capCtx, cancel := context.WithCancel(ctx)

	handle, err := s.provider.StartStream(capCtx, asr.StreamConfig{
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Locale:     lang.Locale(),
	})
	if err != nil {
		cancel()
		return fmt.Errorf("capture: open recognition stream: %w", err)
	}

	micCfg := s.cfg.Mic
	micCfg.SampleRate = s.cfg.SampleRate
	micCfg.Channels = s.cfg.Channels
	micSession, err := s.mic.Start(capCtx, micCfg)
	if err != nil {
		_ = handle.Close()
		cancel()
		return fmt.Errorf("capture: open microphone: %w", err)
	}

	active := &activeCapture{
		cancel:        cancel,
		handle:        handle,
		mic:           micSession,
		acc:           NewAccumulator(),
		fragmentsDone: make(chan struct{}),
		audioDone:     make(chan struct{}),
		status:        StatusListening,
	}

	s.mu.Lock()
	s.current = active
	s.mu.Unlock()

	go s.pumpAudio(active)
	go s.consumeFragments(active)

	s.sink.CaptureStatusChanged(StatusListening)
	slog.Info("capture started", "language", lang, "locale", lang.Locale())
	return nil
}

// Stop closes the active capture and returns the committed transcript. A
// Stop while idle is a no-op returning "". Duplicate Stops while one is in
// flight are absorbed by the stopping guard.
func (s *Session) Stop() string {
	s.mu.Lock()
	active := s.current
	s.mu.Unlock()

	if active == nil {
		return ""
	}
	if !active.beginStop() {
		return active.acc.CurrentText()
	}

	active.setStatus(StatusStopping)
	s.sink.CaptureStatusChanged(StatusStopping)

	_ = active.mic.Stop()
	_ = active.handle.Close()
	<-active.fragmentsDone
	<-active.audioDone

	active.acc.DiscardPending()
	active.cancel()
	active.setStatus(StatusIdle)
	s.clearCurrent(active)
	s.sink.CaptureStatusChanged(StatusIdle)

	text := active.acc.CurrentText()
	slog.Info("capture stopped", "transcript_len", len(text))
	return text
}

// Status returns the current capture status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return StatusIdle
	}
	return s.current.getStatus()
}

// pumpAudio reads PCM chunks from the microphone into the recognition stream.
func (s *Session) pumpAudio(active *activeCapture) {
	defer close(active.audioDone)

	buf := make([]byte, s.cfg.ChunkSize)
	for {
		n, err := active.mic.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if sendErr := active.handle.SendAudio(chunk); sendErr != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !active.isStopping() {
				slog.Warn("capture audio pump ended", "err", err)
			}
			return
		}
	}
}

// consumeFragments processes recognition fragments in strict arrival order.
func (s *Session) consumeFragments(active *activeCapture) {
	defer close(active.fragmentsDone)

	for frag := range active.handle.Fragments() {
		if frag.Final {
			if s.filter != nil && s.filter.Intercept(frag.Text) {
				continue
			}
			active.acc.OnFragment(frag.Text, true)
			s.sink.CaptureTranscript(active.acc.CurrentText(), false)
		} else {
			active.acc.OnFragment(frag.Text, false)
			s.sink.CaptureTranscript(frag.Text, true)
		}
	}

	// The stream ended on the provider side. If a Stop is driving the
	// teardown it owns the remaining transitions.
	if active.isStopping() {
		return
	}
	s.finishAfterStreamEnd(active)
}

// finishAfterStreamEnd handles a provider-initiated stream end: a device
// failure, or a clean remote close. Uncommitted interim text is discarded,
// committed text is preserved.
func (s *Session) finishAfterStreamEnd(active *activeCapture) {
	active.acc.DiscardPending()
	active.cancel()
	_ = active.mic.Stop()

	if err := active.handle.Err(); err != nil {
		active.setStatus(StatusError)
		s.sink.CaptureStatusChanged(StatusError)
		s.sink.CaptureWarning(deviceWarning)
		slog.Warn("capture device error", "err", err)
	}

	active.setStatus(StatusIdle)
	s.clearCurrent(active)
	s.sink.CaptureStatusChanged(StatusIdle)
}

func (s *Session) clearCurrent(active *activeCapture) {
	s.mu.Lock()
	if s.current == active {
		s.current = nil
	}
	s.mu.Unlock()
}

// activeCapture is the state of one capture instance.
type activeCapture struct {
	cancel context.CancelFunc
	handle asr.SessionHandle
	mic    audio.Session
	acc    *Accumulator

	fragmentsDone chan struct{}
	audioDone     chan struct{}

	mu       sync.Mutex
	status   Status
	stopping bool
}

func (a *activeCapture) setStatus(st Status) {
	a.mu.Lock()
	a.status = st
	a.mu.Unlock()
}

func (a *activeCapture) getStatus() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// beginStop marks the capture as stopping. Returns false when a stop is
// already in progress, making Stop idempotent.
func (a *activeCapture) beginStop() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopping {
		return false
	}
	a.stopping = true
	return true
}

func (a *activeCapture) isStopping() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopping
}
