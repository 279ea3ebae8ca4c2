package capture

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sautina/sauti/internal/audio"
	"github.com/sautina/sauti/internal/language"
	"github.com/sautina/sauti/pkg/asr"
	asrmock "github.com/sautina/sauti/pkg/asr/mock"
)

// ---- fakes ----

// fakeMicSession blocks reads until stopped, then reports EOF.
type fakeMicSession struct {
	once sync.Once
	done chan struct{}
}

func newFakeMicSession() *fakeMicSession {
	return &fakeMicSession{done: make(chan struct{})}
}

func (m *fakeMicSession) Read(p []byte) (int, error) {
	<-m.done
	return 0, io.EOF
}

func (m *fakeMicSession) Close() error { return m.Stop() }

func (m *fakeMicSession) Stop() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

type fakeMic struct {
	mu       sync.Mutex
	startErr error
	sessions []*fakeMicSession
}

func (m *fakeMic) Start(_ context.Context, _ audio.Config) (audio.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}
	sess := newFakeMicSession()
	m.sessions = append(m.sessions, sess)
	return sess, nil
}

// recordingSink records every capture event.
type recordingSink struct {
	mu          sync.Mutex
	statuses    []Status
	transcripts []string
	interims    []string
	warnings    []string
}

func (r *recordingSink) CaptureStatusChanged(st Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st)
}

func (r *recordingSink) CaptureTranscript(text string, interim bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if interim {
		r.interims = append(r.interims, text)
	} else {
		r.transcripts = append(r.transcripts, text)
	}
}

func (r *recordingSink) CaptureWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

func (r *recordingSink) lastStatus() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return "", false
	}
	return r.statuses[len(r.statuses)-1], true
}

func (r *recordingSink) waitForStatus(t *testing.T, want Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if got, ok := r.lastStatus(); ok && got == want {
			return
		}
		select {
		case <-deadline:
			got, _ := r.lastStatus()
			t.Fatalf("timed out waiting for status %q, last was %q", want, got)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (r *recordingSink) waitForTranscript(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		n := len(r.transcripts)
		found := n > 0 && r.transcripts[n-1] == want
		r.mu.Unlock()
		if found {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for committed transcript %q", want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func newTestSession(opts ...Option) (*Session, *asrmock.Provider, *asrmock.Handle, *fakeMic, *recordingSink) {
	handle := asrmock.NewHandle()
	provider := &asrmock.Provider{NextHandle: handle}
	mic := &fakeMic{}
	sink := &recordingSink{}
	s := NewSession(provider, mic, sink, Config{}, opts...)
	return s, provider, handle, mic, sink
}

// ---- tests ----

func TestStartStopNormalFlow(t *testing.T) {
	t.Parallel()

	s, provider, handle, _, sink := newTestSession()

	if err := s.Start(context.Background(), language.Hausa); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if got := s.Status(); got != StatusListening {
		t.Errorf("Status() = %q, want listening", got)
	}
	if len(provider.StartCalls) != 1 || provider.StartCalls[0].Locale != "ha-NG" {
		t.Errorf("StartStream calls = %+v, want one with locale ha-NG", provider.StartCalls)
	}

	handle.Emit("sannu", false)
	handle.Emit("sannu da rana", true)
	sink.waitForTranscript(t, "sannu da rana")

	text := s.Stop()
	if text != "sannu da rana" {
		t.Errorf("Stop() = %q, want committed transcript", text)
	}
	if got := s.Status(); got != StatusIdle {
		t.Errorf("Status() = %q after Stop, want idle", got)
	}
	if !handle.Closed() {
		t.Error("recognition stream should be closed after Stop")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.interims) == 0 || sink.interims[0] != "sannu" {
		t.Errorf("interim previews = %v, want [sannu ...]", sink.interims)
	}
	wantStatuses := []Status{StatusListening, StatusStopping, StatusIdle}
	if len(sink.statuses) != len(wantStatuses) {
		t.Fatalf("statuses = %v, want %v", sink.statuses, wantStatuses)
	}
	for i, want := range wantStatuses {
		if sink.statuses[i] != want {
			t.Errorf("statuses[%d] = %q, want %q", i, sink.statuses[i], want)
		}
	}
}

func TestStartUnsupportedCapability(t *testing.T) {
	t.Parallel()

	s, provider, _, _, _ := newTestSession()
	provider.StartErr = asr.ErrUnsupported
	provider.NextHandle = nil

	err := s.Start(context.Background(), language.English)
	if !errors.Is(err, asr.ErrUnsupported) {
		t.Fatalf("Start() error = %v, want asr.ErrUnsupported", err)
	}
	if got := s.Status(); got != StatusIdle {
		t.Errorf("Status() = %q after unsupported start, want idle", got)
	}
}

func TestStartWhileListening(t *testing.T) {
	t.Parallel()

	s, _, _, _, _ := newTestSession()
	if err := s.Start(context.Background(), language.English); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	if err := s.Start(context.Background(), language.English); !errors.Is(err, ErrAlreadyListening) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyListening", err)
	}
}

func TestMicFailureClosesStream(t *testing.T) {
	t.Parallel()

	s, _, handle, mic, _ := newTestSession()
	mic.startErr = errors.New("device busy")

	if err := s.Start(context.Background(), language.English); err == nil {
		t.Fatal("Start() should fail when the microphone cannot open")
	}
	if !handle.Closed() {
		t.Error("recognition stream should be closed when the microphone fails")
	}
	if got := s.Status(); got != StatusIdle {
		t.Errorf("Status() = %q, want idle", got)
	}
}

func TestDeviceErrorDropsPreviewKeepsCommitted(t *testing.T) {
	t.Parallel()

	s, _, handle, _, sink := newTestSession()
	if err := s.Start(context.Background(), language.Yoruba); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	handle.Emit("e kaaro", true)
	sink.waitForTranscript(t, "e kaaro")
	handle.Emit("uncommitted tail", false)
	handle.Fail(errors.New("stream reset by peer"))

	sink.waitForStatus(t, StatusIdle)

	sink.mu.Lock()
	sawError := false
	for _, st := range sink.statuses {
		if st == StatusError {
			sawError = true
		}
	}
	warnings := len(sink.warnings)
	committed := sink.transcripts[len(sink.transcripts)-1]
	sink.mu.Unlock()

	if !sawError {
		t.Error("device failure should pass through the error status")
	}
	if warnings != 1 {
		t.Errorf("warnings = %d, want 1", warnings)
	}
	if committed != "e kaaro" {
		t.Errorf("committed transcript = %q, want preserved %q", committed, "e kaaro")
	}
	if got := s.Status(); got != StatusIdle {
		t.Errorf("Status() = %q after device error, want idle", got)
	}
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	t.Parallel()

	s, _, _, _, sink := newTestSession()
	if got := s.Stop(); got != "" {
		t.Errorf("Stop() while idle = %q, want empty", got)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.statuses) != 0 {
		t.Errorf("statuses = %v, want none for an idle Stop", sink.statuses)
	}
}

func TestFreshAccumulatorPerCapture(t *testing.T) {
	t.Parallel()

	handle1 := asrmock.NewHandle()
	provider := &asrmock.Provider{NextHandle: handle1}
	mic := &fakeMic{}
	sink := &recordingSink{}
	s := NewSession(provider, mic, sink, Config{})

	if err := s.Start(context.Background(), language.English); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	handle1.Emit("first capture", true)
	sink.waitForTranscript(t, "first capture")
	if got := s.Stop(); got != "first capture" {
		t.Fatalf("first Stop() = %q", got)
	}

	handle2 := asrmock.NewHandle()
	provider.NextHandle = handle2
	if err := s.Start(context.Background(), language.English); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}
	handle2.Emit("second capture", true)
	sink.waitForTranscript(t, "second capture")
	if got := s.Stop(); got != "second capture" {
		t.Errorf("second Stop() = %q, accumulator state leaked across captures", got)
	}
}

// interceptFilter consumes fragments containing a marker string.
type interceptFilter struct {
	marker string

	mu   sync.Mutex
	seen []string
}

func (f *interceptFilter) Intercept(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.Contains(text, f.marker) {
		f.seen = append(f.seen, text)
		return true
	}
	return false
}

func TestFinalFilterInterceptsFragments(t *testing.T) {
	t.Parallel()

	filter := &interceptFilter{marker: "new chat"}
	s, _, handle, _, sink := newTestSession(WithFinalFilter(filter))

	if err := s.Start(context.Background(), language.English); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	handle.Emit("hello there", true)
	handle.Emit("new chat", true)
	handle.Emit("how are you", true)
	sink.waitForTranscript(t, "hello there how are you")

	if got := s.Stop(); got != "hello there how are you" {
		t.Errorf("Stop() = %q, intercepted fragment leaked into the transcript", got)
	}

	filter.mu.Lock()
	defer filter.mu.Unlock()
	if len(filter.seen) != 1 || filter.seen[0] != "new chat" {
		t.Errorf("intercepted = %v, want [new chat]", filter.seen)
	}
}
