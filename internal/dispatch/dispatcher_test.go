package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sautina/sauti/internal/conversation"
	"github.com/sautina/sauti/internal/language"
	"github.com/sautina/sauti/internal/observe"
	"github.com/sautina/sauti/pkg/backend"
)

type fakeBackend struct {
	mu       sync.Mutex
	resp     backend.ChatResponse
	err      error
	requests []backend.TextRequest

	// onSend runs inside SendText, before the response is returned. Used to
	// reset the conversation mid-flight.
	onSend func()
}

func (f *fakeBackend) SendText(_ context.Context, req backend.TextRequest) (backend.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	hook := f.onSend
	resp, err := f.resp, f.err
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return resp, err
}

func (f *fakeBackend) ResolveAudioURL(ref string) string {
	if ref == "" {
		return ""
	}
	return "http://api.test" + ref
}

func newTestMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestSubmitSuccess(t *testing.T) {
	t.Parallel()

	session := conversation.NewSession(language.Hausa)
	be := &fakeBackend{resp: backend.ChatResponse{
		Text:     "Sannu!",
		AudioURL: "/audio/reply-1.mp3",
		Language: "ha",
	}}
	d := New(session, be, newTestMetrics(t))

	turn, err := d.Submit(context.Background(), "  ina kwana  ")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if turn.Speaker != conversation.SpeakerAssistant || turn.Text != "Sannu!" {
		t.Errorf("turn = %+v, want assistant Sannu!", turn)
	}
	if turn.AudioRef != "http://api.test/audio/reply-1.mp3" {
		t.Errorf("AudioRef = %q, want resolved URL", turn.AudioRef)
	}

	turns := session.Store().Turns()
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want user + assistant", len(turns))
	}
	if turns[0].Speaker != conversation.SpeakerUser || turns[0].Text != "ina kwana" {
		t.Errorf("user turn = %+v, want trimmed text", turns[0])
	}
	if session.Store().Pending() {
		t.Error("pending should be cleared after resolution")
	}

	if len(be.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(be.requests))
	}
	req := be.requests[0]
	if req.Text != "ina kwana" || req.Language != "ha" || req.Mode != "chat" {
		t.Errorf("request = %+v", req)
	}
}

func TestSubmitBlankInput(t *testing.T) {
	t.Parallel()

	session := conversation.NewSession(language.English)
	d := New(session, &fakeBackend{}, newTestMetrics(t))

	if _, err := d.Submit(context.Background(), "   \t"); !errors.Is(err, conversation.ErrEmptyInput) {
		t.Fatalf("Submit() error = %v, want ErrEmptyInput", err)
	}
	if session.Store().Len() != 0 {
		t.Error("blank input must not be committed")
	}
}

func TestSubmitWhilePending(t *testing.T) {
	t.Parallel()

	session := conversation.NewSession(language.English)
	if _, err := session.Store().BeginPending(); err != nil {
		t.Fatalf("BeginPending: %v", err)
	}
	d := New(session, &fakeBackend{}, newTestMetrics(t))

	if _, err := d.Submit(context.Background(), "hello"); !errors.Is(err, conversation.ErrPendingRequest) {
		t.Fatalf("Submit() error = %v, want ErrPendingRequest", err)
	}
	if session.Store().Len() != 0 {
		t.Error("a refused submit must leave no orphan user turn")
	}
}

func TestSubmitBackendFailure(t *testing.T) {
	t.Parallel()

	session := conversation.NewSession(language.English)
	be := &fakeBackend{err: errors.New("status 502")}
	d := New(session, be, newTestMetrics(t))

	turn, err := d.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Submit() error: %v, backend failures resolve, not error", err)
	}
	if turn.Text != conversation.FailureMessage {
		t.Errorf("turn.Text = %q, want the fixed failure message", turn.Text)
	}

	turns := session.Store().Turns()
	if len(turns) != 2 || turns[0].Speaker != conversation.SpeakerUser {
		t.Errorf("turns = %+v, the user turn must survive a failure", turns)
	}
	if session.Store().Pending() {
		t.Error("pending should be cleared after a failure")
	}
}

func TestSubmitEmptyReplyIsFailure(t *testing.T) {
	t.Parallel()

	session := conversation.NewSession(language.English)
	be := &fakeBackend{resp: backend.ChatResponse{Text: "   "}}
	d := New(session, be, newTestMetrics(t))

	turn, err := d.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if turn.Text != conversation.FailureMessage {
		t.Errorf("turn.Text = %q, a blank reply must resolve as a failure", turn.Text)
	}
}

func TestSubmitStaleResolutionDropped(t *testing.T) {
	t.Parallel()

	session := conversation.NewSession(language.English)
	be := &fakeBackend{resp: backend.ChatResponse{Text: "late reply"}}
	be.onSend = func() { session.NewConversation() }

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	d := New(session, be, metrics)

	turn, err := d.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if turn.ID != 0 {
		t.Errorf("turn = %+v, a stale resolution must not commit", turn)
	}
	if got := session.Store().Len(); got != 0 {
		t.Errorf("len(turns) = %d, want 0 after the mid-flight reset", got)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "sauti.request.stale_drops" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatal("stale drop counter has no data")
			}
			if got := sum.DataPoints[0].Value; got != 1 {
				t.Errorf("stale drops = %d, want 1", got)
			}
			return
		}
	}
	t.Error("stale drop counter not found")
}
