// Package translate implements the modal translator sub-session. It is fully
// decoupled from the main conversation: its own language pair, its own text
// state, its own request lifecycle, and nothing survives a close.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sautina/sauti/internal/language"
	"github.com/sautina/sauti/internal/observe"
	"github.com/sautina/sauti/pkg/backend"
)

// FailureMessage is the fixed inline text shown when a translation request
// fails. A prior successful translation is preserved, never cleared.
const FailureMessage = "Translation failed. Please try again."

// Status models the translator request lifecycle.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusTranslating Status = "translating"
	StatusError       Status = "error"
)

// Translator is the slice of the backend client the session uses.
// Implemented by *backend.Client.
type Translator interface {
	Translate(ctx context.Context, req backend.TranslateRequest) (backend.TranslateResponse, error)
}

// Snapshot is a point-in-time copy of the translator state for rendering.
type Snapshot struct {
	SourceText     string
	TranslatedText string
	Source         language.Code
	Target         language.Code
	Status         Status
	ErrorMessage   string
}

// Session is one open translator surface. Overlapping Translate calls are
// permitted and resolve last-write-wins in completion order; serialising them
// is the caller's job (the UI disables its control while translating). A
// result arriving after Close is dropped.
type Session struct {
	client  Translator
	metrics *observe.Metrics

	mu         sync.Mutex
	source     language.Code
	target     language.Code
	sourceText string
	translated string
	status     Status
	errMsg     string
	generation uint64
	closed     bool
	cancels    map[uint64]context.CancelFunc
	nextCall   uint64
}

// NewSession opens a translator with the default English → Hausa pair.
func NewSession(client Translator, metrics *observe.Metrics) *Session {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Session{
		client:  client,
		metrics: metrics,
		source:  language.English,
		target:  language.Hausa,
		status:  StatusIdle,
		cancels: make(map[uint64]context.CancelFunc),
	}
}

// SetPair replaces the language pair. Texts are left alone.
func (s *Session) SetPair(source, target language.Code) error {
	if !source.IsValid() {
		return fmt.Errorf("translate: unsupported language %q", source)
	}
	if !target.IsValid() {
		return fmt.Errorf("translate: unsupported language %q", target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.target = target
	return nil
}

// Translate runs one translation round trip for text. Blank input is a no-op.
// On success the translated text replaces the previous one; on failure the
// previous translation stays and the fixed failure message is set. Safe to
// call concurrently; the last completion wins.
func (s *Session) Translate(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	src, dst := s.source, s.target
	s.sourceText = text
	s.status = StatusTranslating
	s.errMsg = ""

	callCtx, cancel := context.WithCancel(ctx)
	id := s.nextCall
	s.nextCall++
	s.cancels[id] = cancel
	s.mu.Unlock()

	start := time.Now()
	resp, err := s.client.Translate(callCtx, backend.TranslateRequest{
		Text:           text,
		SourceLanguage: string(src),
		TargetLanguage: string(dst),
	})
	elapsed := time.Since(start).Seconds()
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)

	// The surface was closed or reset while the call was in flight; the
	// result no longer has an audience.
	if s.closed || gen != s.generation {
		return nil
	}

	s.metrics.RecordRequest(ctx, "translate", elapsed, err != nil)
	if err != nil {
		s.status = StatusError
		s.errMsg = FailureMessage
		s.metrics.RecordTranslationFailure(ctx)
		slog.Warn("translation failed", "err", err, "source", src, "target", dst)
		return nil
	}

	s.translated = resp.TranslatedText
	s.status = StatusIdle
	return nil
}

// Swap exchanges the language pair and the text pair in one operation, so the
// previous output becomes the new input for the reverse direction. Swap is
// its own inverse.
func (s *Session) Swap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.source, s.target = s.target, s.source
	s.sourceText, s.translated = s.translated, s.sourceText
}

// Close discards the session: texts cleared, in-flight calls cancelled, late
// results dropped. The session accepts no further work.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.generation++
	s.sourceText = ""
	s.translated = ""
	s.status = StatusIdle
	s.errMsg = ""
	for id, cancel := range s.cancels {
		cancel()
		delete(s.cancels, id)
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		SourceText:     s.sourceText,
		TranslatedText: s.translated,
		Source:         s.source,
		Target:         s.target,
		Status:         s.status,
		ErrorMessage:   s.errMsg,
	}
}
