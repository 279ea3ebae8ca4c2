// Package mock provides scripted asr implementations for tests. The Handle
// lets a test emit fragments, end the stream cleanly, or fail it with a
// device error, while recording every call made by the code under test.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/sautina/sauti/pkg/asr"
)

// Provider is a scripted asr.Provider.
type Provider struct {
	mu sync.Mutex

	// StartErr, when non-nil, is returned by every StartStream call.
	StartErr error

	// NextHandle is returned by the next StartStream call. When nil, a fresh
	// Handle is created and returned.
	NextHandle *Handle

	// StartCalls records the config of every StartStream invocation.
	StartCalls []asr.StreamConfig

	// Handles records every handle handed out, in order.
	Handles []*Handle
}

// StartStream implements asr.Provider.
func (p *Provider) StartStream(_ context.Context, cfg asr.StreamConfig) (asr.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.StartCalls = append(p.StartCalls, cfg)
	if p.StartErr != nil {
		return nil, p.StartErr
	}

	h := p.NextHandle
	p.NextHandle = nil
	if h == nil {
		h = NewHandle()
	}
	p.Handles = append(p.Handles, h)
	return h, nil
}

// Handle is a scripted asr.SessionHandle.
type Handle struct {
	mu        sync.Mutex
	fragments chan asr.Fragment
	closed    bool
	ended     bool
	err       error

	// SentAudio records every chunk passed to SendAudio.
	SentAudio [][]byte

	// CloseCount counts Close invocations.
	CloseCount int
}

// NewHandle creates an open Handle with a buffered fragment channel.
func NewHandle() *Handle {
	return &Handle{fragments: make(chan asr.Fragment, 64)}
}

// Emit scripts one fragment onto the stream.
func (h *Handle) Emit(text string, final bool) {
	h.fragments <- asr.Fragment{Text: text, Final: final}
}

// End closes the fragment stream cleanly, as after a provider-side flush.
func (h *Handle) End() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ended {
		h.ended = true
		close(h.fragments)
	}
}

// Fail ends the stream with a terminal device error.
func (h *Handle) Fail(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	h.End()
}

// SendAudio implements asr.SessionHandle.
func (h *Handle) SendAudio(chunk []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("mock: session is closed")
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	h.SentAudio = append(h.SentAudio, buf)
	return nil
}

// Fragments implements asr.SessionHandle.
func (h *Handle) Fragments() <-chan asr.Fragment { return h.fragments }

// Err implements asr.SessionHandle.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close implements asr.SessionHandle. It also ends the fragment stream so
// consumers waiting on Fragments unblock.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.CloseCount++
	h.mu.Unlock()
	h.End()
	return nil
}

// Closed reports whether Close has been called at least once.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
