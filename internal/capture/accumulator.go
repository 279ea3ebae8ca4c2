// Package capture owns continuous speech capture: the transcript accumulator
// that folds streaming recognition fragments into a stable text buffer, and
// the session state machine around the recognition device.
package capture

import (
	"strings"
	"sync"
)

// Accumulator merges streaming recognition fragments into a stable
// transcript. Interim fragments are previews of the tail and never enter the
// committed text; final fragments are appended in arrival order, space-joined.
//
// Safe for concurrent use. Each capture instance gets its own Accumulator, so
// no state bleeds across a stop/start boundary.
type Accumulator struct {
	mu        sync.Mutex
	committed string
	pending   string
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// OnFragment folds one recognition fragment into the buffer. Empty fragments
// are ignored, as are finals consisting only of whitespace. Interior
// whitespace inside a fragment is preserved as delivered.
func (a *Accumulator) OnFragment(text string, final bool) {
	if text == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !final {
		a.pending = text
		return
	}

	if strings.TrimSpace(text) == "" {
		return
	}
	if a.committed == "" {
		a.committed = text
	} else {
		a.committed += " " + text
	}
	// The final supersedes whatever interim preview preceded it.
	a.pending = ""
}

// CurrentText returns the committed transcript — the only text that may be
// submitted. Interim previews are never part of it.
func (a *Accumulator) CurrentText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed
}

// Preview returns the latest uncommitted interim fragment, or "" when the
// last fragment was final.
func (a *Accumulator) Preview() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// DiscardPending drops any uncommitted interim fragment. Used when the
// capture session leaves the listening state: uncommitted speech is
// discarded, never silently finalized.
func (a *Accumulator) DiscardPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = ""
}

// Reset clears all state.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.committed = ""
	a.pending = ""
}
