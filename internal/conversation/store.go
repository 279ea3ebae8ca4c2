// Package conversation holds the ordered conversation log and the
// chat/learn session state around it. The Store is the single source of
// truth for what is rendered: user turns are appended optimistically before
// the backend responds, assistant turns on reconciliation.
package conversation

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// FailureMessage is the fixed user-visible text committed as an assistant
// turn when a backend request fails. The underlying cause is logged, never
// shown.
const FailureMessage = "Sorry, I encountered an error processing your request."

var (
	// ErrEmptyInput is returned when a user turn would be blank after trimming.
	// It never reaches the network; the caller simply refuses to dispatch.
	ErrEmptyInput = errors.New("conversation: input text is empty")

	// ErrPendingRequest signals a contract violation: a second request was
	// begun while one is still outstanding. The UI must disable sends while
	// the store is pending.
	ErrPendingRequest = errors.New("conversation: a request is already pending")
)

// Epoch is a monotonically increasing token bumped by every Reset. It is
// captured when a request begins and checked when it resolves, so a response
// arriving after the conversation was cleared cannot resurrect a stale turn.
type Epoch uint64

// timestampLayout matches the original client's locale-style HH:MM rendering.
const timestampLayout = "15:04"

// Store is the append-only conversation log. All methods are safe for
// concurrent use: user sends, backend resolutions, and mode resets all
// funnel through it.
type Store struct {
	mu      sync.Mutex
	turns   []Turn
	nextID  int64
	pending bool
	epoch   Epoch

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// AppendUserTurn commits a user turn immediately, before the backend
// responds. Returns ErrEmptyInput if text trims to nothing.
func (s *Store) AppendUserTurn(text string) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(SpeakerUser, text, ""), nil
}

// BeginPending marks the start of a backend round trip and returns the epoch
// to present at resolution time. Returns ErrPendingRequest if a round trip is
// already outstanding.
func (s *Store) BeginPending() (Epoch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		return 0, ErrPendingRequest
	}
	s.pending = true
	return s.epoch, nil
}

// ResolvePending commits an assistant turn for a successful response.
// audioRef may be empty. Returns ok=false without appending anything when the
// epoch is stale, i.e. the store was reset after the request was dispatched.
func (s *Store) ResolvePending(epoch Epoch, text, audioRef string) (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settle(epoch) {
		return Turn{}, false
	}
	return s.append(SpeakerAssistant, text, audioRef), true
}

// FailPending commits the fixed failure message as an assistant turn. The
// user's own turn stays in the log so the conversation remains truthful about
// what was sent. Stale epochs are dropped exactly as in ResolvePending.
func (s *Store) FailPending(epoch Epoch) (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settle(epoch) {
		return Turn{}, false
	}
	return s.append(SpeakerAssistant, FailureMessage, ""), true
}

// Reset clears all turns, drops any pending flag, and invalidates
// outstanding epochs.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = nil
	s.pending = false
	s.epoch++
}

// Turns returns a copy of the committed turns in commit order.
func (s *Store) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Pending reports whether a backend round trip is outstanding.
func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Len returns the number of committed turns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// settle clears the pending flag for a current-epoch resolution and reports
// whether the resolution should commit. Callers must hold s.mu.
func (s *Store) settle(epoch Epoch) bool {
	if epoch != s.epoch {
		// Stale: the store was reset after dispatch. If a round trip begun
		// after the reset is pending, leave its flag alone.
		return false
	}
	if !s.pending {
		return false
	}
	s.pending = false
	return true
}

// append commits a turn. Callers must hold s.mu.
func (s *Store) append(speaker Speaker, text, audioRef string) Turn {
	s.nextID++
	t := Turn{
		ID:        s.nextID,
		Speaker:   speaker,
		Text:      text,
		CreatedAt: s.now().Format(timestampLayout),
		AudioRef:  audioRef,
	}
	s.turns = append(s.turns, t)
	return t
}
