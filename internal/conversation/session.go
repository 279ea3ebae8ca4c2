package conversation

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sautina/sauti/internal/language"
)

// Mode selects the backend conversation behavior. Chat and learn are
// disjoint contexts: the backend receives only the current mode tag, never
// history, so mixing turns across modes would be incoherent.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeLearn Mode = "learn"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeChat || m == ModeLearn
}

// Session owns one open conversation: the turn log plus the active mode and
// language. Switching modes deliberately discards history rather than
// branching it; there is no merge and no archival.
type Session struct {
	mu    sync.Mutex
	store *Store
	mode  Mode
	lang  language.Code
}

// NewSession creates a chat-mode session with the given language. Invalid
// codes fall back to English.
func NewSession(lang language.Code) *Session {
	if !lang.IsValid() {
		lang = language.English
	}
	return &Session{
		store: NewStore(),
		mode:  ModeChat,
		lang:  lang,
	}
}

// Store returns the session's conversation log.
func (s *Session) Store() *Store {
	return s.store
}

// Mode returns the active interaction mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Language returns the active language.
func (s *Session) Language() language.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// SetLanguage switches the active language. It never touches the turn log.
func (s *Session) SetLanguage(code language.Code) error {
	if !code.IsValid() {
		return fmt.Errorf("conversation: unsupported language %q", code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lang = code
	return nil
}

// ToggleMode flips between chat and learn and unconditionally resets the
// turn log. Returns the new mode.
func (s *Session) ToggleMode() Mode {
	s.mu.Lock()
	if s.mode == ModeChat {
		s.mode = ModeLearn
	} else {
		s.mode = ModeChat
	}
	mode := s.mode
	s.mu.Unlock()

	s.store.Reset()
	slog.Info("conversation mode switched", "mode", mode)
	return mode
}

// NewConversation clears the turn log and returns the session to chat mode.
// The language selection is preserved.
func (s *Session) NewConversation() {
	s.mu.Lock()
	s.mode = ModeChat
	s.mu.Unlock()

	s.store.Reset()
	slog.Info("new conversation started")
}
