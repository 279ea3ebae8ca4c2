// Package playback drives per-turn audio players. Each assistant turn with an
// audio reference gets its own lazily constructed player; players are
// independent of each other and of any in-flight backend request.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
)

// State models one player's lifecycle.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Player is one playable audio stream.
type Player interface {
	// Play starts playback from the beginning.
	Play() error

	// Pause suspends playback, Resume continues it.
	Pause() error
	Resume() error

	// Stop ends playback and releases the underlying resources. Idempotent.
	Stop() error

	// Done is closed when playback ends for any reason.
	Done() <-chan struct{}
}

// Factory constructs players for audio URLs.
type Factory interface {
	New(audioURL string) (Player, error)
}

// Controller multiplexes playback across turns. Toggle is the single
// user-facing operation: construct-and-play, pause, or resume, depending on
// the player's current state. There is no global mutual exclusion; two turns
// may play at once.
type Controller struct {
	factory Factory

	mu      sync.Mutex
	players map[int64]*slot
}

type slot struct {
	player Player
	state  State
}

// NewController creates a Controller using factory for player construction.
func NewController(factory Factory) *Controller {
	return &Controller{
		factory: factory,
		players: make(map[int64]*slot),
	}
}

// SetFactory replaces the factory used for players built from now on.
// Existing players keep running.
func (c *Controller) SetFactory(factory Factory) {
	c.mu.Lock()
	c.factory = factory
	c.mu.Unlock()
}

// Toggle advances the player for turnID: stopped → playing (constructing the
// player on first use), playing → paused, paused → playing. Returns the
// resulting state.
func (c *Controller) Toggle(turnID int64, audioURL string) (State, error) {
	if audioURL == "" {
		return StateStopped, fmt.Errorf("playback: turn %d has no audio", turnID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.players[turnID]; ok {
		switch s.state {
		case StatePlaying:
			if err := s.player.Pause(); err != nil {
				return s.state, fmt.Errorf("playback: pause turn %d: %w", turnID, err)
			}
			s.state = StatePaused
			return StatePaused, nil
		case StatePaused:
			if err := s.player.Resume(); err != nil {
				return s.state, fmt.Errorf("playback: resume turn %d: %w", turnID, err)
			}
			s.state = StatePlaying
			return StatePlaying, nil
		}
	}

	player, err := c.factory.New(audioURL)
	if err != nil {
		return StateStopped, fmt.Errorf("playback: create player for turn %d: %w", turnID, err)
	}
	if err := player.Play(); err != nil {
		_ = player.Stop()
		return StateStopped, fmt.Errorf("playback: play turn %d: %w", turnID, err)
	}

	c.players[turnID] = &slot{player: player, state: StatePlaying}
	go c.watch(turnID, player)
	slog.Debug("playback started", "turn_id", turnID)
	return StatePlaying, nil
}

// State returns the current state for turnID.
func (c *Controller) State(turnID int64) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.players[turnID]; ok {
		return s.state
	}
	return StateStopped
}

// ReleaseAll stops every player and drops all state. Called on teardown and
// when the conversation is cleared.
func (c *Controller) ReleaseAll() {
	c.mu.Lock()
	players := make([]Player, 0, len(c.players))
	for id, s := range c.players {
		players = append(players, s.player)
		delete(c.players, id)
	}
	c.mu.Unlock()

	for _, p := range players {
		_ = p.Stop()
	}
}

// watch waits for natural end-of-playback and resets the turn to stopped. A
// Toggle that replaced the slot in the meantime keeps its own entry.
func (c *Controller) watch(turnID int64, player Player) {
	<-player.Done()

	c.mu.Lock()
	if s, ok := c.players[turnID]; ok && s.player == player {
		delete(c.players, turnID)
	}
	c.mu.Unlock()
	_ = player.Stop()
}
