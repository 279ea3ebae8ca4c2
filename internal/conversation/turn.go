package conversation

// Speaker identifies the author of a conversation turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one committed conversation entry. Turns are append-only: once a
// turn is committed to the store it is never mutated and never removed except
// by a full reset.
type Turn struct {
	// ID is unique and strictly increasing within a store.
	ID int64

	// Speaker is who authored the turn.
	Speaker Speaker

	// Text is the displayed content. Never empty for a committed turn.
	Text string

	// CreatedAt is the display timestamp ("15:04"), assigned at commit time.
	CreatedAt string

	// AudioRef is the resolved URL of synthesized speech for assistant turns
	// that returned audio. Empty otherwise. Set at most once, at commit time.
	AudioRef string
}
