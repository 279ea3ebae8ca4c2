// Package asr defines the recognition-device boundary consumed by the speech
// capture session: a capability that, given a locale, yields an ordered
// stream of transcript fragments, each marked interim or final.
//
// Implementations must be safe for concurrent use. Fragment order on the
// channel is the order the provider recognised them; consumers rely on strict
// arrival-order processing.
package asr

import (
	"context"
	"errors"
)

// ErrUnsupported reports that no capture capability is available in the host
// environment (missing credentials, missing audio tooling, unreachable
// service). It is surfaced to the user as a notice, never a crash.
var ErrUnsupported = errors.New("asr: speech capture is not available in this environment")

// Fragment is one chunk of recognised speech. Interim fragments are previews
// subject to revision; final fragments are stable and may be committed.
type Fragment struct {
	Text  string
	Final bool
}

// StreamConfig describes the audio format and recognition locale for a new
// capture stream.
type StreamConfig struct {
	// SampleRate is the PCM sample rate in Hz. 16000 if zero.
	SampleRate int

	// Channels is the channel count. 1 if zero.
	Channels int

	// Locale is the BCP-47 recognition tag (e.g. "ha-NG").
	Locale string
}

// SessionHandle is one open capture stream. Callers must Close it when done;
// Close is idempotent.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM matching StreamConfig. Calling
	// SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Fragments returns the ordered fragment stream. The channel is closed
	// when the session ends, cleanly or not.
	Fragments() <-chan Fragment

	// Err reports the terminal device error after Fragments is closed, or nil
	// for a clean close.
	Err() error

	// Close terminates the session and releases its resources.
	Close() error
}

// Provider opens capture streams against some recognition backend.
type Provider interface {
	// StartStream opens a streaming recognition session. Returns
	// ErrUnsupported (possibly wrapped) when the capability is absent rather
	// than misconfigured input.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
