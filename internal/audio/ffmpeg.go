// Package audio captures raw microphone PCM by running ffmpeg as a
// subprocess, which keeps the client CGO-free and works anywhere ffmpeg and a
// capture backend (pulse, alsa, avfoundation, dshow) are installed. The PCM
// stream is pumped into the active recognition session by the capture layer.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sautina/sauti/pkg/asr"
)

const (
	// startupGrace is how long ffmpeg gets to fail fast (bad device, bad
	// format) before the capture is considered live.
	startupGrace = 250 * time.Millisecond

	// stopTimeout is how long a session waits for ffmpeg to exit after an
	// interrupt before killing it.
	stopTimeout = 1200 * time.Millisecond
)

// Config describes how the microphone should be captured.
type Config struct {
	// SampleRate in Hz. 16000 if zero.
	SampleRate int

	// Channels count. 1 if zero.
	Channels int

	// InputFormat is the ffmpeg input driver ("pulse", "alsa", ...).
	// "pulse" if empty.
	InputFormat string

	// InputDevice is the device name for the input driver. "default" if empty.
	InputDevice string
}

// Session is a live microphone capture emitting s16le PCM.
type Session interface {
	io.ReadCloser
	Stop() error
}

// FFmpegCapture starts microphone capture sessions via an ffmpeg subprocess.
type FFmpegCapture struct {
	command string
}

// NewFFmpegCapture creates a capture backed by the given ffmpeg binary.
// An empty command means "ffmpeg" from PATH.
func NewFFmpegCapture(command string) *FFmpegCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegCapture{command: command}
}

// Start launches ffmpeg and returns a Session reading raw PCM from its
// stdout. A missing binary is reported as asr.ErrUnsupported so callers can
// surface "no capture capability here" instead of a crash.
func (c *FFmpegCapture) Start(ctx context.Context, cfg Config) (Session, error) {
	if _, err := exec.LookPath(c.command); err != nil {
		return nil, fmt.Errorf("audio: %q not found: %w", c.command, asr.ErrUnsupported)
	}

	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start %s: %w", c.command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Give ffmpeg a moment to reject a bad device before declaring success.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("audio: capture exited immediately: %w: %s", err, trimmed(&stderr))
		}
		return nil, errors.New("audio: capture exited immediately")
	case <-time.After(startupGrace):
	}

	return &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg and waits for it to exit. Idempotent.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeExit(err)
			}
		case <-time.After(stopTimeout):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeExit(err)
			}
		}

		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = err
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmed(s.stderr))
		}
	})

	return s.stopErr
}

// normalizeExit drops the non-zero exit status ffmpeg reports when it is
// interrupted; that is the expected shutdown path, not a failure.
func normalizeExit(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(buf *bytes.Buffer) string {
	return string(bytes.TrimSpace(buf.Bytes()))
}
