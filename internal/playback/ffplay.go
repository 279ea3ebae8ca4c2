package playback

import (
	"fmt"
	"os/exec"
	"sync"
	"syscall"
)

// FFplayFactory builds players that shell out to ffplay. Pause and resume are
// implemented with SIGSTOP/SIGCONT, which freezes the decoder mid-stream
// without reopening the URL.
type FFplayFactory struct {
	command string
}

// NewFFplayFactory creates a factory backed by the given ffplay binary.
// An empty command means "ffplay" from PATH.
func NewFFplayFactory(command string) *FFplayFactory {
	if command == "" {
		command = "ffplay"
	}
	return &FFplayFactory{command: command}
}

// New implements Factory.
func (f *FFplayFactory) New(audioURL string) (Player, error) {
	if _, err := exec.LookPath(f.command); err != nil {
		return nil, fmt.Errorf("playback: %q not found: %w", f.command, err)
	}
	return &ffplayPlayer{
		command:  f.command,
		audioURL: audioURL,
		done:     make(chan struct{}),
	}, nil
}

type ffplayPlayer struct {
	command  string
	audioURL string
	done     chan struct{}

	mu  sync.Mutex
	cmd *exec.Cmd

	stopOnce sync.Once
}

func (p *ffplayPlayer) Play() error {
	cmd := exec.Command(p.command,
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		p.audioURL,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("playback: start %s: %w", p.command, err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return nil
}

func (p *ffplayPlayer) Pause() error {
	return p.signal(syscall.SIGSTOP)
}

func (p *ffplayPlayer) Resume() error {
	return p.signal(syscall.SIGCONT)
}

// Stop kills the player process. Idempotent; the done channel is closed by
// the waiter once the process is reaped.
func (p *ffplayPlayer) Stop() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		cmd := p.cmd
		p.mu.Unlock()
		if cmd == nil || cmd.Process == nil {
			return
		}
		// A paused process ignores SIGKILL until it runs again.
		_ = cmd.Process.Signal(syscall.SIGCONT)
		_ = cmd.Process.Kill()
	})
	return nil
}

func (p *ffplayPlayer) Done() <-chan struct{} {
	return p.done
}

func (p *ffplayPlayer) signal(sig syscall.Signal) error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("playback: player is not running")
	}
	if err := cmd.Process.Signal(sig); err != nil {
		return fmt.Errorf("playback: signal %s: %w", sig, err)
	}
	return nil
}
