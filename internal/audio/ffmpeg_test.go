package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sautina/sauti/pkg/asr"
)

func TestStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'pcmpcm'\nsleep 2\n")
	capture := NewFFmpegCapture(script)

	session, err := capture.Start(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "pcm") {
		t.Fatalf("unexpected bytes: %q", buf[:n])
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	// Stop is idempotent.
	if err := session.Stop(); err != nil {
		t.Fatalf("second Stop() error: %v", err)
	}
}

func TestStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'no such device' 1>&2\nexit 1\n")
	capture := NewFFmpegCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, Config{})
	if err == nil {
		t.Fatal("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited immediately") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartMissingBinaryIsUnsupported(t *testing.T) {
	t.Parallel()

	capture := NewFFmpegCapture(filepath.Join(t.TempDir(), "no-such-ffmpeg"))

	_, err := capture.Start(context.Background(), Config{})
	if !errors.Is(err, asr.ErrUnsupported) {
		t.Fatalf("Start() error = %v, want asr.ErrUnsupported", err)
	}
}

func TestNormalizeExitIgnoresExitError(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatal("expected command to fail")
	}
	if got := normalizeExit(err); got != nil {
		t.Fatalf("normalizeExit() = %v, want nil for exit error", got)
	}
}

func writeScript(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}
