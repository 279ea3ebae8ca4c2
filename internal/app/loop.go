package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sautina/sauti/internal/capture"
	"github.com/sautina/sauti/internal/conversation"
	"github.com/sautina/sauti/internal/language"
	"github.com/sautina/sauti/internal/translate"
	"github.com/sautina/sauti/internal/voicecmd"
	"github.com/sautina/sauti/pkg/asr"
)

// errQuit is the sentinel returned by the input loop when the user quits.
// Run translates it into a clean exit.
var errQuit = errors.New("app: quit requested")

type eventKind string

const (
	eventStatus     eventKind = "status"
	eventTranscript eventKind = "transcript"
	eventWarning    eventKind = "warning"
	eventCommand    eventKind = "command"
	eventTurn       eventKind = "turn"
)

// event carries one capture, voice-command, or turn-resolution notification
// into the event loop. Only the fields for its kind are set.
type event struct {
	kind    eventKind
	status  capture.Status
	text    string
	interim bool
	command voicecmd.Command
	turn    conversation.Turn
}

// post enqueues an event without blocking. The channel is sized generously;
// dropping under sustained pressure beats deadlocking a capture goroutine.
func (a *App) post(ev event) {
	select {
	case a.events <- ev:
	default:
		slog.Warn("event channel full, event dropped", "kind", ev.kind)
	}
}

// CaptureStatusChanged implements capture.EventSink.
func (a *App) CaptureStatusChanged(status capture.Status) {
	a.post(event{kind: eventStatus, status: status})
}

// CaptureTranscript implements capture.EventSink.
func (a *App) CaptureTranscript(text string, interim bool) {
	a.post(event{kind: eventTranscript, text: text, interim: interim})
}

// CaptureWarning implements capture.EventSink.
func (a *App) CaptureWarning(message string) {
	a.post(event{kind: eventWarning, text: message})
}

// postCommand feeds a spoken control from the voice command filter into the
// event loop.
func (a *App) postCommand(cmd voicecmd.Command) {
	a.post(event{kind: eventCommand, command: cmd})
}

// eventLoop processes capture events, spoken controls, and resolved turns.
// All captureOpen/captureStart state lives here.
func (a *App) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.events:
			a.handleEvent(ctx, ev)
		}
	}
}

func (a *App) handleEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case eventStatus:
		a.handleStatus(ctx, ev.status)
	case eventTranscript:
		if ev.interim {
			fmt.Fprintf(a.out, "  ~ %s\n", ev.text)
		} else {
			fmt.Fprintf(a.out, "  » %s\n", ev.text)
		}
	case eventWarning:
		fmt.Fprintf(a.out, "! %s\n", ev.text)
		a.notifier.Warning(ev.text)
		a.metrics.RecordCaptureError(ctx)
	case eventCommand:
		a.handleCommand(ctx, ev.command)
	case eventTurn:
		a.renderTurn(ev.turn)
		a.notifier.Reply(ev.turn.Text)
	}
}

func (a *App) handleStatus(ctx context.Context, status capture.Status) {
	switch status {
	case capture.StatusListening:
		a.captureOpen = true
		a.captureStart = time.Now()
		a.metrics.ActiveCaptures.Add(ctx, 1)
		a.notifier.Listening()
		fmt.Fprintf(a.out, "● listening (%s) — /stop or say \"stop listening\" to finish\n",
			a.session.Language().Label())
	case capture.StatusStopping:
		fmt.Fprintln(a.out, "● finishing capture...")
	case capture.StatusIdle:
		if a.captureOpen {
			a.captureOpen = false
			a.metrics.ActiveCaptures.Add(ctx, -1)
			a.metrics.CaptureDuration.Record(ctx, time.Since(a.captureStart).Seconds())
		}
	case capture.StatusError:
		// The warning event carries the user-visible message.
	}
}

func (a *App) handleCommand(ctx context.Context, cmd voicecmd.Command) {
	switch cmd {
	case voicecmd.CommandNewChat:
		a.session.NewConversation()
		a.players.ReleaseAll()
		fmt.Fprintln(a.out, "Started a new conversation.")
	case voicecmd.CommandLearnMode:
		if a.session.Mode() != conversation.ModeLearn {
			a.session.ToggleMode()
			a.players.ReleaseAll()
		}
		fmt.Fprintln(a.out, "Learn mode on. The conversation was cleared.")
	case voicecmd.CommandStopListening:
		// Stop blocks until the capture drains; keep the event loop free.
		go a.finishCapture(ctx)
	}
}

// finishCapture stops the active capture and submits whatever was recognized.
func (a *App) finishCapture(ctx context.Context) {
	text := a.capture.Stop()
	a.notifier.CaptureStopped(text)
	if text == "" {
		fmt.Fprintln(a.out, "Nothing was recognized.")
		return
	}
	a.submit(ctx, text)
}

// inputLoop reads user lines and dispatches them. The reader goroutine blocks
// on the underlying Read and is abandoned on cancellation; the process is
// exiting anyway.
func (a *App) inputLoop(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := a.handleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (a *App) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if a.translator != nil {
		return a.translatorLine(ctx, line)
	}

	if strings.HasPrefix(line, "/") {
		return a.slashCommand(ctx, line)
	}

	a.submit(ctx, line)
	return nil
}

func (a *App) slashCommand(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		a.printHelp()
	case "/lang":
		code := language.Code(arg)
		if err := a.session.SetLanguage(code); err != nil {
			fmt.Fprintf(a.out, "Unknown language %q. Supported: %s\n", arg, supportedLanguages())
			return nil
		}
		fmt.Fprintf(a.out, "Language set to %s.\n", code.Label())
	case "/learn":
		mode := a.session.ToggleMode()
		a.players.ReleaseAll()
		fmt.Fprintf(a.out, "Mode is now %s. The conversation was cleared.\n", mode)
	case "/new":
		a.session.NewConversation()
		a.players.ReleaseAll()
		fmt.Fprintln(a.out, "Started a new conversation.")
	case "/rec":
		a.startCapture(ctx)
	case "/stop":
		a.finishCapture(ctx)
	case "/play":
		a.playTurn(arg)
	case "/translate":
		a.translator = translate.NewSession(a.client, a.metrics)
		snap := a.translator.Snapshot()
		fmt.Fprintf(a.out, "Translator open (%s → %s). Type text to translate; /swap, /pair <from> <to>, /close.\n",
			snap.Source.Label(), snap.Target.Label())
	case "/quit":
		return errQuit
	default:
		fmt.Fprintf(a.out, "Unknown command %s. Try /help.\n", cmd)
	}
	return nil
}

func (a *App) startCapture(ctx context.Context) {
	err := a.capture.Start(ctx, a.session.Language())
	switch {
	case err == nil:
	case errors.Is(err, asr.ErrUnsupported):
		fmt.Fprintln(a.out, "Speech capture is not available: no recognition provider is configured.")
	case errors.Is(err, capture.ErrAlreadyListening):
		fmt.Fprintln(a.out, "Already listening.")
	default:
		fmt.Fprintf(a.out, "Could not start capture: %v\n", err)
	}
}

func (a *App) playTurn(arg string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fmt.Fprintln(a.out, "Usage: /play <turn id>")
		return
	}

	for _, t := range a.session.Store().Turns() {
		if t.ID != id {
			continue
		}
		state, err := a.players.Toggle(t.ID, t.AudioRef)
		if err != nil {
			fmt.Fprintf(a.out, "Playback: %v\n", err)
			return
		}
		fmt.Fprintf(a.out, "Turn %d: %s\n", t.ID, state)
		return
	}
	fmt.Fprintf(a.out, "No turn with id %d.\n", id)
}

// translatorLine handles one input line while the translator surface is open.
func (a *App) translatorLine(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case "/close":
		a.translator.Close()
		a.translator = nil
		fmt.Fprintln(a.out, "Translator closed.")
		return nil
	case "/swap":
		a.translator.Swap()
		snap := a.translator.Snapshot()
		fmt.Fprintf(a.out, "Now translating %s → %s.\n", snap.Source.Label(), snap.Target.Label())
		if snap.SourceText != "" {
			fmt.Fprintf(a.out, "  %s\n", snap.SourceText)
		}
		return nil
	case "/pair":
		from, to, _ := strings.Cut(strings.TrimSpace(arg), " ")
		if err := a.translator.SetPair(language.Code(from), language.Code(strings.TrimSpace(to))); err != nil {
			fmt.Fprintf(a.out, "Usage: /pair <from> <to>. Supported: %s\n", supportedLanguages())
			return nil
		}
		snap := a.translator.Snapshot()
		fmt.Fprintf(a.out, "Now translating %s → %s.\n", snap.Source.Label(), snap.Target.Label())
		return nil
	case "/quit":
		return errQuit
	}

	// Translate synchronously; the loop not reading more input is what keeps
	// requests serialized.
	if err := a.translator.Translate(ctx, line); err != nil {
		fmt.Fprintf(a.out, "Translation error: %v\n", err)
		return nil
	}
	snap := a.translator.Snapshot()
	if snap.Status == translate.StatusError {
		fmt.Fprintf(a.out, "%s\n", snap.ErrorMessage)
		return nil
	}
	fmt.Fprintf(a.out, "%s: %s\n", snap.Target.Label(), snap.TranslatedText)
	return nil
}

// submit hands text to the dispatcher. The user line renders immediately; the
// assistant turn arrives as an event once the round trip resolves.
func (a *App) submit(ctx context.Context, text string) {
	if a.session.Store().Pending() {
		fmt.Fprintln(a.out, "Still waiting for the previous reply.")
		return
	}

	fmt.Fprintf(a.out, "[%s] You: %s\n", time.Now().Format("15:04"), text)

	go func() {
		turn, err := a.dispatcher.Submit(ctx, text)
		if err != nil {
			if errors.Is(err, conversation.ErrPendingRequest) {
				fmt.Fprintln(a.out, "Still waiting for the previous reply.")
				return
			}
			slog.Warn("submit failed", "err", err)
			return
		}
		if turn.ID == 0 {
			// Resolved stale: the conversation moved on, nothing to render.
			return
		}
		a.post(event{kind: eventTurn, turn: turn})
	}()
}

func (a *App) renderTurn(t conversation.Turn) {
	fmt.Fprintf(a.out, "[%s] Assistant: %s\n", t.CreatedAt, t.Text)
	if t.AudioRef != "" {
		fmt.Fprintf(a.out, "  ♪ /play %d to hear this reply\n", t.ID)
	}
}

func (a *App) printWelcome() {
	fmt.Fprintf(a.out, "Sauti — %s, %s mode. /help for commands.\n",
		a.session.Language().Label(), a.session.Mode())
}

func (a *App) printHelp() {
	fmt.Fprint(a.out, `Commands:
  /lang <code>   switch language (`+supportedLanguages()+`)
  /learn         toggle learn mode (clears the conversation)
  /new           start a new conversation
  /rec           start speech capture
  /stop          stop capture and send the transcript
  /play <id>     play or pause a reply's audio
  /translate     open the translator
  /quit          exit
Anything else is sent to the assistant.
`)
}

func supportedLanguages() string {
	codes := language.All()
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
