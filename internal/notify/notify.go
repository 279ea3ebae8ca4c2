// Package notify sends desktop notifications for events that matter while the
// terminal is in the background: capture starting and stopping, capture
// warnings, and assistant replies arriving.
package notify

import "github.com/gen2brain/beeep"

const appName = "Sauti"

// Notifier sends desktop notifications. Delivery failures are ignored; a
// notification is never worth an error path.
type Notifier struct {
	enabled bool
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// SetEnabled switches notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// Listening announces that speech capture started.
func (n *Notifier) Listening() {
	n.notify("Listening", "Speak now. Say \"stop listening\" or use /stop to finish.")
}

// CaptureStopped announces the end of a capture with the recognized text.
func (n *Notifier) CaptureStopped(text string) {
	if text == "" {
		n.notify("Capture stopped", "Nothing was recognized.")
		return
	}
	n.notify("Capture stopped", clip(text))
}

// Warning surfaces a transient capture problem.
func (n *Notifier) Warning(msg string) {
	n.notify("Warning", msg)
}

// Reply announces an assistant reply.
func (n *Notifier) Reply(text string) {
	n.notify("Reply", clip(text))
}

func (n *Notifier) notify(title, message string) {
	if !n.enabled {
		return
	}
	_ = beeep.Notify(appName+": "+title, message, "")
}

func clip(text string) string {
	if len(text) > 100 {
		return text[:100] + "..."
	}
	return text
}
