// Package dispatch owns the single-flight request path between the
// conversation log and the assistant backend: optimistic user turn, pending
// guard, one round trip, epoch-checked resolution.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sautina/sauti/internal/conversation"
	"github.com/sautina/sauti/internal/observe"
	"github.com/sautina/sauti/pkg/backend"
)

// Backend is the slice of the backend client the dispatcher uses.
// Implemented by *backend.Client.
type Backend interface {
	SendText(ctx context.Context, req backend.TextRequest) (backend.ChatResponse, error)
	ResolveAudioURL(ref string) string
}

// Dispatcher submits user turns and reconciles the responses into the
// conversation log. At most one request is in flight at a time; the store's
// pending flag enforces it.
type Dispatcher struct {
	session *conversation.Session
	client  Backend
	metrics *observe.Metrics

	// now is the clock, overridable in tests.
	now func() time.Time
}

// New creates a Dispatcher. metrics may be nil, in which case the package
// default instruments are used.
func New(session *conversation.Session, client Backend, metrics *observe.Metrics) *Dispatcher {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Dispatcher{
		session: session,
		client:  client,
		metrics: metrics,
		now:     time.Now,
	}
}

// Submit runs one full round trip: the user turn is committed immediately,
// the backend is called with the session's current language and mode, and the
// response is reconciled under the epoch captured at dispatch time.
//
// On a backend failure the fixed failure message is committed as the
// assistant turn and Submit still returns it with a nil error; the cause is
// logged, never surfaced. An error return means nothing was dispatched:
// blank input or a request already pending. A zero-ID Turn with nil error
// means the resolution arrived stale and was dropped.
func (d *Dispatcher) Submit(ctx context.Context, text string) (conversation.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return conversation.Turn{}, conversation.ErrEmptyInput
	}
	store := d.session.Store()

	// Guard before the optimistic append so a refused submit leaves no
	// orphan user turn in the log.
	epoch, err := store.BeginPending()
	if err != nil {
		return conversation.Turn{}, err
	}
	if _, err := store.AppendUserTurn(text); err != nil {
		return conversation.Turn{}, err
	}

	mode := d.session.Mode()
	lang := d.session.Language()
	d.metrics.RecordTurnSubmitted(ctx, string(mode), string(lang))

	start := d.now()
	resp, err := d.client.SendText(ctx, backend.TextRequest{
		Text:     text,
		Language: string(lang),
		Mode:     string(mode),
	})
	elapsed := d.now().Sub(start).Seconds()

	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = fmt.Errorf("dispatch: backend returned an empty reply")
	}
	d.metrics.RecordRequest(ctx, "text", elapsed, err != nil)

	if err != nil {
		slog.Warn("assistant request failed", "err", err, "mode", mode, "language", lang)
		turn, ok := store.FailPending(epoch)
		if !ok {
			d.metrics.RecordStaleDrop(ctx)
			return conversation.Turn{}, nil
		}
		return turn, nil
	}

	turn, ok := store.ResolvePending(epoch, resp.Text, d.client.ResolveAudioURL(resp.AudioURL))
	if !ok {
		d.metrics.RecordStaleDrop(ctx)
		return conversation.Turn{}, nil
	}
	slog.Debug("assistant turn committed", "turn_id", turn.ID, "latency_s", elapsed)
	return turn, nil
}
