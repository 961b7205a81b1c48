package keystroke

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"textexpander/internal/hid"
)

// DefaultBacklog bounds the events read ahead of the sink.
const DefaultBacklog = 64

// Listener reads evdev records and forwards key transitions to a Sink.
// Presses of a trigger key become ManualTrigger calls and are not
// forwarded as keys.
type Listener struct {
	sink     Sink
	triggers hid.KeySet
	logger   *slog.Logger
	backlog  int

	forwarded atomic.Uint64
	unmapped  atomic.Uint64
	failed    atomic.Uint64
}

// NewListener creates a Listener.
func NewListener(sink Sink, triggers hid.KeySet, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		sink:     sink,
		triggers: triggers,
		logger:   logger.With("component", "listener"),
		backlog:  DefaultBacklog,
	}
}

type readResult struct {
	ev  InputEvent
	err error
}

// Listen runs until ctx is done or r fails. A clean EOF returns nil. The
// reading goroutine exits once r returns, so callers close r after
// cancelling ctx.
func (l *Listener) Listen(ctx context.Context, r io.Reader) error {
	ch := make(chan readResult, l.backlog)
	go func() {
		for {
			ev, err := ReadEvent(r)
			select {
			case ch <- readResult{ev, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					return nil
				}
				return res.err
			}
			l.Handle(res.ev)
		}
	}
}

// Handle forwards one event. Non-key records and autorepeats are dropped.
func (l *Listener) Handle(ev InputEvent) {
	if ev.Type != EvKey || ev.Value == ValueRepeat {
		return
	}
	k, ok := LinuxToHID(ev.Code)
	if !ok {
		l.unmapped.Add(1)
		l.logger.Debug("unmapped key", "code", ev.Code)
		return
	}

	var err error
	switch {
	case l.triggers.Has(k):
		if ev.Value != ValuePress {
			return
		}
		err = l.sink.ManualTrigger()
	case ev.Value == ValuePress:
		err = l.sink.PressKey(k)
	default:
		err = l.sink.ReleaseKey(k)
	}
	if err != nil {
		l.failed.Add(1)
		l.logger.Warn("key event not delivered", "key", k.String(), "error", err)
		return
	}
	l.forwarded.Add(1)
}

// Stats returns forwarded, unmapped and failed event counts.
func (l *Listener) Stats() (forwarded, unmapped, failed uint64) {
	return l.forwarded.Load(), l.unmapped.Load(), l.failed.Load()
}
