package expander

import (
	"bytes"
	"unicode/utf8"

	"textexpander/internal/hid"
)

// TriggerExpansion looks code up and, on a match, starts the expansion job.
// It returns false, with no side effects, when code is not a short code.
func (x *Expander) TriggerExpansion(code string, ctx Context, trigger hid.Keycode) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.triggerExpansion(code, ctx, trigger)
}

func (x *Expander) triggerExpansion(code string, ctx Context, trigger hid.Keycode) bool {
	id, ok := x.dict.Search(code)
	if !ok {
		x.logger.Debug("no expansion for short code", "short_code", code)
		return false
	}
	node := x.dict.Node(id)
	text := x.dict.Text(id)
	codeChars := utf8.RuneCountInString(code)

	deleteCount := codeChars
	if ctx == ContextAuto {
		deleteCount++
	}
	typed := int(node.LenChars)
	completion := bytes.HasPrefix(text, []byte(code))
	if completion {
		text = text[len(code):]
		deleteCount -= codeChars
		typed = max(typed-codeChars, 0)
	}

	replay := hid.None
	if node.PreserveTrigger {
		replay = trigger
	}

	x.short.Reset()

	x.logger.Info("expansion triggered",
		"short_code", code, "context", ctx.String(), "completion", completion,
		"backspaces", deleteCount, "replay", replay.String())
	// Start cancels a running job, whose idle report must not settle the
	// new undo state.
	x.engine.Start(text, deleteCount, replay)
	x.undo = undoState{
		shortCode:    code,
		typed:        typed,
		replay:       replay,
		completion:   completion,
		justExpanded: true,
		awaiting:     true,
	}
	x.emit(Activity{
		Kind:       ActivityExpanded,
		ShortCode:  code,
		Completion: completion,
		Context:    ctx,
		Typed:      typed,
		Deleted:    deleteCount,
	})
	return true
}

// UndoLast reverses the most recent expansion if nothing has been typed
// since. It deletes the typed characters, plus the replayed trigger key,
// and restores the short code both on screen and in the buffer.
func (x *Expander) UndoLast() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.undoLast()
}

func (x *Expander) undoLast() bool {
	u := x.undo
	if !u.justExpanded || x.engine.Active() {
		return false
	}
	x.undo.justExpanded = false
	x.undo.awaiting = false

	backspaces := u.typed
	if u.replay != hid.None {
		backspaces++
	}
	// A completion leaves the short code on screen once its suffix is gone.
	var retype []byte
	if !u.completion {
		retype = []byte(u.shortCode)
	}
	if err := x.short.Set(u.shortCode); err != nil {
		x.logger.Warn("short code does not fit buffer after undo", "short_code", u.shortCode, "error", err)
		x.short.Reset()
	}

	x.logger.Info("undoing expansion", "short_code", u.shortCode, "backspaces", backspaces)
	x.engine.Start(retype, backspaces, hid.None)
	x.emit(Activity{
		Kind:       ActivityUndone,
		ShortCode:  u.shortCode,
		Completion: u.completion,
		Typed:      utf8.RuneCount(retype),
		Deleted:    backspaces,
	})
	return true
}

// handleUndo consumes the one-shot undo window on the first key after an
// expansion.
func (x *Expander) handleUndo(k hid.Keycode) bool {
	if !x.undo.justExpanded {
		return false
	}
	if x.cfg.UndoKeys.Has(k) {
		return x.undoLast()
	}
	x.undo.justExpanded = false
	return false
}
