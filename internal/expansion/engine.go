// Package expansion drives the synthetic keystroke sequence that deletes a
// short code and types its expansion. One Job is in flight at a time; each
// step performs a single side effect and schedules its successor.
package expansion

import (
	"bytes"
	"log/slog"
	"time"
	"unicode/utf8"

	"textexpander/internal/hid"
	"textexpander/internal/jitter"
	"textexpander/internal/layout"
	"textexpander/internal/sched"
	"textexpander/internal/trie"
)

const (
	DefaultTypingDelay = 10 * time.Millisecond
	DefaultStartDelay  = 10 * time.Millisecond

	// charPressDelay separates character lookup from its key press.
	charPressDelay = time.Millisecond
	// undoRearmDelay is the pause before a partial undo starts deleting.
	undoRearmDelay = time.Millisecond
)

// Options configures an Engine.
type Options struct {
	TypingDelay time.Duration
	StartDelay  time.Duration
	OS          OS
	Jitter      *jitter.Model

	// OnIdle is called on the worker each time a job returns to idle.
	OnIdle func(Summary)
}

// Summary describes a job that has returned to idle.
type Summary struct {
	Typed     int
	Deleted   int
	Replayed  bool
	Cancelled bool
}

// Job is the working record of the in-flight expansion.
type Job struct {
	state      State
	text       []byte
	cursor     int
	backspaces int
	deleted    int
	inLiteral  bool
	literalEnd int
	codepoint  rune
	scratch    [9]byte
	scratchLen int
	scratchPos int
	heldKey    hid.Keycode
	heldMods   hid.Modifiers
	stroke     layout.Stroke
	replay     hid.Keycode
	replayed   bool
	typed      int
}

// Snapshot is a read-only copy of the job for diagnostics and tests.
type Snapshot struct {
	State      State
	OS         OS
	Text       string
	Cursor     int
	Backspaces int
	Deleted    int
	Typed      int
	Replay     hid.Keycode
	HeldKey    hid.Keycode
	HeldMods   hid.Modifiers
	InLiteral  bool
	Codepoint  rune
	Digits     string
}

// Engine owns the expansion job. It is not safe for concurrent use: every
// method, and every step it schedules, runs on the scheduler's worker.
type Engine struct {
	opts     Options
	sender   hid.Sender
	layout   layout.Layout
	work     sched.Work
	logger   *slog.Logger
	handlers [numStates]func(*Engine)
	idle     []func(Summary)
	os       OS
	job      Job
}

// NewEngine creates an idle engine.
func NewEngine(opts Options, sender hid.Sender, lay layout.Layout, s sched.Scheduler, logger *slog.Logger) *Engine {
	if opts.TypingDelay <= 0 {
		opts.TypingDelay = DefaultTypingDelay
	}
	if opts.StartDelay <= 0 {
		opts.StartDelay = DefaultStartDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		opts:     opts,
		sender:   sender,
		layout:   lay,
		logger:   logger,
		handlers: newHandlerTable(),
		os:       opts.OS,
	}
	e.work = s.NewWork(e.run)
	return e
}

// Start begins a new job, cancelling any job already in flight. text is
// typed after deleteCount backspaces; replay, if set, is tapped last.
func (e *Engine) Start(text []byte, deleteCount int, replay hid.Keycode) {
	e.Cancel(false)
	e.job = Job{text: text, backspaces: max(deleteCount, 0), replay: replay}
	if e.job.backspaces > 0 {
		e.job.state = StateStartBackspace
	} else {
		e.job.state = StateStartTyping
	}
	e.logger.Info("expansion started",
		"text_bytes", len(text), "backspaces", e.job.backspaces, "replay", replay.String(), "os", e.os.String())
	e.after(e.opts.StartDelay)
}

// Cancel aborts the in-flight job. Any held key and modifier is released.
// With partialUndo and at least one character typed (the replayed trigger
// key included), the job is re-armed to delete exactly those characters;
// otherwise it returns to idle.
// Cancelling an idle engine does nothing.
func (e *Engine) Cancel(partialUndo bool) {
	j := &e.job
	pending := e.work.Cancel()
	if j.state == StateIdle && !pending && j.heldKey == hid.None && j.heldMods == 0 {
		return
	}

	// The press already happened; its release is forced below, so the
	// action counts as done.
	switch j.state {
	case StateTypeCharKeyRelease:
		j.cursor++
		j.typed++
	case StateBackspaceRelease:
		j.backspaces--
		j.deleted++
	case StateReplayKeyRelease:
		j.replayed = true
	}
	e.release()
	e.clearMods()

	n := j.typed
	if j.replayed {
		n++
	}
	if partialUndo && n > 0 {
		e.logger.Info("expansion cancelled with partial undo", "backspaces", n)
		e.job = Job{state: StateStartBackspace, backspaces: n}
		e.after(undoRearmDelay)
		return
	}

	e.logger.Info("expansion cancelled", "state", j.state.String(), "typed", j.typed)
	sum := Summary{Typed: j.typed, Deleted: j.deleted, Replayed: j.replayed, Cancelled: true}
	e.job = Job{}
	e.notifyIdle(sum)
}

// Active reports whether a job is in flight.
func (e *Engine) Active() bool {
	return e.job.state != StateIdle
}

// State returns the current state.
func (e *Engine) State() State {
	return e.job.state
}

// OS returns the active Unicode driver selection.
func (e *Engine) OS() OS {
	return e.os
}

// SetOS selects the Unicode driver for subsequent characters.
func (e *Engine) SetOS(os OS) {
	e.os = os
}

// Snapshot copies the job state.
func (e *Engine) Snapshot() Snapshot {
	j := &e.job
	return Snapshot{
		State:      j.state,
		OS:         e.os,
		Text:       string(j.text),
		Cursor:     j.cursor,
		Backspaces: j.backspaces,
		Deleted:    j.deleted,
		Typed:      j.typed,
		Replay:     j.replay,
		HeldKey:    j.heldKey,
		HeldMods:   j.heldMods,
		InLiteral:  j.inLiteral,
		Codepoint:  j.codepoint,
		Digits:     string(j.scratch[:j.scratchLen]),
	}
}

// run executes one step.
func (e *Engine) run() {
	s := e.job.state
	var h func(*Engine)
	if s >= 0 && s < numStates {
		h = e.handlers[s]
	}
	if h == nil {
		e.logger.Warn("unhandled expansion state; forcing idle", "state", s.String())
		e.release()
		e.clearMods()
		sum := Summary{Typed: e.job.typed, Deleted: e.job.deleted, Cancelled: true}
		e.job = Job{}
		e.notifyIdle(sum)
		return
	}
	e.logger.Debug("expansion step", "state", s.String())
	h(e)
}

func (e *Engine) next(s State, d time.Duration) {
	e.job.state = s
	e.after(d)
}

// after schedules the next step. Zero requests immediate re-entry; any
// positive delay goes through the jitter model.
func (e *Engine) after(d time.Duration) {
	if d <= 0 {
		e.work.Schedule(0)
		return
	}
	e.work.Schedule(e.opts.Jitter.Delay(d))
}

func (e *Engine) delay() time.Duration { return e.opts.TypingDelay }
func (e *Engine) half() time.Duration  { return e.opts.TypingDelay / 2 }

func (e *Engine) press(k hid.Keycode) {
	if k == hid.None {
		return
	}
	hid.SendAndFlush(e.sender, k, true, e.logger)
	e.job.heldKey = k
}

func (e *Engine) release() {
	if e.job.heldKey == hid.None {
		return
	}
	hid.SendAndFlush(e.sender, e.job.heldKey, false, e.logger)
	e.job.heldKey = hid.None
}

// holdMods presses modifiers used by a Unicode driver.
func (e *Engine) holdMods(m hid.Modifiers) {
	hid.SetMods(e.sender, m, true, e.logger)
	e.job.heldMods |= m
}

func (e *Engine) dropMods(m hid.Modifiers) {
	hid.SetMods(e.sender, m, false, e.logger)
	e.job.heldMods &^= m
}

// matchMods changes held modifiers to exactly want, touching only the bits
// that differ. The report is flushed by the key press that follows.
func (e *Engine) matchMods(want hid.Modifiers) {
	held := e.job.heldMods
	if up := held &^ want; up != 0 {
		if err := e.sender.UnregisterMods(up); err != nil {
			e.logger.Warn("modifier release failed", "mods", up.String(), "error", err)
		}
	}
	if down := want &^ held; down != 0 {
		if err := e.sender.RegisterMods(down); err != nil {
			e.logger.Warn("modifier press failed", "mods", down.String(), "error", err)
		}
	}
	e.job.heldMods = want
}

func (e *Engine) clearMods() {
	if e.job.heldMods != 0 {
		e.dropMods(e.job.heldMods)
	}
}

// OnIdle registers fn to run, on the worker, whenever a job returns to idle.
func (e *Engine) OnIdle(fn func(Summary)) {
	e.idle = append(e.idle, fn)
}

func (e *Engine) notifyIdle(s Summary) {
	if e.opts.OnIdle != nil {
		e.opts.OnIdle(s)
	}
	for _, fn := range e.idle {
		fn(s)
	}
}

func (e *Engine) finish() {
	j := &e.job
	sum := Summary{Typed: j.typed, Deleted: j.deleted, Replayed: j.replayed}
	j.state = StateIdle
	e.logger.Info("expansion finished", "typed", j.typed, "deleted", j.deleted, "replayed", j.replayed)
	e.notifyIdle(sum)
}

// resume returns to text typing, inside or outside a literal block.
func (e *Engine) resume() State {
	if e.job.inLiteral {
		return StateTypeLiteralChar
	}
	return StateTypeCharStart
}

func (e *Engine) stepIdle() {}

func (e *Engine) stepStartBackspace() {
	if e.job.backspaces > 0 {
		e.next(StateBackspacePress, 0)
		return
	}
	e.next(StateStartTyping, e.delay())
}

func (e *Engine) stepBackspacePress() {
	e.press(hid.KeyBackspace)
	e.next(StateBackspaceRelease, e.half())
}

func (e *Engine) stepBackspaceRelease() {
	e.release()
	e.job.backspaces--
	e.job.deleted++
	e.next(StateStartBackspace, e.half())
}

func (e *Engine) stepStartTyping() {
	e.logger.Debug("typing expansion", "bytes", len(e.job.text))
	e.next(StateTypeCharStart, 0)
}

func (e *Engine) stepTypeCharStart() {
	j := &e.job
	if j.cursor >= len(j.text) {
		e.next(StateFinish, 0)
		return
	}
	b := j.text[j.cursor]
	if trie.IsOpcode(b) {
		e.os = osForOpcode(b)
		e.logger.Debug("unicode driver selected", "os", e.os.String())
		j.cursor++
		e.next(StateTypeCharStart, 0)
		return
	}

	rest := j.text[j.cursor:]
	if bytes.HasPrefix(rest, []byte(trie.LiteralOpen)) {
		if end := bytes.Index(rest[len(trie.LiteralOpen):], []byte(trie.LiteralClose)); end >= 0 {
			j.inLiteral = true
			j.literalEnd = j.cursor + len(trie.LiteralOpen) + end
			j.cursor += len(trie.LiteralOpen)
			e.next(StateTypeLiteralChar, 0)
			return
		}
	}
	if bytes.HasPrefix(rest, []byte("{{")) {
		if end := bytes.Index(rest[2:], []byte("}}")); end >= 0 {
			cmd := string(rest[2 : 2+end])
			j.cursor += end + 4
			if os, ok := osForCommand(cmd); ok {
				e.os = os
				e.logger.Info("unicode driver selected", "os", os.String())
			} else {
				e.logger.Warn("unknown expansion command", "command", cmd)
			}
			e.next(StateTypeCharStart, e.delay())
			return
		}
	}
	e.typeUnit(rest)
}

func (e *Engine) stepTypeLiteralChar() {
	j := &e.job
	if j.cursor >= j.literalEnd {
		j.cursor = j.literalEnd + len(trie.LiteralClose)
		j.inLiteral = false
		j.literalEnd = 0
		e.next(StateTypeCharStart, 0)
		return
	}
	e.typeUnit(j.text[j.cursor:j.literalEnd])
}

// typeUnit types the character at the start of unit: a key stroke for
// ASCII the layout can produce, the OS Unicode driver for everything else.
func (e *Engine) typeUnit(unit []byte) {
	j := &e.job
	b := unit[0]
	if b < utf8.RuneSelf {
		if st, ok := e.layout.CharToKeycode(b); ok {
			j.stroke = st
			e.next(StateTypeCharKeyPress, charPressDelay)
			return
		}
		if b < 0x20 || b == 0x7F {
			e.logger.Warn("untypeable control character skipped", "byte", b)
			j.cursor++
			e.next(e.resume(), 0)
			return
		}
		j.codepoint = rune(b)
		j.cursor++
		e.next(StateUnicodeStart, e.delay())
		return
	}

	r, size := utf8.DecodeRune(unit)
	if r == utf8.RuneError && size <= 1 {
		e.logger.Warn("invalid UTF-8 in expansion; skipping byte", "offset", j.cursor, "byte", b)
		j.cursor++
		e.next(e.resume(), 0)
		return
	}
	j.codepoint = r
	j.cursor += size
	e.next(StateUnicodeStart, e.delay())
}

func (e *Engine) stepTypeCharKeyPress() {
	e.matchMods(e.job.stroke.Mods)
	e.press(e.job.stroke.Key)
	e.next(StateTypeCharKeyRelease, e.half())
}

func (e *Engine) stepTypeCharKeyRelease() {
	e.release()
	e.job.cursor++
	e.job.typed++
	e.next(e.resume(), e.half())
}

func (e *Engine) stepFinish() {
	e.clearMods()
	if e.job.replay != hid.None {
		e.next(StateReplayKeyPress, e.half())
		return
	}
	e.finish()
}

func (e *Engine) stepReplayKeyPress() {
	e.press(e.job.replay)
	e.next(StateReplayKeyRelease, e.half())
}

func (e *Engine) stepReplayKeyRelease() {
	e.release()
	e.job.replayed = true
	e.finish()
}

func (e *Engine) stepUnicodeStart() {
	j := &e.job
	// Character modifiers would corrupt the entry sequence.
	e.clearMods()
	d := DriverFor(e.os)
	digits := d.Render(j.scratch[:0], j.codepoint)
	j.scratchLen = copy(j.scratch[:], digits)
	j.scratchPos = 0
	e.logger.Debug("unicode entry", "codepoint", j.codepoint, "os", e.os.String(), "digits", string(j.scratch[:j.scratchLen]))
	e.next(d.First(), 0)
}

// nextDigit returns the next scratch digit, or false at the end.
func (e *Engine) nextDigit() (byte, bool) {
	j := &e.job
	if j.scratchPos >= j.scratchLen {
		return 0, false
	}
	return j.scratch[j.scratchPos], true
}

// unicodeDone counts the character and resumes text typing.
func (e *Engine) unicodeDone() {
	e.job.typed++
	e.next(e.resume(), e.delay())
}
