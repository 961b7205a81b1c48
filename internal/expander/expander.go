// Package expander turns a stream of key events into short-code buffer
// updates and expansion triggers. Listeners post events into a bounded
// queue; a single worker drains it and owns all mutable state.
package expander

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"textexpander/internal/expansion"
	"textexpander/internal/hid"
	"textexpander/internal/layout"
	"textexpander/internal/sched"
	"textexpander/internal/trie"
)

const (
	DefaultQueueSize            = 16
	DefaultMaxShortLen          = 16
	DefaultBackspaceHoldTimeout = 500 * time.Millisecond

	subscriberBuffer = 100
)

// ErrQueueFull is returned by Post when the event was dropped.
var ErrQueueFull = errors.New("expander: event queue full")

// Config is the coordinator's key policy. Key sets are read-only after New.
type Config struct {
	ResetKeys      hid.KeySet
	AutoExpandKeys hid.KeySet
	UndoKeys       hid.KeySet
	IgnoreKeys     hid.KeySet

	// MaxShortLen is the buffer capacity including the terminator slot.
	// Zero uses the dictionary's compiled value.
	MaxShortLen int
	QueueSize   int

	AggressiveReset        bool
	RestartWithTriggerChar bool

	// BackspaceHoldTimeout resets the buffer when Backspace is held longer,
	// since the host has likely deleted more than one character.
	BackspaceHoldTimeout time.Duration
}

// DefaultConfig returns the stock key bindings. Undo is off until undo
// keys are configured.
func DefaultConfig() Config {
	return Config{
		ResetKeys:      hid.NewKeySet(hid.KeyEnter, hid.KeyEscape, hid.KeyTab),
		AutoExpandKeys: hid.NewKeySet(hid.KeySpace),
		IgnoreKeys: hid.NewKeySet(
			hid.KeyLeftCtrl, hid.KeyLeftShift, hid.KeyLeftAlt, hid.KeyLeftGUI,
			hid.KeyRightCtrl, hid.KeyRightShift, hid.KeyRightAlt, hid.KeyRightGUI,
		),
		QueueSize:            DefaultQueueSize,
		BackspaceHoldTimeout: DefaultBackspaceHoldTimeout,
	}
}

type undoState struct {
	shortCode    string
	typed        int
	replay       hid.Keycode
	completion   bool
	justExpanded bool
	// awaiting is set until the expansion job reports its exact count.
	awaiting bool
}

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	ShortCode     string
	Capacity      int
	Active        bool
	State         expansion.State
	JustExpanded  bool
	LastShortCode string
	Queued        int
	Dropped       uint64
	Nodes         int
}

// Expander is the event and buffer coordinator.
type Expander struct {
	cfg    Config
	layout layout.Layout
	engine *expansion.Engine
	clock  sched.Clock
	logger *slog.Logger

	events  chan Event
	wake    chan struct{}
	pending atomic.Pointer[trie.Trie]
	dropped atomic.Uint64

	mu          sync.Mutex
	dict        *trie.Trie
	short       ShortCode
	undo        undoState
	bsDown      time.Time
	subscribers []chan Activity
}

// New creates an Expander. eng must run its steps on the same worker that
// calls Drain and Step.
func New(cfg Config, dict *trie.Trie, eng *expansion.Engine, lay layout.Layout, clock sched.Clock, logger *slog.Logger) *Expander {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.BackspaceHoldTimeout <= 0 {
		cfg.BackspaceHoldTimeout = DefaultBackspaceHoldTimeout
	}
	if dict == nil {
		dict = &trie.Trie{}
	}
	if clock == nil {
		clock = sched.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	x := &Expander{
		cfg:    cfg,
		layout: lay,
		engine: eng,
		clock:  clock,
		logger: logger,
		events: make(chan Event, cfg.QueueSize),
		wake:   make(chan struct{}, 1),
		dict:   dict,
	}
	x.short = NewShortCode(x.capacityFor(dict))
	eng.OnIdle(x.jobIdle)
	return x
}

func (x *Expander) capacityFor(t *trie.Trie) int {
	switch {
	case x.cfg.MaxShortLen > 0:
		return x.cfg.MaxShortLen
	case t.MaxShortLen > 0:
		return t.MaxShortLen
	}
	return DefaultMaxShortLen
}

// Post enqueues ev without blocking. A full queue drops the event.
func (x *Expander) Post(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = x.clock.Now()
	}
	select {
	case x.events <- ev:
	default:
		n := x.dropped.Add(1)
		x.logger.Warn("event queue full; event dropped", "event", ev.String(), "dropped_total", n)
		return ErrQueueFull
	}
	x.signal()
	return nil
}

// PressKey posts a key-down event.
func (x *Expander) PressKey(k hid.Keycode) error {
	return x.Post(Event{Type: EventKey, Keycode: k, Pressed: true})
}

// ReleaseKey posts a key-up event.
func (x *Expander) ReleaseKey(k hid.Keycode) error {
	return x.Post(Event{Type: EventKey, Keycode: k})
}

// ManualTrigger posts the manual expansion binding.
func (x *Expander) ManualTrigger() error {
	return x.Post(Event{Type: EventManualTrigger})
}

func (x *Expander) signal() {
	select {
	case x.wake <- struct{}{}:
	default:
	}
}

// Drain processes every queued event in one serialized pass. A dictionary
// swap requested since the last pass is applied first.
func (x *Expander) Drain() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.applyPendingDictionary()
	for {
		select {
		case ev := <-x.events:
			x.process(ev)
		default:
			return
		}
	}
}

// Step executes one fired expansion step under the coordinator lock.
func (x *Expander) Step(f sched.Fired) {
	x.mu.Lock()
	defer x.mu.Unlock()
	f.Run()
}

// Run is the worker loop. steps delivers the engine's fired work. On
// return any in-flight expansion has been cancelled.
func (x *Expander) Run(ctx context.Context, steps <-chan sched.Fired) error {
	x.logger.Info("expander worker started", "queue_size", x.cfg.QueueSize, "capacity", x.short.Cap())
	defer func() {
		x.mu.Lock()
		x.engine.Cancel(false)
		x.mu.Unlock()
		x.logger.Info("expander worker stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-x.wake:
			x.Drain()
		case f := <-steps:
			x.Step(f)
		}
	}
}

// SetDictionary schedules t to replace the active dictionary. The worker
// applies it between events, cancelling any running expansion.
func (x *Expander) SetDictionary(t *trie.Trie) {
	if t == nil {
		t = &trie.Trie{}
	}
	x.pending.Store(t)
	x.signal()
}

func (x *Expander) applyPendingDictionary() {
	t := x.pending.Swap(nil)
	if t == nil {
		return
	}
	if x.engine.Active() {
		x.engine.Cancel(false)
	}
	x.undo = undoState{}
	x.dict = t
	x.short = NewShortCode(x.capacityFor(t))
	x.logger.Info("dictionary swapped", "nodes", t.Len(), "capacity", x.short.Cap())
}

// Subscribe returns a channel of activity records. Slow subscribers miss
// records rather than stalling the worker.
func (x *Expander) Subscribe() <-chan Activity {
	x.mu.Lock()
	defer x.mu.Unlock()
	ch := make(chan Activity, subscriberBuffer)
	x.subscribers = append(x.subscribers, ch)
	return ch
}

func (x *Expander) emit(a Activity) {
	a.Time = x.clock.Now()
	for _, ch := range x.subscribers {
		select {
		case ch <- a:
		default:
		}
	}
}

// Snapshot returns the coordinator state.
func (x *Expander) Snapshot() Snapshot {
	x.mu.Lock()
	defer x.mu.Unlock()
	return Snapshot{
		ShortCode:     x.short.String(),
		Capacity:      x.short.Cap(),
		Active:        x.engine.Active(),
		State:         x.engine.State(),
		JustExpanded:  x.undo.justExpanded,
		LastShortCode: x.undo.shortCode,
		Queued:        len(x.events),
		Dropped:       x.dropped.Load(),
		Nodes:         x.dict.Len(),
	}
}

func (x *Expander) process(ev Event) {
	x.logger.Debug("processing event", "event", ev.String(), "short_code", x.short.String())
	if ev.Type == EventManualTrigger {
		x.handleManualTrigger()
		return
	}
	if !ev.Pressed {
		x.handleRelease(ev)
		return
	}
	if x.engine.Active() {
		x.handleDuringExpansion(ev.Keycode)
		return
	}
	k := ev.Keycode
	if k == hid.KeyBackspace && x.bsDown.IsZero() {
		x.bsDown = ev.Time
	}
	if x.handleUndo(k) {
		return
	}
	if ch, ok := x.layout.KeycodeToChar(k); ok {
		x.handleChar(ch)
		return
	}
	switch {
	case k == hid.KeyBackspace:
		x.short.Backspace()
	case x.cfg.AutoExpandKeys.Has(k):
		x.handleAutoExpand(k)
	case x.cfg.ResetKeys.Has(k):
		x.resetShort("reset key")
	case x.cfg.IgnoreKeys.Has(k):
	default:
		x.resetShort("unrelated key")
	}
}

func (x *Expander) handleChar(ch rune) {
	if err := x.short.Append(ch); err != nil {
		x.logger.Warn("short code buffer full; character dropped", "char", string(ch), "capacity", x.short.Cap())
	}
	if !x.cfg.AggressiveReset || x.short.Len() == 0 {
		return
	}
	if _, ok := x.dict.LookupNode(x.short.String()); ok {
		return
	}
	x.logger.Debug("no short code has this prefix; resetting", "short_code", x.short.String())
	x.short.Reset()
	if x.cfg.RestartWithTriggerChar {
		_ = x.short.Append(ch)
	}
}

func (x *Expander) handleAutoExpand(k hid.Keycode) {
	if x.short.Len() == 0 {
		return
	}
	if !x.triggerExpansion(x.short.String(), ContextAuto, k) {
		x.resetShort("no expansion")
	}
}

func (x *Expander) handleManualTrigger() {
	if x.engine.Active() {
		x.logger.Debug("manual trigger ignored during expansion")
		return
	}
	x.undo.justExpanded = false
	if x.short.Len() == 0 {
		x.logger.Debug("manual trigger with empty short code")
		return
	}
	if !x.triggerExpansion(x.short.String(), ContextManual, hid.None) {
		x.resetShort("no expansion")
	}
}

func (x *Expander) handleRelease(ev Event) {
	if ev.Keycode != hid.KeyBackspace || x.bsDown.IsZero() {
		return
	}
	held := ev.Time.Sub(x.bsDown)
	x.bsDown = time.Time{}
	if held > x.cfg.BackspaceHoldTimeout && !x.engine.Active() && x.short.Len() > 0 {
		x.logger.Info("backspace held; resynchronizing short code", "held", held)
		x.short.Reset()
	}
}

// handleDuringExpansion honours only reset and undo keys.
func (x *Expander) handleDuringExpansion(k hid.Keycode) {
	switch {
	case x.cfg.ResetKeys.Has(k):
		snap := x.engine.Snapshot()
		x.engine.Cancel(false)
		x.undo.justExpanded = false
		x.undo.awaiting = false
		x.emit(Activity{Kind: ActivityCancelled, ShortCode: x.undo.shortCode, Typed: snap.Typed, Deleted: snap.Deleted})
	case x.cfg.UndoKeys.Has(k):
		snap := x.engine.Snapshot()
		code := x.undo.shortCode
		x.engine.Cancel(true)
		x.short.Reset()
		x.undo = undoState{}
		x.logger.Info("expansion interrupted by undo", "short_code", code, "typed", snap.Typed)
		x.emit(Activity{Kind: ActivityUndone, ShortCode: code, Typed: snap.Typed, Deleted: snap.Deleted})
	default:
		x.logger.Debug("key suppressed during expansion", "key", k.String())
	}
}

func (x *Expander) resetShort(reason string) {
	if x.short.Len() == 0 {
		return
	}
	x.logger.Debug("short code reset", "reason", reason, "was", x.short.String())
	x.short.Reset()
}

// jobIdle runs on the worker when an expansion job ends.
func (x *Expander) jobIdle(s expansion.Summary) {
	if !x.undo.awaiting {
		return
	}
	x.undo.awaiting = false
	if !s.Cancelled {
		x.undo.typed = s.Typed
	}
}
