package expander

import (
	"fmt"
	"time"

	"textexpander/internal/hid"
)

// EventType distinguishes physical key changes from the manual trigger.
type EventType int

const (
	EventKey EventType = iota
	EventManualTrigger
)

// Event is one input delivered by a listener.
type Event struct {
	Type    EventType
	Keycode hid.Keycode
	Pressed bool
	Time    time.Time
}

func (e Event) String() string {
	if e.Type == EventManualTrigger {
		return "manual-trigger"
	}
	dir := "up"
	if e.Pressed {
		dir = "down"
	}
	return fmt.Sprintf("%s %s", e.Keycode, dir)
}

// Context records what triggered an expansion.
type Context int

const (
	// ContextAuto is an auto-expand key; that key was already typed and is
	// deleted along with the short code.
	ContextAuto Context = iota
	ContextManual
)

func (c Context) String() string {
	if c == ContextManual {
		return "manual"
	}
	return "auto"
}

// ActivityKind classifies an Activity.
type ActivityKind int

const (
	ActivityExpanded ActivityKind = iota
	ActivityUndone
	ActivityCancelled
)

func (k ActivityKind) String() string {
	switch k {
	case ActivityExpanded:
		return "expanded"
	case ActivityUndone:
		return "undone"
	case ActivityCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("activity(%d)", int(k))
}

// Activity is published to subscribers for each expansion, undo and
// cancellation.
type Activity struct {
	Kind       ActivityKind
	ShortCode  string
	Completion bool
	Context    Context
	Typed      int
	Deleted    int
	Time       time.Time
}
