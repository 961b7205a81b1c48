package store

import "time"

// Activity kinds as stored in the journal.
const (
	KindExpanded  = "expanded"
	KindUndone    = "undone"
	KindCancelled = "cancelled"
)

// Entry is one journaled expansion, undo or cancellation.
type Entry struct {
	ID         string
	RunID      string
	Kind       string
	ShortCode  string
	Completion bool
	Context    string
	Typed      int
	Deleted    int
	Time       time.Time
}

// Run records one daemon lifetime.
type Run struct {
	ID        string
	StartedAt time.Time
	StoppedAt time.Time // zero while running
	Version   string
	Layout    string
	OS        string
}

// ShortCodeStats aggregates the journal for one short code.
type ShortCodeStats struct {
	ShortCode  string
	Expansions int64
	Undos      int64
	Cancels    int64
	LastUsed   time.Time
}

// UndoRate is the fraction of expansions that were undone.
func (s ShortCodeStats) UndoRate() float64 {
	if s.Expansions == 0 {
		return 0
	}
	return float64(s.Undos) / float64(s.Expansions)
}

// Stats summarizes the whole journal.
type Stats struct {
	Entries    int64
	Expansions int64
	Undos      int64
	Cancels    int64
	CharsTyped int64
	Runs       int64
	First      time.Time
	Last       time.Time
	Top        []ShortCodeStats
}
