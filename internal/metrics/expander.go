package metrics

import (
	"context"

	"textexpander/internal/expander"
)

// ExpanderMetrics counts coordinator activity.
type ExpanderMetrics struct {
	Expansions   *Counter
	Completions  *Counter
	Undos        *Counter
	Cancels      *Counter
	CharsTyped   *Counter
	CharsDeleted *Counter
	Length       *Histogram
}

// NewExpanderMetrics registers the activity metrics on r.
func NewExpanderMetrics(r *Registry) *ExpanderMetrics {
	return &ExpanderMetrics{
		Expansions:   r.Counter("expansions_total", "Expansions started."),
		Completions:  r.Counter("completions_total", "Expansions that completed a typed prefix."),
		Undos:        r.Counter("undos_total", "Expansions undone."),
		Cancels:      r.Counter("cancels_total", "Expansions cancelled by a key press."),
		CharsTyped:   r.Counter("chars_typed_total", "Characters typed by expansions and undos."),
		CharsDeleted: r.Counter("chars_deleted_total", "Characters removed with Backspace."),
		Length:       r.Histogram("expansion_length_chars", "Characters typed per expansion.", LengthBuckets),
	}
}

// Observe records one activity record.
func (m *ExpanderMetrics) Observe(a expander.Activity) {
	switch a.Kind {
	case expander.ActivityExpanded:
		m.Expansions.Inc()
		if a.Completion {
			m.Completions.Inc()
		}
		m.Length.Observe(float64(a.Typed))
	case expander.ActivityUndone:
		m.Undos.Inc()
	case expander.ActivityCancelled:
		m.Cancels.Inc()
	}
	if a.Typed > 0 {
		m.CharsTyped.Add(uint64(a.Typed))
	}
	if a.Deleted > 0 {
		m.CharsDeleted.Add(uint64(a.Deleted))
	}
}

// Consume observes acts until the channel closes or ctx is done.
func (m *ExpanderMetrics) Consume(ctx context.Context, acts <-chan expander.Activity) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-acts:
			if !ok {
				return nil
			}
			m.Observe(a)
		}
	}
}

// RegisterSnapshot exposes coordinator gauges sampled from snap.
func RegisterSnapshot(r *Registry, snap func() expander.Snapshot) {
	r.GaugeFunc("events_dropped", "Key events dropped on a full queue.", func() int64 {
		return int64(snap().Dropped)
	})
	r.GaugeFunc("events_queued", "Key events waiting for the worker.", func() int64 {
		return int64(snap().Queued)
	})
	r.GaugeFunc("expansion_active", "1 while an expansion is being typed.", func() int64 {
		if snap().Active {
			return 1
		}
		return 0
	})
	r.GaugeFunc("dictionary_nodes", "Nodes in the active dictionary.", func() int64 {
		return int64(snap().Nodes)
	})
}
