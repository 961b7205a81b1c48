package jitter

import (
	"testing"
	"time"
)

func TestDelayBounds(t *testing.T) {
	m := New(Parameters{Enabled: true, Ratio: 0.5, Seed: 42})
	base := 20 * time.Millisecond
	seen := map[time.Duration]bool{}
	for i := 0; i < 1000; i++ {
		d := m.Delay(base)
		if d < base/2 || d > base+base/2 {
			t.Fatalf("delay %v outside [%v, %v]", d, base/2, base+base/2)
		}
		seen[d] = true
	}
	if len(seen) < 10 {
		t.Errorf("only %d distinct delays; jitter not applied", len(seen))
	}
}

func TestDelayNeverBelowFloor(t *testing.T) {
	m := New(Parameters{Enabled: true, Ratio: 0.5, Seed: 7})
	for _, base := range []time.Duration{0, -time.Second, time.Microsecond, time.Millisecond, 2 * time.Millisecond} {
		for i := 0; i < 200; i++ {
			if d := m.Delay(base); d < MinDelay {
				t.Fatalf("Delay(%v) = %v, below floor", base, d)
			}
		}
	}
}

func TestRatioClamped(t *testing.T) {
	m := New(Parameters{Enabled: true, Ratio: 3, Seed: 1})
	if m.Parameters().Ratio != 0.5 {
		t.Fatalf("ratio = %v, want clamp to 0.5", m.Parameters().Ratio)
	}
	base := 10 * time.Millisecond
	for i := 0; i < 500; i++ {
		if d := m.Delay(base); d < 5*time.Millisecond || d > 15*time.Millisecond {
			t.Fatalf("delay %v exceeds half-base jitter", d)
		}
	}
}

func TestFixed(t *testing.T) {
	m := Fixed()
	for i := 0; i < 10; i++ {
		if d := m.Delay(8 * time.Millisecond); d != 8*time.Millisecond {
			t.Fatalf("fixed delay = %v", d)
		}
	}
	var nilModel *Model
	if d := nilModel.Delay(3 * time.Millisecond); d != 3*time.Millisecond {
		t.Fatalf("nil model delay = %v", d)
	}
}

func TestSeedDeterminism(t *testing.T) {
	a := New(Parameters{Enabled: true, Ratio: 0.5, Seed: 99})
	b := New(Parameters{Enabled: true, Ratio: 0.5, Seed: 99})
	for i := 0; i < 50; i++ {
		if a.Delay(30*time.Millisecond) != b.Delay(30*time.Millisecond) {
			t.Fatal("same seed produced different sequences")
		}
	}
}
