package sched

import (
	"context"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestVirtualOrdering(t *testing.T) {
	v := NewVirtual(epoch)
	var got []string
	a := v.NewWork(func() { got = append(got, "a") })
	b := v.NewWork(func() { got = append(got, "b") })
	c := v.NewWork(func() { got = append(got, "c") })

	b.Schedule(20 * time.Millisecond)
	a.Schedule(10 * time.Millisecond)
	c.Schedule(10 * time.Millisecond)

	v.Advance(15 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("after 15ms got %v, want [a c]", got)
	}
	if !b.Pending() {
		t.Fatal("b should still be pending")
	}
	v.Advance(5 * time.Millisecond)
	if len(got) != 3 || got[2] != "b" {
		t.Fatalf("after 20ms got %v", got)
	}
	if v.Now() != epoch.Add(20*time.Millisecond) {
		t.Errorf("clock = %v", v.Now())
	}
}

func TestVirtualRescheduleReplaces(t *testing.T) {
	v := NewVirtual(epoch)
	runs := 0
	w := v.NewWork(func() { runs++ })
	w.Schedule(10 * time.Millisecond)
	w.Schedule(50 * time.Millisecond)
	if v.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", v.Pending())
	}
	v.Advance(20 * time.Millisecond)
	if runs != 0 {
		t.Fatal("replaced schedule fired")
	}
	v.Advance(30 * time.Millisecond)
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}
}

func TestVirtualCancel(t *testing.T) {
	v := NewVirtual(epoch)
	runs := 0
	w := v.NewWork(func() { runs++ })
	if w.Cancel() {
		t.Error("cancel of idle work reported pending")
	}
	w.Schedule(time.Millisecond)
	if !w.Cancel() {
		t.Error("cancel of armed work reported idle")
	}
	v.RunUntilIdle(10)
	if runs != 0 {
		t.Fatal("cancelled work ran")
	}
}

func TestVirtualSelfRescheduling(t *testing.T) {
	v := NewVirtual(epoch)
	var w Work
	steps := 0
	w = v.NewWork(func() {
		steps++
		if steps < 5 {
			w.Schedule(0)
		}
	})
	w.Schedule(0)
	if n := v.RunUntilIdle(100); n != 5 {
		t.Fatalf("ran %d steps, want 5", n)
	}
	if v.Now() != epoch {
		t.Error("zero-delay steps advanced the clock")
	}
}

func TestVirtualRunUntilIdleLimit(t *testing.T) {
	v := NewVirtual(epoch)
	var w Work
	w = v.NewWork(func() { w.Schedule(time.Millisecond) })
	w.Schedule(0)
	if n := v.RunUntilIdle(10); n != 10 {
		t.Fatalf("ran %d, want 10", n)
	}
	if !w.Pending() {
		t.Fatal("runaway work should still be armed")
	}
}

func TestQueueDeliversFired(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewQueue(ctx)

	ran := false
	w := q.NewWork(func() { ran = true })
	w.Schedule(time.Millisecond)

	select {
	case f := <-q.Ready():
		f.Run()
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	if !ran {
		t.Fatal("step did not run")
	}
	if w.Pending() {
		t.Fatal("work still pending after run")
	}
}

func TestQueueDropsStaleFire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewQueue(ctx)

	runs := 0
	w := q.NewWork(func() { runs++ })
	w.Schedule(0)

	var f Fired
	select {
	case f = <-q.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	// Cancel races with a fire that is already queued.
	if !w.Cancel() {
		t.Error("cancel should report the queued run as pending")
	}
	f.Run()
	if runs != 0 {
		t.Fatal("stale fire executed")
	}
}
