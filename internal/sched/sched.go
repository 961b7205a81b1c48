// Package sched provides delayed, re-armable work items that execute on a
// single worker. Queue is backed by real timers; Virtual advances a manual
// clock so step sequences can be tested deterministically.
package sched

import (
	"container/heap"
	"context"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Work is a single re-armable step. All methods must be called from the
// worker that executes the scheduler's steps.
type Work interface {
	// Schedule arms the work to run after d, replacing any pending run.
	Schedule(d time.Duration)
	// Cancel disarms the work and reports whether a run was pending.
	Cancel() bool
	Pending() bool
}

// Scheduler creates Work items bound to one worker.
type Scheduler interface {
	Clock
	NewWork(fn func()) Work
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Fired is a timer expiry waiting to be executed by the worker.
type Fired struct {
	w   *queueWork
	gen uint64
}

// Run executes the step unless it was cancelled or re-armed after firing.
func (f Fired) Run() {
	if f.w.gen != f.gen || !f.w.armed {
		return
	}
	f.w.armed = false
	f.w.fn()
}

// Queue is a timer-backed Scheduler. Expired work is delivered on Ready
// and must be executed by calling Fired.Run on the worker goroutine.
type Queue struct {
	ready chan Fired
	done  chan struct{}
}

// NewQueue creates a Queue. ctx bounds the lifetime of pending timers.
func NewQueue(ctx context.Context) *Queue {
	q := &Queue{ready: make(chan Fired, 16), done: make(chan struct{})}
	go func() {
		<-ctx.Done()
		close(q.done)
	}()
	return q
}

func (q *Queue) Now() time.Time { return time.Now() }

// Ready delivers fired steps to the worker.
func (q *Queue) Ready() <-chan Fired { return q.ready }

func (q *Queue) NewWork(fn func()) Work {
	return &queueWork{q: q, fn: fn}
}

type queueWork struct {
	q     *Queue
	fn    func()
	timer *time.Timer
	gen   uint64
	armed bool
}

func (w *queueWork) Schedule(d time.Duration) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	w.armed = true
	f := Fired{w: w, gen: w.gen}
	w.timer = time.AfterFunc(max(d, 0), func() {
		select {
		case w.q.ready <- f:
		case <-w.q.done:
		}
	})
}

func (w *queueWork) Cancel() bool {
	pending := w.armed
	if w.timer != nil {
		w.timer.Stop()
	}
	// Bumping the generation invalidates a fire already queued on Ready.
	w.gen++
	w.armed = false
	return pending
}

func (w *queueWork) Pending() bool { return w.armed }

// Virtual is a Scheduler driven by a manual clock. Steps run synchronously
// inside Advance and RunUntilIdle on the calling goroutine.
type Virtual struct {
	now   time.Time
	seq   uint64
	queue timerHeap
}

// NewVirtual starts a virtual clock at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time { return v.now }

func (v *Virtual) NewWork(fn func()) Work {
	return &virtualWork{v: v, fn: fn}
}

// Advance moves the clock forward by d, running every step that falls due
// in deadline order. Steps scheduled by those steps run too if they fall
// inside the window.
func (v *Virtual) Advance(d time.Duration) {
	until := v.now.Add(d)
	for v.queue.Len() > 0 && !v.queue[0].at.After(until) {
		v.fireNext()
	}
	v.now = until
}

// RunUntilIdle runs steps until none are pending or limit steps have run,
// and returns the number executed.
func (v *Virtual) RunUntilIdle(limit int) int {
	n := 0
	for v.queue.Len() > 0 && n < limit {
		v.fireNext()
		n++
	}
	return n
}

// Pending returns the number of armed steps.
func (v *Virtual) Pending() int { return v.queue.Len() }

func (v *Virtual) fireNext() {
	t := heap.Pop(&v.queue).(*virtualTimer)
	if t.at.After(v.now) {
		v.now = t.at
	}
	t.w.timer = nil
	t.w.fn()
}

type virtualWork struct {
	v     *Virtual
	fn    func()
	timer *virtualTimer
}

func (w *virtualWork) Schedule(d time.Duration) {
	w.Cancel()
	w.v.seq++
	w.timer = &virtualTimer{at: w.v.now.Add(max(d, 0)), seq: w.v.seq, w: w}
	heap.Push(&w.v.queue, w.timer)
}

func (w *virtualWork) Cancel() bool {
	if w.timer == nil {
		return false
	}
	heap.Remove(&w.v.queue, w.timer.index)
	w.timer = nil
	return true
}

func (w *virtualWork) Pending() bool { return w.timer != nil }

type virtualTimer struct {
	at    time.Time
	seq   uint64
	w     *virtualWork
	index int
}

type timerHeap []*virtualTimer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*virtualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
