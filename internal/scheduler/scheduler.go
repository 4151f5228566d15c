// Package scheduler is the C12 ready-queue of not-yet-started processes:
// a small circular queue of "start this process" descriptors drained by
// the timer IRQ (spec.md §4.12). original_source/managers/scheduler/
// scheduler.c never finishes this — scheduler_tick is a stub with a
// "TODO: implement context saving/switching" comment that always returns
// early — so this package implements the queue-of-not-yet-started-
// processes design spec.md substitutes for true preemptive switching,
// grounded on the source's enabled-flag/current-pid shape
// (scheduler_init/scheduler_enable/scheduler_disable/
// scheduler_get_current_pid) but with a real Enqueue/Tick.
//
// Enqueue and Tick both require an intlock.Token, per the concurrency
// note in spec.md §4.12: enqueue may run from kernel-mode syscall paths
// while tick runs in IRQ context, and the queue is protected by cli/sti
// discipline rather than a mutex.
package scheduler

import "maahios/internal/intlock"

// DefaultCapacity matches spec.md §4.12's "capacity: small, ~16".
const DefaultCapacity = 16

// Descriptor describes a not-yet-started process ready to begin running.
type Descriptor struct {
	PID         int
	EntryPoint  uint32
	UserStack   uint32
	KernelStack uint32
}

// Scheduler holds the enabled flag, the ready queue, and the current pid.
type Scheduler struct {
	enabled    bool
	current    int
	queue      []Descriptor
	head, tail int
	count      int
}

// New returns a Scheduler with the given ready-queue capacity, already
// initialized (current=none, disabled).
func New(capacity int) *Scheduler {
	s := &Scheduler{queue: make([]Descriptor, capacity)}
	s.Init()
	return s
}

// Init resets current to none and disables scheduling.
func (s *Scheduler) Init() {
	s.current = 0
	s.enabled = false
	s.head, s.tail, s.count = 0, 0, 0
}

// Enable turns on scheduling; Tick becomes a no-op again after Disable.
func (s *Scheduler) Enable() { s.enabled = true }

// Disable turns off scheduling.
func (s *Scheduler) Disable() { s.enabled = false }

// Enabled reports whether Tick currently does anything.
func (s *Scheduler) Enabled() bool { return s.enabled }

// CurrentPID returns the pid Tick most recently started, or 0 if none
// has started yet.
func (s *Scheduler) CurrentPID() int { return s.current }

// Enqueue appends d to the ready queue, requiring proof interrupts are
// disabled. Per spec.md §4.12, a full queue silently drops the newest
// descriptor rather than applying backpressure; Enqueue reports whether
// it was dropped so callers can log it.
func (s *Scheduler) Enqueue(_ intlock.Token, d Descriptor) (dropped bool) {
	if s.count == len(s.queue) {
		return true
	}
	s.queue[s.tail] = d
	s.tail = (s.tail + 1) % len(s.queue)
	s.count++
	return false
}

// Tick is called from the timer IRQ. If disabled, it does nothing. If the
// queue is non-empty, it dequeues the next descriptor and sets current to
// its pid; the caller is responsible for installing the descriptor's
// kernel-interrupt-stack top into the TSS and invoking the C11 trampoline
// (which does not return). If the queue is empty, Tick reports ok=false
// and the currently running process continues.
func (s *Scheduler) Tick(_ intlock.Token) (d Descriptor, ok bool) {
	if !s.enabled || s.count == 0 {
		return Descriptor{}, false
	}
	d = s.queue[s.head]
	s.head = (s.head + 1) % len(s.queue)
	s.count--
	s.current = d.PID
	return d, true
}
