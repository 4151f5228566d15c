// Package intlock implements the "interrupts-disabled token" called for by
// the Design Notes' "Global mutable state" section: the frame allocator,
// page directory, scheduler queue, and TSS are process-wide singletons
// guarded by cli/sti discipline rather than a mutex, because the kernel is
// single-threaded on a uniprocessor and the only concurrent writer is an
// IRQ handler (spec.md §4.12 concurrency note, §4.7 "Shared resources").
// A Token is proof that interrupts are currently masked; operations that
// touch shared kernel state require one as an argument so the compiler
// catches call sites that forgot to disable interrupts first.
package intlock

// Controller is the arch-level cli/sti primitive. internal/arch/x86 backs
// it with real CLI/STI instructions; host tests use a fake that just
// tracks the enabled/disabled flag.
type Controller interface {
	Disable()
	Enable()
	Enabled() bool
}

// Token certifies that interrupts are disabled. It carries no data and is
// not checked at run time: With hands out the zero Token, and code already
// running with interrupts masked (cmd/kernel's timer handler) builds one
// directly.
type Token struct{ _ byte }

// Guard disables interrupts for the lifetime of a single critical section.
// Guards do not nest: calling With while interrupts are already disabled panics,
// matching the single-threaded, single-level discipline the scheduler
// queue and frame bitmap rely on (spec.md §4.12, §4.7).
type Guard struct {
	ctrl Controller
}

// NewGuard returns a Guard wrapping ctrl. Holding a Guard does not itself
// disable interrupts; call With to run a critical section.
func NewGuard(ctrl Controller) *Guard {
	return &Guard{ctrl: ctrl}
}

// With disables interrupts, runs fn with a Token proving it, and restores
// the prior interrupt state afterward — even if fn panics.
func (g *Guard) With(fn func(Token)) {
	wasEnabled := g.ctrl.Enabled()
	if !wasEnabled {
		panic("intlock: With called with interrupts already disabled")
	}
	g.ctrl.Disable()
	defer func() {
		if wasEnabled {
			g.ctrl.Enable()
		}
	}()
	fn(Token{})
}
