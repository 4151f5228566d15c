// Package ring3 builds the interrupt-return frame for the ring-0 →
// ring-3 privilege transition (spec.md §4.11, C11). Grounded on
// original_source/managers/ring3/ring3.c's ring3_switch, with one
// deliberate behavior change: the source clears EFLAGS.IF before the
// IRET ("disable interrupts in Ring 3"), which means the timer can never
// preempt a running user process — almost certainly the bug spec.md's
// redesign section calls out, since a system where only one process ever
// really runs is indistinguishable from a scheduler that was never
// finished. Frame sets IF instead, per spec.md §4.11's explicit "modified
// flags (interrupts-enabled bit set)".
//
// Constructing a Frame is ordinary Go; actually executing IRET over it is
// the one operation the Design Notes say "fundamentally cannot be
// written in safe high-level code" and lives in internal/arch/x86.
package ring3

const ifBit = 0x200

// Frame is the five-field interrupt-return frame: user stack selector,
// user stack top, flags, user code selector, entry address. The arch-level
// trampoline lays them out in reverse (EIP, CS, EFLAGS, ESP, SS from low to
// high stack address), the order IRET pops them.
type Frame struct {
	UserStackSelector uint16
	UserStackTop      uint32
	EFlags            uint32
	UserCodeSelector  uint16
	EntryPoint        uint32
}

// Build constructs the IRET frame for entering userCodeSelector:entryPoint
// on userStackSelector:userStackTop, deriving EFlags from currentEFlags
// with the interrupt-enable bit forced on.
func Build(entryPoint, userStackTop uint32, userCodeSelector, userStackSelector uint16, currentEFlags uint32) Frame {
	return Frame{
		UserStackSelector: userStackSelector,
		UserStackTop:      userStackTop,
		EFlags:            currentEFlags | ifBit,
		UserCodeSelector:  userCodeSelector,
		EntryPoint:        entryPoint,
	}
}

// InterruptsEnabled reports whether the frame's EFlags has IF set — a
// sanity check exercised by tests.
func (f Frame) InterruptsEnabled() bool {
	return f.EFlags&ifBit != 0
}
