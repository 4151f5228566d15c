// Package exception classifies CPU faults by origin and decides what
// happens next (spec.md §4.6). A user-mode fault (saved CS RPL == 3) logs
// a line and is restarted at the process's entry point; a kernel-mode
// fault renders a full diagnostic panel and halts with interrupts
// disabled. Grounded on original_source/managers/interrupt/
// exception_handler.c's exception_handler/print_hex, generalized to
// branch on origin instead of always halting, per spec.md's explicit
// redesign of that behavior.
package exception

import (
	"fmt"

	"maahios/internal/diag"
	"maahios/internal/klog"
)

// Frame is the uniform register capture the assembly prologue pushes
// before calling into Go, named instead of indexed by stack offset (the
// Design Notes' "Exception handler register capture" note).
type Frame struct {
	EAX, EBX, ECX, EDX uint32
	ESI, EDI, EBP, ESP uint32
	EIP                uint32
	CS                 uint16
	EFlags             uint32
	CR0, CR2, CR3      uint32
}

// userOrigin reports whether the saved code selector's RPL (low 2 bits)
// indicates the fault occurred in ring 3.
func userOrigin(cs uint16) bool {
	return cs&0x3 == 3
}

// Outcome is the decision Handle hands back to the caller (cmd/kernel's
// handleException, which acts on it through internal/arch/x86). Handle itself never transitions privilege levels or
// halts — isolating that from the decision keeps classification testable
// on the host.
type Outcome int

const (
	// RestartUser means: re-enter ring 3 at the faulting process's entry
	// point. No process teardown (spec.md §4.6).
	RestartUser Outcome = iota
	// HaltKernel means: the fault originated in kernel code; render the
	// panel, then halt with interrupts disabled and never return.
	HaltKernel
)

var exceptionNames = [20]string{
	"Divide Error", "Debug", "NMI", "Breakpoint", "Overflow",
	"BOUND Range Exceeded", "Invalid Opcode", "Device Not Available",
	"Double Fault", "Coprocessor Segment Overrun", "Invalid TSS",
	"Segment Not Present", "Stack-Segment Fault", "General Protection Fault",
	"Page Fault", "Reserved", "x87 Floating-Point Exception",
	"Alignment Check", "Machine Check", "SIMD Floating-Point Exception",
}

// Name returns the canonical name for a CPU exception vector (0-19), or
// "Unknown Exception" outside that range.
func Name(vector int) string {
	if vector < 0 || vector >= len(exceptionNames) {
		return "Unknown Exception"
	}
	return exceptionNames[vector]
}

const pageFaultVector = 14

// Handler classifies and logs CPU faults.
type Handler struct {
	log   *klog.Logger
	trace *diag.Trace
}

// New builds a Handler logging to log and recording every fault into
// trace. trace may be nil to disable tracing.
func New(log *klog.Logger, trace *diag.Trace) *Handler {
	return &Handler{log: log, trace: trace}
}

// Handle classifies the fault described by vector/errorCode/frame and
// returns the resulting Outcome. It always logs; for HaltKernel it also
// renders the full register/control-register panel.
func (h *Handler) Handle(vector int, errorCode uint32, frame Frame) Outcome {
	user := userOrigin(frame.CS)
	if h.trace != nil {
		h.trace.Record(uint8(vector), errorCode, frame.EIP, user)
	}

	if user {
		h.log.Linef("[fault] %s (#%d) err=0x%x eip=0x%x cs=0x%x — restarting user entry",
			Name(vector), vector, errorCode, frame.EIP, frame.CS)
		return RestartUser
	}

	h.renderPanel(vector, errorCode, frame)
	return HaltKernel
}

func (h *Handler) renderPanel(vector int, errorCode uint32, frame Frame) {
	h.log.Line("")
	h.log.Line("!!! KERNEL EXCEPTION !!!")
	h.log.Linef("%s (vector %d), error code 0x%x", Name(vector), vector, errorCode)

	if vector == pageFaultVector {
		h.log.Hex32("faulting address cr2=", frame.CR2)
		h.log.Line(pageFaultFlags(errorCode))
	}

	h.log.Linef("EAX=0x%08X EBX=0x%08X ECX=0x%08X EDX=0x%08X", frame.EAX, frame.EBX, frame.ECX, frame.EDX)
	h.log.Linef("ESI=0x%08X EDI=0x%08X EBP=0x%08X ESP=0x%08X", frame.ESI, frame.EDI, frame.EBP, frame.ESP)
	h.log.Linef("EIP=0x%08X CS=0x%04X EFLAGS=0x%08X", frame.EIP, frame.CS, frame.EFlags)
	h.log.Linef("CR0=0x%08X CR2=0x%08X CR3=0x%08X", frame.CR0, frame.CR2, frame.CR3)
	h.log.Line("System Halted.")
}

func pageFaultFlags(errorCode uint32) string {
	present := "NOT-PRESENT"
	if errorCode&0x1 != 0 {
		present = "PROTECTION-VIOLATION"
	}
	access := "READ/EXEC"
	if errorCode&0x2 != 0 {
		access = "WRITE"
	}
	mode := "KERNEL"
	if errorCode&0x4 != 0 {
		mode = "USER"
	}
	s := fmt.Sprintf("fault type: %s %s %s", present, access, mode)
	if errorCode&0x10 != 0 {
		s += " INSTR-FETCH"
	}
	return s
}
