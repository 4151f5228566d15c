//go:build 386

package main

import (
	"unsafe"

	"maahios/internal/arch/x86"
	"maahios/internal/exception"
	"maahios/internal/gdt"
	"maahios/internal/idt"
	"maahios/internal/intlock"
	"maahios/internal/ring3"
	"maahios/internal/scheduler"
	"maahios/internal/syscall"
)

func ring3FrameFor(entry, userStack uint32) ring3.Frame {
	return ring3.Build(entry, userStack, gdt.UserCodeSelector, gdt.UserDataSelector, 0)
}

// One bodyless function per IDT vector, implemented in vectors_386.s.
// Their addresses, not their Go semantics, are what matters: each is
// installed directly into the IDT so the CPU jumps to it on that vector.
func exceptionStub0()
func exceptionStub1()
func exceptionStub2()
func exceptionStub3()
func exceptionStub4()
func exceptionStub5()
func exceptionStub6()
func exceptionStub7()
func exceptionStub8()
func exceptionStub9()
func exceptionStub10()
func exceptionStub11()
func exceptionStub12()
func exceptionStub13()
func exceptionStub14()
func exceptionStub15()
func exceptionStub16()
func exceptionStub17()
func exceptionStub18()
func exceptionStub19()
func timerStub()
func syscallStub()
func mouseStub()

// funcAddr extracts a Go function value's entry point: a funcval's first
// word is the code pointer. Used only to fill in the IDT with real
// addresses; every function passed here is a bodyless asm stub with no
// closure state.
func funcAddr(f func()) uint32 {
	return uint32(**(**uintptr)(unsafe.Pointer(&f)))
}

func exceptionHandlerAddrs() [20]uint32 {
	return [20]uint32{
		funcAddr(exceptionStub0), funcAddr(exceptionStub1), funcAddr(exceptionStub2),
		funcAddr(exceptionStub3), funcAddr(exceptionStub4), funcAddr(exceptionStub5),
		funcAddr(exceptionStub6), funcAddr(exceptionStub7), funcAddr(exceptionStub8),
		funcAddr(exceptionStub9), funcAddr(exceptionStub10), funcAddr(exceptionStub11),
		funcAddr(exceptionStub12), funcAddr(exceptionStub13), funcAddr(exceptionStub14),
		funcAddr(exceptionStub15), funcAddr(exceptionStub16), funcAddr(exceptionStub17),
		funcAddr(exceptionStub18), funcAddr(exceptionStub19),
	}
}

// savedRegs mirrors the PUSHAL layout from low to high address: EDI is
// pushed last so it sits at the lowest address, EAX first so it sits at
// the highest.
type savedRegs struct {
	EDI, ESI, EBP, ESPOrig uint32
	EBX, EDX, ECX, EAX     uint32
}

// trapFrame is what sits above the saved registers on the stack: the
// vector number and error code commonTrap's callers push, followed by
// the CPU's own EIP/CS/EFLAGS push.
type trapFrame struct {
	regs          savedRegs
	vector        uint32
	errorCode     uint32
	eip           uint32
	cs            uint32
	eflags        uint32
}

// trapDispatch is called from commonTrap in vectors_386.s with a pointer
// to the saved-register block. It routes to the exception classifier,
// the timer tick, or the syscall dispatcher depending on the vector, and
// either returns (resuming the interrupted context) or diverts control
// permanently via EnterRing3/HaltForever.
//
//go:nosplit
func trapDispatch(framePtr uint32) {
	tf := (*trapFrame)(unsafe.Pointer(uintptr(framePtr)))

	switch tf.vector {
	case uint32(idt.TimerVector):
		handleTimer()
	case uint32(idt.MouseVector):
		handleMouse()
	case syscallVectorNumber:
		handleSyscall(tf)
	default:
		handleException(tf)
	}
}

const syscallVectorNumber = 0x80

// timerIRQLine and mouseIRQLine mirror bringup's unexported PIC line
// numbers: this is the one other place that needs them, to acknowledge the
// interrupt it just serviced.
const (
	timerIRQLine = 0
	mouseIRQLine = 12
)

// handleTimer runs with interrupts already masked by the timer vector's
// interrupt gate, so the intlock.Token it hands to Scheduler.Tick is
// constructed directly rather than through a Guard (Guard.With demands
// interrupts be enabled on entry, which they never are here). PIT.Tick
// advances the monotonic tick counter and, from inside that same call,
// drives the scheduler — mirroring pit_handler's count-then-dispatch
// sequence. EOI must reach the PIC before any non-returning transfer or
// IRQ0 never fires again.
func handleTimer() {
	k := activeKernel
	if k == nil {
		return
	}
	var next scheduler.Descriptor
	var ready bool
	k.PIT.Tick(func() {
		next, ready = k.Scheduler.Tick(intlock.Token{})
	})
	k.PIC.EndOfInterrupt(timerIRQLine)
	if !ready {
		return
	}
	k.GDT.SetKernelStack(next.KernelStack)
	x86.EnterRing3(ring3FrameFor(next.EntryPoint, next.UserStack))
}

// handleMouse runs the PS/2 packet-assembly handler then acknowledges
// IRQ12; without the EOI the 8259 stops delivering further mouse
// interrupts after the first one.
func handleMouse() {
	k := activeKernel
	if k == nil {
		return
	}
	if k.Mouse != nil {
		k.Mouse.Handler()
	}
	k.PIC.EndOfInterrupt(mouseIRQLine)
}

func handleException(tf *trapFrame) {
	k := activeKernel
	if k == nil {
		x86.HaltForever()
	}
	frame := exception.Frame{
		EAX: tf.regs.EAX, EBX: tf.regs.EBX, ECX: tf.regs.ECX, EDX: tf.regs.EDX,
		ESI: tf.regs.ESI, EDI: tf.regs.EDI, EBP: tf.regs.EBP, ESP: tf.regs.ESPOrig,
		EIP: tf.eip, CS: uint16(tf.cs), EFlags: tf.eflags,
		CR0: x86.ProtectionFlags(), CR2: x86.FaultingAddress(), CR3: x86.ActivePageDirectory(),
	}
	outcome := k.Faults.Handle(int(tf.vector), tf.errorCode, frame)
	if outcome == exception.HaltKernel {
		x86.HaltForever()
	}
	// The scheduler reports no current PID while the system manager, which
	// is entered directly rather than dequeued, is the running process.
	pid := k.Scheduler.CurrentPID()
	if pid == 0 && k.Sysman != nil {
		pid = k.Sysman.PID
	}
	proc := k.Procs.Get(pid)
	if proc == nil {
		x86.HaltForever()
	}
	x86.EnterRing3(ring3FrameFor(proc.EntryPoint, proc.UserStackTop))
}

func handleSyscall(tf *trapFrame) {
	k := activeKernel
	if k == nil {
		return
	}
	req := syscall.Request{
		Num:     tf.regs.EAX,
		Arg1:    tf.regs.EBX,
		Arg2:    tf.regs.ECX,
		Arg3:    tf.regs.EDX,
		Arg4:    tf.regs.ESI,
		UserESP: tf.regs.ESPOrig,
	}
	res := k.Syscalls.Dispatch(req)
	if res.Halt {
		x86.HaltForever()
	}
	if res.Transfer != nil {
		k.GDT.SetKernelStack(res.Transfer.KernelStack)
		frame := ring3FrameFor(res.Transfer.EntryPoint, res.Transfer.UserStack)
		x86.EnterRing3(frame)
	}
	tf.regs.EAX = res.Value
}
