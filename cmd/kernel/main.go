//go:build 386

// Command kernel is the freestanding multiboot entry point. KernelMain is
// the hand-off target a multiboot-compliant boot stub calls with the
// multiboot magic and info-structure pointer in registers — the x86
// equivalent of the teacher's ARM r0/r1/atags convention
// (src/mazboot/golang/main/kernel.go's KernelMain). The boot stub itself
// (multiboot header, initial stack, GOT/runtime bootstrap) is bootloader
// interaction beyond parsing the handoff structure, which is explicitly
// out of scope; KernelMain is where this repo's responsibility begins.
package main

import (
	"maahios/internal/arch/x86"
	"maahios/internal/bringup"
	"maahios/internal/drivers"
	"maahios/internal/klog"
	"maahios/internal/mbinfo"
)

const multibootMagic = 0x2BADB002

// activeKernel is the one package-level mutable reference the trap/IRQ/
// syscall entry points need: there is exactly one kernel instance for the
// lifetime of the machine, and the assembly trampolines have no way to
// thread a context argument through an interrupt gate.
var activeKernel *bringup.Kernel

// serialSink is a minimal COM1 writer satisfying klog.Sink, so log lines
// reach a hypervisor's serial console even before the VGA console is
// constructed, mirroring original_source/syscalls/syscall_handler.c's
// serial_putc habit of tracing everything to both outputs.
type serialSink struct {
	ports x86.Ports
}

const comPort = 0x3F8

func (s serialSink) PutString(str string) {
	for i := 0; i < len(str); i++ {
		for s.ports.In8(comPort+5)&0x20 == 0 {
		}
		s.ports.Out8(comPort, str[i])
	}
}

// KernelMain is called from the boot stub (not part of this tree) once a
// stack is established. It
// never returns: bring-up either halts on failure or hands off to the
// system-manager process in ring 3.
//
//go:nosplit
func KernelMain(magic, infoAddr uint32) {
	log := klog.New(serialSink{})

	if magic != multibootMagic {
		log.Linef("boot: bad multiboot magic 0x%08X", magic)
		x86.HaltForever()
	}

	lowMem := x86.IdentityMemory(0, 0x00100000)
	info, err := mbinfo.Parse(lowMem, infoAddr)
	if err != nil {
		log.Linef("boot: multiboot info parse failed: %v", err)
		x86.HaltForever()
	}

	console := x86.NewVGAConsole()
	console.Clear()
	log.Attach(console)

	var fb drivers.Framebuffer
	if info.Framebuffer.Present {
		if real := x86.NewBGAFramebuffer(info.Framebuffer.Width, info.Framebuffer.Height); real != nil {
			fb = real
		}
	}
	if fb == nil {
		fb = (*x86.BGAFramebuffer)(nil)
	}
	mouse := x86.NewPS2Mouse()
	ports := x86.Ports{}
	ctrl := x86.InterruptController{}

	cfg := bringup.DefaultConfig()
	cfg.ExceptionHandlerAddrs = exceptionHandlerAddrs()
	cfg.TimerHandlerAddr = funcAddr(timerStub)
	cfg.SyscallHandlerAddr = funcAddr(syscallStub)
	cfg.MouseHandlerAddr = funcAddr(mouseStub)

	mem := x86.IdentityMemory(0, uintptr(info.TotalMemoryBytes()))

	k, err := bringup.Bring(cfg, info, console, fb, mouse, ports, ctrl, mem, log)
	if err != nil {
		log.Linef("bringup failed: %v", err)
		x86.HaltForever()
	}
	activeKernel = k

	x86.LoadGDT(k.GDT)
	x86.LoadIDT(k.IDT)
	x86.LoadPageDirectory(cfg.PageDirectoryBase)

	log.Linef("maahios: bring-up complete, orbit=0x%08X, sysman pid=%d", k.OrbitAddress, k.Sysman.PID)

	x86.EnterRing3(k.SysmanFrame)
}
