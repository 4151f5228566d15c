// Package bringup sequences the sixteen bring-up steps spec.md §4.14
// prescribes, in order, each assuming the previous succeeded. Grounded on
// the overall shape of original_source's kernel_main (console up, memory
// manager up, GDT/IDT up, PIC remapped, heap up, process manager and
// scheduler up, PIT armed, interrupts enabled, drivers brought up, modules
// located, sysman started) but rebuilt around this module's host-testable
// package boundaries: every subsystem constructor below returns a value
// instead of mutating a global, and the one step that "does not return"
// (step 16, starting the system-manager process) is split the same way
// internal/process and internal/ring3 already are — Bring constructs the
// initial ring-3 frame and hands it back instead of performing the IRET
// itself, which is internal/arch/x86's job.
//
// Steps 1 and 2 (console driver, framebuffer probe) and the real CR0/CR3/
// lgdt/lidt/sti work behind steps 4-6 and 13 are out of this package's
// scope (spec.md §1): bringup receives already-constructed drivers.Console/
// Framebuffer/Mouse/Ports and an intlock.Controller, and hands back
// gdt.Table/idt.Table values for the caller to load.
package bringup

import (
	"fmt"

	"maahios/internal/diag"
	"maahios/internal/drivers"
	"maahios/internal/exception"
	"maahios/internal/gdt"
	"maahios/internal/idt"
	"maahios/internal/intlock"
	"maahios/internal/kheap"
	"maahios/internal/klog"
	"maahios/internal/mbinfo"
	"maahios/internal/memview"
	"maahios/internal/paging"
	"maahios/internal/pic"
	"maahios/internal/pit"
	"maahios/internal/pmm"
	"maahios/internal/process"
	"maahios/internal/ring3"
	"maahios/internal/scheduler"
	"maahios/internal/syscall"
)

const (
	masterPICOffset = 0x20
	slavePICOffset  = 0x28

	timerIRQLine = 0
	mouseIRQLine = 12

	memoryStart = 0x00100000 // matches internal/pmm's usable-RAM origin
)

// Config is the compile-time-ish tuning this kernel needs, the equivalent
// of the teacher's named constant blocks (PERIPHERAL_BASE, KERNEL_HEAP_SIZE,
// G0_STACK_BOTTOM, ...): spec.md's Non-goals rule out a config file or flag
// parser, so it is a single struct of addresses and sizes passed explicitly
// through Bring rather than read from the environment.
type Config struct {
	TimerFrequencyHz       uint32
	IdentityMapCapBytes    uint32
	HeapBase               uintptr
	SchedulerQueueCapacity int
	UserStackBase          uintptr
	KernelStackBase        uintptr
	StackStride            uintptr
	KernelStart            uintptr
	KernelEnd              uintptr
	BitmapBase             uintptr
	PageDirectoryBase      uintptr
	TSSBase                uintptr
	Ring0StackTop          uint32
	DiagnosticTraceDepth   int

	// ExceptionHandlerAddrs, TimerHandlerAddr and SyscallHandlerAddr are the
	// link-time addresses of cmd/kernel's assembly entry stubs, which Bring
	// installs into the IDT per vector. They are opaque uint32s here; only arch code
	// ever branches on what's really at those addresses.
	ExceptionHandlerAddrs [20]uint32
	TimerHandlerAddr      uint32
	SyscallHandlerAddr    uint32
	MouseHandlerAddr      uint32
}

// DefaultConfig returns the constant values MaahiOS boots with absent any
// override: a 100 Hz timer, a 4 MiB identity map, and stack/heap regions
// laid out above the 1 MiB line with generous headroom before the module
// load addresses spec.md §6.2 describes.
func DefaultConfig() Config {
	return Config{
		TimerFrequencyHz:       100,
		IdentityMapCapBytes:    4 * 1024 * 1024,
		HeapBase:               0x00400000,
		SchedulerQueueCapacity: scheduler.DefaultCapacity,
		UserStackBase:          0x00900000,
		KernelStackBase:        0x00A00000,
		StackStride:            0x1000,
		KernelStart:            0x00100000,
		KernelEnd:              0x00200000,
		BitmapBase:             0x00200000,
		PageDirectoryBase:      0x00300000,
		TSSBase:                0x00301000,
		Ring0StackTop:          0x00302000,
		DiagnosticTraceDepth:   32,
	}
}

// Kernel is every subsystem Bring constructs, held together for cmd/kernel
// (or a test) to drive further.
type Kernel struct {
	Log       *klog.Logger
	Trace     *diag.Trace
	Frames    *pmm.Allocator
	Directory *paging.Directory
	GDT       *gdt.Table
	IDT       *idt.Table
	PIC       *pic.PIC
	PIT       *pit.PIT
	Heap      *kheap.Heap
	Procs     *process.Manager
	Scheduler *scheduler.Scheduler
	Faults    *exception.Handler
	Syscalls  *syscall.Dispatcher
	Mouse     drivers.Mouse

	OrbitAddress uint32

	// Sysman is the PCB created in step 16 and SysmanFrame the IRET frame
	// built for it; both are handed back instead of acted upon, since
	// entering ring 3 does not return and cannot be expressed as a Go call
	// that continues past it.
	Sysman      *process.PCB
	SysmanFrame ring3.Frame
}

// Bring runs the sixteen-step sequence and returns the assembled Kernel, or
// the first error encountered — per spec.md's error kind 1, any bring-up
// failure is fatal and the caller's only correct response is to log it and
// halt.
func Bring(cfg Config, info mbinfo.Info, console drivers.Console, fb drivers.Framebuffer, mouse drivers.Mouse, ports drivers.Ports, ctrl intlock.Controller, mem *memview.View, log *klog.Logger) (*Kernel, error) {
	k := &Kernel{Log: log, Trace: diag.NewTrace(cfg.DiagnosticTraceDepth)}

	// Step 3: pmm.init — frame bitmap over usable RAM, kernel/module/bitmap
	// ranges pre-marked used.
	totalPages := uint32((uint64(info.TotalMemoryBytes()) - memoryStart) / pmm.PageSize)
	bitmapBytes, err := mem.Slice(cfg.BitmapBase, uintptr(pmm.BitmapSizeBytes(totalPages)))
	if err != nil {
		return nil, fmt.Errorf("bringup: step 3 (pmm.init): %w", err)
	}
	bitmapView := memview.New(cfg.BitmapBase, bitmapBytes)
	k.Frames = pmm.Init(info, cfg.KernelStart, cfg.KernelEnd, cfg.BitmapBase, bitmapView)

	// Step 4: paging.init — identity map, clamped to total memory per
	// spec.md's boundary behavior ("must still succeed by reducing the
	// identity region").
	identityCap := cfg.IdentityMapCapBytes
	if uint64(identityCap) > info.TotalMemoryBytes() {
		identityCap = uint32(info.TotalMemoryBytes())
	}
	directory, err := paging.NewDirectory(cfg.PageDirectoryBase, mem, k.Frames)
	if err != nil {
		return nil, fmt.Errorf("bringup: step 4 (paging.init): %w", err)
	}
	if err := directory.IdentityMapRegion(0, identityCap, paging.FlagPresent|paging.FlagWrite|paging.FlagUser); err != nil {
		return nil, fmt.Errorf("bringup: step 4 (identity map): %w", err)
	}
	k.Directory = directory

	// Steps 5-6: gdt.init/idt.init — built here; loading them into the CPU
	// (lgdt/lidt/ltr) is internal/arch/x86's job.
	k.GDT = gdt.Build(cfg.TSSBase, cfg.Ring0StackTop)
	k.IDT = idt.New()
	k.IDT.InstallExceptionGates(gdt.KernelCodeSelector, cfg.ExceptionHandlerAddrs)
	k.IDT.InstallTimerGate(gdt.KernelCodeSelector, cfg.TimerHandlerAddr)
	k.IDT.InstallSyscallGate(gdt.KernelCodeSelector, cfg.SyscallHandlerAddr)
	k.IDT.InstallMouseGate(gdt.KernelCodeSelector, cfg.MouseHandlerAddr)

	// Step 7: irq.init — PIC remapped, everything masked.
	k.PIC = pic.New(ports)
	k.PIC.Remap(masterPICOffset, slavePICOffset)

	// Step 8: exception handler classification is ready as soon as the
	// trace exists; the IDT entries installed above already point at it
	// indirectly through the arch-level stub addresses.
	k.Faults = exception.New(log, k.Trace)

	// Step 9: kheap.init.
	k.Heap = kheap.New(mem, k.Frames, k.Directory, cfg.HeapBase)

	// Step 10: process_manager.init.
	moduleRanges := make([]process.Range, len(info.Modules))
	for i, m := range info.Modules {
		moduleRanges[i] = process.Range{Start: m.Start, End: m.End}
	}
	stacks := process.NewStackAllocator(cfg.UserStackBase, cfg.KernelStackBase, cfg.StackStride, moduleRanges)
	k.Procs = process.NewManager(stacks)

	// Step 11: scheduler.init.
	k.Scheduler = scheduler.New(cfg.SchedulerQueueCapacity)

	// Step 12: pit.init — does not unmask IRQ 0 yet.
	k.PIT = pit.New(ports)
	k.PIT.Init(cfg.TimerFrequencyHz)

	// Step 13: enable interrupts globally. The real STI happens in
	// internal/arch/x86; ctrl.Enable() is the host-testable reflection of
	// that state change.
	ctrl.Enable()

	// Step 14: bring up the framebuffer (if present) and the mouse, then
	// unmask its IRQ line.
	if fb.Present() {
		fb.SwitchLowRes()
	}
	if mouse.Init() {
		k.Mouse = mouse
		k.PIC.Enable(mouseIRQLine)
	}

	// Step 15: locate modules; module 1's base is the "orbit address"
	// syscall 18 returns.
	if len(info.Modules) > 1 {
		k.OrbitAddress = uint32(info.Modules[1].Start)
	}

	k.Syscalls = syscall.New(console, fb, mouse, k.Frames, k.Procs, k.Scheduler, k.PIC, ctrl, mem, log, k.OrbitAddress)

	// Step 16: disable interrupts, enable the scheduler, unmask the timer,
	// and construct (but do not enter) the system-manager process.
	ctrl.Disable()
	k.Scheduler.Enable()
	k.PIC.Enable(timerIRQLine)

	var module0Entry uint32
	if len(info.Modules) > 0 {
		module0Entry = uint32(info.Modules[0].Start)
	}
	sysman, err := k.Procs.CreateSysman(module0Entry)
	if err != nil {
		return nil, fmt.Errorf("bringup: step 16 (create_sysman): %w", err)
	}
	k.Sysman = sysman
	k.SysmanFrame = ring3.Build(sysman.EntryPoint, sysman.UserStackTop, gdt.UserCodeSelector, gdt.UserDataSelector, 0)

	return k, nil
}
