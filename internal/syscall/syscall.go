// Package syscall is the C13 dispatcher behind interrupt vector 0x80: one
// function mapping a syscall number and up to four register arguments (plus,
// for a handful of calls, extra arguments read off the user stack) onto the
// console, framebuffer, mouse, frame allocator, process table and scheduler
// collaborators (spec.md §4.13, §6.3). Grounded on
// original_source/syscalls/syscall_handler.c's syscall_dispatcher switch
// statement and syscall_numbers.h's numbering.
//
// The source's dispatcher unconditionally re-enables interrupts on entry
// ("sti" as the first statement) with no regard for what it is about to
// touch; spec.md's Design Notes call this out as a reentrancy hazard and ask
// for syscalls that mutate shared kernel state — the frame bitmap, the
// process table, the ready queue — to keep interrupts disabled for their
// duration instead. nonReentrant below is that list; everything else runs
// with interrupts enabled, matching the source's behavior.
//
// syscall_numbers.h also defines SYSCALL_WRITE = 5 ("Write to file
// descriptor"), absent from this dispatcher: there is no file descriptor
// table anywhere in bringup or the process manager, nothing in the source's
// own dispatcher implements case SYSCALL_WRITE, and the numbered contract
// this package implements has no entry for 5 either. It falls through to
// the unknown-syscall path like any other unrecognized number.
package syscall

import (
	"maahios/internal/bitfield"
	"maahios/internal/drivers"
	"maahios/internal/intlock"
	"maahios/internal/klog"
	"maahios/internal/memview"
	"maahios/internal/pic"
	"maahios/internal/pmm"
	"maahios/internal/process"
	"maahios/internal/scheduler"
)

// Syscall numbers, per spec.md §6.3. 5 is deliberately absent; see the
// package comment.
const (
	PutChar          = 1
	Puts             = 2
	PutInt           = 3
	Exit             = 4
	AllocPage        = 6
	FreePage         = 7
	Clear            = 8
	SetColor         = 9
	DrawRect         = 10
	GraphicsMode     = 11
	PutPixel         = 12
	ClearGfx         = 13
	PrintAt          = 14
	SetCursor        = 15
	DrawBox          = 16
	CreateProcess    = 17
	GetOrbitAddress  = 18
	GfxPutChar       = 19
	GfxPuts          = 20
	GfxClear         = 21
	GfxSetColor      = 22
	GfxFillRect      = 23
	GfxDrawRect      = 24
	GfxPrintAt       = 25
	GfxClearColor    = 26
	GfxDrawBMP       = 27
	MouseGetX        = 28
	MouseGetY        = 29
	MouseGetButtons  = 30
	Yield            = 31
	MouseGetIRQTotal = 32
	GetPICMask       = 33
	ReEnableMouse    = 34
	PollMouse        = 35
	ReadPixel        = 36

	mouseIRQLine = 12
)

// nonReentrant is the set of syscalls that must not be preempted by the
// timer IRQ: they touch the frame bitmap, the process table, or the ready
// queue, none of which has any locking beyond "interrupts are off".
var nonReentrant = map[uint32]bool{
	AllocPage:     true,
	FreePage:      true,
	CreateProcess: true,
	Yield:         true,
}

// Request is one syscall invocation: the number plus up to four register
// arguments (spec.md's "up to four arguments in designated registers") and
// the user stack pointer, for the handful of calls that need a fifth
// argument or more read off the user stack.
type Request struct {
	Num     uint32
	Arg1    uint32
	Arg2    uint32
	Arg3    uint32
	Arg4    uint32
	UserESP uint32
}

// Result is what the dispatcher hands back. Value is written into the
// register that held the syscall number, per spec.md §4.5. Transfer is set
// only by Yield succeeding in dequeuing a new descriptor, and Halt only by
// Exit: both describe a non-returning control transfer the caller
// (cmd/kernel's handleSyscall, through internal/arch/x86) performs, rather than
// something this package can do itself.
type Result struct {
	Value    uint32
	Transfer *scheduler.Descriptor
	Halt     bool
}

// Dispatcher holds every collaborator spec.md §6.3's table reaches into.
type Dispatcher struct {
	console drivers.Console
	fb      drivers.Framebuffer
	mouse   drivers.Mouse
	frames  *pmm.Allocator
	procs   *process.Manager
	sched   *scheduler.Scheduler
	pic     *pic.PIC
	mem     *memview.View
	log     *klog.Logger

	guard *intlock.Guard

	orbitAddr uint32

	// gfxFG/gfxBG mirror the source's current_fg_color/current_bg_color
	// globals: the color gfx_putc/gfx_puts/gfx_clear use when a syscall
	// doesn't carry its own color arguments.
	gfxFG, gfxBG uint32
}

// New constructs a Dispatcher. orbitAddress is module 1's physical base
// address (spec.md §6.3 syscall 18 "module 1 base"), resolved once during
// bringup from the bootloader's module table.
func New(console drivers.Console, fb drivers.Framebuffer, mouse drivers.Mouse, frames *pmm.Allocator, procs *process.Manager, sched *scheduler.Scheduler, pic *pic.PIC, ctrl intlock.Controller, mem *memview.View, log *klog.Logger, orbitAddress uint32) *Dispatcher {
	return &Dispatcher{
		console:   console,
		fb:        fb,
		mouse:     mouse,
		frames:    frames,
		procs:     procs,
		sched:     sched,
		pic:       pic,
		mem:       mem,
		log:       log,
		guard:     intlock.NewGuard(ctrl),
		orbitAddr: orbitAddress,
	}
}

// Dispatch runs one syscall and returns its result. Unknown numbers log a
// diagnostic and return 0, matching the source's default case.
func (d *Dispatcher) Dispatch(req Request) Result {
	if nonReentrant[req.Num] {
		var res Result
		d.guard.With(func(tok intlock.Token) {
			res = d.dispatchLocked(req, tok)
		})
		return res
	}
	return d.dispatchOpen(req)
}

func (d *Dispatcher) dispatchLocked(req Request, tok intlock.Token) Result {
	switch req.Num {
	case AllocPage:
		return Result{Value: uint32(d.frames.Alloc())}
	case FreePage:
		d.frames.Free(uintptr(req.Arg1))
		return Result{}
	case CreateProcess:
		pcb, err := d.procs.Create(req.Arg1)
		if err != nil {
			d.log.Linef("syscall: create_process failed: %v", err)
			return Result{Value: 0xFFFFFFFF}
		}
		d.sched.Enqueue(tok, scheduler.Descriptor{
			PID:         pcb.PID,
			EntryPoint:  pcb.EntryPoint,
			UserStack:   pcb.UserStackTop,
			KernelStack: pcb.KernelStackTop,
		})
		return Result{Value: uint32(pcb.PID)}
	case Yield:
		descriptor, ok := d.sched.Tick(tok)
		if !ok {
			return Result{}
		}
		return Result{Transfer: &descriptor}
	default:
		return Result{}
	}
}

func (d *Dispatcher) dispatchOpen(req Request) Result {
	switch req.Num {
	case PutChar:
		d.console.PutChar(byte(req.Arg1))
		return Result{}
	case Puts:
		s := d.cstring(req.Arg1)
		d.console.PutString(s)
		return Result{}
	case PutInt:
		d.console.PutInt(int32(req.Arg1))
		return Result{}
	case Exit:
		return Result{Halt: true}
	case Clear:
		d.console.Clear()
		return Result{}
	case SetColor:
		d.console.SetColor(uint8(req.Arg1), uint8(req.Arg2))
		return Result{}
	case DrawRect:
		w, h, color := unpackRect(req.Arg3)
		d.console.DrawRect(int(req.Arg1), int(req.Arg2), int(w), int(h), color)
		return Result{}
	case GraphicsMode:
		d.fb.SwitchLowRes()
		return Result{}
	case PutPixel:
		d.fb.PutPixelLowRes(int(req.Arg1), int(req.Arg2), uint8(req.Arg3))
		return Result{}
	case ClearGfx:
		d.fb.ClearLowRes(uint8(req.Arg1))
		return Result{}
	case PrintAt:
		fg, bg, err := d.stackFgBg(req.UserESP)
		if err != nil {
			d.log.Linef("syscall: print_at: %v", err)
			return Result{}
		}
		d.fb.PrintAt(int(req.Arg1), int(req.Arg2), d.cstring(req.Arg3), fg, bg)
		return Result{}
	case SetCursor:
		d.console.SetCursor(int(req.Arg1), int(req.Arg2))
		return Result{}
	case DrawBox:
		w, h := unpackBox(req.Arg3)
		d.console.DrawBox(int(req.Arg1), int(req.Arg2), int(w), int(h))
		return Result{}
	case GetOrbitAddress:
		return Result{Value: d.orbitAddr}
	case GfxPutChar:
		d.fb.PutChar(byte(req.Arg1), d.gfxFG, d.gfxBG)
		return Result{}
	case GfxPuts:
		for _, r := range d.cstring(req.Arg1) {
			d.fb.PutChar(byte(r), d.gfxFG, d.gfxBG)
		}
		return Result{}
	case GfxClear:
		d.fb.Clear(d.gfxBG)
		d.fb.SetCursor(0, 0)
		return Result{}
	case GfxSetColor:
		d.gfxFG, d.gfxBG = req.Arg1, req.Arg2
		return Result{}
	case GfxFillRect:
		w, h := unpackWideRect(req.Arg3)
		d.fb.FillRect(int(req.Arg1), int(req.Arg2), int(w), int(h), req.Arg4)
		return Result{}
	case GfxDrawRect:
		height, err := d.stackArg(req.UserESP, 0)
		if err != nil {
			d.log.Linef("syscall: gfx_draw_rect: %v", err)
			return Result{}
		}
		color, err := d.stackArg(req.UserESP, 1)
		if err != nil {
			d.log.Linef("syscall: gfx_draw_rect: %v", err)
			return Result{}
		}
		d.fb.DrawRect(int(req.Arg1), int(req.Arg2), int(req.Arg3), int(height), color)
		return Result{}
	case GfxPrintAt:
		fg, bg, err := d.stackFgBg(req.UserESP)
		if err != nil {
			d.log.Linef("syscall: gfx_print_at: %v", err)
			return Result{}
		}
		d.fb.PrintAt(int(req.Arg1), int(req.Arg2), d.cstring(req.Arg3), fg, bg)
		return Result{}
	case GfxClearColor:
		d.fb.Clear(req.Arg1)
		d.fb.SetCursor(0, 0)
		return Result{}
	case GfxDrawBMP:
		bmp, err := d.bmpBytes(req.Arg3)
		if err != nil {
			d.log.Linef("syscall: gfx_draw_bmp: %v", err)
			return Result{}
		}
		d.fb.DrawBMP(int(req.Arg1), int(req.Arg2), bmp)
		return Result{}
	case MouseGetX:
		return Result{Value: uint32(int32(d.mouse.X()))}
	case MouseGetY:
		return Result{Value: uint32(int32(d.mouse.Y()))}
	case MouseGetButtons:
		return Result{Value: uint32(d.mouse.Buttons())}
	case MouseGetIRQTotal:
		return Result{Value: d.mouse.IRQTotal()}
	case GetPICMask:
		return Result{Value: uint32(d.pic.ReadMask())}
	case ReEnableMouse:
		d.mouse.DrainBuffer()
		d.pic.Enable(mouseIRQLine)
		return Result{}
	case PollMouse:
		if d.mouse.PollOnce() {
			return Result{Value: 1}
		}
		return Result{Value: 0}
	case ReadPixel:
		return Result{Value: d.fb.ReadPixel(int(req.Arg1), int(req.Arg2))}
	default:
		d.log.Linef("syscall: unknown syscall %d", req.Num)
		return Result{}
	}
}

func (d *Dispatcher) cstring(addr uint32) string {
	s, err := d.mem.CString(uintptr(addr), 4096)
	if err != nil {
		d.log.Linef("syscall: bad string pointer 0x%08X: %v", addr, err)
		return ""
	}
	return s
}

func (d *Dispatcher) stackArg(userESP uint32, index int) (uint32, error) {
	return d.mem.Uint32(uintptr(userESP) + uintptr(index)*4)
}

func (d *Dispatcher) stackFgBg(userESP uint32) (fg, bg uint32, err error) {
	fg, err = d.stackArg(userESP, 0)
	if err != nil {
		return 0, 0, err
	}
	bg, err = d.stackArg(userESP, 1)
	if err != nil {
		return 0, 0, err
	}
	return fg, bg, nil
}

func (d *Dispatcher) bmpBytes(addr uint32) ([]byte, error) {
	sizeField, err := d.mem.Uint32(uintptr(addr) + 2)
	if err != nil {
		return nil, err
	}
	return d.mem.Slice(uintptr(addr), uintptr(sizeField))
}

// packedRect is draw_rect's third argument: width, height, color packed one
// byte each, low byte first — original_source/syscalls/syscall_handler.c's
// "width = arg3 & 0xFF; height = (arg3>>8)&0xFF; color = (arg3>>16)&0xFF".
type packedRect struct {
	Width  uint8 `bitfield:",8"`
	Height uint8 `bitfield:",8"`
	Color  uint8 `bitfield:",8"`
}

func unpackRect(packed uint32) (width, height, color uint8) {
	var r packedRect
	_ = bitfield.Unpack(uint64(packed), &r, &bitfield.Config{NumBits: 24})
	return r.Width, r.Height, r.Color
}

// packedBox is draw_box's third argument: width and height packed 16 bits
// each, low half first — the source's "width = arg3 & 0xFFFF; height =
// (arg3 >> 16) & 0xFFFF".
type packedBox struct {
	Width  uint16 `bitfield:",16"`
	Height uint16 `bitfield:",16"`
}

func unpackBox(packed uint32) (width, height uint16) {
	var b packedBox
	_ = bitfield.Unpack(uint64(packed), &b, &bitfield.Config{NumBits: 32})
	return b.Width, b.Height
}

func unpackWideRect(packed uint32) (width, height uint16) {
	return unpackBox(packed)
}
