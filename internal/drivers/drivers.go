// Package drivers declares the capability traits the privilege-separated
// core (C1-C14) consumes from hardware collaborators that are deliberately
// out of this repo's core scope (spec.md §1, §6.4): the text console, the
// framebuffer, the PS/2 mouse, and raw port I/O. The core depends only on
// these interfaces, never on a concrete driver, so it can be exercised
// under a mock console and mock ports in host-side tests (spec.md §9,
// "Polymorphism and driver abstraction").
package drivers

// Ports is the C1 port-I/O primitive surface: fixed-width reads and writes
// against I/O-space ports. No allocation, no failure — a misbehaving port
// is a hardware fact, not a Go error.
type Ports interface {
	In8(port uint16) uint8
	Out8(port uint16, val uint8)
	In16(port uint16) uint16
	Out16(port uint16, val uint16)
	In32(port uint16) uint32
	Out32(port uint16, val uint32)
}

// Console is the text-mode output surface consumed by the syscall
// dispatcher (putchar, puts, putint, clear, set_color, draw_rect,
// set_cursor, draw_box) and by bringup logging.
type Console interface {
	Clear()
	PutChar(c byte)
	PutString(s string)
	PutInt(n int32)
	SetColor(fg, bg uint8)
	SetCursor(x, y int)
	DrawRect(x, y, width, height int, color uint8)
	DrawBox(x, y, width, height int)
}

// Framebuffer is the linear-framebuffer surface consumed by the gfx_*
// syscalls and by the graphics-mode switch. Geometry is fixed at
// construction time from the bootloader's framebuffer fields (spec.md
// §6.1); SwitchLowRes switches into the low-resolution planar mode
// (syscalls 11-13). No method switches back to the BGA/VBE linear mode
// (syscalls 19-27, 36).
type Framebuffer interface {
	Present() bool
	Width() int
	Height() int
	SwitchLowRes()
	PutPixelLowRes(x, y int, color uint8)
	ClearLowRes(color uint8)
	PutPixel(x, y int, color uint32)
	ReadPixel(x, y int) uint32
	Clear(color uint32)
	FillRect(x, y, width, height int, color uint32)
	DrawRect(x, y, width, height int, color uint32)
	PrintAt(x, y int, s string, fg, bg uint32)
	DrawBMP(x, y int, bmp []byte)
	PutChar(c byte, fg, bg uint32)
	SetCursor(x, y int)
	GetCursor() (int, int)
}

// Mouse is the PS/2 mouse surface. Handler is the IRQ-time packet
// assembly; the other methods expose the last-reported values plus
// bookkeeping needed by syscalls 28-30, 32, 34, 35.
type Mouse interface {
	Init() bool
	Handler()
	X() int
	Y() int
	Buttons() uint8
	IRQTotal() uint32
	DrainBuffer()
	PollOnce() bool
}
