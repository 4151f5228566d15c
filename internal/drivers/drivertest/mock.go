// Package drivertest provides in-memory stand-ins for the driver traits in
// internal/drivers, used by every host-side test that needs a Ports or
// Console without real hardware underneath it (spec.md §9).
package drivertest

import "maahios/internal/drivers"

// Ports is a plain in-memory register file: each port is a byte/word/dword
// cell a test can pre-seed and inspect after the code under test runs.
type Ports struct {
	b8  map[uint16]uint8
	b16 map[uint16]uint16
	b32 map[uint16]uint32

	// Writes records every Out* call in order, for assertions that care
	// about write sequencing (e.g. the PIC's ICW1-ICW4 sequence).
	Writes []PortWrite
}

// PortWrite records a single write for sequencing assertions.
type PortWrite struct {
	Port  uint16
	Width int // 8, 16, or 32
	Value uint32
}

func NewPorts() *Ports {
	return &Ports{
		b8:  make(map[uint16]uint8),
		b16: make(map[uint16]uint16),
		b32: make(map[uint16]uint32),
	}
}

var _ drivers.Ports = (*Ports)(nil)

func (p *Ports) In8(port uint16) uint8 { return p.b8[port] }
func (p *Ports) Out8(port uint16, val uint8) {
	p.b8[port] = val
	p.Writes = append(p.Writes, PortWrite{Port: port, Width: 8, Value: uint32(val)})
}
func (p *Ports) In16(port uint16) uint16 { return p.b16[port] }
func (p *Ports) Out16(port uint16, val uint16) {
	p.b16[port] = val
	p.Writes = append(p.Writes, PortWrite{Port: port, Width: 16, Value: uint32(val)})
}
func (p *Ports) In32(port uint16) uint32 { return p.b32[port] }
func (p *Ports) Out32(port uint16, val uint32) {
	p.b32[port] = val
	p.Writes = append(p.Writes, PortWrite{Port: port, Width: 32, Value: val})
}

// Seed8 pre-loads a byte port, e.g. to simulate a PIC mask register already
// holding a value before the code under test reads it.
func (p *Ports) Seed8(port uint16, val uint8) { p.b8[port] = val }

// Console is a buffer-backed drivers.Console for tests and for the serial
// klog backend's test double.
type Console struct {
	Buf    []byte
	FG, BG uint8
	CurX   int
	CurY   int
	Cleared int
}

var _ drivers.Console = (*Console)(nil)

func NewConsole() *Console { return &Console{} }

func (c *Console) Clear()                 { c.Buf = c.Buf[:0]; c.Cleared++ }
func (c *Console) PutChar(ch byte)        { c.Buf = append(c.Buf, ch) }
func (c *Console) PutString(s string)     { c.Buf = append(c.Buf, s...) }
func (c *Console) PutInt(n int32) {
	c.Buf = append(c.Buf, []byte(itoa(n))...)
}
func (c *Console) SetColor(fg, bg uint8)  { c.FG, c.BG = fg, bg }
func (c *Console) SetCursor(x, y int)     { c.CurX, c.CurY = x, y }
func (c *Console) DrawRect(x, y, w, h int, color uint8) {}
func (c *Console) DrawBox(x, y, w, h int)               {}

func (c *Console) String() string { return string(c.Buf) }

func itoa(n int32) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
