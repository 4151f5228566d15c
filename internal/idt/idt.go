// Package idt builds the 256-entry interrupt descriptor table (spec.md
// §4.5), grounded on original_source/managers/interrupt/idt.c's
// idt_set_entry/idt_install_exception_handlers. Exception vectors 0-19
// use trap gates so a nested exception doesn't itself disable interrupts;
// IRQ vectors use interrupt gates so the CPU masks interrupts on entry;
// the syscall vector (0x80) is a DPL=3 trap gate so ring-3 code may
// execute INT 0x80 at all — the C comment calling this "critical" is kept
// as the reasoning because getting it wrong is a standard bring-up bug.
package idt

import "maahios/internal/bitfield"

const (
	EntryCount = 256

	SyscallVector = 0x80
	TimerVector   = 0x20
	MouseVector   = 0x2C

	// Gate types, OR'd with Present (0x80) and DPL<<5.
	gateTypeTrap      = 0x0F
	gateTypeInterrupt = 0x0E

	present = 0x80
)

// GateKind selects trap-vs-interrupt semantics for an entry.
type GateKind int

const (
	TrapGate GateKind = iota
	InterruptGate
)

// entryFields mirrors the packed hardware IDT descriptor layout.
type entryFields struct {
	OffsetLow  uint16 `bitfield:",16"`
	Selector   uint16 `bitfield:",16"`
	Zero       uint8  `bitfield:",8"`
	TypeAttr   uint8  `bitfield:",8"`
	OffsetHigh uint16 `bitfield:",16"`
}

const entrySize = 8

// Entry is one packed 8-byte IDT descriptor.
type Entry [entrySize]byte

func typeAttr(kind GateKind, dpl uint8) uint8 {
	t := uint8(gateTypeInterrupt)
	if kind == TrapGate {
		t = gateTypeTrap
	}
	return present | (dpl&0x3)<<5 | t
}

func packEntry(handler uint32, selector uint16, attr uint8) Entry {
	f := entryFields{
		OffsetLow:  uint16(handler & 0xFFFF),
		Selector:   selector,
		Zero:       0,
		TypeAttr:   attr,
		OffsetHigh: uint16((handler >> 16) & 0xFFFF),
	}
	packed, err := bitfield.Pack(&f, &bitfield.Config{NumBits: entrySize * 8})
	if err != nil {
		panic("idt: descriptor packing: " + err.Error())
	}
	var e Entry
	for i := 0; i < entrySize; i++ {
		e[i] = byte(packed >> (8 * i))
	}
	return e
}

// Table is the 256-entry IDT.
type Table struct {
	Entries [EntryCount]Entry
}

// New returns an all-zero table; SetGate fills in individual vectors.
func New() *Table {
	return &Table{}
}

// SetGate installs handler at vector, running in the code segment named by
// selector (conventionally the kernel code selector), as the given gate
// kind at the given DPL.
func (t *Table) SetGate(vector int, handler uint32, selector uint16, kind GateKind, dpl uint8) {
	t.Entries[vector] = packEntry(handler, selector, typeAttr(kind, dpl))
}

// InstallExceptionGates wires vectors 0-19 as ring-0 trap gates dispatching
// to handlers[i] (typically the uniform assembly prologue stubs), one
// entry address per exception vector.
func (t *Table) InstallExceptionGates(selector uint16, handlers [20]uint32) {
	for v, h := range handlers {
		t.SetGate(v, h, selector, TrapGate, 0)
	}
}

// InstallSyscallGate wires the software-interrupt vector as a DPL=3 trap
// gate, the only vector ring-3 code may invoke directly.
func (t *Table) InstallSyscallGate(selector uint16, handler uint32) {
	t.SetGate(SyscallVector, handler, selector, TrapGate, 3)
}

// InstallTimerGate wires the remapped timer IRQ vector as a ring-0
// interrupt gate.
func (t *Table) InstallTimerGate(selector uint16, handler uint32) {
	t.SetGate(TimerVector, handler, selector, InterruptGate, 0)
}

// InstallMouseGate wires the remapped PS/2 mouse IRQ (IRQ12, vector 0x2C)
// as a ring-0 interrupt gate.
func (t *Table) InstallMouseGate(selector uint16, handler uint32) {
	t.SetGate(MouseVector, handler, selector, InterruptGate, 0)
}
