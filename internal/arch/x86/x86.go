//go:build 386

package x86

import (
	"unsafe"

	"maahios/internal/gdt"
	"maahios/internal/idt"
	"maahios/internal/memview"
	"maahios/internal/ring3"
)

// Ports is the real drivers.Ports implementation: every method is a single
// IN/OUT instruction via primitives_386.s.
type Ports struct{}

func (Ports) In8(port uint16) uint8    { return inb(port) }
func (Ports) Out8(port uint16, v uint8) { outb(port, v) }
func (Ports) In16(port uint16) uint16   { return inw(port) }
func (Ports) Out16(port uint16, v uint16) { outw(port, v) }
func (Ports) In32(port uint16) uint32   { return inl(port) }
func (Ports) Out32(port uint16, v uint32) { outl(port, v) }

// InterruptController is the real intlock.Controller: cli/sti plus an
// EFLAGS.IF read, instead of the bookkeeping bool the host-side fake
// controller in every package's tests uses.
type InterruptController struct{}

func (InterruptController) Disable()      { cli() }
func (InterruptController) Enable()       { sti() }
func (InterruptController) Enabled() bool { return interruptsEnabled() }

// IdentityMemory wraps the identity-mapped physical address space as a
// memview.View backed by a real unsafe.Slice, the only place in the module
// that constructs one: everywhere else, paging/pmm/kheap/syscall talk to
// memview.View or the narrower interfaces it satisfies.
func IdentityMemory(base uintptr, size uintptr) *memview.View {
	ptr := unsafe.Pointer(base)
	return memview.New(base, unsafe.Slice((*byte)(ptr), size))
}

// pseudoDescriptor is the 6-byte LGDT/LIDT operand: a 16-bit limit followed
// by a 32-bit linear base address.
type pseudoDescriptor struct {
	limit uint16
	base  uint32
}

// LoadGDT points GDTR at table and loads the task register from its TSS
// descriptor. It does not reload CS or the data segment registers: they
// keep whatever selectors were loaded before the call.
func LoadGDT(table *gdt.Table) {
	desc := pseudoDescriptor{
		limit: uint16(len(table.Entries)*8 - 1),
		base:  uint32(uintptr(unsafe.Pointer(&table.Entries[0]))),
	}
	lgdt(uint32(uintptr(unsafe.Pointer(&desc))))
	ltr(gdt.TSSSelector)
}

// LoadIDT points IDTR at table.
func LoadIDT(table *idt.Table) {
	desc := pseudoDescriptor{
		limit: uint16(len(table.Entries)*8 - 1),
		base:  uint32(uintptr(unsafe.Pointer(&table.Entries[0]))),
	}
	lidt(uint32(uintptr(unsafe.Pointer(&desc))))
}

// LoadPageDirectory writes CR3, switching the active translation.
func LoadPageDirectory(base uintptr) {
	loadPageDirectory(uint32(base))
}

// ProtectionFlags reads CR0, for the kernel-fault diagnostic panel.
func ProtectionFlags() uint32 { return readCR0() }

// FaultingAddress reads CR2, valid only while handling a page fault.
func FaultingAddress() uint32 { return readCR2() }

// ActivePageDirectory reads CR3.
func ActivePageDirectory() uint32 { return readCR3() }

// HaltForever disables interrupts and spins on HLT. Never returns — the
// terminal action for both bring-up failure and internal/exception's
// HaltKernel outcome.
func HaltForever() {
	haltLoop()
}

// EnterRing3 builds the in-memory IRET frame from f and transfers control to
// it. Never returns.
func EnterRing3(f ring3.Frame) {
	type iretFrame struct {
		eip    uint32
		cs     uint32
		eflags uint32
		esp    uint32
		ss     uint32
	}
	frame := iretFrame{
		eip:    f.EntryPoint,
		cs:     uint32(f.UserCodeSelector),
		eflags: f.EFlags,
		esp:    f.UserStackTop,
		ss:     uint32(f.UserStackSelector),
	}
	enterRing3(uint32(uintptr(unsafe.Pointer(&frame))))
}
