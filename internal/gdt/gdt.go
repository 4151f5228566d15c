// Package gdt builds the six flat-model segment descriptors and the TSS
// (spec.md §4.4), grounded on original_source/managers/gdt/gdt.c's
// gdt_set_entry/gdt_set_tss_entry/gdt_init. Descriptor packing uses
// internal/bitfield instead of C bitfield struct layout; the lgdt/ltr
// instructions that load these bytes into the CPU live in
// internal/arch/x86 (LoadGDT), which is the only place that may execute them.
package gdt

import "maahios/internal/bitfield"

const (
	entryCount = 6
	entrySize  = 8 // bytes per packed descriptor

	// Selector values, each index*8 with the RPL encoded in the low bits
	// by the caller (ring-3 selectors OR in 3).
	NullSelector       = 0x00
	KernelCodeSelector = 0x08
	KernelDataSelector = 0x10
	UserCodeSelector   = 0x18 | 3
	UserDataSelector   = 0x20 | 3
	TSSSelector        = 0x28

	kernelCodeAccess = 0x9A
	kernelDataAccess = 0x92
	userCodeAccess   = 0xFA
	userDataAccess   = 0xF3
	tssAccess        = 0x89

	flatGranularity = 0xCF // 4K granularity, 32-bit operand size, limit bits 16-19 = 0xF
	tssGranularity  = 0x40 // no scaling, 32-bit available TSS

	flatLimit = 0xFFFFFFFF
)

// entryFields mirrors the byte layout of a hardware GDT descriptor,
// low-field-first per internal/bitfield's packing order.
type entryFields struct {
	LimitLow    uint16 `bitfield:",16"`
	BaseLow     uint16 `bitfield:",16"`
	BaseMid     uint8  `bitfield:",8"`
	Access      uint8  `bitfield:",8"`
	Granularity uint8  `bitfield:",8"`
	BaseHigh    uint8  `bitfield:",8"`
}

// Entry is one packed 8-byte descriptor.
type Entry [entrySize]byte

func packEntry(base, limit uint32, access, granularity uint8) Entry {
	f := entryFields{
		LimitLow:    uint16(limit & 0xFFFF),
		BaseLow:     uint16(base & 0xFFFF),
		BaseMid:     uint8((base >> 16) & 0xFF),
		Access:      access,
		Granularity: (uint8((limit>>16)&0x0F) | (granularity & 0xF0)),
		BaseHigh:    uint8((base >> 24) & 0xFF),
	}
	packed, err := bitfield.Pack(&f, &bitfield.Config{NumBits: entrySize * 8})
	if err != nil {
		panic("gdt: descriptor packing: " + err.Error())
	}
	var e Entry
	for i := 0; i < entrySize; i++ {
		e[i] = byte(packed >> (8 * i))
	}
	return e
}

// TSS mirrors the 104-byte Task State Segment original_source/gdt.c
// defines; field order matches so a future assembly loader can treat it
// as the packed hardware struct directly.
type TSS struct {
	PrevTSS  uint32
	ESP0     uint32
	SS0      uint32
	ESP1     uint32
	SS1      uint32
	ESP2     uint32
	SS2      uint32
	CR3      uint32
	EIP      uint32
	EFLAGS   uint32
	EAX      uint32
	ECX      uint32
	EDX      uint32
	EBX      uint32
	ESP      uint32
	EBP      uint32
	ESI      uint32
	EDI      uint32
	ES       uint32
	CS       uint32
	SS       uint32
	DS       uint32
	FS       uint32
	GS       uint32
	LDT      uint32
	Trap     uint16
	IOMapBase uint16
}

// Table holds the six descriptors and the TSS they describe. Build
// constructs it in memory; internal/arch/x86's LoadGDT is what actually
// points the CPU at it.
type Table struct {
	Entries [entryCount]Entry
	TSS     TSS
}

// Build constructs the flat-model GDT: null, kernel code/data, user
// code/data, and a TSS descriptor pointing at tssBase, plus the TSS value
// itself with its ring-0 stack fields set from ring0Stack.
func Build(tssBase uintptr, ring0Stack uint32) *Table {
	t := &Table{}
	t.Entries[0] = packEntry(0, 0, 0, 0)
	t.Entries[1] = packEntry(0, flatLimit, kernelCodeAccess, flatGranularity)
	t.Entries[2] = packEntry(0, flatLimit, kernelDataAccess, flatGranularity)
	t.Entries[3] = packEntry(0, flatLimit, userCodeAccess, flatGranularity)
	t.Entries[4] = packEntry(0, flatLimit, userDataAccess, flatGranularity)

	t.TSS = TSS{
		SS0:       KernelDataSelector,
		ESP0:      ring0Stack,
		IOMapBase: tssSize,
	}
	t.Entries[5] = packEntry(uint32(tssBase), tssSize-1, tssAccess, tssGranularity)
	return t
}

const tssSize = 104

// SetKernelStack rewrites the TSS's ring-0 stack top. cmd/kernel calls it
// with a dequeued process's kernel stack top just before entering ring 3
// for it, from the timer handler and after a successful yield.
func (t *Table) SetKernelStack(esp uint32) {
	t.TSS.ESP0 = esp
}
