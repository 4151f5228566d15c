//go:build 386

// Package x86 is the one package allowed to touch real hardware state: port
// I/O, the GDT/IDT/TSS registers, CR2/CR3, and the ring-0→ring-3 IRET
// transition. Every other package in this module expresses its logic in
// terms of plain Go values and interfaces (drivers.Ports, paging.Memory,
// intlock.Controller, ...); this package is where those interfaces meet
// actual CPU instructions, via hand-written Plan 9 assembly in
// primitives_386.s. Grounded on the shape of
// original_source/managers/irq/irq_manager.c's inline-asm inb/outb/cli/sti
// and managers/ring3/ring3.c's ring3_switch, translated from inline
// assembly to Go's cross-platform-but-still-real assembler.
package x86

// Port I/O. Each pair is a single IN/OUT instruction; no Go code runs
// between reading the port and returning.
func inb(port uint16) uint8
func outb(port uint16, val uint8)
func inw(port uint16) uint16
func outw(port uint16, val uint16)
func inl(port uint16) uint32
func outl(port uint16, val uint32)

// cli/sti back intlock.Controller.
func cli()
func sti()
func interruptsEnabled() bool

// lgdt/lidt load the GDTR/IDTR from a 6-byte pseudo-descriptor (2-byte
// limit, 4-byte base) at ptr. ltr loads the task register with selector.
func lgdt(ptr uint32)
func lidt(ptr uint32)
func ltr(selector uint16)

// loadPageDirectory writes CR3 and readCR0/readCR2/readCR3 read back CR0
// (protection/paging mode flags), CR2 (the faulting address on a page
// fault), and CR3.
func loadPageDirectory(base uint32)
func readCR0() uint32
func readCR2() uint32
func readCR3() uint32

// haltLoop clears interrupts and spins on HLT forever. Used for both
// deliberate halts (bring-up failure, kernel-mode fault) and as the
// contract of internal/exception.HaltKernel.
func haltLoop()

// enterRing3 points the stack at the five-word IRET frame at framePtr
// (EIP, CS, EFLAGS, ESP, SS from low address to high, as EnterRing3 lays
// it out) and executes IRET. It never returns.
func enterRing3(framePtr uint32)
