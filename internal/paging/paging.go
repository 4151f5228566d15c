// Package paging builds the two-level x86 page directory/table structure
// and identity-maps a prefix of physical memory with the USER flag set
// (spec.md §4.8). Grounded directly on
// original_source/managers/memory/paging.c's paging_map_page/
// identity_map_region, adapted to read and write directory/table entries
// through a memview.View instead of a raw uint32 pointer, and to obtain
// new page-table frames from a pmm.Allocator passed in rather than a
// global.
package paging

import (
	"fmt"

	"maahios/internal/pmm"
)

const (
	entriesPerTable = 1024
	pageSize        = 4096

	FlagPresent = 0x1
	FlagWrite   = 0x2
	FlagUser    = 0x4

	addressMask = 0xFFFFF000
)

// Memory is the raw read/write surface paging needs over physical
// memory — the directory itself, every page table it creates, and
// whatever range gets identity-mapped. In production this is the single
// identity-map view constructed in internal/arch/x86; in tests it's a
// memview.View over a plain Go arena standing in for RAM.
type Memory interface {
	Uint32(addr uintptr) (uint32, error)
	SetUint32(addr uintptr, val uint32) error
	Zero(addr uintptr, length uintptr) error
}

// Directory wraps a page directory at a fixed physical base address.
type Directory struct {
	mem   Memory
	base  uintptr
	alloc *pmm.Allocator
}

// NewDirectory returns a Directory for the page directory physically
// located at base, zeroing it first. alloc supplies fresh physical pages
// when a new page table is needed.
func NewDirectory(base uintptr, mem Memory, alloc *pmm.Allocator) (*Directory, error) {
	d := &Directory{mem: mem, base: base, alloc: alloc}
	if err := mem.Zero(base, entriesPerTable*4); err != nil {
		return nil, fmt.Errorf("paging: clearing directory: %w", err)
	}
	return d, nil
}

// Base returns the directory's physical base address, for loading into
// CR3.
func (d *Directory) Base() uintptr { return d.base }

func dirIndex(virt uint32) uint32   { return virt >> 22 }
func tableIndex(virt uint32) uint32 { return (virt >> 12) & 0x3FF }

// MapPage maps virt to phys with the given flags, allocating a new page
// table from alloc on first use of that directory entry.
func (d *Directory) MapPage(virt, phys uint32, flags uint8) error {
	dirIdx := dirIndex(virt)
	dirEntryAddr := d.base + uintptr(dirIdx)*4

	dirEntry, err := d.mem.Uint32(dirEntryAddr)
	if err != nil {
		return fmt.Errorf("paging: reading directory entry %d: %w", dirIdx, err)
	}

	var tableBase uintptr
	if dirEntry&FlagPresent == 0 {
		tableBase = d.alloc.Alloc()
		if tableBase == 0 {
			return fmt.Errorf("paging: out of physical frames allocating page table for dir index %d", dirIdx)
		}
		if err := d.mem.Zero(tableBase, entriesPerTable*4); err != nil {
			return fmt.Errorf("paging: clearing new page table: %w", err)
		}
		entry := uint32(tableBase) | FlagPresent | FlagWrite | FlagUser
		if err := d.mem.SetUint32(dirEntryAddr, entry); err != nil {
			return fmt.Errorf("paging: installing directory entry %d: %w", dirIdx, err)
		}
	} else {
		tableBase = uintptr(dirEntry & addressMask)
	}

	tblIdx := tableIndex(virt)
	tableEntryAddr := tableBase + uintptr(tblIdx)*4
	entry := (phys & addressMask) | uint32(flags)
	if err := d.mem.SetUint32(tableEntryAddr, entry); err != nil {
		return fmt.Errorf("paging: writing page table entry %d: %w", tblIdx, err)
	}
	return nil
}

// IdentityMapRegion maps every 4 KiB page in [start, end) to itself with
// flags, page-aligning the range outward first.
func (d *Directory) IdentityMapRegion(start, end uint32, flags uint8) error {
	start &= addressMask
	end = (end + pageSize - 1) &^ (pageSize - 1)

	for addr := start; addr < end; addr += pageSize {
		if err := d.MapPage(addr, addr, flags); err != nil {
			return err
		}
	}
	return nil
}

// Translate reads back the physical address virt currently maps to, and
// whether the mapping is present — used by tests and by the page-fault
// diagnostic path.
func (d *Directory) Translate(virt uint32) (phys uint32, present bool, err error) {
	dirIdx := dirIndex(virt)
	dirEntryAddr := d.base + uintptr(dirIdx)*4
	dirEntry, err := d.mem.Uint32(dirEntryAddr)
	if err != nil {
		return 0, false, err
	}
	if dirEntry&FlagPresent == 0 {
		return 0, false, nil
	}
	tableBase := uintptr(dirEntry & addressMask)
	tblIdx := tableIndex(virt)
	entry, err := d.mem.Uint32(tableBase + uintptr(tblIdx)*4)
	if err != nil {
		return 0, false, err
	}
	if entry&FlagPresent == 0 {
		return 0, false, nil
	}
	return entry & addressMask, true, nil
}
