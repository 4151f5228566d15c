// Package pmm is the C7 physical frame allocator: a bitmap-backed,
// page-granular allocator over usable RAM reported by the bootloader
// (spec.md §4.7). Grounded directly on
// original_source/managers/memory/pmm.c's bitmap_set/bitmap_clear/
// bitmap_test/pmm_alloc_page/pmm_free_page/pmm_mark_region_used, adapted
// to address the bitmap through a memview.View instead of a raw uint32
// pointer (the "Raw pointers and identity-mapping" design note) and to
// read bootloader state from an mbinfo.Info instead of the multiboot
// struct directly.
package pmm

import (
	"maahios/internal/mbinfo"
	"maahios/internal/memview"
)

const (
	PageSize = 4096

	memoryStart = 0x00100000 // 1 MiB: where usable RAM begins
)

// Allocator is the C7 frame allocator. All operations are expected to run
// with interrupts disabled (spec.md §4.7 "Shared resources"); this package
// takes no intlock.Token (internal/syscall runs its page alloc/free calls
// inside intlock.Guard.With), so it stays independent of the locking
// package and testable without it.
type Allocator struct {
	bitmap      *memview.View
	totalPages  uint32
	usedPages   uint32
	memoryStart uintptr
}

// Init places the bitmap at bitmapBase (already page-aligned and sized by
// the caller to hold one bit per page of info's usable RAM), zeroes it,
// and marks used every range that must never be handed out: the kernel
// image, every loaded module, and the bitmap's own backing pages.
func Init(info mbinfo.Info, kernelStart, kernelEnd uintptr, bitmapBase uintptr, bitmapBytes *memview.View) *Allocator {
	totalBytes := info.TotalMemoryBytes()
	totalPages := uint32((uint64(totalBytes) - uint64(memoryStart)) / PageSize)

	a := &Allocator{
		bitmap:      bitmapBytes,
		totalPages:  totalPages,
		memoryStart: memoryStart,
	}

	a.zeroBitmap()

	a.MarkRegionUsed(kernelStart, kernelEnd)
	for _, m := range info.Modules {
		a.MarkRegionUsed(m.Start, m.End)
	}
	bitmapSizeBytes := BitmapSizeBytes(totalPages)
	a.MarkRegionUsed(bitmapBase, bitmapBase+uintptr(bitmapSizeBytes))

	return a
}

// BitmapSizeBytes returns the number of bytes needed to hold one bit per
// page for totalPages pages, rounded up to a whole uint32 word like the
// original's (total_pages+31)/32 word count.
func BitmapSizeBytes(totalPages uint32) uint32 {
	words := (totalPages + 31) / 32
	return words * 4
}

func (a *Allocator) zeroBitmap() {
	_ = a.bitmap.Zero(a.bitmap.Base(), a.bitmap.Size())
}

func (a *Allocator) addrToPage(addr uintptr) uint32 {
	return uint32((addr - a.memoryStart) / PageSize)
}

func (a *Allocator) pageToAddr(page uint32) uintptr {
	return a.memoryStart + uintptr(page)*PageSize
}

func (a *Allocator) wordAddr(page uint32) uintptr {
	return a.bitmap.Base() + uintptr(page/32)*4
}

func (a *Allocator) testPage(page uint32) bool {
	word, _ := a.bitmap.Uint32(a.wordAddr(page))
	return word&(1<<(page%32)) != 0
}

func (a *Allocator) setPage(page uint32) {
	word, _ := a.bitmap.Uint32(a.wordAddr(page))
	_ = a.bitmap.SetUint32(a.wordAddr(page), word|1<<(page%32))
}

func (a *Allocator) clearPage(page uint32) {
	word, _ := a.bitmap.Uint32(a.wordAddr(page))
	_ = a.bitmap.SetUint32(a.wordAddr(page), word&^(1<<(page%32)))
}

// MarkRegionUsed marks every page overlapping [start, end) as used,
// page-aligning the range outward first.
func (a *Allocator) MarkRegionUsed(start, end uintptr) {
	startPage := a.addrToPage(start &^ (PageSize - 1))
	endPage := a.addrToPage((end + PageSize - 1) &^ (PageSize - 1))

	for page := startPage; page < endPage && page < a.totalPages; page++ {
		if !a.testPage(page) {
			a.setPage(page)
			a.usedPages++
		}
	}
}

// Alloc returns the physical address of a free page and marks it used, or
// 0 if no page is free.
func (a *Allocator) Alloc() uintptr {
	for page := uint32(0); page < a.totalPages; page++ {
		if !a.testPage(page) {
			a.setPage(page)
			a.usedPages++
			return a.pageToAddr(page)
		}
	}
	return 0
}

// Free marks the page containing addr as free. Freeing an address outside
// the managed range, or a page that was already free, is a no-op.
func (a *Allocator) Free(addr uintptr) {
	page := a.addrToPage(addr)
	if page >= a.totalPages {
		return
	}
	if a.testPage(page) {
		a.clearPage(page)
		a.usedPages--
	}
}

// Stats returns (free pages, total pages).
func (a *Allocator) Stats() (free, total uint32) {
	return a.totalPages - a.usedPages, a.totalPages
}
