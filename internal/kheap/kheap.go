// Package kheap is the C9 kernel heap: a buddy allocator over
// kernel-mapped virtual space, growing on demand by asking the frame
// allocator for fresh pages and mapping them at the next kernel-heap
// virtual address (spec.md §4.9). original_source has no equivalent —
// the original kernel never implements a real kmalloc, only the
// vmm_alloc_page passthrough in paging.c — so this package's strategy is
// the implementation choice spec.md §4.9 explicitly leaves to the
// rewrite: "an implementation MUST document which strategy it uses;
// tests depend only on alloc returning distinct, aligned, accessible,
// sufficiently-sized regions." The strategy here is a chain of
// cloudwego-gopkg/unsafex/malloc.BuddyAllocator arenas, one per growth
// step, each backed by a freshly page-mapped virtual range.
package kheap

import (
	"fmt"
	"unsafe"

	"github.com/cloudwego/gopkg/unsafex/malloc"

	"maahios/internal/pmm"
)

// Memory is the slice-over-virtual-address surface the heap grows into.
// internal/memview.View satisfies it.
type Memory interface {
	Slice(addr uintptr, length uintptr) ([]byte, error)
	Zero(addr uintptr, length uintptr) error
}

// PageSource supplies fresh physical frames.
type PageSource interface {
	Alloc() uintptr
}

// Mapper installs a virtual-to-physical mapping.
type Mapper interface {
	MapPage(virt, phys uint32, flags uint8) error
}

const (
	// growBytes is the size of each growth step; must be a multiple of
	// malloc.DefaultMaxBlockSize per BuddyAllocator's contract.
	growBytes = malloc.DefaultMaxBlockSize * 4 // 2 MiB per growth step
)

type arena struct {
	alloc *malloc.BuddyAllocator
	bytes []byte
}

// Heap is the C9 kernel heap.
type Heap struct {
	mem      Memory
	frames   PageSource
	mapper   Mapper
	nextVirt uintptr
	arenas   []arena
}

// New constructs an empty Heap that will grow starting at heapBase the
// first time Alloc is called.
func New(mem Memory, frames PageSource, mapper Mapper, heapBase uintptr) *Heap {
	return &Heap{mem: mem, frames: frames, mapper: mapper, nextVirt: heapBase}
}

// Alloc returns a distinct, page-mapped, sufficiently-sized region of at
// least size bytes, growing the heap if no existing arena has room.
func (h *Heap) Alloc(size int) ([]byte, error) {
	for i := range h.arenas {
		if b := h.arenas[i].alloc.Alloc(size); b != nil {
			return b, nil
		}
	}
	if err := h.grow(); err != nil {
		return nil, err
	}
	last := &h.arenas[len(h.arenas)-1]
	b := last.alloc.Alloc(size)
	if b == nil {
		return nil, fmt.Errorf("kheap: %d bytes exceeds max block size after growth", size)
	}
	return b, nil
}

// Free returns block to whichever arena allocated it.
func (h *Heap) Free(block []byte) error {
	if len(block) == 0 {
		return nil
	}
	for i := range h.arenas {
		if arenaContains(h.arenas[i].bytes, block) {
			h.arenas[i].alloc.Free(block)
			return nil
		}
	}
	return fmt.Errorf("kheap: block does not belong to any heap arena")
}

// grow maps growBytes of fresh physical frames at the next virtual
// address and adds a new BuddyAllocator over that range.
func (h *Heap) grow() error {
	pages := growBytes / pmm.PageSize
	for i := 0; i < pages; i++ {
		phys := h.frames.Alloc()
		if phys == 0 {
			return fmt.Errorf("kheap: out of physical frames while growing heap")
		}
		virt := h.nextVirt + uintptr(i)*pmm.PageSize
		if err := h.mapper.MapPage(uint32(virt), uint32(phys), 0x1|0x2); err != nil {
			return fmt.Errorf("kheap: mapping growth page: %w", err)
		}
	}
	if err := h.mem.Zero(h.nextVirt, growBytes); err != nil {
		return fmt.Errorf("kheap: zeroing new arena: %w", err)
	}
	bytes, err := h.mem.Slice(h.nextVirt, growBytes)
	if err != nil {
		return fmt.Errorf("kheap: slicing new arena: %w", err)
	}
	ba, err := malloc.NewBuddyAllocator(bytes)
	if err != nil {
		return fmt.Errorf("kheap: constructing arena allocator: %w", err)
	}
	h.arenas = append(h.arenas, arena{alloc: ba, bytes: bytes})
	h.nextVirt += growBytes
	return nil
}

// Available returns the total free bytes across every arena.
func (h *Heap) Available() int {
	total := 0
	for i := range h.arenas {
		total += h.arenas[i].alloc.Available()
	}
	return total
}

func arenaContains(arenaBytes, block []byte) bool {
	if len(arenaBytes) == 0 || len(block) == 0 {
		return false
	}
	start := uintptr(unsafe.Pointer(&arenaBytes[0]))
	end := start + uintptr(len(arenaBytes))
	ptr := uintptr(unsafe.Pointer(&block[0]))
	return ptr >= start && ptr < end
}
