// Package mbinfo parses the bootloader handoff structure (spec.md §3
// "Machine-description handoff" / §6.1): usable memory above 1 MiB, the
// loaded module table, and optional framebuffer geometry. Grounded on
// original_source/managers/memory/pmm.h's multiboot_info_t/
// multiboot_module_t, generalized from the raw multiboot wire struct to a
// plain Go value the rest of the kernel consumes without touching a
// pointer — memview is the only package that ever reads the real
// multiboot structure out of physical memory.
package mbinfo

import "maahios/internal/memview"

// Multiboot1 info-structure field offsets and flag bits, grounded on
// original_source/managers/memory/pmm.h's multiboot_info_t.
const (
	flagsOffset       = 0
	memLowerOffset    = 4
	memUpperOffset    = 8
	modsCountOffset   = 20
	modsAddrOffset    = 24
	fbAddrOffset      = 88
	fbPitchOffset     = 96
	fbWidthOffset     = 100
	fbHeightOffset    = 104
	fbBPPOffset       = 108

	flagMemValid    = 1 << 0
	flagModsValid   = 1 << 3
	flagFBValid     = 1 << 12

	moduleEntrySize   = 16
	moduleStartOffset = 0
	moduleEndOffset   = 4
	moduleCmdOffset   = 8

	maxLabelLen = 64
)

// Parse reads the multiboot1 info structure at infoAddr out of mem and
// returns the plain Go value the rest of the kernel consumes. mem is the
// only place a raw multiboot pointer is ever dereferenced — everywhere else
// gets an Info.
func Parse(mem *memview.View, infoAddr uint32) (Info, error) {
	var info Info

	flags, err := mem.Uint32(uintptr(infoAddr) + flagsOffset)
	if err != nil {
		return Info{}, err
	}

	if flags&flagMemValid != 0 {
		upper, err := mem.Uint32(uintptr(infoAddr) + memUpperOffset)
		if err != nil {
			return Info{}, err
		}
		info.MemUpperKiB = upper
	}

	if flags&flagModsValid != 0 {
		count, err := mem.Uint32(uintptr(infoAddr) + modsCountOffset)
		if err != nil {
			return Info{}, err
		}
		addr, err := mem.Uint32(uintptr(infoAddr) + modsAddrOffset)
		if err != nil {
			return Info{}, err
		}
		for i := uint32(0); i < count; i++ {
			base := uintptr(addr) + uintptr(i)*moduleEntrySize
			start, err := mem.Uint32(base + moduleStartOffset)
			if err != nil {
				return Info{}, err
			}
			end, err := mem.Uint32(base + moduleEndOffset)
			if err != nil {
				return Info{}, err
			}
			cmdAddr, err := mem.Uint32(base + moduleCmdOffset)
			if err != nil {
				return Info{}, err
			}
			label := ""
			if cmdAddr != 0 {
				label, _ = mem.CString(uintptr(cmdAddr), maxLabelLen)
			}
			info.Modules = append(info.Modules, Module{
				Start: uintptr(start),
				End:   uintptr(end),
				Label: label,
			})
		}
	}

	if flags&flagFBValid != 0 {
		addr, err := mem.Uint32(uintptr(infoAddr) + fbAddrOffset)
		if err != nil {
			return Info{}, err
		}
		pitch, err := mem.Uint32(uintptr(infoAddr) + fbPitchOffset)
		if err != nil {
			return Info{}, err
		}
		width, err := mem.Uint32(uintptr(infoAddr) + fbWidthOffset)
		if err != nil {
			return Info{}, err
		}
		height, err := mem.Uint32(uintptr(infoAddr) + fbHeightOffset)
		if err != nil {
			return Info{}, err
		}
		bppWord, err := mem.Uint32(uintptr(infoAddr) + fbBPPOffset)
		if err != nil {
			return Info{}, err
		}
		info.Framebuffer = Framebuffer{
			Present: true,
			Addr:    uintptr(addr),
			Width:   int(width),
			Height:  int(height),
			Pitch:   int(pitch),
			BPP:     int(bppWord & 0xFF),
		}
	}

	return info, nil
}

// Module is one flat binary blob the bootloader loaded: a contiguous
// physical range [Start, End) with an optional human-readable label.
type Module struct {
	Start uintptr
	End   uintptr
	Label string
}

// Size returns the module's length in bytes.
func (m Module) Size() uintptr { return m.End - m.Start }

// Framebuffer geometry, present only when the bootloader reports a
// linear framebuffer mode.
type Framebuffer struct {
	Present bool
	Addr    uintptr
	Width   int
	Height  int
	Pitch   int
	BPP     int
}

// Info is the parsed, read-only machine description handed to bringup.
type Info struct {
	// MemUpperKiB is usable memory above 1 MiB, in KiB, as reported by the
	// bootloader.
	MemUpperKiB uint32
	Modules     []Module
	Framebuffer Framebuffer
}

// TotalMemoryBytes returns the total addressable RAM the bootloader
// reported: 1 MiB (always present and reserved) plus MemUpperKiB.
func (i Info) TotalMemoryBytes() uint64 {
	const oneMiB = 0x100000
	return oneMiB + uint64(i.MemUpperKiB)*1024
}

// HighestModuleEnd returns the highest End address across all modules, or
// kernelEnd if there are no modules or none extends past it — mirroring
// pmm_init's search for where to place the frame bitmap.
func (i Info) HighestModuleEnd(kernelEnd uintptr) uintptr {
	highest := kernelEnd
	for _, m := range i.Modules {
		if m.End > highest {
			highest = m.End
		}
	}
	return highest
}
