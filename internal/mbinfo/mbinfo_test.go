package mbinfo

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maahios/internal/memview"
)

func putUint32(mem *memview.View, addr uintptr, v uint32) {
	s, err := mem.Slice(addr, 4)
	if err != nil {
		panic(err)
	}
	binary.LittleEndian.PutUint32(s, v)
}

func TestTotalMemoryBytesAddsOneMiB(t *testing.T) {
	info := Info{MemUpperKiB: 127 * 1024} // ~128 MB machine
	assert.Equal(t, uint64(128*1024*1024), info.TotalMemoryBytes())
}

func TestHighestModuleEndFallsBackToKernelEnd(t *testing.T) {
	info := Info{}
	assert.Equal(t, uintptr(0x00110000), info.HighestModuleEnd(0x00110000))
}

func TestHighestModuleEndAcrossModules(t *testing.T) {
	info := Info{Modules: []Module{
		{Start: 0x00200000, End: 0x00210000, Label: "sysman"},
		{Start: 0x00210000, End: 0x00240000, Label: "orbit"},
	}}
	assert.Equal(t, uintptr(0x00240000), info.HighestModuleEnd(0x00110000))
}

func TestModuleSize(t *testing.T) {
	m := Module{Start: 0x1000, End: 0x3000}
	assert.Equal(t, uintptr(0x2000), m.Size())
}

func TestParseMemoryOnly(t *testing.T) {
	mem := memview.NewArena(0, 0x2000)
	const infoAddr = 0x100
	putUint32(mem, infoAddr+flagsOffset, flagMemValid)
	putUint32(mem, infoAddr+memUpperOffset, 127*1024)

	info, err := Parse(mem, infoAddr)
	require.NoError(t, err)
	assert.Equal(t, uint32(127*1024), info.MemUpperKiB)
	assert.Empty(t, info.Modules)
	assert.False(t, info.Framebuffer.Present)
}

func TestParseModulesWithLabels(t *testing.T) {
	mem := memview.NewArena(0, 0x3000)
	const infoAddr = 0x100
	const modsAddr = 0x200
	const cmd0Addr = 0x800
	const cmd1Addr = 0x900

	putUint32(mem, infoAddr+flagsOffset, flagModsValid)
	putUint32(mem, infoAddr+modsCountOffset, 2)
	putUint32(mem, infoAddr+modsAddrOffset, modsAddr)

	putUint32(mem, modsAddr+0*moduleEntrySize+moduleStartOffset, 0x00200000)
	putUint32(mem, modsAddr+0*moduleEntrySize+moduleEndOffset, 0x00210000)
	putUint32(mem, modsAddr+0*moduleEntrySize+moduleCmdOffset, cmd0Addr)

	putUint32(mem, modsAddr+1*moduleEntrySize+moduleStartOffset, 0x00210000)
	putUint32(mem, modsAddr+1*moduleEntrySize+moduleEndOffset, 0x00240000)
	putUint32(mem, modsAddr+1*moduleEntrySize+moduleCmdOffset, cmd1Addr)

	sysman, err := mem.Slice(cmd0Addr, 8)
	require.NoError(t, err)
	copy(sysman, "sysman\x00")
	orbit, err := mem.Slice(cmd1Addr, 6)
	require.NoError(t, err)
	copy(orbit, "orbit\x00")

	info, err := Parse(mem, infoAddr)
	require.NoError(t, err)
	require.Len(t, info.Modules, 2)
	assert.Equal(t, Module{Start: 0x00200000, End: 0x00210000, Label: "sysman"}, info.Modules[0])
	assert.Equal(t, Module{Start: 0x00210000, End: 0x00240000, Label: "orbit"}, info.Modules[1])
}

func TestParseFramebuffer(t *testing.T) {
	mem := memview.NewArena(0, 0x2000)
	const infoAddr = 0x100
	putUint32(mem, infoAddr+flagsOffset, flagFBValid)
	putUint32(mem, infoAddr+fbAddrOffset, 0xE0000000)
	putUint32(mem, infoAddr+fbPitchOffset, 1024*4)
	putUint32(mem, infoAddr+fbWidthOffset, 1024)
	putUint32(mem, infoAddr+fbHeightOffset, 768)
	putUint32(mem, infoAddr+fbBPPOffset, 32)

	info, err := Parse(mem, infoAddr)
	require.NoError(t, err)
	assert.Equal(t, Framebuffer{
		Present: true,
		Addr:    0xE0000000,
		Width:   1024,
		Height:  768,
		Pitch:   1024 * 4,
		BPP:     32,
	}, info.Framebuffer)
}

func TestParseNoFlagsSetYieldsEmptyInfo(t *testing.T) {
	mem := memview.NewArena(0, 0x1000)
	const infoAddr = 0x100
	putUint32(mem, infoAddr+flagsOffset, 0)

	info, err := Parse(mem, infoAddr)
	require.NoError(t, err)
	assert.Zero(t, info.MemUpperKiB)
	assert.Empty(t, info.Modules)
	assert.False(t, info.Framebuffer.Present)
}

func TestParseOutOfBoundsInfoAddrErrors(t *testing.T) {
	mem := memview.NewArena(0, 0x100)
	_, err := Parse(mem, 0x900)
	assert.Error(t, err)
}
