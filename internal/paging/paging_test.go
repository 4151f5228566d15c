package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maahios/internal/mbinfo"
	"maahios/internal/memview"
	"maahios/internal/pmm"
)

func newTestSetup(t *testing.T) (*Directory, *pmm.Allocator) {
	t.Helper()
	info := mbinfo.Info{MemUpperKiB: 3072} // total memory 4 MiB
	totalPages := uint32((info.TotalMemoryBytes() - 0x00100000) / pmm.PageSize)
	bitmapView := memview.NewArena(0x00350000, uintptr(pmm.BitmapSizeBytes(totalPages)))
	alloc := pmm.Init(info, 0x00100000, 0x00108000, 0x00350000, bitmapView)

	mem := memview.NewArena(0, 0x00400000)
	dirBase := alloc.Alloc()
	require.NotZero(t, dirBase)

	dir, err := NewDirectory(dirBase, mem, alloc)
	require.NoError(t, err)
	return dir, alloc
}

func TestMapPageAllocatesTableOnFirstUse(t *testing.T) {
	dir, _ := newTestSetup(t)

	err := dir.MapPage(0x00400000, 0x00200000, FlagPresent|FlagWrite)
	require.NoError(t, err)

	phys, present, err := dir.Translate(0x00400000)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, uint32(0x00200000), phys)
}

func TestMapPageReusesExistingTable(t *testing.T) {
	dir, _ := newTestSetup(t)

	require.NoError(t, dir.MapPage(0x00400000, 0x00200000, FlagPresent))
	require.NoError(t, dir.MapPage(0x00401000, 0x00201000, FlagPresent))

	p1, _, _ := dir.Translate(0x00400000)
	p2, _, _ := dir.Translate(0x00401000)
	assert.Equal(t, uint32(0x00200000), p1)
	assert.Equal(t, uint32(0x00201000), p2)
}

func TestTranslateUnmappedAddressIsNotPresent(t *testing.T) {
	dir, _ := newTestSetup(t)

	_, present, err := dir.Translate(0x01000000)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestIdentityMapRegionMapsEveryPage(t *testing.T) {
	dir, _ := newTestSetup(t)

	err := dir.IdentityMapRegion(0x00200000, 0x00203000, FlagPresent|FlagWrite|FlagUser)
	require.NoError(t, err)

	for _, addr := range []uint32{0x00200000, 0x00201000, 0x00202000} {
		phys, present, err := dir.Translate(addr)
		require.NoError(t, err)
		assert.True(t, present)
		assert.Equal(t, addr, phys)
	}
}
