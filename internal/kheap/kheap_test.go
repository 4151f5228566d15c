package kheap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maahios/internal/memview"
	"maahios/internal/pmm"
)

type fakeFrames struct {
	next    uintptr
	limit   int
	granted int
}

func newFakeFrames(limit int) *fakeFrames {
	return &fakeFrames{next: 0x00200000, limit: limit}
}

func (f *fakeFrames) Alloc() uintptr {
	if f.granted >= f.limit {
		return 0
	}
	addr := f.next
	f.next += pmm.PageSize
	f.granted++
	return addr
}

type fakeMapper struct {
	calls int
}

func (m *fakeMapper) MapPage(virt, phys uint32, flags uint8) error {
	m.calls++
	return nil
}

const heapBase = 0x10000000

func newTestHeap(t *testing.T, frameLimit int) (*Heap, *fakeFrames, *fakeMapper) {
	t.Helper()
	mem := memview.NewArena(heapBase, 8*1024*1024)
	frames := newFakeFrames(frameLimit)
	mapper := &fakeMapper{}
	return New(mem, frames, mapper, heapBase), frames, mapper
}

func TestAllocGrowsOnFirstUse(t *testing.T) {
	h, _, mapper := newTestHeap(t, 1024)

	block, err := h.Alloc(128)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(block), 128)
	assert.NotZero(t, mapper.calls)
}

func TestAllocReturnsDistinctBlocks(t *testing.T) {
	h, _, _ := newTestHeap(t, 1024)

	a, err := h.Alloc(64)
	require.NoError(t, err)
	b, err := h.Alloc(64)
	require.NoError(t, err)

	assert.NotEqual(t, &a[0], &b[0])
}

func TestFreeReturnsSpaceToArena(t *testing.T) {
	h, _, _ := newTestHeap(t, 1024)

	block, err := h.Alloc(256)
	require.NoError(t, err)
	before := h.Available()

	require.NoError(t, h.Free(block))

	after := h.Available()
	assert.Greater(t, after, before)
}

func TestAllocExhaustionPropagatesError(t *testing.T) {
	h, _, _ := newTestHeap(t, 0) // no frames available at all

	_, err := h.Alloc(64)
	assert.Error(t, err)
}

func TestFreeOfForeignBlockErrors(t *testing.T) {
	h, _, _ := newTestHeap(t, 1024)
	foreign := make([]byte, 64)

	err := h.Free(foreign)
	assert.Error(t, err)
}
