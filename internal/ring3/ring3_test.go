package ring3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSetsInterruptEnableBit(t *testing.T) {
	f := Build(0x00400000, 0x001FFFF0, 0x1B, 0x23, 0x00000002)

	assert.True(t, f.InterruptsEnabled())
	assert.Equal(t, uint32(0x00000002|ifBit), f.EFlags)
}

func TestBuildPreservesOtherFlagBits(t *testing.T) {
	f := Build(0x00400000, 0x001FFFF0, 0x1B, 0x23, 0x00000046) // ZF+PF already set

	assert.NotZero(t, f.EFlags&0x46)
	assert.True(t, f.InterruptsEnabled())
}

func TestBuildCarriesSelectorsAndEntry(t *testing.T) {
	f := Build(0x00400000, 0x001FFFF0, 0x1B, 0x23, 0)

	assert.Equal(t, uint32(0x00400000), f.EntryPoint)
	assert.Equal(t, uint32(0x001FFFF0), f.UserStackTop)
	assert.Equal(t, uint16(0x1B), f.UserCodeSelector)
	assert.Equal(t, uint16(0x23), f.UserStackSelector)
}

func TestBuildIgnoresAlreadySetIFBit(t *testing.T) {
	f := Build(0, 0, 0, 0, ifBit)
	assert.Equal(t, uint32(ifBit), f.EFlags)
}
