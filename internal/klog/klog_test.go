package klog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"maahios/internal/drivers/drivertest"
)

func TestLineFansOutToAllSinks(t *testing.T) {
	a := drivertest.NewConsole()
	b := drivertest.NewConsole()
	l := New(a, b)

	l.Line("frame allocator ready")

	assert.Equal(t, "frame allocator ready\n", a.String())
	assert.Equal(t, "frame allocator ready\n", b.String())
}

func TestHex32Format(t *testing.T) {
	c := drivertest.NewConsole()
	l := New(c)

	l.Hex32("cr2=", 0xDEAD0000)

	assert.Equal(t, "cr2=0xDEAD0000\n", c.String())
}

func TestLinefFormats(t *testing.T) {
	c := drivertest.NewConsole()
	l := New(c)

	l.Linef("pid %d spawned at 0x%x", 3, 0x400000)

	assert.Equal(t, "pid 3 spawned at 0x400000\n", c.String())
}

func TestNilSinksIsNoop(t *testing.T) {
	l := New()
	l.Line("nobody hears this")
}

func TestAttachAddsSink(t *testing.T) {
	c := drivertest.NewConsole()
	l := New()
	l.Attach(c)
	l.Line("attached after construction")
	assert.Equal(t, "attached after construction\n", c.String())
}
