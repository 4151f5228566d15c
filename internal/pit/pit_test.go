package pit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"maahios/internal/drivers/drivertest"
)

func TestInitProgramsDivisor(t *testing.T) {
	ports := drivertest.NewPorts()
	p := New(ports)

	p.Init(100) // 1.193182 MHz / 100 Hz = 11931 = 0x2E9B

	assert.Equal(t, uint8(rateGeneratorCommand), ports.In8(commandPort))
	var ch0 []uint32
	for _, w := range ports.Writes {
		if w.Port == channel0Port {
			ch0 = append(ch0, w.Value)
		}
	}
	assert.Equal(t, []uint32{0x9B, 0x2E}, ch0, "divisor is written low byte then high byte")
}

func TestTickInvokesCallbackAndCounts(t *testing.T) {
	p := New(drivertest.NewPorts())
	calls := 0

	p.Tick(func() { calls++ })
	p.Tick(func() { calls++ })

	assert.Equal(t, uint32(2), p.Ticks())
	assert.Equal(t, 2, calls)
}

func TestTickToleratesNilCallback(t *testing.T) {
	p := New(drivertest.NewPorts())
	p.Tick(nil)
	assert.Equal(t, uint32(1), p.Ticks())
}

func TestWaitStopsOnceTargetReached(t *testing.T) {
	p := New(drivertest.NewPorts())
	spins := 0

	p.Wait(3, func() {
		spins++
		p.Tick(nil)
	})

	assert.Equal(t, uint32(3), p.Ticks())
	assert.Equal(t, 3, spins)
}
