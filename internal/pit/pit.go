// Package pit programs PIT channel 0 in rate-generator mode and tracks the
// resulting tick count (spec.md §4.3). Grounded directly on
// original_source/managers/timer/pit.c's pit_init/pit_handler/
// pit_get_ticks/pit_wait.
package pit

import "maahios/internal/drivers"

const (
	baseFrequency = 1193182 // Hz, the PIT's fixed input clock

	channel0Port = 0x40
	commandPort  = 0x43

	// channel 0, lobyte/hibyte access, mode 2 (rate generator), binary.
	rateGeneratorCommand = 0x36
)

// PIT is the C3 timer. Tick is advanced by the caller (the IRQ handler)
// rather than by this package, so Wait can busy-poll it without needing
// its own goroutine — there are no goroutines on bare metal.
type PIT struct {
	ports drivers.Ports
	ticks uint32
}

// New constructs a PIT over ports.
func New(ports drivers.Ports) *PIT {
	return &PIT{ports: ports}
}

// Init programs channel 0 to fire at frequencyHz, computing the divisor
// from the PIT's fixed 1.193182 MHz input clock.
func (p *PIT) Init(frequencyHz uint32) {
	divisor := baseFrequency / frequencyHz
	p.ports.Out8(commandPort, rateGeneratorCommand)
	p.ports.Out8(channel0Port, uint8(divisor&0xFF))
	p.ports.Out8(channel0Port, uint8((divisor>>8)&0xFF))
}

// Tick increments the tick counter and invokes onTick, mirroring
// pit_handler's "count then call scheduler_tick" sequence. Called from the
// timer IRQ entry.
func (p *PIT) Tick(onTick func()) {
	p.ticks++
	if onTick != nil {
		onTick()
	}
}

// Ticks returns the total tick count since Init.
func (p *PIT) Ticks() uint32 {
	return p.ticks
}

// Wait busy-waits until at least n further ticks have elapsed. pause, if
// non-nil, is called on every spin iteration.
func (p *PIT) Wait(n uint32, pause func()) {
	target := p.ticks + n
	for p.ticks < target {
		if pause != nil {
			pause()
		}
	}
}
