//go:build 386

package x86

// PS/2 controller ports and commands, grounded on
// original_source/drivers/mouse.c's mouse_init/mouse_handler.
const (
	ps2DataPort     = 0x60
	ps2StatusPort   = 0x64
	ps2CommandPort  = 0x64
	ps2OutputFull   = 0x01
	ps2FromMouse    = 0x20
	screenWidthPS2  = 1024
	screenHeightPS2 = 768
)

// PS2Mouse is the real drivers.Mouse: a three-byte packet assembler fed one
// byte at a time from the IRQ12 handler, exactly like original_source's
// mouse_handler, just without the serial-port debug tracing.
type PS2Mouse struct {
	ports Ports

	x, y      int
	buttons   uint8
	irqTotal  uint32
	packet    [3]byte
	packetLen int
	ready     bool

	pending bool
}

func NewPS2Mouse() *PS2Mouse {
	return &PS2Mouse{x: screenWidthPS2 / 2, y: screenHeightPS2 / 2}
}

func (m *PS2Mouse) waitInputClear() {
	for i := 0; i < 1000; i++ {
		if m.ports.In8(ps2StatusPort)&0x02 == 0 {
			return
		}
	}
}

func (m *PS2Mouse) waitOutputFull() {
	for i := 0; i < 1000; i++ {
		if m.ports.In8(ps2StatusPort)&ps2OutputFull != 0 {
			return
		}
	}
}

func (m *PS2Mouse) flushOutput() {
	for i := 0; i < 16; i++ {
		if m.ports.In8(ps2StatusPort)&ps2OutputFull != 0 {
			m.ports.In8(ps2DataPort)
		} else {
			break
		}
	}
}

// Init performs the disable/configure/re-enable sequence, then enables
// data reporting on the mouse port. Returns true if the mouse ACKed.
func (m *PS2Mouse) Init() bool {
	m.x, m.y = screenWidthPS2/2, screenHeightPS2/2
	m.packetLen = 0
	m.ready = false

	m.waitInputClear()
	m.ports.Out8(ps2CommandPort, 0xAD) // disable keyboard
	m.waitInputClear()
	m.ports.Out8(ps2CommandPort, 0xA7) // disable mouse
	m.flushOutput()

	m.waitInputClear()
	m.ports.Out8(ps2CommandPort, 0x20)
	m.waitOutputFull()
	cmd := m.ports.In8(ps2DataPort)
	cmd |= 0x03
	cmd &^= 0x20

	m.waitInputClear()
	m.ports.Out8(ps2CommandPort, 0x60)
	m.waitInputClear()
	m.ports.Out8(ps2DataPort, cmd)

	m.waitInputClear()
	m.ports.Out8(ps2CommandPort, 0xA8) // enable mouse port
	m.waitInputClear()
	m.ports.Out8(ps2CommandPort, 0xAE) // enable keyboard port

	m.waitInputClear()
	m.ports.Out8(ps2CommandPort, 0xD4)
	m.waitInputClear()
	m.ports.Out8(ps2DataPort, 0xF4) // enable data reporting

	m.waitOutputFull()
	ack := m.ports.In8(ps2DataPort)
	m.flushOutput()
	m.ready = ack == 0xFA
	return m.ready
}

// Handler consumes exactly one IRQ12 byte. The PS/2 controller stops
// generating interrupts if the data port isn't read on every IRQ12, so this
// always drains it even when the byte is discarded.
func (m *PS2Mouse) Handler() {
	m.irqTotal++

	status := m.ports.In8(ps2StatusPort)
	if status&ps2OutputFull == 0 {
		return
	}
	data := m.ports.In8(ps2DataPort)
	if status&ps2FromMouse == 0 {
		return
	}
	if !m.ready {
		return
	}
	if m.packetLen == 0 && data&0x08 == 0 {
		return
	}
	m.packet[m.packetLen] = data
	m.packetLen++
	if m.packetLen < 3 {
		return
	}
	m.packetLen = 0
	m.buttons = m.packet[0] & 0x07
	dx := int8(m.packet[1])
	dy := int8(m.packet[2])
	m.x += int(dx) * 2
	m.y -= int(dy) * 2
	if m.x < 0 {
		m.x = 0
	}
	if m.x > screenWidthPS2-1 {
		m.x = screenWidthPS2 - 1
	}
	if m.y < 0 {
		m.y = 0
	}
	if m.y > screenHeightPS2-1 {
		m.y = screenHeightPS2 - 1
	}
	m.pending = true
}

func (m *PS2Mouse) X() int            { return m.x }
func (m *PS2Mouse) Y() int            { return m.y }
func (m *PS2Mouse) Buttons() uint8    { return m.buttons }
func (m *PS2Mouse) IRQTotal() uint32  { return m.irqTotal }
func (m *PS2Mouse) DrainBuffer()      { m.pending = false }
func (m *PS2Mouse) PollOnce() bool {
	p := m.pending
	m.pending = false
	return p
}
