//go:build 386

package x86

import "maahios/internal/memview"

const (
	vgaBase    = 0x000B8000
	vgaWidth   = 80
	vgaHeight  = 25
	vgaPortIdx = 0x3D4
	vgaPortDat = 0x3D5
)

// VGAConsole is the real drivers.Console: the standard 80x25 text-mode
// buffer at 0xB8000, two bytes per cell (character, attribute), grounded on
// the conventional VGA text console every BIOS leaves active at boot —
// original_source's own vga_* routines work the same buffer, just through
// direct pointer writes instead of a memview.View.
type VGAConsole struct {
	mem     *memview.View
	ports   Ports
	cursorX int
	cursorY int
	fg      uint8
}

// NewVGAConsole wraps the identity-mapped VGA text buffer.
func NewVGAConsole() *VGAConsole {
	return &VGAConsole{
		mem:   IdentityMemory(vgaBase, vgaWidth*vgaHeight*2),
		ports: Ports{},
		fg:    0x0F, // white on black, the BIOS default
	}
}

func (c *VGAConsole) cellAddr(x, y int) uintptr {
	return vgaBase + uintptr((y*vgaWidth+x)*2)
}

func (c *VGAConsole) putCellByte(x, y int, ch, attr byte) {
	if x < 0 || x >= vgaWidth || y < 0 || y >= vgaHeight {
		return
	}
	addr := c.cellAddr(x, y)
	b, err := c.mem.Slice(addr, 2)
	if err != nil {
		return
	}
	b[0], b[1] = ch, attr
}

func (c *VGAConsole) scroll() {
	for y := 1; y < vgaHeight; y++ {
		row, err := c.mem.Slice(vgaBase+uintptr(y*vgaWidth*2), vgaWidth*2)
		if err != nil {
			continue
		}
		dst, _ := c.mem.Slice(vgaBase+uintptr((y-1)*vgaWidth*2), vgaWidth*2)
		copy(dst, row)
	}
	_ = c.mem.Zero(vgaBase+uintptr((vgaHeight-1)*vgaWidth*2), vgaWidth*2)
	c.cursorY = vgaHeight - 1
}

func (c *VGAConsole) advance() {
	c.cursorX++
	if c.cursorX >= vgaWidth {
		c.cursorX = 0
		c.cursorY++
	}
	if c.cursorY >= vgaHeight {
		c.scroll()
	}
}

func (c *VGAConsole) Clear() {
	_ = c.mem.Zero(vgaBase, vgaWidth*vgaHeight*2)
	c.cursorX, c.cursorY = 0, 0
}

func (c *VGAConsole) PutChar(ch byte) {
	if ch == '\n' {
		c.cursorX = 0
		c.cursorY++
		if c.cursorY >= vgaHeight {
			c.scroll()
		}
		return
	}
	c.putCellByte(c.cursorX, c.cursorY, ch, c.fg)
	c.advance()
	c.SetCursor(c.cursorX, c.cursorY)
}

func (c *VGAConsole) PutString(s string) {
	for i := 0; i < len(s); i++ {
		c.PutChar(s[i])
	}
}

func (c *VGAConsole) PutInt(n int32) {
	if n == 0 {
		c.PutChar('0')
		return
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0') + byte(n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	c.PutString(string(buf[i:]))
}

func (c *VGAConsole) SetColor(fg, bg uint8) {
	c.fg = (bg&0xF)<<4 | (fg & 0xF)
}

func (c *VGAConsole) SetCursor(x, y int) {
	c.cursorX, c.cursorY = x, y
	pos := uint16(y*vgaWidth + x)
	c.ports.Out8(vgaPortIdx, 0x0F)
	c.ports.Out8(vgaPortDat, uint8(pos&0xFF))
	c.ports.Out8(vgaPortIdx, 0x0E)
	c.ports.Out8(vgaPortDat, uint8(pos>>8))
}

func (c *VGAConsole) DrawRect(x, y, width, height int, color uint8) {
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			c.putCellByte(col, row, ' ', (color&0xF)<<4|(color&0xF))
		}
	}
}

func (c *VGAConsole) DrawBox(x, y, width, height int) {
	for col := x; col < x+width; col++ {
		c.putCellByte(col, y, 0xC4, c.fg)
		c.putCellByte(col, y+height-1, 0xC4, c.fg)
	}
	for row := y; row < y+height; row++ {
		c.putCellByte(x, row, 0xB3, c.fg)
		c.putCellByte(x+width-1, row, 0xB3, c.fg)
	}
}
