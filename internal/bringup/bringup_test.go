package bringup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maahios/internal/drivers/drivertest"
	"maahios/internal/mbinfo"
	"maahios/internal/memview"
	"maahios/internal/klog"
)

type fakeController struct{ enabled bool }

func (f *fakeController) Disable()      { f.enabled = false }
func (f *fakeController) Enable()       { f.enabled = true }
func (f *fakeController) Enabled() bool { return f.enabled }

type fakeFramebuffer struct {
	present     bool
	switchedLow bool
}

func (f *fakeFramebuffer) Present() bool                         { return f.present }
func (f *fakeFramebuffer) Width() int                            { return 320 }
func (f *fakeFramebuffer) Height() int                           { return 200 }
func (f *fakeFramebuffer) SwitchLowRes()                         { f.switchedLow = true }
func (f *fakeFramebuffer) PutPixelLowRes(x, y int, color uint8)  {}
func (f *fakeFramebuffer) ClearLowRes(color uint8)                {}
func (f *fakeFramebuffer) PutPixel(x, y int, color uint32)        {}
func (f *fakeFramebuffer) ReadPixel(x, y int) uint32               { return 0 }
func (f *fakeFramebuffer) Clear(color uint32)                      {}
func (f *fakeFramebuffer) FillRect(x, y, w, h int, color uint32)   {}
func (f *fakeFramebuffer) DrawRect(x, y, w, h int, color uint32)   {}
func (f *fakeFramebuffer) PrintAt(x, y int, s string, fg, bg uint32) {}
func (f *fakeFramebuffer) DrawBMP(x, y int, bmp []byte)            {}
func (f *fakeFramebuffer) PutChar(c byte, fg, bg uint32)           {}
func (f *fakeFramebuffer) SetCursor(x, y int)                      {}
func (f *fakeFramebuffer) GetCursor() (int, int)                   { return 0, 0 }

type fakeMouse struct{ initOK bool }

func (m *fakeMouse) Init() bool       { return m.initOK }
func (m *fakeMouse) Handler()         {}
func (m *fakeMouse) X() int           { return 0 }
func (m *fakeMouse) Y() int           { return 0 }
func (m *fakeMouse) Buttons() uint8   { return 0 }
func (m *fakeMouse) IRQTotal() uint32 { return 0 }
func (m *fakeMouse) DrainBuffer()     {}
func (m *fakeMouse) PollOnce() bool   { return false }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IdentityMapCapBytes = 1 * 1024 * 1024
	return cfg
}

func TestBringSucceedsWithTwoModulesAndReturnsSysmanFrame(t *testing.T) {
	cfg := testConfig()
	info := mbinfo.Info{
		MemUpperKiB: 16 * 1024, // 16 MiB above the first MiB
		Modules: []mbinfo.Module{
			{Start: 0x00600000, End: 0x00610000, Label: "sysman"},
			{Start: 0x00680000, End: 0x00690000, Label: "orbit"},
		},
	}

	mem := memview.NewArena(0, 32*1024*1024)
	console := drivertest.NewConsole()
	fb := &fakeFramebuffer{present: true}
	mouse := &fakeMouse{initOK: true}
	ports := drivertest.NewPorts()
	ctrl := &fakeController{enabled: false}

	k, err := Bring(cfg, info, console, fb, mouse, ports, ctrl, mem, klog.New())
	require.NoError(t, err)

	assert.Equal(t, uint32(0x00680000), k.OrbitAddress)
	assert.Equal(t, 1, k.Sysman.PID)
	assert.Equal(t, uint32(0x00600000), k.SysmanFrame.EntryPoint)
	assert.True(t, k.SysmanFrame.InterruptsEnabled())
	assert.False(t, ctrl.Enabled(), "step 16 must leave interrupts disabled")
	assert.True(t, k.Scheduler.Enabled())
	assert.True(t, fb.switchedLow)
	assert.Same(t, mouse, k.Mouse)
}

func TestBringWithoutModulesLeavesOrbitAddressZero(t *testing.T) {
	cfg := testConfig()
	info := mbinfo.Info{MemUpperKiB: 16 * 1024}

	mem := memview.NewArena(0, 32*1024*1024)
	console := drivertest.NewConsole()
	fb := &fakeFramebuffer{present: false}
	mouse := &fakeMouse{initOK: false}
	ports := drivertest.NewPorts()
	ctrl := &fakeController{enabled: false}

	k, err := Bring(cfg, info, console, fb, mouse, ports, ctrl, mem, klog.New())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), k.OrbitAddress)
	assert.False(t, fb.switchedLow)
	assert.Nil(t, k.Mouse, "a mouse that failed to initialize must not be wired to IRQ12 dispatch")
}

func TestBringClampsIdentityMapToTotalMemory(t *testing.T) {
	cfg := testConfig()
	cfg.IdentityMapCapBytes = 64 * 1024 * 1024 // far more than reported memory
	info := mbinfo.Info{MemUpperKiB: 1024}      // ~2 MiB total
	// A small kernel image leaves frames free for the identity map's page table.
	cfg.KernelEnd = 0x00108000

	mem := memview.NewArena(0, 4*1024*1024)
	console := drivertest.NewConsole()
	fb := &fakeFramebuffer{present: false}
	mouse := &fakeMouse{initOK: false}
	ports := drivertest.NewPorts()
	ctrl := &fakeController{enabled: false}

	k, err := Bring(cfg, info, console, fb, mouse, ports, ctrl, mem, klog.New())
	require.NoError(t, err)
	_, present, err := k.Directory.Translate(0)
	require.NoError(t, err)
	assert.True(t, present)

	_, present, err = k.Directory.Translate(0x00200000) // first page past 2 MiB
	require.NoError(t, err)
	assert.False(t, present)
}
