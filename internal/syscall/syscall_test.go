package syscall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maahios/internal/drivers/drivertest"
	"maahios/internal/klog"
	"maahios/internal/mbinfo"
	"maahios/internal/memview"
	"maahios/internal/pic"
	"maahios/internal/pmm"
	"maahios/internal/process"
	"maahios/internal/scheduler"
)

type fakeController struct{ enabled bool }

func newFakeController() *fakeController { return &fakeController{enabled: true} }
func (f *fakeController) Disable()       { f.enabled = false }
func (f *fakeController) Enable()        { f.enabled = true }
func (f *fakeController) Enabled() bool  { return f.enabled }

type fakeFramebuffer struct {
	cleared    uint32
	printedAt  struct{ x, y int; s string; fg, bg uint32 }
	pixelColor uint32
}

func (f *fakeFramebuffer) Present() bool                                  { return true }
func (f *fakeFramebuffer) Width() int                                     { return 320 }
func (f *fakeFramebuffer) Height() int                                    { return 200 }
func (f *fakeFramebuffer) SwitchLowRes()                                  {}
func (f *fakeFramebuffer) PutPixelLowRes(x, y int, color uint8)           {}
func (f *fakeFramebuffer) ClearLowRes(color uint8)                        {}
func (f *fakeFramebuffer) PutPixel(x, y int, color uint32)                {}
func (f *fakeFramebuffer) ReadPixel(x, y int) uint32                      { return f.pixelColor }
func (f *fakeFramebuffer) Clear(color uint32)                             { f.cleared = color }
func (f *fakeFramebuffer) FillRect(x, y, w, h int, color uint32)          {}
func (f *fakeFramebuffer) DrawRect(x, y, w, h int, color uint32)          {}
func (f *fakeFramebuffer) PrintAt(x, y int, s string, fg, bg uint32) {
	f.printedAt.x, f.printedAt.y, f.printedAt.s, f.printedAt.fg, f.printedAt.bg = x, y, s, fg, bg
}
func (f *fakeFramebuffer) DrawBMP(x, y int, bmp []byte) {}
func (f *fakeFramebuffer) PutChar(c byte, fg, bg uint32) {}
func (f *fakeFramebuffer) SetCursor(x, y int)            {}
func (f *fakeFramebuffer) GetCursor() (int, int)         { return 0, 0 }

type fakeMouse struct {
	x, y     int
	buttons  uint8
	irqTotal uint32
	drained  bool
	polled   bool
}

func (m *fakeMouse) Init() bool         { return true }
func (m *fakeMouse) Handler()           {}
func (m *fakeMouse) X() int             { return m.x }
func (m *fakeMouse) Y() int             { return m.y }
func (m *fakeMouse) Buttons() uint8     { return m.buttons }
func (m *fakeMouse) IRQTotal() uint32   { return m.irqTotal }
func (m *fakeMouse) DrainBuffer()       { m.drained = true }
func (m *fakeMouse) PollOnce() bool     { return m.polled }

func newDispatcher(t *testing.T) (*Dispatcher, *drivertest.Console, *fakeFramebuffer, *fakeMouse, *memview.View) {
	t.Helper()
	console := drivertest.NewConsole()
	fb := &fakeFramebuffer{}
	mouse := &fakeMouse{x: 10, y: 20, buttons: 1, irqTotal: 7}

	info := mbinfo.Info{MemUpperKiB: 16 * 1024}
	bitmapBytes := pmm.BitmapSizeBytes(uint32((info.TotalMemoryBytes() - 0x100000) / pmm.PageSize))
	bitmapView := memview.NewArena(0x00200000, uintptr(bitmapBytes))
	frames := pmm.Init(info, 0x00100000, 0x00101000, 0x00200000, bitmapView)

	stacks := process.NewStackAllocator(0x00500000, 0x00600000, 0x1000, nil)
	procs := process.NewManager(stacks)
	sched := scheduler.New(4)
	sched.Enable()

	ports := drivertest.NewPorts()
	picCtl := pic.New(ports)
	picCtl.Remap(0x20, 0x28)

	mem := memview.NewArena(0x00700000, 0x1000)
	log := klog.New()

	d := New(console, fb, mouse, frames, procs, sched, picCtl, newFakeController(), mem, log, 0x00400000)
	return d, console, fb, mouse, mem
}

func TestPutCharWritesToConsole(t *testing.T) {
	d, console, _, _, _ := newDispatcher(t)
	d.Dispatch(Request{Num: PutChar, Arg1: uint32('A')})
	assert.Equal(t, "A", console.String())
}

func TestPutsReadsCStringFromMemory(t *testing.T) {
	d, console, _, _, mem := newDispatcher(t)
	addr := uintptr(0x00700010)
	copy(mustSlice(t, mem, addr, 6), []byte("hello\x00"))
	d.Dispatch(Request{Num: Puts, Arg1: uint32(addr)})
	assert.Equal(t, "hello", console.String())
}

func TestExitRequestsHalt(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	res := d.Dispatch(Request{Num: Exit})
	assert.True(t, res.Halt)
}

func TestAllocPageThenFreePageRoundTrips(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	res := d.Dispatch(Request{Num: AllocPage})
	require.NotZero(t, res.Value)

	d.Dispatch(Request{Num: FreePage, Arg1: res.Value})
	res2 := d.Dispatch(Request{Num: AllocPage})
	assert.Equal(t, res.Value, res2.Value)
}

func TestUnknownSyscallReturnsZero(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	res := d.Dispatch(Request{Num: 5})
	assert.Equal(t, uint32(0), res.Value)
}

func TestDrawRectUnpacksPackedArgument(t *testing.T) {
	packed := uint32(10) | uint32(20)<<8 | uint32(4)<<16
	w, h, c := unpackRect(packed)
	assert.Equal(t, uint8(10), w)
	assert.Equal(t, uint8(20), h)
	assert.Equal(t, uint8(4), c)
}

func TestDrawBoxUnpacksPackedArgument(t *testing.T) {
	packed := uint32(100) | uint32(50)<<16
	w, h := unpackBox(packed)
	assert.Equal(t, uint16(100), w)
	assert.Equal(t, uint16(50), h)
}

func TestCreateProcessAssignsPIDAndEnqueues(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	res := d.Dispatch(Request{Num: CreateProcess, Arg1: 0x00401000})
	assert.Equal(t, uint32(1), res.Value)
}

func TestYieldDequeuesEnqueuedProcess(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	created := d.Dispatch(Request{Num: CreateProcess, Arg1: 0x00401000})
	require.Equal(t, uint32(1), created.Value)

	res := d.Dispatch(Request{Num: Yield})
	require.NotNil(t, res.Transfer)
	assert.Equal(t, 1, res.Transfer.PID)
}

func TestYieldOnEmptyQueueReturnsNoTransfer(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	res := d.Dispatch(Request{Num: Yield})
	assert.Nil(t, res.Transfer)
}

func TestGetOrbitAddressReturnsConfiguredModuleBase(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	res := d.Dispatch(Request{Num: GetOrbitAddress})
	assert.Equal(t, uint32(0x00400000), res.Value)
}

func TestMouseQueriesReadThroughToDriver(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	assert.Equal(t, uint32(10), d.Dispatch(Request{Num: MouseGetX}).Value)
	assert.Equal(t, uint32(20), d.Dispatch(Request{Num: MouseGetY}).Value)
	assert.Equal(t, uint32(1), d.Dispatch(Request{Num: MouseGetButtons}).Value)
	assert.Equal(t, uint32(7), d.Dispatch(Request{Num: MouseGetIRQTotal}).Value)
}

func TestReEnableMouseDrainsBufferAndUnmasksIRQ12(t *testing.T) {
	d, _, _, mouse, _ := newDispatcher(t)
	d.Dispatch(Request{Num: ReEnableMouse})
	assert.True(t, mouse.drained)

	mask := d.Dispatch(Request{Num: GetPICMask}).Value
	assert.Zero(t, mask&(1<<12))
}

func TestPollMouseReflectsDriverResult(t *testing.T) {
	d, _, _, mouse, _ := newDispatcher(t)
	mouse.polled = true
	assert.Equal(t, uint32(1), d.Dispatch(Request{Num: PollMouse}).Value)

	mouse.polled = false
	assert.Equal(t, uint32(0), d.Dispatch(Request{Num: PollMouse}).Value)
}

func TestGetPICMaskReturnsMasterLowSlaveHigh(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	res := d.Dispatch(Request{Num: GetPICMask})
	assert.Equal(t, uint32(0xFFFF), res.Value)
}

func TestPrintAtReadsColorsFromUserStack(t *testing.T) {
	d, _, fb, _, mem := newDispatcher(t)
	strAddr := uintptr(0x00700100)
	copy(mustSlice(t, mem, strAddr, 3), []byte("hi\x00"))

	espAddr := uintptr(0x00700200)
	require.NoError(t, mem.SetUint32(espAddr, 0x00FFFFFF))
	require.NoError(t, mem.SetUint32(espAddr+4, 0x00000000))

	d.Dispatch(Request{Num: PrintAt, Arg1: 5, Arg2: 6, Arg3: uint32(strAddr), UserESP: uint32(espAddr)})
	assert.Equal(t, "hi", fb.printedAt.s)
	assert.Equal(t, uint32(0x00FFFFFF), fb.printedAt.fg)
	assert.Equal(t, uint32(0), fb.printedAt.bg)
}

func TestNonReentrantSyscallsRestoreInterruptsAfterward(t *testing.T) {
	ctrl := newFakeController()
	console := drivertest.NewConsole()
	fb := &fakeFramebuffer{}
	mouse := &fakeMouse{}
	info := mbinfo.Info{MemUpperKiB: 16 * 1024}
	bitmapBytes := pmm.BitmapSizeBytes(uint32((info.TotalMemoryBytes() - 0x100000) / pmm.PageSize))
	bitmapView := memview.NewArena(0x00200000, uintptr(bitmapBytes))
	frames := pmm.Init(info, 0x00100000, 0x00101000, 0x00200000, bitmapView)
	stacks := process.NewStackAllocator(0x00500000, 0x00600000, 0x1000, nil)
	procs := process.NewManager(stacks)
	sched := scheduler.New(4)
	sched.Enable()
	ports := drivertest.NewPorts()
	picCtl := pic.New(ports)
	picCtl.Remap(0x20, 0x28)
	mem := memview.NewArena(0x00700000, 0x1000)
	log := klog.New()

	d := New(console, fb, mouse, frames, procs, sched, picCtl, ctrl, mem, log, 0)
	d.Dispatch(Request{Num: AllocPage})
	assert.True(t, ctrl.Enabled())
}

func mustSlice(t *testing.T, mem *memview.View, addr uintptr, length uintptr) []byte {
	t.Helper()
	s, err := mem.Slice(addr, length)
	require.NoError(t, err)
	return s
}
