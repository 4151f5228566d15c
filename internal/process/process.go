// Package process is the C10 process manager: a fixed-capacity PCB table
// indexed by pid-1, PIDs assigned monotonically from 1, and a stack
// allocator carving disjoint user/kernel-interrupt stack ranges out of
// the identity-mapped region (spec.md §4.10). Grounded on
// original_source/managers/process/process_manager.c's process_table/
// process_create_sysman/process_create/process_get_by_pid/
// process_manager_get_count.
//
// The source's process_create_sysman and process_create both call
// ring3_switch directly and never return; here PCB construction and
// privilege transition are split so the table logic is host-testable —
// internal/bringup calls Manager.CreateSysman and builds the C11 frame for
// the returned PCB, while internal/syscall calls Manager.Create and puts the
// returned PCB on C12's queue itself, matching spec.md §4.10's "Does not return" vs
// "Returns" distinction at the call site rather than inside this package.
package process

import "fmt"

const MaxProcesses = 64

// State is a PCB's scheduling state.
type State int

const (
	Ready State = iota
	Running
)

// PCB is a process control block.
type PCB struct {
	PID            int
	EntryPoint     uint32
	UserStackTop   uint32
	KernelStackTop uint32
	State          State
}

// Range is an inclusive-exclusive address range [Start, End).
type Range struct {
	Start uintptr
	End   uintptr
}

func (r Range) overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// StackAllocator carves non-overlapping user and kernel-interrupt stack
// ranges, one pair per process, disjoint from every loaded module range.
// Per spec.md §4.10 overlap with a module is a hazard in the original
// source (module 1's load address collided with the scheduler's stack
// range); here it is promoted from a silent failure to a returned error.
type StackAllocator struct {
	userBase    uintptr
	kernelBase  uintptr
	stride      uintptr
	moduleRange []Range
	allocated   int
}

// NewStackAllocator returns a StackAllocator carving userBase/kernelBase
// upward in stride-sized increments, rejecting any allocation that would
// overlap one of moduleRanges.
func NewStackAllocator(userBase, kernelBase, stride uintptr, moduleRanges []Range) *StackAllocator {
	return &StackAllocator{
		userBase:    userBase,
		kernelBase:  kernelBase,
		stride:      stride,
		moduleRange: moduleRanges,
	}
}

// Allocate returns the stack tops (stacks grow down, so "top" is the high
// end of each range) for the next process, or an error if either range
// would overlap a loaded module.
func (s *StackAllocator) Allocate() (userStackTop, kernelStackTop uint32, err error) {
	idx := uintptr(s.allocated)
	userRange := Range{s.userBase + idx*s.stride, s.userBase + idx*s.stride + s.stride}
	kernelRange := Range{s.kernelBase + idx*s.stride, s.kernelBase + idx*s.stride + s.stride}

	for _, m := range s.moduleRange {
		if userRange.overlaps(m) {
			return 0, 0, fmt.Errorf("process: user stack range [0x%x,0x%x) overlaps module range [0x%x,0x%x)",
				userRange.Start, userRange.End, m.Start, m.End)
		}
		if kernelRange.overlaps(m) {
			return 0, 0, fmt.Errorf("process: kernel stack range [0x%x,0x%x) overlaps module range [0x%x,0x%x)",
				kernelRange.Start, kernelRange.End, m.Start, m.End)
		}
	}

	s.allocated++
	return uint32(userRange.End), uint32(kernelRange.End), nil
}

// Manager is the C10 PCB table.
type Manager struct {
	table   [MaxProcesses]*PCB
	nextPID int
	stacks  *StackAllocator
}

// NewManager returns an empty Manager, PIDs starting at 1.
func NewManager(stacks *StackAllocator) *Manager {
	return &Manager{nextPID: 1, stacks: stacks}
}

func (m *Manager) newPCB(entry uint32, state State) (*PCB, error) {
	if m.nextPID > MaxProcesses {
		return nil, fmt.Errorf("process: table full at %d processes", MaxProcesses)
	}
	userTop, kernelTop, err := m.stacks.Allocate()
	if err != nil {
		return nil, err
	}
	pcb := &PCB{
		PID:            m.nextPID,
		EntryPoint:     entry,
		UserStackTop:   userTop,
		KernelStackTop: kernelTop,
		State:          state,
	}
	m.table[pcb.PID-1] = pcb
	m.nextPID++
	return pcb, nil
}

// CreateSysman allocates PID 1 (the sysman process) in the Running state.
// The caller is responsible for the non-returning ring-3 transition.
func (m *Manager) CreateSysman(entry uint32) (*PCB, error) {
	return m.newPCB(entry, Running)
}

// Create allocates a new PCB in the Ready state, for the caller to
// enqueue in the scheduler. Unlike CreateSysman, this returns normally.
func (m *Manager) Create(entry uint32) (*PCB, error) {
	return m.newPCB(entry, Ready)
}

// Get returns the PCB for pid, or nil if none exists.
func (m *Manager) Get(pid int) *PCB {
	if pid < 1 || pid > MaxProcesses {
		return nil
	}
	return m.table[pid-1]
}

// Count returns the number of allocated PCBs.
func (m *Manager) Count() int {
	count := 0
	for _, p := range m.table {
		if p != nil {
			count++
		}
	}
	return count
}
