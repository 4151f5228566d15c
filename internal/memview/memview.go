// Package memview concentrates raw physical-memory access behind a single,
// bounds-checked type, per the "Raw pointers and identity-mapping" design
// note: outside this package nothing in the kernel dereferences a bare
// address. A View wraps a contiguous byte range — either the real
// identity-mapped region (constructed from unsafe.Pointer in
// internal/arch/x86, which is the only place unsafe.Slice over physical
// memory ever happens) or a plain Go arena standing in for RAM in host
// tests (New/NewArena).
package memview

import (
	"encoding/binary"
	"fmt"
)

// View is a bounds-checked accessor over [Base, Base+Size) of
// identity-mapped memory.
type View struct {
	base  uintptr
	bytes []byte
}

// New wraps an existing byte slice as the view over physical range
// [base, base+len(backing)). Used by internal/arch/x86 to wrap a real
// unsafe.Slice over identity-mapped RAM, and by tests to wrap a plain
// make([]byte, n) arena that simulates RAM starting at base.
func New(base uintptr, backing []byte) *View {
	return &View{base: base, bytes: backing}
}

// NewArena allocates a simulated RAM region of size bytes starting at base,
// for use in host-side tests that exercise C7/C8/C9 logic without real
// hardware.
func NewArena(base uintptr, size uintptr) *View {
	return New(base, make([]byte, size))
}

func (v *View) Base() uintptr { return v.base }
func (v *View) Size() uintptr { return uintptr(len(v.bytes)) }
func (v *View) End() uintptr  { return v.base + v.Size() }

// Contains reports whether [addr, addr+length) lies entirely within the view.
func (v *View) Contains(addr uintptr, length uintptr) bool {
	if addr < v.base {
		return false
	}
	off := addr - v.base
	return off <= v.Size() && length <= v.Size()-off
}

func (v *View) offset(addr uintptr, length uintptr) (uintptr, error) {
	if !v.Contains(addr, length) {
		return 0, fmt.Errorf("memview: range [0x%x, 0x%x) outside view [0x%x, 0x%x)", addr, addr+length, v.base, v.End())
	}
	return addr - v.base, nil
}

// Slice returns the length bytes at addr as a Go slice sharing the view's
// backing storage.
func (v *View) Slice(addr uintptr, length uintptr) ([]byte, error) {
	off, err := v.offset(addr, length)
	if err != nil {
		return nil, err
	}
	return v.bytes[off : off+length], nil
}

// Zero fills [addr, addr+length) with zero bytes.
func (v *View) Zero(addr uintptr, length uintptr) error {
	s, err := v.Slice(addr, length)
	if err != nil {
		return err
	}
	for i := range s {
		s[i] = 0
	}
	return nil
}

// Uint32 reads a little-endian uint32 at addr.
func (v *View) Uint32(addr uintptr) (uint32, error) {
	s, err := v.Slice(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

// SetUint32 writes a little-endian uint32 at addr.
func (v *View) SetUint32(addr uintptr, val uint32) error {
	s, err := v.Slice(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s, val)
	return nil
}

// CString reads a NUL-terminated string starting at addr, bounded by maxLen
// bytes so a malformed user pointer can't run the scan unbounded.
func (v *View) CString(addr uintptr, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 4096
	}
	length := uintptr(maxLen)
	if !v.Contains(addr, 0) {
		return "", fmt.Errorf("memview: address 0x%x outside view", addr)
	}
	if avail := v.End() - addr; length > avail {
		length = avail
	}
	s, err := v.Slice(addr, length)
	if err != nil {
		return "", err
	}
	for i, b := range s {
		if b == 0 {
			return string(s[:i]), nil
		}
	}
	return string(s), nil
}
