// Package diag keeps a fixed-capacity trace of fault events for
// post-mortem inspection: internal/exception records every fault it
// handles, and Recent reads the trace back. It has no analogue in
// original_source, which only ever prints-and-halts. The diagnostic panel
// prints only the fault that triggered it, not this trace.
//
// Backed by cloudwego-gopkg's container/ring, which is a fixed-capacity
// cursor over a pre-allocated slice rather than a growable queue — exactly
// what a no-allocation diagnostic trace wants.
package diag

import (
	"encoding/binary"

	"github.com/cloudwego/gopkg/container/ring"
	"github.com/cloudwego/gopkg/hash/xfnv"
)

// Event is one recorded fault or IRQ occurrence.
type Event struct {
	Vector    uint8
	ErrorCode uint32
	EIP       uint32
	UserMode  bool
	Checksum  uint64
}

// stamp computes an integrity checksum over the event's fields, written
// before Checksum itself so later readers can detect a torn write (the
// trace may be read by the same code that's about to overwrite it, on a
// uniprocessor, from a nested fault).
func stamp(vector uint8, errorCode, eip uint32, userMode bool) uint64 {
	var buf [10]byte
	buf[0] = vector
	binary.LittleEndian.PutUint32(buf[1:5], errorCode)
	binary.LittleEndian.PutUint32(buf[5:9], eip)
	if userMode {
		buf[9] = 1
	}
	return xfnv.Hash(buf[:])
}

// Trace is a fixed-capacity circular log of Events.
type Trace struct {
	r    *ring.Ring[Event]
	next int
}

// NewTrace allocates a trace holding up to capacity events.
func NewTrace(capacity int) *Trace {
	return &Trace{r: ring.NewFromSlice(make([]Event, capacity))}
}

// Record appends an event, overwriting the oldest slot once the trace is
// full.
func (t *Trace) Record(vector uint8, errorCode, eip uint32, userMode bool) {
	if t.r.Len() == 0 {
		return
	}
	item, _ := t.r.Get(t.next)
	*item.Pointer() = Event{
		Vector:    vector,
		ErrorCode: errorCode,
		EIP:       eip,
		UserMode:  userMode,
		Checksum:  stamp(vector, errorCode, eip, userMode),
	}
	t.next = (t.next + 1) % t.r.Len()
}

// Verify reports whether e's Checksum still matches its other fields.
func Verify(e Event) bool {
	return e.Checksum == stamp(e.Vector, e.ErrorCode, e.EIP, e.UserMode)
}

// Recent returns up to n of the most recently recorded events, oldest
// first, skipping any still-zero slots before the trace has wrapped once.
func (t *Trace) Recent(n int) []Event {
	cap := t.r.Len()
	if cap == 0 || n <= 0 {
		return nil
	}
	if n > cap {
		n = cap
	}
	out := make([]Event, 0, n)
	start := (t.next - n + cap) % cap
	for i := 0; i < n; i++ {
		item, _ := t.r.Get((start + i) % cap)
		e := item.Value()
		if e == (Event{}) {
			continue
		}
		out = append(out, e)
	}
	return out
}
