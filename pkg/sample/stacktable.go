package sample

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Slot lifecycle shared by both tables. A slot is reserved with a CAS
// before its content is written and published; readers only trust
// content behind a ready state.
const (
	slotEmpty uint32 = iota
	slotReserved
	slotReady
)

// Negative capture results, shaped like the errno values the kernel
// stack-map helper reports. Callers must only rely on the sign: the
// encoding deliberately conflates the failure causes.
const (
	stackErrUnavail int32 = -14 // EFAULT: stack unavailable or walk truncated
	stackErrBusy    int32 = -16 // EBUSY: concurrent install on the same row
	stackErrExists  int32 = -17 // EEXIST: row taken by a different trace
)

type stackSlot struct {
	state atomic.Uint32
	hash  uint64
	trace StackTrace
}

// StackTable is a fixed-capacity deduplicating store of stack traces,
// addressed by the small integer id the capture operation assigns.
// All rows are preallocated: capturing never allocates, never blocks
// and never loops over more than one row.
type StackTable struct {
	slots []stackSlot
	used  atomic.Int32
}

func NewStackTable(opts ...StackTableOption) (*StackTable, error) {
	t := &StackTable{}

	capacity := DefaultMaxStackTraces
	for _, f := range opts {
		f(&capacity)
	}
	if capacity <= 0 {
		return nil, ErrBadCapacity
	}
	t.slots = make([]stackSlot, capacity)

	return t, nil
}

type StackTableOption func(capacity *int)

func WithStackTableCapacity(capacity int) StackTableOption {
	return func(c *int) {
		*c = capacity
	}
}

// Capture walks the stack selected by flags out of the execution
// context and stores it, deduplicated, in the table. It returns the
// non-negative row id on success, or a negative value when the stack
// is unavailable, the walk exceeded MaxStackDepth, or the row derived
// from the trace content is already taken. Failure never aborts the
// caller: a negative id is a recordable outcome.
func (t *StackTable) Capture(ctx *Context, flags CaptureFlags) int32 {
	frames := ctx.stack(flags)
	if len(frames) == 0 || len(frames) > MaxStackDepth {
		return stackErrUnavail
	}

	var trace StackTrace
	copy(trace[:], frames)

	hash := hashFrames(frames)
	id := int32(hash % uint64(len(t.slots)))
	slot := &t.slots[id]

	for {
		switch slot.state.Load() {
		case slotEmpty:
			if !slot.state.CompareAndSwap(slotEmpty, slotReserved) {
				// Lost the reservation race, re-read the state.
				continue
			}
			slot.hash = hash
			slot.trace = trace
			slot.state.Store(slotReady)
			t.used.Add(1)

			return id
		case slotReserved:
			// Another CPU is publishing this row right now. Do not
			// wait for it: report the stack as unavailable instead.
			return stackErrBusy
		default:
			if slot.hash == hash && slot.trace == trace {
				return id
			}

			return stackErrExists
		}
	}
}

// Lookup returns the trace stored at id. It reports false for negative
// sentinels and rows that were never populated.
func (t *StackTable) Lookup(id int32) (StackTrace, bool) {
	if id < 0 || int(id) >= len(t.slots) {
		return StackTrace{}, false
	}

	slot := &t.slots[id]
	if slot.state.Load() != slotReady {
		return StackTrace{}, false
	}

	return slot.trace, true
}

// Frames returns the trace stored at id trimmed of its zero tail.
func (t *StackTable) Frames(id int32) []uint64 {
	trace, ok := t.Lookup(id)
	if !ok {
		return nil
	}

	return trace.Frames()
}

// Len returns the number of populated rows.
func (t *StackTable) Len() int {
	return int(t.used.Load())
}

// Cap returns the maximum number of distinct traces the table holds.
func (t *StackTable) Cap() int {
	return len(t.slots)
}

// Reset clears every row. It is the table-clear primitive exporters use
// to rotate the table between collection rounds and requires the
// sampling source to be quiesced first.
func (t *StackTable) Reset() {
	for i := range t.slots {
		t.slots[i].state.Store(slotEmpty)
	}
	t.used.Store(0)
}

func hashFrames(frames []uint64) uint64 {
	var buf [MaxStackDepth * 8]byte
	for i, ip := range frames {
		binary.LittleEndian.PutUint64(buf[i*8:], ip)
	}

	return xxhash.Sum64(buf[:len(frames)*8])
}
