package sample

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Counter is a stable occurrence counter cell. Its address does not
// change for the lifetime of the table, so concurrent samplers holding
// the same key all add onto the same cell.
type Counter struct {
	v atomic.Uint64
}

// Add atomically adds delta to the counter and returns the new value.
func (c *Counter) Add(delta uint64) uint64 {
	return c.v.Add(delta)
}

// Load atomically reads the counter.
func (c *Counter) Load() uint64 {
	return c.v.Load()
}

type countSlot struct {
	state atomic.Uint32
	key   StackCountKey
	count Counter
}

// CountTable maps StackCountKeys to occurrence counters. It is a
// fixed-capacity open-addressing hash table with preallocated rows:
// inserting never allocates and never evicts, and a new key arriving
// at a full table is refused rather than retried or queued.
type CountTable struct {
	slots []countSlot
	used  atomic.Int32
}

func NewCountTable(opts ...CountTableOption) (*CountTable, error) {
	t := &CountTable{}

	capacity := DefaultMaxStackCounts
	for _, f := range opts {
		f(&capacity)
	}
	if capacity <= 0 {
		return nil, ErrBadCapacity
	}
	t.slots = make([]countSlot, capacity)

	return t, nil
}

type CountTableOption func(capacity *int)

func WithCountTableCapacity(capacity int) CountTableOption {
	return func(c *int) {
		*c = capacity
	}
}

// LookupOrInit returns the counter stored for key, inserting a fresh
// one initialized to init when the key is unseen. It returns nil when
// the table is at capacity and the key is new; existing rows are never
// evicted or overwritten. First insertions racing on the same key from
// multiple CPUs resolve onto a single row.
func (t *CountTable) LookupOrInit(key StackCountKey, init uint64) *Counter {
	capacity := uint64(len(t.slots))
	base := hashKey(key)

	for i := uint64(0); i < capacity; i++ {
		slot := &t.slots[(base+i)%capacity]

		for {
			switch slot.state.Load() {
			case slotEmpty:
				if !slot.state.CompareAndSwap(slotEmpty, slotReserved) {
					// Lost the reservation race, re-read the state.
					continue
				}
				slot.key = key
				slot.count.v.Store(init)
				slot.state.Store(slotReady)
				t.used.Add(1)

				return &slot.count
			case slotReserved:
				// The reserving CPU publishes the key within a few
				// instructions; wait for it to compare keys.
				continue
			default:
				if slot.key == key {
					return &slot.count
				}
			}

			break // probe the next row
		}
	}

	return nil
}

// Iterate calls fn for every populated row until fn returns false. It
// is snapshot-style safe while samplers keep inserting and
// incrementing: rows are read through the same atomic publication the
// writers use, and counters are loaded atomically.
func (t *CountTable) Iterate(fn func(key StackCountKey, count uint64) bool) {
	for i := range t.slots {
		slot := &t.slots[i]
		if slot.state.Load() != slotReady {
			continue
		}
		if !fn(slot.key, slot.count.Load()) {
			return
		}
	}
}

// Len returns the number of distinct keys currently stored.
func (t *CountTable) Len() int {
	return int(t.used.Load())
}

// Cap returns the maximum number of distinct keys the table holds.
func (t *CountTable) Cap() int {
	return len(t.slots)
}

// Reset clears every row. Like StackTable.Reset it is meant for
// exporter-driven rotation with the sampling source quiesced.
func (t *CountTable) Reset() {
	for i := range t.slots {
		t.slots[i].count.v.Store(0)
		t.slots[i].state.Store(slotEmpty)
	}
	t.used.Store(0)
}

func hashKey(key StackCountKey) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:], key.PID)
	binary.LittleEndian.PutUint32(buf[4:], uint32(key.UserStackID))
	binary.LittleEndian.PutUint32(buf[8:], uint32(key.KernelStackID))

	return xxhash.Sum64(buf[:])
}
