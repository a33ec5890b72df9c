// Package hw implements the opaque hardware cost accumulator the index core
// charges its reads and writes to. The counters are not part of correctness;
// they feed the hosting engine's cost-based accounting. Every read site
// reports the number of bytes it touched.
package hw

import "sync/atomic"

// CounterCell accumulates I/O cost attributed to payload index operations.
// All methods are safe for concurrent use and safe on a nil receiver, so call
// sites never need to guard against a missing counter.
type CounterCell struct {
	payloadIndexIORead  atomic.Uint64
	payloadIndexIOWrite atomic.Uint64
}

// NewCounterCell creates a fresh zeroed counter.
func NewCounterCell() *CounterCell {
	return &CounterCell{}
}

// IncrPayloadIndexIORead charges delta bytes of index read cost.
func (c *CounterCell) IncrPayloadIndexIORead(delta int) {
	if c == nil || delta <= 0 {
		return
	}
	c.payloadIndexIORead.Add(uint64(delta))
}

// IncrPayloadIndexIOWrite charges delta bytes of index write cost.
func (c *CounterCell) IncrPayloadIndexIOWrite(delta int) {
	if c == nil || delta <= 0 {
		return
	}
	c.payloadIndexIOWrite.Add(uint64(delta))
}

// PayloadIndexIORead returns the accumulated read cost in bytes.
func (c *CounterCell) PayloadIndexIORead() uint64 {
	if c == nil {
		return 0
	}
	return c.payloadIndexIORead.Load()
}

// PayloadIndexIOWrite returns the accumulated write cost in bytes.
func (c *CounterCell) PayloadIndexIOWrite() uint64 {
	if c == nil {
		return 0
	}
	return c.payloadIndexIOWrite.Load()
}

// ConditionedCounter wraps a CounterCell and only applies charges when the
// underlying storage is on disk. RAM-resident indexes serve reads from page
// cache the engine already paid for, so their lookups are free by policy.
type ConditionedCounter struct {
	applies bool
	cell    *CounterCell
}

// NewConditionedCounter builds a counter view conditioned on storage placement.
func NewConditionedCounter(onDisk bool, cell *CounterCell) ConditionedCounter {
	return ConditionedCounter{applies: onDisk, cell: cell}
}

// IncrRead charges delta bytes of read cost when the condition applies.
func (cc ConditionedCounter) IncrRead(delta int) {
	if cc.applies {
		cc.cell.IncrPayloadIndexIORead(delta)
	}
}

// IncrWrite charges delta bytes of write cost when the condition applies.
func (cc ConditionedCounter) IncrWrite(delta int) {
	if cc.applies {
		cc.cell.IncrPayloadIndexIOWrite(delta)
	}
}
