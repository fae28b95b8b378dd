package util

import "sync/atomic"

// Fence hands out monotonically increasing tickets so that a late result
// can tell whether a newer request has been issued since it started.
type Fence struct {
	seq atomic.Uint64
}

// Next issues a new ticket, superseding every earlier one.
func (f *Fence) Next() uint64 {
	return f.seq.Add(1)
}

// Current is the most recently issued ticket.
func (f *Fence) Current() uint64 {
	return f.seq.Load()
}

// IsLatest reports whether ticket is still the newest.
func (f *Fence) IsLatest(ticket uint64) bool {
	return f.seq.Load() == ticket
}
