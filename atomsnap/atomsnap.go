// Package atomsnap provides a versioned-snapshot gate: a single atomically
// exchangeable "current version" slot with grace-period reclamation.
//
// Readers pin the current version with Acquire and unpin it with Release.
// A writer installs a new version with Exchange; the superseded version is
// handed to the gate's free callback only after its last reference is gone.
// Version objects are allocated by the caller-supplied alloc function so that
// callers can embed Version at the start of a larger struct and recover the
// outer struct inside the free callback.
package atomsnap

import (
	"sync/atomic"
	"unsafe"
)

// Version is one snapshot generation. Embed it as the first field of the
// struct returned by the gate's alloc function.
type Version struct {
	refs atomic.Int64
	gate *Gate
}

// Gate holds the current version and the allocation hooks.
//
// gate.current can be in 2 states:
// gate.current == nil: no version installed yet, initial state.
// gate.current == pointer to the most recently exchanged Version.
type Gate struct {
	current unsafe.Pointer // *Version
	_       [7]uint64
	alloc   func() *Version
	free    func(*Version)
}

// NewGate creates a gate with the given allocation hooks.
func NewGate(alloc func() *Version, free func(*Version)) *Gate {
	if alloc == nil || free == nil {
		panic("atomsnap: alloc and free must be non-nil")
	}
	return &Gate{alloc: alloc, free: free}
}

// MakeVersion allocates a fresh version through the gate's alloc function.
// The version starts with a single reference which is consumed when the
// version is superseded by a later Exchange, or by Close.
func (g *Gate) MakeVersion() *Version {
	v := g.alloc()
	v.gate = g
	v.refs.Store(1)
	return v
}

// Exchange installs v as the current version. The previously installed
// version enters its grace period: once every Acquire of it has been
// Released, the gate's free callback runs for it exactly once.
func (g *Gate) Exchange(v *Version) {
	old := (*Version)(atomic.SwapPointer(&g.current, unsafe.Pointer(v)))
	if old != nil {
		old.Release()
	}
}

// Acquire pins the current version and returns it. The returned version is
// the currently installed one or one that was installed recently; either way
// its free callback has not started and cannot start until Release.
//
// Acquire returns nil only before the first Exchange.
func (g *Gate) Acquire() *Version {
	for {
		p := atomic.LoadPointer(&g.current)
		if p == nil {
			return nil
		}
		v := (*Version)(p)
		if v.tryRef() {
			return v
		}
	}
}

// tryRef takes a reference unless the count already reached zero. A version
// at zero is in the hands of the free callback and must not come back.
func (v *Version) tryRef() bool {
	for {
		r := v.refs.Load()
		if r <= 0 {
			return false
		}
		if v.refs.CompareAndSwap(r, r+1) {
			return true
		}
	}
}

// Release unpins the version. The last reference triggers the gate's free
// callback on the calling goroutine.
func (v *Version) Release() {
	if v.refs.Add(-1) == 0 {
		v.gate.free(v)
	}
}

// Close drops the gate's reference to the current version, if any. Once the
// remaining acquirers release, the free callback runs for it. The gate must
// not be used after Close.
func (g *Gate) Close() {
	old := (*Version)(atomic.SwapPointer(&g.current, nil))
	if old != nil {
		old.Release()
	}
}
