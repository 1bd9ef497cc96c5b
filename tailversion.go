package aru

import (
	"sync/atomic"
	"unsafe"

	"github.com/minseok127/aru/atomsnap"
)

// tailVersion covers the lifetime of a contiguous range of nodes
// [tailNode, headNode]. The range is retired when a later tail version
// supersedes this one; the nodes are unlinked only after every traverser
// pinning this version has released it, and only once every earlier range
// has been unlinked, so nodes go away strictly in insertion order.
//
// prev doubles as the release flag: the low bit is set by the free callback
// when this version's grace period ends. A version whose prev is zero with
// the release bit clear is the oldest live version.
type tailVersion struct {
	atomsnap.Version

	prev     uintptr        // *tailVersion | releasedBit
	next     unsafe.Pointer // *tailVersion
	headNode *node
	tailNode *node
}

const releasedBit = uintptr(1)

func allocTailVersion() *atomsnap.Version {
	return &new(tailVersion).Version
}

// asTailVersion recovers the outer struct; Version is the first field.
func asTailVersion(v *atomsnap.Version) *tailVersion {
	return (*tailVersion)(unsafe.Pointer(v))
}

func (tv *tailVersion) loadNext() *tailVersion {
	return (*tailVersion)(atomic.LoadPointer(&tv.next))
}

func (tv *tailVersion) storeNext(next *tailVersion) {
	atomic.StorePointer(&tv.next, unsafe.Pointer(next))
}

// fetchOrPrev sets bits in tv.prev and returns the previous value.
func (tv *tailVersion) fetchOrPrev(bits uintptr) uintptr {
	for {
		old := atomic.LoadUintptr(&tv.prev)
		if atomic.CompareAndSwapUintptr(&tv.prev, old, old|bits) {
			return old
		}
	}
}

// freeTailVersion runs when the last reference to a tail version is
// released. Marking released happens unconditionally; the actual unlinking
// is done only by the version that is the end of the version list, which
// then cascades forward over every contiguous already-released successor.
// The prev-pointer CAS below guarantees exactly one goroutine unlinks each
// range.
func freeTailVersion(v *atomsnap.Version) {
	tv := asTailVersion(v)

	if tv.fetchOrPrev(releasedBit) != 0 {
		// An earlier version is still live; it will cascade into this
		// range when its turn comes.
		return
	}

	for {
		// This range is the end of the list. Sever the links so the
		// collector can reclaim the nodes. Tags are monotonic, so a
		// traverser racing down a prev chain into this range only ever
		// observes done nodes and a shortening chain.
		n := tv.tailNode
		for n != nil && n != tv.headNode {
			next := n.loadNext()
			atomic.StorePointer(&n.prev, nil)
			atomic.StorePointer(&n.next, nil)
			n = next
		}
		if n != nil {
			atomic.StorePointer(&n.prev, nil)
			atomic.StorePointer(&n.next, nil)
		}

		next := tv.loadNext()
		if next == nil {
			// Final version, reached only through Gate.Close.
			return
		}

		prev := atomic.LoadUintptr(&next.prev)
		if prev&releasedBit != 0 {
			tv = next
			continue
		}
		if atomic.CompareAndSwapUintptr(&next.prev, prev, 0) {
			// The successor is still live; it now owns the list end.
			return
		}
		// The successor released concurrently; keep cascading.
		tv = next
	}
}
