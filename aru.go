// Package aru coordinates asynchronous reads and updates against a shared
// structure under a reader/writer discipline, without a dedicated worker:
// every goroutine that submits an operation also helps drain the pending
// ones. An update runs after everything submitted before it; a read runs
// after every earlier update, concurrently with other reads.
//
// Callbacks must be bounded and must not call back into the same ARU.
package aru

import (
	"sync/atomic"
	"unsafe"

	"github.com/minseok127/aru/atomsnap"
)

// ARU is one coordination instance. Operations submitted against different
// instances are independent.
//
// New nodes are exchanged into head; the oldest live node is tracked by the
// current tail version held in the gate. tailMoveFlag is the single-mover
// token for advancing the tail; tailInitFlag flips to 1 once the very first
// tail version is installed.
type ARU struct {
	head         unsafe.Pointer // *node
	_            [7]uint64
	tail         *atomsnap.Gate
	tailMoveFlag atomic.Uint32
	tailInitFlag atomic.Uint32
}

// New creates an empty coordinator.
func New() *ARU {
	a := &ARU{}
	a.tail = atomsnap.NewGate(allocTailVersion, freeTailVersion)
	return a
}

// Close tears down the coordinator, unlinking every remaining node through
// the gate. All submitted operations must have completed: closing with
// pending operations is not supported. Close tolerates a nil receiver.
func (a *ARU) Close() {
	if a == nil {
		return
	}
	a.tail.Close()
	atomic.StorePointer(&a.head, nil)
}

// Update submits callback to run exclusively: it starts only after every
// operation submitted before it has finished, and no other update runs at
// the same time. The call returns once the submitting goroutine has drained
// what it can; the callback itself may run later on another submitter.
//
// If tag is non-nil it is set to Pending now and to Done after the callback
// returns; poll it with Tag.Load.
func (a *ARU) Update(tag *Tag, callback func(args any), args any) {
	a.submit(kindUpdate, tag, callback, args)
}

// Read submits callback to run after every update submitted before it.
// Reads do not wait for earlier reads, so reads run concurrently.
func (a *ARU) Read(tag *Tag, callback func(args any), args any) {
	a.submit(kindRead, tag, callback, args)
}

func (a *ARU) submit(k kind, tag *Tag, callback func(args any), args any) {
	n := &node{
		callback: callback,
		args:     args,
		userTag:  tag,
		kind:     k,
	}
	if tag != nil {
		atomic.StoreUint32((*uint32)(tag), uint32(Pending))
	}
	a.insertNodeAndExecute(n)
}

// Sync contributes the calling goroutine's cycles to draining pending
// operations without submitting anything. Useful when a caller is waiting
// on a tag and fewer goroutines are submitting than reading.
func (a *ARU) Sync() {
	if a.tailInitFlag.Load() == 0 {
		return
	}

	fetchedTailMoveFlag := uint32(1)
	if a.tailMoveFlag.Load() == 0 && a.tailMoveFlag.CompareAndSwap(0, 1) {
		fetchedTailMoveFlag = 0
	}

	v := a.tail.Acquire()
	if v == nil {
		if fetchedTailMoveFlag == 0 {
			a.tailMoveFlag.Store(0)
		}
		return
	}
	tail := asTailVersion(v)

	a.executeNodesAndAdjustTail(tail, fetchedTailMoveFlag, nil)

	tail.Release()

	if fetchedTailMoveFlag == 0 {
		a.tailMoveFlag.Store(0)
	}
}

// insertNodeAndExecute atomically inserts the node at the head of the list,
// then executes as many pending operations as possible starting from the
// tail.
//
// The mover token must be taken before the tail version is pinned: with the
// order reversed, a pinned version could predate a concurrent tail move by
// the token's previous holder, and this call would move the tail backwards.
// The CAS and the head exchange below are both sequentially consistent, so
// the token acquisition is ordered before the exchange.
func (a *ARU) insertNodeAndExecute(n *node) {
	fetchedTailMoveFlag := uint32(1)
	if a.tailMoveFlag.Load() == 0 && a.tailMoveFlag.CompareAndSwap(0, 1) {
		fetchedTailMoveFlag = 0
	}

	prevHead := atomic.SwapPointer(&a.head, unsafe.Pointer(n))

	// prevHead is nil only for the first node inserted after New. After
	// that, head is never nil again for the lifetime of the coordinator.
	if prevHead == nil {
		tail := asTailVersion(a.tail.MakeVersion())

		tail.headNode = nil
		tail.tailNode = n

		a.tail.Exchange(&tail.Version)

		a.tailInitFlag.Store(1)
	} else {
		atomic.StorePointer(&n.prev, prevHead)
		atomic.StorePointer(&(*node)(prevHead).next, unsafe.Pointer(n))

		// The first inserter may have exchanged the head but not yet
		// installed the initial tail version.
		w := 0
		for a.tailInitFlag.Load() == 0 {
			spin(&w)
		}
	}

	tail := asTailVersion(a.tail.Acquire())

	a.executeNodesAndAdjustTail(tail, fetchedTailMoveFlag, n)

	tail.Release()

	if fetchedTailMoveFlag == 0 {
		a.tailMoveFlag.Store(0)
	}
}

// executeNodesAndAdjustTail traverses from the tail toward the most recent
// node, attempting each pending callback.
//
// Insertion is lock-free, so a next pointer may transiently be nil: any node
// before insertedNode already has a successor, whose own submission writes
// this node's next pointer, so the link shows up soon and is worth spinning
// for. From insertedNode on no such promise holds and a nil next means the
// end of the list.
//
// head never becomes nil again after the first insertion, so the node the
// traversal last stepped over is always a valid new tail.
func (a *ARU) executeNodesAndAdjustTail(tail *tailVersion,
	fetchedTailMoveFlag uint32, insertedNode *node) {

	n := tail.tailNode
	prevNode := n
	afterInsertedNode := insertedNode == nil

	for n != nil {
		// Past this point next pointers carry no soon-to-be-set promise.
		if n == insertedNode {
			afterInsertedNode = true
		}

		if Tag(n.tag.Load()) == Pending &&
			executeNode(n, tail.tailNode) == breakLoop {
			break
		}

		if afterInsertedNode {
			prevNode = n
			n = n.loadNext()
		} else {
			w := 0
			for n.loadNext() == nil {
				spin(&w)
			}

			prevNode = n
			n = n.loadNext()
		}
	}

	if fetchedTailMoveFlag == 0 && prevNode != tail.tailNode {
		a.adjustTail(tail, prevNode)
	}
}

// adjustTail installs a new tail version covering [newTailNode, head).
// Exchanging the gate starts the grace period of prevTail; the caller's
// pinned reference keeps prevTail alive past the two stores below, so the
// free callback always observes the forward link and the range end.
func (a *ARU) adjustTail(prevTail *tailVersion, newTailNode *node) {
	tail := asTailVersion(a.tail.MakeVersion())

	atomic.StoreUintptr(&tail.prev, uintptr(unsafe.Pointer(prevTail)))
	tail.storeNext(nil)

	tail.headNode = nil
	tail.tailNode = newTailNode

	a.tail.Exchange(&tail.Version)

	prevTail.storeNext(tail)
	prevTail.headNode = newTailNode.loadPrev()
}
