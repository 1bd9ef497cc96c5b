package aru

import (
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// link chains nodes oldest to newest through their prev and next pointers.
func link(nodes ...*node) {
	for i := 1; i < len(nodes); i++ {
		nodes[i].prev = unsafe.Pointer(nodes[i-1])
		nodes[i-1].next = unsafe.Pointer(nodes[i])
	}
}

func newTestNode(k kind, ran *bool) *node {
	return &node{
		kind:     k,
		callback: func(any) { *ran = true },
	}
}

func markDone(n *node) {
	n.lock.Store(1)
	n.tag.Store(uint32(Done))
}

func TestExecuteNodeNoPredecessors(t *testing.T) {
	var ran bool
	n := newTestNode(kindUpdate, &ran)

	require.Equal(t, tryNext, executeNode(n, n))
	require.True(t, ran)
	require.Equal(t, Done, Tag(n.tag.Load()))
}

// The tail node participates in the dependency check: an update directly
// after a pending tail node must wait for it.
func TestDependencyIncludesTailNode(t *testing.T) {
	var tailRan, ran bool
	tail := newTestNode(kindUpdate, &tailRan)
	n := newTestNode(kindUpdate, &ran)
	link(tail, n)

	require.Equal(t, breakLoop, executeNode(n, tail))
	require.False(t, ran)

	markDone(tail)
	require.Equal(t, tryNext, executeNode(n, tail))
	require.True(t, ran)
}

func TestUpdateWaitsForIntermediateRead(t *testing.T) {
	var ran bool
	tail := newTestNode(kindUpdate, new(bool))
	markDone(tail)
	mid := newTestNode(kindRead, new(bool))
	n := newTestNode(kindUpdate, &ran)
	link(tail, mid, n)

	require.Equal(t, breakLoop, executeNode(n, tail))
	require.False(t, ran)

	markDone(mid)
	require.Equal(t, tryNext, executeNode(n, tail))
	require.True(t, ran)
}

func TestReadIgnoresPendingReads(t *testing.T) {
	var ran bool
	tail := newTestNode(kindRead, new(bool)) // pending, still being run elsewhere
	tail.lock.Store(1)
	mid := newTestNode(kindRead, new(bool))
	mid.lock.Store(1)
	n := newTestNode(kindRead, &ran)
	link(tail, mid, n)

	require.Equal(t, tryNext, executeNode(n, tail))
	require.True(t, ran)
}

func TestReadWaitsForPendingUpdate(t *testing.T) {
	var ran bool
	tail := newTestNode(kindUpdate, new(bool))
	n := newTestNode(kindRead, &ran)
	link(tail, n)

	require.Equal(t, breakLoop, executeNode(n, tail))
	require.False(t, ran)

	markDone(tail)
	require.Equal(t, tryNext, executeNode(n, tail))
	require.True(t, ran)
}

// A lost lock race means someone else runs the callback; the loser moves on
// without touching the node.
func TestLockLoserSkipsNode(t *testing.T) {
	var ran bool
	n := newTestNode(kindUpdate, &ran)
	n.lock.Store(1)

	require.Equal(t, tryNext, executeNode(n, n))
	require.False(t, ran)
	require.Equal(t, Pending, Tag(n.tag.Load()))
}

func makeRange(count int) (*tailVersion, []*node) {
	nodes := make([]*node, count)
	for i := range nodes {
		nodes[i] = newTestNode(kindUpdate, new(bool))
		markDone(nodes[i])
	}
	link(nodes...)
	tv := asTailVersion(allocTailVersion())
	tv.tailNode = nodes[0]
	tv.headNode = nodes[count-1]
	return tv, nodes
}

func cleared(n *node) bool {
	return atomic.LoadPointer(&n.prev) == nil && atomic.LoadPointer(&n.next) == nil
}

// Releasing the oldest version unlinks its range and hands the list end to
// the still-live successor.
func TestFreeCascadeInOrder(t *testing.T) {
	v1, nodes1 := makeRange(3)
	v2, nodes2 := makeRange(2)
	atomic.StoreUintptr(&v2.prev, uintptr(unsafe.Pointer(v1)))
	v1.storeNext(v2)

	freeTailVersion(&v1.Version)
	for _, n := range nodes1 {
		require.True(t, cleared(n))
	}
	for _, n := range nodes2 {
		require.False(t, cleared(n))
	}
	require.Zero(t, atomic.LoadUintptr(&v2.prev))

	freeTailVersion(&v2.Version)
	for _, n := range nodes2 {
		require.True(t, cleared(n))
	}
}

// Releasing out of order defers the newer range until the older one goes,
// then one cascade reclaims both.
func TestFreeCascadeReverseRelease(t *testing.T) {
	v1, nodes1 := makeRange(2)
	v2, nodes2 := makeRange(2)
	atomic.StoreUintptr(&v2.prev, uintptr(unsafe.Pointer(v1)))
	v1.storeNext(v2)

	freeTailVersion(&v2.Version)
	for _, n := range nodes2 {
		require.False(t, cleared(n))
	}

	freeTailVersion(&v1.Version)
	for _, n := range nodes1 {
		require.True(t, cleared(n))
	}
	for _, n := range nodes2 {
		require.True(t, cleared(n))
	}
}

func TestFirstInsertInstallsTail(t *testing.T) {
	a := New()
	defer a.Close()

	require.Zero(t, a.tailInitFlag.Load())

	var tag Tag
	a.Update(&tag, func(any) {}, nil)

	require.Equal(t, uint32(1), a.tailInitFlag.Load())
	require.Equal(t, Done, tag.Load())
	require.NotNil(t, atomic.LoadPointer(&a.head))
}

// Draining a batch submitted by one goroutine advances the tail up to the
// newest node, retiring the earlier versions.
func TestAdjustTailAdvances(t *testing.T) {
	a := New()
	defer a.Close()

	for i := 0; i < 4; i++ {
		a.Update(nil, func(any) {}, nil)
	}

	tail := asTailVersion(a.tail.Acquire())
	head := (*node)(atomic.LoadPointer(&a.head))
	require.Equal(t, head, tail.tailNode)
	tail.Release()
}

func TestSyncBeforeFirstSubmission(t *testing.T) {
	a := New()
	defer a.Close()
	a.Sync()
}
