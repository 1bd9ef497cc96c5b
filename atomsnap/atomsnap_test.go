package atomsnap_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minseok127/aru/atomsnap"
)

func newCountingGate() (*atomsnap.Gate, *atomic.Int64) {
	freed := new(atomic.Int64)
	g := atomsnap.NewGate(
		func() *atomsnap.Version { return new(atomsnap.Version) },
		func(*atomsnap.Version) { freed.Add(1) },
	)
	return g, freed
}

func TestAcquireBeforeExchange(t *testing.T) {
	g, _ := newCountingGate()
	require.Nil(t, g.Acquire())
}

func TestExchangeFreesSuperseded(t *testing.T) {
	g, freed := newCountingGate()

	v1 := g.MakeVersion()
	g.Exchange(v1)
	require.Zero(t, freed.Load())

	v2 := g.MakeVersion()
	g.Exchange(v2)
	require.Equal(t, int64(1), freed.Load())

	g.Close()
	require.Equal(t, int64(2), freed.Load())
}

func TestAcquireDefersFree(t *testing.T) {
	g, freed := newCountingGate()

	v1 := g.MakeVersion()
	g.Exchange(v1)

	pinned := g.Acquire()
	require.Same(t, v1, pinned)

	g.Exchange(g.MakeVersion())
	require.Zero(t, freed.Load(), "free ran while still pinned")

	pinned.Release()
	require.Equal(t, int64(1), freed.Load())

	g.Close()
	require.Equal(t, int64(2), freed.Load())
}

func TestAcquireReturnsLatest(t *testing.T) {
	g, _ := newCountingGate()

	v1 := g.MakeVersion()
	g.Exchange(v1)
	v2 := g.MakeVersion()
	g.Exchange(v2)

	pinned := g.Acquire()
	require.Same(t, v2, pinned)
	pinned.Release()
	g.Close()
}

func TestCloseWithoutExchange(t *testing.T) {
	g, freed := newCountingGate()
	g.Close()
	require.Zero(t, freed.Load())
}

// Every version must be freed exactly once, no matter how acquirers and the
// exchanger interleave.
func TestConcurrentAcquireRelease(t *testing.T) {
	const (
		procs     = 8
		acquires  = 10000
		exchanges = 1000
	)

	g, freed := newCountingGate()
	g.Exchange(g.MakeVersion())

	var wg sync.WaitGroup
	wg.Add(procs + 1)

	go func() {
		defer wg.Done()
		for i := 0; i < exchanges; i++ {
			g.Exchange(g.MakeVersion())
		}
	}()
	for p := 0; p < procs; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < acquires; i++ {
				v := g.Acquire()
				v.Release()
			}
		}()
	}
	wg.Wait()

	g.Close()
	require.Equal(t, int64(exchanges+1), freed.Load())
}
