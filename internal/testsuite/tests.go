package testsuite

import (
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/minseok127/aru"
	"github.com/minseok127/aru/orderbook"
)

func RunTests(t *testing.T, setup *Setup) {
	t.Helper()
	setup.Test(t, "Counter", testCounter)
	setup.Test(t, "CounterMixedReads", testCounterMixedReads)
	setup.Test(t, "OrderBook", testOrderBook)
}

// testCounter submits only updates: increments of a plain (non-atomic)
// shared counter. Update exclusivity is what keeps the race detector quiet
// and the final count exact.
func testCounter(t *testing.T, setup *Setup) {
	a := aru.New()
	defer a.Close()

	var counter int64
	tags := make([]*aru.Tag, setup.Procs*setup.Ops)
	for i := range tags {
		tags[i] = new(aru.Tag)
	}

	var wg sync.WaitGroup
	wg.Add(setup.Procs)
	for proc := 0; proc < setup.Procs; proc++ {
		go func(proc int) {
			defer wg.Done()
			for i := 0; i < setup.Ops; i++ {
				a.Update(tags[proc*setup.Ops+i], func(any) {
					counter++
				}, nil)
			}
		}(proc)
	}
	wg.Wait()

	Quiesce(a, tags...)
	require.Equal(t, int64(setup.Procs*setup.Ops), counter)
}

// testCounterMixedReads interleaves reads that snapshot the counter. A read
// submitted after a goroutine's i-th update must observe at least i
// increments, since every earlier update completes before the read runs.
func testCounterMixedReads(t *testing.T, setup *Setup) {
	a := aru.New()
	defer a.Close()

	var counter int64
	total := int64(setup.Procs * setup.Ops)

	observed := make([][]int64, setup.Procs)
	tags := make([][]*aru.Tag, setup.Procs)
	for proc := range observed {
		observed[proc] = make([]int64, setup.Ops)
		tags[proc] = make([]*aru.Tag, setup.Ops)
		for i := range tags[proc] {
			tags[proc][i] = new(aru.Tag)
		}
	}

	var wg sync.WaitGroup
	wg.Add(setup.Procs)
	for proc := 0; proc < setup.Procs; proc++ {
		go func(proc int) {
			defer wg.Done()
			for i := 0; i < setup.Ops; i++ {
				a.Update(nil, func(any) { counter++ }, nil)

				slot := &observed[proc][i]
				a.Read(tags[proc][i], func(any) {
					*slot = counter
				}, nil)
			}
		}(proc)
	}
	wg.Wait()

	for proc := range tags {
		Quiesce(a, tags[proc]...)
	}

	for proc := range observed {
		for i, got := range observed[proc] {
			require.GreaterOrEqual(t, got, int64(i+1),
				"read %d of proc %d ran before its preceding updates", i, proc)
			require.LessOrEqual(t, got, total)
		}
	}
}

// testOrderBook mirrors the order-book harness: every update rewrites all
// levels of one book to a single quantity, every read asserts the book is
// uniform. One coordinator per book, books chosen at random.
func testOrderBook(t *testing.T, setup *Setup) {
	market := orderbook.NewMarket(setup.Books)
	defer market.Close()

	tags := make([][]*aru.Tag, setup.Procs)
	for proc := range tags {
		tags[proc] = make([]*aru.Tag, setup.Ops)
		for i := range tags[proc] {
			tags[proc][i] = new(aru.Tag)
		}
	}

	var group errgroup.Group
	for proc := 0; proc < setup.Procs; proc++ {
		proc := proc
		rng := rand.New(rand.NewSource(int64(proc) + 1))
		group.Go(func() error {
			for i := 0; i < setup.Ops; i++ {
				bookID := rng.Intn(setup.Books)
				if rng.Intn(2) == 0 {
					data, err := orderbook.EncodeSnapshot(bookID, rng)
					if err != nil {
						return err
					}
					market.SubmitUpdate(bookID, tags[proc][i], data)
				} else {
					market.SubmitRead(bookID, tags[proc][i])
				}
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())

	for proc := range tags {
		for _, tag := range tags[proc] {
			for tag.Load() != aru.Done {
				for _, b := range market.Books {
					b.Sync()
				}
				runtime.Gosched()
			}
		}
	}

	require.NoError(t, market.Verify())
	require.Equal(t, int64(setup.Procs*setup.Ops),
		market.Updates.Load()+market.Reads.Load())
}
