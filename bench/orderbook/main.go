// Command orderbook runs the adversarial order-book workload for a fixed
// duration: updater goroutines rewrite whole books, reader goroutines assert
// every book they see is uniform. Any mismatch means a torn write escaped
// the coordinator.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minseok127/aru"
	"github.com/minseok127/aru/orderbook"
)

func main() {
	var (
		books    = flag.Int("books", 64, "number of books, one coordinator each")
		updaters = flag.Int("updaters", 1, "updating goroutines")
		readers  = flag.Int("readers", 8, "reading goroutines")
		duration = flag.Duration("duration", 2*time.Second, "run time")
	)
	flag.Parse()

	market := orderbook.NewMarket(*books)

	var stop atomic.Bool
	var wg sync.WaitGroup

	for u := 0; u < *updaters; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(u) + 1))
			for !stop.Load() {
				bookID := rng.Intn(*books)
				data, err := orderbook.EncodeSnapshot(bookID, rng)
				if err != nil {
					log.Fatal(err)
				}
				market.SubmitUpdate(bookID, nil, data)
			}
		}(u)
	}
	for r := 0; r < *readers; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(r) + 1000))
			for !stop.Load() {
				market.SubmitRead(rng.Intn(*books), nil)
			}
		}(r)
	}

	time.Sleep(*duration)
	stop.Store(true)
	wg.Wait()

	quiesce(market)
	market.Close()

	fmt.Printf("updates: %d\n", market.Updates.Load())
	fmt.Printf("reads:   %d\n", market.Reads.Load())

	if err := market.Verify(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// quiesce rides one sentinel update per book; once it completes, everything
// submitted to that book before it has completed too.
func quiesce(m *orderbook.Market) {
	rng := rand.New(rand.NewSource(0))
	for id, b := range m.Books {
		data, err := orderbook.EncodeSnapshot(id, rng)
		if err != nil {
			log.Fatal(err)
		}
		var tag aru.Tag
		m.SubmitUpdate(id, &tag, data)
		for tag.Load() != aru.Done {
			b.Sync()
			runtime.Gosched()
		}
	}
}
