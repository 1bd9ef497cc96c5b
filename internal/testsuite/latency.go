package testsuite

import (
	"sync"
	"time"

	"github.com/loov/hrtime"

	"github.com/minseok127/aru"
)

// MeasureLatency runs Procs goroutines each submitting counter updates
// against one coordinator, capturing per-submission latency with the TSC.
// Returns one lap slice per goroutine.
func MeasureLatency(setup *Setup) [][]time.Duration {
	a := aru.New()
	defer a.Close()

	var counter int64
	benchmarks := make([]*hrtime.BenchmarkTSC, setup.Procs)
	for i := range benchmarks {
		benchmarks[i] = hrtime.NewBenchmarkTSC(setup.Ops)
	}

	var wg sync.WaitGroup
	wg.Add(setup.Procs)

	for proc := 0; proc < setup.Procs; proc++ {
		go func(bench *hrtime.BenchmarkTSC) {
			defer wg.Done()
			for bench.Next() {
				a.Update(nil, func(any) { counter++ }, nil)
			}
		}(benchmarks[proc])
	}
	wg.Wait()

	QuiesceAll(a)

	results := make([][]time.Duration, setup.Procs)
	for i, bench := range benchmarks {
		results[i] = bench.Laps()
	}
	return results
}
