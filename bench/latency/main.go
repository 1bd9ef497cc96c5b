// Command latency measures per-submission latency of the coordinator across
// a matrix of goroutine counts and writes the raw laps to latency.zgob for
// the latencyplot command.
package main

import (
	"bufio"
	"compress/zlib"
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/minseok127/aru/internal/testsuite"
)

func main() {
	outputfile, err := os.Create("latency.zgob")
	if err != nil {
		log.Fatal(err)
	}
	defer outputfile.Close()

	bufferedfile := bufio.NewWriter(outputfile)
	defer bufferedfile.Flush()

	compressor := zlib.NewWriter(bufferedfile)
	defer compressor.Close()

	enc := gob.NewEncoder(compressor)

	params := testsuite.Params{
		Procs: []int{1, 4, 32, 256},
		Ops:   []int{1000},
		Books: []int{1},
	}

	params.Iterate(func(setup *testsuite.Setup) {
		fmt.Print(setup.FullName("latency"), "\t")

		results := testsuite.MeasureLatency(setup)

		if err := enc.Encode(setup); err != nil {
			log.Fatal(err)
		}
		if err := enc.Encode(results); err != nil {
			log.Fatal(err)
		}

		average := time.Duration(0)
		count := 0
		for _, laps := range results {
			for _, lap := range laps {
				average += lap
			}
			count += len(laps)
		}
		fmt.Println(average / time.Duration(count))
	})
}
