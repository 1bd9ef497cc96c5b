// Command latencyplot renders latency.zgob (written by the latency command)
// into latency.svg: one latency density per goroutine count.
package main

import (
	"bufio"
	"compress/zlib"
	"encoding/gob"
	"image/color"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/loov/plot"
	"github.com/loov/plot/plotsvg"

	"github.com/minseok127/aru/internal/testsuite"
)

func main() {
	inputfile, err := os.Open("latency.zgob")
	if err != nil {
		log.Fatal(err)
	}
	defer inputfile.Close()

	bufferedfile := bufio.NewReader(inputfile)

	decompressor, err := zlib.NewReader(bufferedfile)
	if err != nil {
		log.Fatal(err)
	}
	defer decompressor.Close()

	dec := gob.NewDecoder(decompressor)

	type Result struct {
		testsuite.Setup
		Results [][]time.Duration
	}
	results := make([]Result, 0, 16)

	for {
		var r Result
		if err := dec.Decode(&r.Setup); err != nil {
			break
		}
		if err := dec.Decode(&r.Results); err != nil {
			break
		}
		results = append(results, r)
	}

	p := plot.New()
	stack := plot.NewVStack()
	stack.Margin = plot.R(0, 5, 0, 5)
	p.Add(stack)

	rows := 0.0
	for _, result := range results {
		row := plot.NewHFlex()
		stack.Add(row)
		row.Add(100, plot.NewTextbox("P"+strconv.Itoa(result.Procs)))

		group := plot.NewAxisGroup()
		row.Add(0, group)
		group.Add(plot.NewGrid())

		all := []float64{}
		for _, laps := range result.Results {
			all = append(all, plot.DurationToNanoseconds(laps)...)
		}

		density := plot.NewDensity("", all)
		density.Stroke = color.NRGBA{255, 0, 0, 255}
		group.Add(density)
		group.Add(plot.NewTickLabels())
		group.Update()

		rows++
	}

	svg := plotsvg.New(800, 150*rows)
	p.Draw(svg)
	if err := os.WriteFile("latency.svg", svg.Bytes(), 0755); err != nil {
		log.Fatal(err)
	}
}
