//go:build ignore

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/loov/hrtime"

	"github.com/minseok127/aru"
)

const (
	P = 100
	N = 1000
)

type CoordinatedCounter struct {
	coord *aru.ARU
	value int64
}

func NewCoordinatedCounter() *CoordinatedCounter {
	return &CoordinatedCounter{coord: aru.New()}
}

func (c *CoordinatedCounter) Increment() {
	c.coord.Update(nil, func(any) { c.value++ }, nil)
}

func (c *CoordinatedCounter) Quiesce() {
	var tag aru.Tag
	c.coord.Update(&tag, func(any) {}, nil)
	for tag.Load() != aru.Done {
		c.coord.Sync()
	}
}

type MutexCounter struct {
	mu    sync.Mutex
	value int64
}

func (c *MutexCounter) Increment() {
	c.mu.Lock()
	c.value++
	c.mu.Unlock()
}

func (c *MutexCounter) Quiesce() {}

type Counter interface {
	Increment()
	Quiesce()
}

func main() {
	coordinated := NewCoordinatedCounter()
	fmt.Println("CoordinatedCounter", Bench(coordinated), coordinated.value)
	coordinated.coord.Close()

	mutexed := &MutexCounter{}
	fmt.Println("MutexCounter", Bench(mutexed), mutexed.value)
}

func Bench(c Counter) time.Duration {
	start := hrtime.TSC()

	var wg sync.WaitGroup
	wg.Add(P)
	for i := 0; i < P; i++ {
		go func() {
			for i := 0; i < N; i++ {
				c.Increment()
			}
			wg.Done()
		}()
	}
	wg.Wait()
	c.Quiesce()

	stop := hrtime.TSC()
	return (stop - start).ApproxDuration()
}
