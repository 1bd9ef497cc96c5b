package aru_test

import (
	"sync"
	"testing"

	"github.com/minseok127/aru"
	"github.com/minseok127/aru/internal/testsuite"
)

func BenchmarkUpdateUncontended(b *testing.B) {
	a := aru.New()
	defer a.Close()

	var counter int64
	for i := 0; i < b.N; i++ {
		a.Update(nil, func(any) { counter++ }, nil)
	}
	testsuite.QuiesceAll(a)
}

func BenchmarkUpdateContended(b *testing.B) {
	a := aru.New()
	defer a.Close()

	var counter int64
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a.Update(nil, func(any) { counter++ }, nil)
		}
	})
	testsuite.QuiesceAll(a)
}

func BenchmarkReadContended(b *testing.B) {
	a := aru.New()
	defer a.Close()

	counter := int64(1)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			a.Read(nil, func(any) { _ = counter }, nil)
		}
	})
	testsuite.QuiesceAll(a)
}

func BenchmarkMixedContended(b *testing.B) {
	a := aru.New()
	defer a.Close()

	var counter int64
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%8 == 0 {
				a.Update(nil, func(any) { counter++ }, nil)
			} else {
				a.Read(nil, func(any) { _ = counter }, nil)
			}
			i++
		}
	})
	testsuite.QuiesceAll(a)
}

func BenchmarkRWMutexUpdateContended(b *testing.B) {
	var mu sync.RWMutex
	var counter int64
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			mu.Lock()
			counter++
			mu.Unlock()
		}
	})
}

func BenchmarkRWMutexReadContended(b *testing.B) {
	var mu sync.RWMutex
	counter := int64(1)
	var sink int64
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			mu.RLock()
			sink = counter
			mu.RUnlock()
		}
	})
	_ = sink
}
