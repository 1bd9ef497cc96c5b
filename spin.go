package aru

import "runtime"

// spin backs off a busy-wait: stay hot for the first iterations, then start
// yielding the processor.
func spin(v *int) {
	*v++
	if *v >= 128 {
		runtime.Gosched()
	}
}
