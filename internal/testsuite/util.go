package testsuite

import (
	"runtime"

	"github.com/minseok127/aru"
)

// Quiesce drives a coordinator until every tag reads Done. Submitters must
// have returned already; the calling goroutine lends its cycles through
// Sync until the stragglers finish.
func Quiesce(a *aru.ARU, tags ...*aru.Tag) {
	for _, tag := range tags {
		for tag.Load() != aru.Done {
			a.Sync()
			runtime.Gosched()
		}
	}
}

// QuiesceAll waits for everything submitted so far to finish by riding a
// sentinel update: an update runs only after every earlier operation, so
// its tag turning Done covers them all.
func QuiesceAll(a *aru.ARU) {
	tag := new(aru.Tag)
	a.Update(tag, func(any) {}, nil)
	Quiesce(a, tag)
}
