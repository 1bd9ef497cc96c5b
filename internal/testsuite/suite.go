package testsuite

import (
	"encoding/gob"
	"fmt"
	"testing"
)

func init() { gob.Register(Setup{}) }

var (
	Test = Params{
		Procs: []int{1, 2, 4, 8, 16},
		Ops:   []int{100, 1000},
		Books: []int{1, 8},
	}

	Stress = Params{
		Procs: []int{4, 16, 64},
		Ops:   []int{10000},
		Books: []int{1, 64},
	}
)

// Params is the matrix of workload shapes a suite run iterates over.
type Params struct {
	Procs []int
	Ops   []int
	Books []int
}

// Setup is one concrete workload shape.
type Setup struct {
	Procs int
	Ops   int
	Books int
}

func (params *Params) Iterate(fn func(*Setup)) {
	setup := Setup{}
	for _, setup.Procs = range params.Procs {
		for _, setup.Ops = range params.Ops {
			for _, setup.Books = range params.Books {
				tmp := setup
				fn(&tmp)
			}
		}
	}
}

func (setup *Setup) FullName(test string) string {
	return fmt.Sprintf("%v/p%vn%vb%v", test, setup.Procs, setup.Ops, setup.Books)
}

func (setup *Setup) Test(t *testing.T, name string, test func(t *testing.T, setup *Setup)) {
	t.Helper()
	t.Run(setup.FullName(name), func(t *testing.T) {
		test(t, setup)
	})
}

func (setup *Setup) Bench(b *testing.B, name string, bench func(b *testing.B, setup *Setup)) {
	b.Helper()
	b.Run(setup.FullName(name), func(b *testing.B) {
		bench(b, setup)
	})
}
