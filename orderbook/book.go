// Package orderbook is the adversarial workload used to exercise the
// coordinator: a set of books, each guarded by its own ARU instance. Every
// update rewrites all price levels of one book to a single quantity, so any
// read that observes two different quantities has seen a torn write.
package orderbook

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"

	"github.com/sugawarayuuta/sonnet"

	"github.com/minseok127/aru"
)

// FixedPrices are the 20 price levels present on both sides of every book.
var FixedPrices = [20]int{
	19000, 19050, 19100, 19150, 19200,
	19250, 19300, 19350, 19400, 19450,
	19500, 19550, 19600, 19650, 19700,
	19750, 19800, 19850, 19900, 19950,
}

// Snapshot is the wire form of one full-depth update. Levels are
// [price, quantity] string pairs, every pair carrying the same quantity.
type Snapshot struct {
	BookID int         `json:"book_id"`
	Bids   [][2]string `json:"b"`
	Asks   [][2]string `json:"a"`
}

// EncodeSnapshot builds a snapshot for bookID with a random quantity in
// [0, 5) on every level of both sides.
func EncodeSnapshot(bookID int, rng *rand.Rand) ([]byte, error) {
	qty := strconv.FormatFloat(rng.Float64()*5, 'f', 6, 64)

	snap := Snapshot{
		BookID: bookID,
		Bids:   make([][2]string, 0, len(FixedPrices)),
		Asks:   make([][2]string, 0, len(FixedPrices)),
	}
	for _, price := range FixedPrices {
		level := [2]string{strconv.Itoa(price), qty}
		snap.Bids = append(snap.Bids, level)
		snap.Asks = append(snap.Asks, level)
	}

	return sonnet.Marshal(snap)
}

// Book is one order book and the coordinator guarding it. The maps are
// touched only from ARU callbacks.
type Book struct {
	ID    int
	bids  map[string]string
	asks  map[string]string
	coord *aru.ARU
}

func NewBook(id int) *Book {
	return &Book{
		ID:    id,
		bids:  make(map[string]string, len(FixedPrices)),
		asks:  make(map[string]string, len(FixedPrices)),
		coord: aru.New(),
	}
}

// Close tears down the book's coordinator. All submitted operations must
// have completed.
func (b *Book) Close() {
	b.coord.Close()
}

// Sync lends the calling goroutine to the book's pending operations.
func (b *Book) Sync() {
	b.coord.Sync()
}

// Market is a set of books with shared completion counters.
type Market struct {
	Books []*Book

	Updates    atomic.Int64
	Reads      atomic.Int64
	Mismatches atomic.Int64
}

func NewMarket(n int) *Market {
	m := &Market{Books: make([]*Book, n)}
	for i := range m.Books {
		m.Books[i] = NewBook(i)
	}
	return m
}

func (m *Market) Close() {
	for _, b := range m.Books {
		b.Close()
	}
}

// SubmitUpdate enqueues applying the encoded snapshot to its book.
func (m *Market) SubmitUpdate(bookID int, tag *aru.Tag, data []byte) {
	b := m.Books[bookID]
	b.coord.Update(tag, func(args any) {
		m.applySnapshot(b, args.([]byte))
	}, data)
}

// SubmitRead enqueues a consistency check of the book: every level on both
// sides must carry the same quantity.
func (m *Market) SubmitRead(bookID int, tag *aru.Tag) {
	b := m.Books[bookID]
	b.coord.Read(tag, func(any) {
		m.checkBook(b)
	}, nil)
}

func (m *Market) applySnapshot(b *Book, data []byte) {
	defer m.Updates.Add(1)

	var snap Snapshot
	if err := sonnet.Unmarshal(data, &snap); err != nil {
		return
	}
	for _, level := range snap.Bids {
		b.bids[level[0]] = level[1]
	}
	for _, level := range snap.Asks {
		b.asks[level[0]] = level[1]
	}
}

func (m *Market) checkBook(b *Book) {
	defer m.Reads.Add(1)

	reference := ""
	for _, qty := range b.bids {
		if reference == "" {
			reference = qty
		} else if qty != reference {
			m.Mismatches.Add(1)
			return
		}
	}
	for _, qty := range b.asks {
		if qty != reference {
			m.Mismatches.Add(1)
			return
		}
	}
}

// Verify returns an error if any read observed a torn book.
func (m *Market) Verify() error {
	if n := m.Mismatches.Load(); n > 0 {
		return fmt.Errorf("orderbook: %d reads observed mismatched quantities", n)
	}
	return nil
}
