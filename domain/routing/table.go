package routing

import "github.com/opentcs-go/kernel/domain/orders"

// InfiniteCost is the sentinel for "no route exists". Chosen well below
// math.MaxInt64 so that summing several entries never overflows.
const InfiniteCost int64 = 1 << 40

type pairKey struct {
	Source, Destination string
}

// Entry is one routing-table cell: the cheapest known cost and route
// between a source and a destination point.
type Entry struct {
	Cost  int64
	Steps []orders.RouteStep
}

// Table maps (source, destination) point-name pairs to their cheapest
// known Entry. Missing pairs denote InfiniteCost.
type Table struct {
	entries map[pairKey]Entry
}

func newTable() *Table {
	return &Table{entries: make(map[pairKey]Entry)}
}

func (t *Table) set(src, dst string, e Entry) {
	t.entries[pairKey{src, dst}] = e
}

// Lookup returns the entry for (src, dst), or (Entry{Cost: InfiniteCost},
// false) if no route is known.
func (t *Table) Lookup(src, dst string) (Entry, bool) {
	if src == dst {
		return Entry{Cost: 0}, true
	}
	e, ok := t.entries[pairKey{src, dst}]
	if !ok {
		return Entry{Cost: InfiniteCost}, false
	}
	return e, true
}
