// Package routing implements the per-vehicle shortest-path engine: a
// best-first search over the topology graph with pluggable cost functions,
// static-route overrides, and multi-stop drive-order composition.
package routing

import (
	"container/heap"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/eventbus"
	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// Mode selects the search's completion strategy.
type Mode int

const (
	// TerminateEarly stops relaxing through a node once a worse-or-equal
	// cost is seen for it. Faster; not admissible for all cost functions.
	TerminateEarly Mode = iota
	// Exhaustive continues until the priority queue is empty. Always correct.
	Exhaustive
)

// Engine computes and caches per-vehicle routing tables.
type Engine struct {
	pool *objectpool.Pool
	cost CostFunction
	mode Mode

	mu     sync.RWMutex
	tables map[string]*Table

	recomputeDuration prometheus.Histogram
}

// NewEngine returns an Engine bound to pool, subscribed to bus for
// invalidation, using cost as its cost function and mode as its search
// completion strategy.
func NewEngine(pool *objectpool.Pool, bus *eventbus.Bus, cost CostFunction, mode Mode) *Engine {
	e := &Engine{
		pool:   pool,
		cost:   cost,
		mode:   mode,
		tables: make(map[string]*Table),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opentcs_routing_recompute_seconds",
			Help:    "Duration of a single vehicle's routing-table recomputation.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	bus.Subscribe(e.onEvent)
	return e
}

// Collector exposes the engine's Prometheus metrics for registration.
func (e *Engine) Collector() prometheus.Collector { return e.recomputeDuration }

func (e *Engine) onEvent(ev eventbus.Event) {
	switch ev.Type {
	case "Point", "Path", "StaticRoute", "Vehicle":
	default:
		return
	}
	e.mu.Lock()
	e.tables = make(map[string]*Table)
	e.mu.Unlock()
}

func (e *Engine) cachedTable(vehicle string) (*Table, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[vehicle]
	return t, ok
}

// RouteTable returns vehicle's routing table, computing (and caching) it
// first if necessary. Queries that arrive mid-recomputation for a
// *different* vehicle are unaffected; recomputation for distinct vehicles
// may proceed concurrently.
func (e *Engine) RouteTable(vehicle string) (*Table, error) {
	if t, ok := e.cachedTable(vehicle); ok {
		return t, nil
	}
	ent, ok := e.pool.GetByName(vehicle)
	if !ok {
		return nil, kernelerr.ObjectUnknown(vehicle)
	}
	v, ok := ent.(*topology.Vehicle)
	if !ok {
		return nil, kernelerr.ObjectUnknown(vehicle)
	}

	start := time.Now()
	table := e.compute(v)
	e.recomputeDuration.Observe(time.Since(start).Seconds())

	e.mu.Lock()
	e.tables[vehicle] = table
	e.mu.Unlock()
	return table, nil
}

func (e *Engine) compute(v *topology.Vehicle) *Table {
	table := newTable()
	for _, pe := range e.pool.ByKind("Point") {
		p := pe.(*topology.Point)
		e.search(v, p.Name, table)
	}
	e.integrateStaticRoutes(v, table)
	return table
}

type searchItem struct {
	point string
	cost  int64
	steps []orders.RouteStep
	index int
}

type searchQueue []*searchItem

func (q searchQueue) Len() int            { return len(q) }
func (q searchQueue) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q searchQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *searchQueue) Push(x interface{}) { *q = append(*q, x.(*searchItem)) }
func (q *searchQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (e *Engine) search(v *topology.Vehicle, start string, table *Table) {
	dist := map[string]int64{start: 0}
	finalized := map[string]bool{}

	pq := &searchQueue{}
	heap.Init(pq)
	heap.Push(pq, &searchItem{point: start, cost: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*searchItem)
		if e.mode == TerminateEarly {
			if finalized[item.point] {
				continue
			}
			finalized[item.point] = true
		}
		if item.point != start {
			table.set(start, item.point, Entry{Cost: item.cost, Steps: item.steps})
		}

		ptEntity, ok := e.pool.GetByName(item.point)
		if !ok {
			continue
		}
		pt, ok := ptEntity.(*topology.Point)
		if !ok {
			continue
		}

		for _, ref := range pt.Outgoing {
			path, ok := lookupPath(e.pool, ref.Name)
			if !ok || !path.NavigableForward() {
				continue
			}
			e.relax(v, start, item, path.Name, path.Destination.Name, orders.Forward, dist, pq)
		}
		for _, ref := range pt.Incoming {
			path, ok := lookupPath(e.pool, ref.Name)
			if !ok || !path.NavigableReverse() {
				continue
			}
			e.relax(v, start, item, path.Name, path.Source.Name, orders.Backward, dist, pq)
		}
	}
}

func (e *Engine) relax(v *topology.Vehicle, start string, cur *searchItem, pathName, next string, orientation orders.Orientation, dist map[string]int64, pq *searchQueue) {
	nextSteps := append(append([]orders.RouteStep(nil), cur.steps...), orders.RouteStep{
		Path:        pathName,
		Destination: next,
		Orientation: orientation,
		Index:       len(cur.steps),
	})
	newCost := e.cost.Cost(e.pool, v, start, nextSteps)
	if existing, ok := dist[next]; ok && newCost >= existing {
		return
	}
	dist[next] = newCost
	heap.Push(pq, &searchItem{point: next, cost: newCost, steps: nextSteps})
}

// integrateStaticRoutes overwrites, for every static route whose hops are
// all pairwise connected by a navigable path, the (first, last) table
// entry with the route's precomputed cost — unconditionally, even if the
// search found a cheaper entry.
func (e *Engine) integrateStaticRoutes(v *topology.Vehicle, table *Table) {
	for _, se := range e.pool.ByKind("StaticRoute") {
		sr := se.(*topology.StaticRoute)
		if len(sr.Hops) < 2 {
			continue
		}
		var steps []orders.RouteStep
		ok := true
		for i := 0; i < len(sr.Hops)-1; i++ {
			from, to := sr.Hops[i].Name, sr.Hops[i+1].Name
			step, found := e.hopStep(from, to, len(steps))
			if !found {
				ok = false
				break
			}
			steps = append(steps, step)
		}
		if !ok {
			continue
		}
		cost := e.cost.Cost(e.pool, v, sr.Hops[0].Name, steps)
		table.set(sr.Hops[0].Name, sr.Hops[len(sr.Hops)-1].Name, Entry{Cost: cost, Steps: steps})
	}
}

func (e *Engine) hopStep(from, to string, index int) (orders.RouteStep, bool) {
	ptEntity, ok := e.pool.GetByName(from)
	if !ok {
		return orders.RouteStep{}, false
	}
	pt, ok := ptEntity.(*topology.Point)
	if !ok {
		return orders.RouteStep{}, false
	}
	for _, ref := range pt.Outgoing {
		path, ok := lookupPath(e.pool, ref.Name)
		if ok && path.Destination.Name == to && path.NavigableForward() {
			return orders.RouteStep{Path: path.Name, Destination: to, Orientation: orders.Forward, Index: index}, true
		}
	}
	for _, ref := range pt.Incoming {
		path, ok := lookupPath(e.pool, ref.Name)
		if ok && path.Source.Name == to && path.NavigableReverse() {
			return orders.RouteStep{Path: path.Name, Destination: to, Orientation: orders.Backward, Index: index}, true
		}
	}
	return orders.RouteStep{}, false
}
