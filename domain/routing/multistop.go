package routing

import (
	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// RouteToCurrentPosition controls whether a drive order whose admissible
// set contains the search's current point still incurs its hop cost, or
// short-circuits to zero, per spec §4.5.
var RouteToCurrentPosition = false

// ComputeRoutes finds the cheapest sequence from -> q1 -> ... -> qk, one qi
// per destination, via depth-first search with best-so-far pruning, and
// returns the per-hop Route for each destination in order.
func (e *Engine) ComputeRoutes(vehicle string, from string, destinations []orders.Destination) ([]orders.Route, error) {
	table, err := e.RouteTable(vehicle)
	if err != nil {
		return nil, err
	}
	candidates := make([][]string, len(destinations))
	for i, d := range destinations {
		candidates[i] = AdmissiblePoints(e.pool, d)
	}

	best := struct {
		cost  int64
		picks []string
	}{cost: InfiniteCost + 1}

	var dfs func(stage int, current string, picks []string, cost int64)
	dfs = func(stage int, current string, picks []string, cost int64) {
		if cost >= best.cost {
			return
		}
		if stage == len(destinations) {
			best.cost = cost
			best.picks = append([]string(nil), picks...)
			return
		}
		for _, q := range candidates[stage] {
			hopCost := int64(0)
			if !(q == current && !RouteToCurrentPosition) {
				entry, ok := table.Lookup(current, q)
				if !ok {
					continue
				}
				hopCost = entry.Cost
			}
			dfs(stage+1, q, append(picks, q), cost+hopCost)
		}
	}
	dfs(0, from, nil, 0)

	if best.picks == nil {
		return nil, nil
	}
	routes := make([]orders.Route, len(destinations))
	cur := from
	for i, q := range best.picks {
		if q == cur && !RouteToCurrentPosition {
			routes[i] = orders.Route{Cost: 0}
		} else {
			entry, _ := table.Lookup(cur, q)
			routes[i] = orders.Route{Cost: entry.Cost, Steps: entry.Steps}
		}
		cur = q
	}
	return routes, nil
}

// Routable reports whether vehicle can reach destinations in order from
// from with a finite total cost.
func (e *Engine) Routable(vehicle string, from string, destinations []orders.Destination) bool {
	routes, err := e.ComputeRoutes(vehicle, from, destinations)
	if err != nil || routes == nil {
		return false
	}
	var total int64
	for _, r := range routes {
		total += r.Cost
	}
	return total < InfiniteCost
}

// TravelCost returns the minimum cost between any point linked to srcLoc
// and any point linked to dstLoc, for vehicle.
func (e *Engine) TravelCost(vehicle string, srcLoc, dstLoc string) (int64, bool) {
	table, err := e.RouteTable(vehicle)
	if err != nil {
		return 0, false
	}
	srcPoints := linkedPoints(e.pool, srcLoc)
	dstPoints := linkedPoints(e.pool, dstLoc)
	if len(srcPoints) == 0 || len(dstPoints) == 0 {
		return 0, false
	}
	best := InfiniteCost + 1
	found := false
	for _, s := range srcPoints {
		for _, d := range dstPoints {
			entry, ok := table.Lookup(s, d)
			if !ok {
				continue
			}
			found = true
			if entry.Cost < best {
				best = entry.Cost
			}
		}
	}
	if !found {
		return 0, false
	}
	return best, true
}

func linkedPoints(pool *objectpool.Pool, locName string) []string {
	e, ok := pool.GetByName(locName)
	if !ok {
		return nil
	}
	loc, ok := e.(*topology.Location)
	if !ok {
		return nil
	}
	out := make([]string, len(loc.Links))
	for i, l := range loc.Links {
		out[i] = l.Point.Name
	}
	return out
}
