package routing

import (
	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// CostFunction computes the total cost of travelling steps starting at
// startPoint, for vehicle. Implementations are pure functions of the model
// snapshot available through pool.
type CostFunction interface {
	Cost(pool *objectpool.Pool, vehicle *topology.Vehicle, startPoint string, steps []orders.RouteStep) int64
}

func lookupPath(pool *objectpool.Pool, name string) (*topology.Path, bool) {
	e, ok := pool.GetByName(name)
	if !ok {
		return nil, false
	}
	p, ok := e.(*topology.Path)
	return p, ok
}

// DistanceCost sums path.length over the steps.
type DistanceCost struct{}

func (DistanceCost) Cost(pool *objectpool.Pool, _ *topology.Vehicle, _ string, steps []orders.RouteStep) int64 {
	var total int64
	for _, s := range steps {
		if p, ok := lookupPath(pool, s.Path); ok {
			total += p.Length
		}
	}
	return total
}

// HopsCost counts the number of steps.
type HopsCost struct{}

func (HopsCost) Cost(_ *objectpool.Pool, _ *topology.Vehicle, _ string, steps []orders.RouteStep) int64 {
	return int64(len(steps))
}

// CourseChangePenaltyCost is distance plus a fixed penalty for every
// consecutive pair of steps whose path orientation property differs.
type CourseChangePenaltyCost struct {
	Penalty int64
}

func (c CourseChangePenaltyCost) Cost(pool *objectpool.Pool, vehicle *topology.Vehicle, start string, steps []orders.RouteStep) int64 {
	total := DistanceCost{}.Cost(pool, vehicle, start, steps)
	for i := 1; i < len(steps); i++ {
		prev, ok := lookupPath(pool, steps[i-1].Path)
		if !ok {
			continue
		}
		cur, ok := lookupPath(pool, steps[i].Path)
		if !ok {
			continue
		}
		if prev.Properties[topology.PathOrientationProperty] != cur.Properties[topology.PathOrientationProperty] {
			total += c.Penalty
		}
	}
	return total
}
