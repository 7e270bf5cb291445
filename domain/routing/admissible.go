package routing

import (
	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// OpMove and OpPark are the pseudo-operations used for drive orders that
// target a point directly rather than a real Location (the "dummy
// location" case): moving to, or parking at, a point with no operation.
const (
	OpMove = "MOVE"
	OpPark = "PARK"
	OpNop  = "NOP"
)

func operationAllowed(op string, link topology.Link, locType *topology.LocationType) bool {
	if op == OpNop {
		return true
	}
	for _, o := range link.AllowedOperations {
		if o == op {
			return true
		}
	}
	if len(link.AllowedOperations) == 0 && locType != nil && locType.AllowsOperation(op) {
		return true
	}
	return false
}

// AdmissiblePoints returns the points a drive order with the given
// destination may legally target, per spec §4.5.
func AdmissiblePoints(pool *objectpool.Pool, dest orders.Destination) []string {
	if dest.Operation == OpMove || dest.Operation == OpPark {
		if e, ok := pool.GetByName(dest.Location); ok {
			if pt, ok := e.(*topology.Point); ok && pt.IsHaltingPosition() {
				return []string{pt.Name}
			}
		}
	}

	locEntity, ok := pool.GetByName(dest.Location)
	if !ok {
		return nil
	}
	loc, ok := locEntity.(*topology.Location)
	if !ok {
		return nil
	}
	var locType *topology.LocationType
	if ltEntity, ok := pool.GetByName(loc.Type.Name); ok {
		locType, _ = ltEntity.(*topology.LocationType)
	}

	var out []string
	for _, link := range loc.Links {
		if !operationAllowed(dest.Operation, link, locType) {
			continue
		}
		ptEntity, ok := pool.GetByName(link.Point.Name)
		if !ok {
			continue
		}
		pt, ok := ptEntity.(*topology.Point)
		if !ok || !pt.IsHaltingPosition() {
			continue
		}
		out = append(out, pt.Name)
	}
	return out
}
