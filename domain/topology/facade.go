package topology

import (
	"math"
	"regexp"

	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// Facade enforces the cross-entity invariants of spec.md §4.2 on top of the
// raw object pool: bidirectional link maintenance, cascade deletion, and
// the resource-expansion helpers. All callers that mutate the topology
// (including the order lifecycle and the kernel supervisor) go through a
// Facade rather than the pool directly.
type Facade struct {
	Pool *objectpool.Pool
	ids  *identity.Service

	// attached models the "attached-resource" relation consumed
	// by GetEffectiveResources. This is deliberately distinct from block
	// membership (expandResources); spec.md §9 warns against conflating
	// the two.
	attached map[string]map[string]struct{}
}

// NewFacade returns a Facade bound to pool and ids.
func NewFacade(pool *objectpool.Pool, ids *identity.Service) *Facade {
	return &Facade{Pool: pool, ids: ids, attached: make(map[string]map[string]struct{})}
}

func (f *Facade) newID() int { return f.ids.UniqueID() }

func (f *Facade) resolvePoint(ref string) (*Point, error) {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	p, ok := e.(*Point)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	return p, nil
}

func (f *Facade) resolvePath(ref string) (*Path, error) {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	p, ok := e.(*Path)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	return p, nil
}

func (f *Facade) resolveLocation(ref string) (*Location, error) {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	l, ok := e.(*Location)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	return l, nil
}

func (f *Facade) resolveVehicle(ref string) (*Vehicle, error) {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	v, ok := e.(*Vehicle)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	return v, nil
}

// ---- Point ----

// CreatePoint allocates a new Point named name at the given position.
func (f *Facade) CreatePoint(name string, pos Triple) (*Point, error) {
	p := &Point{
		ID:                      f.newID(),
		Name:                    name,
		Type:                    PointHalt,
		Position:                pos,
		VehicleOrientationAngle: math.NaN(),
	}
	if err := f.Pool.Add(p); err != nil {
		f.ids.ReleaseID(p.ID)
		return nil, err
	}
	return p, nil
}

func (f *Facade) SetPointPosition(ref string, pos Triple) error {
	p, err := f.resolvePoint(ref)
	if err != nil {
		return err
	}
	updated := p.Clone().(*Point)
	updated.Position = pos
	return f.Pool.Replace(updated)
}

func (f *Facade) SetPointVehicleOrientationAngle(ref string, angle float64) error {
	if !ValidOrientationAngle(angle) {
		return kernelerr.IllegalArgument("orientation angle out of [-360,360]")
	}
	p, err := f.resolvePoint(ref)
	if err != nil {
		return err
	}
	updated := p.Clone().(*Point)
	updated.VehicleOrientationAngle = angle
	return f.Pool.Replace(updated)
}

func (f *Facade) SetPointType(ref string, t PointType) error {
	p, err := f.resolvePoint(ref)
	if err != nil {
		return err
	}
	updated := p.Clone().(*Point)
	updated.Type = t
	return f.Pool.Replace(updated)
}

// ---- Path ----

// CreatePath creates a Path from src to dst and registers it in both
// endpoints' incoming/outgoing lists.
func (f *Facade) CreatePath(name, src, dst string, length, cost int64) (*Path, error) {
	if length <= 0 {
		return nil, kernelerr.IllegalArgument("path length must be > 0")
	}
	if cost <= 0 {
		return nil, kernelerr.IllegalArgument("path routing cost must be > 0")
	}
	srcPt, err := f.resolvePoint(src)
	if err != nil {
		return nil, err
	}
	dstPt, err := f.resolvePoint(dst)
	if err != nil {
		return nil, err
	}

	path := &Path{
		ID:          f.newID(),
		Name:        name,
		Source:      Ref{ID: srcPt.ID, Name: srcPt.Name},
		Destination: Ref{ID: dstPt.ID, Name: dstPt.Name},
		Length:      length,
		RoutingCost: cost,
	}
	if err := f.Pool.Add(path); err != nil {
		f.ids.ReleaseID(path.ID)
		return nil, err
	}

	srcUpdated := srcPt.Clone().(*Point)
	srcUpdated.Outgoing = append(srcUpdated.Outgoing, Ref{ID: path.ID, Name: path.Name})
	if err := f.Pool.Replace(srcUpdated); err != nil {
		return nil, err
	}
	dstUpdated := dstPt.Clone().(*Point)
	dstUpdated.Incoming = append(dstUpdated.Incoming, Ref{ID: path.ID, Name: path.Name})
	if err := f.Pool.Replace(dstUpdated); err != nil {
		return nil, err
	}
	return path, nil
}

func (f *Facade) SetPathLength(ref string, length int64) error {
	if length <= 0 {
		return kernelerr.IllegalArgument("path length must be > 0")
	}
	p, err := f.resolvePath(ref)
	if err != nil {
		return err
	}
	updated := p.Clone().(*Path)
	updated.Length = length
	return f.Pool.Replace(updated)
}

func (f *Facade) SetPathRoutingCost(ref string, cost int64) error {
	if cost <= 0 {
		return kernelerr.IllegalArgument("path routing cost must be > 0")
	}
	p, err := f.resolvePath(ref)
	if err != nil {
		return err
	}
	updated := p.Clone().(*Path)
	updated.RoutingCost = cost
	return f.Pool.Replace(updated)
}

func (f *Facade) SetPathMaxVelocity(ref string, v int64) error {
	if v < 0 {
		return kernelerr.IllegalArgument("max velocity must be >= 0")
	}
	p, err := f.resolvePath(ref)
	if err != nil {
		return err
	}
	updated := p.Clone().(*Path)
	updated.MaxVelocity = v
	return f.Pool.Replace(updated)
}

func (f *Facade) SetPathMaxReverseVelocity(ref string, v int64) error {
	if v < 0 {
		return kernelerr.IllegalArgument("max reverse velocity must be >= 0")
	}
	p, err := f.resolvePath(ref)
	if err != nil {
		return err
	}
	updated := p.Clone().(*Path)
	updated.MaxReverseVelocity = v
	return f.Pool.Replace(updated)
}

func (f *Facade) SetPathLocked(ref string, locked bool) error {
	p, err := f.resolvePath(ref)
	if err != nil {
		return err
	}
	updated := p.Clone().(*Path)
	updated.Locked = locked
	return f.Pool.Replace(updated)
}

// RemovePath removes path and de-registers it from both endpoints.
func (f *Facade) RemovePath(ref string) error {
	p, err := f.resolvePath(ref)
	if err != nil {
		return err
	}
	if src, err := f.resolvePoint(p.Source.Name); err == nil {
		updated := src.Clone().(*Point)
		updated.Outgoing = removeRef(updated.Outgoing, p.Name)
		_ = f.Pool.Replace(updated)
	}
	if dst, err := f.resolvePoint(p.Destination.Name); err == nil {
		updated := dst.Clone().(*Point)
		updated.Incoming = removeRef(updated.Incoming, p.Name)
		_ = f.Pool.Replace(updated)
	}
	return f.Pool.Remove(p.Name)
}

// RemovePoint disconnects all location links attached to p, removes every
// incoming/outgoing path, then removes the point itself, per spec.md §4.2.
func (f *Facade) RemovePoint(ref string) error {
	p, err := f.resolvePoint(ref)
	if err != nil {
		return err
	}
	for _, linkRef := range append([]Ref(nil), p.AttachedLinks...) {
		_ = f.DisconnectLocationFromPoint(linkRef.Name, p.Name)
	}
	for _, pathRef := range append([]Ref(nil), p.Incoming...) {
		_ = f.RemovePath(pathRef.Name)
	}
	for _, pathRef := range append([]Ref(nil), p.Outgoing...) {
		_ = f.RemovePath(pathRef.Name)
	}
	return f.Pool.Remove(p.Name)
}

// ---- LocationType ----

func (f *Facade) CreateLocationType(name string) (*LocationType, error) {
	lt := &LocationType{ID: f.newID(), Name: name}
	if err := f.Pool.Add(lt); err != nil {
		f.ids.ReleaseID(lt.ID)
		return nil, err
	}
	return lt, nil
}

func (f *Facade) AddLocationTypeAllowedOperation(ref, op string) error {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	lt, ok := e.(*LocationType)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	updated := lt.Clone().(*LocationType)
	if !updated.AllowsOperation(op) {
		updated.AllowedOperations = append(updated.AllowedOperations, op)
	}
	return f.Pool.Replace(updated)
}

func (f *Facade) RemoveLocationTypeAllowedOperation(ref, op string) error {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	lt, ok := e.(*LocationType)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	updated := lt.Clone().(*LocationType)
	filtered := updated.AllowedOperations[:0:0]
	for _, o := range updated.AllowedOperations {
		if o != op {
			filtered = append(filtered, o)
		}
	}
	updated.AllowedOperations = filtered
	return f.Pool.Replace(updated)
}

// ---- Location ----

func (f *Facade) CreateLocation(name, locType string, pos Triple) (*Location, error) {
	ltEntity, ok := f.Pool.GetByName(locType)
	if !ok {
		return nil, kernelerr.ObjectUnknown(locType)
	}
	if _, ok := ltEntity.(*LocationType); !ok {
		return nil, kernelerr.ObjectUnknown(locType)
	}
	loc := &Location{
		ID:       f.newID(),
		Name:     name,
		Type:     Ref{ID: ltEntity.ObjectID(), Name: ltEntity.ObjectName()},
		Position: pos,
	}
	if err := f.Pool.Add(loc); err != nil {
		f.ids.ReleaseID(loc.ID)
		return nil, err
	}
	return loc, nil
}

func (f *Facade) SetLocationPosition(ref string, pos Triple) error {
	l, err := f.resolveLocation(ref)
	if err != nil {
		return err
	}
	updated := l.Clone().(*Location)
	updated.Position = pos
	return f.Pool.Replace(updated)
}

func (f *Facade) SetLocationType(ref, locType string) error {
	l, err := f.resolveLocation(ref)
	if err != nil {
		return err
	}
	ltEntity, ok := f.Pool.GetByName(locType)
	if !ok {
		return kernelerr.ObjectUnknown(locType)
	}
	updated := l.Clone().(*Location)
	updated.Type = Ref{ID: ltEntity.ObjectID(), Name: ltEntity.ObjectName()}
	return f.Pool.Replace(updated)
}

// ConnectLocationToPoint creates a Link with an empty allowed-operation set,
// stored on both sides.
func (f *Facade) ConnectLocationToPoint(locRef, pointRef string) error {
	loc, err := f.resolveLocation(locRef)
	if err != nil {
		return err
	}
	pt, err := f.resolvePoint(pointRef)
	if err != nil {
		return err
	}
	if _, idx := loc.LinkTo(pt.Name); idx >= 0 {
		return kernelerr.ObjectExists(pt.Name)
	}
	updatedLoc := loc.Clone().(*Location)
	updatedLoc.Links = append(updatedLoc.Links, Link{Point: Ref{ID: pt.ID, Name: pt.Name}})
	if err := f.Pool.Replace(updatedLoc); err != nil {
		return err
	}
	updatedPt := pt.Clone().(*Point)
	updatedPt.AttachedLinks = append(updatedPt.AttachedLinks, Ref{ID: loc.ID, Name: loc.Name})
	return f.Pool.Replace(updatedPt)
}

// DisconnectLocationFromPoint removes the link from both sides.
func (f *Facade) DisconnectLocationFromPoint(locRef, pointRef string) error {
	loc, err := f.resolveLocation(locRef)
	if err != nil {
		return err
	}
	pt, err := f.resolvePoint(pointRef)
	if err != nil {
		return err
	}
	updatedLoc := loc.Clone().(*Location)
	filtered := updatedLoc.Links[:0:0]
	for _, l := range updatedLoc.Links {
		if l.Point.Name != pt.Name {
			filtered = append(filtered, l)
		}
	}
	updatedLoc.Links = filtered
	if err := f.Pool.Replace(updatedLoc); err != nil {
		return err
	}
	updatedPt := pt.Clone().(*Point)
	updatedPt.AttachedLinks = removeRef(updatedPt.AttachedLinks, loc.Name)
	return f.Pool.Replace(updatedPt)
}

func (f *Facade) addLinkOp(locRef, pointRef, op string, add bool) error {
	loc, err := f.resolveLocation(locRef)
	if err != nil {
		return err
	}
	updated := loc.Clone().(*Location)
	link, idx := updated.LinkTo(pointRef)
	if idx < 0 {
		return kernelerr.ObjectUnknown(pointRef)
	}
	if add {
		has := false
		for _, o := range link.AllowedOperations {
			if o == op {
				has = true
				break
			}
		}
		if !has {
			link.AllowedOperations = append(link.AllowedOperations, op)
		}
	} else {
		filtered := link.AllowedOperations[:0:0]
		for _, o := range link.AllowedOperations {
			if o != op {
				filtered = append(filtered, o)
			}
		}
		link.AllowedOperations = filtered
	}
	return f.Pool.Replace(updated)
}

func (f *Facade) AddLocationLinkAllowedOperation(locRef, pointRef, op string) error {
	return f.addLinkOp(locRef, pointRef, op, true)
}

func (f *Facade) RemoveLocationLinkAllowedOperation(locRef, pointRef, op string) error {
	return f.addLinkOp(locRef, pointRef, op, false)
}

func (f *Facade) ClearLocationLinkAllowedOperations(locRef, pointRef string) error {
	loc, err := f.resolveLocation(locRef)
	if err != nil {
		return err
	}
	updated := loc.Clone().(*Location)
	link, idx := updated.LinkTo(pointRef)
	if idx < 0 {
		return kernelerr.ObjectUnknown(pointRef)
	}
	link.AllowedOperations = nil
	return f.Pool.Replace(updated)
}

// ---- Vehicle ----

func (f *Facade) CreateVehicle(name string, length int64) (*Vehicle, error) {
	v := &Vehicle{
		ID:            f.newID(),
		Name:          name,
		Length:        length,
		EnergyLevelGood: 100,
		State:         VehicleUnknown,
		ProcState:     ProcUnavailable,
		AdapterState:  CommUnknown,
		Orientation:   math.NaN(),
		RouteProgress: -1,
	}
	if err := f.Pool.Add(v); err != nil {
		f.ids.ReleaseID(v.ID)
		return nil, err
	}
	return v, nil
}

func (f *Facade) mutateVehicle(ref string, mutate func(*Vehicle) error) error {
	v, err := f.resolveVehicle(ref)
	if err != nil {
		return err
	}
	updated := v.Clone().(*Vehicle)
	if err := mutate(updated); err != nil {
		return err
	}
	return f.Pool.Replace(updated)
}

func (f *Facade) SetVehicleEnergyLevelCritical(ref string, value int) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error {
		if value > v.EnergyLevelGood {
			return kernelerr.IllegalArgument("critical energy level must be <= good energy level")
		}
		v.EnergyLevelCritical = value
		return nil
	})
}

func (f *Facade) SetVehicleEnergyLevelGood(ref string, value int) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error {
		if value < v.EnergyLevelCritical {
			return kernelerr.IllegalArgument("good energy level must be >= critical energy level")
		}
		v.EnergyLevelGood = value
		return nil
	})
}

func (f *Facade) SetVehicleEnergyLevel(ref string, value int) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.EnergyLevel = value; return nil })
}

func (f *Facade) SetVehicleLength(ref string, length int64) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.Length = length; return nil })
}

func (f *Facade) SetVehicleState(ref string, state VehicleState) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.State = state; return nil })
}

func (f *Facade) SetVehicleProcState(ref string, state VehicleProcState) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.ProcState = state; return nil })
}

func (f *Facade) SetVehicleAdapterState(ref string, state CommAdapterState) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.AdapterState = state; return nil })
}

func (f *Facade) SetVehicleNextPosition(ref, pointRef string) error {
	var next *Ref
	if pointRef != "" {
		pt, err := f.resolvePoint(pointRef)
		if err != nil {
			return err
		}
		next = &Ref{ID: pt.ID, Name: pt.Name}
	}
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.NextPosition = next; return nil })
}

func (f *Facade) SetVehiclePrecisePosition(ref string, pos *Triple) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.PrecisePosition = pos; return nil })
}

func (f *Facade) SetVehicleOrientationAngle(ref string, angle float64) error {
	if !ValidOrientationAngle(angle) {
		return kernelerr.IllegalArgument("orientation angle out of [-360,360]")
	}
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.Orientation = angle; return nil })
}

func (f *Facade) SetVehicleTransportOrder(ref, orderRef string) error {
	var next *Ref
	if orderRef != "" {
		e, ok := f.Pool.GetByName(orderRef)
		if !ok {
			return kernelerr.ObjectUnknown(orderRef)
		}
		next = &Ref{ID: e.ObjectID(), Name: e.ObjectName()}
	}
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.TransportOrder = next; return nil })
}

func (f *Facade) SetVehicleOrderSequence(ref, seqRef string) error {
	var next *Ref
	if seqRef != "" {
		e, ok := f.Pool.GetByName(seqRef)
		if !ok {
			return kernelerr.ObjectUnknown(seqRef)
		}
		next = &Ref{ID: e.ObjectID(), Name: e.ObjectName()}
	}
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.OrderSequence = next; return nil })
}

func (f *Facade) SetVehicleRouteProgressIndex(ref string, idx int) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.RouteProgress = idx; return nil })
}

func (f *Facade) SetVehicleMaxVelocity(ref string, v int64) error {
	return f.mutateVehicle(ref, func(veh *Vehicle) error { veh.MaxVelocity = v; return nil })
}

func (f *Facade) SetVehicleMaxReverseVelocity(ref string, v int64) error {
	return f.mutateVehicle(ref, func(veh *Vehicle) error { veh.MaxReverseVelocity = v; return nil })
}

func (f *Facade) SetVehicleRechargeOperation(ref, op string) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error { v.RechargeOperation = op; return nil })
}

func (f *Facade) SetVehicleLoadHandlingDevices(ref string, devices []LoadHandlingDevice) error {
	return f.mutateVehicle(ref, func(v *Vehicle) error {
		v.LoadHandlingDevices = append([]LoadHandlingDevice(nil), devices...)
		return nil
	})
}

// SetVehiclePosition clears the previous occupier field on the old point (if
// any), sets it on the new point (if any), and updates the vehicle, as a
// single uninterrupted sequence of events, per spec.md §4.2.
func (f *Facade) SetVehiclePosition(ref string, newPointRef string) error {
	v, err := f.resolveVehicle(ref)
	if err != nil {
		return err
	}

	var newPt *Point
	if newPointRef != "" {
		newPt, err = f.resolvePoint(newPointRef)
		if err != nil {
			return err
		}
	}

	if v.CurrentPosition != nil {
		if oldPt, err := f.resolvePoint(v.CurrentPosition.Name); err == nil {
			updatedOld := oldPt.Clone().(*Point)
			updatedOld.OccupyingVehicle = nil
			if err := f.Pool.Replace(updatedOld); err != nil {
				return err
			}
		}
	}

	if newPt != nil {
		updatedNew := newPt.Clone().(*Point)
		ref := Ref{ID: v.ID, Name: v.Name}
		updatedNew.OccupyingVehicle = &ref
		if err := f.Pool.Replace(updatedNew); err != nil {
			return err
		}
	}

	return f.mutateVehicle(ref, func(veh *Vehicle) error {
		if newPt != nil {
			r := Ref{ID: newPt.ID, Name: newPt.Name}
			veh.CurrentPosition = &r
		} else {
			veh.CurrentPosition = nil
		}
		return nil
	})
}

// ---- Block / Group / StaticRoute ----

func (f *Facade) CreateBlock(name string) (*Block, error) {
	b := &Block{ID: f.newID(), Name: name}
	if err := f.Pool.Add(b); err != nil {
		f.ids.ReleaseID(b.ID)
		return nil, err
	}
	return b, nil
}

func (f *Facade) addResourceMember(name, memberRef string, isBlock bool) error {
	e, ok := f.Pool.GetByName(name)
	if !ok {
		return kernelerr.ObjectUnknown(name)
	}
	member, ok := f.Pool.GetByName(memberRef)
	if !ok {
		return kernelerr.ObjectUnknown(memberRef)
	}
	if isBlock {
		b := e.(*Block).Clone().(*Block)
		if !containsRef(b.Members, member.ObjectName()) {
			b.Members = append(b.Members, Ref{ID: member.ObjectID(), Name: member.ObjectName()})
		}
		return f.Pool.Replace(b)
	}
	g := e.(*Group).Clone().(*Group)
	if !containsRef(g.Members, member.ObjectName()) {
		g.Members = append(g.Members, Ref{ID: member.ObjectID(), Name: member.ObjectName()})
	}
	return f.Pool.Replace(g)
}

func (f *Facade) AddBlockMember(blockRef, memberRef string) error {
	return f.addResourceMember(blockRef, memberRef, true)
}

func (f *Facade) RemoveBlockMember(blockRef, memberRef string) error {
	e, ok := f.Pool.GetByName(blockRef)
	if !ok {
		return kernelerr.ObjectUnknown(blockRef)
	}
	b, ok := e.(*Block)
	if !ok {
		return kernelerr.ObjectUnknown(blockRef)
	}
	updated := b.Clone().(*Block)
	updated.Members = removeRef(updated.Members, memberRef)
	return f.Pool.Replace(updated)
}

func (f *Facade) CreateGroup(name string) (*Group, error) {
	g := &Group{ID: f.newID(), Name: name}
	if err := f.Pool.Add(g); err != nil {
		f.ids.ReleaseID(g.ID)
		return nil, err
	}
	return g, nil
}

func (f *Facade) AddGroupMember(groupRef, memberRef string) error {
	return f.addResourceMember(groupRef, memberRef, false)
}

func (f *Facade) RemoveGroupMember(groupRef, memberRef string) error {
	e, ok := f.Pool.GetByName(groupRef)
	if !ok {
		return kernelerr.ObjectUnknown(groupRef)
	}
	g, ok := e.(*Group)
	if !ok {
		return kernelerr.ObjectUnknown(groupRef)
	}
	updated := g.Clone().(*Group)
	updated.Members = removeRef(updated.Members, memberRef)
	return f.Pool.Replace(updated)
}

func (f *Facade) CreateStaticRoute(name string) (*StaticRoute, error) {
	sr := &StaticRoute{ID: f.newID(), Name: name}
	if err := f.Pool.Add(sr); err != nil {
		f.ids.ReleaseID(sr.ID)
		return nil, err
	}
	return sr, nil
}

func (f *Facade) AddStaticRouteHop(ref, pointRef string) error {
	pt, err := f.resolvePoint(pointRef)
	if err != nil {
		return err
	}
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	sr, ok := e.(*StaticRoute)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	updated := sr.Clone().(*StaticRoute)
	updated.Hops = append(updated.Hops, Ref{ID: pt.ID, Name: pt.Name})
	return f.Pool.Replace(updated)
}

func (f *Facade) ClearStaticRouteHops(ref string) error {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	sr, ok := e.(*StaticRoute)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	updated := sr.Clone().(*StaticRoute)
	updated.Hops = nil
	return f.Pool.Replace(updated)
}

// ---- attached-resource relation (distinct from block membership) ----

// AttachResource records a one-hop "attached" relation from resource to
// attachment, consumed by GetEffectiveResources.
func (f *Facade) AttachResource(resource, attachment string) error {
	if _, ok := f.Pool.GetByName(resource); !ok {
		return kernelerr.ObjectUnknown(resource)
	}
	if _, ok := f.Pool.GetByName(attachment); !ok {
		return kernelerr.ObjectUnknown(attachment)
	}
	if f.attached[resource] == nil {
		f.attached[resource] = make(map[string]struct{})
	}
	f.attached[resource][attachment] = struct{}{}
	return nil
}

// DetachResource removes a previously attached relation.
func (f *Facade) DetachResource(resource, attachment string) error {
	if m, ok := f.attached[resource]; ok {
		delete(m, attachment)
	}
	return nil
}

// ExpandResources returns names plus, for every block that contains any
// member of names, all members of that block (set semantics).
func (f *Facade) ExpandResources(names []string) []string {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	for _, e := range f.Pool.ByKind("Block") {
		b := e.(*Block)
		touches := false
		for _, m := range b.Members {
			if _, ok := set[m.Name]; ok {
				touches = true
				break
			}
		}
		if touches {
			for _, m := range b.Members {
				set[m.Name] = struct{}{}
			}
		}
	}
	return setToSlice(set)
}

// GetEffectiveResources returns names plus every resource transitively
// reachable via the attached-resource relation.
func (f *Facade) GetEffectiveResources(names []string) []string {
	set := make(map[string]struct{}, len(names))
	queue := append([]string(nil), names...)
	for _, n := range names {
		set[n] = struct{}{}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for attachment := range f.attached[cur] {
			if _, seen := set[attachment]; !seen {
				set[attachment] = struct{}{}
				queue = append(queue, attachment)
			}
		}
	}
	return setToSlice(set)
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// ---- generic entity access ----

func (f *Facade) GetObject(name string) (objectpool.Entity, error) {
	e, ok := f.Pool.GetByName(name)
	if !ok {
		return nil, kernelerr.ObjectUnknown(name)
	}
	return e, nil
}

func (f *Facade) GetObjectsByKind(kind string) []objectpool.Entity {
	return f.Pool.ByKind(kind)
}

func (f *Facade) GetObjectsByKindRegex(kind, pattern string) ([]objectpool.Entity, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, kernelerr.IllegalArgument("invalid regex: " + err.Error())
	}
	return f.Pool.ByKindRegex(kind, re), nil
}

func (f *Facade) RenameObject(ref, newName string) error {
	return f.Pool.Rename(ref, newName)
}

func (f *Facade) SetObjectProperty(ref, key string, value *string) error {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	updated := e.Clone()
	setProp(updated, key, value)
	return f.Pool.Replace(updated)
}

func (f *Facade) ClearObjectProperties(ref string) error {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	updated := e.Clone()
	clearProps(updated)
	return f.Pool.Replace(updated)
}

func (f *Facade) RemoveObject(ref string) error {
	e, ok := f.Pool.GetByName(ref)
	if !ok {
		return kernelerr.ObjectUnknown(ref)
	}
	switch e.Kind() {
	case "Point":
		return f.RemovePoint(ref)
	case "Path":
		return f.RemovePath(ref)
	default:
		return f.Pool.Remove(ref)
	}
}

// propsOf returns a pointer to e's Properties field, or nil if e carries none.
func propsOf(e objectpool.Entity) *map[string]string {
	switch v := e.(type) {
	case *Point:
		return &v.Properties
	case *Path:
		return &v.Properties
	case *LocationType:
		return &v.Properties
	case *Location:
		return &v.Properties
	case *Vehicle:
		return &v.Properties
	case *Block:
		return &v.Properties
	case *Group:
		return &v.Properties
	case *StaticRoute:
		return &v.Properties
	case *VisualLayout:
		return &v.Properties
	default:
		return nil
	}
}

func setProp(e objectpool.Entity, key string, value *string) {
	p := propsOf(e)
	if p == nil {
		return
	}
	if *p == nil {
		*p = make(map[string]string)
	}
	if value == nil {
		delete(*p, key)
		return
	}
	(*p)[key] = *value
}

func clearProps(e objectpool.Entity) {
	p := propsOf(e)
	if p == nil {
		return
	}
	*p = nil
}
