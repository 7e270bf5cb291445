package orders

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/kernellog"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// RoutingProvider is the subset of the routing engine the order lifecycle
// manager needs: whether a vehicle can reach a set of destinations at all,
// and the cheapest way to visit them in order. Kept as an interface here so
// this package never imports domain/routing directly; cmd/kernelserver
// wires the concrete engine in.
type RoutingProvider interface {
	Routable(vehicle string, from string, destinations []Destination) bool
	ComputeRoutes(vehicle string, from string, destinations []Destination) ([]Route, error)
	TravelCost(vehicle string, srcLoc string, dstLoc string) (int64, bool)
}

// Manager owns transport-order and order-sequence lifecycle operations.
type Manager struct {
	pool    *objectpool.Pool
	facade  *topology.Facade
	ids     *identity.Service
	routing RoutingProvider
	log     *kernellog.Logger

	lastCreatedAt int64 // guarantees CreatedAt strictly increases
}

// NewManager returns a Manager. routing may be nil until the routing engine
// is wired in; dispatch operations fail IllegalState until it is set.
func NewManager(pool *objectpool.Pool, facade *topology.Facade, ids *identity.Service, routing RoutingProvider, log *kernellog.Logger) *Manager {
	return &Manager{pool: pool, facade: facade, ids: ids, routing: routing, log: log}
}

// SetRoutingProvider wires the routing engine in after both have been
// constructed, breaking the natural initialization cycle between them.
func (m *Manager) SetRoutingProvider(routing RoutingProvider) { m.routing = routing }

func (m *Manager) nextCreatedAt(now int64) int64 {
	if now <= m.lastCreatedAt {
		now = m.lastCreatedAt + 1
	}
	m.lastCreatedAt = now
	return now
}

func (m *Manager) resolveOrder(ref string) (*TransportOrder, error) {
	e, ok := m.pool.GetByName(ref)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	t, ok := e.(*TransportOrder)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	return t, nil
}

func (m *Manager) resolveSequence(ref string) (*OrderSequence, error) {
	e, ok := m.pool.GetByName(ref)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	s, ok := e.(*OrderSequence)
	if !ok {
		return nil, kernelerr.ObjectUnknown(ref)
	}
	return s, nil
}

// CreateTransportOrder allocates a new RAW transport order with the given
// destinations (as pristine drive orders) and an optional deadline (pass
// MaxDeadline for none).
func (m *Manager) CreateTransportOrder(name string, destinations []Destination, deadline int64, now int64) (*TransportOrder, error) {
	if len(destinations) == 0 {
		return nil, kernelerr.IllegalArgument("transport order must have at least one destination")
	}
	future := make([]DriveOrder, len(destinations))
	for i, d := range destinations {
		future[i] = DriveOrder{Destination: d, State: DriveOrderPristine}
	}
	t := &TransportOrder{
		ID:                m.ids.UniqueID(),
		Name:              name,
		CreatedAt:         m.nextCreatedAt(now),
		Deadline:          deadline,
		FutureDriveOrders: future,
		State:             StateRaw,
	}
	if err := m.pool.Add(t); err != nil {
		m.ids.ReleaseID(t.ID)
		return nil, err
	}
	return t, nil
}

func (m *Manager) mutateOrder(ref string, mutate func(*TransportOrder) error) error {
	t, err := m.resolveOrder(ref)
	if err != nil {
		return err
	}
	updated := t.Clone().(*TransportOrder)
	if err := mutate(updated); err != nil {
		return err
	}
	return m.pool.Replace(updated)
}

func (m *Manager) SetTransportOrderDeadline(ref string, deadline int64) error {
	return m.mutateOrder(ref, func(t *TransportOrder) error { t.Deadline = deadline; return nil })
}

func (m *Manager) SetTransportOrderIntendedVehicle(ref, vehicleRef string) error {
	var next *topology.Ref
	if vehicleRef != "" {
		e, ok := m.pool.GetByName(vehicleRef)
		if !ok {
			return kernelerr.ObjectUnknown(vehicleRef)
		}
		next = &topology.Ref{ID: e.ObjectID(), Name: e.ObjectName()}
	}
	return m.mutateOrder(ref, func(t *TransportOrder) error { t.IntendedVehicle = next; return nil })
}

func (m *Manager) SetTransportOrderFutureDriveOrders(ref string, next []DriveOrder) error {
	return m.mutateOrder(ref, func(t *TransportOrder) error { return t.SetFutureDriveOrders(next) })
}

func (m *Manager) AddTransportOrderDependency(ref, depRef string) error {
	if _, err := m.resolveOrder(depRef); err != nil {
		return err
	}
	return m.mutateOrder(ref, func(t *TransportOrder) error { return t.AddDependency(depRef) })
}

func (m *Manager) RemoveTransportOrderDependency(ref, depRef string) error {
	return m.mutateOrder(ref, func(t *TransportOrder) error { return t.RemoveDependency(depRef) })
}

// ActivateTransportOrder transitions RAW -> ACTIVE, enforcing the sequence
// gating rule if the order belongs to one.
func (m *Manager) ActivateTransportOrder(ref string) error {
	t, err := m.resolveOrder(ref)
	if err != nil {
		return err
	}
	sequenceComplete, isNextPending := true, true
	if t.WrappingSequence != nil {
		seq, err := m.resolveSequence(t.WrappingSequence.Name)
		if err != nil {
			return err
		}
		sequenceComplete = seq.Complete
		isNextPending = seq.IsNextPending(t.Name)
	}
	return m.mutateOrder(ref, func(t *TransportOrder) error { return t.Activate(sequenceComplete, isNextPending) })
}

// DependenciesSatisfied reports whether every dependency of order ref has
// reached FINISHED.
func (m *Manager) DependenciesSatisfied(ref string) (bool, error) {
	t, err := m.resolveOrder(ref)
	if err != nil {
		return false, err
	}
	for _, dep := range t.Dependencies {
		d, err := m.resolveOrder(dep)
		if err != nil {
			return false, err
		}
		if d.State != StateFinished {
			return false, nil
		}
	}
	return true, nil
}

// AdvanceToDispatchable transitions ACTIVE -> DISPATCHABLE once every
// dependency is finished; it is a no-op (not an error) if dependencies are
// not yet satisfied.
func (m *Manager) AdvanceToDispatchable(ref string) error {
	ok, err := m.DependenciesSatisfied(ref)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return m.mutateOrder(ref, func(t *TransportOrder) error {
		if t.State != StateActive {
			return nil
		}
		return t.MarkDispatchable()
	})
}

// DispatchVehicle attempts to assign vehicleRef the highest-priority
// DISPATCHABLE order it can route to. setIdleIfUnavailable permits
// dispatching a vehicle that is not currently IDLE.
func (m *Manager) DispatchVehicle(vehicleRef string, setIdleIfUnavailable bool, now int64) (*TransportOrder, error) {
	if m.routing == nil {
		return nil, kernelerr.IllegalState("routing provider not wired")
	}
	vEntity, ok := m.pool.GetByName(vehicleRef)
	if !ok {
		return nil, kernelerr.ObjectUnknown(vehicleRef)
	}
	v, ok := vEntity.(*topology.Vehicle)
	if !ok {
		return nil, kernelerr.ObjectUnknown(vehicleRef)
	}
	if v.ProcState != topology.ProcIdle && !setIdleIfUnavailable {
		return nil, kernelerr.IllegalArgument("vehicle " + vehicleRef + " is not IDLE")
	}

	var candidates []*TransportOrder
	for _, e := range m.pool.ByKind("TransportOrder") {
		t := e.(*TransportOrder)
		if t.State != StateDispatchable {
			continue
		}
		if t.IntendedVehicle != nil && t.IntendedVehicle.Name != vehicleRef {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if CompareByPriority(c, best) < 0 {
			best = c
		}
	}

	from := ""
	if v.CurrentPosition != nil {
		from = v.CurrentPosition.Name
	}
	destinations := make([]Destination, len(best.FutureDriveOrders))
	for i, d := range best.FutureDriveOrders {
		destinations[i] = d.Destination
	}
	if !m.routing.Routable(vehicleRef, from, destinations) {
		if err := m.mutateOrder(best.Name, func(t *TransportOrder) error { return t.MarkUnroutable() }); err != nil {
			return nil, err
		}
		return nil, nil
	}
	routes, err := m.routing.ComputeRoutes(vehicleRef, from, destinations)
	if err != nil {
		return nil, err
	}
	if err := m.mutateOrder(best.Name, func(t *TransportOrder) error {
		for i := range t.FutureDriveOrders {
			if i < len(routes) {
				t.FutureDriveOrders[i].Route = routes[i]
			}
		}
		return t.AssignVehicle(topology.Ref{ID: v.ID, Name: v.Name})
	}); err != nil {
		return nil, err
	}
	if err := m.facade.SetVehicleTransportOrder(vehicleRef, best.Name); err != nil {
		return nil, err
	}
	if err := m.facade.SetVehicleProcState(vehicleRef, topology.ProcProcessing); err != nil {
		return nil, err
	}
	return m.resolveOrder(best.Name)
}

// WithdrawTransportOrder implements the two-step withdrawal contract: the
// first call requests a graceful stop (state -> WITHDRAWN); a second call
// for the same order aborts immediately, failing the order and optionally
// disabling its processing vehicle.
func (m *Manager) WithdrawTransportOrder(ref string, disableVehicle bool, now int64) error {
	t, err := m.resolveOrder(ref)
	if err != nil {
		return err
	}
	alreadyRequested := t.WithdrawalRequested
	if err := m.mutateOrder(ref, func(t *TransportOrder) error {
		_, err := t.Withdraw()
		return err
	}); err != nil {
		return err
	}
	if alreadyRequested {
		if err := m.mutateOrder(ref, func(t *TransportOrder) error { return t.Fail(now) }); err != nil {
			return err
		}
		if disableVehicle && t.ProcessingVehicle != nil {
			return m.facade.SetVehicleProcState(t.ProcessingVehicle.Name, topology.ProcUnavailable)
		}
	}
	return nil
}

// WithdrawTransportOrderByVehicle withdraws whichever order vehicleRef is
// currently processing.
func (m *Manager) WithdrawTransportOrderByVehicle(vehicleRef string, disableVehicle bool, now int64) error {
	e, ok := m.pool.GetByName(vehicleRef)
	if !ok {
		return kernelerr.ObjectUnknown(vehicleRef)
	}
	v, ok := e.(*topology.Vehicle)
	if !ok {
		return kernelerr.ObjectUnknown(vehicleRef)
	}
	if v.TransportOrder == nil {
		return kernelerr.IllegalArgument("vehicle " + vehicleRef + " has no current transport order")
	}
	return m.WithdrawTransportOrder(v.TransportOrder.Name, disableVehicle, now)
}

// FinishCurrentDriveOrder advances order ref's current drive order to
// FINISHED, notifying its wrapping sequence if it completes the order.
func (m *Manager) FinishCurrentDriveOrder(ref string, now int64) error {
	t, err := m.resolveOrder(ref)
	if err != nil {
		return err
	}
	wrapping := t.WrappingSequence
	if err := m.mutateOrder(ref, func(t *TransportOrder) error { return t.AdvanceDriveOrder(now) }); err != nil {
		return err
	}
	if wrapping == nil {
		return nil
	}
	final, err := m.resolveOrder(ref)
	if err != nil {
		return err
	}
	if final.State != StateFinished && final.State != StateFailed {
		return nil
	}
	e, ok := m.pool.GetByName(wrapping.Name)
	if !ok {
		return nil
	}
	seq := e.(*OrderSequence).Clone().(*OrderSequence)
	idx := seq.MemberIndex(ref)
	if idx < 0 {
		return nil
	}
	finished := seq.AdvanceFinished(idx)
	if final.State == StateFailed && seq.FailureFatal {
		for _, member := range seq.Members[idx+1:] {
			if err := m.mutateOrder(member, func(t *TransportOrder) error { return t.Fail(now) }); err != nil {
				return err
			}
		}
	}
	if err := m.pool.Replace(seq); err != nil {
		return err
	}
	_ = finished
	return nil
}

// CreateOrderSequence allocates a new, empty order sequence.
func (m *Manager) CreateOrderSequence(name string) (*OrderSequence, error) {
	s := &OrderSequence{ID: m.ids.UniqueID(), Name: name, FinishedIndex: -1}
	if err := m.pool.Add(s); err != nil {
		m.ids.ReleaseID(s.ID)
		return nil, err
	}
	return s, nil
}

func (m *Manager) mutateSequence(ref string, mutate func(*OrderSequence) error) error {
	s, err := m.resolveSequence(ref)
	if err != nil {
		return err
	}
	updated := s.Clone().(*OrderSequence)
	if err := mutate(updated); err != nil {
		return err
	}
	return m.pool.Replace(updated)
}

func (m *Manager) AddOrderSequenceOrder(seqRef, orderRef string) error {
	t, err := m.resolveOrder(orderRef)
	if err != nil {
		return err
	}
	alreadyActivated := t.State != StateRaw
	if err := m.mutateSequence(seqRef, func(s *OrderSequence) error { return s.AddOrder(orderRef, alreadyActivated) }); err != nil {
		return err
	}
	seqEntity, _ := m.pool.GetByName(seqRef)
	ref := topology.Ref{ID: seqEntity.ObjectID(), Name: seqEntity.ObjectName()}
	return m.mutateOrder(orderRef, func(t *TransportOrder) error { t.WrappingSequence = &ref; return nil })
}

func (m *Manager) RemoveOrderSequenceOrder(seqRef, orderRef string) error {
	return m.mutateSequence(seqRef, func(s *OrderSequence) error { return s.RemoveOrder(orderRef) })
}

func (m *Manager) SetOrderSequenceComplete(ref string, complete bool) error {
	return m.mutateSequence(ref, func(s *OrderSequence) error { return s.SetComplete(complete) })
}

func (m *Manager) SetOrderSequenceFailureFatal(ref string, fatal bool) error {
	return m.mutateSequence(ref, func(s *OrderSequence) error { s.FailureFatal = fatal; return nil })
}

func (m *Manager) SetOrderSequenceIntendedVehicle(ref, vehicleRef string) error {
	var next *topology.Ref
	if vehicleRef != "" {
		e, ok := m.pool.GetByName(vehicleRef)
		if !ok {
			return kernelerr.ObjectUnknown(vehicleRef)
		}
		next = &topology.Ref{ID: e.ObjectID(), Name: e.ObjectName()}
	}
	return m.mutateSequence(ref, func(s *OrderSequence) error { s.IntendedVehicle = next; return nil })
}

// PublishMessage creates an immutable Message entity.
func (m *Manager) PublishMessage(name, body string, msgType MessageType, now int64) (*Message, error) {
	msg := &Message{ID: m.ids.UniqueID(), Name: name, Body: body, Type: msgType, Timestamp: now}
	if err := m.pool.Add(msg); err != nil {
		m.ids.ReleaseID(msg.ID)
		return nil, err
	}
	return msg, nil
}

// TravelCostResult is one entry of a getTravelCosts response.
type TravelCostResult struct {
	Destination string
	Cost        int64
}

// GetTravelCosts returns dstLocs sorted ascending by travel cost from
// srcLoc for vehicle.
func (m *Manager) GetTravelCosts(vehicle, srcLoc string, dstLocs []string) ([]TravelCostResult, error) {
	if m.routing == nil {
		return nil, kernelerr.IllegalState("routing provider not wired")
	}
	out := make([]TravelCostResult, 0, len(dstLocs))
	for _, dst := range dstLocs {
		cost, ok := m.routing.TravelCost(vehicle, srcLoc, dst)
		if !ok {
			continue
		}
		out = append(out, TravelCostResult{Destination: dst, Cost: cost})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Cost < out[j-1].Cost; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// scriptOrderSpec is the shape a createTransportOrdersFromScript entry
// point is expected to return for each order to create.
type scriptOrderSpec struct {
	Name         string   `json:"name"`
	Destinations []struct {
		Location  string `json:"location"`
		Operation string `json:"operation"`
	} `json:"destinations"`
	Deadline int64 `json:"deadline"`
}

// CreateTransportOrdersFromScript runs a user script whose entry point
// function returns an array of order specifications, and creates a
// transport order for each. Every script execution gets a fresh goja
// runtime so scripts cannot share state across calls.
func (m *Manager) CreateTransportOrdersFromScript(script, entryPoint string, now int64) ([]*TransportOrder, error) {
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return nil, kernelerr.IllegalArgument(fmt.Sprintf("script compile error: %v", err))
	}
	entry, ok := goja.AssertFunction(vm.Get(entryPoint))
	if !ok {
		return nil, kernelerr.IllegalArgument("entry point '" + entryPoint + "' is not a function")
	}
	result, err := entry(goja.Undefined())
	if err != nil {
		return nil, kernelerr.IllegalArgument(fmt.Sprintf("script execution error: %v", err))
	}
	exported := result.Export()
	raw, err := json.Marshal(exported)
	if err != nil {
		return nil, kernelerr.IllegalArgument("script result is not JSON-serialisable: " + err.Error())
	}
	var specs []scriptOrderSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, kernelerr.IllegalArgument("script must return an array of order specifications: " + err.Error())
	}

	created := make([]*TransportOrder, 0, len(specs))
	for _, spec := range specs {
		destinations := make([]Destination, len(spec.Destinations))
		for i, d := range spec.Destinations {
			destinations[i] = Destination{Location: d.Location, Operation: d.Operation}
		}
		deadline := spec.Deadline
		if deadline == 0 {
			deadline = MaxDeadline
		}
		t, err := m.CreateTransportOrder(spec.Name, destinations, deadline, now)
		if err != nil {
			if m.log != nil {
				m.log.WithError(err).Warn("createTransportOrdersFromScript: skipping order " + spec.Name)
			}
			continue
		}
		created = append(created, t)
		now++
	}
	return created, nil
}
