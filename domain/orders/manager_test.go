package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/eventbus"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// fakeRouting stubs the routing engine dependency so the manager's dispatch
// logic can be tested without spinning up domain/routing.
type fakeRouting struct {
	routable bool
	route    Route
}

func (f *fakeRouting) Routable(vehicle, from string, destinations []Destination) bool {
	return f.routable
}

func (f *fakeRouting) ComputeRoutes(vehicle, from string, destinations []Destination) ([]Route, error) {
	routes := make([]Route, len(destinations))
	for i := range destinations {
		routes[i] = f.route
	}
	return routes, nil
}

func (f *fakeRouting) TravelCost(vehicle, srcLoc, dstLoc string) (int64, bool) {
	return f.route.Cost, f.routable
}

func newManagerFixture(t *testing.T, routing RoutingProvider) (*Manager, *topology.Facade) {
	t.Helper()
	ids := identity.NewService()
	bus := eventbus.New()
	pool := objectpool.New(ids, bus)
	facade := topology.NewFacade(pool, ids)
	mgr := NewManager(pool, facade, ids, routing, nil)
	return mgr, facade
}

func TestDispatchVehicleAssignsHighestPriorityRoutableOrder(t *testing.T) {
	routing := &fakeRouting{routable: true, route: Route{Cost: 50}}
	mgr, facade := newManagerFixture(t, routing)

	_, err := facade.CreateVehicle("v1", 1000)
	require.NoError(t, err)
	require.NoError(t, facade.SetVehicleProcState("v1", topology.ProcIdle))

	dests := []Destination{{Location: "loc1", Operation: "MOVE"}}
	urgent, err := mgr.CreateTransportOrder("urgent", dests, 100, 1)
	require.NoError(t, err)
	require.NoError(t, mgr.ActivateTransportOrder(urgent.Name))
	require.NoError(t, mgr.AdvanceToDispatchable(urgent.Name))

	lazy, err := mgr.CreateTransportOrder("lazy", dests, 1000, 2)
	require.NoError(t, err)
	require.NoError(t, mgr.ActivateTransportOrder(lazy.Name))
	require.NoError(t, mgr.AdvanceToDispatchable(lazy.Name))

	assigned, err := mgr.DispatchVehicle("v1", false, 10)
	require.NoError(t, err)
	require.NotNil(t, assigned)
	assert.Equal(t, "urgent", assigned.Name, "the earlier-deadline order must be dispatched first")
	assert.Equal(t, StateBeingProcessed, assigned.State)

	v, err := facade.GetObject("v1")
	require.NoError(t, err)
	vehicle := v.(*topology.Vehicle)
	assert.Equal(t, topology.ProcProcessing, vehicle.ProcState)
	require.NotNil(t, vehicle.TransportOrder)
	assert.Equal(t, "urgent", vehicle.TransportOrder.Name)
}

func TestDispatchVehicleMarksUnroutableOrderAndReturnsNil(t *testing.T) {
	routing := &fakeRouting{routable: false}
	mgr, facade := newManagerFixture(t, routing)
	_, err := facade.CreateVehicle("v1", 1000)
	require.NoError(t, err)
	require.NoError(t, facade.SetVehicleProcState("v1", topology.ProcIdle))

	order, err := mgr.CreateTransportOrder("o1", []Destination{{Location: "loc1", Operation: "MOVE"}}, MaxDeadline, 1)
	require.NoError(t, err)
	require.NoError(t, mgr.ActivateTransportOrder(order.Name))
	require.NoError(t, mgr.AdvanceToDispatchable(order.Name))

	assigned, err := mgr.DispatchVehicle("v1", false, 10)
	require.NoError(t, err)
	assert.Nil(t, assigned)

	e, err := mgr.resolveOrder("o1")
	require.NoError(t, err)
	assert.Equal(t, StateUnroutable, e.State, "a vehicle that cannot reach the order must mark it unroutable, not leave it dispatchable forever")
}

func TestDependenciesGateAdvanceToDispatchable(t *testing.T) {
	mgr, _ := newManagerFixture(t, nil)
	dep, err := mgr.CreateTransportOrder("dep", []Destination{{Location: "loc1", Operation: "MOVE"}}, MaxDeadline, 1)
	require.NoError(t, err)
	require.NoError(t, mgr.ActivateTransportOrder(dep.Name))

	main, err := mgr.CreateTransportOrder("main", []Destination{{Location: "loc2", Operation: "MOVE"}}, MaxDeadline, 2)
	require.NoError(t, err)
	require.NoError(t, mgr.ActivateTransportOrder(main.Name))
	require.NoError(t, mgr.AddTransportOrderDependency(main.Name, dep.Name))

	require.NoError(t, mgr.AdvanceToDispatchable(main.Name))
	after, err := mgr.resolveOrder(main.Name)
	require.NoError(t, err)
	assert.Equal(t, StateActive, after.State, "must not advance while its dependency is unfinished")

	require.NoError(t, mgr.mutateOrder(dep.Name, func(t *TransportOrder) error { return t.MarkDispatchable() }))
	require.NoError(t, mgr.mutateOrder(dep.Name, func(t *TransportOrder) error { return t.AssignVehicle(topology.Ref{Name: "v1"}) }))
	require.NoError(t, mgr.mutateOrder(dep.Name, func(t *TransportOrder) error { return t.AdvanceDriveOrder(5) }))

	require.NoError(t, mgr.AdvanceToDispatchable(main.Name))
	after, err = mgr.resolveOrder(main.Name)
	require.NoError(t, err)
	assert.Equal(t, StateDispatchable, after.State, "finishing the dependency must unblock the dependent order")
}

func TestWithdrawTransportOrderTwoStepAbort(t *testing.T) {
	routing := &fakeRouting{routable: true, route: Route{Cost: 10}}
	mgr, facade := newManagerFixture(t, routing)
	_, err := facade.CreateVehicle("v1", 1000)
	require.NoError(t, err)
	require.NoError(t, facade.SetVehicleProcState("v1", topology.ProcIdle))

	order, err := mgr.CreateTransportOrder("o1", []Destination{{Location: "loc1", Operation: "MOVE"}}, MaxDeadline, 1)
	require.NoError(t, err)
	require.NoError(t, mgr.ActivateTransportOrder(order.Name))
	require.NoError(t, mgr.AdvanceToDispatchable(order.Name))
	_, err = mgr.DispatchVehicle("v1", false, 10)
	require.NoError(t, err)

	require.NoError(t, mgr.WithdrawTransportOrder("o1", true, 20))
	afterFirst, err := mgr.resolveOrder("o1")
	require.NoError(t, err)
	assert.Equal(t, StateWithdrawn, afterFirst.State, "first withdrawal only requests a graceful stop")

	require.NoError(t, mgr.WithdrawTransportOrder("o1", true, 30))
	afterSecond, err := mgr.resolveOrder("o1")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, afterSecond.State, "second withdrawal aborts the order immediately")

	v, err := facade.GetObject("v1")
	require.NoError(t, err)
	assert.Equal(t, topology.ProcUnavailable, v.(*topology.Vehicle).ProcState, "aborting must disable the vehicle when requested")
}

func TestFinishCurrentDriveOrderPropagatesToSequence(t *testing.T) {
	mgr, _ := newManagerFixture(t, nil)
	order, err := mgr.CreateTransportOrder("o1", []Destination{{Location: "loc1", Operation: "MOVE"}}, MaxDeadline, 1)
	require.NoError(t, err)
	seq, err := mgr.CreateOrderSequence("seq1")
	require.NoError(t, err)
	require.NoError(t, mgr.AddOrderSequenceOrder(seq.Name, order.Name))
	require.NoError(t, mgr.ActivateTransportOrder(order.Name))
	require.NoError(t, mgr.SetOrderSequenceComplete(seq.Name, true))

	require.NoError(t, mgr.mutateOrder(order.Name, func(t *TransportOrder) error { return t.MarkDispatchable() }))
	require.NoError(t, mgr.mutateOrder(order.Name, func(t *TransportOrder) error { return t.AssignVehicle(topology.Ref{Name: "v1"}) }))

	require.NoError(t, mgr.FinishCurrentDriveOrder(order.Name, 99))

	finalSeq, err := mgr.resolveSequence(seq.Name)
	require.NoError(t, err)
	assert.Equal(t, 0, finalSeq.FinishedIndex, "the sequence must be notified once its sole member finishes")
}
