package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentcs-go/kernel/domain/topology"
)

func newOrder(name string) *TransportOrder {
	return &TransportOrder{Name: name, State: StateRaw, Deadline: MaxDeadline}
}

func TestActivateRejectsNonRaw(t *testing.T) {
	o := newOrder("o1")
	require.NoError(t, o.Activate(true, true))
	assert.Equal(t, StateActive, o.State)

	err := o.Activate(true, true)
	assert.Error(t, err, "activating twice must fail")
}

func TestActivateBlockedByIncompleteSequence(t *testing.T) {
	o := newOrder("o1")
	o.WrappingSequence = &topology.Ref{Name: "seq1"}

	err := o.Activate(false, false)
	assert.Error(t, err, "an order that is not the next pending member must not activate")

	o2 := newOrder("o2")
	o2.WrappingSequence = &topology.Ref{Name: "seq1"}
	err = o2.Activate(true, true)
	assert.Error(t, err, "a complete sequence must not admit new activations")
}

func TestFullLifecycleToFinished(t *testing.T) {
	o := newOrder("o1")
	o.FutureDriveOrders = []DriveOrder{
		{Destination: Destination{Location: "loc1", Operation: "MOVE"}},
		{Destination: Destination{Location: "loc2", Operation: "MOVE"}},
	}

	require.NoError(t, o.Activate(true, true))
	require.NoError(t, o.MarkDispatchable())
	assert.Equal(t, StateDispatchable, o.State)

	require.NoError(t, o.AssignVehicle(topology.Ref{Name: "v1"}))
	assert.Equal(t, StateBeingProcessed, o.State)
	require.NotNil(t, o.CurrentDriveOrder)
	assert.Equal(t, "loc1", o.CurrentDriveOrder.Destination.Location)
	assert.Len(t, o.FutureDriveOrders, 1, "assigning a vehicle must pull the first future order in")

	require.NoError(t, o.AdvanceDriveOrder(100))
	require.NotNil(t, o.CurrentDriveOrder)
	assert.Equal(t, "loc2", o.CurrentDriveOrder.Destination.Location)
	assert.Len(t, o.PastDriveOrders, 1)
	assert.Equal(t, StateBeingProcessed, o.State, "more future drive orders remain")

	require.NoError(t, o.AdvanceDriveOrder(200))
	assert.Equal(t, StateFinished, o.State)
	assert.Nil(t, o.CurrentDriveOrder)
	assert.Len(t, o.PastDriveOrders, 2)
	assert.Equal(t, int64(200), o.FinishedTimestamp)
}

func TestAdvanceDriveOrderRejectedOutsideBeingProcessed(t *testing.T) {
	o := newOrder("o1")
	err := o.AdvanceDriveOrder(1)
	assert.Error(t, err)
}

func TestTwoStepWithdrawal(t *testing.T) {
	o := newOrder("o1")
	o.FutureDriveOrders = []DriveOrder{{Destination: Destination{Location: "loc1", Operation: "MOVE"}}}
	require.NoError(t, o.Activate(true, true))
	require.NoError(t, o.MarkDispatchable())
	require.NoError(t, o.AssignVehicle(topology.Ref{Name: "v1"}))

	alreadyRequested, err := o.Withdraw()
	require.NoError(t, err)
	assert.False(t, alreadyRequested, "first withdrawal is a graceful request, not an abort")
	assert.Equal(t, StateWithdrawn, o.State)
	assert.True(t, o.WithdrawalRequested)

	alreadyRequested, err = o.Withdraw()
	require.NoError(t, err)
	assert.True(t, alreadyRequested, "second withdrawal on the same order signals abort-now to the caller")
}

func TestWithdrawRejectedOnTerminalOrder(t *testing.T) {
	o := newOrder("o1")
	require.NoError(t, o.Fail(1))
	_, err := o.Withdraw()
	assert.Error(t, err)
}

func TestFailFromAnyNonTerminalState(t *testing.T) {
	o := newOrder("o1")
	require.NoError(t, o.Fail(42))
	assert.Equal(t, StateFailed, o.State)
	assert.Equal(t, int64(42), o.FinishedTimestamp)

	err := o.Fail(43)
	assert.Error(t, err, "failing an already-terminal order must be rejected")
}

func TestDependencyEditingRestrictedToRawAndActive(t *testing.T) {
	o := newOrder("o1")
	require.NoError(t, o.AddDependency("dep1"))
	require.NoError(t, o.AddDependency("dep1"), "adding the same dependency twice is a no-op")
	assert.Len(t, o.Dependencies, 1)

	require.NoError(t, o.Activate(true, true))
	require.NoError(t, o.RemoveDependency("dep1"))
	assert.Empty(t, o.Dependencies)

	require.NoError(t, o.MarkDispatchable())
	err := o.AddDependency("dep2")
	assert.Error(t, err, "dependencies are frozen once an order is dispatchable")
}

func TestSetFutureDriveOrdersRejectsDestinationMismatch(t *testing.T) {
	o := newOrder("o1")
	o.FutureDriveOrders = []DriveOrder{{Destination: Destination{Location: "loc1", Operation: "MOVE"}}}

	err := o.SetFutureDriveOrders([]DriveOrder{{Destination: Destination{Location: "loc2", Operation: "MOVE"}}})
	assert.Error(t, err, "replacing future drive orders must not change their destinations")

	err = o.SetFutureDriveOrders([]DriveOrder{{Destination: Destination{Location: "loc1", Operation: "MOVE"}, State: DriveOrderTravelling}})
	assert.NoError(t, err, "state and route may differ as long as destinations match")
}

func TestCompareByPriorityDeadlineThenAge(t *testing.T) {
	a := &TransportOrder{Name: "a", Deadline: 100, CreatedAt: 5, ID: 1}
	b := &TransportOrder{Name: "b", Deadline: 200, CreatedAt: 1, ID: 2}
	assert.Equal(t, -1, CompareByPriority(a, b), "earlier deadline wins regardless of creation order")

	c := &TransportOrder{Name: "c", Deadline: 100, CreatedAt: 10, ID: 3}
	d := &TransportOrder{Name: "d", Deadline: 100, CreatedAt: 5, ID: 4}
	assert.Equal(t, 1, CompareByPriority(c, d), "tied deadlines fall back to creation age")
}
