package orders

import (
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// TransportOrderState is one of the lifecycle states of §4.3.
type TransportOrderState string

const (
	StateRaw             TransportOrderState = "RAW"
	StateActive          TransportOrderState = "ACTIVE"
	StateDispatchable    TransportOrderState = "DISPATCHABLE"
	StateBeingProcessed  TransportOrderState = "BEING_PROCESSED"
	StateWithdrawn       TransportOrderState = "WITHDRAWN"
	StateFinished        TransportOrderState = "FINISHED"
	StateFailed          TransportOrderState = "FAILED"
	StateUnroutable      TransportOrderState = "UNROUTABLE"
)

// IsTerminal reports whether s admits no further transitions.
func (s TransportOrderState) IsTerminal() bool {
	return s == StateFinished || s == StateFailed || s == StateUnroutable
}

// Rejection records a vehicle's (or dispatcher's) refusal to take an order.
type Rejection struct {
	Vehicle   string
	Timestamp int64
	Reason    string
}

// MaxDeadline is the sentinel "no deadline" value (+infinity, epoch ms).
const MaxDeadline = int64(1<<63 - 1)

// TransportOrder is a named, ordered list of drive orders with a deadline, a
// state, and optional dependencies and sequence membership.
type TransportOrder struct {
	ID         int
	Name       string
	Properties map[string]string

	CreatedAt int64 // unix millis, unique and monotonically increasing
	Deadline  int64 // unix millis, MaxDeadline if unset

	PastDriveOrders    []DriveOrder
	CurrentDriveOrder  *DriveOrder
	FutureDriveOrders  []DriveOrder

	Rejections   []Rejection
	Dependencies []string // names of other transport orders

	WrappingSequence  *topology.Ref
	IntendedVehicle   *topology.Ref
	ProcessingVehicle *topology.Ref

	State               TransportOrderState
	FinishedTimestamp   int64
	Dispensable         bool
	WithdrawalRequested bool
}

func (t *TransportOrder) ObjectID() int      { return t.ID }
func (t *TransportOrder) ObjectName() string { return t.Name }
func (t *TransportOrder) Kind() string       { return "TransportOrder" }

func (t *TransportOrder) Clone() objectpool.Entity {
	cp := *t
	if t.Properties != nil {
		cp.Properties = make(map[string]string, len(t.Properties))
		for k, v := range t.Properties {
			cp.Properties[k] = v
		}
	}
	cp.PastDriveOrders = cloneDriveOrders(t.PastDriveOrders)
	cp.FutureDriveOrders = cloneDriveOrders(t.FutureDriveOrders)
	if t.CurrentDriveOrder != nil {
		d := t.CurrentDriveOrder.clone()
		cp.CurrentDriveOrder = &d
	}
	cp.Rejections = append([]Rejection(nil), t.Rejections...)
	cp.Dependencies = append([]string(nil), t.Dependencies...)
	if t.WrappingSequence != nil {
		r := *t.WrappingSequence
		cp.WrappingSequence = &r
	}
	if t.IntendedVehicle != nil {
		r := *t.IntendedVehicle
		cp.IntendedVehicle = &r
	}
	if t.ProcessingVehicle != nil {
		r := *t.ProcessingVehicle
		cp.ProcessingVehicle = &r
	}
	return &cp
}

func (t *TransportOrder) WithName(name string) objectpool.Entity {
	clone := t.Clone().(*TransportOrder)
	clone.Name = name
	return clone
}

func (t *TransportOrder) requireNonTerminal() error {
	if t.State.IsTerminal() {
		return kernelerr.IllegalState("transport order " + t.Name + " is in a terminal state")
	}
	return nil
}

// Activate transitions RAW -> ACTIVE. sequenceComplete and isNextPending
// describe the wrapping sequence's state, if any (pass true/true when the
// order does not belong to a sequence).
func (t *TransportOrder) Activate(sequenceComplete bool, isNextPending bool) error {
	if t.State != StateRaw {
		return kernelerr.IllegalState("transport order " + t.Name + " is not RAW")
	}
	if t.WrappingSequence != nil {
		if sequenceComplete {
			return kernelerr.IllegalState("order sequence " + t.WrappingSequence.Name + " is complete")
		}
		if !isNextPending {
			return kernelerr.IllegalArgument("order " + t.Name + " is not the next pending member of its sequence")
		}
	}
	t.State = StateActive
	return nil
}

// MarkDispatchable transitions ACTIVE -> DISPATCHABLE. It does not check
// dependencies itself; Manager.AdvanceToDispatchable calls it only once
// every dependency has reached FINISHED.
func (t *TransportOrder) MarkDispatchable() error {
	if t.State != StateActive {
		return kernelerr.IllegalState("transport order " + t.Name + " is not ACTIVE")
	}
	t.State = StateDispatchable
	return nil
}

// AssignVehicle transitions DISPATCHABLE -> BEING_PROCESSED once routing has
// succeeded for vehicle.
func (t *TransportOrder) AssignVehicle(vehicle topology.Ref) error {
	if t.State != StateDispatchable {
		return kernelerr.IllegalState("transport order " + t.Name + " is not DISPATCHABLE")
	}
	t.ProcessingVehicle = &vehicle
	t.State = StateBeingProcessed
	if len(t.FutureDriveOrders) > 0 {
		next := t.FutureDriveOrders[0]
		t.FutureDriveOrders = t.FutureDriveOrders[1:]
		t.CurrentDriveOrder = &next
	}
	return nil
}

// MarkUnroutable transitions DISPATCHABLE -> UNROUTABLE.
func (t *TransportOrder) MarkUnroutable() error {
	if t.State != StateDispatchable {
		return kernelerr.IllegalState("transport order " + t.Name + " is not DISPATCHABLE")
	}
	t.State = StateUnroutable
	return nil
}

// AdvanceDriveOrder marks the current drive order FINISHED and either pulls
// the next future drive order in or, if none remain, finishes the whole
// transport order.
func (t *TransportOrder) AdvanceDriveOrder(finishedAt int64) error {
	if t.State != StateBeingProcessed {
		return kernelerr.IllegalState("transport order " + t.Name + " is not BEING_PROCESSED")
	}
	if t.CurrentDriveOrder == nil {
		return kernelerr.IllegalState("transport order " + t.Name + " has no current drive order")
	}
	finished := *t.CurrentDriveOrder
	finished.State = DriveOrderFinished
	t.PastDriveOrders = append(t.PastDriveOrders, finished)
	if len(t.FutureDriveOrders) > 0 {
		next := t.FutureDriveOrders[0]
		t.FutureDriveOrders = t.FutureDriveOrders[1:]
		t.CurrentDriveOrder = &next
		return nil
	}
	t.CurrentDriveOrder = nil
	t.State = StateFinished
	t.FinishedTimestamp = finishedAt
	return nil
}

// Fail transitions any non-terminal state to FAILED.
func (t *TransportOrder) Fail(finishedAt int64) error {
	if t.State.IsTerminal() {
		return kernelerr.IllegalState("transport order " + t.Name + " is already terminal")
	}
	t.State = StateFailed
	t.FinishedTimestamp = finishedAt
	return nil
}

// Withdraw implements the two-step withdrawal contract: the first call (on
// any non-terminal order) requests a graceful stop; any later call is the
// abort-now signal for the same order, handled by the caller (typically by
// immediately failing the order and disabling the vehicle).
func (t *TransportOrder) Withdraw() (alreadyRequested bool, err error) {
	if t.State.IsTerminal() {
		return false, kernelerr.IllegalState("transport order " + t.Name + " is already terminal")
	}
	if t.WithdrawalRequested {
		return true, nil
	}
	t.WithdrawalRequested = true
	t.State = StateWithdrawn
	return false, nil
}

// AddDependency registers a dependency, allowed only in RAW or ACTIVE.
func (t *TransportOrder) AddDependency(name string) error {
	if t.State != StateRaw && t.State != StateActive {
		return kernelerr.IllegalState("dependencies may only be edited in RAW or ACTIVE")
	}
	for _, d := range t.Dependencies {
		if d == name {
			return nil
		}
	}
	t.Dependencies = append(t.Dependencies, name)
	return nil
}

// RemoveDependency removes a dependency, allowed only in RAW or ACTIVE.
func (t *TransportOrder) RemoveDependency(name string) error {
	if t.State != StateRaw && t.State != StateActive {
		return kernelerr.IllegalState("dependencies may only be edited in RAW or ACTIVE")
	}
	filtered := t.Dependencies[:0:0]
	for _, d := range t.Dependencies {
		if d != name {
			filtered = append(filtered, d)
		}
	}
	t.Dependencies = filtered
	return nil
}

// SetFutureDriveOrders replaces the future drive-order list. The new list
// must have the same length and pointwise-equal destinations as the
// current one; only route and per-drive-order state are allowed to differ.
func (t *TransportOrder) SetFutureDriveOrders(next []DriveOrder) error {
	if err := t.requireNonTerminal(); err != nil {
		return err
	}
	if !destinationsEqual(t.FutureDriveOrders, next) {
		return errDestinationMismatch
	}
	t.FutureDriveOrders = cloneDriveOrders(next)
	return nil
}

// CompareByPriority implements the dispatcher's priority order: earliest
// deadline first, ties broken by earliest creation timestamp.
func CompareByPriority(a, b *TransportOrder) int {
	if a.Deadline != b.Deadline {
		if a.Deadline < b.Deadline {
			return -1
		}
		return 1
	}
	return CompareByAge(a, b)
}

// CompareByAge orders by earliest creation timestamp, ties broken by
// smaller ID.
func CompareByAge(a, b *TransportOrder) int {
	if a.CreatedAt != b.CreatedAt {
		if a.CreatedAt < b.CreatedAt {
			return -1
		}
		return 1
	}
	if a.ID != b.ID {
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	return 0
}
