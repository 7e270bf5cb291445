package orders

import "github.com/opentcs-go/kernel/internal/kernelerr"

// Orientation is the direction a vehicle traverses a path on a route step.
type Orientation string

const (
	Forward  Orientation = "FORWARD"
	Backward Orientation = "BACKWARD"
)

// RouteStep is one hop of a computed route.
type RouteStep struct {
	Path        string // path name
	Destination string // point name reached by this step
	Orientation Orientation
	Index       int
}

// Route is a sequence of steps plus its total cost.
type Route struct {
	Steps []RouteStep
	Cost  int64
}

func (r Route) clone() Route {
	steps := append([]RouteStep(nil), r.Steps...)
	return Route{Steps: steps, Cost: r.Cost}
}

// Destination is a (location, operation) pair a drive order travels to.
type Destination struct {
	Location  string
	Operation string
}

// Equal reports destination equality by value, used by setFutureDriveOrders.
func (d Destination) Equal(o Destination) bool {
	return d.Location == o.Location && d.Operation == o.Operation
}

// DriveOrderState is a single drive order's progress within a transport order.
type DriveOrderState string

const (
	DriveOrderPristine   DriveOrderState = "PRISTINE"
	DriveOrderTravelling DriveOrderState = "TRAVELLING"
	DriveOrderOperating  DriveOrderState = "OPERATING"
	DriveOrderFinished   DriveOrderState = "FINISHED"
	DriveOrderFailed     DriveOrderState = "FAILED"
)

// DriveOrder is a single (destination, route) leg of a TransportOrder.
// Destinations are immutable once a transport order has been activated.
type DriveOrder struct {
	Destination Destination
	Route       Route
	State       DriveOrderState
}

func (d DriveOrder) clone() DriveOrder {
	return DriveOrder{Destination: d.Destination, Route: d.Route.clone(), State: d.State}
}

func cloneDriveOrders(list []DriveOrder) []DriveOrder {
	if list == nil {
		return nil
	}
	out := make([]DriveOrder, len(list))
	for i, d := range list {
		out[i] = d.clone()
	}
	return out
}

func destinationsEqual(a, b []DriveOrder) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Destination.Equal(b[i].Destination) {
			return false
		}
	}
	return true
}

var errDestinationMismatch = kernelerr.IllegalArgument("future drive orders must match existing destinations pointwise")
