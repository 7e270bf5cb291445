package kernel

import (
	"github.com/opentcs-go/kernel/domain/orders"
)

// recordOrderState reports t's current lifecycle state (RAW, ACTIVE, ...)
// to opentcs_transport_orders_total and refreshes the active-order gauge
// from the pool's current contents. Called after each order wrapper below
// and after every dispatch sweep; order mutations made through
// OrdersManager() directly are not recorded.
func (s *Supervisor) recordOrderState(t *orders.TransportOrder) {
	if s.metrics == nil {
		return
	}
	if t != nil {
		s.metrics.RecordTransportOrderState(string(t.State))
	}
	active := 0
	for _, e := range s.pool.ByKind("TransportOrder") {
		if o, ok := e.(*orders.TransportOrder); ok && !o.State.IsTerminal() {
			active++
		}
	}
	s.metrics.SetActiveTransportOrders(active)
}

// CreateTransportOrder creates a new RAW transport order. Order lifecycle:
// permitted only in OPERATING.
func (s *Supervisor) CreateTransportOrder(name string, destinations []orders.Destination, deadline, now int64) (*orders.TransportOrder, error) {
	var t *orders.TransportOrder
	err := s.Do("createTransportOrder", opOrderLifecycle, func() error {
		var err error
		t, err = s.orders.CreateTransportOrder(name, destinations, deadline, now)
		return err
	})
	if err == nil {
		s.recordOrderState(t)
	}
	return t, err
}

// CreateTransportOrdersFromScript runs a user script that returns order
// specifications, creating a transport order for each. Order lifecycle:
// permitted only in OPERATING.
func (s *Supervisor) CreateTransportOrdersFromScript(script, entryPoint string, now int64) ([]*orders.TransportOrder, error) {
	var created []*orders.TransportOrder
	err := s.Do("createTransportOrdersFromScript", opOrderLifecycle, func() error {
		var err error
		created, err = s.orders.CreateTransportOrdersFromScript(script, entryPoint, now)
		return err
	})
	for _, t := range created {
		s.recordOrderState(t)
	}
	return created, err
}

// WithdrawTransportOrder implements the two-step withdrawal contract for
// order ref. Order lifecycle: permitted only in OPERATING.
func (s *Supervisor) WithdrawTransportOrder(ref string, disableVehicle bool, now int64) error {
	err := s.Do("withdrawTransportOrder", opOrderLifecycle, func() error {
		return s.orders.WithdrawTransportOrder(ref, disableVehicle, now)
	})
	if err == nil {
		if e, ok := s.pool.GetByName(ref); ok {
			if t, ok := e.(*orders.TransportOrder); ok {
				s.recordOrderState(t)
			}
		}
	}
	return err
}

// DispatchVehicle attempts to assign vehicleRef the highest-priority
// DISPATCHABLE order it can route to. Dispatch: permitted only in
// OPERATING.
func (s *Supervisor) DispatchVehicle(vehicleRef string, setIdleIfUnavailable bool, now int64) (*orders.TransportOrder, error) {
	var t *orders.TransportOrder
	err := s.Do("dispatchVehicle", opDispatch, func() error {
		var err error
		t, err = s.orders.DispatchVehicle(vehicleRef, setIdleIfUnavailable, now)
		return err
	})
	if err == nil && t != nil {
		s.recordOrderState(t)
	}
	return t, err
}
