package kernel

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentcs-go/kernel/domain/orders"
)

// TestOrderAndDispatchOpsRejectedWhileModelling exercises spec §4.6's
// gating of order-lifecycle and dispatch operations through the
// Supervisor wrappers, not just through Do directly: MODELLING must
// reject them even though the underlying orders.Manager would happily
// perform them.
func TestOrderAndDispatchOpsRejectedWhileModelling(t *testing.T) {
	s := newSupervisorFixture(t)
	require.Equal(t, Modelling, s.GetState())

	_, err := s.CreateTransportOrder("to1", []orders.Destination{{Location: "l1", Operation: "MOVE"}}, 0, 0)
	assert.Error(t, err, "order creation must be rejected while MODELLING")

	_, err = s.CreateTransportOrdersFromScript("s1", "l1", 0)
	assert.Error(t, err, "script-driven order creation must be rejected while MODELLING")

	err = s.WithdrawTransportOrder("to1", false, 0)
	assert.Error(t, err, "withdrawal must be rejected while MODELLING")

	_, err = s.DispatchVehicle("v1", false, 0)
	assert.Error(t, err, "dispatch must be rejected while MODELLING")
}

// TestOrderAndDispatchOpsPermittedWhileOperating confirms the same ops
// succeed (reach the orders.Manager) once OPERATING, proving the gate
// is a mode check and not a blanket rejection.
func TestOrderAndDispatchOpsPermittedWhileOperating(t *testing.T) {
	s := newSupervisorFixture(t)
	_, err := s.CreateVehicle("v1", 1000)
	require.NoError(t, err)
	require.NoError(t, s.SetState(Operating))

	order, err := s.CreateTransportOrder("to1", []orders.Destination{{Location: "l1", Operation: "MOVE"}}, 0, 1)
	require.NoError(t, err, "order creation must be permitted while OPERATING")
	require.NotNil(t, order)

	_, err = s.DispatchVehicle("v1", true, 2)
	assert.NoError(t, err, "dispatch must be permitted while OPERATING, even if no order is assignable")

	err = s.WithdrawTransportOrder(order.Name, false, 3)
	assert.NoError(t, err, "withdrawal must be permitted while OPERATING")
}

// TestOrderOpsRecordStateAndActiveGauge confirms the typed wrappers feed
// opentcs_transport_orders_total and opentcs_transport_orders_active,
// closing the gap where those collectors were declared but never called.
func TestOrderOpsRecordStateAndActiveGauge(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.SetState(Operating))

	order, err := s.CreateTransportOrder("to1", []orders.Destination{{Location: "l1", Operation: "MOVE"}}, 0, 1)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.TransportOrdersTotal.WithLabelValues(string(orders.StateRaw))))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.TransportOrdersActive))

	require.NoError(t, s.WithdrawTransportOrder(order.Name, false, 2))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.TransportOrdersTotal.WithLabelValues(string(orders.StateWithdrawn))))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.TransportOrdersActive), "a first withdrawal request is not yet terminal")

	// A second withdrawal request on an already-withdrawn order fails it,
	// which is terminal and must leave the active gauge.
	require.NoError(t, s.WithdrawTransportOrder(order.Name, false, 3))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.TransportOrdersTotal.WithLabelValues(string(orders.StateFailed))))
	assert.Equal(t, float64(0), testutil.ToFloat64(s.metrics.TransportOrdersActive))
}
