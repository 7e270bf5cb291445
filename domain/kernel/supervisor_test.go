package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/routing"
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/eventbus"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/kernellog"
	"github.com/opentcs-go/kernel/internal/kvstore"
	"github.com/opentcs-go/kernel/internal/metrics"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

func newSupervisorFixture(t *testing.T) *Supervisor {
	t.Helper()
	ids := identity.NewService()
	bus := eventbus.New()
	pool := objectpool.New(ids, bus)
	facade := topology.NewFacade(pool, ids)
	engine := routing.NewEngine(pool, bus, routing.DistanceCost{}, routing.Exhaustive)
	mgr := orders.NewManager(pool, facade, ids, engine, nil)
	log := kernellog.New("kernel-test", "error", "text")
	cfg := kvstore.New(log)
	m := metrics.NewWithRegistry("kernel-test", nil)
	return NewSupervisor(pool, ids, facade, mgr, engine, nil, cfg, m, log, "test-secret")
}

func TestSupervisorStartsInModellingMode(t *testing.T) {
	s := newSupervisorFixture(t)
	assert.Equal(t, Modelling, s.GetState())
}

func TestShapeChangesPermittedOnlyInModelling(t *testing.T) {
	s := newSupervisorFixture(t)
	_, err := s.CreatePoint("p1", topology.Triple{})
	require.NoError(t, err, "shape changes are allowed in MODELLING")

	require.NoError(t, s.SetState(Operating))
	_, err = s.CreatePoint("p2", topology.Triple{})
	assert.Error(t, err, "shape changes must be rejected once OPERATING")

	err = s.SetPathLength("nonexistent", 10)
	assert.Error(t, err, "setPathLength is a shape-affecting operation, rejected in OPERATING regardless of target existing")
}

func TestPropertyEditsPermittedInModellingAndOperating(t *testing.T) {
	s := newSupervisorFixture(t)
	_, err := s.CreateVehicle("v1", 1000)
	require.NoError(t, err)
	require.NoError(t, s.SetVehiclePosition("v1", ""))

	require.NoError(t, s.SetState(Operating))
	err = s.RenameTCSObject("v1", "v1-renamed")
	assert.NoError(t, err, "property edits remain permitted once OPERATING")
}

func TestShutdownIsTerminalAndBlocksEverything(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.SetState(Operating))
	require.NoError(t, s.SetState(Shutdown))

	assert.Equal(t, Shutdown, s.GetState())

	err := s.SetState(Modelling)
	assert.Error(t, err, "shutdown must be terminal")

	_, err = s.CreateVehicle("v1", 1000)
	assert.Error(t, err, "no operation may proceed once shut down")
}

func TestSetStateToSameModeIsNoop(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.SetState(Modelling))
	assert.Equal(t, Modelling, s.GetState())
}

func TestDoGatesOnSuppliedOpKind(t *testing.T) {
	s := newSupervisorFixture(t)
	require.NoError(t, s.SetState(Operating))

	called := false
	err := s.Do("dispatchVehicle", opDispatch, func() error { called = true; return nil })
	assert.NoError(t, err)
	assert.True(t, called, "opDispatch is permitted while OPERATING")

	called = false
	err = s.Do("createPoint", opTopologyShape, func() error { called = true; return nil })
	assert.Error(t, err)
	assert.False(t, called, "the gated function must not run once the mode check fails")
}
