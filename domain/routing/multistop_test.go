package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/topology"
)

func TestComputeRoutesSingleStopRoutesToLinkedPoint(t *testing.T) {
	_, facade, engine := newEngineFixture(t)

	for _, name := range []string{"p1", "p2", "p3"} {
		_, err := facade.CreatePoint(name, topology.Triple{})
		require.NoError(t, err)
	}
	_, err := facade.CreatePath("p1--p2", "p1", "p2", 10, 1)
	require.NoError(t, err)
	require.NoError(t, facade.SetPathMaxVelocity("p1--p2", 1000))
	_, err = facade.CreatePath("p2--p3", "p2", "p3", 20, 1)
	require.NoError(t, err)
	require.NoError(t, facade.SetPathMaxVelocity("p2--p3", 1000))

	_, err = facade.CreateLocationType("lt")
	require.NoError(t, err)
	require.NoError(t, facade.AddLocationTypeAllowedOperation("lt", "LOAD"))
	_, err = facade.CreateLocation("loc2", "lt", topology.Triple{})
	require.NoError(t, err)
	require.NoError(t, facade.ConnectLocationToPoint("loc2", "p2"))

	_, err = facade.CreateVehicle("v1", 1000)
	require.NoError(t, err)

	routes, err := engine.ComputeRoutes("v1", "p1", []orders.Destination{{Location: "loc2", Operation: "LOAD"}})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, int64(10), routes[0].Cost, "must route via p1->p2, not compose an unreachable detour")
}

func TestComputeRoutesUnreachableDestinationReturnsNil(t *testing.T) {
	_, facade, engine := newEngineFixture(t)
	_, _ = facade.CreatePoint("p1", topology.Triple{})
	_, _ = facade.CreatePoint("p2", topology.Triple{})
	_, _ = facade.CreateVehicle("v1", 1000)

	_, err := facade.CreateLocationType("lt")
	require.NoError(t, err)
	require.NoError(t, facade.AddLocationTypeAllowedOperation("lt", "LOAD"))
	_, err = facade.CreateLocation("loc2", "lt", topology.Triple{})
	require.NoError(t, err)
	require.NoError(t, facade.ConnectLocationToPoint("loc2", "p2"))

	routes, err := engine.ComputeRoutes("v1", "p1", []orders.Destination{{Location: "loc2", Operation: "LOAD"}})
	require.NoError(t, err)
	assert.Nil(t, routes, "no path connects p1 to p2, so no composition should be found")
}

func TestAdmissiblePointsRejectsNonHaltingPosition(t *testing.T) {
	pool, facade, _ := newEngineFixture(t)
	_, err := facade.CreatePoint("p1", topology.Triple{})
	require.NoError(t, err)
	require.NoError(t, facade.SetPointType("p1", topology.PointReport))

	points := AdmissiblePoints(pool, orders.Destination{Location: "p1", Operation: OpMove})
	assert.Empty(t, points)
}
