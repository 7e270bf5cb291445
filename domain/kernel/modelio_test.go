package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/eventbus"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

func TestSnapshotAndRestorePoolRoundTrip(t *testing.T) {
	ids := identity.NewService()
	pool := objectpool.New(ids, eventbus.New())
	facade := topology.NewFacade(pool, ids)

	_, err := facade.CreatePoint("p1", topology.Triple{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	_, err = facade.CreatePoint("p2", topology.Triple{})
	require.NoError(t, err)
	_, err = facade.CreatePath("p1--p2", "p1", "p2", 100, 1)
	require.NoError(t, err)
	_, err = facade.CreateVehicle("v1", 1000)
	require.NoError(t, err)

	data, err := snapshotPool(pool)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restoreIDs := identity.NewService()
	restorePoolTarget := objectpool.New(restoreIDs, eventbus.New())
	require.NoError(t, restorePool(restorePoolTarget, restoreIDs, data))

	assert.Equal(t, pool.Len(), restorePoolTarget.Len())

	pt, ok := restorePoolTarget.GetByName("p1")
	require.True(t, ok)
	restored := pt.(*topology.Point)
	assert.Equal(t, int64(1), restored.Position.X)
	assert.Equal(t, int64(2), restored.Position.Y)
	assert.Equal(t, int64(3), restored.Position.Z)

	path, ok := restorePoolTarget.GetByName("p1--p2")
	require.True(t, ok)
	assert.Equal(t, int64(100), path.(*topology.Path).Length)

	// The restored identity service must have reserved every id/name so
	// freshly-created entities cannot collide with the restored ones.
	newID := restoreIDs.UniqueID()
	for _, e := range restorePoolTarget.All() {
		assert.NotEqual(t, e.ObjectID(), newID)
	}
}

func TestRestorePoolEmptyDataClearsPool(t *testing.T) {
	ids := identity.NewService()
	pool := objectpool.New(ids, eventbus.New())
	facade := topology.NewFacade(pool, ids)
	_, err := facade.CreatePoint("p1", topology.Triple{})
	require.NoError(t, err)

	require.NoError(t, restorePool(pool, ids, nil))
	assert.Equal(t, 0, pool.Len())
}

func TestSnapshotPoolRejectsUnknownEntityKindOnRestore(t *testing.T) {
	ids := identity.NewService()
	pool := objectpool.New(ids, eventbus.New())

	err := restorePool(pool, ids, []byte(`[{"kind":"NotAThing","data":{}}]`))
	assert.Error(t, err)
}
