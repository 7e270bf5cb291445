package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentcs-go/kernel/internal/eventbus"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

func newFacade(t *testing.T) *Facade {
	t.Helper()
	ids := identity.NewService()
	pool := objectpool.New(ids, eventbus.New())
	return NewFacade(pool, ids)
}

func TestCreatePathRegistersBothEndpoints(t *testing.T) {
	f := newFacade(t)
	_, err := f.CreatePoint("p1", Triple{})
	require.NoError(t, err)
	_, err = f.CreatePoint("p2", Triple{})
	require.NoError(t, err)

	path, err := f.CreatePath("p1--p2", "p1", "p2", 100, 1)
	require.NoError(t, err)

	src, err := f.resolvePoint("p1")
	require.NoError(t, err)
	dst, err := f.resolvePoint("p2")
	require.NoError(t, err)

	assert.True(t, containsRef(src.Outgoing, path.Name))
	assert.True(t, containsRef(dst.Incoming, path.Name))
}

func TestRemovePathDeregistersBothEndpoints(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	_, _ = f.CreatePoint("p2", Triple{})
	_, err := f.CreatePath("p1--p2", "p1", "p2", 100, 1)
	require.NoError(t, err)

	require.NoError(t, f.RemovePath("p1--p2"))

	src, err := f.resolvePoint("p1")
	require.NoError(t, err)
	dst, err := f.resolvePoint("p2")
	require.NoError(t, err)
	assert.Empty(t, src.Outgoing)
	assert.Empty(t, dst.Incoming)

	_, err = f.GetObject("p1--p2")
	assert.Error(t, err)
}

func TestRemovePointCascadesLinksAndPaths(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	_, _ = f.CreatePoint("p2", Triple{})
	_, err := f.CreatePath("p1--p2", "p1", "p2", 100, 1)
	require.NoError(t, err)

	_, err = f.CreateLocationType("lt")
	require.NoError(t, err)
	_, err = f.CreateLocation("loc", "lt", Triple{})
	require.NoError(t, err)
	require.NoError(t, f.ConnectLocationToPoint("loc", "p1"))

	require.NoError(t, f.RemovePoint("p1"))

	_, err = f.GetObject("p1--p2")
	assert.Error(t, err, "removing an endpoint must remove its paths")

	loc, err := f.resolveLocation("loc")
	require.NoError(t, err)
	assert.Empty(t, loc.Links, "removing a linked point must disconnect the link")

	dst, err := f.resolvePoint("p2")
	require.NoError(t, err)
	assert.Empty(t, dst.Incoming)
}

func TestConnectLocationToPointRejectsDuplicateLink(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	_, _ = f.CreateLocationType("lt")
	_, _ = f.CreateLocation("loc", "lt", Triple{})
	require.NoError(t, f.ConnectLocationToPoint("loc", "p1"))
	err := f.ConnectLocationToPoint("loc", "p1")
	assert.Error(t, err)
}

func TestDisconnectLocationFromPointSymmetric(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	_, _ = f.CreateLocationType("lt")
	_, _ = f.CreateLocation("loc", "lt", Triple{})
	require.NoError(t, f.ConnectLocationToPoint("loc", "p1"))
	require.NoError(t, f.DisconnectLocationFromPoint("loc", "p1"))

	loc, err := f.resolveLocation("loc")
	require.NoError(t, err)
	pt, err := f.resolvePoint("p1")
	require.NoError(t, err)
	assert.Empty(t, loc.Links)
	assert.Empty(t, pt.AttachedLinks)
}

func TestSetVehiclePositionOccupancyInvariant(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	_, _ = f.CreatePoint("p2", Triple{})
	_, err := f.CreateVehicle("v1", 1000)
	require.NoError(t, err)

	require.NoError(t, f.SetVehiclePosition("v1", "p1"))
	p1, err := f.resolvePoint("p1")
	require.NoError(t, err)
	require.NotNil(t, p1.OccupyingVehicle)
	assert.Equal(t, "v1", p1.OccupyingVehicle.Name)

	require.NoError(t, f.SetVehiclePosition("v1", "p2"))
	p1, err = f.resolvePoint("p1")
	require.NoError(t, err)
	p2, err := f.resolvePoint("p2")
	require.NoError(t, err)
	assert.Nil(t, p1.OccupyingVehicle, "moving off a point must clear its occupant")
	require.NotNil(t, p2.OccupyingVehicle)
	assert.Equal(t, "v1", p2.OccupyingVehicle.Name)

	v, err := f.resolveVehicle("v1")
	require.NoError(t, err)
	require.NotNil(t, v.CurrentPosition)
	assert.Equal(t, "p2", v.CurrentPosition.Name)
}

func TestSetObjectPropertyRoundTrip(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	val := "bar"
	require.NoError(t, f.SetObjectProperty("p1", "foo", &val))

	p1, err := f.resolvePoint("p1")
	require.NoError(t, err)
	assert.Equal(t, "bar", p1.Properties["foo"])

	require.NoError(t, f.SetObjectProperty("p1", "foo", nil))
	p1, err = f.resolvePoint("p1")
	require.NoError(t, err)
	_, ok := p1.Properties["foo"]
	assert.False(t, ok, "setting a nil value must clear the property")
}

func TestClearObjectPropertiesRemovesAll(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	a, b := "1", "2"
	require.NoError(t, f.SetObjectProperty("p1", "a", &a))
	require.NoError(t, f.SetObjectProperty("p1", "b", &b))
	require.NoError(t, f.ClearObjectProperties("p1"))

	p1, err := f.resolvePoint("p1")
	require.NoError(t, err)
	assert.Empty(t, p1.Properties)
}

func TestRenameObjectIsIdempotent(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	require.NoError(t, f.RenameObject("p1", "p1-renamed"))
	_, err := f.GetObject("p1")
	assert.Error(t, err)
	_, err = f.GetObject("p1-renamed")
	assert.NoError(t, err)

	// Renaming to the same name again is a no-op, not an error.
	require.NoError(t, f.RenameObject("p1-renamed", "p1-renamed"))
}

func TestCreatePathRejectsNonPositiveLengthOrCost(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	_, _ = f.CreatePoint("p2", Triple{})

	_, err := f.CreatePath("bad-length", "p1", "p2", 0, 1)
	assert.Error(t, err)
	_, err = f.CreatePath("bad-cost", "p1", "p2", 1, 0)
	assert.Error(t, err)
}

func TestExpandResourcesIncludesBlockMembers(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	_, _ = f.CreatePoint("p2", Triple{})
	_, err := f.CreateBlock("b1")
	require.NoError(t, err)
	require.NoError(t, f.AddBlockMember("b1", "p1"))
	require.NoError(t, f.AddBlockMember("b1", "p2"))

	expanded := f.ExpandResources([]string{"p1"})
	assert.ElementsMatch(t, []string{"p1", "p2"}, expanded)
}

func TestGetEffectiveResourcesFollowsAttachedChain(t *testing.T) {
	f := newFacade(t)
	_, _ = f.CreatePoint("p1", Triple{})
	_, _ = f.CreatePoint("p2", Triple{})
	_, _ = f.CreatePoint("p3", Triple{})
	require.NoError(t, f.AttachResource("p1", "p2"))
	require.NoError(t, f.AttachResource("p2", "p3"))

	effective := f.GetEffectiveResources([]string{"p1"})
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, effective)
}
