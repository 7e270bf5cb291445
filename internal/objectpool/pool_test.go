package objectpool

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentcs-go/kernel/internal/eventbus"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/metrics"
)

type fakeEntity struct {
	ID   int
	Name string
}

func (f *fakeEntity) ObjectID() int      { return f.ID }
func (f *fakeEntity) ObjectName() string { return f.Name }
func (f *fakeEntity) Kind() string       { return "Fake" }
func (f *fakeEntity) Clone() Entity      { cp := *f; return &cp }
func (f *fakeEntity) WithName(name string) Entity {
	cp := *f
	cp.Name = name
	return &cp
}

func newPoolFixture() (*Pool, *identity.Service, *eventbus.Bus) {
	ids := identity.NewService()
	bus := eventbus.New()
	return New(ids, bus), ids, bus
}

func TestAddEnforcesIDAndNameUniqueness(t *testing.T) {
	pool, _, _ := newPoolFixture()
	require.NoError(t, pool.Add(&fakeEntity{ID: 1, Name: "a"}))

	err := pool.Add(&fakeEntity{ID: 1, Name: "b"})
	assert.Error(t, err, "duplicate ID must be rejected")

	err = pool.Add(&fakeEntity{ID: 2, Name: "a"})
	assert.Error(t, err, "duplicate name must be rejected")
}

func TestGetByIDAndByName(t *testing.T) {
	pool, _, _ := newPoolFixture()
	require.NoError(t, pool.Add(&fakeEntity{ID: 1, Name: "a"}))

	byID, ok := pool.GetByID(1)
	require.True(t, ok)
	assert.Equal(t, "a", byID.ObjectName())

	byName, ok := pool.GetByName("a")
	require.True(t, ok)
	assert.Equal(t, 1, byName.ObjectID())

	_, ok = pool.GetByName("missing")
	assert.False(t, ok)
}

func TestRenameIsNoopWhenNameUnchanged(t *testing.T) {
	pool, _, bus := newPoolFixture()
	require.NoError(t, pool.Add(&fakeEntity{ID: 1, Name: "a"}))

	events := 0
	bus.Subscribe(func(eventbus.Event) { events++ })

	require.NoError(t, pool.Rename("a", "a"))
	assert.Equal(t, 1, events, "a no-op rename must still emit a modified event")

	e, ok := pool.GetByName("a")
	require.True(t, ok)
	assert.Equal(t, "a", e.ObjectName())
}

func TestRenameRejectsCollision(t *testing.T) {
	pool, _, _ := newPoolFixture()
	require.NoError(t, pool.Add(&fakeEntity{ID: 1, Name: "a"}))
	require.NoError(t, pool.Add(&fakeEntity{ID: 2, Name: "b"}))

	err := pool.Rename("a", "b")
	assert.Error(t, err)
}

func TestRenameUpdatesByNameIndex(t *testing.T) {
	pool, _, _ := newPoolFixture()
	require.NoError(t, pool.Add(&fakeEntity{ID: 1, Name: "a"}))
	require.NoError(t, pool.Rename("a", "a-renamed"))

	_, ok := pool.GetByName("a")
	assert.False(t, ok)
	e, ok := pool.GetByName("a-renamed")
	require.True(t, ok)
	assert.Equal(t, 1, e.ObjectID())
}

func TestReplaceRejectsNameChange(t *testing.T) {
	pool, _, _ := newPoolFixture()
	require.NoError(t, pool.Add(&fakeEntity{ID: 1, Name: "a"}))

	err := pool.Replace(&fakeEntity{ID: 1, Name: "b"})
	assert.Error(t, err, "Replace must not be used to rename; Rename exists for that")
}

func TestRemoveReleasesIDAndName(t *testing.T) {
	pool, ids, _ := newPoolFixture()
	id := ids.UniqueID()
	require.NoError(t, pool.Add(&fakeEntity{ID: id, Name: "a"}))
	// Allocate a second id so the first is no longer the lowest free one.
	second := ids.UniqueID()
	require.NotEqual(t, id, second)

	require.NoError(t, pool.Remove("a"))
	_, ok := pool.GetByName("a")
	assert.False(t, ok)
	assert.Equal(t, 0, pool.Len())

	assert.Equal(t, id, ids.UniqueID(), "removing must release the id for reuse as the lowest free one")
}

func TestByKindFiltersByKindOnly(t *testing.T) {
	pool, _, _ := newPoolFixture()
	require.NoError(t, pool.Add(&fakeEntity{ID: 1, Name: "a"}))
	require.NoError(t, pool.Add(&fakeEntity{ID: 2, Name: "b"}))

	matches := pool.ByKind("Fake")
	assert.Len(t, matches, 2)
	assert.Empty(t, pool.ByKind("Other"))
}

func TestMutationsAreCountedByOpAndType(t *testing.T) {
	pool, _, _ := newPoolFixture()
	m := metrics.NewWithRegistry("pool-test", nil)
	pool.SetMetrics(m)

	require.NoError(t, pool.Add(&fakeEntity{ID: 1, Name: "a"}))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ObjectPoolMutationsTotal.WithLabelValues("add", "Fake")))

	require.NoError(t, pool.Rename("a", "b"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ObjectPoolMutationsTotal.WithLabelValues("rename", "Fake")))

	require.NoError(t, pool.Replace(&fakeEntity{ID: 1, Name: "b"}))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ObjectPoolMutationsTotal.WithLabelValues("setProperty", "Fake")))

	require.NoError(t, pool.Remove("b"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ObjectPoolMutationsTotal.WithLabelValues("remove", "Fake")))
}

func TestClearEmptiesPoolWithoutEvents(t *testing.T) {
	pool, _, bus := newPoolFixture()
	require.NoError(t, pool.Add(&fakeEntity{ID: 1, Name: "a"}))

	events := 0
	bus.Subscribe(func(eventbus.Event) { events++ })
	pool.Clear()

	assert.Equal(t, 0, pool.Len())
	assert.Equal(t, 0, events, "Clear is used on model load and must stay silent")
}
