package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSequence(name string) *OrderSequence {
	return &OrderSequence{Name: name, FinishedIndex: -1}
}

func TestAddOrderEnforcesInsertionOrderAndUniqueness(t *testing.T) {
	s := newSequence("seq1")
	require.NoError(t, s.AddOrder("o1", false))
	require.NoError(t, s.AddOrder("o2", false))
	assert.Equal(t, []string{"o1", "o2"}, s.Members)

	err := s.AddOrder("o1", false)
	assert.Error(t, err, "the same order must not join twice")

	err = s.AddOrder("o3", true)
	assert.Error(t, err, "an order already activated outside its sequence cannot join")
}

func TestAddOrderRejectedOnCompleteSequence(t *testing.T) {
	s := newSequence("seq1")
	require.NoError(t, s.SetComplete(true))
	err := s.AddOrder("o1", false)
	assert.Error(t, err)
}

func TestSetCompleteIsMonotone(t *testing.T) {
	s := newSequence("seq1")
	require.NoError(t, s.SetComplete(true))
	err := s.SetComplete(false)
	assert.Error(t, err, "a completed sequence cannot be reopened")
}

func TestIsNextPendingFollowsInsertionOrder(t *testing.T) {
	s := newSequence("seq1")
	require.NoError(t, s.AddOrder("o1", false))
	require.NoError(t, s.AddOrder("o2", false))
	require.NoError(t, s.AddOrder("o3", false))

	assert.True(t, s.IsNextPending("o1"))
	assert.False(t, s.IsNextPending("o2"), "o2 is not next until o1 finishes")

	finished := s.AdvanceFinished(0)
	assert.False(t, finished, "sequence is not yet marked complete")
	assert.True(t, s.IsNextPending("o2"))
}

func TestAdvanceFinishedCompletesOnlyWhenSequenceComplete(t *testing.T) {
	s := newSequence("seq1")
	require.NoError(t, s.AddOrder("o1", false))
	require.NoError(t, s.AddOrder("o2", false))

	assert.False(t, s.AdvanceFinished(0))
	assert.False(t, s.AdvanceFinished(1), "all members terminal, but sequence not yet marked complete")

	require.NoError(t, s.SetComplete(true))
	assert.True(t, s.AdvanceFinished(1), "re-advancing the already-finished last member reports overall completion")
}

func TestAdvanceFinishedIgnoresOutOfOrderIndex(t *testing.T) {
	s := newSequence("seq1")
	require.NoError(t, s.AddOrder("o1", false))
	require.NoError(t, s.AddOrder("o2", false))
	require.NoError(t, s.AddOrder("o3", false))

	s.AdvanceFinished(2)
	assert.Equal(t, -1, s.FinishedIndex, "skipping ahead out of order must not move the cursor")
}

func TestRemoveOrderRejectedOnCompleteSequence(t *testing.T) {
	s := newSequence("seq1")
	require.NoError(t, s.AddOrder("o1", false))
	require.NoError(t, s.SetComplete(true))

	err := s.RemoveOrder("o1")
	assert.Error(t, err)
}

func TestMemberIndex(t *testing.T) {
	s := newSequence("seq1")
	require.NoError(t, s.AddOrder("o1", false))
	require.NoError(t, s.AddOrder("o2", false))

	assert.Equal(t, 0, s.MemberIndex("o1"))
	assert.Equal(t, 1, s.MemberIndex("o2"))
	assert.Equal(t, -1, s.MemberIndex("o3"))
}
