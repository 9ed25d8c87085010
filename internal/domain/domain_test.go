package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsRejection(t *testing.T) {
	rejection, ok := AsRejection(Reject(RejectCapacityReached))
	require.True(t, ok)
	assert.Equal(t, RejectCapacityReached, rejection.Reason)

	wrapped := fmt.Errorf("start session: %w", Reject(RejectInsufficientCredits))
	rejection, ok = AsRejection(wrapped)
	require.True(t, ok)
	assert.Equal(t, RejectInsufficientCredits, rejection.Reason)

	_, ok = AsRejection(errors.New("boom"))
	assert.False(t, ok)

	_, ok = AsRejection(ErrNoActiveSession)
	assert.False(t, ok)
}

func TestSnapshotLookups(t *testing.T) {
	snap := Snapshot{
		Users: []PanelUser{
			{ID: 7, Username: "acc-1"},
			{ID: 8, Username: "acc-2"},
		},
		Servers: []Server{
			{ID: 40, UserID: 7},
			{ID: 41, UserID: 8},
			{ID: 42, UserID: 8, Suspended: true},
		},
		Allocations: []Allocation{
			{ID: 11, Assigned: true},
			{ID: 12, Assigned: false},
			{ID: 13, Assigned: false},
		},
	}

	user, ok := snap.UserByAccount("acc-1")
	require.True(t, ok)
	assert.Equal(t, 7, user.ID)

	_, ok = snap.UserByAccount("acc-ghost")
	assert.False(t, ok)

	server, ok := snap.ServerByUser(7)
	require.True(t, ok)
	assert.Equal(t, 40, server.ID)

	owned := snap.ServersByUser(8)
	require.Len(t, owned, 2)

	assert.Empty(t, snap.ServersByUser(99))

	allocation, ok := snap.FreeAllocation()
	require.True(t, ok)
	assert.Equal(t, 12, allocation.ID)

	_, ok = Snapshot{}.FreeAllocation()
	assert.False(t, ok)
}
