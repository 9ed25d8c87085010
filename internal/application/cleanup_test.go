package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextpie/sessiond/internal/config"
	"github.com/nextpie/sessiond/internal/domain"
)

func TestReconcileStartupSuspendsLeftoverServers(t *testing.T) {
	panel := newFakePanel()
	panel.servers = []domain.Server{
		{ID: 40, UserID: 1, Suspended: false},
		{ID: 41, UserID: 2, Suspended: true},
		{ID: 42, UserID: 3, Suspended: false},
		{ID: 43, UserID: 4, Suspended: false},
	}

	cleanup := NewCleanup(newFakeLedger(), panel, syncedCache(panel), NewRegistry(4), nil, config.Cleanup{
		ProtectedServers: []int{42},
	})
	cleanup.ReconcileStartup(context.Background())

	assert.ElementsMatch(t, []int{40, 43}, panel.suspendedIDs())
}

func TestSweepClearsStaleActiveFlags(t *testing.T) {
	ledger := newFakeLedger()
	panel := newFakePanel()
	panel.users = []domain.PanelUser{{ID: 1, Username: "acc-1"}, {ID: 2, Username: "acc-2"}}
	panel.servers = []domain.Server{
		{ID: 40, UserID: 1, Suspended: true},
		{ID: 41, UserID: 2, Suspended: false},
	}
	registry := NewRegistry(4)

	// acc-1 is flagged active with a suspended server and no billing loop:
	// stale, must be cleared. acc-2 has a live loop and stays untouched.
	ledger.seed(domain.Account{ID: "acc-1", Credits: 2, ActiveSession: true, StopRequested: true})
	ledger.seed(domain.Account{ID: "acc-2", Credits: 2, ActiveSession: true})
	require.NoError(t, registry.Reserve("acc-2"))

	cleanup := NewCleanup(ledger, panel, syncedCache(panel), registry, nil, config.Cleanup{})
	require.NoError(t, cleanup.Sweep(context.Background()))

	stale := ledger.account("acc-1")
	assert.False(t, stale.ActiveSession)
	assert.False(t, stale.StopRequested)
	assert.True(t, ledger.account("acc-2").ActiveSession)
	assert.True(t, registry.Contains("acc-2"))
}

func TestSweepReleasesRegistryEntryWithoutServer(t *testing.T) {
	ledger := newFakeLedger()
	panel := newFakePanel()
	panel.users = []domain.PanelUser{{ID: 1, Username: "acc-1"}}
	registry := NewRegistry(4)

	ledger.seed(domain.Account{ID: "acc-1", Credits: 2, ActiveSession: true})
	require.NoError(t, registry.Reserve("acc-1"))

	cleanup := NewCleanup(ledger, panel, syncedCache(panel), registry, nil, config.Cleanup{})
	require.NoError(t, cleanup.Sweep(context.Background()))

	assert.False(t, registry.Contains("acc-1"))
	assert.False(t, ledger.account("acc-1").ActiveSession)
}

func TestSweepDeletesIdleBrokeServers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := fixedClock{now: now}

	ledger := newFakeLedger()
	panel := newFakePanel()
	panel.users = []domain.PanelUser{
		{ID: 1, Username: "acc-idle"},
		{ID: 2, Username: "acc-fresh"},
		{ID: 3, Username: "acc-funded"},
	}
	panel.servers = []domain.Server{
		{ID: 40, UserID: 1, Suspended: true},
		{ID: 41, UserID: 2, Suspended: true},
		{ID: 42, UserID: 3, Suspended: true},
	}

	ledger.seed(domain.Account{ID: "acc-idle", Credits: 0, LastOnline: now.Add(-40 * 24 * time.Hour)})
	ledger.seed(domain.Account{ID: "acc-fresh", Credits: 0, LastOnline: now.Add(-time.Hour)})
	ledger.seed(domain.Account{ID: "acc-funded", Credits: 3, LastOnline: now.Add(-40 * 24 * time.Hour)})

	cleanup := NewCleanup(ledger, panel, syncedCache(panel), NewRegistry(4), clock, config.Cleanup{
		IdleThreshold: 30 * 24 * time.Hour,
	})
	require.NoError(t, cleanup.Sweep(context.Background()))

	assert.Equal(t, []int{40}, panel.deletedSrv)
}

func TestSweepIdleDeletionDisabledByDefault(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	ledger := newFakeLedger()
	panel := newFakePanel()
	panel.users = []domain.PanelUser{{ID: 1, Username: "acc-idle"}}
	panel.servers = []domain.Server{{ID: 40, UserID: 1, Suspended: true}}
	ledger.seed(domain.Account{ID: "acc-idle", Credits: 0, LastOnline: now.Add(-400 * 24 * time.Hour)})

	cleanup := NewCleanup(ledger, panel, syncedCache(panel), NewRegistry(4), fixedClock{now: now}, config.Cleanup{})
	require.NoError(t, cleanup.Sweep(context.Background()))

	assert.Empty(t, panel.deletedSrv)
}
