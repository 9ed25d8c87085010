package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nextpie/sessiond/internal/config"
	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
)

// SpawnFunc launches the billing loop for an admitted session. Production
// wiring runs Biller.Run on a daemon-scoped goroutine; tests substitute a
// synchronous recorder.
type SpawnFunc func(id domain.AccountID, serverID int)

// Admission is the single decision point for starting a session. It checks
// credit balance, the global concurrency cap, and panel state, provisions
// or reactivates the server, and hands the session to the billing loop.
type Admission struct {
	ledger   ports.Ledger
	panel    ports.Panel
	cache    *Cache
	registry *Registry
	profile  config.Profile
	spawn    SpawnFunc
}

func NewAdmission(ledger ports.Ledger, panel ports.Panel, cache *Cache, registry *Registry, profile config.Profile, spawn SpawnFunc) *Admission {
	return &Admission{
		ledger:   ledger,
		panel:    panel,
		cache:    cache,
		registry: registry,
		profile:  profile,
		spawn:    spawn,
	}
}

// Start admits the account or returns a *domain.Rejection explaining why
// it was turned down. On success the account holds a registry slot, the
// ledger active flag is set, and a billing loop owns the session.
func (a *Admission) Start(ctx context.Context, id domain.AccountID) (domain.Server, error) {
	credits, err := a.ledger.Credits(ctx, id)
	if err != nil {
		return domain.Server{}, fmt.Errorf("read credits: %w", err)
	}
	if credits < 1 {
		return domain.Server{}, domain.Reject(domain.RejectInsufficientCredits)
	}

	// Capacity check and registration are one atomic step; every failure
	// path below must release the slot again.
	if err := a.registry.Reserve(id); err != nil {
		return domain.Server{}, err
	}

	server, err := a.resolveServer(ctx, id)
	if err != nil {
		a.registry.Release(id)
		return domain.Server{}, err
	}

	if err := a.ledger.SetActive(ctx, id, true); err != nil {
		log.Printf("[ERROR] setting active flag for %s: %v", id, err)
	}

	log.Printf("[INFO] starting server %d for %s", server.ID, id)
	a.spawn(id, server.ID)
	return server, nil
}

// resolveServer reactivates the account's existing server or provisions a
// new one on a free allocation.
func (a *Admission) resolveServer(ctx context.Context, id domain.AccountID) (domain.Server, error) {
	snap := a.cache.Current()

	user, ok := snap.UserByAccount(id)
	if !ok {
		return domain.Server{}, domain.Reject(domain.RejectAccountNotSynced)
	}

	if server, ok := snap.ServerByUser(user.ID); ok {
		return a.reactivate(ctx, server)
	}

	// The ledger may know about a server the snapshot has not picked up
	// yet; treat it as running rather than provisioning a duplicate.
	account, err := a.ledger.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.Server{}, fmt.Errorf("read ledger row: %w", err)
	}
	if account.ActiveSession {
		return domain.Server{}, domain.Reject(domain.RejectAlreadyRunning)
	}

	allocation, ok := snap.FreeAllocation()
	if !ok {
		log.Printf("[ERROR] no free allocations left")
		return domain.Server{}, domain.Reject(domain.RejectNoFreeAllocation)
	}

	server, err := a.panel.CreateServer(ctx, a.serverSpec(user.ID, allocation.ID))
	if err != nil {
		log.Printf("[ERROR] creating server for %s: %v", id, err)
		return domain.Server{}, domain.Reject(domain.RejectProvisioningError)
	}

	return server, nil
}

func (a *Admission) reactivate(ctx context.Context, server domain.Server) (domain.Server, error) {
	// Fresh read; the cached suspended flag can be minutes stale.
	fresh, err := a.panel.GetServer(ctx, server.ID)
	if err != nil {
		log.Printf("[ERROR] reading server %d: %v", server.ID, err)
		return domain.Server{}, domain.Reject(domain.RejectProvisioningError)
	}
	if !fresh.Suspended {
		return domain.Server{}, domain.Reject(domain.RejectAlreadyRunning)
	}

	if err := a.panel.UnsuspendServer(ctx, server.ID); err != nil {
		if !errors.Is(err, domain.ErrPanelTransient) {
			log.Printf("[ERROR] unsuspending server %d: %v", server.ID, err)
		}
		return domain.Server{}, domain.Reject(domain.RejectProvisioningError)
	}

	fresh.Suspended = false
	return fresh, nil
}

func (a *Admission) serverSpec(panelUserID, allocationID int) domain.ServerSpec {
	return domain.ServerSpec{
		Name:         a.profile.Name,
		UserID:       panelUserID,
		NestID:       a.profile.NestID,
		EggID:        a.profile.EggID,
		DockerImage:  a.profile.DockerImage,
		Startup:      a.profile.Startup,
		Environment:  a.profile.Environment,
		AllocationID: allocationID,
		MemoryMB:     a.profile.MemoryMB,
		DiskMB:       a.profile.DiskMB,
		CPUPercent:   a.profile.CPUPercent,
	}
}

// Stop requests a cooperative stop of the account's running session. The
// billing loop observes the flag at its next tick boundary.
func (a *Admission) Stop(ctx context.Context, id domain.AccountID) error {
	if !a.registry.Contains(id) {
		return domain.ErrNoActiveSession
	}
	if err := a.ledger.SetStopRequested(ctx, id, true); err != nil {
		return fmt.Errorf("set stop flag: %w", err)
	}
	return nil
}
