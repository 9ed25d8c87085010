package application

import (
	"context"
	"log"
	"slices"
	"time"

	"github.com/nextpie/sessiond/internal/config"
	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
)

// Cleanup reconciles drift between the ledger, the session registry and
// the panel. The hot path never corrects drift; only this sweep does.
type Cleanup struct {
	ledger   ports.Ledger
	panel    ports.Panel
	cache    *Cache
	registry *Registry
	clock    ports.Clock
	cfg      config.Cleanup
}

func NewCleanup(ledger ports.Ledger, panel ports.Panel, cache *Cache, registry *Registry, clock ports.Clock, cfg config.Cleanup) *Cleanup {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Cleanup{
		ledger:   ledger,
		panel:    panel,
		cache:    cache,
		registry: registry,
		clock:    clock,
		cfg:      cfg,
	}
}

// ReconcileStartup suspends every server left running from a previous
// process life, except the protected ids. No billing loop survives a
// restart, so anything still running is unmetered.
func (c *Cleanup) ReconcileStartup(ctx context.Context) {
	snap := c.cache.Current()
	suspended := 0
	for _, server := range snap.Servers {
		if server.Suspended || slices.Contains(c.cfg.ProtectedServers, server.ID) {
			continue
		}
		if err := c.panel.SuspendServer(ctx, server.ID); err != nil {
			log.Printf("[ERROR] suspending server %d: %v", server.ID, err)
			continue
		}
		suspended++
	}
	log.Printf("[INFO] cleared queue, stopped %d servers from running", suspended)
}

// Sweep applies the reconciliation policy once:
//   - ledger rows flagged active whose server is suspended or missing
//     remotely, with no live billing loop, get the active and stop flags
//     cleared;
//   - registry entries whose account no longer owns a server are released;
//   - suspended servers of broke, idle accounts are deleted once the idle
//     threshold is exceeded (disabled when the threshold is zero).
func (c *Cleanup) Sweep(ctx context.Context) error {
	started := c.clock.Now()
	snap := c.cache.Current()

	accounts, err := c.ledger.List(ctx)
	if err != nil {
		return err
	}

	cleared := 0
	deleted := 0
	for _, account := range accounts {
		server, owns := c.serverFor(snap, account.ID)

		if account.ActiveSession && !c.registry.Contains(account.ID) && (!owns || server.Suspended) {
			if err := c.ledger.SetActive(ctx, account.ID, false); err != nil {
				log.Printf("[ERROR] sweep: clearing active flag for %s: %v", account.ID, err)
				continue
			}
			if err := c.ledger.SetStopRequested(ctx, account.ID, false); err != nil {
				log.Printf("[ERROR] sweep: clearing stop flag for %s: %v", account.ID, err)
			}
			cleared++
		}

		if owns && c.idleDeletable(account, server) {
			if err := c.panel.DeleteServer(ctx, server.ID); err != nil {
				log.Printf("[ERROR] sweep: deleting idle server %d: %v", server.ID, err)
				continue
			}
			deleted++
		}
	}

	// A registry entry without a backing server can only come from remote
	// deletion out from under a live session; release the slot so it does
	// not pin capacity.
	for _, id := range c.registry.Members() {
		if _, owns := c.serverFor(snap, id); owns {
			continue
		}
		c.registry.Release(id)
		if err := c.ledger.SetActive(ctx, id, false); err != nil {
			log.Printf("[ERROR] sweep: clearing active flag for %s: %v", id, err)
		}
		log.Printf("[INFO] sweep: released stale session slot for %s", id)
	}

	log.Printf("[INFO] sweep done, cleared %d stale flags, deleted %d idle servers, took %s",
		cleared, deleted, c.clock.Now().Sub(started).Round(time.Millisecond))
	return nil
}

func (c *Cleanup) serverFor(snap domain.Snapshot, id domain.AccountID) (domain.Server, bool) {
	user, ok := snap.UserByAccount(id)
	if !ok {
		return domain.Server{}, false
	}
	return snap.ServerByUser(user.ID)
}

func (c *Cleanup) idleDeletable(account domain.Account, server domain.Server) bool {
	if c.cfg.IdleThreshold <= 0 || !server.Suspended {
		return false
	}
	if account.Credits > 0 || account.StopRequested || account.ActiveSession {
		return false
	}
	return c.clock.Now().Sub(account.LastOnline) > c.cfg.IdleThreshold
}

// Run sweeps on a long fixed interval until ctx is canceled.
func (c *Cleanup) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sweep(ctx); err != nil {
				log.Printf("[ERROR] cleanup sweep: %v", err)
			}
		}
	}
}
