package application

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
)

const (
	presenceIdle       = "your server"
	presenceRefreshing = "refreshing cache"
)

// Cache holds the last complete panel inventory snapshot. Refresh replaces
// the snapshot wholesale; a failed refresh leaves the previous one in place.
type Cache struct {
	panel    ports.Panel
	presence ports.Presence
	clock    ports.Clock
	nodeID   int

	mu     sync.RWMutex
	snap   domain.Snapshot
	synced bool
}

func NewCache(panel ports.Panel, presence ports.Presence, clock ports.Clock, nodeID int) *Cache {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Cache{
		panel:    panel,
		presence: presence,
		clock:    clock,
		nodeID:   nodeID,
	}
}

// Refresh fetches the full inventory and commits it atomically. Partial
// fetch failures abort the refresh without touching the snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	started := c.clock.Now()
	c.presence.Set(presenceRefreshing)
	defer c.presence.Set(presenceIdle)

	users, err := c.panel.ListUsers(ctx)
	if err != nil {
		return err
	}
	servers, err := c.panel.ListServers(ctx)
	if err != nil {
		return err
	}
	allocations, err := c.panel.ListAllocations(ctx, c.nodeID)
	if err != nil {
		return err
	}

	snap := domain.Snapshot{
		Users:       users,
		Servers:     servers,
		Allocations: allocations,
		RefreshedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.snap = snap
	c.synced = true
	c.mu.Unlock()

	log.Printf("[INFO] updated panel cache in %s (%d users, %d servers, %d allocations)",
		c.clock.Now().Sub(started).Round(time.Millisecond), len(users), len(servers), len(allocations))
	return nil
}

// Current returns the latest committed snapshot. It never blocks on a
// refresh in progress.
func (c *Cache) Current() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Synced reports whether at least one refresh has completed.
func (c *Cache) Synced() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

// Run refreshes on a fixed interval until ctx is canceled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				log.Printf("[ERROR] panel cache refresh: %v", err)
			}
		}
	}
}
