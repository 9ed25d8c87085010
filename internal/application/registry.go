package application

import (
	"sync"

	"github.com/nextpie/sessiond/internal/domain"
)

// Registry is the process-wide set of accounts with a live billing loop.
// Reserve couples the capacity check and the registration in one critical
// section so concurrent start requests cannot jointly exceed the cap.
type Registry struct {
	mu      sync.Mutex
	cap     int
	members map[domain.AccountID]struct{}
}

func NewRegistry(capacity int) *Registry {
	return &Registry{
		cap:     capacity,
		members: make(map[domain.AccountID]struct{}),
	}
}

// Reserve claims a session slot for the account. It returns a rejection
// with RejectAlreadyRunning when the account is already registered and
// with RejectCapacityReached when the cap is hit.
func (r *Registry) Reserve(id domain.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[id]; ok {
		return domain.Reject(domain.RejectAlreadyRunning)
	}
	if len(r.members) >= r.cap {
		return domain.Reject(domain.RejectCapacityReached)
	}
	r.members[id] = struct{}{}
	return nil
}

// Release frees the account's slot. Releasing an absent account is a no-op.
func (r *Registry) Release(id domain.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
}

func (r *Registry) Contains(id domain.AccountID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[id]
	return ok
}

func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Full reports whether every session slot is taken.
func (r *Registry) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) >= r.cap
}

// Members returns a copy of the registered account ids.
func (r *Registry) Members() []domain.AccountID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]domain.AccountID, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	return ids
}
