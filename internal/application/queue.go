package application

import (
	"context"
	"fmt"

	"github.com/nextpie/sessiond/internal/config"
	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
)

// Queue estimates wait times from the state of the active sessions. The
// estimate is a lower bound: the soonest-ending session determines it.
type Queue struct {
	ledger   ports.Ledger
	registry *Registry
	cfg      config.Queue
}

func NewQueue(ledger ports.Ledger, registry *Registry, cfg config.Queue) *Queue {
	return &Queue{ledger: ledger, registry: registry, cfg: cfg}
}

// EstimateWaitMinutes returns 0 when a session slot is free. Otherwise it
// is the minimum remaining runtime over all active sessions, scaled to
// minutes.
func (q *Queue) EstimateWaitMinutes(ctx context.Context) (int64, error) {
	if !q.registry.Full() {
		return 0, nil
	}

	var minimum int64 = -1
	for _, id := range q.registry.Members() {
		remaining, err := q.remainingTicks(ctx, id)
		if err != nil {
			return 0, err
		}
		if minimum < 0 || remaining < minimum {
			minimum = remaining
		}
	}
	if minimum < 0 {
		return 0, nil
	}

	return minimum * int64(q.cfg.MinutesPerCredit), nil
}

// RemainingMinutes reports how long the account's own session has left.
// Returns domain.ErrNoActiveSession when no billing loop is running for it.
func (q *Queue) RemainingMinutes(ctx context.Context, id domain.AccountID) (int64, error) {
	if !q.registry.Contains(id) {
		return 0, domain.ErrNoActiveSession
	}

	stop, err := q.ledger.StopRequested(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("read stop flag: %w", err)
	}
	if stop {
		return int64(q.cfg.MinutesPerCredit), nil
	}

	credits, err := q.ledger.Credits(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("read credits: %w", err)
	}
	return (credits + 1) * int64(q.cfg.MinutesPerCredit), nil
}

// remainingTicks is 0 for a stopping session, else balance plus the final
// grace tick.
func (q *Queue) remainingTicks(ctx context.Context, id domain.AccountID) (int64, error) {
	stop, err := q.ledger.StopRequested(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("read stop flag: %w", err)
	}
	if stop {
		return 0, nil
	}

	credits, err := q.ledger.Credits(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("read credits: %w", err)
	}
	return credits + 1, nil
}
