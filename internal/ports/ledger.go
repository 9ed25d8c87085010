package ports

import (
	"context"

	"github.com/nextpie/sessiond/internal/domain"
)

// Ledger is the durable per-account credit record. Implementations must
// serialize read-modify-write of one account so a billing debit and a
// concurrent grant never lose an update, and must never let a balance go
// negative.
//
// Unless noted otherwise, operations on an unknown account return
// domain.ErrAccountNotFound. Any storage fault surfaces as an error and
// means no state change occurred.
type Ledger interface {
	// Get returns the full ledger row for one account.
	Get(ctx context.Context, id domain.AccountID) (domain.Account, error)

	// Credits returns the balance, or 0 for an unknown account.
	Credits(ctx context.Context, id domain.AccountID) (int64, error)

	// AdjustCredits applies delta and returns the new balance, clamped at
	// zero. An unknown account is created with max(delta, 0) credits.
	AdjustCredits(ctx context.Context, id domain.AccountID, delta int64) (int64, error)

	// SetPremium flips the premium flag, creating the account if unknown.
	SetPremium(ctx context.Context, id domain.AccountID, premium bool) error

	SetActive(ctx context.Context, id domain.AccountID, active bool) error
	SetStopRequested(ctx context.Context, id domain.AccountID, requested bool) error
	StopRequested(ctx context.Context, id domain.AccountID) (bool, error)

	// Delete removes the account row. Used only by the withdrawal cascade.
	Delete(ctx context.Context, id domain.AccountID) error

	List(ctx context.Context) ([]domain.Account, error)
}
