package domain

import "time"

// AccountID is the stable external identifier of a renter, as known to the
// chat platform and mirrored into the panel username field.
type AccountID string

// Account is one durable ledger row. Credits never go below zero; writes
// that would drive the balance negative clamp at zero.
type Account struct {
	ID            AccountID
	Credits       int64
	Premium       bool
	ActiveSession bool
	StopRequested bool
	LastOnline    time.Time
}
