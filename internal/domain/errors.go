package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoActiveSession = errors.New("no active session")

	// ErrPanelTransient marks a retryable provider fault (server error or
	// timeout on a panel call). Callers report it to the user as "try again"
	// rather than treating it as fatal.
	ErrPanelTransient = errors.New("transient panel fault")
)

// RejectReason classifies why an admission request was turned down.
// Rejections are expected control flow, not faults.
type RejectReason string

const (
	RejectInsufficientCredits RejectReason = "insufficient_credits"
	RejectCapacityReached     RejectReason = "capacity_reached"
	RejectAccountNotSynced    RejectReason = "account_not_synced"
	RejectAlreadyRunning      RejectReason = "already_running"
	RejectNoFreeAllocation    RejectReason = "no_free_allocation"
	RejectProvisioningError   RejectReason = "provisioning_error"
)

// Rejection is the error returned when a start request is denied.
type Rejection struct {
	Reason RejectReason
}

func (r *Rejection) Error() string {
	return "session rejected: " + string(r.Reason)
}

// Reject builds a Rejection for the given reason.
func Reject(reason RejectReason) *Rejection {
	return &Rejection{Reason: reason}
}

// AsRejection unwraps err into a Rejection, if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}
