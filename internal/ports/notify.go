package ports

import (
	"context"

	"github.com/nextpie/sessiond/internal/domain"
)

// Notifier delivers user-facing session messages (low balance, stop soon,
// session ended). In production the chat layer implements this; delivery
// failures are logged, never propagated into billing decisions.
type Notifier interface {
	Notify(ctx context.Context, id domain.AccountID, message string)
}

// Presence publishes the controller's coarse status indicator, e.g. while
// the inventory cache is refreshing.
type Presence interface {
	Set(status string)
}
