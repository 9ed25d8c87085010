package ports

import (
	"context"

	"github.com/nextpie/sessiond/internal/domain"
)

// Panel is the remote control-panel application API. Calls carry a bounded
// timeout; a server-side fault or timeout is reported as (wrapping)
// domain.ErrPanelTransient.
type Panel interface {
	ListUsers(ctx context.Context) ([]domain.PanelUser, error)
	ListServers(ctx context.Context) ([]domain.Server, error)
	ListAllocations(ctx context.Context, nodeID int) ([]domain.Allocation, error)

	// GetServer performs a fresh single read, bypassing any cache. Used to
	// check the current suspension state before acting on it.
	GetServer(ctx context.Context, id int) (domain.Server, error)

	SuspendServer(ctx context.Context, id int) error
	UnsuspendServer(ctx context.Context, id int) error

	CreateServer(ctx context.Context, spec domain.ServerSpec) (domain.Server, error)

	// DeleteServer and DeleteUser back the withdrawal cascade only.
	DeleteServer(ctx context.Context, id int) error
	DeleteUser(ctx context.Context, id int) error
}
