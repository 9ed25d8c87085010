package domain

import "time"

// PanelUser is the panel-side account that owns servers. The panel username
// carries the chat-platform account id.
type PanelUser struct {
	ID       int
	Username string
	Email    string
}

// Server is a provisioned game-server instance on the panel. The controller
// only observes it and flips its suspended state; it never runs the server
// itself.
type Server struct {
	ID           int
	Name         string
	UserID       int
	Suspended    bool
	AllocationID int
}

// Allocation is a schedulable network slot on the panel node. Provisioning
// consumes the first unassigned one.
type Allocation struct {
	ID       int
	IP       string
	Port     int
	Assigned bool
}

// ServerSpec is the fixed hosting profile a new server is created with.
type ServerSpec struct {
	Name         string
	UserID       int
	NestID       int
	EggID        int
	DockerImage  string
	Startup      string
	Environment  map[string]string
	AllocationID int
	MemoryMB     int
	DiskMB       int
	CPUPercent   int
}

// Snapshot is one complete view of the panel inventory. It is replaced
// wholesale on refresh and never mutated in place, so readers need no lock.
type Snapshot struct {
	Users       []PanelUser
	Servers     []Server
	Allocations []Allocation
	RefreshedAt time.Time
}

// UserByAccount resolves the panel user whose username matches the account id.
func (s Snapshot) UserByAccount(id AccountID) (PanelUser, bool) {
	for _, u := range s.Users {
		if u.Username == string(id) {
			return u, true
		}
	}
	return PanelUser{}, false
}

// ServerByUser returns the server owned by the given panel user, if any.
func (s Snapshot) ServerByUser(panelUserID int) (Server, bool) {
	for _, srv := range s.Servers {
		if srv.UserID == panelUserID {
			return srv, true
		}
	}
	return Server{}, false
}

// ServersByUser returns every server owned by the given panel user.
func (s Snapshot) ServersByUser(panelUserID int) []Server {
	var owned []Server
	for _, srv := range s.Servers {
		if srv.UserID == panelUserID {
			owned = append(owned, srv)
		}
	}
	return owned
}

// FreeAllocation returns the first unassigned allocation, if any.
func (s Snapshot) FreeAllocation() (Allocation, bool) {
	for _, a := range s.Allocations {
		if !a.Assigned {
			return a, true
		}
	}
	return Allocation{}, false
}
