package panel

import "github.com/nextpie/sessiond/internal/domain"

// Wire shapes of the panel application API. Every payload nests the useful
// fields under "attributes"; lists wrap them again under "data". They are
// decoded into these records and validated instead of being indexed as
// loose maps.

type listResponse[T any] struct {
	Data []attributesEnvelope[T] `json:"data"`
}

type attributesEnvelope[T any] struct {
	Attributes T `json:"attributes"`
}

type userAttributes struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type serverAttributes struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	User       int    `json:"user"`
	Suspended  bool   `json:"suspended"`
	Allocation int    `json:"allocation"`
}

type allocationAttributes struct {
	ID       int    `json:"id"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Assigned bool   `json:"assigned"`
}

type errorResponse struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

type createServerRequest struct {
	Name        string            `json:"name"`
	User        int               `json:"user"`
	Nest        int               `json:"nest"`
	Egg         int               `json:"egg"`
	DockerImage string            `json:"docker_image"`
	Startup     string            `json:"startup"`
	Environment map[string]string `json:"environment"`
	Limits      serverLimits      `json:"limits"`
	Features    featureLimits     `json:"feature_limits"`
	Allocation  allocationBinding `json:"allocation"`
}

type serverLimits struct {
	Memory int `json:"memory"`
	Swap   int `json:"swap"`
	Disk   int `json:"disk"`
	IO     int `json:"io"`
	CPU    int `json:"cpu"`
}

type featureLimits struct {
	Databases int `json:"databases"`
	Backups   int `json:"backups"`
}

type allocationBinding struct {
	Default int `json:"default"`
}

func (a userAttributes) toDomain() domain.PanelUser {
	return domain.PanelUser{ID: a.ID, Username: a.Username, Email: a.Email}
}

func (a serverAttributes) toDomain() domain.Server {
	return domain.Server{
		ID:           a.ID,
		Name:         a.Name,
		UserID:       a.User,
		Suspended:    a.Suspended,
		AllocationID: a.Allocation,
	}
}

func (a allocationAttributes) toDomain() domain.Allocation {
	return domain.Allocation{ID: a.ID, IP: a.IP, Port: a.Port, Assigned: a.Assigned}
}
