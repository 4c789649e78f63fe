package project

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no project exists for the given id.
var ErrNotFound = errors.New("project not found")

// Frameworks names the tooling each role runs under, used to derive
// default port hints and dev-server commands.
type Frameworks struct {
	Frontend string `json:"frontend"`
	Backend  string `json:"backend"`
}

// Project is the stored metadata for one managed project.
type Project struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Path         string     `json:"path"`
	FrontendPort int        `json:"frontend_port"`
	BackendPort  int        `json:"backend_port"`
	Frameworks   Frameworks `json:"frameworks"`
}

// Store persists project metadata. Implementations are selected by DSN
// through the factory package.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, p Project) error
	Get(ctx context.Context, id string) (Project, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Project, error)
	Close() error
}
