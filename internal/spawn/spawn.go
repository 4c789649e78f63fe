package spawn

import (
	"context"

	"github.com/haeki/devserve/internal/registry"
)

// Request carries the port resolution inputs for a launch. A zero port
// means "pick one near the base". Target narrows the launch to a single
// role; empty launches both. Project is the registry key used to label
// captured output; when empty the path's base name is used.
type Request struct {
	Project           string
	FrontendPort      int
	BackendPort       int
	FrontendPortBase  int
	BackendPortBase   int
	FrontendFramework string
	BackendFramework  string
	Target            string
}

// Result reports what was launched. Success false with a nil error
// means the collaborator declined without an exceptional failure.
type Result struct {
	Success   bool
	Processes *registry.ProcessSet
}

// Spawner launches dev-server processes for a project. The lifecycle
// orchestrator treats it as an external collaborator: a returned error
// or Success=false is a start failure and must not dirty the registry.
type Spawner interface {
	Spawn(ctx context.Context, projectPath string, req Request) (Result, error)
}
