package orchestrator

import "errors"

var (
	// ErrInvalidTarget rejects a start/stop/restart scope that is not
	// "frontend", "backend" or empty/"both". Raised before any side
	// effect.
	ErrInvalidTarget = errors.New("invalid target role")

	// ErrStartFailed reports that the spawn collaborator declined or
	// failed; the registry is left untouched for the affected roles.
	ErrStartFailed = errors.New("failed to start dev servers")
)
