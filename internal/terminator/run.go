package terminator

import (
	"context"
	"os/exec"
)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- fixed tool name, numeric pid arguments
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
