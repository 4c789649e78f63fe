//go:build !windows

package spawn

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/haeki/devserve/internal/logger"
	"github.com/haeki/devserve/internal/netport"
	"github.com/haeki/devserve/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommandDirectExec(t *testing.T) {
	cmd := buildCommand("npm run dev")
	assert.Contains(t, cmd.Path, "npm")
	assert.Equal(t, []string{"run", "dev"}, cmd.Args[1:])
}

func TestBuildCommandShellMetachars(t *testing.T) {
	cmd := buildCommand("npm run dev 2>&1")
	assert.Equal(t, "/bin/sh", cmd.Path)
	assert.Equal(t, []string{"-c", "npm run dev 2>&1"}, cmd.Args[1:])
}

func TestBuildCommandExplicitShellNotDoubleWrapped(t *testing.T) {
	cmd := buildCommand(`sh -c 'npm run dev | cat'`)
	assert.Equal(t, "/bin/sh", cmd.Path)
	assert.Equal(t, []string{"-c", "npm run dev | cat"}, cmd.Args[1:])
}

func TestBuildCommandEmpty(t *testing.T) {
	cmd := buildCommand("   ")
	assert.Contains(t, cmd.Path, "true")
}

func TestDefaultPort(t *testing.T) {
	assert.Equal(t, 5173, DefaultPort("vite"))
	assert.Equal(t, 8000, DefaultPort("fastapi"))
	assert.Equal(t, 0, DefaultPort("cobol"))
}

func TestDevCommandPerFramework(t *testing.T) {
	assert.Equal(t, "uvicorn main:app --reload --port 8000", devCommand("fastapi", 8000))
	assert.Equal(t, "npm run dev -- --port 5173", devCommand("vite", 5173))
	assert.Equal(t, "flask run --port 5000", devCommand("flask", 5000))
}

func TestPlanTargets(t *testing.T) {
	s := NewDevSpawner(netport.NewResolver(nil), logger.Config{}, nil, 5)

	plans, err := s.plan(Request{Target: ""})
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, registry.RoleFrontend, plans[0].role)
	assert.Equal(t, registry.RoleBackend, plans[1].role)

	plans, err = s.plan(Request{Target: "backend", BackendFramework: "fastapi"})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 8000, plans[0].base, "framework default used when base unset")

	plans, err = s.plan(Request{Target: "frontend", FrontendPortBase: 4000})
	require.NoError(t, err)
	assert.Equal(t, 4000, plans[0].base, "explicit base wins")

	_, err = s.plan(Request{Target: "sidecar"})
	assert.Error(t, err)
}

func TestSpawnRunsBothRolesAndCapturesOutput(t *testing.T) {
	s := NewDevSpawner(netport.NewResolver(nil), logger.Config{}, nil, 5)
	s.commandFor = func(framework string, port int) string {
		return fmt.Sprintf("echo up-on-%d", port)
	}

	var mu sync.Mutex
	lines := map[registry.Role][]string{}
	done := make(chan struct{}, 2)
	s.OnLog = func(_ string, role registry.Role, output string) {
		mu.Lock()
		lines[role] = append(lines[role], output)
		mu.Unlock()
		done <- struct{}{}
	}

	res, err := s.Spawn(context.Background(), t.TempDir(), Request{
		FrontendPort: 0, BackendPort: 0,
		FrontendPortBase: 0, BackendPortBase: 0,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Processes.Frontend)
	require.NotNil(t, res.Processes.Backend)
	assert.Greater(t, res.Processes.Frontend.PID, 0)
	assert.Greater(t, res.Processes.Backend.PID, 0)
	assert.Greater(t, res.Processes.Frontend.Port, 0)
	assert.Greater(t, res.Processes.Backend.Port, 0)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for captured output")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	total := len(lines[registry.RoleFrontend]) + len(lines[registry.RoleBackend])
	assert.GreaterOrEqual(t, total, 2)
}

func TestSpawnStartFailureRollsBack(t *testing.T) {
	s := NewDevSpawner(netport.NewResolver(nil), logger.Config{}, nil, 5)
	calls := 0
	s.commandFor = func(framework string, port int) string {
		calls++
		if calls == 1 {
			return "sleep 30"
		}
		return "/definitely/not/a/command-xyz"
	}

	res, err := s.Spawn(context.Background(), t.TempDir(), Request{})
	assert.Error(t, err)
	assert.False(t, res.Success)
	assert.Nil(t, res.Processes)
}
