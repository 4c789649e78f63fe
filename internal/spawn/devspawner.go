package spawn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/haeki/devserve/internal/logger"
	"github.com/haeki/devserve/internal/netport"
	"github.com/haeki/devserve/internal/registry"
)

// DevSpawner launches real dev-server processes, one per role, each in
// its own process group, with output captured to rotated log files and
// an optional per-line callback.
type DevSpawner struct {
	resolver  *netport.Resolver
	logs      logger.Config
	logger    *slog.Logger
	maxOffset int

	// OnLog, when set, receives every captured output line. The daemon
	// wires it to the registry's per-role log ring.
	OnLog func(project string, role registry.Role, output string)

	// commandFor builds the dev-server command line. Replaceable in
	// tests to avoid depending on installed tooling.
	commandFor func(framework string, port int) string
}

func NewDevSpawner(resolver *netport.Resolver, logs logger.Config, log *slog.Logger, maxOffset int) *DevSpawner {
	if log == nil {
		log = slog.Default()
	}
	if maxOffset <= 0 {
		maxOffset = 20
	}
	return &DevSpawner{resolver: resolver, logs: logs, logger: log, maxOffset: maxOffset, commandFor: devCommand}
}

type rolePlan struct {
	role      registry.Role
	port      int
	base      int
	framework string
}

func (s *DevSpawner) plan(req Request) ([]rolePlan, error) {
	var roles []registry.Role
	switch req.Target {
	case "":
		roles = registry.Roles()
	case string(registry.RoleFrontend):
		roles = []registry.Role{registry.RoleFrontend}
	case string(registry.RoleBackend):
		roles = []registry.Role{registry.RoleBackend}
	default:
		return nil, fmt.Errorf("unknown spawn target %q", req.Target)
	}
	plans := make([]rolePlan, 0, len(roles))
	for _, role := range roles {
		p := rolePlan{role: role}
		if role == registry.RoleFrontend {
			p.port, p.base, p.framework = req.FrontendPort, req.FrontendPortBase, req.FrontendFramework
		} else {
			p.port, p.base, p.framework = req.BackendPort, req.BackendPortBase, req.BackendFramework
		}
		if p.base <= 0 {
			p.base = DefaultPort(p.framework)
		}
		if p.base <= 0 {
			if role == registry.RoleFrontend {
				p.base = 5173
			} else {
				p.base = 8000
			}
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// Spawn launches the requested roles. On a partial failure the roles
// already started in this call are killed before the error returns, so
// a failed spawn never leaves half a project running.
func (s *DevSpawner) Spawn(ctx context.Context, projectPath string, req Request) (Result, error) {
	plans, err := s.plan(req)
	if err != nil {
		return Result{}, err
	}
	name := req.Project
	if name == "" {
		name = filepath.Base(projectPath)
	}

	set := &registry.ProcessSet{}
	var started []*exec.Cmd
	for _, p := range plans {
		port := p.port
		if port <= 0 {
			port = s.resolver.FindFirstAvailablePort(p.base, s.maxOffset)
		}
		cmd := buildCommand(s.commandFor(p.framework, port))
		cmd.Dir = projectPath
		cmd.Env = append(os.Environ(), "PORT="+strconv.Itoa(port))
		configureSysProcAttr(cmd)

		reap, err := s.capture(cmd, name, p.role)
		if err != nil {
			s.rollback(started)
			return Result{}, fmt.Errorf("capture %s output: %w", p.role, err)
		}
		if err := cmd.Start(); err != nil {
			s.rollback(started)
			return Result{}, fmt.Errorf("start %s: %w", p.role, err)
		}
		started = append(started, cmd)
		go reap()

		s.logger.Info("spawned dev server",
			"project", name, "role", string(p.role),
			"pid", cmd.Process.Pid, "port", port)
		set.SetRole(p.role, &registry.RoleSnapshot{
			PID:    cmd.Process.Pid,
			Port:   port,
			Status: "running",
		})

		if err := ctx.Err(); err != nil {
			s.rollback(started)
			return Result{}, err
		}
	}
	return Result{Success: true, Processes: set}, nil
}

// capture wires stdout+stderr through a line scanner feeding the
// rotated log file and the OnLog callback. The returned reaper waits
// for the streams to drain and then for the process, so no zombies
// accumulate; it must run only after a successful Start.
func (s *DevSpawner) capture(cmd *exec.Cmd, project string, role registry.Role) (func(), error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	w := s.logs.RoleWriter(project, string(role))

	drained := make(chan struct{}, 2)
	scan := func(r io.Reader) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
		for sc.Scan() {
			line := sc.Text()
			if w != nil {
				_, _ = w.Write(append([]byte(line), '\n'))
			}
			if s.OnLog != nil {
				s.OnLog(project, role, line)
			}
		}
		drained <- struct{}{}
	}
	reap := func() {
		go scan(stdout)
		go scan(stderr)
		<-drained
		<-drained
		err := cmd.Wait()
		if w != nil {
			_ = w.Close()
		}
		if err != nil {
			s.logger.Debug("dev server exited", "project", project, "role", string(role), "error", err)
		}
	}
	return reap, nil
}

func (s *DevSpawner) rollback(started []*exec.Cmd) {
	for i := len(started) - 1; i >= 0; i-- {
		if p := started[i].Process; p != nil {
			_ = p.Kill()
		}
	}
}
