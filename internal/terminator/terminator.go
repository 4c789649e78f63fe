package terminator

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/haeki/devserve/internal/config"
	"github.com/haeki/devserve/internal/netport"
	"github.com/haeki/devserve/internal/platform"
)

// DefaultForceDelay is the grace window between SIGTERM and SIGKILL on
// POSIX systems.
const DefaultForceDelay = 300 * time.Millisecond

// PortLister is the slice of the port resolver the terminator needs.
type PortLister interface {
	FindPIDsByPort(ctx context.Context, port int) []int
}

// Terminator kills process trees and frees ports, best effort. Kill
// failures other than "already gone" are logged as warnings, never
// propagated; cleanup must not abort the surrounding stop/restart.
type Terminator struct {
	ports      PortLister
	protected  *config.ProtectedPids
	reserved   *config.ReservedPorts
	logger     *slog.Logger
	forceDelay time.Duration

	// injectable seams for tests
	run    netport.Runner
	signal func(pid int, sig syscall.Signal) error
	alive  func(pid int) bool
}

func New(ports PortLister, protected *config.ProtectedPids, reserved *config.ReservedPorts, logger *slog.Logger, forceDelay time.Duration) *Terminator {
	if logger == nil {
		logger = slog.Default()
	}
	if forceDelay <= 0 {
		forceDelay = DefaultForceDelay
	}
	t := &Terminator{
		ports:      ports,
		protected:  protected,
		reserved:   reserved,
		logger:     logger,
		forceDelay: forceDelay,
		signal:     killProcess,
		alive:      PidAlive,
	}
	t.run = runCommand
	return t
}

// SetRunner replaces the OS tool runner (taskkill). Intended for tests.
func (t *Terminator) SetRunner(run netport.Runner) { t.run = run }

// SetSignaler replaces the signal function. Intended for tests.
func (t *Terminator) SetSignaler(fn func(pid int, sig syscall.Signal) error) { t.signal = fn }

// Alive reports whether pid responds to a zero-cost liveness probe.
func (t *Terminator) Alive(pid int) bool { return t.alive(pid) }

// KillProcessTree terminates pid and its descendants. Non-positive pids
// no-op without touching the OS. "Already gone" at any step counts as
// success; other failures are logged and swallowed.
func (t *Terminator) KillProcessTree(ctx context.Context, pid int) error {
	if pid <= 0 {
		return nil
	}
	if platform.Current() == platform.Windows {
		t.killTreeWindows(ctx, pid)
		return nil
	}
	t.killTreePosix(pid)
	return nil
}

func (t *Terminator) killTreeWindows(ctx context.Context, pid int) {
	out, err := t.run(ctx, "taskkill", "/pid", strconv.Itoa(pid), "/T", "/F")
	if err == nil {
		return
	}
	msg := strings.ToLower(string(out) + " " + err.Error())
	if strings.Contains(msg, "not found") || strings.Contains(msg, "no running instance") {
		return
	}
	t.logger.Warn("taskkill failed", "pid", pid, "error", err)
}

func (t *Terminator) killTreePosix(pid int) {
	// TERM the whole group when one exists, otherwise the single process.
	if err := t.signalGroup(pid, syscall.SIGTERM); err != nil {
		if isGone(err) {
			return
		}
		t.logger.Warn("graceful termination failed", "pid", pid, "error", err)
	}
	time.Sleep(t.forceDelay)
	if err := t.signalGroup(pid, syscall.SIGKILL); err != nil && !isGone(err) {
		t.logger.Warn("forceful kill failed", "pid", pid, "error", err)
	}
}

// signalGroup signals the process group when pid leads one, falling
// back to the single process otherwise. Group-level ESRCH is not proof
// the process is gone: PIDs discovered by port lookup are often
// children inside another group, so only ESRCH from the direct kill
// counts as "already gone".
func (t *Terminator) signalGroup(pid int, sig syscall.Signal) error {
	if err := t.signal(-pid, sig); err == nil {
		return nil
	}
	return t.signal(pid, sig)
}

// KillProcessesOnPort kills every process tree bound to port, skipping
// protected PIDs. Returns the PIDs it actually acted on.
func (t *Terminator) KillProcessesOnPort(ctx context.Context, port int) []int {
	pids := t.ports.FindPIDsByPort(ctx, port)
	var killed []int
	for _, pid := range pids {
		if t.protected != nil && t.protected.Contains(pid) {
			t.logger.Warn("skipping protected pid on port", "pid", pid, "port", port)
			continue
		}
		_ = t.KillProcessTree(ctx, pid)
		killed = append(killed, pid)
	}
	return killed
}

// KillFn frees a single port.
type KillFn func(ctx context.Context, port int)

// EnsurePortsFreed frees each distinct port once, skipping any port in
// the host-reserved set. A nil killFn uses KillProcessesOnPort.
func (t *Terminator) EnsurePortsFreed(ctx context.Context, ports []int, killFn KillFn) {
	if killFn == nil {
		killFn = func(ctx context.Context, port int) { t.KillProcessesOnPort(ctx, port) }
	}
	seen := make(map[int]bool, len(ports))
	for _, port := range ports {
		if port <= 0 || seen[port] {
			continue
		}
		seen[port] = true
		if t.reserved != nil && t.reserved.Contains(port) {
			t.logger.Warn("refusing to free host-reserved port", "port", port)
			continue
		}
		killFn(ctx, port)
	}
}
