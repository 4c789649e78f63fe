package netport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/haeki/devserve/internal/platform"
)

// DefaultTimeout bounds a single OS port/PID query.
const DefaultTimeout = 3 * time.Second

// Runner executes an OS tool and returns its combined stdout. Injectable
// so tests can feed canned tool output without touching the OS.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- fixed tool names, numeric arguments only
	return exec.CommandContext(ctx, name, args...).Output()
}

// Resolver answers "which PIDs own this port" and "which nearby port is
// free". It is a sensing component: OS failures are swallowed and read
// as "nothing found", never surfaced as errors.
type Resolver struct {
	run     Runner
	timeout time.Duration
	logger  *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{run: execRunner, timeout: DefaultTimeout, logger: logger}
}

// SetRunner replaces the OS tool runner. Intended for tests.
func (r *Resolver) SetRunner(run Runner) { r.run = run }

// FindPIDsByPort returns the PIDs of processes bound to port, in first-seen
// order without duplicates. A non-positive port returns nil without any OS
// call.
func (r *Resolver) FindPIDsByPort(ctx context.Context, port int) []int {
	if port <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if platform.Current() == platform.Windows {
		return r.pidsFromNetstat(ctx, port)
	}
	return r.pidsFromLsof(ctx, port)
}

// pidsFromNetstat scans the Windows connection table for rows whose local
// address ends in ":port". Malformed rows are skipped; both TCP and UDP
// rows count as long as the trailing token is a non-negative integer.
func (r *Resolver) pidsFromNetstat(ctx context.Context, port int) []int {
	out, err := r.run(ctx, "netstat", "-ano")
	if err != nil {
		r.logger.Debug("netstat query failed", "port", port, "error", err)
		return nil
	}
	suffix := ":" + strconv.Itoa(port)
	var pids []int
	seen := make(map[int]bool)
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		proto := strings.ToUpper(fields[0])
		if proto != "TCP" && proto != "UDP" {
			continue
		}
		if !strings.HasSuffix(fields[1], suffix) {
			continue
		}
		pid, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || pid < 0 {
			continue
		}
		if !seen[pid] {
			seen[pid] = true
			pids = append(pids, pid)
		}
	}
	return pids
}

// pidsFromLsof asks lsof for the port's owners and falls back to fuser
// when lsof reports nothing. Tokens that do not parse as integers are
// discarded.
func (r *Resolver) pidsFromLsof(ctx context.Context, port int) []int {
	out, err := r.run(ctx, "lsof", "-t", "-i", fmt.Sprintf(":%d", port))
	if err != nil {
		r.logger.Debug("lsof query failed", "port", port, "error", err)
		out = nil
	}
	pids := parsePids(out)
	if len(pids) == 0 {
		out, err = r.run(ctx, "fuser", fmt.Sprintf("%d/tcp", port))
		if err != nil {
			r.logger.Debug("fuser query failed", "port", port, "error", err)
			return pids
		}
		pids = append(pids, parsePids(out)...)
	}
	return dedupe(pids)
}

func parsePids(out []byte) []int {
	var pids []int
	for _, tok := range strings.Fields(string(out)) {
		if pid, err := strconv.Atoi(tok); err == nil && pid >= 0 {
			pids = append(pids, pid)
		}
	}
	return pids
}

func dedupe(pids []int) []int {
	if len(pids) < 2 {
		return pids
	}
	seen := make(map[int]bool, len(pids))
	out := pids[:0]
	for _, pid := range pids {
		if !seen[pid] {
			seen[pid] = true
			out = append(out, pid)
		}
	}
	return out
}

// IsPortAvailable reports whether port can currently be bound on localhost.
func (r *Resolver) IsPortAvailable(port int) bool {
	if port <= 0 {
		return false
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// FindFirstAvailablePort scans base..base+maxOffset inclusive and returns
// the first bindable port. When nothing in the window binds it returns
// base so callers always get a deterministic candidate.
func (r *Resolver) FindFirstAvailablePort(base, maxOffset int) int {
	if maxOffset < 0 {
		maxOffset = 0
	}
	for off := 0; off <= maxOffset; off++ {
		if r.IsPortAvailable(base + off) {
			return base + off
		}
	}
	return base
}
