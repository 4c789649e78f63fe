package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haeki/devserve/internal/config"
	"github.com/haeki/devserve/internal/history"
	"github.com/haeki/devserve/internal/metrics"
	"github.com/haeki/devserve/internal/project"
	"github.com/haeki/devserve/internal/registry"
	"github.com/haeki/devserve/internal/spawn"
	"github.com/haeki/devserve/internal/terminator"
)

// Terminator is the slice of process/port cleanup the orchestrator
// needs. Satisfied by *terminator.Terminator.
type Terminator interface {
	KillProcessTree(ctx context.Context, pid int) error
	KillProcessesOnPort(ctx context.Context, port int) []int
	EnsurePortsFreed(ctx context.Context, ports []int, killFn terminator.KillFn)
	Alive(pid int) bool
}

// Projects is the metadata lookup the orchestrator needs. Satisfied by
// project.Store.
type Projects interface {
	Get(ctx context.Context, id string) (project.Project, error)
}

// Orchestrator sequences start, stop and restart for project dev
// servers: it serializes per project, resolves port hints, delegates
// launching to the spawner and cleanup to the terminator, and keeps the
// registry as the single source of truth for what is running.
type Orchestrator struct {
	reg      *registry.Registry
	term     Terminator
	spawner  spawn.Spawner
	projects Projects
	ports    config.PortsConfig
	logger   *slog.Logger
	sinks    []history.Sink

	now func() time.Time

	// settle replaces the post-stop sleep in tests.
	settle func(d time.Duration)
}

func New(reg *registry.Registry, term Terminator, spawner spawn.Spawner, projects Projects, ports config.PortsConfig, logger *slog.Logger, sinks ...history.Sink) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if ports.FrontendBase <= 0 {
		ports.FrontendBase = config.DefaultFrontendBase
	}
	if ports.BackendBase <= 0 {
		ports.BackendBase = config.DefaultBackendBase
	}
	if ports.MaxOffset < 0 {
		ports.MaxOffset = config.DefaultMaxPortOffset
	}
	if ports.SettleDelay <= 0 {
		ports.SettleDelay = config.DefaultSettleDelay
	}
	return &Orchestrator{
		reg:      reg,
		term:     term,
		spawner:  spawner,
		projects: projects,
		ports:    ports,
		logger:   logger,
		sinks:    sinks,
		now:      time.Now,
		settle:   time.Sleep,
	}
}

// parseTarget maps a request scope to the roles it covers. Empty and
// "both" cover both roles. Anything else is rejected before the
// orchestrator touches processes, ports or the registry.
func parseTarget(target string) ([]registry.Role, error) {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "", "both":
		return registry.Roles(), nil
	case string(registry.RoleFrontend):
		return []registry.Role{registry.RoleFrontend}, nil
	case string(registry.RoleBackend):
		return []registry.Role{registry.RoleBackend}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
}

// spawnTarget converts a role list back to the spawner's scope string.
func spawnTarget(roles []registry.Role) string {
	if len(roles) == 1 {
		return string(roles[0])
	}
	return ""
}

// firstPositive returns the first positive candidate, or 0.
func firstPositive(candidates ...int) int {
	for _, c := range candidates {
		if c > 0 {
			return c
		}
	}
	return 0
}

// buildRequest resolves the port hint chain for proj: the stored
// project port wins, then the framework's conventional port, then the
// configured base. The spawner still scans for availability from the
// resolved base, so a stale hint degrades to a nearby port instead of a
// bind failure.
func (o *Orchestrator) buildRequest(proj project.Project, roles []registry.Role) spawn.Request {
	fb := firstPositive(
		proj.FrontendPort,
		spawn.DefaultPort(proj.Frameworks.Frontend),
		o.ports.FrontendBase,
	)
	bb := firstPositive(
		proj.BackendPort,
		spawn.DefaultPort(proj.Frameworks.Backend),
		o.ports.BackendBase,
	)
	// Colliding bases would make both roles race for the same port when
	// launched together. Rebase the backend onto the configured pool.
	if len(roles) > 1 && bb == fb {
		bb = o.ports.BackendBase
		if bb == fb {
			bb = fb + 1
		}
	}
	return spawn.Request{
		Project:           registry.CanonicalKey(proj.ID),
		FrontendPortBase:  fb,
		BackendPortBase:   bb,
		FrontendFramework: proj.Frameworks.Frontend,
		BackendFramework:  proj.Frameworks.Backend,
		Target:            spawnTarget(roles),
	}
}

// Start launches both roles for the project. If the project is already
// recorded as running with a live snapshot, the cached snapshot is
// returned without spawning anything.
func (o *Orchestrator) Start(ctx context.Context, id string) (*registry.ProcessSet, error) {
	key := registry.CanonicalKey(id)
	o.reg.Lock(key)
	defer o.reg.Unlock(key)
	return o.startLocked(ctx, id, key, registry.Roles())
}

func (o *Orchestrator) startLocked(ctx context.Context, id, key string, roles []registry.Role) (*registry.ProcessSet, error) {
	view := o.reg.Get(key)
	if view.State == registry.StateRunning && !view.Processes.Empty() {
		o.logger.Debug("project already running", "project", key)
		return view.Processes, nil
	}

	proj, err := o.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := o.spawner.Spawn(ctx, proj.Path, o.buildRequest(proj, roles))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	if !res.Success || res.Processes.Empty() {
		return nil, ErrStartFailed
	}

	o.reg.Store(key, res.Processes, registry.StateRunning, registry.StoreOptions{LaunchType: registry.LaunchManual})
	for _, role := range roles {
		if snap := res.Processes.Role(role); snap != nil {
			metrics.IncStart(string(role))
			o.emit(ctx, history.EventStart, key, role, snap)
		}
	}
	metrics.SetRunningRoles(o.reg.RunningRoleCount())
	o.logger.Info("project started", "project", key,
		"frontend_pid", pidOf(res.Processes.Frontend), "backend_pid", pidOf(res.Processes.Backend))
	return res.Processes.Clone(), nil
}

// StopOptions scope a stop. ForcePorts additionally reclaims the
// stopped roles' own recorded ports; it never widens to ports the
// request did not cover.
type StopOptions struct {
	Target         string
	ForcePorts     bool
	WaitForRelease bool
}

// StopResult reports what a stop did.
type StopResult struct {
	Stopped bool
	Message string
	State   registry.State
}

// Stop terminates the requested roles. Stopping a project that is not
// running is not an error and leaves the registry record untouched.
func (o *Orchestrator) Stop(ctx context.Context, id string, opts StopOptions) (StopResult, error) {
	roles, err := parseTarget(opts.Target)
	if err != nil {
		return StopResult{}, err
	}
	key := registry.CanonicalKey(id)
	o.reg.Lock(key)
	defer o.reg.Unlock(key)
	return o.stopLocked(ctx, key, roles, opts), nil
}

func (o *Orchestrator) stopLocked(ctx context.Context, key string, roles []registry.Role, opts StopOptions) StopResult {
	view := o.reg.Get(key)

	var inScope []registry.Role
	for _, role := range roles {
		if view.Processes.Role(role) != nil {
			inScope = append(inScope, role)
		}
	}
	if view.State != registry.StateRunning || len(inScope) == 0 {
		return StopResult{Stopped: false, Message: "not running", State: view.State}
	}

	set := view.Processes.Clone()
	for _, role := range inScope {
		snap := set.Role(role)
		if snap.PID > 0 {
			_ = o.term.KillProcessTree(ctx, snap.PID)
			metrics.IncTreeKill()
		}
		if opts.ForcePorts && snap.Port > 0 {
			o.term.EnsurePortsFreed(ctx, []int{snap.Port}, nil)
			metrics.IncPortKill()
		}
		set.SetRole(role, nil)
		metrics.IncStop(string(role))
		o.emit(ctx, history.EventStop, key, role, snap)
	}

	state := registry.StateRunning
	if set.Empty() {
		state = registry.StateStopped
	}
	o.reg.Store(key, set, state, registry.StoreOptions{})
	metrics.SetRunningRoles(o.reg.RunningRoleCount())

	if opts.WaitForRelease {
		o.settle(o.ports.SettleDelay)
	}
	o.logger.Info("project stopped", "project", key, "roles", rolesString(inScope), "state", string(state))
	return StopResult{Stopped: true, State: state}
}

// RestartOptions scope a restart the same way StopOptions scope a stop.
type RestartOptions struct {
	Target         string
	ForcePorts     bool
	WaitForRelease bool
}

// Restart stops the requested roles, relaunches them and returns the
// resulting process set. A targeted restart additionally probes the
// untouched sibling role afterward: if its recorded process died in the
// meantime it is relaunched on its last known port, and if it cannot be
// relaunched its previous snapshot is kept rather than dropped.
func (o *Orchestrator) Restart(ctx context.Context, id string, opts RestartOptions) (*registry.ProcessSet, error) {
	roles, err := parseTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	key := registry.CanonicalKey(id)
	o.reg.Lock(key)
	defer o.reg.Unlock(key)

	var (
		sibling    registry.Role
		preSibling *registry.RoleSnapshot
	)
	targeted := len(roles) == 1
	if targeted {
		sibling = roles[0].Other()
		preSibling = o.reg.Get(key).Processes.Role(sibling)
	}

	o.stopLocked(ctx, key, roles, StopOptions{ForcePorts: opts.ForcePorts, WaitForRelease: opts.WaitForRelease})

	proj, err := o.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := o.spawner.Spawn(ctx, proj.Path, o.buildRequest(proj, roles))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	if !res.Success || res.Processes.Empty() {
		return nil, ErrStartFailed
	}

	// Merge only roles that report a usable port; a role without one
	// leaves its registry record as the stop pass wrote it.
	cur := o.reg.Get(key).Processes
	if cur == nil {
		cur = &registry.ProcessSet{}
	}
	for _, role := range roles {
		snap := res.Processes.Role(role)
		if snap == nil {
			continue
		}
		if snap.Port <= 0 {
			o.logger.Warn("restarted role reported no port, keeping record unchanged",
				"project", key, "role", string(role), "pid", snap.PID)
			continue
		}
		cur.SetRole(role, snap.Clone())
		metrics.IncRestart(string(role))
		o.emit(ctx, history.EventRestart, key, role, snap)
	}
	state := registry.StateRunning
	if cur.Empty() {
		// running with no recorded role would be a lie
		state = registry.StateStopped
	}
	o.reg.Store(key, cur, state, registry.StoreOptions{})

	if targeted {
		o.recoverSibling(ctx, key, proj, sibling, preSibling, cur)
	}
	metrics.SetRunningRoles(o.reg.RunningRoleCount())
	o.logger.Info("project restarted", "project", key, "roles", rolesString(roles))
	return cur.Clone(), nil
}

// recoverSibling relaunches the non-restarted role when its recorded
// process is gone. The relaunch reuses the sibling's last known port so
// anything pointed at it keeps working. A failed relaunch keeps the
// previous snapshot in place.
func (o *Orchestrator) recoverSibling(ctx context.Context, key string, proj project.Project, sibling registry.Role, pre *registry.RoleSnapshot, cur *registry.ProcessSet) {
	if pre == nil || pre.PID <= 0 {
		return
	}
	if o.term.Alive(pre.PID) {
		return
	}
	if pre.Port <= 0 {
		o.logger.Warn("sibling died without a recorded port, not recovering",
			"project", key, "role", string(sibling), "pid", pre.PID)
		return
	}

	req := o.buildRequest(proj, []registry.Role{sibling})
	if sibling == registry.RoleFrontend {
		req.FrontendPort = pre.Port
	} else {
		req.BackendPort = pre.Port
	}
	res, err := o.spawner.Spawn(ctx, proj.Path, req)
	snap := res.Processes.Role(sibling)
	if err != nil || !res.Success || snap == nil {
		o.logger.Warn("sibling recovery failed, keeping previous snapshot",
			"project", key, "role", string(sibling), "pid", pre.PID, "error", err)
		return
	}

	cur.SetRole(sibling, snap.Clone())
	o.reg.Store(key, cur, registry.StateRunning, registry.StoreOptions{})
	metrics.IncSiblingRecovery()
	o.emit(ctx, history.EventRecover, key, sibling, snap)
	o.logger.Info("recovered dead sibling", "project", key, "role", string(sibling),
		"old_pid", pre.PID, "new_pid", snap.PID, "port", snap.Port)
}

// StatusResult is the read-only view of one project's lifecycle state.
type StatusResult struct {
	Key             string               `json:"key"`
	State           string               `json:"state"`
	Processes       *registry.ProcessSet `json:"processes,omitempty"`
	SnapshotVisible bool                 `json:"snapshot_visible"`
	LaunchType      registry.LaunchType  `json:"launch_type"`
}

// Status reports the registry view for id. Projects the registry has
// never seen report "idle".
func (o *Orchestrator) Status(id string) StatusResult {
	v := o.reg.Get(id)
	state := "idle"
	if v.Exists {
		state = string(v.State)
	}
	res := StatusResult{
		Key:             v.Key,
		State:           state,
		SnapshotVisible: v.SnapshotVisible,
		LaunchType:      v.LaunchType,
	}
	if v.SnapshotVisible {
		res.Processes = v.Processes
	}
	return res
}

func (o *Orchestrator) emit(ctx context.Context, t history.EventType, key string, role registry.Role, snap *registry.RoleSnapshot) {
	if len(o.sinks) == 0 {
		return
	}
	e := history.Event{
		Type:       t,
		OccurredAt: o.now().UTC(),
		ProjectID:  key,
		Role:       string(role),
	}
	if snap != nil {
		e.PID = snap.PID
		e.Port = snap.Port
	}
	for _, s := range o.sinks {
		if err := s.Send(ctx, e); err != nil {
			o.logger.Debug("history sink send failed", "type", string(t), "error", err)
		}
	}
}

func pidOf(s *registry.RoleSnapshot) int {
	if s == nil {
		return 0
	}
	return s.PID
}

func rolesString(roles []registry.Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}
