package devserve

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/haeki/devserve/internal/config"
	"github.com/haeki/devserve/internal/history"
	"github.com/haeki/devserve/internal/logger"
	"github.com/haeki/devserve/internal/metrics"
	"github.com/haeki/devserve/internal/netport"
	"github.com/haeki/devserve/internal/orchestrator"
	"github.com/haeki/devserve/internal/project"
	"github.com/haeki/devserve/internal/project/factory"
	"github.com/haeki/devserve/internal/registry"
	iapi "github.com/haeki/devserve/internal/server"
	"github.com/haeki/devserve/internal/spawn"
	"github.com/haeki/devserve/internal/terminator"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Role = registry.Role

type ProcessSet = registry.ProcessSet

type RoleSnapshot = registry.RoleSnapshot

type Project = project.Project

type Frameworks = project.Frameworks

type ProjectStore = project.Store

type StopOptions = orchestrator.StopOptions

type StopResult = orchestrator.StopResult

type RestartOptions = orchestrator.RestartOptions

type StatusResult = orchestrator.StatusResult

type HistorySink = history.Sink

type Config = cfg.Config

var (
	ErrInvalidTarget   = orchestrator.ErrInvalidTarget
	ErrStartFailed     = orchestrator.ErrStartFailed
	ErrProjectNotFound = project.ErrNotFound
)

// Manager is a thin facade over the internal lifecycle orchestrator.
// It provides a stable public API for embedding.
type Manager struct {
	inner *orchestrator.Orchestrator
	reg   *registry.Registry
	store project.Store
}

// New builds a Manager from a loaded config. The caller owns the
// returned manager's Close.
func New(c *Config) (*Manager, error) {
	log := logger.New(c.Log)
	store, err := factory.NewFromDSN(c.Store.DSN)
	if err != nil {
		return nil, err
	}
	return NewWithStore(c, store, log), nil
}

// NewWithStore builds a Manager around an existing project store and
// logger. Useful for embedding with a custom store implementation.
func NewWithStore(c *Config, store project.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	protected := cfg.NewProtectedPids(c.Guard.ProtectedPids...)
	reserved := cfg.NewReservedPorts(c.Guard.ReservedPorts, c.ListenPort())
	resolver := netport.NewResolver(log)
	term := terminator.New(resolver, protected, reserved, log, c.Kill.ForceDelay)
	reg := registry.New()
	spawner := spawn.NewDevSpawner(resolver, c.Log, log, c.Ports.MaxOffset)
	spawner.OnLog = func(p string, role registry.Role, output string) {
		reg.AppendRoleLog(p, role, output)
	}
	return &Manager{
		inner: orchestrator.New(reg, term, spawner, store, c.Ports, log),
		reg:   reg,
		store: store,
	}
}

func (m *Manager) Start(ctx context.Context, id string) (*ProcessSet, error) {
	return m.inner.Start(ctx, id)
}

func (m *Manager) Stop(ctx context.Context, id string, opts StopOptions) (StopResult, error) {
	return m.inner.Stop(ctx, id, opts)
}

func (m *Manager) Restart(ctx context.Context, id string, opts RestartOptions) (*ProcessSet, error) {
	return m.inner.Restart(ctx, id, opts)
}

func (m *Manager) Status(id string) StatusResult { return m.inner.Status(id) }

// Projects exposes the underlying metadata store.
func (m *Manager) Projects() ProjectStore { return m.store }

func (m *Manager) Close() error {
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// LoadConfig reads the TOML config at path (optional) with environment
// overrides and defaults applied.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewHTTPServer starts an HTTP server exposing the lifecycle API using
// the given manager.
func NewHTTPServer(addr, basePath string, m *Manager) *http.Server {
	return iapi.NewServer(addr, basePath, m.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using
// the default registry. It runs in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
