package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haeki/devserve/internal/config"
	"github.com/haeki/devserve/internal/history"
	"github.com/haeki/devserve/internal/history/clickhouse"
	"github.com/haeki/devserve/internal/logger"
	"github.com/haeki/devserve/internal/metrics"
	"github.com/haeki/devserve/internal/netport"
	"github.com/haeki/devserve/internal/orchestrator"
	"github.com/haeki/devserve/internal/project/factory"
	"github.com/haeki/devserve/internal/registry"
	"github.com/haeki/devserve/internal/server"
	"github.com/haeki/devserve/internal/spawn"
	"github.com/haeki/devserve/internal/terminator"
)

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the devserve daemon",
		Long: `Start the devserve daemon: the HTTP lifecycle API, the metrics
listener and the process registry live here. Client commands talk to it.

Examples:
  devserve serve
  devserve serve devserve.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := globalFlags.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			return runServe(configPath)
		},
	}
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Log)

	store, err := factory.NewFromDSN(cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open project store: %w", err)
	}
	defer func() { _ = store.Close() }()
	schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = store.EnsureSchema(schemaCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("project store schema: %w", err)
	}

	protected := config.NewProtectedPids(cfg.Guard.ProtectedPids...)
	reserved := config.NewReservedPorts(cfg.Guard.ReservedPorts, cfg.ListenPort())

	resolver := netport.NewResolver(log)
	term := terminator.New(resolver, protected, reserved, log, cfg.Kill.ForceDelay)

	reg := registry.New()
	spawner := spawn.NewDevSpawner(resolver, cfg.Log, log, cfg.Ports.MaxOffset)
	spawner.OnLog = func(project string, role registry.Role, output string) {
		reg.AppendRoleLog(project, role, output)
	}

	var sinks []history.Sink
	if cfg.History.ClickHouseAddr != "" {
		sink, err := clickhouse.New(cfg.History.ClickHouseAddr, cfg.History.Table)
		if err != nil {
			log.Warn("history sink unavailable", "addr", cfg.History.ClickHouseAddr, "error", err)
		} else {
			defer func() { _ = sink.Close() }()
			sinks = append(sinks, sink)
		}
	}

	orch := orchestrator.New(reg, term, spawner, store, cfg.Ports, log, sinks...)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "error", err)
	}
	var metricsSrv *http.Server
	if cfg.Server.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Server.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		log.Info("metrics listening", "addr", cfg.Server.MetricsListen)
	}

	apiSrv := server.NewServer(cfg.Server.Listen, cfg.Server.BasePath, orch)
	log.Info("devserve daemon listening", "addr", cfg.Server.Listen, "base_path", cfg.Server.BasePath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("shutting down", "signal", s.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics shutdown", "error", err)
		}
	}
	return nil
}
