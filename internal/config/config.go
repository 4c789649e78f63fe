package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/haeki/devserve/internal/logger"
	"github.com/spf13/viper"
)

// Defaults applied when the config file or environment leaves a knob unset.
const (
	DefaultListen          = "127.0.0.1:7466"
	DefaultMetricsListen   = "127.0.0.1:7467"
	DefaultFrontendBase    = 5173
	DefaultBackendBase     = 8000
	DefaultMaxPortOffset   = 20
	DefaultForceKillDelay  = 300 * time.Millisecond
	DefaultSettleDelay     = 500 * time.Millisecond
	DefaultProjectStoreDSN = "devserve.db"
)

type ServerConfig struct {
	Listen        string `mapstructure:"listen"`
	BasePath      string `mapstructure:"base_path"`
	MetricsListen string `mapstructure:"metrics_listen"`
}

type PortsConfig struct {
	FrontendBase int           `mapstructure:"frontend_base"`
	BackendBase  int           `mapstructure:"backend_base"`
	MaxOffset    int           `mapstructure:"max_offset"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
}

type KillConfig struct {
	ForceDelay time.Duration `mapstructure:"force_delay"`
}

type GuardConfig struct {
	ProtectedPids []int `mapstructure:"protected_pids"`
	ReservedPorts []int `mapstructure:"reserved_ports"`
}

type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

type HistoryConfig struct {
	ClickHouseAddr string `mapstructure:"clickhouse_addr"`
	Table          string `mapstructure:"table"`
}

// Config is the top-level TOML structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Ports   PortsConfig   `mapstructure:"ports"`
	Kill    KillConfig    `mapstructure:"kill"`
	Guard   GuardConfig   `mapstructure:"guard"`
	Store   StoreConfig   `mapstructure:"store"`
	History HistoryConfig `mapstructure:"history"`
	Log     logger.Config `mapstructure:"log"`
}

// Load reads a TOML config file (optional; path may be empty) with
// DEVSERVE_* environment overrides, and fills defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEVSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.metrics_listen", DefaultMetricsListen)
	v.SetDefault("ports.frontend_base", DefaultFrontendBase)
	v.SetDefault("ports.backend_base", DefaultBackendBase)
	v.SetDefault("ports.max_offset", DefaultMaxPortOffset)
	v.SetDefault("ports.settle_delay", DefaultSettleDelay)
	v.SetDefault("kill.force_delay", DefaultForceKillDelay)
	v.SetDefault("store.dsn", DefaultProjectStoreDSN)
	v.SetDefault("history.table", "devserve_events")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.Ports.FrontendBase <= 0 {
		c.Ports.FrontendBase = DefaultFrontendBase
	}
	if c.Ports.BackendBase <= 0 {
		c.Ports.BackendBase = DefaultBackendBase
	}
	if c.Ports.MaxOffset < 0 {
		c.Ports.MaxOffset = DefaultMaxPortOffset
	}
	return &c, nil
}

// ListenPort extracts the numeric port from the API listen address,
// used to seed the reserved-port set with the manager's own port.
func (c *Config) ListenPort() int {
	addr := c.Server.Listen
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return 0
	}
	var port int
	if _, err := fmt.Sscanf(addr[i+1:], "%d", &port); err != nil {
		return 0
	}
	return port
}
