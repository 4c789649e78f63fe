package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, c.Server.Listen)
	assert.Equal(t, DefaultFrontendBase, c.Ports.FrontendBase)
	assert.Equal(t, DefaultBackendBase, c.Ports.BackendBase)
	assert.Equal(t, DefaultMaxPortOffset, c.Ports.MaxOffset)
	assert.Equal(t, DefaultForceKillDelay, c.Kill.ForceDelay)
	assert.Equal(t, DefaultProjectStoreDSN, c.Store.DSN)
	assert.Equal(t, 7466, c.ListenPort())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devserve.toml")
	content := `
[server]
listen = "0.0.0.0:9900"

[ports]
frontend_base = 3000
backend_base = 3500
max_offset = 5
settle_delay = "1s"

[kill]
force_delay = "150ms"

[guard]
protected_pids = [1, 99]
reserved_ports = [9900]

[store]
dsn = "sqlite:///tmp/projects.db"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9900", c.Server.Listen)
	assert.Equal(t, 9900, c.ListenPort())
	assert.Equal(t, 3000, c.Ports.FrontendBase)
	assert.Equal(t, 3500, c.Ports.BackendBase)
	assert.Equal(t, 5, c.Ports.MaxOffset)
	assert.Equal(t, time.Second, c.Ports.SettleDelay)
	assert.Equal(t, 150*time.Millisecond, c.Kill.ForceDelay)
	assert.Equal(t, []int{1, 99}, c.Guard.ProtectedPids)
	assert.Equal(t, []int{9900}, c.Guard.ReservedPorts)
	assert.Equal(t, "sqlite:///tmp/projects.db", c.Store.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestProtectedPidsAlwaysContainsSelf(t *testing.T) {
	p := NewProtectedPids()
	assert.True(t, p.Contains(os.Getpid()))
	assert.False(t, p.Contains(123456))
}

func TestProtectedPidsApply(t *testing.T) {
	p := NewProtectedPids(42)
	assert.True(t, p.Contains(42))

	p.Apply([]int{7, -1, 0})
	assert.True(t, p.Contains(7))
	assert.False(t, p.Contains(-1))
	assert.False(t, p.Contains(0))
}

func TestReservedPortsSeededWhenEmpty(t *testing.T) {
	r := NewReservedPorts(nil, 7466)
	assert.True(t, r.Contains(7466))

	r = NewReservedPorts([]int{5173}, 7466)
	assert.True(t, r.Contains(5173))
	assert.False(t, r.Contains(7466))
}
