package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	IncStart("frontend")
	IncStop("backend")
	IncRestart("backend")
	IncTreeKill()
	IncPortKill()
	IncSiblingRecovery()
	SetRunningRoles(2)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestHandlerNotNil(t *testing.T) {
	assert.NotNil(t, Handler())
}
