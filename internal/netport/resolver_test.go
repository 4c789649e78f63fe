package netport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/haeki/devserve/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   []string
	outputs map[string][]byte
	errs    map[string]error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	key := name
	for _, a := range args {
		key += " " + a
	}
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.outputs[key], nil
}

func TestFindPIDsByPortRejectsInvalidPortWithoutOSCall(t *testing.T) {
	f := &fakeRunner{}
	r := NewResolver(nil)
	r.SetRunner(f.run)

	assert.Nil(t, r.FindPIDsByPort(context.Background(), 0))
	assert.Nil(t, r.FindPIDsByPort(context.Background(), -80))
	assert.Empty(t, f.calls)
}

func TestFindPIDsByPortWindowsParsesNetstat(t *testing.T) {
	platform.Override(platform.Windows)
	defer platform.Reset()

	out := "" +
		"Active Connections\r\n" +
		"  Proto  Local Address          Foreign Address        State           PID\r\n" +
		"  TCP    0.0.0.0:5173           0.0.0.0:0              LISTENING       4312\r\n" +
		"  TCP    127.0.0.1:5173         0.0.0.0:0              LISTENING       4312\r\n" +
		"  UDP    0.0.0.0:5173           *:*                                    991\r\n" +
		"  TCP    0.0.0.0:51730          0.0.0.0:0              LISTENING       777\r\n" +
		"  TCP    garbage-row\r\n" +
		"  TCP    0.0.0.0:5173           0.0.0.0:0              LISTENING       notapid\r\n"
	f := &fakeRunner{outputs: map[string][]byte{"netstat -ano": []byte(out)}}
	r := NewResolver(nil)
	r.SetRunner(f.run)

	pids := r.FindPIDsByPort(context.Background(), 5173)
	assert.Equal(t, []int{4312, 991}, pids)
}

func TestFindPIDsByPortWindowsSwallowsFailure(t *testing.T) {
	platform.Override(platform.Windows)
	defer platform.Reset()

	f := &fakeRunner{errs: map[string]error{"netstat -ano": errors.New("boom")}}
	r := NewResolver(nil)
	r.SetRunner(f.run)

	assert.Empty(t, r.FindPIDsByPort(context.Background(), 5173))
}

func TestFindPIDsByPortPosixPrimaryTool(t *testing.T) {
	platform.Override(platform.Posix)
	defer platform.Reset()

	f := &fakeRunner{outputs: map[string][]byte{
		"lsof -t -i :8000": []byte("123\n456\n123\n"),
	}}
	r := NewResolver(nil)
	r.SetRunner(f.run)

	pids := r.FindPIDsByPort(context.Background(), 8000)
	assert.Equal(t, []int{123, 456}, pids)
	// fuser must not run when lsof yielded owners
	assert.Equal(t, []string{"lsof -t -i :8000"}, f.calls)
}

func TestFindPIDsByPortPosixFallsBackToFuser(t *testing.T) {
	platform.Override(platform.Posix)
	defer platform.Reset()

	f := &fakeRunner{
		errs:    map[string]error{"lsof -t -i :8000": errors.New("exit 1")},
		outputs: map[string][]byte{"fuser 8000/tcp": []byte("8000/tcp:  321  654")},
	}
	r := NewResolver(nil)
	r.SetRunner(f.run)

	pids := r.FindPIDsByPort(context.Background(), 8000)
	assert.Equal(t, []int{321, 654}, pids)
}

func TestFindPIDsByPortPosixBothToolsFail(t *testing.T) {
	platform.Override(platform.Posix)
	defer platform.Reset()

	f := &fakeRunner{errs: map[string]error{
		"lsof -t -i :9000": errors.New("no lsof"),
		"fuser 9000/tcp":   errors.New("no fuser"),
	}}
	r := NewResolver(nil)
	r.SetRunner(f.run)

	assert.Empty(t, r.FindPIDsByPort(context.Background(), 9000))
}

func TestIsPortAvailable(t *testing.T) {
	r := NewResolver(nil)
	assert.False(t, r.IsPortAvailable(0))
	assert.False(t, r.IsPortAvailable(-1))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	busy := ln.Addr().(*net.TCPAddr).Port
	assert.False(t, r.IsPortAvailable(busy))
}

func TestFindFirstAvailablePortSkipsBusyBase(t *testing.T) {
	r := NewResolver(nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	busy := ln.Addr().(*net.TCPAddr).Port

	got := r.FindFirstAvailablePort(busy, 10)
	assert.NotEqual(t, busy, got)
	assert.GreaterOrEqual(t, got, busy)
	assert.LessOrEqual(t, got, busy+10)
}

func TestFindFirstAvailablePortFallsBackToBase(t *testing.T) {
	r := NewResolver(nil)
	// hold the whole window open so nothing binds
	base := 0
	var lns []net.Listener
	defer func() {
		for _, ln := range lns {
			_ = ln.Close()
		}
	}()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	lns = append(lns, ln)
	base = ln.Addr().(*net.TCPAddr).Port
	windowHeld := true
	for off := 1; off <= 2; off++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", base+off))
		if err != nil {
			windowHeld = false
			break
		}
		lns = append(lns, l)
	}
	if !windowHeld {
		t.Skip("could not reserve contiguous port window")
	}

	assert.Equal(t, base, r.FindFirstAvailablePort(base, 2))
}
