package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haeki/devserve/internal/orchestrator"
	"github.com/haeki/devserve/internal/project"
	"github.com/haeki/devserve/internal/registry"
)

type fakeLifecycle struct {
	startErr   error
	stopOpts   orchestrator.StopOptions
	stopErr    error
	restartErr error
	set        *registry.ProcessSet
	status     orchestrator.StatusResult
}

func (f *fakeLifecycle) Start(_ context.Context, id string) (*registry.ProcessSet, error) {
	return f.set, f.startErr
}

func (f *fakeLifecycle) Stop(_ context.Context, id string, opts orchestrator.StopOptions) (orchestrator.StopResult, error) {
	f.stopOpts = opts
	if f.stopErr != nil {
		return orchestrator.StopResult{}, f.stopErr
	}
	return orchestrator.StopResult{Stopped: true, State: registry.StateStopped}, nil
}

func (f *fakeLifecycle) Restart(_ context.Context, id string, opts orchestrator.RestartOptions) (*registry.ProcessSet, error) {
	return f.set, f.restartErr
}

func (f *fakeLifecycle) Status(id string) orchestrator.StatusResult { return f.status }

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func liveSet() *registry.ProcessSet {
	return &registry.ProcessSet{
		Frontend: &registry.RoleSnapshot{PID: 101, Port: 5173, Status: "running"},
		Backend:  &registry.RoleSnapshot{PID: 202, Port: 8000, Status: "running"},
	}
}

func TestStartEndpoint(t *testing.T) {
	lc := &fakeLifecycle{set: liveSet()}
	h := NewRouter(lc, "").Handler()

	w := do(t, h, http.MethodPost, "/projects/webshop/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp processesResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "webshop", resp.Project)
	require.Equal(t, 101, resp.Processes.Frontend.PID)
}

func TestStopEndpointPassesScope(t *testing.T) {
	lc := &fakeLifecycle{}
	h := NewRouter(lc, "").Handler()

	w := do(t, h, http.MethodPost, "/projects/webshop/stop",
		ScopeRequest{Target: "backend", ForcePorts: true})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "backend", lc.stopOpts.Target)
	require.True(t, lc.stopOpts.ForcePorts)

	var resp stopResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Stopped)
	require.Equal(t, "stopped", resp.State)
}

func TestStopEndpointEmptyBody(t *testing.T) {
	lc := &fakeLifecycle{}
	h := NewRouter(lc, "").Handler()

	w := do(t, h, http.MethodPost, "/projects/webshop/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "", lc.stopOpts.Target)
}

func TestStopEndpointAcceptsQueryScope(t *testing.T) {
	lc := &fakeLifecycle{}
	h := NewRouter(lc, "").Handler()

	w := do(t, h, http.MethodPost,
		"/projects/webshop/stop?target=backend&force_ports=true&wait_for_release=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "backend", lc.stopOpts.Target)
	require.True(t, lc.stopOpts.ForcePorts)
	require.True(t, lc.stopOpts.WaitForRelease)
}

func TestStopEndpointBodyOverridesQueryScope(t *testing.T) {
	lc := &fakeLifecycle{}
	h := NewRouter(lc, "").Handler()

	w := do(t, h, http.MethodPost, "/projects/webshop/stop?target=frontend",
		ScopeRequest{Target: "backend"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "backend", lc.stopOpts.Target)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid target", orchestrator.ErrInvalidTarget, http.StatusBadRequest},
		{"unknown project", project.ErrNotFound, http.StatusNotFound},
		{"start failed", orchestrator.ErrStartFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lc := &fakeLifecycle{restartErr: tc.err}
			h := NewRouter(lc, "").Handler()
			w := do(t, h, http.MethodPost, "/projects/webshop/restart", nil)
			require.Equal(t, tc.code, w.Code)

			var resp errorResp
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Error)
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	lc := &fakeLifecycle{status: orchestrator.StatusResult{Key: "webshop", State: "running"}}
	h := NewRouter(lc, "/api").Handler()

	w := do(t, h, http.MethodGet, "/api/projects/webshop/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var st orchestrator.StatusResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, "running", st.State)
}

func TestUnsafeProjectIDRejected(t *testing.T) {
	lc := &fakeLifecycle{set: liveSet()}
	h := NewRouter(lc, "").Handler()

	w := do(t, h, http.MethodPost, "/projects/web..shop/start", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	h := NewRouter(&fakeLifecycle{}, "").Handler()
	w := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSanitizeBase(t *testing.T) {
	require.Equal(t, "", sanitizeBase(""))
	require.Equal(t, "", sanitizeBase("/"))
	require.Equal(t, "/api", sanitizeBase("api/"))
	require.Equal(t, "/api", sanitizeBase("/api"))
}

func TestIsSafeProjectID(t *testing.T) {
	require.True(t, isSafeProjectID("webshop"))
	require.True(t, isSafeProjectID("web_shop-2.0"))
	require.False(t, isSafeProjectID(""))
	require.False(t, isSafeProjectID("a/b"))
	require.False(t, isSafeProjectID(".."))
}
