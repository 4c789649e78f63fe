package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haeki/devserve/internal/orchestrator"
	"github.com/haeki/devserve/internal/project"
	"github.com/haeki/devserve/internal/registry"
)

// Lifecycle is the slice of the orchestrator the HTTP surface uses.
type Lifecycle interface {
	Start(ctx context.Context, id string) (*registry.ProcessSet, error)
	Stop(ctx context.Context, id string, opts orchestrator.StopOptions) (orchestrator.StopResult, error)
	Restart(ctx context.Context, id string, opts orchestrator.RestartOptions) (*registry.ProcessSet, error)
	Status(id string) orchestrator.StatusResult
}

// Router provides embeddable HTTP handlers for the project lifecycle.
// Endpoints:
//   POST {basePath}/projects/:id/start
//   POST {basePath}/projects/:id/stop      scope: JSON body or query params (optional)
//   POST {basePath}/projects/:id/restart   scope: JSON body or query params (optional)
//   GET  {basePath}/projects/:id/status
//   GET  {basePath}/healthz
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	lc       Lifecycle
	basePath string
}

func NewRouter(lc Lifecycle, basePath string) *Router {
	return &Router{lc: lc, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealth)
	projects := group.Group("/projects/:id")
	projects.POST("/start", r.handleStart)
	projects.POST("/stop", r.handleStop)
	projects.POST("/restart", r.handleRestart)
	projects.GET("/status", r.handleStatus)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, lc Lifecycle) *http.Server {
	r := NewRouter(lc, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// ScopeRequest narrows stop/restart to one role and tunes cleanup.
type ScopeRequest struct {
	Target         string `json:"target"`
	ForcePorts     bool   `json:"force_ports"`
	WaitForRelease bool   `json:"wait_for_release"`
}

type errorResp struct {
	Error string `json:"error"`
}

type stopResp struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
	State   string `json:"state"`
}

type processesResp struct {
	Project   string               `json:"project"`
	Processes *registry.ProcessSet `json:"processes"`
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleStart(c *gin.Context) {
	id := c.Param("id")
	if !isSafeProjectID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid project id"})
		return
	}
	set, err := r.lc.Start(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, processesResp{Project: id, Processes: set})
}

func (r *Router) handleStop(c *gin.Context) {
	id := c.Param("id")
	if !isSafeProjectID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid project id"})
		return
	}
	scope, ok := bindScope(c)
	if !ok {
		return
	}
	res, err := r.lc.Stop(c.Request.Context(), id, orchestrator.StopOptions{
		Target:         scope.Target,
		ForcePorts:     scope.ForcePorts,
		WaitForRelease: scope.WaitForRelease,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, stopResp{Stopped: res.Stopped, Message: res.Message, State: string(res.State)})
}

func (r *Router) handleRestart(c *gin.Context) {
	id := c.Param("id")
	if !isSafeProjectID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid project id"})
		return
	}
	scope, ok := bindScope(c)
	if !ok {
		return
	}
	set, err := r.lc.Restart(c.Request.Context(), id, orchestrator.RestartOptions{
		Target:         scope.Target,
		ForcePorts:     scope.ForcePorts,
		WaitForRelease: scope.WaitForRelease,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, processesResp{Project: id, Processes: set})
}

func (r *Router) handleStatus(c *gin.Context) {
	id := c.Param("id")
	if !isSafeProjectID(id) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid project id"})
		return
	}
	writeJSON(c, http.StatusOK, r.lc.Status(id))
}

// bindScope reads an optional ScopeRequest from query parameters and
// the JSON body. Body fields override query values; with neither the
// default scope (both roles) applies.
func bindScope(c *gin.Context) (ScopeRequest, bool) {
	scope := ScopeRequest{
		Target:         c.Query("target"),
		ForcePorts:     queryBool(c, "force_ports"),
		WaitForRelease: queryBool(c, "wait_for_release"),
	}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return scope, true
	}
	if err := c.ShouldBindJSON(&scope); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return scope, false
	}
	return scope, true
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidTarget):
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
	case errors.Is(err, project.ErrNotFound):
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
	case errors.Is(err, orchestrator.ErrStartFailed):
		writeJSON(c, http.StatusBadGateway, errorResp{Error: err.Error()})
	default:
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
	}
}
