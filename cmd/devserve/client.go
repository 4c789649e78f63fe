package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// APIClient speaks HTTP to a running devserve daemon.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:7466"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsReachable checks if the daemon is running and reachable.
func (c *APIClient) IsReachable() bool {
	resp, err := c.client.Get(c.baseURL + "/healthz")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// scopeBody mirrors the server's ScopeRequest.
type scopeBody struct {
	Target         string `json:"target,omitempty"`
	ForcePorts     bool   `json:"force_ports,omitempty"`
	WaitForRelease bool   `json:"wait_for_release,omitempty"`
}

func (c *APIClient) post(path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", &buf)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decode(resp, out)
}

func (c *APIClient) get(path string, out any) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return fmt.Errorf("daemon returned %s", resp.Status)
		}
		return fmt.Errorf("daemon error: %s", errorResp.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StartProject starts both roles of a project via the daemon.
func (c *APIClient) StartProject(id string) (map[string]any, error) {
	var out map[string]any
	err := c.post("/projects/"+id+"/start", nil, &out)
	return out, err
}

// StopProject stops a project (or one role of it) via the daemon.
func (c *APIClient) StopProject(id string, scope scopeBody) (map[string]any, error) {
	var out map[string]any
	err := c.post("/projects/"+id+"/stop", scope, &out)
	return out, err
}

// RestartProject restarts a project (or one role of it) via the daemon.
func (c *APIClient) RestartProject(id string, scope scopeBody) (map[string]any, error) {
	var out map[string]any
	err := c.post("/projects/"+id+"/restart", scope, &out)
	return out, err
}

// ProjectStatus fetches the daemon's view of a project.
func (c *APIClient) ProjectStatus(id string) (map[string]any, error) {
	var out map[string]any
	err := c.get("/projects/"+id+"/status", &out)
	return out, err
}
