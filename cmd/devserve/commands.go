package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// LifecycleFlags hold the client-side connection and scope flags shared
// by the start/stop/restart/status commands.
type LifecycleFlags struct {
	APIUrl         string
	APITimeout     time.Duration
	Target         string
	ForcePorts     bool
	WaitForRelease bool
}

type command struct{}

func (command) client(f *LifecycleFlags) (*APIClient, error) {
	c := NewAPIClient(f.APIUrl, f.APITimeout)
	if !c.IsReachable() {
		return nil, fmt.Errorf("devserve daemon not reachable at %s (is it running? try 'devserve serve')", c.baseURL)
	}
	return c, nil
}

func (cmd command) Start(id string, f *LifecycleFlags) error {
	c, err := cmd.client(f)
	if err != nil {
		return err
	}
	out, err := c.StartProject(id)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func (cmd command) Stop(id string, f *LifecycleFlags) error {
	c, err := cmd.client(f)
	if err != nil {
		return err
	}
	out, err := c.StopProject(id, scopeBody{
		Target:         f.Target,
		ForcePorts:     f.ForcePorts,
		WaitForRelease: f.WaitForRelease,
	})
	if err != nil {
		return err
	}
	return printJSON(out)
}

func (cmd command) Restart(id string, f *LifecycleFlags) error {
	c, err := cmd.client(f)
	if err != nil {
		return err
	}
	out, err := c.RestartProject(id, scopeBody{
		Target:         f.Target,
		ForcePorts:     f.ForcePorts,
		WaitForRelease: f.WaitForRelease,
	})
	if err != nil {
		return err
	}
	return printJSON(out)
}

func (cmd command) Status(id string, f *LifecycleFlags) error {
	c, err := cmd.client(f)
	if err != nil {
		return err
	}
	out, err := c.ProjectStatus(id)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
