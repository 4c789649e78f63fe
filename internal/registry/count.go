package registry

// RunningRoleCount returns the number of role snapshots tracked under
// entries in the running state, across all projects.
func (g *Registry) RunningRoleCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, e := range g.entries {
		if e == nil || e.State != StateRunning || e.Processes == nil {
			continue
		}
		if e.Processes.Frontend != nil {
			n++
		}
		if e.Processes.Backend != nil {
			n++
		}
	}
	return n
}
