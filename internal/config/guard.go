package config

import (
	"os"
	"sync"
)

// ProtectedPids is the set of process IDs the manager must never
// terminate. It always contains the manager's own PID. Built once at
// startup; Apply is the only sanctioned mutation afterwards.
type ProtectedPids struct {
	mu  sync.RWMutex
	set map[int]struct{}
}

func NewProtectedPids(extra ...int) *ProtectedPids {
	p := &ProtectedPids{set: make(map[int]struct{})}
	p.set[os.Getpid()] = struct{}{}
	p.Apply(extra)
	return p
}

// Apply adds extra protected PIDs from configuration. Non-positive
// values are ignored.
func (p *ProtectedPids) Apply(pids []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pid := range pids {
		if pid > 0 {
			p.set[pid] = struct{}{}
		}
	}
}

func (p *ProtectedPids) Contains(pid int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.set[pid]
	return ok
}

// ReservedPorts is the set of ports the manager must never attempt to
// free, such as its own listening port. When the configured set is
// empty it is seeded with the given fallback.
type ReservedPorts struct {
	set map[int]struct{}
}

func NewReservedPorts(ports []int, fallback int) *ReservedPorts {
	r := &ReservedPorts{set: make(map[int]struct{})}
	for _, port := range ports {
		if port > 0 {
			r.set[port] = struct{}{}
		}
	}
	if len(r.set) == 0 && fallback > 0 {
		r.set[fallback] = struct{}{}
	}
	return r
}

func (r *ReservedPorts) Contains(port int) bool {
	_, ok := r.set[port]
	return ok
}
