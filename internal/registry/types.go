package registry

import "time"

// Role names one of the two dev-server processes tracked per project.
type Role string

const (
	RoleFrontend Role = "frontend"
	RoleBackend  Role = "backend"
)

func (r Role) Valid() bool { return r == RoleFrontend || r == RoleBackend }

// Other returns the sibling role.
func (r Role) Other() Role {
	if r == RoleFrontend {
		return RoleBackend
	}
	return RoleFrontend
}

// Roles lists both roles in canonical order.
func Roles() []Role { return []Role{RoleFrontend, RoleBackend} }

// MaxLogLines bounds the in-memory output ring kept per role snapshot.
const MaxLogLines = 100

// LogLine is one captured line of dev-server output.
type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Output    string    `json:"output"`
}

// RoleSnapshot is the last known state of one role's process. It is
// owned exclusively by its project entry and replaced wholesale when
// the role restarts.
type RoleSnapshot struct {
	PID    int       `json:"pid"`
	Port   int       `json:"port"`
	Status string    `json:"status"`
	Logs   []LogLine `json:"logs"`
}

func (s *RoleSnapshot) Clone() *RoleSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Logs = append([]LogLine(nil), s.Logs...)
	return &c
}

func (s *RoleSnapshot) appendLog(ts time.Time, output string) {
	s.Logs = append(s.Logs, LogLine{Timestamp: ts, Output: output})
	if n := len(s.Logs); n > MaxLogLines {
		s.Logs = s.Logs[n-MaxLogLines:]
	}
}

// ProcessSet holds the role snapshots of one project.
type ProcessSet struct {
	Frontend *RoleSnapshot `json:"frontend"`
	Backend  *RoleSnapshot `json:"backend"`
}

func (p *ProcessSet) Role(r Role) *RoleSnapshot {
	if p == nil {
		return nil
	}
	if r == RoleFrontend {
		return p.Frontend
	}
	return p.Backend
}

func (p *ProcessSet) SetRole(r Role, s *RoleSnapshot) {
	if r == RoleFrontend {
		p.Frontend = s
	} else {
		p.Backend = s
	}
}

// Empty reports whether no role has a snapshot.
func (p *ProcessSet) Empty() bool {
	return p == nil || (p.Frontend == nil && p.Backend == nil)
}

// HasLivePID reports whether any role snapshot exposes a plausibly-live
// PID.
func (p *ProcessSet) HasLivePID() bool {
	if p == nil {
		return false
	}
	return (p.Frontend != nil && p.Frontend.PID > 0) || (p.Backend != nil && p.Backend.PID > 0)
}

func (p *ProcessSet) Clone() *ProcessSet {
	if p == nil {
		return nil
	}
	return &ProcessSet{Frontend: p.Frontend.Clone(), Backend: p.Backend.Clone()}
}

// State is the aggregate lifecycle state of a project entry.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateUnknown State = "unknown"
)

// LaunchType records how the project was last started.
type LaunchType string

const (
	LaunchManual LaunchType = "manual"
	LaunchAuto   LaunchType = "auto"
)

// Entry is the last known lifecycle record for one project.
type Entry struct {
	Processes        *ProcessSet `json:"processes"`
	State            State       `json:"state"`
	LastStateChange  time.Time   `json:"last_state_change"`
	LastTerminatedAt time.Time   `json:"last_terminated_at"`
	SnapshotVisible  bool        `json:"snapshot_visible"`
	LaunchType       LaunchType  `json:"launch_type"`
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Processes = e.Processes.Clone()
	return &c
}
