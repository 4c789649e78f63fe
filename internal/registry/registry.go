package registry

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Registry is the in-memory per-project record of last known process
// snapshots and lifecycle state. It is keyed by canonical project key.
// Operations on different keys proceed independently; callers that
// sequence multi-step operations on one key serialize through
// Lock/Unlock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	keyMu    sync.Mutex
	keyLocks map[string]*sync.Mutex

	now func() time.Time
}

func New() *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		keyLocks: make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (g *Registry) SetClock(now func() time.Time) { g.now = now }

// CanonicalKey trims the key and reduces all-digit keys to their
// canonical decimal spelling so that numeric and string forms of the
// same project id collapse to one entry.
func CanonicalKey(key string) string {
	k := strings.TrimSpace(key)
	if k == "" {
		return k
	}
	if n, err := strconv.ParseUint(k, 10, 64); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return k
}

// Lock acquires the per-key mutex, creating it on first use.
func (g *Registry) Lock(key string) {
	g.keyLock(CanonicalKey(key)).Lock()
}

// Unlock releases the per-key mutex.
func (g *Registry) Unlock(key string) {
	g.keyLock(CanonicalKey(key)).Unlock()
}

func (g *Registry) keyLock(key string) *sync.Mutex {
	g.keyMu.Lock()
	defer g.keyMu.Unlock()
	m, ok := g.keyLocks[key]
	if !ok {
		m = &sync.Mutex{}
		g.keyLocks[key] = m
	}
	return m
}

// StoreOptions tune a Store call. A zero value keeps the stored launch
// type and computes snapshot visibility from the effective snapshot.
type StoreOptions struct {
	LaunchType     LaunchType
	ExposeSnapshot *bool
}

// Store records processes and state for key. A nil processes argument
// preserves the previous snapshot and updates only state and metadata.
// LastStateChange advances only on a real state transition; a
// transition into stopped also stamps LastTerminatedAt.
func (g *Registry) Store(key string, procs *ProcessSet, state State, opts StoreOptions) {
	canon := CanonicalKey(key)
	g.mu.Lock()
	defer g.mu.Unlock()

	g.collapseDuplicatesLocked(canon)

	e := g.entries[canon]
	if e == nil {
		// also tolerates an explicitly stored nil for this key
		e = &Entry{LaunchType: LaunchManual}
		g.entries[canon] = e
	}
	if procs != nil {
		e.Processes = procs.Clone()
	}
	e.SnapshotVisible = e.Processes.HasLivePID()
	if opts.ExposeSnapshot != nil && !*opts.ExposeSnapshot {
		e.SnapshotVisible = false
	}
	if state != e.State {
		now := g.now()
		e.LastStateChange = now
		if state == StateStopped {
			e.LastTerminatedAt = now
		}
	}
	e.State = state
	if opts.LaunchType != "" {
		e.LaunchType = opts.LaunchType
	} else if e.LaunchType == "" {
		e.LaunchType = LaunchManual
	}
}

// View is the canonical read shape for one project entry.
type View struct {
	Key             string
	Exists          bool
	Processes       *ProcessSet
	State           State
	SnapshotVisible bool
	LaunchType      LaunchType
	Entry           *Entry
}

// Get returns the entry for key in canonical form, normalizing any
// legacy or partial stored shape and persisting the normalization.
// Missing keys return defined defaults: nil snapshot, unknown state,
// hidden snapshot, manual launch type.
func (g *Registry) Get(key string) View {
	canon := CanonicalKey(key)
	g.mu.Lock()
	defer g.mu.Unlock()

	g.collapseDuplicatesLocked(canon)

	e := g.entries[canon]
	if e == nil {
		return View{Key: canon, State: StateUnknown, LaunchType: LaunchManual}
	}
	normalizeEntry(e)
	return View{
		Key:             canon,
		Exists:          true,
		Processes:       e.Processes.Clone(),
		State:           e.State,
		SnapshotVisible: e.SnapshotVisible,
		LaunchType:      e.LaunchType,
		Entry:           e.clone(),
	}
}

// normalizeEntry converts historical/partial entries to canonical form
// in place: missing state becomes unknown, missing launch type becomes
// manual. Snapshot visibility is recomputed on writes, not reads, so an
// explicit ExposeSnapshot override survives Get.
func normalizeEntry(e *Entry) {
	if e.State == "" {
		e.State = StateUnknown
	}
	if e.LaunchType == "" {
		e.LaunchType = LaunchManual
	}
}

// collapseDuplicatesLocked merges alternative spellings of canon (e.g.
// a numeric form stored next to its string form) into the canonical
// key, keeping the canonical entry when both exist.
func (g *Registry) collapseDuplicatesLocked(canon string) {
	for k, e := range g.entries {
		if k == canon || CanonicalKey(k) != canon {
			continue
		}
		if g.entries[canon] == nil {
			g.entries[canon] = e
		}
		delete(g.entries, k)
	}
}

// AppendRoleLog appends one captured output line to a role's bounded
// log ring, if the role currently has a snapshot.
func (g *Registry) AppendRoleLog(key string, role Role, output string) {
	canon := CanonicalKey(key)
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.entries[canon]
	if e == nil || e.Processes == nil {
		return
	}
	snap := e.Processes.Role(role)
	if snap == nil {
		return
	}
	snap.appendLog(g.now(), output)
}

// Seed installs a raw entry under an unnormalized key. Used by tests
// and legacy import paths; normal writes go through Store.
func (g *Registry) Seed(rawKey string, e *Entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[rawKey] = e
}

// Keys returns the stored keys. Order is unspecified.
func (g *Registry) Keys() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]string, 0, len(g.entries))
	for k := range g.entries {
		keys = append(keys, k)
	}
	return keys
}
