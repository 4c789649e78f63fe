package registry

import (
	"encoding/json"
	"fmt"
)

// EntryFromJSON converts any historical stored shape into a canonical
// Entry. Two legacy forms exist next to the current object form: a bare
// state string ("running"), and a partial object carrying only a state
// field. Unknown state values map to unknown rather than failing.
func EntryFromJSON(raw []byte) (*Entry, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &Entry{State: parseState(s), LaunchType: LaunchManual}, nil
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("unrecognized entry shape: %w", err)
	}
	e.State = parseState(string(e.State))
	normalizeEntry(&e)
	e.SnapshotVisible = e.Processes.HasLivePID()
	return &e, nil
}

func parseState(s string) State {
	switch State(s) {
	case StateRunning, StateStopped, StateUnknown:
		return State(s)
	default:
		return StateUnknown
	}
}

// Import installs a legacy-shaped entry under key, normalizing both the
// key and the entry shape.
func (g *Registry) Import(key string, raw []byte) error {
	e, err := EntryFromJSON(raw)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	canon := CanonicalKey(key)
	g.collapseDuplicatesLocked(canon)
	g.entries[canon] = e
	return nil
}
