package platform

import (
	"runtime"
	"sync"
)

// Platform names the two process-management strategies devserve knows.
// Everything that is not Windows follows the POSIX path.
type Platform int

const (
	Posix Platform = iota
	Windows
)

func (p Platform) String() string {
	if p == Windows {
		return "windows"
	}
	return "posix"
}

var (
	mu       sync.RWMutex
	current  = detect()
	override *Platform
)

func detect() Platform {
	if runtime.GOOS == "windows" {
		return Windows
	}
	return Posix
}

// Current returns the active platform, honoring any test override.
func Current() Platform {
	mu.RLock()
	defer mu.RUnlock()
	if override != nil {
		return *override
	}
	return current
}

// Override forces the reported platform. Intended for tests that
// exercise the foreign code path.
func Override(p Platform) {
	mu.Lock()
	defer mu.Unlock()
	override = &p
}

// Reset clears any override.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	override = nil
}
