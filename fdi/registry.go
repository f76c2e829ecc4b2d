package fdi

import (
	"sort"
	"strings"
	"sync"
)

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// Register makes an engine available by name.
// It must be called during init.
// Registering a nil engine or the same name twice panics.
func Register(name string, engine Engine) {
	name = strings.ToLower(name)
	if engine == nil {
		panic("fdi: register of nil engine " + name)
	}

	enginesMu.Lock()
	defer enginesMu.Unlock()

	if _, ok := engines[name]; ok {
		panic("fdi: engine " + name + " is already registered")
	}
	engines[name] = engine
}

// Lookup returns the engine registered under name.
// An empty name selects the first registered engine in name order.
func Lookup(name string) (Engine, bool) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	if name == "" {
		names := drivers()
		if len(names) == 0 {
			return nil, false
		}
		name = names[0]
	}

	e, ok := engines[strings.ToLower(name)]
	return e, ok
}

// Drivers returns the sorted names of the registered engines.
func Drivers() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	return drivers()
}

func drivers() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
