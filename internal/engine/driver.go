package engine

import (
	"fmt"
	"sort"
	"sync"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// preference orders the drivers consulted by Default.
var preference = []string{"mdbx", "bolt", "pebble"}

// Register makes a driver available by name. It panics when called twice
// with the same name.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		panic("engine: Register driver is nil")
	}
	if _, dup := drivers[d.Name()]; dup {
		panic("engine: Register called twice for driver " + d.Name())
	}
	drivers[d.Name()] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return d, nil
}

// Drivers returns the sorted names of all registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the preferred registered driver name, or "" when none is
// registered.
func Default() string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	for _, name := range preference {
		if _, ok := drivers[name]; ok {
			return name
		}
	}
	return ""
}
