package tdbx

import (
	"sync"
	"weak"

	"github.com/Giulio2002/tdbx/internal/engine"
)

// registry maps canonical paths to open environments so that a process
// never holds two engine instances over the same files. Entries are weak:
// an Env that is dropped without Close is collected, its engine handle is
// closed by a cleanup, and the path can be opened again.
var registry = struct {
	sync.Mutex
	envs map[string]registryEntry
}{envs: make(map[string]registryEntry)}

type registryEntry struct {
	env    weak.Pointer[Env]
	handle *engineHandle
}

// lookupEnv returns the live Env registered at path. A collected entry is
// removed and its engine handle closed before returning nil, so the caller
// may open the path again. The registry lock must be held.
func lookupEnv(path string) *Env {
	ent, ok := registry.envs[path]
	if !ok {
		return nil
	}
	if e := ent.env.Value(); e != nil {
		return e
	}
	delete(registry.envs, path)
	reclaim(ent.handle)
	return nil
}

// registerEnv records e under its path. The registry lock must be held.
func registerEnv(e *Env) {
	registry.envs[e.path] = registryEntry{env: weak.Make(e), handle: e.handle}
}

// unregisterEnv removes e's entry. The registry lock must be held.
func unregisterEnv(e *Env) {
	if ent, ok := registry.envs[e.path]; ok && ent.env.Value() == e {
		delete(registry.envs, e.path)
	}
}

// openEnvs returns the number of live registry entries.
func openEnvs() int {
	registry.Lock()
	defer registry.Unlock()

	n := 0
	for path := range registry.envs {
		if lookupEnv(path) != nil {
			n++
		}
	}
	return n
}

// engineHandle owns the driver environment. It is the cleanup argument for
// its Env and must not point back at it.
type engineHandle struct {
	mu   sync.Mutex
	path string
	env  engine.Env
}

func (h *engineHandle) get() engine.Env {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env
}

func (h *engineHandle) set(env engine.Env) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.env = env
}

func (h *engineHandle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.env == nil {
		return nil
	}
	err := h.env.Close()
	h.env = nil
	return err
}

// reclaim closes the handle of an Env that was garbage collected without
// Close. It runs from the runtime cleanup or from lookupEnv, whichever comes
// first; the second call finds the handle closed.
func reclaim(h *engineHandle) {
	if h.get() == nil {
		return
	}
	if err := h.close(); err != nil {
		log.Errorf("Closing leaked environment %s: %v", h.path, err)
		return
	}
	log.Warnf("Environment %s was not closed before being collected", h.path)
}
