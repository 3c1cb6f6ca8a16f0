package tdbx

import (
	"github.com/Giulio2002/tdbx/internal/engine/bolt"
	"github.com/Giulio2002/tdbx/internal/engine/pebble"
)

// Engine names accepted by EnvOptions.Engine. MDBX is only available in
// cgo builds.
const (
	EngineMDBX   = "mdbx"
	EngineBolt   = bolt.Name
	EnginePebble = pebble.Name
)
