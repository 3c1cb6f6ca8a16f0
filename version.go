package tdbx

import (
	"fmt"
	"strings"
)

// Version constants
const (
	// Major is the major version number
	Major = 0

	// Minor is the minor version number
	Minor = 1

	// Patch is the patch version number
	Patch = 0
)

// Version returns the version string of tdbx and the drivers compiled in.
func Version() string {
	return fmt.Sprintf("tdbx %d.%d.%d (engines: %s)", Major, Minor, Patch, strings.Join(Engines(), ", "))
}
