//go:build cgo

package tdbx

import _ "github.com/Giulio2002/tdbx/internal/engine/mdbx"
