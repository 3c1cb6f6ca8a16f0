package engine

import (
	"errors"
	"fmt"
	"syscall"
)

// Sentinel errors. Drivers wrap native failures with one of these so the
// caller can classify them without knowing the engine.
var (
	ErrNotFound        = errors.New("not found")
	ErrKeyExist        = errors.New("key already exists")
	ErrKeyMismatch     = errors.New("key out of order")
	ErrMapFull         = errors.New("map size limit reached")
	ErrDiskFull        = errors.New("no space left on device")
	ErrReadersFull     = errors.New("reader slots exhausted")
	ErrDBsFull         = errors.New("namespace limit reached")
	ErrVersionMismatch = errors.New("data format version mismatch")
	ErrInvalid         = errors.New("not a valid data file")
	ErrCorrupted       = errors.New("data file corrupted")
	ErrIncompatible    = errors.New("operation not supported by engine")
	ErrBadValSize      = errors.New("bad key or value size")
	ErrReadOnly        = errors.New("environment is read-only")
	ErrBusy            = errors.New("environment is busy")
	ErrUnknownDriver   = errors.New("unknown engine driver")
)

// Wrap tags a native error with a sentinel kind. The result matches both
// the kind and the native error under errors.Is and errors.As.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// IsDiskFull reports whether err carries ENOSPC.
func IsDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
