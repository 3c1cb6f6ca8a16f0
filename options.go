package tdbx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Giulio2002/tdbx/internal/engine"
)

// EnvOptions configures an environment. Zero fields take their defaults.
type EnvOptions struct {
	// Engine names the storage driver. Empty selects the preferred
	// registered driver (see Engines).
	Engine string

	// MapSize bounds the data size. It is rounded up to the OS page size.
	MapSize int64

	// MaxDBs bounds the number of named databases.
	MaxDBs int

	// MaxReaders bounds the number of concurrent read transactions.
	MaxReaders int

	// Flags is a combination of the environment flags.
	Flags uint

	// Mode is the permission for newly created files.
	Mode os.FileMode
}

// DefaultEnvOptions returns the options Open uses for zero fields.
func DefaultEnvOptions() EnvOptions {
	return EnvOptions{
		Engine:     engine.Default(),
		MapSize:    DefaultMapSize,
		MaxDBs:     DefaultMaxDBs,
		MaxReaders: DefaultMaxReaders,
		Mode:       DefaultMode,
	}
}

// normalize fills defaults and validates o. Two option sets describe the
// same environment configuration iff their normalized forms are equal.
func (o EnvOptions) normalize() (EnvOptions, engine.Driver, error) {
	if o.Engine == "" {
		o.Engine = engine.Default()
		if o.Engine == "" {
			return o, nil, WrapError(ErrInvalidOption, fmt.Errorf("no engine drivers registered"))
		}
	}
	drv, err := engine.Lookup(o.Engine)
	if err != nil {
		return o, nil, WrapError(ErrInvalidOption, err)
	}

	switch {
	case o.MapSize == 0:
		o.MapSize = DefaultMapSize
	case o.MapSize < 0:
		return o, nil, WrapError(ErrInvalidOption, fmt.Errorf("negative map size %d", o.MapSize))
	case o.MapSize < MinMapSize:
		return o, nil, WrapError(ErrMapSizeTooSmall, fmt.Errorf("%d < %d", o.MapSize, MinMapSize))
	}
	o.MapSize = alignToPageSize(o.MapSize)

	if o.MaxDBs < 0 || o.MaxReaders < 0 {
		return o, nil, WrapError(ErrInvalidOption, fmt.Errorf("negative limit"))
	}
	if o.MaxDBs == 0 {
		o.MaxDBs = DefaultMaxDBs
	}
	if o.MaxReaders == 0 {
		o.MaxReaders = DefaultMaxReaders
	}
	if o.Mode == 0 {
		o.Mode = DefaultMode
	}

	if unknown := o.Flags &^ envFlagMask; unknown != 0 {
		return o, nil, WrapError(ErrInvalidOption, fmt.Errorf("unknown flags %#x", unknown))
	}
	if o.Flags&NoSubdir != 0 && !drv.Features().NoSubdir {
		return o, nil, WrapError(ErrInvalidOption, fmt.Errorf("engine %s does not support NoSubdir", o.Engine))
	}
	return o, drv, nil
}

// engineConfig converts normalized options for the driver.
func (o EnvOptions) engineConfig(path string) engine.Config {
	return engine.Config{
		Path:       path,
		MapSize:    o.MapSize,
		MaxDBs:     o.MaxDBs,
		MaxReaders: o.MaxReaders,
		Flags:      engine.Flags(o.Flags &^ TryWrite),
		Mode:       o.Mode,
		Logger:     log,
	}
}

// alignToPageSize rounds size up to a multiple of the OS page size.
func alignToPageSize(size int64) int64 {
	ps := osPageSize()
	if size%ps == 0 {
		return size
	}
	return (size/ps + 1) * ps
}

// canonicalPath resolves path to the absolute, symlink-free form used as the
// registry key, creating the environment directory when needed.
func canonicalPath(path string, opts EnvOptions) (string, error) {
	if path == "" {
		return "", WrapError(ErrInvalidPath, fmt.Errorf("empty path"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", WrapError(ErrInvalidPath, err)
	}

	if opts.Flags&NoSubdir != 0 {
		if fi, err := os.Stat(abs); err == nil {
			if fi.IsDir() {
				return "", WrapError(ErrInvalidPath, fmt.Errorf("%s is a directory", abs))
			}
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return "", WrapError(ErrInvalidPath, err)
			}
			return resolved, nil
		} else if !os.IsNotExist(err) {
			return "", WrapError(ErrInvalidPath, err)
		}
		if opts.Flags&ReadOnly != 0 {
			return "", WrapError(ErrInvalidPath, fmt.Errorf("%s does not exist", abs))
		}
		dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
		if err != nil {
			return "", WrapError(ErrInvalidPath, err)
		}
		return filepath.Join(dir, filepath.Base(abs)), nil
	}

	fi, err := os.Stat(abs)
	switch {
	case err == nil && !fi.IsDir():
		return "", WrapError(ErrInvalidPath, fmt.Errorf("%s is not a directory", abs))
	case os.IsNotExist(err):
		if opts.Flags&ReadOnly != 0 {
			return "", WrapError(ErrInvalidPath, fmt.Errorf("%s does not exist", abs))
		}
		if err := os.MkdirAll(abs, opts.Mode|0o700); err != nil {
			return "", WrapError(ErrInvalidPath, err)
		}
	case err != nil:
		return "", WrapError(ErrInvalidPath, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", WrapError(ErrInvalidPath, err)
	}
	return resolved, nil
}
