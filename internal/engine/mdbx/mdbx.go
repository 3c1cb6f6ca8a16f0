//go:build cgo

// Package mdbx registers the libmdbx engine driver, backed by
// github.com/erigontech/mdbx-go.
//
// libmdbx binds write transactions, and read transactions opened without
// NoTLS, to the OS thread that started them. The driver pins the calling
// goroutine to its thread for the lifetime of such transactions, so they
// must be finished on the goroutine that began them.
package mdbx

import (
	"bytes"
	"fmt"
	"runtime"
	"syscall"

	"github.com/btcsuite/btclog/v2"
	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/Giulio2002/tdbx/internal/engine"
)

// Name is the driver name used in tdbx.EnvOptions.Engine.
const Name = "mdbx"

// DefaultTable holds the default namespace. The main tree only holds table
// records, so the default namespace never shows other tables' metadata.
const DefaultTable = "__tdbx_default"

func init() {
	engine.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return Name }

func (driver) Features() engine.Features {
	return engine.Features{
		NestedTxns:   true,
		MapSizeLimit: true,
		NoSubdir:     true,
	}
}

func (driver) Open(cfg engine.Config) (engine.Env, error) {
	log := cfg.Logger
	if log == nil {
		log = btclog.Disabled
	}

	env, err := mdbx.NewEnv(mdbx.Label("tdbx"))
	if err != nil {
		return nil, mapError(err)
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(cfg.MaxDBs+1)); err != nil {
		env.Close()
		return nil, mapError(err)
	}
	if err := env.SetOption(mdbx.OptMaxReaders, uint64(cfg.MaxReaders)); err != nil {
		env.Close()
		return nil, mapError(err)
	}
	if err := env.SetGeometry(-1, -1, int(cfg.MapSize), -1, -1, -1); err != nil {
		env.Close()
		return nil, mapError(err)
	}

	flags := openFlags(cfg.Flags)
	if err := env.Open(cfg.Path, flags, cfg.Mode); err != nil {
		env.Close()
		return nil, mapError(err)
	}
	if !cfg.Flags.Has(engine.ReadOnly) {
		if err := createDefault(env); err != nil {
			env.Close()
			return nil, err
		}
	}
	log.Debugf("mdbx: opened %s (flags=%#x, map=%d)", cfg.Path, flags, cfg.MapSize)

	return &Env{
		env:   env,
		noTLS: cfg.Flags.Has(engine.NoTLS),
	}, nil
}

func createDefault(env *mdbx.Env) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := env.BeginTxn(nil, 0)
	if err != nil {
		return mapError(err)
	}
	if _, err := txn.OpenDBI(DefaultTable, mdbx.Create, nil, nil); err != nil {
		txn.Abort()
		return mapError(err)
	}
	if _, err := txn.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// openFlags translates engine flags into mdbx environment flags.
func openFlags(f engine.Flags) uint {
	var flags uint
	if f.Has(engine.NoSubdir) {
		flags |= mdbx.NoSubdir
	}
	if f.Has(engine.ReadOnly) {
		flags |= mdbx.Readonly
	}
	if f.Has(engine.NoSync) || f.Has(engine.MapAsync) {
		flags |= mdbx.SafeNoSync
	}
	if f.Has(engine.NoMetaSync) {
		flags |= mdbx.NoMetaSync
	}
	if f.Has(engine.NoTLS) {
		flags |= mdbx.NoTLS
	}
	if f.Has(engine.NoLock) {
		flags |= mdbx.Exclusive
	}
	if f.Has(engine.WriteMap) {
		flags |= mdbx.WriteMap
	}
	return flags
}

// Env is an open libmdbx environment.
type Env struct {
	env   *mdbx.Env
	noTLS bool
}

func (e *Env) BeginTxn(parent engine.Txn, readOnly bool) (engine.Txn, error) {
	var ptxn *mdbx.Txn
	if parent != nil {
		p, ok := parent.(*Txn)
		if !ok {
			return nil, engine.Wrap(engine.ErrIncompatible,
				fmt.Errorf("parent transaction %T", parent))
		}
		ptxn = p.txn
	}

	var flags uint
	if readOnly {
		flags = mdbx.Readonly
	}

	// Nested transactions run on the thread their parent already pinned.
	pin := parent == nil && (!readOnly || !e.noTLS)
	if pin {
		runtime.LockOSThread()
	}
	txn, err := e.env.BeginTxn(ptxn, flags)
	if err != nil {
		if pin {
			runtime.UnlockOSThread()
		}
		return nil, mapError(err)
	}
	return &Txn{txn: txn, pinned: pin}, nil
}

func (e *Env) Sync(force bool) error {
	return mapError(e.env.Sync(force, false))
}

func (e *Env) Close() error {
	e.env.Close()
	return nil
}

// Txn is a libmdbx transaction.
type Txn struct {
	txn    *mdbx.Txn
	pinned bool
}

func (t *Txn) OpenDB(name string, create bool) (engine.DBI, error) {
	switch name {
	case "":
		name = DefaultTable
	case DefaultTable:
		return 0, engine.Wrap(engine.ErrInvalid, fmt.Errorf("database name %q is reserved", name))
	}
	var flags uint
	if create {
		flags = mdbx.Create
	}
	dbi, err := t.txn.OpenDBI(name, flags, nil, nil)
	if err != nil {
		return 0, mapError(err)
	}
	return engine.DBI(dbi), nil
}

// ListDBs walks the main tree, which holds one record per table.
func (t *Txn) ListDBs() ([]string, error) {
	root, err := t.txn.OpenRoot(0)
	if err != nil {
		return nil, mapError(err)
	}
	cur, err := t.txn.OpenCursor(root)
	if err != nil {
		return nil, mapError(err)
	}
	defer cur.Close()

	var names []string
	for k, _, err := cur.Get(nil, nil, mdbx.First); ; k, _, err = cur.Get(nil, nil, mdbx.Next) {
		if mdbx.IsNotFound(err) {
			return names, nil
		}
		if err != nil {
			return nil, mapError(err)
		}
		if name := string(k); name != DefaultTable {
			names = append(names, name)
		}
	}
}

func (t *Txn) Get(dbi engine.DBI, key []byte) ([]byte, error) {
	v, err := t.txn.Get(mdbx.DBI(dbi), key)
	if err != nil {
		return nil, mapError(err)
	}
	return v, nil
}

func (t *Txn) Put(dbi engine.DBI, key, value []byte, flags engine.PutFlags) error {
	return mapError(t.txn.Put(mdbx.DBI(dbi), key, value, putFlags(flags)))
}

func (t *Txn) Del(dbi engine.DBI, key []byte) error {
	return mapError(t.txn.Del(mdbx.DBI(dbi), key, nil))
}

func (t *Txn) Drop(dbi engine.DBI, del bool) error {
	return mapError(t.txn.Drop(mdbx.DBI(dbi), del))
}

func (t *Txn) Entries(dbi engine.DBI) (uint64, error) {
	st, err := t.txn.StatDBI(mdbx.DBI(dbi))
	if err != nil {
		return 0, mapError(err)
	}
	return st.Entries, nil
}

func (t *Txn) OpenCursor(dbi engine.DBI) (engine.Cursor, error) {
	cur, err := t.txn.OpenCursor(mdbx.DBI(dbi))
	if err != nil {
		return nil, mapError(err)
	}
	return &Cursor{cur: cur}, nil
}

func (t *Txn) Commit() error {
	defer t.unpin()
	_, err := t.txn.Commit()
	return mapError(err)
}

func (t *Txn) Abort() {
	defer t.unpin()
	t.txn.Abort()
}

func (t *Txn) unpin() {
	if t.pinned {
		t.pinned = false
		runtime.UnlockOSThread()
	}
}

// Cursor is a libmdbx cursor.
type Cursor struct {
	cur *mdbx.Cursor
}

var cursorOps = [...]uint{
	engine.First:    mdbx.First,
	engine.Last:     mdbx.Last,
	engine.Next:     mdbx.Next,
	engine.Prev:     mdbx.Prev,
	engine.Current:  mdbx.GetCurrent,
	engine.Set:      mdbx.SetKey,
	engine.SetRange: mdbx.SetRange,
}

func (c *Cursor) Get(key []byte, op engine.Op) ([]byte, []byte, error) {
	if int(op) >= len(cursorOps) {
		return nil, nil, engine.Wrap(engine.ErrIncompatible, fmt.Errorf("cursor op %d", op))
	}
	k, v, err := c.cur.Get(key, nil, cursorOps[op])
	if err != nil {
		return nil, nil, mapError(err)
	}
	return k, v, nil
}

func (c *Cursor) Put(key, value []byte, flags engine.PutFlags) error {
	// A key read from this cursor points into the page being rewritten.
	if flags&engine.CurrentKey != 0 {
		key = bytes.Clone(key)
	}
	return mapError(c.cur.Put(key, value, putFlags(flags)))
}

func (c *Cursor) Del() error {
	return mapError(c.cur.Del(0))
}

func (c *Cursor) Close() {
	c.cur.Close()
}

func putFlags(f engine.PutFlags) uint {
	var flags uint
	if f&engine.NoOverwrite != 0 {
		flags |= mdbx.NoOverwrite
	}
	if f&engine.CurrentKey != 0 {
		flags |= mdbx.Current
	}
	if f&engine.Append != 0 {
		flags |= mdbx.Append
	}
	return flags
}

// mapError tags libmdbx errors with engine sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case mdbx.IsNotFound(err):
		return engine.Wrap(engine.ErrNotFound, err)
	case mdbx.IsErrno(err, mdbx.KeyExist):
		return engine.Wrap(engine.ErrKeyExist, err)
	case mdbx.IsErrno(err, mdbx.MapFull):
		return engine.Wrap(engine.ErrMapFull, err)
	case mdbx.IsErrno(err, mdbx.ReadersFull):
		return engine.Wrap(engine.ErrReadersFull, err)
	case mdbx.IsErrno(err, mdbx.DBsFull):
		return engine.Wrap(engine.ErrDBsFull, err)
	case mdbx.IsErrno(err, mdbx.VersionMismatch):
		return engine.Wrap(engine.ErrVersionMismatch, err)
	case mdbx.IsErrno(err, mdbx.Invalid):
		return engine.Wrap(engine.ErrInvalid, err)
	case mdbx.IsErrno(err, mdbx.Corrupted), mdbx.IsErrno(err, mdbx.PageNotFound):
		return engine.Wrap(engine.ErrCorrupted, err)
	case mdbx.IsErrno(err, mdbx.Incompatible):
		return engine.Wrap(engine.ErrIncompatible, err)
	case mdbx.IsErrno(err, mdbx.BadValSize):
		return engine.Wrap(engine.ErrBadValSize, err)
	case mdbx.IsErrnoSys(err, syscall.ENOSPC):
		return engine.Wrap(engine.ErrDiskFull, err)
	case mdbx.IsErrnoSys(err, syscall.EACCES), mdbx.IsErrnoSys(err, syscall.EROFS):
		return engine.Wrap(engine.ErrReadOnly, err)
	case mdbx.IsErrnoSys(err, syscall.EBUSY), mdbx.IsErrnoSys(err, syscall.EAGAIN):
		return engine.Wrap(engine.ErrBusy, err)
	}
	return err
}
