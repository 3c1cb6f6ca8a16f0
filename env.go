package tdbx

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/Giulio2002/tdbx/internal/engine"
)

// envSignature is the magic number for valid environments
const envSignature uint32 = 0x54445645 // "TDVE"

// Env is an open storage environment: one data file (or directory) shared
// by every transaction in the process.
//
// Open the same path twice and you get the same *Env back, reference
// counted. Each Open must be paired with a Close; the engine is shut down
// when the last reference is closed and every transaction has finished.
type Env struct {
	signature uint32
	path      string
	driver    engine.Driver
	flags     uint
	handle    *engineHandle

	// writer is the single write slot.
	writer *semaphore.Weighted

	mu       sync.Mutex
	cond     *sync.Cond // signalled when active drops to zero or a resize ends
	opts     EnvOptions
	refs     int
	active   int // live top-level transactions
	readers  int // live read transactions
	writing  bool
	closing  bool
	resizing bool

	txnSeq  atomic.Uint64
	cleanup runtime.Cleanup
}

// EnvInfo is a snapshot of environment state.
type EnvInfo struct {
	Path    string
	Engine  string
	Options EnvOptions

	// Refs is the number of unclosed Open calls.
	Refs int

	// Readers is the number of live read transactions.
	Readers int

	// Writing reports whether a write transaction is live.
	Writing bool
}

// Open opens the environment at path, creating it unless ReadOnly is set.
//
// If path is already open in this process with the same normalized options
// the existing Env is returned and its reference count incremented. Options
// that differ fail with ErrAlreadyOpenWithDifferentConfig.
func Open(path string, opts EnvOptions) (*Env, error) {
	opts, drv, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	canon, err := canonicalPath(path, opts)
	if err != nil {
		return nil, err
	}

	registry.Lock()
	defer registry.Unlock()

	if e := lookupEnv(canon); e != nil {
		return e, e.retain(opts)
	}

	raw, err := drv.Open(opts.engineConfig(canon))
	if err != nil {
		log.Errorf("Opening %s environment at %s: %v", opts.Engine, canon, err)
		return nil, wrapEngine(err)
	}

	e := &Env{
		signature: envSignature,
		path:      canon,
		driver:    drv,
		flags:     opts.Flags,
		handle:    &engineHandle{path: canon, env: raw},
		writer:    semaphore.NewWeighted(1),
		opts:      opts,
		refs:      1,
	}
	e.cond = sync.NewCond(&e.mu)
	e.cleanup = runtime.AddCleanup(e, reclaim, e.handle)
	registerEnv(e)

	log.Infof("Opened %s environment at %s (map size %d, max dbs %d, max readers %d)",
		opts.Engine, canon, opts.MapSize, opts.MaxDBs, opts.MaxReaders)
	return e, nil
}

// retain takes another reference for a repeated Open.
func (e *Env) retain(opts EnvOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closing || e.refs == 0 {
		return NewError(ErrEnvClosed)
	}
	if e.opts != opts {
		return WrapError(ErrAlreadyOpenWithDifferentConfig, fmt.Errorf("%s", e.path))
	}
	e.refs++
	log.Debugf("Reusing environment %s (refs=%d)", e.path, e.refs)
	return nil
}

// valid returns true if the environment is valid.
func (e *Env) valid() bool {
	return e != nil && e.signature == envSignature
}

// Close releases one reference. The last Close waits for live transactions
// to finish and then shuts the engine down. Closing more often than opening
// returns ErrEnvClosed.
func (e *Env) Close() error {
	if !e.valid() {
		return NewError(ErrEnvClosed)
	}

	registry.Lock()
	e.mu.Lock()
	if e.refs == 0 {
		e.mu.Unlock()
		registry.Unlock()
		return NewError(ErrEnvClosed)
	}
	e.refs--
	if e.refs > 0 {
		e.mu.Unlock()
		registry.Unlock()
		return nil
	}
	e.closing = true
	unregisterEnv(e)
	registry.Unlock()

	for e.active > 0 {
		e.cond.Wait()
	}
	e.cleanup.Stop()
	err := e.handle.close()
	e.mu.Unlock()

	if err != nil {
		log.Errorf("Closing environment %s: %v", e.path, err)
		return wrapEngine(err)
	}
	log.Infof("Closed environment %s", e.path)
	return nil
}

// Path returns the canonical path of the environment.
func (e *Env) Path() string {
	return e.path
}

// Engine returns the driver name.
func (e *Env) Engine() string {
	return e.driver.Name()
}

// Options returns the normalized options the environment was opened with.
func (e *Env) Options() EnvOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// Info returns a snapshot of the environment state.
func (e *Env) Info() EnvInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EnvInfo{
		Path:    e.path,
		Engine:  e.driver.Name(),
		Options: e.opts,
		Refs:    e.refs,
		Readers: e.readers,
		Writing: e.writing,
	}
}

// Sync flushes committed data to disk. It is only needed with NoSync or
// MapAsync.
func (e *Env) Sync(force bool) error {
	raw, err := e.enter(false, false)
	if err != nil {
		return err
	}
	defer e.leave(false, false)
	return wrapEngine(raw.Sync(force))
}

// BeginTxn starts a transaction (mdbx-style entry point). A non-nil parent
// starts a nested write transaction; TxnReadOnly starts a read transaction
// and TxnTry a non-blocking write transaction.
func (e *Env) BeginTxn(parent *Txn, flags uint) (*Txn, error) {
	if parent != nil {
		if parent.env != e {
			return nil, NewError(ErrEnvMismatch)
		}
		return parent.BeginNested()
	}
	switch {
	case flags&TxnReadOnly != 0:
		return e.BeginRead()
	case flags&TxnTry != 0:
		return e.TryBeginWrite()
	}
	return e.BeginWrite()
}

// BeginRead starts a read transaction on the latest committed snapshot.
// It fails with ErrReadersFull once MaxReaders transactions are live.
func (e *Env) BeginRead() (*Txn, error) {
	if !e.valid() {
		return nil, NewError(ErrEnvClosed)
	}
	raw, err := e.enter(true, true)
	if err != nil {
		return nil, err
	}
	rtx, err := raw.BeginTxn(nil, true)
	if err != nil {
		e.leave(true, true)
		return nil, wrapEngine(err)
	}
	return e.newTxn(nil, rtx, true), nil
}

// BeginWrite starts the write transaction, waiting until the write slot is
// free. With TryWrite set on the environment it fails immediately instead.
func (e *Env) BeginWrite() (*Txn, error) {
	if e.valid() && e.flags&TryWrite != 0 {
		return e.TryBeginWrite()
	}
	return e.BeginWriteContext(context.Background())
}

// BeginWriteContext is BeginWrite with a deadline on the wait for the write
// slot. A cancelled wait fails with ErrWriteTxnAlreadyActive wrapping the
// context error.
func (e *Env) BeginWriteContext(ctx context.Context) (*Txn, error) {
	if err := e.writable(); err != nil {
		return nil, err
	}
	if err := e.writer.Acquire(ctx, 1); err != nil {
		return nil, WrapError(ErrWriteTxnAlreadyActive, err)
	}
	return e.beginWrite()
}

// TryBeginWrite starts the write transaction or fails with
// ErrWriteTxnAlreadyActive if another one is live.
func (e *Env) TryBeginWrite() (*Txn, error) {
	if err := e.writable(); err != nil {
		return nil, err
	}
	if !e.writer.TryAcquire(1) {
		return nil, NewError(ErrWriteTxnAlreadyActive)
	}
	return e.beginWrite()
}

func (e *Env) writable() error {
	if !e.valid() {
		return NewError(ErrEnvClosed)
	}
	if e.flags&ReadOnly != 0 {
		return NewError(ErrReadOnly)
	}
	return nil
}

// beginWrite starts the write transaction. The caller holds the write slot.
func (e *Env) beginWrite() (*Txn, error) {
	raw, err := e.enter(false, true)
	if err != nil {
		e.writer.Release(1)
		return nil, err
	}
	wtx, err := raw.BeginTxn(nil, false)
	if err != nil {
		e.leave(false, true)
		e.writer.Release(1)
		return nil, wrapEngine(err)
	}
	e.mu.Lock()
	e.writing = true
	e.mu.Unlock()
	return e.newTxn(nil, wtx, false), nil
}

// enter registers a live operation and returns the engine environment.
// Transactions (txn set) also count towards active, which Close and Resize
// wait on.
func (e *Env) enter(read, txn bool) (engine.Env, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.resizing {
		e.cond.Wait()
	}
	if e.closing || e.refs == 0 {
		return nil, NewError(ErrEnvClosed)
	}
	if read && e.readers >= e.opts.MaxReaders {
		log.Warnf("Reader slots exhausted on %s (%d live)", e.path, e.readers)
		return nil, WrapError(ErrReadersFull, fmt.Errorf("%d readers live", e.readers))
	}
	raw := e.handle.get()
	if raw == nil {
		return nil, NewError(ErrEnvClosed)
	}
	if txn {
		e.active++
		if read {
			e.readers++
		}
	}
	return raw, nil
}

func (e *Env) leave(read, txn bool) {
	if !txn {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active--
	if read {
		e.readers--
	} else {
		e.writing = false
	}
	if e.active == 0 {
		e.cond.Broadcast()
	}
}

// Resize changes the map size. It takes the write slot, waits for every
// read transaction to finish, and reopens the engine with the new size.
// New transactions block until the resize is done.
func (e *Env) Resize(mapSize int64) error {
	if err := e.writable(); err != nil {
		return err
	}
	opts := e.Options()
	opts.MapSize = mapSize
	opts, _, err := opts.normalize()
	if err != nil {
		return err
	}

	if err := e.writer.Acquire(context.Background(), 1); err != nil {
		return WrapError(ErrWriteTxnAlreadyActive, err)
	}
	defer e.writer.Release(1)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closing || e.refs == 0 {
		return NewError(ErrEnvClosed)
	}
	e.resizing = true
	defer func() {
		e.resizing = false
		e.cond.Broadcast()
	}()
	for e.active > 0 {
		e.cond.Wait()
	}

	if err := e.handle.close(); err != nil {
		return wrapEngine(err)
	}
	raw, err := e.driver.Open(opts.engineConfig(e.path))
	if err != nil {
		log.Errorf("Resizing %s to %d bytes: %v", e.path, opts.MapSize, err)
		// Put the previous configuration back so the Env stays usable.
		prev, rerr := e.driver.Open(e.opts.engineConfig(e.path))
		if rerr != nil {
			e.closing = true
			return wrapEngine(fmt.Errorf("%w (reopen: %v)", err, rerr))
		}
		e.handle.set(prev)
		return wrapEngine(err)
	}
	e.handle.set(raw)
	e.opts = opts

	log.Infof("Resized %s map to %d bytes", e.path, opts.MapSize)
	return nil
}

// Engines returns the names of the registered storage drivers.
func Engines() []string {
	return engine.Drivers()
}
