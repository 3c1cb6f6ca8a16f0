// Package pebble registers the Pebble engine driver.
//
// Pebble is a flat LSM keyspace, so namespaces are carved out of it with
// fixed-width prefixes: a catalog maps names to 4-byte ids and every data key
// is stored as dataTag|id|key. Read transactions are snapshots; write
// transactions are indexed batches, which read their own writes.
package pebble

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btclog/v2"
	"github.com/cockroachdb/pebble/v2"

	"github.com/Giulio2002/tdbx/internal/engine"
	"github.com/Giulio2002/tdbx/internal/keys"
)

// Name is the driver name used in tdbx.EnvOptions.Engine.
const Name = "pebble"

const (
	metaTag byte = 0x00
	dataTag byte = 0x01

	idSize = 4
)

var (
	catalogPrefix = []byte{metaTag, 'c'}
	seqKey        = []byte{metaTag, 's'}
)

func init() {
	engine.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return Name }

func (driver) Features() engine.Features {
	return engine.Features{}
}

func (driver) Open(cfg engine.Config) (engine.Env, error) {
	log := cfg.Logger
	if log == nil {
		log = btclog.Disabled
	}
	if cfg.Flags.Has(engine.NoSubdir) {
		return nil, engine.Wrap(engine.ErrIncompatible, errors.New("pebble: NoSubdir"))
	}

	readOnly := cfg.Flags.Has(engine.ReadOnly)
	db, err := pebble.Open(cfg.Path, &pebble.Options{
		ReadOnly: readOnly,
		Logger:   logAdapter{log},
	})
	if err != nil {
		return nil, mapError(err)
	}
	log.Debugf("pebble: opened %s", cfg.Path)

	writeOpts := pebble.Sync
	if cfg.Flags.Has(engine.NoSync) {
		writeOpts = pebble.NoSync
	}
	return &Env{
		db:        db,
		writeOpts: writeOpts,
		maxDBs:    cfg.MaxDBs,
		readOnly:  readOnly,
	}, nil
}

// Env is an open Pebble store.
type Env struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	maxDBs    int
	readOnly  bool
}

func (e *Env) BeginTxn(parent engine.Txn, readOnly bool) (engine.Txn, error) {
	if parent != nil {
		return nil, engine.Wrap(engine.ErrIncompatible, errors.New("pebble: nested transactions"))
	}
	if readOnly {
		return &Txn{env: e, snap: e.db.NewSnapshot()}, nil
	}
	if e.readOnly {
		return nil, engine.Wrap(engine.ErrReadOnly, errors.New("pebble: write transaction"))
	}
	return &Txn{env: e, batch: e.db.NewIndexedBatch()}, nil
}

func (e *Env) Sync(bool) error {
	if e.readOnly {
		return nil
	}
	return mapError(e.db.Flush())
}

func (e *Env) Close() error {
	return mapError(e.db.Close())
}

// reader is the read surface shared by snapshots and indexed batches.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// Txn is a snapshot (read) or an indexed batch (write).
type Txn struct {
	env   *Env
	snap  *pebble.Snapshot
	batch *pebble.Batch

	// gen counts mutations; batch iterators are refreshed when it moves.
	gen uint64
}

func (t *Txn) reader() reader {
	if t.batch != nil {
		return t.batch
	}
	return t.snap
}

func (t *Txn) get(key []byte) ([]byte, error) {
	v, closer, err := t.reader().Get(key)
	if err != nil {
		return nil, mapError(err)
	}
	out := bytes.Clone(v)
	if out == nil {
		out = []byte{}
	}
	return out, closer.Close()
}

func (t *Txn) set(key, value []byte) error {
	if t.batch == nil {
		return engine.Wrap(engine.ErrReadOnly, errors.New("pebble: write in snapshot"))
	}
	if err := t.batch.Set(key, value, nil); err != nil {
		return mapError(err)
	}
	t.gen++
	return nil
}

func (t *Txn) delete(key []byte) error {
	if t.batch == nil {
		return engine.Wrap(engine.ErrReadOnly, errors.New("pebble: write in snapshot"))
	}
	if err := t.batch.Delete(key, nil); err != nil {
		return mapError(err)
	}
	t.gen++
	return nil
}

func catalogKey(name string) []byte {
	return append(bytes.Clone(catalogPrefix), name...)
}

func nsPrefix(dbi engine.DBI) []byte {
	p := make([]byte, 1+idSize)
	p[0] = dataTag
	binary.BigEndian.PutUint32(p[1:], uint32(dbi))
	return p
}

func dataKey(dbi engine.DBI, key []byte) []byte {
	return append(nsPrefix(dbi), key...)
}

// scan visits every key under prefix in order.
func (t *Txn) scan(prefix []byte, fn func(k, v []byte) error) error {
	iter, err := t.reader().NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keys.UpperBound(prefix),
	})
	if err != nil {
		return mapError(err)
	}
	for valid := iter.First(); valid; valid = iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			iter.Close()
			return err
		}
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return mapError(err)
	}
	return mapError(iter.Close())
}

func (t *Txn) OpenDB(name string, create bool) (engine.DBI, error) {
	if name == "" {
		return 0, nil
	}
	v, err := t.get(catalogKey(name))
	switch {
	case err == nil:
		if len(v) != idSize {
			return 0, engine.Wrap(engine.ErrCorrupted, fmt.Errorf("pebble: catalog entry %q", name))
		}
		return engine.DBI(binary.BigEndian.Uint32(v)), nil
	case !errors.Is(err, engine.ErrNotFound):
		return 0, err
	case !create:
		return 0, engine.Wrap(engine.ErrNotFound, fmt.Errorf("pebble: namespace %q", name))
	case t.batch == nil:
		return 0, engine.Wrap(engine.ErrReadOnly, fmt.Errorf("pebble: create %q", name))
	}

	names, err := t.ListDBs()
	if err != nil {
		return 0, err
	}
	if len(names) >= t.env.maxDBs {
		return 0, engine.Wrap(engine.ErrDBsFull, fmt.Errorf("pebble: %d namespaces", len(names)))
	}

	next := uint32(1)
	if seq, err := t.get(seqKey); err == nil && len(seq) == idSize {
		next = binary.BigEndian.Uint32(seq)
	} else if err != nil && !errors.Is(err, engine.ErrNotFound) {
		return 0, err
	}

	id := make([]byte, idSize)
	binary.BigEndian.PutUint32(id, next)
	if err := t.set(catalogKey(name), id); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint32(id, next+1)
	if err := t.set(seqKey, id); err != nil {
		return 0, err
	}
	return engine.DBI(next), nil
}

func (t *Txn) ListDBs() ([]string, error) {
	var names []string
	err := t.scan(catalogPrefix, func(k, _ []byte) error {
		names = append(names, string(k[len(catalogPrefix):]))
		return nil
	})
	return names, err
}

func (t *Txn) Get(dbi engine.DBI, key []byte) ([]byte, error) {
	return t.get(dataKey(dbi, key))
}

func (t *Txn) Put(dbi engine.DBI, key, value []byte, flags engine.PutFlags) error {
	k := dataKey(dbi, key)
	if flags&engine.NoOverwrite != 0 {
		if _, err := t.get(k); err == nil {
			return engine.ErrKeyExist
		}
	}
	return t.set(k, value)
}

func (t *Txn) Del(dbi engine.DBI, key []byte) error {
	k := dataKey(dbi, key)
	if _, err := t.get(k); err != nil {
		return err
	}
	return t.delete(k)
}

func (t *Txn) Drop(dbi engine.DBI, del bool) error {
	if t.batch == nil {
		return engine.Wrap(engine.ErrReadOnly, errors.New("pebble: drop in snapshot"))
	}
	prefix := nsPrefix(dbi)
	if err := t.batch.DeleteRange(prefix, keys.UpperBound(prefix), nil); err != nil {
		return mapError(err)
	}
	t.gen++
	if !del || dbi == 0 {
		return nil
	}

	var name []byte
	err := t.scan(catalogPrefix, func(k, v []byte) error {
		if len(v) == idSize && engine.DBI(binary.BigEndian.Uint32(v)) == dbi {
			name = bytes.Clone(k)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if name == nil {
		return nil
	}
	return t.delete(name)
}

func (t *Txn) Entries(dbi engine.DBI) (uint64, error) {
	var n uint64
	err := t.scan(nsPrefix(dbi), func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

func (t *Txn) OpenCursor(dbi engine.DBI) (engine.Cursor, error) {
	prefix := nsPrefix(dbi)
	c := &Cursor{
		txn:    t,
		prefix: prefix,
		opts: pebble.IterOptions{
			LowerBound: prefix,
			UpperBound: keys.UpperBound(prefix),
		},
		gen: t.gen,
	}
	iter, err := t.reader().NewIter(&c.opts)
	if err != nil {
		return nil, mapError(err)
	}
	c.iter = iter
	return c, nil
}

func (t *Txn) Commit() error {
	if t.batch == nil {
		return mapError(t.snap.Close())
	}
	defer t.batch.Close()
	return mapError(t.batch.Commit(t.env.writeOpts))
}

func (t *Txn) Abort() {
	if t.batch == nil {
		_ = t.snap.Close()
		return
	}
	_ = t.batch.Close()
}

// Cursor walks one namespace with a bounded Pebble iterator.
type Cursor struct {
	txn    *Txn
	prefix []byte
	iter   *pebble.Iterator
	opts   pebble.IterOptions
	key    []byte
	gen    uint64

	// detached is set when the iterator no longer sits on key.
	detached bool
}

// refresh makes a batch iterator observe writes made since it was last
// positioned. The iterator is left unpositioned.
func (c *Cursor) refresh() bool {
	if c.gen == c.txn.gen {
		return false
	}
	c.iter.SetOptions(&c.opts)
	c.gen = c.txn.gen
	return true
}

func (c *Cursor) full(key []byte) []byte {
	return append(bytes.Clone(c.prefix), key...)
}

func (c *Cursor) Get(key []byte, op engine.Op) ([]byte, []byte, error) {
	refreshed := c.refresh()
	if c.detached {
		refreshed, c.detached = true, false
	}

	var valid bool
	switch op {
	case engine.First:
		valid = c.iter.First()
	case engine.Last:
		valid = c.iter.Last()
	case engine.Next:
		if c.key == nil {
			return nil, nil, engine.ErrNotFound
		}
		if refreshed {
			valid = c.iter.SeekGE(c.full(c.key))
			if valid && bytes.Equal(c.iter.Key()[len(c.prefix):], c.key) {
				valid = c.iter.Next()
			}
		} else {
			valid = c.iter.Next()
		}
	case engine.Prev:
		if c.key == nil {
			return nil, nil, engine.ErrNotFound
		}
		if refreshed {
			valid = c.iter.SeekLT(c.full(c.key))
		} else {
			valid = c.iter.Prev()
		}
	case engine.Current:
		if c.key == nil {
			return nil, nil, engine.ErrNotFound
		}
		valid = c.iter.SeekGE(c.full(c.key)) &&
			bytes.Equal(c.iter.Key()[len(c.prefix):], c.key)
		if !valid {
			c.detached = true
			return nil, nil, engine.ErrNotFound
		}
	case engine.Set:
		valid = c.iter.SeekGE(c.full(key)) &&
			bytes.Equal(c.iter.Key()[len(c.prefix):], key)
	case engine.SetRange:
		valid = c.iter.SeekGE(c.full(key))
	default:
		return nil, nil, engine.Wrap(engine.ErrIncompatible, fmt.Errorf("cursor op %d", op))
	}

	if !valid {
		if err := c.iter.Error(); err != nil {
			return nil, nil, mapError(err)
		}
		c.key = nil
		return nil, nil, engine.ErrNotFound
	}
	// Iterator memory is only valid until the next move.
	c.key = bytes.Clone(c.iter.Key()[len(c.prefix):])
	v := bytes.Clone(c.iter.Value())
	if v == nil {
		v = []byte{}
	}
	return bytes.Clone(c.key), v, nil
}

func (c *Cursor) Put(key, value []byte, flags engine.PutFlags) error {
	if flags&engine.CurrentKey != 0 && !bytes.Equal(key, c.key) {
		return engine.Wrap(engine.ErrKeyMismatch, errors.New("pebble: key differs from cursor position"))
	}
	return c.txn.set(c.full(key), value)
}

func (c *Cursor) Del() error {
	if c.key == nil {
		return engine.ErrNotFound
	}
	return c.txn.delete(c.full(c.key))
}

func (c *Cursor) Close() {
	_ = c.iter.Close()
}

// mapError tags Pebble errors with engine sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pebble.ErrNotFound):
		return engine.Wrap(engine.ErrNotFound, err)
	case errors.Is(err, pebble.ErrReadOnly):
		return engine.Wrap(engine.ErrReadOnly, err)
	case errors.Is(err, os.ErrPermission):
		return engine.Wrap(engine.ErrReadOnly, err)
	case engine.IsDiskFull(err):
		return engine.Wrap(engine.ErrDiskFull, err)
	}
	return err
}

// logAdapter routes Pebble's internal logging into btclog.
type logAdapter struct {
	log btclog.Logger
}

func (l logAdapter) Infof(format string, args ...interface{}) {
	l.log.Debugf("pebble: "+format, args...)
}

func (l logAdapter) Errorf(format string, args ...interface{}) {
	l.log.Errorf("pebble: "+format, args...)
}

func (l logAdapter) Fatalf(format string, args ...interface{}) {
	l.log.Criticalf("pebble: "+format, args...)
	os.Exit(1)
}
