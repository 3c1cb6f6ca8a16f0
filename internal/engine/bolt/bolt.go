// Package bolt registers the bbolt engine driver.
//
// Namespaces are top-level buckets. The default namespace lives in a
// reserved bucket whose name cannot be chosen by callers. bbolt has no map
// limit of its own; the configured map size is checked against an upper
// bound of the data size at commit. The mapping is opened at twice the map
// size so a commit that passes the check never remaps behind open readers.
package bolt

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btclog/v2"
	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/Giulio2002/tdbx/internal/engine"
	"github.com/Giulio2002/tdbx/internal/fastmap"
)

const (
	// Name is the driver name used in tdbx.EnvOptions.Engine.
	Name = "bolt"

	// DataFileName is the data file inside an environment directory.
	DataFileName = "data.db"

	// DefaultLockTimeout bounds the wait for the file lock held by another
	// process.
	DefaultLockTimeout = 5 * time.Second
)

// defaultBucket holds the default namespace.
var defaultBucket = []byte{0x00}

// Commit-size estimate. bbolt splits leaves half full and prefixes every
// entry with a 16-byte element header. Each touched bucket dirties its
// branch path, and every commit rewrites the freelist.
const (
	leafElementSize = 16
	leafFill        = 2
	pagesPerBucket  = 2
	pagesPerCommit  = 2
)

func init() {
	engine.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return Name }

func (driver) Features() engine.Features {
	return engine.Features{
		MapSizeLimit: true,
		NoSubdir:     true,
	}
}

func (driver) Open(cfg engine.Config) (engine.Env, error) {
	log := cfg.Logger
	if log == nil {
		log = btclog.Disabled
	}

	path := cfg.Path
	if !cfg.Flags.Has(engine.NoSubdir) {
		path = filepath.Join(cfg.Path, DataFileName)
	}
	if cfg.Flags.Has(engine.NoLock) || cfg.Flags.Has(engine.WriteMap) {
		log.Debugf("bolt: NoLock and WriteMap have no bbolt equivalent, ignoring")
	}

	readOnly := cfg.Flags.Has(engine.ReadOnly)
	db, err := bolt.Open(path, cfg.Mode, &bolt.Options{
		Timeout:         DefaultLockTimeout,
		NoSync:          cfg.Flags.Has(engine.NoSync),
		NoGrowSync:      cfg.Flags.Has(engine.MapAsync),
		NoFreelistSync:  cfg.Flags.Has(engine.NoMetaSync),
		ReadOnly:        readOnly,
		InitialMmapSize: int(2 * cfg.MapSize),
	})
	if err != nil {
		return nil, mapError(err)
	}

	if !readOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(defaultBucket)
			return err
		})
		if err != nil {
			db.Close()
			return nil, mapError(err)
		}
	}
	log.Debugf("bolt: opened %s (map=%d)", path, cfg.MapSize)

	e := &Env{
		db:      db,
		mapSize: cfg.MapSize,
		maxDBs:  cfg.MaxDBs,
		ids:     make(map[string]engine.DBI),
		nextID:  1,
	}
	e.names.Set(0, defaultBucket)
	return e, nil
}

// Env is an open bbolt database.
type Env struct {
	db      *bolt.DB
	mapSize int64
	maxDBs  int

	// DBI assignment. A name keeps its id for the life of the Env, so a
	// handle to a dropped bucket aliases a bucket later created under the
	// same name.
	mu     sync.RWMutex
	ids    map[string]engine.DBI
	names  fastmap.Uint32Map[[]byte]
	nextID engine.DBI
}

func (e *Env) dbiFor(name string) engine.DBI {
	e.mu.Lock()
	defer e.mu.Unlock()

	if dbi, ok := e.ids[name]; ok {
		return dbi
	}
	dbi := e.nextID
	e.nextID++
	e.ids[name] = dbi
	e.names.Set(uint32(dbi), []byte(name))
	return dbi
}

func (e *Env) bucketName(dbi engine.DBI) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.names.Get(uint32(dbi))
}

func (e *Env) BeginTxn(parent engine.Txn, readOnly bool) (engine.Txn, error) {
	if parent != nil {
		return nil, engine.Wrap(engine.ErrIncompatible, errors.New("bolt: nested transactions"))
	}
	tx, err := e.db.Begin(!readOnly)
	if err != nil {
		return nil, mapError(err)
	}
	return &Txn{env: e, tx: tx}, nil
}

func (e *Env) Sync(bool) error {
	return mapError(e.db.Sync())
}

func (e *Env) Close() error {
	return mapError(e.db.Close())
}

// Txn is a bbolt transaction.
type Txn struct {
	env     *Env
	tx      *bolt.Tx
	buckets fastmap.Uint32Map[*bolt.Bucket]

	// gen counts mutations so cursors know to reposition.
	gen uint64

	// pending bounds the leaf bytes this transaction adds. bbolt allocates
	// pages only while committing, so the file size alone lags behind.
	pending int64
}

func (t *Txn) bucket(dbi engine.DBI) (*bolt.Bucket, error) {
	if b, ok := t.buckets.Get(uint32(dbi)); ok {
		return b, nil
	}
	name, ok := t.env.bucketName(dbi)
	if !ok {
		return nil, engine.Wrap(engine.ErrIncompatible, fmt.Errorf("bolt: unknown dbi %d", dbi))
	}
	b := t.tx.Bucket(name)
	if b == nil {
		return nil, engine.Wrap(engine.ErrNotFound, fmt.Errorf("bolt: bucket %q", name))
	}
	t.buckets.Set(uint32(dbi), b)
	return b, nil
}

func (t *Txn) OpenDB(name string, create bool) (engine.DBI, error) {
	if name == "" {
		if t.tx.Bucket(defaultBucket) == nil && t.tx.Writable() {
			if _, err := t.tx.CreateBucket(defaultBucket); err != nil {
				return 0, mapError(err)
			}
		}
		return 0, nil
	}
	if bytes.Equal([]byte(name), defaultBucket) {
		return 0, engine.Wrap(engine.ErrIncompatible, fmt.Errorf("bolt: reserved name %q", name))
	}

	if t.tx.Bucket([]byte(name)) == nil {
		if !create {
			return 0, engine.Wrap(engine.ErrNotFound, fmt.Errorf("bolt: bucket %q", name))
		}
		if !t.tx.Writable() {
			return 0, engine.Wrap(engine.ErrReadOnly, fmt.Errorf("bolt: create %q", name))
		}
		names, err := t.ListDBs()
		if err != nil {
			return 0, err
		}
		if len(names) >= t.env.maxDBs {
			return 0, engine.Wrap(engine.ErrDBsFull, fmt.Errorf("bolt: %d buckets", len(names)))
		}
		if _, err := t.tx.CreateBucket([]byte(name)); err != nil {
			return 0, mapError(err)
		}
	}
	return t.env.dbiFor(name), nil
}

func (t *Txn) ListDBs() ([]string, error) {
	var names []string
	err := t.tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
		if !bytes.Equal(name, defaultBucket) {
			names = append(names, string(name))
		}
		return nil
	})
	return names, mapError(err)
}

func (t *Txn) Get(dbi engine.DBI, key []byte) ([]byte, error) {
	b, err := t.bucket(dbi)
	if err != nil {
		return nil, err
	}
	// Seek instead of Get so that an empty value is told apart from a
	// missing key.
	k, v := b.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return nil, engine.ErrNotFound
	}
	return v, nil
}

func (t *Txn) Put(dbi engine.DBI, key, value []byte, flags engine.PutFlags) error {
	b, err := t.bucket(dbi)
	if err != nil {
		return err
	}
	if flags&engine.NoOverwrite != 0 {
		if _, err := t.Get(dbi, key); err == nil {
			return engine.ErrKeyExist
		}
	}
	// bbolt keeps references to key and value until commit.
	if err := b.Put(bytes.Clone(key), bytes.Clone(value)); err != nil {
		return mapError(err)
	}
	t.gen++
	t.pending += leafFill * int64(leafElementSize+len(key)+len(value))
	return nil
}

func (t *Txn) Del(dbi engine.DBI, key []byte) error {
	b, err := t.bucket(dbi)
	if err != nil {
		return err
	}
	if _, err := t.Get(dbi, key); err != nil {
		return err
	}
	if err := b.Delete(key); err != nil {
		return mapError(err)
	}
	t.gen++
	return nil
}

func (t *Txn) Drop(dbi engine.DBI, del bool) error {
	name, ok := t.env.bucketName(dbi)
	if !ok {
		return engine.Wrap(engine.ErrIncompatible, fmt.Errorf("bolt: unknown dbi %d", dbi))
	}
	if err := t.tx.DeleteBucket(name); err != nil {
		return mapError(err)
	}
	t.buckets.Delete(uint32(dbi))
	t.gen++

	if del && dbi != 0 {
		return nil
	}
	b, err := t.tx.CreateBucket(name)
	if err != nil {
		return mapError(err)
	}
	t.buckets.Set(uint32(dbi), b)
	return nil
}

func (t *Txn) Entries(dbi engine.DBI) (uint64, error) {
	b, err := t.bucket(dbi)
	if err != nil {
		return 0, err
	}
	if !t.tx.Writable() {
		return uint64(b.Stats().KeyN), nil
	}
	// Stats reads committed pages only; count dirty state by walking.
	var n uint64
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n, nil
}

func (t *Txn) OpenCursor(dbi engine.DBI) (engine.Cursor, error) {
	b, err := t.bucket(dbi)
	if err != nil {
		return nil, err
	}
	return &Cursor{txn: t, dbi: dbi, cur: b.Cursor(), gen: t.gen}, nil
}

func (t *Txn) Commit() error {
	if !t.tx.Writable() {
		return mapError(t.tx.Rollback())
	}
	if size := t.commitSize(); t.env.mapSize > 0 && size > t.env.mapSize {
		_ = t.tx.Rollback()
		return engine.Wrap(engine.ErrMapFull,
			fmt.Errorf("bolt: data size %d exceeds map size %d", size, t.env.mapSize))
	}
	return mapError(t.tx.Commit())
}

// commitSize bounds the data size after this transaction commits.
func (t *Txn) commitSize() int64 {
	page := int64(t.tx.DB().Info().PageSize)
	pages := (t.pending + page - 1) / page
	pages += int64(pagesPerBucket*t.buckets.Len() + pagesPerCommit)
	return t.tx.Size() + pages*page
}

func (t *Txn) Abort() {
	_ = t.tx.Rollback()
}

// Cursor wraps a bbolt cursor. bbolt cursors must be repositioned after the
// bucket is mutated, so the cursor remembers its key and re-seeks when the
// transaction's mutation counter moved.
type Cursor struct {
	txn *Txn
	dbi engine.DBI
	cur *bolt.Cursor
	key []byte
	gen uint64

	// detached is set when cur no longer sits on key.
	detached bool
}

func (c *Cursor) stale() bool {
	return c.gen != c.txn.gen
}

// resync rebinds the cursor after a Drop replaced the bucket.
func (c *Cursor) resync() error {
	b, err := c.txn.bucket(c.dbi)
	if err != nil {
		return err
	}
	c.cur = b.Cursor()
	c.gen = c.txn.gen
	return nil
}

func (c *Cursor) Get(key []byte, op engine.Op) ([]byte, []byte, error) {
	stale := c.stale()
	if stale {
		if err := c.resync(); err != nil {
			return nil, nil, err
		}
	}
	if c.detached {
		stale, c.detached = true, false
	}

	var k, v []byte
	switch op {
	case engine.First:
		k, v = c.cur.First()
	case engine.Last:
		k, v = c.cur.Last()
	case engine.Next:
		if c.key == nil {
			return nil, nil, engine.ErrNotFound
		}
		if stale {
			k, v = c.cur.Seek(c.key)
			if k != nil && bytes.Equal(k, c.key) {
				k, v = c.cur.Next()
			}
		} else {
			k, v = c.cur.Next()
		}
	case engine.Prev:
		if c.key == nil {
			return nil, nil, engine.ErrNotFound
		}
		if stale {
			if k, _ = c.cur.Seek(c.key); k == nil {
				k, v = c.cur.Last()
			} else {
				k, v = c.cur.Prev()
			}
		} else {
			k, v = c.cur.Prev()
		}
	case engine.Current:
		if c.key == nil {
			return nil, nil, engine.ErrNotFound
		}
		k, v = c.cur.Seek(c.key)
		if k == nil || !bytes.Equal(k, c.key) {
			c.detached = true
			return nil, nil, engine.ErrNotFound
		}
	case engine.Set:
		k, v = c.cur.Seek(key)
		if k != nil && !bytes.Equal(k, key) {
			k = nil
		}
	case engine.SetRange:
		k, v = c.cur.Seek(key)
	default:
		return nil, nil, engine.Wrap(engine.ErrIncompatible, fmt.Errorf("cursor op %d", op))
	}

	if k == nil {
		if op != engine.Current {
			c.key = nil
		}
		return nil, nil, engine.ErrNotFound
	}
	c.key = bytes.Clone(k)
	return k, v, nil
}

func (c *Cursor) Put(key, value []byte, flags engine.PutFlags) error {
	if flags&engine.CurrentKey != 0 && !bytes.Equal(key, c.key) {
		return engine.Wrap(engine.ErrKeyMismatch, errors.New("bolt: key differs from cursor position"))
	}
	return c.txn.Put(c.dbi, key, value, flags&^engine.CurrentKey)
}

func (c *Cursor) Del() error {
	if c.key == nil {
		return engine.ErrNotFound
	}
	if err := c.txn.Del(c.dbi, c.key); err != nil {
		return err
	}
	return nil
}

func (c *Cursor) Close() {}

// mapError tags bbolt errors with engine sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, berrors.ErrTimeout):
		return engine.Wrap(engine.ErrBusy, err)
	case errors.Is(err, berrors.ErrVersionMismatch):
		return engine.Wrap(engine.ErrVersionMismatch, err)
	case errors.Is(err, berrors.ErrInvalid):
		return engine.Wrap(engine.ErrInvalid, err)
	case errors.Is(err, berrors.ErrChecksum):
		return engine.Wrap(engine.ErrCorrupted, err)
	case errors.Is(err, berrors.ErrDatabaseReadOnly), errors.Is(err, berrors.ErrTxNotWritable):
		return engine.Wrap(engine.ErrReadOnly, err)
	case errors.Is(err, berrors.ErrKeyRequired), errors.Is(err, berrors.ErrKeyTooLarge),
		errors.Is(err, berrors.ErrValueTooLarge):
		return engine.Wrap(engine.ErrBadValSize, err)
	case errors.Is(err, berrors.ErrBucketNotFound):
		return engine.Wrap(engine.ErrNotFound, err)
	case errors.Is(err, berrors.ErrBucketExists):
		return engine.Wrap(engine.ErrKeyExist, err)
	case engine.IsDiskFull(err):
		return engine.Wrap(engine.ErrDiskFull, err)
	}
	return err
}
