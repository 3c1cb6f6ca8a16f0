package tdbx

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Giulio2002/tdbx/internal/engine"
)

var errDefaultDrop = errors.New("the default database cannot be dropped")

// Entry is a decoded key-value pair.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Database is a typed handle on a named database (or the default database,
// named ""). It is immutable and may be shared between goroutines; every
// operation takes the transaction to run in.
//
// A handle opened with Create in a write transaction that is later aborted
// refers to a database that does not exist; open it again.
type Database[K, V any] struct {
	env    *Env
	name   string
	dbi    engine.DBI
	flags  uint
	keys   Codec[K]
	values Codec[V]
}

// OpenDatabase opens the named database with the given codecs. Without
// Create a missing database fails with ErrNotFound; with Create the
// transaction must be writable.
func OpenDatabase[K, V any](txn *Txn, name string, keys Codec[K], values Codec[V], flags uint) (*Database[K, V], error) {
	if err := txn.check(); err != nil {
		return nil, err
	}
	create := flags&Create != 0
	if create && txn.readOnly {
		return nil, NewError(ErrTxnReadOnly)
	}
	dbi, err := txn.raw.OpenDB(name, create)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return nil, WrapError(ErrNotFound, fmt.Errorf("database %q", name))
		}
		return nil, wrapEngine(err)
	}
	log.Debugf("Opened database %q (dbi %d) on %s", name, dbi, txn.env.path)
	return &Database[K, V]{
		env:    txn.env,
		name:   name,
		dbi:    dbi,
		flags:  flags &^ Create,
		keys:   keys,
		values: values,
	}, nil
}

// Remap returns a handle on the same database with different codecs.
func Remap[K2, V2, K, V any](db *Database[K, V], keys Codec[K2], values Codec[V2]) *Database[K2, V2] {
	return &Database[K2, V2]{
		env:    db.env,
		name:   db.name,
		dbi:    db.dbi,
		flags:  db.flags,
		keys:   keys,
		values: values,
	}
}

// Name returns the database name.
func (db *Database[K, V]) Name() string {
	return db.name
}

// Env returns the environment the database belongs to.
func (db *Database[K, V]) Env() *Env {
	return db.env
}

// Flags returns the flags the handle was opened with, minus Create.
func (db *Database[K, V]) Flags() uint {
	return db.flags
}

func (db *Database[K, V]) bind(txn *Txn) error {
	if err := txn.check(); err != nil {
		return err
	}
	if txn.env != db.env {
		return NewError(ErrEnvMismatch)
	}
	return nil
}

func (db *Database[K, V]) bindWrite(txn *Txn) error {
	if err := db.bind(txn); err != nil {
		return err
	}
	if txn.readOnly {
		return NewError(ErrTxnReadOnly)
	}
	return nil
}

func (db *Database[K, V]) encodeKey(key K) ([]byte, error) {
	b, err := db.keys.Encode(key)
	if err != nil {
		return nil, WrapError(ErrEncode, err)
	}
	return b, nil
}

func (db *Database[K, V]) encodeValue(value V) ([]byte, error) {
	b, err := db.values.Encode(value)
	if err != nil {
		return nil, WrapError(ErrEncode, err)
	}
	return b, nil
}

// stable returns b, copied unless the handle is zero-copy.
func (db *Database[K, V]) stable(b []byte) []byte {
	if db.flags&ZeroCopy != 0 {
		return b
	}
	return bytes.Clone(b)
}

func (db *Database[K, V]) decodeKey(b []byte) (K, error) {
	k, err := db.keys.Decode(db.stable(b))
	if err != nil {
		return k, WrapError(ErrDecode, fmt.Errorf("key %x: %w", b, err))
	}
	return k, nil
}

func (db *Database[K, V]) decodeValue(b []byte) (V, error) {
	v, err := db.values.Decode(db.stable(b))
	if err != nil {
		return v, WrapError(ErrDecode, err)
	}
	return v, nil
}

func (db *Database[K, V]) decodeEntry(k, v []byte) (Entry[K, V], error) {
	key, err := db.decodeKey(k)
	if err != nil {
		return Entry[K, V]{}, err
	}
	value, err := db.decodeValue(v)
	if err != nil {
		return Entry[K, V]{}, err
	}
	return Entry[K, V]{Key: key, Value: value}, nil
}

// getRaw returns the stored bytes for an encoded key.
func (db *Database[K, V]) getRaw(txn *Txn, key K) ([]byte, bool, error) {
	if err := db.bind(txn); err != nil {
		return nil, false, err
	}
	k, err := db.encodeKey(key)
	if err != nil {
		return nil, false, err
	}
	v, err := txn.raw.Get(db.dbi, k)
	if errors.Is(err, engine.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapEngine(err)
	}
	return v, true, nil
}

// Get returns the value stored under key. A missing key is not an error.
func (db *Database[K, V]) Get(txn *Txn, key K) (V, bool, error) {
	var zero V
	raw, ok, err := db.getRaw(txn, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := db.decodeValue(raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// GetView returns the stored bytes under key without decoding them.
func (db *Database[K, V]) GetView(txn *Txn, key K) (View, bool, error) {
	raw, ok, err := db.getRaw(txn, key)
	if err != nil || !ok {
		return View{}, false, err
	}
	return txn.view(raw), true, nil
}

// Has reports whether key is present.
func (db *Database[K, V]) Has(txn *Txn, key K) (bool, error) {
	_, ok, err := db.getRaw(txn, key)
	return ok, err
}

// Put stores value under key, replacing any previous value.
func (db *Database[K, V]) Put(txn *Txn, key K, value V) error {
	return db.put(txn, key, value, engine.Upsert)
}

// PutIfAbsent stores value under key unless the key is present. It reports
// whether the value was stored.
func (db *Database[K, V]) PutIfAbsent(txn *Txn, key K, value V) (bool, error) {
	err := db.put(txn, key, value, engine.NoOverwrite)
	if IsKeyExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (db *Database[K, V]) put(txn *Txn, key K, value V, flags engine.PutFlags) error {
	if err := db.bindWrite(txn); err != nil {
		return err
	}
	k, err := db.encodeKey(key)
	if err != nil {
		return err
	}
	v, err := db.encodeValue(value)
	if err != nil {
		return err
	}
	if err := txn.raw.Put(db.dbi, k, v, flags); err != nil {
		return wrapEngine(err)
	}
	txn.touch()
	return nil
}

// Append stores value under key, which must sort after every key in the
// database. Out-of-order keys fail with ErrKeyMismatch.
func (db *Database[K, V]) Append(txn *Txn, key K, value V) error {
	if err := db.bindWrite(txn); err != nil {
		return err
	}
	k, err := db.encodeKey(key)
	if err != nil {
		return err
	}
	v, err := db.encodeValue(value)
	if err != nil {
		return err
	}

	cur, err := openRawCursor(txn, db.dbi)
	if err != nil {
		return err
	}
	last, _, ok, err := cur.last()
	if err == nil && ok && bytes.Compare(k, last) <= 0 {
		err = WrapError(ErrKeyMismatch, fmt.Errorf("key %x does not sort after %x", k, last))
	}
	cur.close()
	if err != nil {
		return err
	}

	if err := txn.raw.Put(db.dbi, k, v, engine.Append); err != nil {
		return wrapEngine(err)
	}
	txn.touch()
	return nil
}

// Reserved is the buffer PutReserved hands to its fill function.
type Reserved struct {
	buf []byte
	n   int
}

// Write copies p into the reserved space. Writing past the end fails with
// io.ErrShortWrite after filling what fits.
func (r *Reserved) Write(p []byte) (int, error) {
	n := copy(r.buf[r.n:], p)
	r.n += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Len returns the reserved size.
func (r *Reserved) Len() int {
	return len(r.buf)
}

// Remaining returns the number of bytes still to be written.
func (r *Reserved) Remaining() int {
	return len(r.buf) - r.n
}

// PutReserved stores a value of exactly size bytes under key, produced by
// fill. If fill leaves bytes unwritten the put fails with
// ErrReservedUnderfilled and nothing is stored.
func (db *Database[K, V]) PutReserved(txn *Txn, key K, size int, fill func(w *Reserved) error) error {
	if err := db.bindWrite(txn); err != nil {
		return err
	}
	if size < 0 {
		return WrapError(ErrBadValSize, fmt.Errorf("negative size %d", size))
	}
	k, err := db.encodeKey(key)
	if err != nil {
		return err
	}
	r := &Reserved{buf: make([]byte, size)}
	if err := fill(r); err != nil {
		return WrapError(ErrEncode, err)
	}
	if r.Remaining() != 0 {
		return WrapError(ErrReservedUnderfilled, fmt.Errorf("%d of %d bytes written", r.n, size))
	}
	if err := txn.raw.Put(db.dbi, k, r.buf, engine.Upsert); err != nil {
		return wrapEngine(err)
	}
	txn.touch()
	return nil
}

// Delete removes key and reports whether it was present.
func (db *Database[K, V]) Delete(txn *Txn, key K) (bool, error) {
	if err := db.bindWrite(txn); err != nil {
		return false, err
	}
	k, err := db.encodeKey(key)
	if err != nil {
		return false, err
	}
	err = txn.raw.Del(db.dbi, k)
	if errors.Is(err, engine.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapEngine(err)
	}
	txn.touch()
	return true, nil
}

// DeleteRange removes every key in r and returns how many were removed.
func (db *Database[K, V]) DeleteRange(txn *Txn, r Range[K]) (int, error) {
	if err := db.bindWrite(txn); err != nil {
		return 0, err
	}
	b, err := db.encodeRange(r)
	if err != nil {
		return 0, err
	}
	cur, err := openRawCursor(txn, db.dbi)
	if err != nil {
		return 0, err
	}
	defer cur.close()

	it := byteIter{cur: cur, bounds: b}
	n := 0
	for it.next() {
		if err := cur.delCurrent(); err != nil {
			return n, err
		}
		n++
	}
	return n, it.err
}

// Clear removes every entry, keeping the database.
func (db *Database[K, V]) Clear(txn *Txn) error {
	if err := db.bindWrite(txn); err != nil {
		return err
	}
	if err := txn.raw.Drop(db.dbi, false); err != nil {
		return wrapEngine(err)
	}
	txn.touch()
	return nil
}

// Drop removes the database and its contents. The handle must not be used
// afterwards. The default database cannot be dropped.
func (db *Database[K, V]) Drop(txn *Txn) error {
	if err := db.bindWrite(txn); err != nil {
		return err
	}
	if db.name == "" {
		return WrapError(ErrIncompatible, errDefaultDrop)
	}
	if err := txn.raw.Drop(db.dbi, true); err != nil {
		return wrapEngine(err)
	}
	txn.touch()
	return nil
}

// Len returns the number of entries.
func (db *Database[K, V]) Len(txn *Txn) (uint64, error) {
	if err := db.bind(txn); err != nil {
		return 0, err
	}
	n, err := txn.raw.Entries(db.dbi)
	if err != nil {
		return 0, wrapEngine(err)
	}
	return n, nil
}

// IsEmpty reports whether the database has no entries.
func (db *Database[K, V]) IsEmpty(txn *Txn) (bool, error) {
	_, ok, err := db.edge(txn, false)
	return !ok, err
}

// First returns the entry with the smallest key.
func (db *Database[K, V]) First(txn *Txn) (Entry[K, V], bool, error) {
	return db.edge(txn, false)
}

// Last returns the entry with the largest key.
func (db *Database[K, V]) Last(txn *Txn) (Entry[K, V], bool, error) {
	return db.edge(txn, true)
}

func (db *Database[K, V]) edge(txn *Txn, last bool) (Entry[K, V], bool, error) {
	c, err := db.Cursor(txn)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	defer c.Close()
	if last {
		return c.Last()
	}
	return c.First()
}

// GetLowerThan returns the entry with the greatest key below key.
func (db *Database[K, V]) GetLowerThan(txn *Txn, key K) (Entry[K, V], bool, error) {
	return db.lookupBefore(txn, key, false)
}

// GetLowerThanOrEqual returns the entry with the greatest key at or below key.
func (db *Database[K, V]) GetLowerThanOrEqual(txn *Txn, key K) (Entry[K, V], bool, error) {
	return db.lookupBefore(txn, key, true)
}

// GetGreaterThan returns the entry with the smallest key above key.
func (db *Database[K, V]) GetGreaterThan(txn *Txn, key K) (Entry[K, V], bool, error) {
	return db.lookupAfter(txn, key, Excluded)
}

// GetGreaterThanOrEqual returns the entry with the smallest key at or above key.
func (db *Database[K, V]) GetGreaterThanOrEqual(txn *Txn, key K) (Entry[K, V], bool, error) {
	return db.lookupAfter(txn, key, Included)
}

func (db *Database[K, V]) lookupBefore(txn *Txn, key K, orEqual bool) (Entry[K, V], bool, error) {
	c, err := db.Cursor(txn)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	defer c.Close()
	k, err := db.encodeKey(key)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	return c.entry(c.raw.seekBefore(k, orEqual))
}

func (db *Database[K, V]) lookupAfter(txn *Txn, key K, kind BoundKind) (Entry[K, V], bool, error) {
	it, err := db.Range(txn, Range[K]{Start: Bound[K]{Kind: kind, Key: key}})
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	defer it.Close()
	if it.Next() {
		return it.Entry(), true, nil
	}
	return Entry[K, V]{}, false, it.Err()
}

// Iter iterates over every entry in key order.
func (db *Database[K, V]) Iter(txn *Txn) (*Iterator[K, V], error) {
	return db.iterate(txn, byteRange{}, false)
}

// RevIter iterates over every entry in reverse key order.
func (db *Database[K, V]) RevIter(txn *Txn) (*Iterator[K, V], error) {
	return db.iterate(txn, byteRange{}, true)
}

// Range iterates over the entries in r in key order.
func (db *Database[K, V]) Range(txn *Txn, r Range[K]) (*Iterator[K, V], error) {
	b, err := db.encodeRange(r)
	if err != nil {
		return nil, err
	}
	return db.iterate(txn, b, false)
}

// RevRange iterates over the entries in r in reverse key order.
func (db *Database[K, V]) RevRange(txn *Txn, r Range[K]) (*Iterator[K, V], error) {
	b, err := db.encodeRange(r)
	if err != nil {
		return nil, err
	}
	return db.iterate(txn, b, true)
}

// Prefix iterates over the entries whose encoded key starts with the
// encoding of prefix.
func (db *Database[K, V]) Prefix(txn *Txn, prefix K) (*Iterator[K, V], error) {
	p, err := db.encodeKey(prefix)
	if err != nil {
		return nil, err
	}
	return db.iterate(txn, prefixRange(p), false)
}

// RevPrefix is Prefix in reverse key order.
func (db *Database[K, V]) RevPrefix(txn *Txn, prefix K) (*Iterator[K, V], error) {
	p, err := db.encodeKey(prefix)
	if err != nil {
		return nil, err
	}
	return db.iterate(txn, prefixRange(p), true)
}

func (db *Database[K, V]) iterate(txn *Txn, b byteRange, reverse bool) (*Iterator[K, V], error) {
	if err := db.bind(txn); err != nil {
		return nil, err
	}
	cur, err := openRawCursor(txn, db.dbi)
	if err != nil {
		return nil, err
	}
	return newIterator(db, cur, b, reverse, true), nil
}
