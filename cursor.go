package tdbx

import (
	"bytes"
	"errors"

	"github.com/Giulio2002/tdbx/internal/engine"
)

// cursorSignature is the magic number for valid cursors
const cursorSignature uint32 = 0x54444355 // "TDCU"

// cursorState tracks cursor validity
type cursorState uint8

const (
	cursorUninitialized cursorState = iota
	cursorPointing                  // Cursor is at a valid position
	cursorDeleted                   // Entry under the cursor was deleted
	cursorEOF                       // Cursor moved past either end
	cursorClosed                    // Cursor or its transaction finished
)

// rawCursor walks one database in key order over encoded bytes. It owns
// the engine cursor and the position state; the typed Cursor and Iterator
// sit on top of it.
type rawCursor struct {
	signature uint32
	txn       *Txn
	dbi       engine.DBI
	raw       engine.Cursor
	state     cursorState
	key       []byte // current key, owned
}

func openRawCursor(txn *Txn, dbi engine.DBI) (*rawCursor, error) {
	raw, err := txn.raw.OpenCursor(dbi)
	if err != nil {
		return nil, wrapEngine(err)
	}
	c := &rawCursor{
		signature: cursorSignature,
		txn:       txn,
		dbi:       dbi,
		raw:       raw,
	}
	txn.cursors = append(txn.cursors, c)
	return c, nil
}

func (c *rawCursor) check() error {
	if c == nil || c.signature != cursorSignature {
		return NewError(ErrBadTxn)
	}
	if err := c.txn.check(); err != nil {
		return err
	}
	if c.state == cursorClosed {
		return NewError(ErrUseAfterFinish)
	}
	return nil
}

// get runs one positioning operation. Running off either end, or seeking a
// missing key, is reported as ok == false rather than an error.
func (c *rawCursor) get(key []byte, op engine.Op) (k, v []byte, ok bool, err error) {
	if err := c.check(); err != nil {
		return nil, nil, false, err
	}

	switch op {
	case engine.Next:
		switch c.state {
		case cursorUninitialized:
			op = engine.First
		case cursorEOF:
			return nil, nil, false, nil
		}
	case engine.Prev:
		switch c.state {
		case cursorUninitialized:
			op = engine.Last
		case cursorEOF:
			return nil, nil, false, nil
		}
	case engine.Current:
		if c.state != cursorPointing {
			return nil, nil, false, nil
		}
	}

	k, v, err = c.raw.Get(key, op)
	if errors.Is(err, engine.ErrNotFound) {
		// The entry under the cursor was deleted elsewhere; the position
		// still orders Next and Prev.
		if op == engine.Current {
			return nil, nil, false, nil
		}
		c.state = cursorEOF
		c.key = nil
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, wrapEngine(err)
	}
	c.state = cursorPointing
	c.key = append(c.key[:0], k...)
	return k, v, true, nil
}

func (c *rawCursor) first() ([]byte, []byte, bool, error) { return c.get(nil, engine.First) }
func (c *rawCursor) last() ([]byte, []byte, bool, error)  { return c.get(nil, engine.Last) }
func (c *rawCursor) next() ([]byte, []byte, bool, error)  { return c.get(nil, engine.Next) }
func (c *rawCursor) prev() ([]byte, []byte, bool, error)  { return c.get(nil, engine.Prev) }

func (c *rawCursor) current() ([]byte, []byte, bool, error) {
	return c.get(nil, engine.Current)
}

func (c *rawCursor) seek(key []byte) ([]byte, []byte, bool, error) {
	return c.get(key, engine.Set)
}

func (c *rawCursor) seekRange(key []byte) ([]byte, []byte, bool, error) {
	return c.get(key, engine.SetRange)
}

// seekBefore positions at the greatest key strictly below key, or at or
// below key when orEqual is set.
func (c *rawCursor) seekBefore(key []byte, orEqual bool) ([]byte, []byte, bool, error) {
	k, v, ok, err := c.seekRange(key)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return c.last()
	}
	if orEqual && bytes.Equal(k, key) {
		return k, v, true, nil
	}
	return c.prev()
}

// putCurrent replaces the value under the cursor.
func (c *rawCursor) putCurrent(value []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.txn.readOnly {
		return NewError(ErrTxnReadOnly)
	}
	if c.state != cursorPointing {
		return NewError(ErrCursorUnset)
	}
	if err := c.raw.Put(c.key, value, engine.CurrentKey); err != nil {
		return wrapEngine(err)
	}
	c.txn.touch()
	return nil
}

// delCurrent deletes the entry under the cursor. A following next or prev
// moves to its successor or predecessor.
func (c *rawCursor) delCurrent() error {
	if err := c.check(); err != nil {
		return err
	}
	if c.txn.readOnly {
		return NewError(ErrTxnReadOnly)
	}
	if c.state != cursorPointing {
		return NewError(ErrCursorUnset)
	}
	if err := c.raw.Del(); err != nil {
		return wrapEngine(err)
	}
	c.state = cursorDeleted
	c.txn.touch()
	return nil
}

// close releases the engine cursor and detaches it from the transaction.
func (c *rawCursor) close() {
	if c == nil || c.state == cursorClosed {
		return
	}
	c.release()
	if c.txn.alive() {
		c.txn.removeCursor(c)
	}
}

// release closes the engine cursor without touching the transaction's list.
func (c *rawCursor) release() {
	if c.state == cursorClosed {
		return
	}
	c.raw.Close()
	c.state = cursorClosed
	c.key = nil
}

// Cursor is a typed cursor over a Database. Positioning methods return
// ok == false when there is no entry to move to.
//
// A fresh cursor is unset: Next behaves like First and Prev like Last.
// After DelCurrent, Next and Prev move to the neighbors of the deleted key.
type Cursor[K, V any] struct {
	db  *Database[K, V]
	raw *rawCursor
}

// Cursor opens a cursor over the database.
func (db *Database[K, V]) Cursor(txn *Txn) (*Cursor[K, V], error) {
	if err := db.bind(txn); err != nil {
		return nil, err
	}
	raw, err := openRawCursor(txn, db.dbi)
	if err != nil {
		return nil, err
	}
	return &Cursor[K, V]{db: db, raw: raw}, nil
}

func (c *Cursor[K, V]) entry(k, v []byte, ok bool, err error) (Entry[K, V], bool, error) {
	if err != nil || !ok {
		return Entry[K, V]{}, false, err
	}
	e, err := c.db.decodeEntry(k, v)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	return e, true, nil
}

// First positions at the smallest key.
func (c *Cursor[K, V]) First() (Entry[K, V], bool, error) {
	return c.entry(c.raw.first())
}

// Last positions at the largest key.
func (c *Cursor[K, V]) Last() (Entry[K, V], bool, error) {
	return c.entry(c.raw.last())
}

// Next moves to the following key.
func (c *Cursor[K, V]) Next() (Entry[K, V], bool, error) {
	return c.entry(c.raw.next())
}

// Prev moves to the preceding key.
func (c *Cursor[K, V]) Prev() (Entry[K, V], bool, error) {
	return c.entry(c.raw.prev())
}

// Current returns the entry under the cursor.
func (c *Cursor[K, V]) Current() (Entry[K, V], bool, error) {
	return c.entry(c.raw.current())
}

// Seek positions at key exactly.
func (c *Cursor[K, V]) Seek(key K) (Entry[K, V], bool, error) {
	k, err := c.db.encodeKey(key)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	return c.entry(c.raw.seek(k))
}

// SeekRange positions at the first key >= key.
func (c *Cursor[K, V]) SeekRange(key K) (Entry[K, V], bool, error) {
	k, err := c.db.encodeKey(key)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	return c.entry(c.raw.seekRange(k))
}

// PutCurrent replaces the value under the cursor.
func (c *Cursor[K, V]) PutCurrent(value V) error {
	v, err := c.db.encodeValue(value)
	if err != nil {
		return err
	}
	return c.raw.putCurrent(v)
}

// DelCurrent deletes the entry under the cursor.
func (c *Cursor[K, V]) DelCurrent() error {
	return c.raw.delCurrent()
}

// Range returns an iterator that walks r with this cursor. Closing the
// iterator does not close the cursor.
func (c *Cursor[K, V]) Range(r Range[K]) (*Iterator[K, V], error) {
	if err := c.raw.check(); err != nil {
		return nil, err
	}
	b, err := c.db.encodeRange(r)
	if err != nil {
		return nil, err
	}
	return newIterator(c.db, c.raw, b, false, false), nil
}

// Close releases the cursor. Cursors are also released when their
// transaction ends.
func (c *Cursor[K, V]) Close() {
	c.raw.close()
}
