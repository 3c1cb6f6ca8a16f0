package tdbx

import (
	"iter"

	"github.com/Giulio2002/tdbx/internal/keys"
)

// byteIter walks a byteRange over a rawCursor in either direction.
type byteIter struct {
	cur     *rawCursor
	bounds  byteRange
	reverse bool
	started bool
	done    bool
	k, v    []byte
	err     error
}

func (it *byteIter) next() bool {
	if it.done {
		return false
	}
	var (
		k, v []byte
		ok   bool
		err  error
	)
	switch {
	case !it.started:
		it.started = true
		if it.bounds.empty() {
			it.done = true
			return false
		}
		k, v, ok, err = it.seekStart()
	case it.reverse:
		k, v, ok, err = it.cur.prev()
	default:
		k, v, ok, err = it.cur.next()
	}
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	if ok && it.reverse {
		ok = it.bounds.aboveLow(k)
	} else if ok {
		ok = it.bounds.belowHigh(k)
	}
	if !ok {
		it.done = true
		it.k, it.v = nil, nil
		return false
	}
	it.k, it.v = k, v
	return true
}

// seekStart positions on the first entry in iteration order.
func (it *byteIter) seekStart() ([]byte, []byte, bool, error) {
	b := it.bounds
	if !it.reverse {
		switch b.loKind {
		case Included:
			return it.cur.seekRange(b.lo)
		case Excluded:
			return it.cur.seekRange(keys.Successor(b.lo))
		}
		return it.cur.first()
	}
	switch b.hiKind {
	case Included:
		return it.cur.seekBefore(b.hi, true)
	case Excluded:
		return it.cur.seekBefore(b.hi, false)
	}
	return it.cur.last()
}

// Iterator walks a Database in key order, or reverse key order. Stop on the
// first false from Next and check Err.
//
//	it, err := db.Iter(txn)
//	...
//	defer it.Close()
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Iterator[K, V any] struct {
	db    *Database[K, V]
	it    byteIter
	owned bool // close the cursor with the iterator
	entry Entry[K, V]
	err   error
}

func newIterator[K, V any](db *Database[K, V], cur *rawCursor, b byteRange, reverse, owned bool) *Iterator[K, V] {
	return &Iterator[K, V]{
		db:    db,
		it:    byteIter{cur: cur, bounds: b, reverse: reverse},
		owned: owned,
	}
}

// Next advances to the next entry and reports whether there is one.
func (it *Iterator[K, V]) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.it.next() {
		it.err = it.it.err
		it.entry = Entry[K, V]{}
		return false
	}
	e, err := it.db.decodeEntry(it.it.k, it.it.v)
	if err != nil {
		it.err = err
		it.entry = Entry[K, V]{}
		return false
	}
	it.entry = e
	return true
}

// Key returns the current key.
func (it *Iterator[K, V]) Key() K {
	return it.entry.Key
}

// Value returns the current value.
func (it *Iterator[K, V]) Value() V {
	return it.entry.Value
}

// Entry returns the current entry.
func (it *Iterator[K, V]) Entry() Entry[K, V] {
	return it.entry
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator[K, V]) Err() error {
	return it.err
}

// PutCurrent replaces the value of the current entry.
func (it *Iterator[K, V]) PutCurrent(value V) error {
	v, err := it.db.encodeValue(value)
	if err != nil {
		return err
	}
	return it.it.cur.putCurrent(v)
}

// DelCurrent deletes the current entry. Iteration continues with the
// entry that followed it.
func (it *Iterator[K, V]) DelCurrent() error {
	return it.it.cur.delCurrent()
}

// All returns the remaining entries as a range-over-func sequence. Check Err
// after the loop.
func (it *Iterator[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
	}
}

// Close releases the iterator's cursor.
func (it *Iterator[K, V]) Close() {
	if it.owned {
		it.it.cur.close()
	}
}
