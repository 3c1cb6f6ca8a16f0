package tdbx

import (
	"bytes"

	"github.com/Giulio2002/tdbx/internal/keys"
)

// BoundKind says whether a range end is open, inclusive or exclusive.
type BoundKind uint8

const (
	// Unbounded leaves the range end open
	Unbounded BoundKind = iota

	// Included includes the bound key
	Included

	// Excluded excludes the bound key
	Excluded
)

// Bound is one end of a Range. The zero Bound is unbounded.
type Bound[K any] struct {
	Kind BoundKind
	Key  K
}

// Incl returns an inclusive bound at key.
func Incl[K any](key K) Bound[K] {
	return Bound[K]{Kind: Included, Key: key}
}

// Excl returns an exclusive bound at key.
func Excl[K any](key K) Bound[K] {
	return Bound[K]{Kind: Excluded, Key: key}
}

// Range selects keys between Start and End in encoded key order. The zero
// Range selects every key.
type Range[K any] struct {
	Start Bound[K]
	End   Bound[K]
}

// Between returns the half-open range [start, end).
func Between[K any](start, end K) Range[K] {
	return Range[K]{Start: Incl(start), End: Excl(end)}
}

// From returns the range of keys >= start.
func From[K any](start K) Range[K] {
	return Range[K]{Start: Incl(start)}
}

// Until returns the range of keys < end.
func Until[K any](end K) Range[K] {
	return Range[K]{End: Excl(end)}
}

// byteRange is a Range over encoded keys.
type byteRange struct {
	lo, hi         []byte
	loKind, hiKind BoundKind
}

func (db *Database[K, V]) encodeRange(r Range[K]) (byteRange, error) {
	var (
		b   = byteRange{loKind: r.Start.Kind, hiKind: r.End.Kind}
		err error
	)
	if b.loKind != Unbounded {
		if b.lo, err = db.encodeKey(r.Start.Key); err != nil {
			return b, err
		}
	}
	if b.hiKind != Unbounded {
		if b.hi, err = db.encodeKey(r.End.Key); err != nil {
			return b, err
		}
	}
	return b, nil
}

// prefixRange selects every key starting with prefix.
func prefixRange(prefix []byte) byteRange {
	b := byteRange{lo: prefix, loKind: Included}
	if hi := keys.UpperBound(prefix); hi != nil {
		b.hi, b.hiKind = hi, Excluded
	}
	return b
}

// aboveLow reports whether k satisfies the lower bound.
func (b byteRange) aboveLow(k []byte) bool {
	switch b.loKind {
	case Included:
		return bytes.Compare(k, b.lo) >= 0
	case Excluded:
		return bytes.Compare(k, b.lo) > 0
	}
	return true
}

// belowHigh reports whether k satisfies the upper bound.
func (b byteRange) belowHigh(k []byte) bool {
	switch b.hiKind {
	case Included:
		return bytes.Compare(k, b.hi) <= 0
	case Excluded:
		return bytes.Compare(k, b.hi) < 0
	}
	return true
}

// empty reports whether no key can satisfy both bounds.
func (b byteRange) empty() bool {
	if b.loKind == Unbounded || b.hiKind == Unbounded {
		return false
	}
	c := bytes.Compare(b.lo, b.hi)
	if b.loKind == Included && b.hiKind == Included {
		return c > 0
	}
	return c >= 0
}
