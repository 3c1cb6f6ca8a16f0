// Package engine defines the primitive storage engine API that tdbx drives.
//
// An engine is an ordered, transactional key-value store with named
// namespaces, a single writer and snapshot readers. Drivers translate their
// native behavior and error codes into the types and sentinels declared here;
// all lifetime, concurrency and typing rules live one layer up.
package engine

import (
	"os"

	"github.com/btcsuite/btclog/v2"
)

// DBI identifies a namespace inside an open environment.
type DBI uint32

// Flags is the environment flag bitmask handed to drivers. The values match
// the exported tdbx constants.
type Flags uint

const (
	// NoSubdir means the path names the data file instead of a directory.
	NoSubdir Flags = 0x00004000

	// NoSync skips the fsync after commit.
	NoSync Flags = 0x00010000

	// ReadOnly opens the environment read-only.
	ReadOnly Flags = 0x00020000

	// NoMetaSync skips syncing metadata after commit.
	NoMetaSync Flags = 0x00040000

	// WriteMap maps the data file writable.
	WriteMap Flags = 0x00080000

	// MapAsync flushes the writable map asynchronously.
	MapAsync Flags = 0x00100000

	// NoTLS ties reader slots to transaction objects instead of threads.
	NoTLS Flags = 0x00200000

	// NoLock skips shared locking; the caller guarantees exclusivity.
	NoLock Flags = 0x00400000
)

// Has reports whether all bits in f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// Op is a cursor positioning operation.
type Op uint

const (
	First Op = iota
	Last
	Next
	Prev
	Current
	Set
	SetRange
)

func (op Op) String() string {
	switch op {
	case First:
		return "first"
	case Last:
		return "last"
	case Next:
		return "next"
	case Prev:
		return "prev"
	case Current:
		return "current"
	case Set:
		return "set"
	case SetRange:
		return "set-range"
	}
	return "unknown"
}

// PutFlags modify a put.
type PutFlags uint

const (
	// Upsert inserts or overwrites.
	Upsert PutFlags = 0

	// NoOverwrite fails with ErrKeyExist when the key is present.
	NoOverwrite PutFlags = 0x10

	// CurrentKey overwrites the value under a cursor. The key passed must
	// equal the cursor's current key.
	CurrentKey PutFlags = 0x40

	// Append hints that the key sorts after every existing key.
	Append PutFlags = 0x20000
)

// Features advertises what a driver supports natively.
type Features struct {
	// NestedTxns reports support for child write transactions.
	NestedTxns bool

	// MapSizeLimit reports that the map size bounds the data size and
	// running past it yields ErrMapFull.
	MapSizeLimit bool

	// NoSubdir reports support for single-file environments.
	NoSubdir bool
}

// Config is the resolved environment configuration.
type Config struct {
	Path       string
	MapSize    int64
	MaxDBs     int
	MaxReaders int
	Flags      Flags
	Mode       os.FileMode
	Logger     btclog.Logger
}

// Driver opens environments of one engine kind.
type Driver interface {
	Name() string
	Features() Features
	Open(cfg Config) (Env, error)
}

// Env is an open engine environment.
type Env interface {
	// BeginTxn starts a transaction. A non-nil parent starts a nested
	// write transaction.
	BeginTxn(parent Txn, readOnly bool) (Txn, error)

	// Sync flushes buffered commits to disk.
	Sync(force bool) error

	Close() error
}

// Txn is an engine transaction. Byte slices returned by a Txn or its
// cursors are only valid until the transaction ends or, in a write
// transaction, until the next mutation.
type Txn interface {
	// OpenDB resolves a namespace. The empty name is the default namespace,
	// which always exists.
	OpenDB(name string, create bool) (DBI, error)

	// ListDBs returns the names of all named namespaces.
	ListDBs() ([]string, error)

	Get(dbi DBI, key []byte) ([]byte, error)
	Put(dbi DBI, key, value []byte, flags PutFlags) error

	// Del removes key and returns ErrNotFound when it was absent.
	Del(dbi DBI, key []byte) error

	// Drop empties the namespace and, when del is set, removes it.
	Drop(dbi DBI, del bool) error

	// Entries returns the number of keys in the namespace.
	Entries(dbi DBI) (uint64, error)

	OpenCursor(dbi DBI) (Cursor, error)
	Commit() error
	Abort()
}

// Cursor walks one namespace in key order.
//
// Get returns ErrNotFound when the operation moves past either end or the
// exact key is absent. After Del, Next yields the successor of the deleted
// key and Prev its predecessor.
type Cursor interface {
	Get(key []byte, op Op) ([]byte, []byte, error)
	Put(key, value []byte, flags PutFlags) error
	Del() error
	Close()
}
