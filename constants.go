package tdbx

import "github.com/Giulio2002/tdbx/internal/engine"

// Environment flags. The values match the engine layer bit for bit so they
// pass through to drivers without translation.
const (
	// EnvDefaults is the default (durable) mode
	EnvDefaults uint = 0

	// NoSubdir means the path is a filename, not a directory
	NoSubdir uint = uint(engine.NoSubdir)

	// NoSync skips fsync after commit; a crash may lose the latest commits
	NoSync uint = uint(engine.NoSync)

	// ReadOnly opens the environment in read-only mode
	ReadOnly uint = uint(engine.ReadOnly)

	// NoMetaSync skips meta page sync after commit
	NoMetaSync uint = uint(engine.NoMetaSync)

	// WriteMap maps data with write permission
	WriteMap uint = uint(engine.WriteMap)

	// MapAsync flushes the map asynchronously
	MapAsync uint = uint(engine.MapAsync)

	// NoTLS decouples read transactions from OS threads
	NoTLS uint = uint(engine.NoTLS)

	// NoLock disables engine-level locking; the caller serializes access
	NoLock uint = uint(engine.NoLock)

	// TryWrite makes BeginWrite fail with ErrWriteTxnAlreadyActive
	// instead of waiting for the write slot
	TryWrite uint = 0x10000000
)

// envFlagMask holds every flag Open accepts.
const envFlagMask = NoSubdir | NoSync | ReadOnly | NoMetaSync | WriteMap |
	MapAsync | NoTLS | NoLock | TryWrite

// Transaction flags for BeginTxn and RunTxn
const (
	// TxnReadWrite is the default read-write transaction
	TxnReadWrite uint = 0

	// TxnReadOnly creates a read-only transaction
	TxnReadOnly uint = 0x20000

	// TxnTry fails immediately if the write slot is taken
	TxnTry uint = 0x10000000
)

// Database flags for OpenDatabase
const (
	// DBDefaults opens an existing database
	DBDefaults uint = 0

	// Create creates the database if it doesn't exist
	Create uint = 0x40000

	// ZeroCopy hands codecs the engine's bytes without copying them first.
	// Decoded values may then alias engine memory and are only valid
	// until the transaction ends or writes again.
	ZeroCopy uint = 0x100
)

// Environment limits and defaults
const (
	// DefaultMapSize is the map size used when EnvOptions.MapSize is zero
	DefaultMapSize int64 = 10 << 20

	// MinMapSize is the smallest map size Open accepts
	MinMapSize int64 = 64 << 10

	// DefaultMaxDBs is the named database limit used when EnvOptions.MaxDBs is zero
	DefaultMaxDBs = 16

	// DefaultMaxReaders is the reader limit used when EnvOptions.MaxReaders is zero
	DefaultMaxReaders = 126

	// DefaultMode is the file mode used when EnvOptions.Mode is zero
	DefaultMode = 0o644
)
