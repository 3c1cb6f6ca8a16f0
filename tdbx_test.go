package tdbx

import (
	"strconv"
	"testing"

	"github.com/Giulio2002/tdbx/codec"
)

// forEachEngine runs fn once per registered engine.
func forEachEngine(t *testing.T, fn func(t *testing.T, engine string)) {
	for _, name := range Engines() {
		t.Run(name, func(t *testing.T) { fn(t, name) })
	}
}

// testOptions returns options for engine with NoTLS set, so read and write
// transactions can share a goroutine on every engine.
func testOptions(engine string) EnvOptions {
	return EnvOptions{
		Engine:     engine,
		MapSize:    16 << 20,
		MaxDBs:     8,
		MaxReaders: 16,
		Flags:      NoTLS,
	}
}

// openTestEnv opens an environment in a fresh temp directory.
func openTestEnv(t *testing.T, engine string) *Env {
	t.Helper()
	return openTestEnvOpts(t, testOptions(engine))
}

func openTestEnvOpts(t *testing.T, opts EnvOptions) *Env {
	t.Helper()
	env, err := Open(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if env.Info().Refs > 0 {
			env.Close()
		}
	})
	return env
}

type stringDB = Database[string, uint64]

// openStrings opens (creating) a string -> uint64 database.
func openStrings(t *testing.T, txn *Txn, name string) *stringDB {
	t.Helper()
	db, err := OpenDatabase(txn, name, codec.String{}, codec.Uint64{}, Create)
	if err != nil {
		t.Fatalf("OpenDatabase(%q) failed: %v", name, err)
	}
	return db
}

func beginWrite(t *testing.T, env *Env) *Txn {
	t.Helper()
	txn, err := env.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite failed: %v", err)
	}
	return txn
}

func beginRead(t *testing.T, env *Env) *Txn {
	t.Helper()
	txn, err := env.BeginRead()
	if err != nil {
		t.Fatalf("BeginRead failed: %v", err)
	}
	return txn
}

func mustPut[K, V any](t *testing.T, db *Database[K, V], txn *Txn, k K, v V) {
	t.Helper()
	if err := db.Put(txn, k, v); err != nil {
		t.Fatalf("Put(%v) failed: %v", k, err)
	}
}

func mustCommit(t *testing.T, txn *Txn) {
	t.Helper()
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func wantCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", code)
	}
	if Code(err) != code {
		t.Fatalf("expected %v, got %v", code, err)
	}
}

// collect drains an iterator into "key=value" strings. A failure shows up
// as a trailing "error: ..." element so comparisons report it.
func collect(it *Iterator[string, uint64], err error) []string {
	if err != nil {
		return []string{"error: " + err.Error()}
	}
	defer it.Close()
	var out []string
	for k, v := range it.All() {
		out = append(out, k+"="+strconv.FormatUint(v, 10))
	}
	if err := it.Err(); err != nil {
		out = append(out, "error: "+err.Error())
	}
	return out
}
