package benchmarks

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Giulio2002/tdbx"
	"github.com/Giulio2002/tdbx/codec"
)

// Cached benchmark database directory
const benchCacheDir = "testdata/benchdb"

// benchDB is the database every benchmark reads and writes.
const benchDB = "bench"

// plainDB maps uint64 keys to 32-byte values.
type plainDB = tdbx.Database[uint64, []byte]

var (
	cacheMu sync.Mutex
	envs    = make(map[string]*tdbx.Env)
)

// benchOptions returns the options cached environments are opened with.
func benchOptions(engine string) tdbx.EnvOptions {
	return tdbx.EnvOptions{
		Engine:     engine,
		MapSize:    1 << 30,
		MaxDBs:     4,
		MaxReaders: 256,
		Flags:      tdbx.NoMetaSync | tdbx.NoTLS,
	}
}

// getCachedPlainDB returns a cached environment holding size sequential
// keys, creating it if needed. The data lives in
// testdata/benchdb/plain_<size>_<engine> and is reused across runs.
func getCachedPlainDB(b *testing.B, engine string, size int) (*tdbx.Env, *plainDB) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	key := fmt.Sprintf("plain_%d_%s", size, engine)
	path := filepath.Join(benchCacheDir, key)

	// Check if already loaded in memory
	if env, ok := envs[key]; ok {
		return env, openPlain(b, env)
	}

	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}
	exists := fileExists(path)

	env, err := tdbx.Open(path, benchOptions(engine))
	if err != nil {
		b.Fatal(err)
	}

	if !exists {
		b.Logf("Creating cached %s plain DB with %d keys...", engine, size)
		populatePlainDB(b, env, size)
	} else {
		b.Logf("Using cached %s plain DB with %d keys", engine, size)
	}

	envs[key] = env
	return env, openPlain(b, env)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func openPlain(b *testing.B, env *tdbx.Env) *plainDB {
	var db *plainDB
	err := env.Update(func(txn *tdbx.Txn) error {
		var err error
		db, err = tdbx.OpenDatabase(txn, benchDB, codec.Uint64{}, codec.Bytes{}, tdbx.Create)
		return err
	})
	if err != nil {
		b.Fatal(err)
	}
	return db
}

func populatePlainDB(b *testing.B, env *tdbx.Env, numKeys int) {
	db := openPlain(b, env)

	const batchSize = 100_000
	for start := 0; start < numKeys; start += batchSize {
		err := env.Update(func(txn *tdbx.Txn) error {
			for i := start; i < min(start+batchSize, numKeys); i++ {
				if err := db.Append(txn, uint64(i), benchValue(uint64(i))); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// benchValue returns the 32-byte value stored under key i.
func benchValue(i uint64) []byte {
	v := make([]byte, 32)
	for j := range v {
		v[j] = byte(i >> (8 * (j % 8)))
	}
	return v
}

func formatSize(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%dM", n/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%dk", n/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// forEachEngine runs fn as a sub-benchmark per size and engine.
func forEachEngine(b *testing.B, name string, sizes []int, fn func(b *testing.B, engine string, size int)) {
	for _, size := range sizes {
		for _, engine := range tdbx.Engines() {
			b.Run(fmt.Sprintf("%s_%s/%s", name, formatSize(size), engine), func(b *testing.B) {
				fn(b, engine, size)
			})
		}
	}
}
