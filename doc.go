// Package tdbx is a type-safe layer over embedded, memory-mapped key-value
// engines with a single writer and many concurrent readers.
//
// An Env is one open data file. Transactions are snapshots: a read
// transaction sees the data committed before it began, and the single write
// transaction sees its own writes. Databases are named namespaces inside an
// Env, opened with a key Codec and a value Codec; every operation encodes
// and decodes through them, so the byte order of key encodings is the
// iteration order.
//
// Three engines are available: MDBX (cgo builds, preferred), bbolt and
// Pebble. All of them give the same transactional guarantees through this
// package; they differ in performance and in what they store on disk.
//
// Basic usage:
//
//	env, err := tdbx.Open("/path/to/db", tdbx.EnvOptions{MaxDBs: 4})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	err = env.Update(func(txn *tdbx.Txn) error {
//	    users, err := tdbx.OpenDatabase(txn, "users",
//	        codec.Uint64{}, codec.String{}, tdbx.Create)
//	    if err != nil {
//	        return err
//	    }
//	    return users.Put(txn, 42, "alice")
//	})
//
// Transactions are not safe for concurrent use. Open a transaction per
// goroutine; the Env and Database handles can be shared freely. Unless the
// environment is opened with NoTLS, a read transaction on the MDBX engine is
// tied to its goroutine's OS thread for its whole life.
package tdbx
