// Package enginetest is a conformance suite every engine driver must pass.
package enginetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Giulio2002/tdbx/internal/engine"
)

// Config returns a driver configuration rooted in a fresh temp directory.
func Config(t *testing.T) engine.Config {
	t.Helper()
	return engine.Config{
		Path:       t.TempDir(),
		MapSize:    16 << 20,
		MaxDBs:     8,
		MaxReaders: 32,
		Flags:      engine.NoTLS,
		Mode:       0o644,
	}
}

// Run exercises d against the shared engine contract.
func Run(t *testing.T, d engine.Driver) {
	open := func(t *testing.T) engine.Env {
		t.Helper()
		env, err := d.Open(Config(t))
		require.NoError(t, err)
		t.Cleanup(func() { _ = env.Close() })
		return env
	}

	t.Run("GetPutDel", func(t *testing.T) { testGetPutDel(t, open(t)) })
	t.Run("Namespaces", func(t *testing.T) { testNamespaces(t, open(t)) })
	t.Run("DefaultIsolated", func(t *testing.T) { testDefaultIsolated(t, open(t)) })
	t.Run("Snapshot", func(t *testing.T) { testSnapshot(t, open(t)) })
	t.Run("Abort", func(t *testing.T) { testAbort(t, open(t)) })
	t.Run("CursorWalk", func(t *testing.T) { testCursorWalk(t, open(t)) })
	t.Run("CursorDelete", func(t *testing.T) { testCursorDelete(t, open(t)) })
	t.Run("CursorPutCurrent", func(t *testing.T) { testCursorPutCurrent(t, open(t)) })
	t.Run("Entries", func(t *testing.T) { testEntries(t, open(t)) })
	t.Run("Nested", func(t *testing.T) {
		if !d.Features().NestedTxns {
			env := open(t)
			wtx := begin(t, env, false)
			defer wtx.Abort()
			_, err := env.BeginTxn(wtx, false)
			require.ErrorIs(t, err, engine.ErrIncompatible)
			return
		}
		testNested(t, open(t))
	})
}

func begin(t *testing.T, env engine.Env, readOnly bool) engine.Txn {
	t.Helper()
	txn, err := env.BeginTxn(nil, readOnly)
	require.NoError(t, err)
	return txn
}

func fill(t *testing.T, env engine.Env, name string, kv ...string) {
	t.Helper()
	txn := begin(t, env, false)
	dbi, err := txn.OpenDB(name, true)
	require.NoError(t, err)
	for i := 0; i+1 < len(kv); i += 2 {
		require.NoError(t, txn.Put(dbi, []byte(kv[i]), []byte(kv[i+1]), engine.Upsert))
	}
	require.NoError(t, txn.Commit())
}

func testGetPutDel(t *testing.T, env engine.Env) {
	fill(t, env, "", "a", "1", "b", "2", "e", "")

	txn := begin(t, env, false)
	defer txn.Abort()
	dbi, err := txn.OpenDB("", false)
	require.NoError(t, err)

	v, err := txn.Get(dbi, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	v, err = txn.Get(dbi, []byte("e"))
	require.NoError(t, err)
	require.Empty(t, v)

	_, err = txn.Get(dbi, []byte("zz"))
	require.ErrorIs(t, err, engine.ErrNotFound)

	require.ErrorIs(t, txn.Put(dbi, []byte("a"), []byte("x"), engine.NoOverwrite), engine.ErrKeyExist)
	require.NoError(t, txn.Put(dbi, []byte("c"), []byte("3"), engine.NoOverwrite))

	require.NoError(t, txn.Del(dbi, []byte("b")))
	require.ErrorIs(t, txn.Del(dbi, []byte("b")), engine.ErrNotFound)
	_, err = txn.Get(dbi, []byte("b"))
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func testNamespaces(t *testing.T, env engine.Env) {
	rtx := begin(t, env, true)
	_, err := rtx.OpenDB("users", false)
	require.ErrorIs(t, err, engine.ErrNotFound)
	rtx.Abort()

	fill(t, env, "users", "k", "users")
	fill(t, env, "items", "k", "items")

	txn := begin(t, env, false)
	users, err := txn.OpenDB("users", false)
	require.NoError(t, err)
	items, err := txn.OpenDB("items", false)
	require.NoError(t, err)
	require.NotEqual(t, users, items)

	again, err := txn.OpenDB("users", false)
	require.NoError(t, err)
	require.Equal(t, users, again)

	v, err := txn.Get(users, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("users"), v)

	names, err := txn.ListDBs()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"users", "items"}, names)

	require.NoError(t, txn.Drop(items, false))
	_, err = txn.Get(items, []byte("k"))
	require.ErrorIs(t, err, engine.ErrNotFound)

	require.NoError(t, txn.Drop(users, true))
	require.NoError(t, txn.Commit())

	rtx = begin(t, env, true)
	defer rtx.Abort()
	_, err = rtx.OpenDB("users", false)
	require.ErrorIs(t, err, engine.ErrNotFound)
	_, err = rtx.OpenDB("items", false)
	require.NoError(t, err)
}

// The default namespace holds only its own keys, never other namespaces'
// bookkeeping.
func testDefaultIsolated(t *testing.T, env engine.Env) {
	fill(t, env, "users", "k", "v")
	fill(t, env, "", "a", "1")

	txn := begin(t, env, true)
	defer txn.Abort()
	dbi, err := txn.OpenDB("", false)
	require.NoError(t, err)

	n, err := txn.Entries(dbi)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	cur, err := txn.OpenCursor(dbi)
	require.NoError(t, err)
	defer cur.Close()
	require.Equal(t, "a", walk(t, cur, engine.First, ""))
	require.Equal(t, "<none>", walk(t, cur, engine.Next, ""))
}

func testSnapshot(t *testing.T, env engine.Env) {
	fill(t, env, "", "a", "1")

	rtx := begin(t, env, true)
	defer rtx.Abort()
	dbi, err := rtx.OpenDB("", false)
	require.NoError(t, err)

	fill(t, env, "", "a", "2", "b", "2")

	v, err := rtx.Get(dbi, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	_, err = rtx.Get(dbi, []byte("b"))
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func testAbort(t *testing.T, env engine.Env) {
	txn := begin(t, env, false)
	dbi, err := txn.OpenDB("", false)
	require.NoError(t, err)
	require.NoError(t, txn.Put(dbi, []byte("a"), []byte("1"), engine.Upsert))
	txn.Abort()

	rtx := begin(t, env, true)
	defer rtx.Abort()
	_, err = rtx.Get(dbi, []byte("a"))
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func walk(t *testing.T, cur engine.Cursor, op engine.Op, key string) string {
	t.Helper()
	k, _, err := cur.Get([]byte(key), op)
	if err != nil {
		require.ErrorIs(t, err, engine.ErrNotFound)
		return "<none>"
	}
	return string(k)
}

func testCursorWalk(t *testing.T, env engine.Env) {
	fill(t, env, "", "b", "2", "d", "4", "f", "6")

	txn := begin(t, env, true)
	defer txn.Abort()
	dbi, err := txn.OpenDB("", false)
	require.NoError(t, err)
	cur, err := txn.OpenCursor(dbi)
	require.NoError(t, err)
	defer cur.Close()

	require.Equal(t, "b", walk(t, cur, engine.First, ""))
	require.Equal(t, "d", walk(t, cur, engine.Next, ""))
	require.Equal(t, "f", walk(t, cur, engine.Next, ""))
	require.Equal(t, "<none>", walk(t, cur, engine.Next, ""))

	require.Equal(t, "f", walk(t, cur, engine.Last, ""))
	require.Equal(t, "d", walk(t, cur, engine.Prev, ""))
	require.Equal(t, "b", walk(t, cur, engine.Prev, ""))
	require.Equal(t, "<none>", walk(t, cur, engine.Prev, ""))

	require.Equal(t, "d", walk(t, cur, engine.Set, "d"))
	require.Equal(t, "d", walk(t, cur, engine.Current, ""))
	require.Equal(t, "<none>", walk(t, cur, engine.Set, "c"))
	require.Equal(t, "d", walk(t, cur, engine.SetRange, "c"))
	require.Equal(t, "b", walk(t, cur, engine.SetRange, "a"))
	require.Equal(t, "<none>", walk(t, cur, engine.SetRange, "g"))
}

func testCursorDelete(t *testing.T, env engine.Env) {
	fill(t, env, "", "a", "1", "b", "2", "c", "3", "d", "4")

	txn := begin(t, env, false)
	defer txn.Abort()
	dbi, err := txn.OpenDB("", false)
	require.NoError(t, err)
	cur, err := txn.OpenCursor(dbi)
	require.NoError(t, err)
	defer cur.Close()

	require.Equal(t, "b", walk(t, cur, engine.Set, "b"))
	require.NoError(t, cur.Del())
	require.Equal(t, "c", walk(t, cur, engine.Next, ""))

	require.NoError(t, cur.Del())
	require.Equal(t, "a", walk(t, cur, engine.Prev, ""))
	require.Equal(t, "d", walk(t, cur, engine.Next, ""))

	n, err := txn.Entries(dbi)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func testCursorPutCurrent(t *testing.T, env engine.Env) {
	fill(t, env, "", "a", "1", "b", "2", "c", "3")

	txn := begin(t, env, false)
	defer txn.Abort()
	dbi, err := txn.OpenDB("", false)
	require.NoError(t, err)
	cur, err := txn.OpenCursor(dbi)
	require.NoError(t, err)
	defer cur.Close()

	for k, _, err := cur.Get(nil, engine.First); err == nil; k, _, err = cur.Get(nil, engine.Next) {
		require.NoError(t, cur.Put(k, append([]byte("v-"), k...), engine.CurrentKey))
	}

	for _, k := range []string{"a", "b", "c"} {
		v, err := txn.Get(dbi, []byte(k))
		require.NoError(t, err)
		require.Equal(t, "v-"+k, string(v))
	}
}

func testEntries(t *testing.T, env engine.Env) {
	fill(t, env, "", "a", "1", "b", "2")

	txn := begin(t, env, false)
	defer txn.Abort()
	dbi, err := txn.OpenDB("", false)
	require.NoError(t, err)
	require.NoError(t, txn.Put(dbi, []byte("c"), []byte("3"), engine.Upsert))

	n, err := txn.Entries(dbi)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func testNested(t *testing.T, env engine.Env) {
	parent := begin(t, env, false)
	defer parent.Abort()
	dbi, err := parent.OpenDB("", false)
	require.NoError(t, err)
	require.NoError(t, parent.Put(dbi, []byte("p"), []byte("1"), engine.Upsert))

	child, err := env.BeginTxn(parent, false)
	require.NoError(t, err)
	require.NoError(t, child.Put(dbi, []byte("c1"), []byte("1"), engine.Upsert))
	v, err := child.Get(dbi, []byte("p"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	require.NoError(t, child.Commit())

	child, err = env.BeginTxn(parent, false)
	require.NoError(t, err)
	require.NoError(t, child.Put(dbi, []byte("c2"), []byte("1"), engine.Upsert))
	child.Abort()

	_, err = parent.Get(dbi, []byte("c1"))
	require.NoError(t, err)
	_, err = parent.Get(dbi, []byte("c2"))
	require.ErrorIs(t, err, engine.ErrNotFound)
}

// CursorAfterForeignDelete checks drivers that report a missing current
// entry once another writer deleted it: the cursor keeps its position, so
// Next yields the successor and Prev the predecessor.
func CursorAfterForeignDelete(t *testing.T, d engine.Driver) {
	for _, op := range []engine.Op{engine.Next, engine.Prev} {
		env, err := d.Open(Config(t))
		require.NoError(t, err)
		fill(t, env, "", "a", "1", "b", "2", "c", "3")

		txn := begin(t, env, false)
		dbi, err := txn.OpenDB("", false)
		require.NoError(t, err)
		cur, err := txn.OpenCursor(dbi)
		require.NoError(t, err)

		_, _, err = cur.Get([]byte("b"), engine.Set)
		require.NoError(t, err)
		require.NoError(t, txn.Del(dbi, []byte("b")))

		_, _, err = cur.Get(nil, engine.Current)
		require.ErrorIs(t, err, engine.ErrNotFound)

		k, _, err := cur.Get(nil, op)
		require.NoError(t, err)
		want := map[engine.Op]string{engine.Next: "c", engine.Prev: "a"}[op]
		require.Equal(t, want, string(k))

		cur.Close()
		txn.Abort()
		require.NoError(t, env.Close())
	}
}
