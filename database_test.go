package tdbx

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"

	"github.com/Giulio2002/tdbx/codec"
)

// fillStrings commits kv pairs into the default database and returns its handle.
func fillStrings(t *testing.T, env *Env, kv map[string]uint64) *stringDB {
	t.Helper()
	var db *stringDB
	err := env.Update(func(txn *Txn) error {
		db = openStrings(t, txn, "")
		for k, v := range kv {
			if err := db.Put(txn, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	return db
}

func letters(n int) map[string]uint64 {
	kv := make(map[string]uint64, n)
	for i := range n {
		kv[string(rune('a'+i))] = uint64(i)
	}
	return kv
}

func TestDeleteReportsPresence(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := fillStrings(t, env, map[string]uint64{"present": 1})

		wtx := beginWrite(t, env)
		defer wtx.Abort()

		ok, err := db.Delete(wtx, "missing")
		if err != nil || ok {
			t.Fatalf("Delete(missing) = %v, %v", ok, err)
		}
		ok, err = db.Delete(wtx, "present")
		if err != nil || !ok {
			t.Fatalf("Delete(present) = %v, %v", ok, err)
		}
		if _, ok, err := db.Get(wtx, "present"); err != nil || ok {
			t.Fatalf("Get after Delete = %v, %v", ok, err)
		}
		if ok, _ := db.Delete(wtx, "present"); ok {
			t.Fatal("second Delete reported presence")
		}
	})
}

func TestPutIfAbsent(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		wtx := beginWrite(t, env)
		defer wtx.Abort()
		db := openStrings(t, wtx, "")

		stored, err := db.PutIfAbsent(wtx, "k", 1)
		if err != nil || !stored {
			t.Fatalf("first PutIfAbsent = %v, %v", stored, err)
		}
		stored, err = db.PutIfAbsent(wtx, "k", 2)
		if err != nil || stored {
			t.Fatalf("second PutIfAbsent = %v, %v", stored, err)
		}
		if v, _, _ := db.Get(wtx, "k"); v != 1 {
			t.Fatalf("value overwritten: %d", v)
		}
		if ok, _ := db.Has(wtx, "k"); !ok {
			t.Fatal("Has = false")
		}
	})
}

func TestAppend(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		wtx := beginWrite(t, env)
		defer wtx.Abort()
		db, err := OpenDatabase(wtx, "seq", codec.Uint64{}, codec.String{}, Create)
		if err != nil {
			t.Fatal(err)
		}

		for i := uint64(1); i <= 100; i++ {
			if err := db.Append(wtx, i, fmt.Sprint(i)); err != nil {
				t.Fatalf("Append(%d) failed: %v", i, err)
			}
		}
		wantCode(t, db.Append(wtx, 100, "dup"), ErrKeyMismatch)
		wantCode(t, db.Append(wtx, 50, "old"), ErrKeyMismatch)

		if v, _, _ := db.Get(wtx, 50); v != "50" {
			t.Fatalf("rejected Append modified data: %q", v)
		}
		if n, _ := db.Len(wtx); n != 100 {
			t.Fatalf("Len = %d", n)
		}
		last, ok, err := db.Last(wtx)
		if err != nil || !ok || last.Key != 100 {
			t.Fatalf("Last = %+v, %v, %v", last, ok, err)
		}
	})
}

func TestPutReserved(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		wtx := beginWrite(t, env)
		defer wtx.Abort()
		db, err := OpenDatabase(wtx, "blobs", codec.String{}, codec.Bytes{}, Create)
		if err != nil {
			t.Fatal(err)
		}

		err = db.PutReserved(wtx, "full", 6, func(w *Reserved) error {
			if w.Len() != 6 {
				return fmt.Errorf("Len = %d", w.Len())
			}
			io.WriteString(w, "abc")
			_, err := w.Write([]byte("def"))
			return err
		})
		if err != nil {
			t.Fatalf("PutReserved failed: %v", err)
		}
		if v, _, _ := db.Get(wtx, "full"); string(v) != "abcdef" {
			t.Fatalf("stored %q", v)
		}

		err = db.PutReserved(wtx, "short", 4, func(w *Reserved) error {
			_, err := w.Write([]byte("ab"))
			return err
		})
		wantCode(t, err, ErrReservedUnderfilled)
		if ok, _ := db.Has(wtx, "short"); ok {
			t.Fatal("underfilled value stored")
		}

		err = db.PutReserved(wtx, "long", 2, func(w *Reserved) error {
			_, err := w.Write([]byte("abc"))
			return err
		})
		wantCode(t, err, ErrEncode)
		if !errors.Is(err, io.ErrShortWrite) {
			t.Fatalf("expected io.ErrShortWrite, got %v", err)
		}

		if err := db.PutReserved(wtx, "empty", 0, func(*Reserved) error { return nil }); err != nil {
			t.Fatalf("empty reservation failed: %v", err)
		}
		if v, ok, _ := db.Get(wtx, "empty"); !ok || len(v) != 0 {
			t.Fatalf("empty value = %q, %v", v, ok)
		}
	})
}

func TestDeleteRangeAndClear(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := fillStrings(t, env, letters(10))

		wtx := beginWrite(t, env)
		defer wtx.Abort()

		n, err := db.DeleteRange(wtx, Between("c", "f"))
		if err != nil || n != 3 {
			t.Fatalf("DeleteRange = %d, %v", n, err)
		}
		n, err = db.DeleteRange(wtx, Range[string]{Start: Excl("h")})
		if err != nil || n != 2 {
			t.Fatalf("DeleteRange(>h) = %d, %v", n, err)
		}
		n, _ = db.DeleteRange(wtx, Between("x", "z"))
		if n != 0 {
			t.Fatalf("empty DeleteRange removed %d", n)
		}
		want := []string{"a=0", "b=1", "f=5", "g=6", "h=7"}
		if got := collect(db.Iter(wtx)); !slices.Equal(got, want) {
			t.Fatalf("after DeleteRange = %v", got)
		}

		if err := db.Clear(wtx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if empty, err := db.IsEmpty(wtx); err != nil || !empty {
			t.Fatalf("IsEmpty = %v, %v", empty, err)
		}
		mustPut(t, db, wtx, "again", 1)
		if n, _ := db.Len(wtx); n != 1 {
			t.Fatalf("Len after Clear and Put = %d", n)
		}
	})
}

func TestNamedDatabases(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)

		rtx := beginRead(t, env)
		_, err := OpenDatabase(rtx, "users", codec.String{}, codec.Uint64{}, 0)
		wantCode(t, err, ErrNotFound)
		if !IsNotFound(err) || ClassOf(err) != ClassNotFound {
			t.Fatalf("missing database misclassified: %v", err)
		}
		rtx.Abort()

		wtx := beginWrite(t, env)
		users := openStrings(t, wtx, "users")
		items := openStrings(t, wtx, "items")
		def := openStrings(t, wtx, "")
		mustPut(t, users, wtx, "k", 1)
		mustPut(t, items, wtx, "k", 2)
		mustPut(t, def, wtx, "k", 3)
		mustCommit(t, wtx)

		wtx = beginWrite(t, env)
		defer wtx.Abort()
		names, err := wtx.ListDatabases()
		if err != nil || !slices.Equal(names, []string{"items", "users"}) {
			t.Fatalf("ListDatabases = %v, %v", names, err)
		}
		for db, want := range map[*stringDB]uint64{users: 1, items: 2, def: 3} {
			if v, _, _ := db.Get(wtx, "k"); v != want {
				t.Fatalf("%q: k = %d, want %d", db.Name(), v, want)
			}
		}

		if err := items.Drop(wtx); err != nil {
			t.Fatalf("Drop failed: %v", err)
		}
		if err := wtx.DropDatabase("users"); err != nil {
			t.Fatalf("DropDatabase failed: %v", err)
		}
		wantCode(t, wtx.DropDatabase("nope"), ErrNotFound)
		wantCode(t, def.Drop(wtx), ErrIncompatible)
		wantCode(t, wtx.DropDatabase(""), ErrIncompatible)

		names, _ = wtx.ListDatabases()
		if len(names) != 0 {
			t.Fatalf("ListDatabases after drop = %v", names)
		}
		_, err = OpenDatabase(wtx, "users", codec.String{}, codec.Uint64{}, 0)
		wantCode(t, err, ErrNotFound)
		if v, _, _ := def.Get(wtx, "k"); v != 3 {
			t.Fatal("dropping named databases touched the default database")
		}
	})
}

func TestOrderedLookups(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		var db *Database[uint64, string]
		err := env.Update(func(txn *Txn) error {
			var err error
			db, err = OpenDatabase(txn, "n", codec.Uint64{}, codec.String{}, Create)
			if err != nil {
				return err
			}
			for _, k := range []uint64{10, 20, 30} {
				if err := db.Put(txn, k, fmt.Sprint(k)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		rtx := beginRead(t, env)
		defer rtx.Abort()

		type lookup func(*Txn, uint64) (Entry[uint64, string], bool, error)
		cases := []struct {
			name string
			fn   lookup
			key  uint64
			want uint64
			ok   bool
		}{
			{"lt below", db.GetLowerThan, 10, 0, false},
			{"lt exact", db.GetLowerThan, 20, 10, true},
			{"lt between", db.GetLowerThan, 25, 20, true},
			{"lt above", db.GetLowerThan, 99, 30, true},
			{"le exact", db.GetLowerThanOrEqual, 20, 20, true},
			{"le below", db.GetLowerThanOrEqual, 5, 0, false},
			{"gt exact", db.GetGreaterThan, 20, 30, true},
			{"gt top", db.GetGreaterThan, 30, 0, false},
			{"gt below", db.GetGreaterThan, 0, 10, true},
			{"ge exact", db.GetGreaterThanOrEqual, 20, 20, true},
			{"ge between", db.GetGreaterThanOrEqual, 21, 30, true},
			{"ge above", db.GetGreaterThanOrEqual, 31, 0, false},
		}
		for _, tc := range cases {
			e, ok, err := tc.fn(rtx, tc.key)
			if err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			if ok != tc.ok || (ok && (e.Key != tc.want || e.Value != fmt.Sprint(tc.want))) {
				t.Errorf("%s(%d) = %+v, %v; want %d, %v", tc.name, tc.key, e, ok, tc.want, tc.ok)
			}
		}

		first, ok, _ := db.First(rtx)
		last, ok2, _ := db.Last(rtx)
		if !ok || !ok2 || first.Key != 10 || last.Key != 30 {
			t.Fatalf("First/Last = %+v/%+v", first, last)
		}
	})
}

func TestIterators(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := fillStrings(t, env, map[string]uint64{
			"a": 1, "ab": 2, "abc": 3, "abd": 4, "b": 5, "ba": 6, "c": 7,
		})
		rtx := beginRead(t, env)
		defer rtx.Abort()

		cases := []struct {
			name string
			open func() (*Iterator[string, uint64], error)
			want []string
		}{
			{"iter", func() (*Iterator[string, uint64], error) { return db.Iter(rtx) },
				[]string{"a=1", "ab=2", "abc=3", "abd=4", "b=5", "ba=6", "c=7"}},
			{"rev iter", func() (*Iterator[string, uint64], error) { return db.RevIter(rtx) },
				[]string{"c=7", "ba=6", "b=5", "abd=4", "abc=3", "ab=2", "a=1"}},
			{"between", func() (*Iterator[string, uint64], error) { return db.Range(rtx, Between("ab", "b")) },
				[]string{"ab=2", "abc=3", "abd=4"}},
			{"inclusive end", func() (*Iterator[string, uint64], error) {
				return db.Range(rtx, Range[string]{Start: Excl("ab"), End: Incl("b")})
			}, []string{"abc=3", "abd=4", "b=5"}},
			{"from", func() (*Iterator[string, uint64], error) { return db.Range(rtx, From("b")) },
				[]string{"b=5", "ba=6", "c=7"}},
			{"until", func() (*Iterator[string, uint64], error) { return db.Range(rtx, Until("ab")) },
				[]string{"a=1"}},
			{"missing start", func() (*Iterator[string, uint64], error) { return db.Range(rtx, From("aa")) },
				[]string{"ab=2", "abc=3", "abd=4", "b=5", "ba=6", "c=7"}},
			{"empty", func() (*Iterator[string, uint64], error) { return db.Range(rtx, Between("b", "a")) },
				nil},
			{"rev range", func() (*Iterator[string, uint64], error) { return db.RevRange(rtx, Between("ab", "b")) },
				[]string{"abd=4", "abc=3", "ab=2"}},
			{"rev inclusive", func() (*Iterator[string, uint64], error) {
				return db.RevRange(rtx, Range[string]{Start: Excl("a"), End: Incl("b")})
			}, []string{"b=5", "abd=4", "abc=3", "ab=2"}},
			{"rev past end", func() (*Iterator[string, uint64], error) { return db.RevRange(rtx, Until("zz")) },
				[]string{"c=7", "ba=6", "b=5", "abd=4", "abc=3", "ab=2", "a=1"}},
			{"prefix", func() (*Iterator[string, uint64], error) { return db.Prefix(rtx, "ab") },
				[]string{"ab=2", "abc=3", "abd=4"}},
			{"rev prefix", func() (*Iterator[string, uint64], error) { return db.RevPrefix(rtx, "ab") },
				[]string{"abd=4", "abc=3", "ab=2"}},
			{"prefix none", func() (*Iterator[string, uint64], error) { return db.Prefix(rtx, "x") },
				nil},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if got := collect(tc.open()); !slices.Equal(got, tc.want) {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			})
		}

		it, err := db.Iter(rtx)
		if err != nil {
			t.Fatal(err)
		}
		for k := range it.All() {
			if k == "ab" {
				break
			}
		}
		if !it.Next() || it.Key() != "abc" || it.Value() != 3 {
			t.Fatalf("iterator did not resume after break: %+v", it.Entry())
		}
		it.Close()
	})
}

func TestIteratorMutation(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := fillStrings(t, env, letters(8))

		wtx := beginWrite(t, env)
		defer wtx.Abort()

		it, err := db.Iter(wtx)
		if err != nil {
			t.Fatal(err)
		}
		for it.Next() {
			if it.Value()%2 == 0 {
				if err := it.DelCurrent(); err != nil {
					t.Fatalf("DelCurrent failed: %v", err)
				}
				continue
			}
			if err := it.PutCurrent(it.Value() * 10); err != nil {
				t.Fatalf("PutCurrent failed: %v", err)
			}
		}
		if err := it.Err(); err != nil {
			t.Fatal(err)
		}
		it.Close()

		want := []string{"b=10", "d=30", "f=50", "h=70"}
		if got := collect(db.Iter(wtx)); !slices.Equal(got, want) {
			t.Fatalf("after mutation = %v", got)
		}
	})
}

func TestCursorPositioning(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := fillStrings(t, env, letters(4))

		wtx := beginWrite(t, env)
		defer wtx.Abort()

		cur, err := db.Cursor(wtx)
		if err != nil {
			t.Fatal(err)
		}
		defer cur.Close()

		if _, ok, err := cur.Current(); ok || err != nil {
			t.Fatalf("Current on unset cursor = %v, %v", ok, err)
		}
		wantCode(t, cur.PutCurrent(1), ErrCursorUnset)
		wantCode(t, cur.DelCurrent(), ErrCursorUnset)

		if e, ok, _ := cur.Prev(); !ok || e.Key != "d" {
			t.Fatalf("Prev on unset cursor = %+v", e)
		}
		if _, ok, _ := cur.Seek("bb"); ok {
			t.Fatal("Seek found a missing key")
		}
		if e, ok, _ := cur.SeekRange("bb"); !ok || e.Key != "c" {
			t.Fatalf("SeekRange(bb) = %+v", e)
		}
		if e, ok, _ := cur.Seek("b"); !ok || e.Value != 1 {
			t.Fatalf("Seek(b) = %+v", e)
		}
		if e, ok, _ := cur.Current(); !ok || e.Key != "b" {
			t.Fatalf("Current = %+v", e)
		}

		if err := cur.PutCurrent(100); err != nil {
			t.Fatalf("PutCurrent failed: %v", err)
		}
		if v, _, _ := db.Get(wtx, "b"); v != 100 {
			t.Fatalf("PutCurrent stored %d", v)
		}

		if err := cur.DelCurrent(); err != nil {
			t.Fatalf("DelCurrent failed: %v", err)
		}
		if e, ok, _ := cur.Next(); !ok || e.Key != "c" {
			t.Fatalf("Next after delete = %+v", e)
		}

		if _, ok, _ := cur.Last(); !ok {
			t.Fatal("Last failed")
		}
		if _, ok, _ := cur.Next(); ok {
			t.Fatal("Next past Last moved")
		}
		if _, ok, _ := cur.Prev(); ok {
			t.Fatal("Prev moved after running off the end")
		}
		if e, ok, _ := cur.First(); !ok || e.Key != "a" {
			t.Fatalf("First = %+v", e)
		}

		rng, err := cur.Range(From("c"))
		if err != nil {
			t.Fatal(err)
		}
		if got := collect(rng, nil); !slices.Equal(got, []string{"c=2", "d=3"}) {
			t.Fatalf("cursor Range = %v", got)
		}
		if _, ok, err := cur.First(); !ok || err != nil {
			t.Fatal("closing a cursor Range closed the cursor")
		}

		cur.Close()
		_, _, err = cur.First()
		wantCode(t, err, ErrUseAfterFinish)
	})
}

func TestViewLifetime(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		wtx := beginWrite(t, env)
		defer wtx.Abort()
		db, err := OpenDatabase(wtx, "", codec.String{}, codec.Bytes{}, Create)
		if err != nil {
			t.Fatal(err)
		}
		mustPut(t, db, wtx, "k", []byte("hello"))

		view, ok, err := db.GetView(wtx, "k")
		if err != nil || !ok {
			t.Fatalf("GetView = %v, %v", ok, err)
		}
		if b, err := view.Bytes(); err != nil || string(b) != "hello" || view.Len() != 5 {
			t.Fatalf("Bytes = %q, %v", b, err)
		}
		owned, err := view.Copy()
		if err != nil {
			t.Fatal(err)
		}

		mustPut(t, db, wtx, "other", []byte("x"))
		_, err = view.Bytes()
		wantCode(t, err, ErrStaleView)
		_, err = view.Copy()
		wantCode(t, err, ErrStaleView)
		if string(owned) != "hello" {
			t.Fatalf("copy changed: %q", owned)
		}

		if _, ok, _ := db.GetView(wtx, "missing"); ok {
			t.Fatal("GetView found a missing key")
		}

		fresh, _, _ := db.GetView(wtx, "k")
		if b, err := fresh.Bytes(); err != nil || string(b) != "hello" {
			t.Fatalf("fresh view = %q, %v", b, err)
		}
		var zero View
		if b, err := zero.Bytes(); b != nil || err != nil {
			t.Fatal("zero View is not empty")
		}
	})
}

func TestDecodeCopies(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		wtx := beginWrite(t, env)
		defer wtx.Abort()
		db, err := OpenDatabase(wtx, "", codec.String{}, codec.Bytes{}, Create)
		if err != nil {
			t.Fatal(err)
		}
		mustPut(t, db, wtx, "k", []byte("value"))

		v, _, _ := db.Get(wtx, "k")
		v[0] = 'X'
		again, _, _ := db.Get(wtx, "k")
		if string(again) != "value" {
			t.Fatalf("decoded value aliases the store: %q", again)
		}

		zc, err := OpenDatabase(wtx, "", codec.String{}, codec.Bytes{}, ZeroCopy)
		if err != nil {
			t.Fatal(err)
		}
		if zc.Flags() != ZeroCopy {
			t.Fatalf("Flags = %#x", zc.Flags())
		}
		if v, ok, err := zc.Get(wtx, "k"); err != nil || !ok || string(v) != "value" {
			t.Fatalf("zero-copy Get = %q, %v, %v", v, ok, err)
		}
	})
}

type failingCodec struct{}

func (failingCodec) Encode(uint64) ([]byte, error) { return nil, errors.New("cannot encode") }
func (failingCodec) Decode([]byte) (uint64, error) { return 0, errors.New("cannot decode") }

func TestCodecErrors(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		wtx := beginWrite(t, env)
		defer wtx.Abort()

		raw, err := OpenDatabase(wtx, "", codec.String{}, codec.Bytes{}, Create)
		if err != nil {
			t.Fatal(err)
		}
		mustPut(t, raw, wtx, "short", []byte{1, 2, 3})

		typed := Remap(raw, codec.String{}, codec.Uint64{})
		_, _, err = typed.Get(wtx, "short")
		wantCode(t, err, ErrDecode)
		if !IsDecode(err) || ClassOf(err) != ClassCodec {
			t.Fatalf("decode failure misclassified: %v", err)
		}

		it, err := typed.Iter(wtx)
		if err != nil {
			t.Fatal(err)
		}
		if it.Next() {
			t.Fatal("iterator yielded an undecodable entry")
		}
		wantCode(t, it.Err(), ErrDecode)
		it.Close()

		bad := Remap(raw, codec.String{}, failingCodec{})
		wantCode(t, bad.Put(wtx, "k", 1), ErrEncode)
		if ok, _ := raw.Has(wtx, "k"); ok {
			t.Fatal("failed encode stored a value")
		}

		keys := Remap(raw, codec.String{}, codec.Ignore[uint64]{})
		if _, ok, err := keys.Get(wtx, "short"); err != nil || !ok {
			t.Fatalf("Ignore codec Get = %v, %v", ok, err)
		}
		if keys.Name() != "" || keys.Env() != env {
			t.Fatal("Remap lost handle identity")
		}
	})
}

func TestCursorSurvivesDeleteUnderIt(t *testing.T) {
	forEachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := fillStrings(t, env, letters(5))

		wtx := beginWrite(t, env)
		defer wtx.Abort()

		cur, err := db.Cursor(wtx)
		if err != nil {
			t.Fatal(err)
		}
		defer cur.Close()

		if _, ok, err := cur.Seek("b"); !ok || err != nil {
			t.Fatalf("Seek(b) = %v, %v", ok, err)
		}
		if ok, err := db.Delete(wtx, "b"); !ok || err != nil {
			t.Fatalf("Delete(b) = %v, %v", ok, err)
		}

		e, ok, err := cur.Current()
		if err != nil {
			t.Fatalf("Current after delete failed: %v", err)
		}
		if ok && e.Key == "b" {
			t.Fatal("Current returned the deleted entry")
		}

		var rest []string
		for {
			e, ok, err := cur.Next()
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if !ok {
				break
			}
			rest = append(rest, e.Key)
		}
		want := []string{"c", "d", "e"}
		if ok {
			// The engine moved the cursor onto the successor.
			want = want[1:]
		}
		if !slices.Equal(rest, want) {
			t.Fatalf("Next after delete walked %v, want %v", rest, want)
		}
	})
}
