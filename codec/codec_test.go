package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
	"pgregory.net/rapid"
)

// orderPreserving checks that encodings compare like the values they encode.
func orderPreserving[T any](t *rapid.T, c Codec[T], a, b T, cmp func(T, T) int) {
	ea, err := c.Encode(a)
	if err != nil {
		t.Fatalf("encode %v: %v", a, err)
	}
	eb, err := c.Encode(b)
	if err != nil {
		t.Fatalf("encode %v: %v", b, err)
	}
	if got, want := bytes.Compare(ea, eb), cmp(a, b); got != want {
		t.Fatalf("order of %v vs %v: bytes %d, values %d", a, b, got, want)
	}
}

func roundTrip[T comparable](t *rapid.T, c Codec[T], v T) {
	b, err := c.Encode(v)
	if err != nil {
		t.Fatalf("encode %v: %v", v, err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("decode %x: %v", b, err)
	}
	if got != v {
		t.Fatalf("round trip: got %v, want %v", got, v)
	}
}

func compare[T int32 | int64 | uint16 | uint32 | uint64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func TestIntegerCodecs(t *testing.T) {
	t.Run("Uint16", rapid.MakeCheck(func(t *rapid.T) {
		a, b := rapid.Uint16().Draw(t, "a"), rapid.Uint16().Draw(t, "b")
		roundTrip[uint16](t, Uint16{}, a)
		orderPreserving[uint16](t, Uint16{}, a, b, compare)
	}))
	t.Run("Uint32", rapid.MakeCheck(func(t *rapid.T) {
		a, b := rapid.Uint32().Draw(t, "a"), rapid.Uint32().Draw(t, "b")
		roundTrip[uint32](t, Uint32{}, a)
		orderPreserving[uint32](t, Uint32{}, a, b, compare)
	}))
	t.Run("Uint64", rapid.MakeCheck(func(t *rapid.T) {
		a, b := rapid.Uint64().Draw(t, "a"), rapid.Uint64().Draw(t, "b")
		roundTrip[uint64](t, Uint64{}, a)
		orderPreserving[uint64](t, Uint64{}, a, b, compare)
	}))
	t.Run("Int32", rapid.MakeCheck(func(t *rapid.T) {
		a, b := rapid.Int32().Draw(t, "a"), rapid.Int32().Draw(t, "b")
		roundTrip[int32](t, Int32{}, a)
		orderPreserving[int32](t, Int32{}, a, b, compare)
	}))
	t.Run("Int64", rapid.MakeCheck(func(t *rapid.T) {
		a, b := rapid.Int64().Draw(t, "a"), rapid.Int64().Draw(t, "b")
		roundTrip[int64](t, Int64{}, a)
		orderPreserving[int64](t, Int64{}, a, b, compare)
	}))
}

func TestIntegerDecodeLength(t *testing.T) {
	_, err := Uint64{}.Decode([]byte{1, 2, 3})
	require.Error(t, err)
	_, err = Int32{}.Decode(nil)
	require.Error(t, err)
	_, err = Uint16{}.Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSignedEncoding(t *testing.T) {
	neg, err := Int64{}.Encode(-1)
	require.NoError(t, err)
	zero, err := Int64{}.Encode(0)
	require.NoError(t, err)
	require.Equal(t, []byte{0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, neg)
	require.Equal(t, []byte{0x80, 0, 0, 0, 0, 0, 0, 0}, zero)
}

func TestPlainCodecs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		roundTrip[string](t, String{}, s)
	})

	b, err := Bytes{}.Encode([]byte("raw"))
	require.NoError(t, err)
	got, err := Bytes{}.Decode(b)
	require.NoError(t, err)
	require.Equal(t, []byte("raw"), got)

	u, err := Unit{}.Encode(struct{}{})
	require.NoError(t, err)
	require.Empty(t, u)
	_, err = Unit{}.Decode(u)
	require.NoError(t, err)
	_, err = Unit{}.Decode([]byte{1})
	require.Error(t, err)
}

func TestIgnore(t *testing.T) {
	v, err := Ignore[string]{}.Decode([]byte("anything"))
	require.NoError(t, err)
	require.Equal(t, "", v)

	_, err = Ignore[string]{}.Encode("x")
	require.ErrorIs(t, err, ErrCannotEncode)
}

type account struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

func TestJSON(t *testing.T) {
	c := JSON[account]{}
	b, err := c.Encode(account{Name: "alice", Balance: 7})
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"alice","balance":7}`, string(b))

	got, err := c.Decode(b)
	require.NoError(t, err)
	require.Equal(t, account{Name: "alice", Balance: 7}, got)

	_, err = c.Decode([]byte("{"))
	require.Error(t, err)
}

func TestProto(t *testing.T) {
	c := Proto[*timestamppb.Timestamp]{}
	ts := timestamppb.New(time.Unix(1700000000, 42))

	b, err := c.Encode(ts)
	require.NoError(t, err)
	again, err := c.Encode(ts)
	require.NoError(t, err)
	require.Equal(t, b, again, "marshal is deterministic")

	got, err := c.Decode(b)
	require.NoError(t, err)
	require.True(t, proto.Equal(ts, got))

	_, err = c.Decode([]byte{0xff, 0xff})
	require.Error(t, err)
}

func TestCompressionWrappers(t *testing.T) {
	codecs := map[string]Codec[string]{
		"snappy":  Snappy[string]{Inner: String{}},
		"zstd":    Zstd[string]{Inner: String{}},
		"lz4":     LZ4[string]{Inner: String{}},
		"lz4-hc":  LZ4[string]{Inner: String{}, Level: lz4.Level9},
		"stacked": Checksum[string]{Inner: Zstd[string]{Inner: String{}}},
	}
	long := strings.Repeat("compressible ", 512)

	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			for _, v := range []string{"", "x", long} {
				b, err := c.Encode(v)
				require.NoError(t, err)
				got, err := c.Decode(b)
				require.NoError(t, err)
				require.Equal(t, v, got)
			}

			b, err := c.Encode(long)
			require.NoError(t, err)
			require.Less(t, len(b), len(long))
		})
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	c := Snappy[[]byte]{Inner: Bytes{}}
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.SliceOf(rapid.Byte()).Draw(t, "v")
		b, err := c.Encode(v)
		if err != nil {
			t.Fatal(err)
		}
		got, err := c.Decode(b)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, v) {
			t.Fatalf("got %x, want %x", got, v)
		}
	})
}

func TestCorruptCompressed(t *testing.T) {
	_, err := Snappy[string]{Inner: String{}}.Decode([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
	_, err = Zstd[string]{Inner: String{}}.Decode([]byte("not zstd"))
	require.Error(t, err)
	_, err = LZ4[string]{Inner: String{}}.Decode([]byte("not lz4"))
	require.Error(t, err)
}

func TestChecksum(t *testing.T) {
	c := Checksum[uint64]{Inner: Uint64{}}
	b, err := c.Encode(99)
	require.NoError(t, err)
	require.Len(t, b, 16)

	got, err := c.Decode(b)
	require.NoError(t, err)
	require.Equal(t, uint64(99), got)

	b[3] ^= 0x01
	_, err = c.Decode(b)
	require.True(t, errors.Is(err, ErrChecksum))

	_, err = c.Decode([]byte{1, 2})
	require.ErrorIs(t, err, ErrChecksum)
}

func TestChecksumDoesNotAliasInner(t *testing.T) {
	c := Checksum[[]byte]{Inner: Bytes{}}
	in := make([]byte, 3, 64)
	copy(in, "abc")
	_, err := c.Encode(in)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), in[:3])
	require.Equal(t, byte(0), in[:4][3], "encode wrote into caller's spare capacity")
}
