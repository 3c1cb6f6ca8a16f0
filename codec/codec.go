// Package codec provides ready-made key and value codecs for tdbx databases.
//
// Every codec here satisfies tdbx.Codec. Key codecs preserve order: the byte
// order of encodings matches the natural order of the values, so iteration
// over a database follows value order. The compression and checksum
// wrappers do not preserve order and are meant for values.
package codec

import (
	"errors"
	"fmt"
)

// Codec mirrors tdbx.Codec.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

// ErrCannotEncode is returned by decode-only codecs.
var ErrCannotEncode = errors.New("codec: decode-only codec")

// Bytes stores byte slices verbatim.
type Bytes struct{}

func (Bytes) Encode(v []byte) ([]byte, error) { return v, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores strings as their UTF-8 bytes.
type String struct{}

func (String) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

// Unit stores struct{} as the empty value, for set-like databases.
type Unit struct{}

func (Unit) Encode(struct{}) ([]byte, error) { return []byte{}, nil }

func (Unit) Decode(b []byte) (struct{}, error) {
	if len(b) != 0 {
		return struct{}{}, fmt.Errorf("codec: unit value has %d bytes", len(b))
	}
	return struct{}{}, nil
}

// Ignore skips decoding and yields the zero T. It is useful to walk keys
// without paying for value decoding, typically through tdbx.Remap.
type Ignore[T any] struct{}

func (Ignore[T]) Encode(T) ([]byte, error) { return nil, ErrCannotEncode }

func (Ignore[T]) Decode([]byte) (T, error) {
	var zero T
	return zero, nil
}
