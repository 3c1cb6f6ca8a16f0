package codec

import (
	"encoding/binary"
	"fmt"
)

// Integer codecs use fixed-width big-endian encodings. Signed integers flip
// the sign bit so that negative values sort before positive ones.

// Uint16 is the order-preserving codec for uint16.
type Uint16 struct{}

func (Uint16) Encode(v uint16) ([]byte, error) {
	return binary.BigEndian.AppendUint16(nil, v), nil
}

func (Uint16) Decode(b []byte) (uint16, error) {
	if err := checkLen(b, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32 is the order-preserving codec for uint32.
type Uint32 struct{}

func (Uint32) Encode(v uint32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, v), nil
}

func (Uint32) Decode(b []byte) (uint32, error) {
	if err := checkLen(b, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64 is the order-preserving codec for uint64.
type Uint64 struct{}

func (Uint64) Encode(v uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, v), nil
}

func (Uint64) Decode(b []byte) (uint64, error) {
	if err := checkLen(b, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Int32 is the order-preserving codec for int32.
type Int32 struct{}

func (Int32) Encode(v int32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, uint32(v)^(1<<31)), nil
}

func (Int32) Decode(b []byte) (int32, error) {
	if err := checkLen(b, 4); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b) ^ (1 << 31)), nil
}

// Int64 is the order-preserving codec for int64.
type Int64 struct{}

func (Int64) Encode(v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, uint64(v)^(1<<63)), nil
}

func (Int64) Decode(b []byte) (int64, error) {
	if err := checkLen(b, 8); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)), nil
}

func checkLen(b []byte, n int) error {
	if len(b) != n {
		return fmt.Errorf("codec: want %d bytes, got %d", n, len(b))
	}
	return nil
}
