package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/xxh3"
)

// ErrChecksum reports a stored value whose digest does not match.
var ErrChecksum = errors.New("codec: checksum mismatch")

const checksumSize = 8

// Checksum appends the xxh3 digest of the encoding of Inner and verifies it
// on decode.
type Checksum[T any] struct {
	Inner Codec[T]
}

func (c Checksum[T]) Encode(v T) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b), len(b)+checksumSize)
	copy(out, b)
	return binary.BigEndian.AppendUint64(out, xxh3.Hash(b)), nil
}

func (c Checksum[T]) Decode(b []byte) (T, error) {
	var zero T
	if len(b) < checksumSize {
		return zero, fmt.Errorf("%w: value has %d bytes", ErrChecksum, len(b))
	}
	body, sum := b[:len(b)-checksumSize], b[len(b)-checksumSize:]
	if want, got := binary.BigEndian.Uint64(sum), xxh3.Hash(body); want != got {
		return zero, fmt.Errorf("%w: stored %016x, computed %016x", ErrChecksum, want, got)
	}
	return c.Inner.Decode(body)
}
