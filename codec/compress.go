package codec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Snappy compresses the encoding of Inner with Snappy block format.
type Snappy[T any] struct {
	Inner Codec[T]
}

func (c Snappy[T]) Encode(v T) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, b), nil
}

func (c Snappy[T]) Decode(b []byte) (T, error) {
	raw, err := snappy.Decode(nil, b)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("codec: snappy: %w", err)
	}
	return c.Inner.Decode(raw)
}

// The zstd encoder and decoder are safe for concurrent EncodeAll and
// DecodeAll calls and expensive to build, so one of each is shared.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

// Zstd compresses the encoding of Inner with Zstandard.
type Zstd[T any] struct {
	Inner Codec[T]
}

func (c Zstd[T]) Encode(v T) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	enc, err := zstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("codec: zstd encoder: %w", err)
	}
	return enc.EncodeAll(b, nil), nil
}

func (c Zstd[T]) Decode(b []byte) (T, error) {
	var zero T
	dec, err := zstdDecoder()
	if err != nil {
		return zero, fmt.Errorf("codec: zstd decoder: %w", err)
	}
	raw, err := dec.DecodeAll(b, nil)
	if err != nil {
		return zero, fmt.Errorf("codec: zstd: %w", err)
	}
	return c.Inner.Decode(raw)
}

// LZ4 compresses the encoding of Inner with the LZ4 frame format.
type LZ4[T any] struct {
	Inner Codec[T]

	// Level is the compression level; zero means lz4.Fast.
	Level lz4.CompressionLevel
}

func (c LZ4[T]) Encode(v T) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if c.Level != lz4.Fast {
		if err := w.Apply(lz4.CompressionLevelOption(c.Level)); err != nil {
			return nil, fmt.Errorf("codec: lz4 apply level: %w", err)
		}
	}
	if _, err := w.Write(b); err != nil {
		return nil, fmt.Errorf("codec: lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c LZ4[T]) Decode(b []byte) (T, error) {
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(b)))
	if err != nil {
		var zero T
		return zero, fmt.Errorf("codec: lz4: %w", err)
	}
	return c.Inner.Decode(raw)
}
