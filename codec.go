package tdbx

// Encoder turns a typed key or value into bytes. For keys, the byte order of
// encodings defines iteration order.
type Encoder[T any] interface {
	Encode(v T) ([]byte, error)
}

// Decoder turns stored bytes back into a typed value. The input is only
// valid for the duration of the call unless the database was opened with
// ZeroCopy, in which case it aliases engine memory until the transaction
// ends or writes.
type Decoder[T any] interface {
	Decode(b []byte) (T, error)
}

// Codec encodes and decodes one type. Implementations must be stateless and
// safe for concurrent use, and Decode(Encode(v)) must yield v.
//
// Ready-made codecs live in the codec package.
type Codec[T any] interface {
	Encoder[T]
	Decoder[T]
}
