package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// JSON stores values as JSON documents.
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[T]) Decode(b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("codec: json: %w", err)
	}
	return v, nil
}

// Proto stores protobuf messages in deterministic wire format. M is the
// message pointer type, for example *pb.Account.
type Proto[M proto.Message] struct{}

var protoMarshal = proto.MarshalOptions{Deterministic: true}

func (Proto[M]) Encode(m M) ([]byte, error) {
	return protoMarshal.Marshal(m)
}

func (Proto[M]) Decode(b []byte) (M, error) {
	var zero M
	m, ok := zero.ProtoReflect().Type().New().Interface().(M)
	if !ok {
		return zero, fmt.Errorf("codec: proto: cannot instantiate %T", zero)
	}
	if err := proto.Unmarshal(b, m); err != nil {
		return zero, fmt.Errorf("codec: proto: %w", err)
	}
	return m, nil
}
