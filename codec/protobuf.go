package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

var errNoCtor = errors.New("codec: protobuf codec has no message constructor")

// Protobuf encodes proto messages. ctor returns an empty message to decode into.
type Protobuf[T proto.Message] struct {
	ctor func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor}
}

func (p Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (p Protobuf[T]) Decode(b []byte) (T, error) {
	if p.ctor == nil {
		var zero T
		return zero, errNoCtor
	}
	m := p.ctor()
	if err := proto.Unmarshal(b, m); err != nil {
		var zero T
		return zero, err
	}
	return m, nil
}
