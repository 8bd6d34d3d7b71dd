package codec

import "fmt"

// Codec turns cached values into bytes and back. The cache frames the bytes
// itself, so a codec only sees the payload.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by Named.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
	NameCBOR    = "cbor"
)

// Named resolves a configured codec name. An empty name means JSON.
func Named[V any](name string) (Codec[V], error) {
	switch name {
	case "", NameJSON:
		return JSON[V]{}, nil
	case NameMsgpack:
		return Msgpack[V]{}, nil
	case NameCBOR:
		cd, err := NewCBOR[V](false)
		if err != nil {
			return nil, err
		}
		return cd, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
