package codec

import "fmt"

// Limit rejects payloads larger than MaxDecode bytes before Inner sees them.
// MaxDecode <= 0 disables the check. Encode is passed through.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (l Limit[V]) Encode(v V) ([]byte, error) { return l.Inner.Encode(v) }

func (l Limit[V]) Decode(b []byte) (V, error) {
	if l.MaxDecode > 0 && len(b) > l.MaxDecode {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), l.MaxDecode)
	}
	return l.Inner.Decode(b)
}
