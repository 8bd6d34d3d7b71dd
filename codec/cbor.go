package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var anyMap = reflect.TypeOf(map[string]any(nil))

// CBOR encodes with fxamacker/cbor. Struct fields use their json tags when no
// cbor tag is set, so domain types need no extra tagging. The zero value has
// no modes; use NewCBOR or MustCBOR.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR builds a CBOR codec. deterministic selects RFC 8949 core
// deterministic encoding, so equal values always produce equal bytes.
// Times go out as RFC3339Nano strings. Untyped maps decode as
// map[string]any, matching the JSON codec, and duplicate map keys are
// rejected.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	opts := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		opts = cbor.CoreDetEncOptions()
	}
	opts.Time = cbor.TimeRFC3339Nano

	enc, err := opts.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dec, err := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		DefaultMapType: anyMap,
	}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: enc, dec: dec}, nil
}

func MustCBOR[V any](deterministic bool) CBOR[V] {
	cd, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return cd
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if err := c.dec.Unmarshal(b, &v); err != nil {
		return v, err
	}
	return v, nil
}
