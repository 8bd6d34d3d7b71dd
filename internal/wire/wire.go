package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	version   byte = 1
	kindEntry byte = 1

	maxTags   = math.MaxUint16
	maxTagLen = math.MaxUint16

	// magic(4) | ver(1) | kind(1) | expires(8) | ntags(2)
	headerLen = 4 + 1 + 1 + 8 + 2
)

var (
	ErrCorrupt = errors.New("tagcache: corrupt entry")
	magic4     = [...]byte{'T', 'A', 'G', 'C'}
)

// Entry is the framed value stored in a provider.
// ExpiresAt is unix nanoseconds; 0 means no expiry.
type Entry struct {
	ExpiresAt int64
	Tags      []string
	Payload   []byte
}

// Expired reports whether the entry is past its deadline at now (unix nanos).
func (e Entry) Expired(now int64) bool {
	return e.ExpiresAt != 0 && now >= e.ExpiresAt
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames an entry:
//
//	magic(4) | ver(1) | kind(1) | expires(i64 be) | ntags(u16 be)
//	tagLen(u16 be) | tag(tagLen) * ntags
//	vlen(u32 be) | payload(vlen)
func Encode(e Entry) ([]byte, error) {
	if len(e.Tags) > maxTags {
		return nil, fmt.Errorf("tagcache: too many tags: %d", len(e.Tags))
	}
	total := headerLen + 4 + len(e.Payload)
	for _, t := range e.Tags {
		if l := len(t); l == 0 || l > maxTagLen {
			return nil, fmt.Errorf("tagcache: invalid tag length %d", l)
		}
		total += 2 + len(t)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Tags)))
	buf.Write(u2[:])
	for _, t := range e.Tags {
		binary.BigEndian.PutUint16(u2[:], uint16(len(t)))
		buf.Write(u2[:])
		buf.WriteString(t)
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// Decode parses a framed entry. The returned payload aliases b.
func Decode(b []byte) (Entry, error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}
	off := 6

	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2

	var tags []string
	if n > 0 {
		tags = make([]string, 0, n)
	}
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return Entry{}, ErrCorrupt
		}
		tlen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if tlen == 0 || tlen > len(b)-off {
			return Entry{}, ErrCorrupt
		}
		tags = append(tags, string(b[off:off+tlen]))
		off += tlen
	}

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{ExpiresAt: exp, Tags: tags, Payload: b[off : off+vlen]}, nil
}
