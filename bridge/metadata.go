package bridge

import (
	"bytes"
	"encoding/binary"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/endian"
)

// encodeMetadata serializes field metadata in the C Data Interface layout:
// int32 pair count, then (int32 len, bytes) for every key and value, all in
// native byte order. Empty metadata encodes to nil (a NULL pointer).
func encodeMetadata(md arrow.Metadata) []byte {
	if md.Len() == 0 {
		return nil
	}
	keys, values := md.Keys(), md.Values()

	size := 4
	for i := range keys {
		size += 8 + len(keys[i]) + len(values[i])
	}
	var b bytes.Buffer
	b.Grow(size)

	_ = binary.Write(&b, endian.Native, int32(len(keys)))
	for i := range keys {
		_ = binary.Write(&b, endian.Native, int32(len(keys[i])))
		b.WriteString(keys[i])
		_ = binary.Write(&b, endian.Native, int32(len(values[i])))
		b.WriteString(values[i])
	}
	return b.Bytes()
}

// metadataSize walks the length prefixes of an encoded block through peek,
// which returns 4 bytes at the given offset, and reports the total size.
func metadataSize(peek func(off int) []byte) (int, error) {
	n := int32(endian.Native.Uint32(peek(0)))
	if n < 0 {
		return 0, malformed("negative metadata pair count %d", n)
	}
	off := 4
	for i := int32(0); i < 2*n; i++ {
		l := int32(endian.Native.Uint32(peek(off)))
		if l < 0 {
			return 0, malformed("negative metadata entry length %d", l)
		}
		off += 4 + int(l)
	}
	return off, nil
}

func decodeMetadata(b []byte) (arrow.Metadata, error) {
	if len(b) == 0 {
		return arrow.Metadata{}, nil
	}
	next := func() (string, error) {
		if len(b) < 4 {
			return "", malformed("truncated metadata")
		}
		l := int(int32(endian.Native.Uint32(b)))
		b = b[4:]
		if l < 0 || l > len(b) {
			return "", malformed("metadata entry length %d out of range", l)
		}
		s := string(b[:l])
		b = b[l:]
		return s, nil
	}

	if len(b) < 4 {
		return arrow.Metadata{}, malformed("truncated metadata")
	}
	n := int(int32(endian.Native.Uint32(b)))
	b = b[4:]
	if n < 0 {
		return arrow.Metadata{}, malformed("negative metadata pair count %d", n)
	}
	keys := make([]string, 0, n)
	values := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k, err := next()
		if err != nil {
			return arrow.Metadata{}, err
		}
		v, err := next()
		if err != nil {
			return arrow.Metadata{}, err
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	return arrow.NewMetadata(keys, values), nil
}
