package codec

import (
	"bytes"
	"fmt"
)

// SegmentKind says how a segment is delimited inside the payload.
type SegmentKind uint8

const (
	// Terminated segments are stored with a trailing NUL; their size
	// includes it.
	Terminated SegmentKind = iota
	// Raw segments are stored verbatim; their size is the value length.
	Raw
)

func (k SegmentKind) String() string {
	switch k {
	case Terminated:
		return "terminated"
	case Raw:
		return "raw"
	default:
		return fmt.Sprintf("SegmentKind(%d)", uint8(k))
	}
}

// Segment describes one variable-length region of a payload.
type Segment struct {
	Name string
	Kind SegmentKind
}

// Layout is the ordered list of segments packed contiguously after a
// record's fixed header. The header carries one size per segment.
type Layout struct {
	Segments []Segment
}

// NewLayout builds a layout from segment descriptors.
func NewLayout(segments ...Segment) Layout {
	return Layout{Segments: segments}
}

// Pack turns one value per segment into the bytes to register with the log
// and the sizes to store in the header. Terminated values gain their NUL.
func (l Layout) Pack(values [][]byte) ([][]byte, []uint64, error) {
	if len(values) != len(l.Segments) {
		return nil, nil, fmt.Errorf("%w: layout has %d segments, got %d values",
			ErrSegmentCount, len(l.Segments), len(values))
	}

	parts := make([][]byte, len(values))
	sizes := make([]uint64, len(values))
	for i, seg := range l.Segments {
		v := values[i]
		switch seg.Kind {
		case Terminated:
			if bytes.IndexByte(v, 0) >= 0 {
				return nil, nil, fmt.Errorf("%w: %s", ErrEmbeddedNUL, seg.Name)
			}
			b := make([]byte, len(v)+1)
			copy(b, v)
			parts[i] = b
		default:
			parts[i] = v
		}
		sizes[i] = uint64(len(parts[i]))
	}
	return parts, sizes, nil
}

// PayloadSize is the sum of the declared segment sizes.
func PayloadSize(sizes []uint64) uint64 {
	var total uint64
	for _, s := range sizes {
		total += s
	}
	return total
}

// Unpack splits payload according to sizes and returns the segment values
// with terminators stripped. Returned slices alias payload. The payload must
// be exactly as long as the sizes declare.
func (l Layout) Unpack(payload []byte, sizes []uint64) ([][]byte, error) {
	if len(sizes) != len(l.Segments) {
		return nil, fmt.Errorf("%w: layout has %d segments, got %d sizes",
			ErrSegmentCount, len(l.Segments), len(sizes))
	}

	remaining := uint64(len(payload))
	values := make([][]byte, len(sizes))
	offset := 0
	for i, seg := range l.Segments {
		size := sizes[i]
		if size > remaining {
			return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left",
				ErrTruncated, seg.Name, size, offset, remaining)
		}
		span := payload[offset : offset+int(size)]

		if seg.Kind == Terminated {
			if size == 0 {
				return nil, &CorruptionError{Segment: seg.Name, Offset: offset, Reason: "missing terminator"}
			}
			if span[size-1] != 0 {
				return nil, &CorruptionError{Segment: seg.Name, Offset: offset, Reason: "last byte is not NUL"}
			}
			span = span[:size-1]
			if bytes.IndexByte(span, 0) >= 0 {
				return nil, &CorruptionError{Segment: seg.Name, Offset: offset, Reason: "embedded NUL"}
			}
		}

		values[i] = span
		offset += int(size)
		remaining -= size
	}

	if remaining != 0 {
		return nil, &CorruptionError{Segment: "payload", Offset: offset,
			Reason: fmt.Sprintf("%d trailing bytes", remaining)}
	}
	return values, nil
}
