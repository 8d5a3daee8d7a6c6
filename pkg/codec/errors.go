package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a buffer ends before the header or the
	// payload its header declares.
	ErrTruncated = errors.New("codec: record truncated")
	// ErrCorrupt is returned when a record's bytes contradict its layout.
	ErrCorrupt = errors.New("codec: record corrupt")
	// ErrEmbeddedNUL is returned when a terminated segment value contains a
	// NUL byte and so could not be recovered from the log.
	ErrEmbeddedNUL = errors.New("codec: terminated segment contains NUL")
	// ErrSegmentCount is returned when a layout receives the wrong number of
	// values or sizes.
	ErrSegmentCount = errors.New("codec: segment count mismatch")
)

// CorruptionError pinpoints the segment whose bytes violate the layout.
type CorruptionError struct {
	Segment string // segment or field name
	Offset  int    // record offset for header fields, payload offset for segments
	Reason  string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("codec: corrupt %s at offset %d: %s", e.Segment, e.Offset, e.Reason)
}

// Unwrap lets errors.Is(err, ErrCorrupt) match.
func (e *CorruptionError) Unwrap() error {
	return ErrCorrupt
}
