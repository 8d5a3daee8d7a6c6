package codec

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Transaction finish op codes, in the high info bits.
const (
	OpXactCommit uint8 = 0x00
	OpXactAbort  uint8 = 0x20
)

// XactFinishSize is the encoded size of a commit or abort record.
const XactFinishSize = 8

// XactFinish is the body of a commit or abort record: the finish time in
// microseconds since the Unix epoch.
type XactFinish struct {
	Time time.Time
}

func NewXactFinish(t time.Time) *XactFinish {
	return &XactFinish{Time: t.UTC().Truncate(time.Microsecond)}
}

func (x *XactFinish) MarshalBinary() ([]byte, error) {
	buf := make([]byte, XactFinishSize)
	binary.LittleEndian.PutUint64(buf, uint64(x.Time.UnixMicro()))
	return buf, nil
}

// DecodeXactFinish parses a commit or abort record body.
func DecodeXactFinish(data []byte) (*XactFinish, error) {
	if len(data) < XactFinishSize {
		return nil, fmt.Errorf("%w: transaction finish needs %d bytes, have %d", ErrTruncated, XactFinishSize, len(data))
	}
	if len(data) > XactFinishSize {
		return nil, fmt.Errorf("%w: %d trailing bytes after transaction finish", ErrCorrupt, len(data)-XactFinishSize)
	}
	micros := int64(binary.LittleEndian.Uint64(data))
	return &XactFinish{Time: time.UnixMicro(micros).UTC()}, nil
}
