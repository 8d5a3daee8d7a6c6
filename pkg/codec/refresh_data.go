package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/ssargent/refreshwal/pkg/xlog"
)

// OpRefreshData is the only op code of the refresh data record kind.
const OpRefreshData uint8 = 0x00

// RefreshDataHeaderSize is the fixed header size; the payload starts here.
// Header: [dbId(4)][matviewId(4)][flags(1)][pad(7)][prefix_size(8)][message_size(8)]
const RefreshDataHeaderSize = 32

var refreshDataLayout = NewLayout(
	Segment{Name: "prefix", Kind: Terminated},
	Segment{Name: "message", Kind: Raw},
)

// RefreshData announces that a materialized dataset was refreshed.
type RefreshData struct {
	DatabaseID  xlog.Oid
	MatviewID   xlog.Oid
	Flags       RefreshFlags
	PrefixSize  uint64 // includes the terminating NUL
	MessageSize uint64
	Prefix      string
	Message     []byte
}

// NewRefreshData fills in the sizes for the given values.
func NewRefreshData(dbID, matviewID xlog.Oid, flags RefreshFlags, prefix string, message []byte) *RefreshData {
	return &RefreshData{
		DatabaseID:  dbID,
		MatviewID:   matviewID,
		Flags:       flags,
		PrefixSize:  uint64(len(prefix)) + 1,
		MessageSize: uint64(len(message)),
		Prefix:      prefix,
		Message:     message,
	}
}

// Segments returns the header, prefix and message segments, each ready to
// be registered independently with the log.
func (r *RefreshData) Segments() ([][]byte, error) {
	if !r.Flags.Valid() {
		return nil, fmt.Errorf("%w: unknown flag bits %#x", ErrCorrupt, uint8(r.Flags))
	}
	parts, sizes, err := refreshDataLayout.Pack([][]byte{[]byte(r.Prefix), r.Message})
	if err != nil {
		return nil, err
	}
	r.PrefixSize, r.MessageSize = sizes[0], sizes[1]

	header := make([]byte, RefreshDataHeaderSize)
	binary.LittleEndian.PutUint32(header[0:], uint32(r.DatabaseID))
	binary.LittleEndian.PutUint32(header[4:], uint32(r.MatviewID))
	header[8] = byte(r.Flags)
	binary.LittleEndian.PutUint64(header[16:], r.PrefixSize)
	binary.LittleEndian.PutUint64(header[24:], r.MessageSize)

	return append([][]byte{header}, parts...), nil
}

// MarshalBinary returns the record bytes as the log stores them.
func (r *RefreshData) MarshalBinary() ([]byte, error) {
	segs, err := r.Segments()
	if err != nil {
		return nil, err
	}
	return join(segs), nil
}

// Size returns the encoded length: header plus both payload segments.
func (r *RefreshData) Size() int {
	return RefreshDataHeaderSize + len(r.Prefix) + 1 + len(r.Message)
}

// DecodeRefreshData parses a refresh data record. Message aliases data.
func DecodeRefreshData(data []byte) (*RefreshData, error) {
	if len(data) < RefreshDataHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), RefreshDataHeaderSize)
	}

	r := &RefreshData{}
	r.DatabaseID = xlog.Oid(binary.LittleEndian.Uint32(data[0:4]))
	r.MatviewID = xlog.Oid(binary.LittleEndian.Uint32(data[4:8]))
	r.Flags = RefreshFlags(data[8])
	r.PrefixSize = binary.LittleEndian.Uint64(data[16:24])
	r.MessageSize = binary.LittleEndian.Uint64(data[24:32])

	if !r.Flags.Valid() {
		return nil, &CorruptionError{Segment: "flags", Offset: 8, Reason: fmt.Sprintf("unknown bits %#x", uint8(r.Flags))}
	}

	values, err := refreshDataLayout.Unpack(data[RefreshDataHeaderSize:], []uint64{r.PrefixSize, r.MessageSize})
	if err != nil {
		return nil, err
	}
	r.Prefix = string(values[0])
	r.Message = values[1]
	return r, nil
}

func join(segs [][]byte) []byte {
	n := 0
	for _, s := range segs {
		n += len(s)
	}
	buf := make([]byte, 0, n)
	for _, s := range segs {
		buf = append(buf, s...)
	}
	return buf
}
