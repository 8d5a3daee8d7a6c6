package xlog

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// recordHeaderSize is the encoded size of Record's metadata in MarshalBinary:
// LSN(8) XID(4) Origin(2) RmID(1) Info(1) Flags(1) reserved(3)
const recordHeaderSize = 20

// ErrShortRecord is returned when a marshalled record is truncated.
var ErrShortRecord = errors.New("xlog: record too short")

// Record is the reader-side view of one logged record.
type Record struct {
	LSN    LSN
	XID    TransactionID
	Origin OriginID
	RmID   RmgrID
	Info   uint8
	Flags  RecordFlag
	Data   []byte
}

// OpCode returns the resource-manager specific part of Info.
func (r *Record) OpCode() uint8 {
	return r.Info &^ InfoMask
}

// MarshalBinary encodes the record with its metadata.
// Format: [LSN(8)][XID(4)][Origin(2)][RmID(1)][Info(1)][Flags(1)][reserved(3)][Data]
func (r *Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, recordHeaderSize+len(r.Data))
	binary.LittleEndian.PutUint64(buf[0:], uint64(r.LSN))
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.XID))
	binary.LittleEndian.PutUint16(buf[12:], uint16(r.Origin))
	buf[14] = byte(r.RmID)
	buf[15] = r.Info
	buf[16] = byte(r.Flags)
	copy(buf[recordHeaderSize:], r.Data)
	return buf, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary. Data is copied.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < recordHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortRecord, len(data))
	}
	r.LSN = LSN(binary.LittleEndian.Uint64(data[0:8]))
	r.XID = TransactionID(binary.LittleEndian.Uint32(data[8:12]))
	r.Origin = OriginID(binary.LittleEndian.Uint16(data[12:14]))
	r.RmID = RmgrID(data[14])
	r.Info = data[15]
	r.Flags = RecordFlag(data[16])
	r.Data = append([]byte(nil), data[recordHeaderSize:]...)
	return nil
}

// RecordReader yields records in log order and io.EOF at the end.
type RecordReader interface {
	ReadNext() (*Record, error)
}
