package wal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/ssargent/refreshwal/pkg/xlog"
)

// Frame header layout:
//
//	[CRC32:4][DataLen:4][XID:4][Origin:2][RmID:1][Info:1][Flags:1][reserved:3]
//
// The checksum covers header bytes 4..20 followed by the data.

type frameHeader struct {
	crc     uint32
	dataLen uint32
	xid     xlog.TransactionID
	origin  xlog.OriginID
	rmid    xlog.RmgrID
	info    uint8
	flags   xlog.RecordFlag
}

func encodeFrame(h frameHeader, data []byte) []byte {
	buf := make([]byte, FrameHeaderSize+len(data))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(data)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(h.xid))
	binary.LittleEndian.PutUint16(buf[12:], uint16(h.origin))
	buf[14] = byte(h.rmid)
	buf[15] = h.info
	buf[16] = byte(h.flags)
	copy(buf[FrameHeaderSize:], data)

	binary.LittleEndian.PutUint32(buf[0:], checksum(buf[4:FrameHeaderSize], data))
	return buf
}

func decodeFrameHeader(buf []byte) frameHeader {
	return frameHeader{
		crc:     binary.LittleEndian.Uint32(buf[0:]),
		dataLen: binary.LittleEndian.Uint32(buf[4:]),
		xid:     xlog.TransactionID(binary.LittleEndian.Uint32(buf[8:])),
		origin:  xlog.OriginID(binary.LittleEndian.Uint16(buf[12:])),
		rmid:    xlog.RmgrID(buf[14]),
		info:    buf[15],
		flags:   xlog.RecordFlag(buf[16]),
	}
}

func checksum(header, data []byte) uint32 {
	crc := crc32.ChecksumIEEE(header)
	return crc32.Update(crc, crc32.IEEETable, data)
}

// record validates the checksum and builds the log record for a frame read
// at lsn. header is the raw 20 byte header.
func (h frameHeader) record(lsn xlog.LSN, header, data []byte) (*xlog.Record, error) {
	if checksum(header[4:FrameHeaderSize], data) != h.crc {
		return nil, ErrCorruption
	}
	return &xlog.Record{
		LSN:    lsn,
		XID:    h.xid,
		Origin: h.origin,
		RmID:   h.rmid,
		Info:   h.info,
		Flags:  h.flags,
		Data:   data,
	}, nil
}
