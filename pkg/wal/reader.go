package wal

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/ssargent/refreshwal/pkg/xlog"
)

// Reader provides sequential access to records in a log file
type Reader struct {
	file   *os.File
	reader *bufio.Reader
	lsn    xlog.LSN
	config ReaderConfig
}

// NewReader opens the log file and positions the reader at config.StartLSN.
// An empty file is a valid, empty log.
func NewReader(config ReaderConfig) (*Reader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if err := checkMagic(file); err != nil {
		file.Close()
		return nil, err
	}

	r := &Reader{file: file, config: config}
	start := config.StartLSN
	if start < FirstLSN {
		start = FirstLSN
	}
	if err := r.Seek(start); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func checkMagic(f *os.File) error {
	var buf [len(magic)]byte
	n, err := f.ReadAt(buf[:], 0)
	if n == 0 && errors.Is(err, io.EOF) {
		return nil
	}
	if n < len(buf) || !bytes.Equal(buf[:], magic[:]) {
		return ErrBadMagic
	}
	return nil
}

// ReadNext reads the record at the current position. A partial header at
// the end of the file is treated as the end of the log; a partial body or a
// checksum mismatch is corruption.
func (r *Reader) ReadNext() (*xlog.Record, error) {
	header := make([]byte, FrameHeaderSize)
	n, err := io.ReadFull(r.reader, header)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	h := decodeFrameHeader(header)
	if err := r.checkDataLen(h, int64(r.lsn)+FrameHeaderSize); err != nil {
		return nil, err
	}

	data := make([]byte, h.dataLen)
	m, err := io.ReadFull(r.reader, data)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrCorruption
		}
		return nil, err
	}

	rec, err := h.record(r.lsn, header, data)
	if err != nil {
		return nil, err
	}
	r.lsn += xlog.LSN(n + m)
	return rec, nil
}

// ReadAt reads the record that starts at lsn without moving the reader.
func (r *Reader) ReadAt(lsn xlog.LSN) (*xlog.Record, error) {
	if lsn < FirstLSN {
		return nil, ErrCorruption
	}

	header := make([]byte, FrameHeaderSize)
	if _, err := r.file.ReadAt(header, int64(lsn)); err != nil {
		if err == io.EOF {
			return nil, ErrCorruption
		}
		return nil, err
	}

	h := decodeFrameHeader(header)
	if err := r.checkDataLen(h, int64(lsn)+FrameHeaderSize); err != nil {
		return nil, err
	}

	data := make([]byte, h.dataLen)
	if _, err := r.file.ReadAt(data, int64(lsn)+FrameHeaderSize); err != nil {
		if err == io.EOF {
			return nil, ErrCorruption
		}
		return nil, err
	}

	return h.record(lsn, header, data)
}

// checkDataLen rejects a header whose data would run past the record size
// limit or the end of the file. The header is not yet checksummed, so its
// length is bounded before any buffer is allocated for it.
func (r *Reader) checkDataLen(h frameHeader, dataOff int64) error {
	if h.dataLen > MaxRecordSize {
		return ErrCorruption
	}
	info, err := r.file.Stat()
	if err != nil {
		return err
	}
	if int64(h.dataLen) > info.Size()-dataOff {
		return ErrCorruption
	}
	return nil
}

// Seek sets the read position
func (r *Reader) Seek(lsn xlog.LSN) error {
	if _, err := r.file.Seek(int64(lsn), io.SeekStart); err != nil {
		return err
	}

	r.reader = bufio.NewReader(r.file) // Recreate reader to clear buffer
	r.lsn = lsn
	return nil
}

// LSN returns the position of the next record ReadNext will return
func (r *Reader) LSN() xlog.LSN {
	return r.lsn
}

// Iterator returns a streaming iterator for records
func (r *Reader) Iterator() RecordIterator {
	return &recordIterator{reader: r}
}

// Close closes the log reader
func (r *Reader) Close() error {
	return r.file.Close()
}

// recordIterator implements RecordIterator for streaming access
type recordIterator struct {
	reader *Reader
	record *xlog.Record
	err    error
}

func (it *recordIterator) Next() bool {
	it.record, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *recordIterator) Record() *xlog.Record {
	return it.record
}

// Err returns the error that stopped iteration, or nil at a clean end.
func (it *recordIterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}

func (it *recordIterator) Close() error {
	// Don't close the underlying reader as it's owned by the caller
	return nil
}
