package wal

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ssargent/refreshwal/pkg/xlog"
)

// Writer handles append-only writes to the log file. It implements
// xlog.Inserter.
type Writer struct {
	file       *os.File
	writer     *bufio.Writer
	fsyncTimer *time.Timer
	config     WriterConfig
	mutex      sync.Mutex
	offset     int64 // Current write offset
	closed     bool
}

var _ xlog.Inserter = (*Writer)(nil)

// Open recovers the log at config.FilePath and returns a writer positioned
// after the last intact record.
func Open(config WriterConfig) (*Writer, *RecoveryResult, error) {
	result, err := Recover(config.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("recover %s: %w", config.FilePath, err)
	}
	w, err := NewWriter(config)
	if err != nil {
		return nil, nil, err
	}
	return w, result, nil
}

// NewWriter creates a new log writer with the given configuration. The file
// is not validated; use Open unless the file is known to be intact.
func NewWriter(config WriterConfig) (*Writer, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	size := stat.Size()
	switch {
	case size == 0:
		if _, err := file.Write(magic[:]); err != nil {
			file.Close()
			return nil, err
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return nil, err
		}
		size = int64(len(magic))
	case size < int64(len(magic)):
		file.Close()
		return nil, ErrBadMagic
	}

	// Seek to end for append behavior
	if _, err := file.Seek(size, 0); err != nil {
		file.Close()
		return nil, err
	}

	bufSize := config.BufferSize
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}

	writer := &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, bufSize),
		config: config,
		offset: size,
	}

	// Set up fsync timer if interval is configured
	if config.FsyncInterval > 0 {
		writer.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			writer.mutex.Lock()
			defer writer.mutex.Unlock()
			if !writer.closed {
				writer.sync() // Ignore error in timer callback
			}
		})
	}

	return writer, nil
}

// Insert appends the assembled record and returns the LSN it starts at.
func (w *Writer) Insert(ctx context.Context, rmid xlog.RmgrID, info uint8, in *xlog.Insertion) (xlog.LSN, error) {
	if err := ctx.Err(); err != nil {
		return xlog.InvalidLSN, err
	}
	if in.Len() > MaxRecordSize {
		return xlog.InvalidLSN, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, in.Len())
	}

	start := time.Now()
	frame := encodeFrame(frameHeader{
		xid:    in.XID(),
		origin: in.Origin(),
		rmid:   rmid,
		info:   info,
		flags:  in.Flags(),
	}, in.Bytes())

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return xlog.InvalidLSN, ErrClosed
	}

	n, err := w.writer.Write(frame)
	if err != nil {
		return xlog.InvalidLSN, err
	}

	recordLSN := xlog.LSN(w.offset)
	w.offset += int64(n)

	// Sync immediately if no fsync interval configured
	if w.config.FsyncInterval == 0 {
		if err := w.sync(); err != nil {
			return xlog.InvalidLSN, err
		}
	} else if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.config.FsyncInterval)
	}

	w.config.Metrics.RecordInsert(w.rmgrName(rmid), in.Len(), time.Since(start))
	return recordLSN, nil
}

func (w *Writer) rmgrName(id xlog.RmgrID) string {
	if w.config.RmgrName != nil {
		return w.config.RmgrName(id)
	}
	return strconv.Itoa(int(id))
}

// Sync forces a fsync to disk
func (w *Writer) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.sync()
}

// sync performs the actual fsync operation (internal method)
func (w *Writer) sync() error {
	// Flush buffered writes
	if err := w.writer.Flush(); err != nil {
		return err
	}

	// Fsync to disk
	return w.file.Sync()
}

// Close closes the log writer and ensures all data is synced
func (w *Writer) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	// Cancel fsync timer
	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}

	// Final sync
	if err := w.sync(); err != nil {
		w.file.Close()
		return err
	}

	return w.file.Close()
}

// EndLSN returns the position the next record will be written at
func (w *Writer) EndLSN() xlog.LSN {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return xlog.LSN(w.offset)
}

// Path returns the file path
func (w *Writer) Path() string {
	return w.config.FilePath
}
