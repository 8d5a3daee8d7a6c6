package wal

import (
	"errors"
	"time"

	"github.com/ssargent/refreshwal/pkg/metrics"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

const (
	// FrameHeaderSize is the size of the header in front of every record.
	FrameHeaderSize = 20

	// MaxRecordSize bounds the data length of a single record.
	MaxRecordSize = 64 << 20
)

// magic opens every log file. The last byte is the format version.
var magic = [8]byte{'R', 'F', 'W', 'A', 'L', 0x00, 0x00, 0x01}

// FirstLSN is the position of the first record in a log file.
const FirstLSN = xlog.LSN(len(magic))

// WriterConfig holds configuration for the log writer
type WriterConfig struct {
	FilePath      string        // Path to the log file
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size

	Metrics *metrics.Metrics
	// RmgrName labels insert metrics. Nil falls back to the numeric id.
	RmgrName func(xlog.RmgrID) string
}

// ReaderConfig holds configuration for the log reader
type ReaderConfig struct {
	FilePath string   // Path to the log file
	StartLSN xlog.LSN // Position to start reading from; values below FirstLSN start at the first record
}

// RecoveryResult describes what validation found when a log was opened.
type RecoveryResult struct {
	RecordsValidated int64
	// Truncated reports that a torn or corrupt tail was cut off.
	Truncated      bool
	BytesTruncated int64
	FileSizeBefore int64
	FileSizeAfter  int64
	// LastXID is the highest transaction id seen in a valid record.
	LastXID xlog.TransactionID
	// EndLSN is where the next record will be written.
	EndLSN       xlog.LSN
	RecoveryTime time.Duration
}

// RecordIterator provides streaming access to records
type RecordIterator interface {
	Next() bool
	Record() *xlog.Record
	Err() error
	Close() error
}

// Errors
var (
	ErrCorruption     = errors.New("wal: data corruption detected")
	ErrBadMagic       = errors.New("wal: not a refresh log file")
	ErrClosed         = errors.New("wal: log is closed")
	ErrRecordTooLarge = errors.New("wal: record exceeds maximum size")
)
