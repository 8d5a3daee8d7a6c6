package wal

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ssargent/refreshwal/pkg/xlog"
)

// Recover validates the log file at filePath and truncates it after the last
// intact record. A missing file is reported as an empty log.
func Recover(filePath string) (*RecoveryResult, error) {
	startTime := time.Now()

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &RecoveryResult{EndLSN: FirstLSN, RecoveryTime: time.Since(startTime)}, nil
		}
		return nil, err
	}

	fileSizeBefore := fileInfo.Size()

	reader, err := NewReader(ReaderConfig{FilePath: filePath})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var recordsValidated int64
	var lastXID xlog.TransactionID
	lastValidLSN := FirstLSN

	for {
		record, err := reader.ReadNext()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, ErrCorruption) {
				return nil, err
			}
			break
		}

		recordsValidated++
		if record.XID > lastXID {
			lastXID = record.XID
		}
		lastValidLSN = reader.LSN()
	}

	result := &RecoveryResult{
		RecordsValidated: recordsValidated,
		FileSizeBefore:   fileSizeBefore,
		FileSizeAfter:    fileSizeBefore,
		LastXID:          lastXID,
		EndLSN:           lastValidLSN,
	}

	// Anything after the last intact record is a torn or corrupt tail. An
	// empty file has nothing to keep, not even the magic.
	if fileSizeBefore > int64(lastValidLSN) {
		if err := os.Truncate(filePath, int64(lastValidLSN)); err != nil {
			return nil, err
		}
		result.FileSizeAfter = int64(lastValidLSN)
		result.Truncated = true
		result.BytesTruncated = fileSizeBefore - int64(lastValidLSN)

		slog.Warn("truncated log tail",
			"path", filePath, "end_lsn", lastValidLSN, "bytes_dropped", result.BytesTruncated)
	}

	result.RecoveryTime = time.Since(startTime)
	return result, nil
}
