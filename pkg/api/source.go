package api

import (
	"errors"
	"io"

	"github.com/ssargent/refreshwal/pkg/wal"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// WALSource serves records from a log file. Each call opens its own reader,
// so it is safe for concurrent requests while a writer appends.
type WALSource struct {
	Path string
}

func (s *WALSource) Scan(from xlog.LSN, limit int) ([]*xlog.Record, xlog.LSN, error) {
	r, err := wal.NewReader(wal.ReaderConfig{FilePath: s.Path, StartLSN: from})
	if err != nil {
		return nil, xlog.InvalidLSN, err
	}
	defer r.Close()

	var records []*xlog.Record
	for len(records) < limit {
		rec, err := r.ReadNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, xlog.InvalidLSN, err
		}
		records = append(records, rec)
	}
	return records, r.LSN(), nil
}

func (s *WALSource) Get(lsn xlog.LSN) (*xlog.Record, error) {
	r, err := wal.NewReader(wal.ReaderConfig{FilePath: s.Path})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAt(lsn)
}
