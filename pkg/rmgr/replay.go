package rmgr

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/ssargent/refreshwal/pkg/metrics"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// ReplayResult summarizes a replay pass.
type ReplayResult struct {
	RecordsApplied int64
	LastLSN        xlog.LSN
}

// Replayer applies redo for every record a reader yields.
type Replayer struct {
	Table   *Table
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Run replays until the reader reports io.EOF. It stops at the first redo
// failure; a *FatalError there means the process must not continue.
func (r *Replayer) Run(ctx context.Context, src xlog.RecordReader) (*ReplayResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := &ReplayResult{}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rec, err := src.ReadNext()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, err
		}

		name := r.Table.Name(rec.RmID)
		if err := r.Table.Redo(rec); err != nil {
			r.Metrics.RecordRedo(name, false)
			logger.Error("redo failed", "lsn", rec.LSN, "rmgr", name, "xid", rec.XID, "error", err)
			return result, err
		}
		r.Metrics.RecordRedo(name, true)

		result.RecordsApplied++
		result.LastLSN = rec.LSN
	}
}

// Replay runs redo over src with table and no metrics.
func Replay(ctx context.Context, src xlog.RecordReader, table *Table) (*ReplayResult, error) {
	return (&Replayer{Table: table}).Run(ctx, src)
}
