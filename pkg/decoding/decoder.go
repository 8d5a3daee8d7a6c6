// Package decoding turns refresh records into change events for logical
// replication consumers.
package decoding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/metrics"
	"github.com/ssargent/refreshwal/pkg/rmgr"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// Kind names the record a change was decoded from.
type Kind string

const (
	KindRefreshData    Kind = "refresh_data"
	KindRefreshMessage Kind = "refresh_message"
)

// Change is one decoded refresh event. Exactly one of Data and Message is
// set, matching Kind.
type Change struct {
	LSN     xlog.LSN
	XID     xlog.TransactionID
	Origin  xlog.OriginID
	Kind    Kind
	Data    *codec.RefreshData
	Message *codec.RefreshMessage

	// Record is the log record the change came from.
	Record *xlog.Record
}

// Options filter changes by replication origin.
type Options struct {
	// OnlyLocal drops changes that were replicated in from another node.
	OnlyLocal bool
	// SkipOrigins drops changes from the listed origins.
	SkipOrigins []xlog.OriginID
}

// Handler consumes one change. Returning an error stops the stream.
type Handler func(ctx context.Context, c *Change) error

// Decoder decodes refresh records. It is safe for concurrent use.
type Decoder struct {
	opts    Options
	skip    map[xlog.OriginID]struct{}
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDecoder creates a decoder. m and logger may be nil.
func NewDecoder(opts Options, m *metrics.Metrics, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	skip := make(map[xlog.OriginID]struct{}, len(opts.SkipOrigins))
	for _, o := range opts.SkipOrigins {
		skip[o] = struct{}{}
	}
	return &Decoder{opts: opts, skip: skip, metrics: m, logger: logger}
}

// Filtered reports whether the record's origin excludes it. Records
// written without an origin are local.
func (d *Decoder) Filtered(rec *xlog.Record) bool {
	if !rec.Flags.Has(xlog.FlagIncludeOrigin) || rec.Origin == xlog.InvalidOriginID {
		return false
	}
	if d.opts.OnlyLocal {
		return true
	}
	_, ok := d.skip[rec.Origin]
	return ok
}

// Decode returns the change carried by rec, or nil if rec is not a refresh
// record or is filtered out.
func (d *Decoder) Decode(rec *xlog.Record) (*Change, error) {
	if d.Filtered(rec) {
		return nil, nil
	}

	c := &Change{LSN: rec.LSN, XID: rec.XID, Origin: rec.Origin, Record: rec}
	switch {
	case rec.RmID == rmgr.RefreshDataID && rec.OpCode() == codec.OpRefreshData:
		data, err := codec.DecodeRefreshData(rec.Data)
		if err != nil {
			d.metrics.RecordDecodeError("LogicalRefreshData")
			return nil, fmt.Errorf("decode refresh data at %s: %w", rec.LSN, err)
		}
		c.Kind, c.Data = KindRefreshData, data
	case rec.RmID == rmgr.RefreshMessageID && rec.OpCode() == codec.OpRefreshMessage:
		msg, err := codec.DecodeRefreshMessage(rec.Data)
		if err != nil {
			d.metrics.RecordDecodeError("LogicalRefreshMessage")
			return nil, fmt.Errorf("decode refresh message at %s: %w", rec.LSN, err)
		}
		c.Kind, c.Message = KindRefreshMessage, msg
	default:
		return nil, nil
	}

	d.metrics.RecordDecoded(string(c.Kind))
	return c, nil
}

// positioned sources report the position just past the last record read.
type positioned interface {
	LSN() xlog.LSN
}

// Position is where a consumer stands in the log. Restart is the oldest
// record decoding must reread to rebuild transactions still open, and
// Confirmed is the position up to which every record has been consumed.
// Restart <= Confirmed.
type Position struct {
	Restart   xlog.LSN
	Confirmed xlog.LSN
}

// StartPosition is the position of a consumer that has read nothing.
func StartPosition(first xlog.LSN) Position {
	return Position{Restart: first, Confirmed: first}
}

type pending struct {
	first   xlog.LSN
	changes []*Change
}

// Stream decodes records from src until io.EOF or cancellation. Changes
// are buffered per transaction and handed to handler in log order when the
// transaction's commit record is read; an abort discards them. Changes
// logged outside a transaction are delivered at once.
//
// src must be positioned at from.Restart. Transactions that committed
// before from.Confirmed and records before it are not delivered again.
// The returned position covers every record fully consumed. When handler
// fails, the position stops before the record being delivered, so the
// next stream from it may repeat changes the handler already accepted.
func (d *Decoder) Stream(ctx context.Context, src xlog.RecordReader, from Position, handler Handler) (Position, error) {
	at := from
	pos, hasPos := src.(positioned)
	open := make(map[xlog.TransactionID]*pending)

	restart := func(next xlog.LSN) xlog.LSN {
		r := next
		for _, p := range open {
			if p.first < r {
				r = p.first
			}
		}
		return r
	}

	for {
		if err := ctx.Err(); err != nil {
			return at, err
		}

		rec, err := src.ReadNext()
		if errors.Is(err, io.EOF) {
			return at, nil
		}
		if err != nil {
			return at, err
		}
		fresh := rec.LSN >= from.Confirmed

		if rec.RmID == rmgr.XactID {
			p := open[rec.XID]
			switch rec.OpCode() {
			case codec.OpXactCommit:
				if p != nil && fresh {
					if err := d.deliver(ctx, p.changes, handler); err != nil {
						return at, err
					}
				}
			case codec.OpXactAbort:
				if p != nil {
					d.logger.Debug("discarded aborted transaction", "xid", rec.XID, "changes", len(p.changes))
				}
			}
			delete(open, rec.XID)
		} else {
			c, err := d.Decode(rec)
			if err != nil {
				return at, err
			}
			switch {
			case c == nil:
			case rec.XID == xlog.InvalidTransactionID:
				if fresh {
					if err := d.deliver(ctx, []*Change{c}, handler); err != nil {
						return at, err
					}
				}
			default:
				p := open[rec.XID]
				if p == nil {
					p = &pending{first: rec.LSN}
					open[rec.XID] = p
				}
				p.changes = append(p.changes, c)
			}
		}

		next := rec.LSN + 1
		if hasPos {
			next = pos.LSN()
		}
		if next > at.Confirmed {
			at.Confirmed = next
		}
		at.Restart = restart(at.Confirmed)
	}
}

func (d *Decoder) deliver(ctx context.Context, changes []*Change, handler Handler) error {
	for _, c := range changes {
		if err := handler(ctx, c); err != nil {
			return err
		}
		d.logger.Debug("decoded change", "lsn", c.LSN, "xid", c.XID, "kind", c.Kind)
	}
	return nil
}
