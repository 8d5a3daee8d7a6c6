// Package refresh emits the refresh records that announce a materialized
// view refresh to logical decoding consumers.
package refresh

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/rmgr"
	"github.com/ssargent/refreshwal/pkg/xact"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// Options are the boolean refresh semantics carried by the record flags.
type Options struct {
	Concurrent    bool
	SkipData      bool
	CompleteQuery bool
}

// Flags packs the options into the record flag set.
func (o Options) Flags() codec.RefreshFlags {
	return codec.NewRefreshFlags(o.Concurrent, o.SkipData, o.CompleteQuery)
}

// LogRefreshData writes a refresh data record for matviewID and returns its
// position. The session must be inside a transaction; an XID is assigned if
// the transaction has none yet, so the record commits or rolls back with it
// when the caller ends it with xact.LogCommit or xact.LogAbort.
func LogRefreshData(ctx context.Context, ins xlog.Inserter, sess *xact.Session,
	prefix string, message []byte, matviewID xlog.Oid, opts Options) (xlog.LSN, error) {
	if err := sess.CheckActive(); err != nil {
		return xlog.InvalidLSN, err
	}
	xid, err := sess.Txn.AssignID()
	if err != nil {
		return xlog.InvalidLSN, err
	}

	rec := codec.NewRefreshData(sess.DatabaseID, matviewID, opts.Flags(), prefix, message)
	segs, err := rec.Segments()
	if err != nil {
		return xlog.InvalidLSN, fmt.Errorf("encode refresh data: %w", err)
	}

	lsn, err := insert(ctx, ins, sess, xid, rmgr.RefreshDataID, codec.OpRefreshData, segs)
	if err != nil {
		return xlog.InvalidLSN, err
	}

	slog.DebugContext(ctx, "logged refresh data",
		"lsn", lsn, "xid", xid, "matview", matviewID, "flags", rec.Flags.Names(), "message_size", rec.MessageSize)
	return lsn, nil
}

// LogRefreshMessage writes a refresh message record. roleName must already
// be resolved by the caller; the search path comes from the session. The
// record layout has no room for matviewID or opts, they are only logged.
func LogRefreshMessage(ctx context.Context, ins xlog.Inserter, sess *xact.Session,
	prefix, roleName string, message []byte, matviewID xlog.Oid, opts Options) (xlog.LSN, error) {
	if err := sess.CheckActive(); err != nil {
		return xlog.InvalidLSN, err
	}
	xid, err := sess.Txn.AssignID()
	if err != nil {
		return xlog.InvalidLSN, err
	}

	msg := codec.NewRefreshMessage(sess.DatabaseID, prefix, roleName, sess.SearchPath, message)
	segs, err := msg.Segments()
	if err != nil {
		return xlog.InvalidLSN, fmt.Errorf("encode refresh message: %w", err)
	}

	lsn, err := insert(ctx, ins, sess, xid, rmgr.RefreshMessageID, codec.OpRefreshMessage, segs)
	if err != nil {
		return xlog.InvalidLSN, err
	}

	slog.DebugContext(ctx, "logged refresh message",
		"lsn", lsn, "xid", xid, "role", roleName, "matview", matviewID, "flags", opts.Flags().Names())
	return lsn, nil
}

func insert(ctx context.Context, ins xlog.Inserter, sess *xact.Session, xid xlog.TransactionID,
	rmid xlog.RmgrID, info uint8, segs [][]byte) (xlog.LSN, error) {
	in := xlog.BeginInsert(xid, sess.Origin)
	for _, s := range segs {
		in.RegisterData(s)
	}
	// allow origin filtering
	in.SetRecordFlags(xlog.FlagIncludeOrigin)

	lsn, err := ins.Insert(ctx, rmid, info, in)
	if err != nil {
		return xlog.InvalidLSN, fmt.Errorf("insert record: %w", err)
	}
	return lsn, nil
}
