package xact

import (
	"context"
	"fmt"
	"time"

	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/rmgr"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// LogCommit ends the session's transaction and, if it was assigned an XID,
// logs its commit record. Decoding delivers a transaction's changes only
// once this record is in the log.
func LogCommit(ctx context.Context, ins xlog.Inserter, sess *Session) (xlog.LSN, error) {
	return logFinish(ctx, ins, sess, StateCommitted, codec.OpXactCommit)
}

// LogAbort ends the session's transaction and, if it was assigned an XID,
// logs its abort record. Decoding discards the transaction's changes.
func LogAbort(ctx context.Context, ins xlog.Inserter, sess *Session) (xlog.LSN, error) {
	return logFinish(ctx, ins, sess, StateAborted, codec.OpXactAbort)
}

func logFinish(ctx context.Context, ins xlog.Inserter, sess *Session, state State, op uint8) (xlog.LSN, error) {
	if err := sess.CheckActive(); err != nil {
		return xlog.InvalidLSN, err
	}
	xid := sess.Txn.ID()
	// nothing was logged under this transaction
	if xid == xlog.InvalidTransactionID {
		return xlog.InvalidLSN, sess.Txn.finish(state)
	}

	data, err := codec.NewXactFinish(time.Now()).MarshalBinary()
	if err != nil {
		return xlog.InvalidLSN, err
	}
	in := xlog.BeginInsert(xid, sess.Origin)
	in.RegisterData(data)
	in.SetRecordFlags(xlog.FlagIncludeOrigin)

	// the transaction stays in progress when the insert fails so the
	// caller can still abort it
	lsn, err := ins.Insert(ctx, rmgr.XactID, op, in)
	if err != nil {
		return xlog.InvalidLSN, fmt.Errorf("insert %s record: %w", state, err)
	}
	if err := sess.Txn.finish(state); err != nil {
		return xlog.InvalidLSN, err
	}
	return lsn, nil
}
