package refresh

import (
	"context"
	"errors"
	"testing"

	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/rmgr"
	"github.com/ssargent/refreshwal/pkg/xact"
	"github.com/ssargent/refreshwal/pkg/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insertCall struct {
	rmid     xlog.RmgrID
	info     uint8
	xid      xlog.TransactionID
	origin   xlog.OriginID
	flags    xlog.RecordFlag
	segments [][]byte
	data     []byte
}

type fakeInserter struct {
	calls []insertCall
	err   error
}

func (f *fakeInserter) Insert(_ context.Context, rmid xlog.RmgrID, info uint8, in *xlog.Insertion) (xlog.LSN, error) {
	if f.err != nil {
		return xlog.InvalidLSN, f.err
	}
	f.calls = append(f.calls, insertCall{
		rmid:     rmid,
		info:     info,
		xid:      in.XID(),
		origin:   in.Origin(),
		flags:    in.Flags(),
		segments: in.Segments(),
		data:     in.Bytes(),
	})
	return xlog.LSN(8 * len(f.calls)), nil
}

func newSession(t *testing.T) *xact.Session {
	t.Helper()
	return &xact.Session{
		DatabaseID: 16384,
		SearchPath: `"$user", public`,
		Origin:     7,
		Txn:        xact.NewManager(100).Begin(),
	}
}

func TestLogRefreshData(t *testing.T) {
	ins := &fakeInserter{}
	sess := newSession(t)

	lsn, err := LogRefreshData(context.Background(), ins, sess, "demo", []byte{0x41, 0x42}, 24576,
		Options{Concurrent: true, SkipData: true})
	require.NoError(t, err)
	assert.Equal(t, xlog.LSN(8), lsn)

	require.Len(t, ins.calls, 1)
	call := ins.calls[0]
	assert.Equal(t, rmgr.RefreshDataID, call.rmid)
	assert.Equal(t, codec.OpRefreshData, call.info)
	assert.Equal(t, xlog.TransactionID(100), call.xid)
	assert.True(t, call.flags.Has(xlog.FlagIncludeOrigin))
	assert.Equal(t, xlog.OriginID(7), call.origin)

	// header, prefix and message are registered as separate segments
	require.Len(t, call.segments, 3)
	assert.Len(t, call.segments[0], codec.RefreshDataHeaderSize)
	assert.Equal(t, []byte("demo\x00"), call.segments[1])
	assert.Equal(t, []byte{0x41, 0x42}, call.segments[2])

	rec, err := codec.DecodeRefreshData(call.data)
	require.NoError(t, err)
	assert.Equal(t, xlog.Oid(16384), rec.DatabaseID)
	assert.Equal(t, xlog.Oid(24576), rec.MatviewID)
	assert.True(t, rec.Flags.Concurrent())
	assert.True(t, rec.Flags.SkipData())
	assert.False(t, rec.Flags.CompleteQuery())
	assert.Equal(t, uint64(5), rec.PrefixSize)
	assert.Equal(t, uint64(2), rec.MessageSize)
}

func TestLogRefreshData_ReusesTransactionID(t *testing.T) {
	ins := &fakeInserter{}
	sess := newSession(t)

	_, err := LogRefreshData(context.Background(), ins, sess, "a", nil, 1, Options{})
	require.NoError(t, err)
	_, err = LogRefreshData(context.Background(), ins, sess, "b", nil, 1, Options{})
	require.NoError(t, err)

	require.Len(t, ins.calls, 2)
	assert.Equal(t, ins.calls[0].xid, ins.calls[1].xid)
	assert.Equal(t, xlog.TransactionID(100), sess.Txn.ID())
}

func TestLogRefreshMessage(t *testing.T) {
	ins := &fakeInserter{}
	sess := newSession(t)

	_, err := LogRefreshMessage(context.Background(), ins, sess, "matview", "alice", []byte("RE"), 24576,
		Options{CompleteQuery: true})
	require.NoError(t, err)

	require.Len(t, ins.calls, 1)
	call := ins.calls[0]
	assert.Equal(t, rmgr.RefreshMessageID, call.rmid)
	assert.Equal(t, codec.OpRefreshMessage, call.info)
	require.Len(t, call.segments, 5)
	assert.Len(t, call.segments[0], codec.RefreshMessageHeaderSize)

	msg, err := codec.DecodeRefreshMessage(call.data)
	require.NoError(t, err)
	assert.Equal(t, "matview", msg.Prefix)
	assert.Equal(t, "alice", msg.Role)
	assert.Equal(t, `"$user", public`, msg.SearchPath)
	assert.Equal(t, []byte("RE"), msg.Message)
	assert.Equal(t, uint64(len(`"$user", public`)+1), msg.SearchPathSize)
}

func TestLog_Preconditions(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name string
		sess func(t *testing.T) *xact.Session
		err  error
	}{
		{
			name: "nil session",
			sess: func(t *testing.T) *xact.Session { return nil },
			err:  xact.ErrNoTransaction,
		},
		{
			name: "no transaction",
			sess: func(t *testing.T) *xact.Session { return &xact.Session{DatabaseID: 1} },
			err:  xact.ErrNoTransaction,
		},
		{
			name: "committed transaction",
			sess: func(t *testing.T) *xact.Session {
				s := newSession(t)
				require.NoError(t, s.Txn.Commit())
				return s
			},
			err: xact.ErrNoTransaction,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ins := &fakeInserter{}

			_, err := LogRefreshData(ctx, ins, tc.sess(t), "p", nil, 1, Options{})
			assert.ErrorIs(t, err, tc.err)

			_, err = LogRefreshMessage(ctx, ins, tc.sess(t), "p", "r", nil, 1, Options{})
			assert.ErrorIs(t, err, tc.err)

			assert.Empty(t, ins.calls)
		})
	}
}

func TestLog_EncodeAndInsertErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("embedded NUL in prefix", func(t *testing.T) {
		ins := &fakeInserter{}
		_, err := LogRefreshData(ctx, ins, newSession(t), "de\x00mo", nil, 1, Options{})
		assert.ErrorIs(t, err, codec.ErrEmbeddedNUL)
		assert.Empty(t, ins.calls)
	})

	t.Run("embedded NUL in role", func(t *testing.T) {
		ins := &fakeInserter{}
		_, err := LogRefreshMessage(ctx, ins, newSession(t), "p", "al\x00ice", nil, 1, Options{})
		assert.ErrorIs(t, err, codec.ErrEmbeddedNUL)
	})

	t.Run("inserter failure", func(t *testing.T) {
		boom := errors.New("disk full")
		_, err := LogRefreshData(ctx, &fakeInserter{err: boom}, newSession(t), "p", nil, 1, Options{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestOptions_Flags(t *testing.T) {
	assert.Equal(t, codec.RefreshFlags(0), Options{}.Flags())
	assert.Equal(t, codec.FlagConcurrent|codec.FlagCompleteQuery, Options{Concurrent: true, CompleteQuery: true}.Flags())
	assert.Equal(t, codec.FlagSkipData, Options{SkipData: true}.Flags())
}

func TestBuildRefreshSQL(t *testing.T) {
	testCases := []struct {
		name   string
		schema string
		view   string
		opts   Options
		want   string
		err    error
	}{
		{
			name:   "plain",
			schema: "public",
			view:   "sales_summary",
			want:   `REFRESH MATERIALIZED VIEW "public"."sales_summary"`,
		},
		{
			name:   "concurrently",
			schema: "analytics",
			view:   "daily_totals",
			opts:   Options{Concurrent: true},
			want:   `REFRESH MATERIALIZED VIEW CONCURRENTLY "analytics"."daily_totals"`,
		},
		{
			name:   "with no data",
			schema: "public",
			view:   "mv",
			opts:   Options{SkipData: true, CompleteQuery: true},
			want:   `REFRESH MATERIALIZED VIEW "public"."mv" WITH NO DATA`,
		},
		{
			name:   "concurrent and skip data",
			schema: "public",
			view:   "mv",
			opts:   Options{Concurrent: true, SkipData: true},
			err:    ErrConcurrentSkipData,
		},
		{
			name:   "bad schema",
			schema: "public; DROP TABLE users",
			view:   "mv",
			err:    ErrInvalidIdentifier,
		},
		{
			name:   "bad view",
			schema: "public",
			view:   "1mv",
			err:    ErrInvalidIdentifier,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildRefreshSQL(tc.schema, tc.view, tc.opts)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
