package xact

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/rmgr"
	"github.com/ssargent/refreshwal/pkg/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LazyAssignment(t *testing.T) {
	m := NewManager(0)
	assert.Equal(t, xlog.FirstNormalTransactionID, m.NextXID())

	tx := m.Begin()
	assert.True(t, tx.InProgress())
	assert.Equal(t, xlog.InvalidTransactionID, tx.ID())

	xid, err := tx.AssignID()
	require.NoError(t, err)
	assert.Equal(t, xlog.FirstNormalTransactionID, xid)

	again, err := tx.AssignID()
	require.NoError(t, err)
	assert.Equal(t, xid, again, "assignment is sticky")

	other, err := m.Begin().AssignID()
	require.NoError(t, err)
	assert.Equal(t, xid+1, other)
}

func TestManager_ConcurrentAllocation(t *testing.T) {
	m := NewManager(100)
	var mu sync.Mutex
	seen := make(map[xlog.TransactionID]bool)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			xid, err := m.Begin().AssignID()
			assert.NoError(t, err)
			mu.Lock()
			seen[xid] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.Equal(t, xlog.TransactionID(150), m.NextXID())
}

func TestManager_Wraparound(t *testing.T) {
	m := NewManager(^xlog.TransactionID(0))
	_, err := m.Begin().AssignID()
	assert.ErrorIs(t, err, ErrXIDWraparound)
}

func TestTransaction_Finish(t *testing.T) {
	tx := NewManager(10).Begin()
	require.NoError(t, tx.Commit())
	assert.Equal(t, StateCommitted, tx.State())
	assert.False(t, tx.InProgress())

	_, err := tx.AssignID()
	assert.ErrorIs(t, err, ErrNoTransaction)
	assert.ErrorIs(t, tx.Abort(), ErrTransactionDone)

	aborted := NewManager(10).Begin()
	require.NoError(t, aborted.Abort())
	assert.Equal(t, "aborted", aborted.State().String())
}

func TestSession_CheckActive(t *testing.T) {
	var nilSession *Session
	assert.ErrorIs(t, nilSession.CheckActive(), ErrNoTransaction)
	assert.ErrorIs(t, (&Session{}).CheckActive(), ErrNoTransaction)

	s := &Session{DatabaseID: 5, Txn: NewManager(0).Begin()}
	assert.NoError(t, s.CheckActive())
}

func TestRoleCatalog(t *testing.T) {
	c := NewRoleCatalog(map[xlog.Oid]string{10: "postgres"})
	c.Add(16385, "alice")

	name, err := c.RoleName(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "postgres", name)

	name, err = c.RoleName(context.Background(), 16385)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	_, err = c.RoleName(context.Background(), 99)
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

type finishCall struct {
	rmid   xlog.RmgrID
	info   uint8
	xid    xlog.TransactionID
	origin xlog.OriginID
	data   []byte
}

type recordingInserter struct {
	calls []finishCall
	err   error
}

func (r *recordingInserter) Insert(_ context.Context, rmid xlog.RmgrID, info uint8, in *xlog.Insertion) (xlog.LSN, error) {
	if r.err != nil {
		return xlog.InvalidLSN, r.err
	}
	r.calls = append(r.calls, finishCall{rmid: rmid, info: info, xid: in.XID(), origin: in.Origin(), data: in.Bytes()})
	return xlog.LSN(0x40 * len(r.calls)), nil
}

func TestLogCommitAndAbort(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name  string
		log   func(context.Context, xlog.Inserter, *Session) (xlog.LSN, error)
		op    uint8
		state State
	}{
		{"commit", LogCommit, codec.OpXactCommit, StateCommitted},
		{"abort", LogAbort, codec.OpXactAbort, StateAborted},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ins := &recordingInserter{}
			sess := &Session{Origin: 7, Txn: NewManager(50).Begin()}
			_, err := sess.Txn.AssignID()
			require.NoError(t, err)

			lsn, err := tc.log(ctx, ins, sess)
			require.NoError(t, err)
			assert.Equal(t, xlog.LSN(0x40), lsn)
			assert.Equal(t, tc.state, sess.Txn.State())

			require.Len(t, ins.calls, 1)
			call := ins.calls[0]
			assert.Equal(t, rmgr.XactID, call.rmid)
			assert.Equal(t, tc.op, call.info)
			assert.Equal(t, xlog.TransactionID(50), call.xid)
			assert.Equal(t, xlog.OriginID(7), call.origin)
			_, err = codec.DecodeXactFinish(call.data)
			assert.NoError(t, err)

			// a finished transaction cannot be finished again
			_, err = tc.log(ctx, ins, sess)
			assert.ErrorIs(t, err, ErrNoTransaction)
		})
	}
}

func TestLogCommit_WithoutXID(t *testing.T) {
	ins := &recordingInserter{}
	sess := &Session{Txn: NewManager(0).Begin()}

	lsn, err := LogCommit(context.Background(), ins, sess)
	require.NoError(t, err)
	assert.Equal(t, xlog.InvalidLSN, lsn)
	assert.Empty(t, ins.calls)
	assert.Equal(t, StateCommitted, sess.Txn.State())
}

func TestLogCommit_InsertFailureKeepsTransactionOpen(t *testing.T) {
	boom := errors.New("disk full")
	ins := &recordingInserter{err: boom}
	sess := &Session{Txn: NewManager(0).Begin()}
	_, err := sess.Txn.AssignID()
	require.NoError(t, err)

	_, err = LogCommit(context.Background(), ins, sess)
	assert.ErrorIs(t, err, boom)
	assert.True(t, sess.Txn.InProgress())

	ins.err = nil
	_, err = LogAbort(context.Background(), ins, sess)
	require.NoError(t, err)
	assert.Equal(t, StateAborted, sess.Txn.State())
}
