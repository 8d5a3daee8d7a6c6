package storage

import (
	"path/filepath"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/decoding"
	"github.com/ssargent/refreshwal/pkg/rmgr"
	"github.com/ssargent/refreshwal/pkg/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *EventStore {
	t.Helper()
	s, err := NewEventStore(filepath.Join(t.TempDir(), "events"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func change(t *testing.T, lsn xlog.LSN, rmid xlog.RmgrID) *decoding.Change {
	t.Helper()
	var data []byte
	var err error
	if rmid == rmgr.RefreshMessageID {
		data, err = codec.NewRefreshMessage(1, "p", "alice", "public", []byte{1}).MarshalBinary()
	} else {
		data, err = codec.NewRefreshData(1, 2, 0, "p", []byte{1}).MarshalBinary()
	}
	require.NoError(t, err)
	rec := &xlog.Record{LSN: lsn, XID: 5, RmID: rmid, Data: data}
	c, err := decoding.NewDecoder(decoding.Options{}, nil, nil).Decode(rec)
	require.NoError(t, err)
	return c
}

func TestEventStore_AppendAndGet(t *testing.T) {
	s := openStore(t)

	id, err := s.AppendChange(change(t, 0x28, rmgr.RefreshDataID))
	require.NoError(t, err)
	assert.NotEqual(t, ksuid.Nil, id)

	ev, err := s.GetEvent(id)
	require.NoError(t, err)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, xlog.LSN(0x28), ev.Record.LSN)
	assert.Equal(t, xlog.TransactionID(5), ev.Record.XID)
	assert.Equal(t, decoding.KindRefreshData, ev.Kind())
	assert.False(t, ev.Time().IsZero())

	_, err = codec.DecodeRefreshData(ev.Record.Data)
	assert.NoError(t, err)
}

func TestEventStore_NotFound(t *testing.T) {
	s := openStore(t)

	_, err := s.GetEvent(ksuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = s.AppendChange(&decoding.Change{})
	assert.Error(t, err)
}

func TestEventStore_AppendIsIdempotent(t *testing.T) {
	s := openStore(t)

	first, err := s.AppendChange(change(t, 0x40, rmgr.RefreshDataID))
	require.NoError(t, err)
	again, err := s.AppendChange(change(t, 0x40, rmgr.RefreshDataID))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	all, err := s.ListEvents(0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEventStore_ListEvents(t *testing.T) {
	s := openStore(t)

	var ids []ksuid.KSUID
	for i := 0; i < 5; i++ {
		rmid := rmgr.RefreshDataID
		if i%2 == 1 {
			rmid = rmgr.RefreshMessageID
		}
		id, err := s.AppendChange(change(t, xlog.LSN(8+i*40), rmid))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// slot and id keys live in the same keyspace and must not leak into the list
	require.NoError(t, s.SavePosition("main", decoding.Position{Restart: 8, Confirmed: 100}))

	all, err := s.ListEvents(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, ev := range all {
		assert.Equal(t, ids[i], ev.ID)
	}

	some, err := s.ListEvents(2)
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, ids[0], some[0].ID)
}

func TestEventStore_ListEventsInLSNOrder(t *testing.T) {
	s := openStore(t)

	// appended out of order and within the same second, so ksuid order
	// alone would not match log order
	const n = 40
	for i := n - 1; i >= 0; i-- {
		_, err := s.AppendChange(change(t, xlog.LSN(8+i*0x30), rmgr.RefreshDataID))
		require.NoError(t, err)
	}
	// an LSN above 255 in a low byte must still sort after smaller ones
	_, err := s.AppendChange(change(t, 0x1_0000_0008, rmgr.RefreshMessageID))
	require.NoError(t, err)

	all, err := s.ListEvents(0)
	require.NoError(t, err)
	require.Len(t, all, n+1)
	for i := 1; i < len(all); i++ {
		assert.Less(t, uint64(all[i-1].Record.LSN), uint64(all[i].Record.LSN))
	}
	assert.Equal(t, decoding.KindRefreshMessage, all[n].Kind())
}

func TestEventStore_Position(t *testing.T) {
	s := openStore(t)

	_, err := s.Position("main")
	assert.ErrorIs(t, err, ErrSlotNotFound)

	require.NoError(t, s.SavePosition("main", decoding.Position{Restart: 0x1_0000_0008, Confirmed: 0x1_0000_0028}))
	pos, err := s.Position("main")
	require.NoError(t, err)
	assert.Equal(t, "1/8", pos.Restart.String())
	assert.Equal(t, "1/28", pos.Confirmed.String())

	require.NoError(t, s.SavePosition("main", decoding.StartPosition(0x30)))
	pos, err = s.Position("main")
	require.NoError(t, err)
	assert.Equal(t, decoding.Position{Restart: 0x30, Confirmed: 0x30}, pos)

	assert.ErrorIs(t, s.SavePosition("", decoding.StartPosition(1)), ErrInvalidSlot)
}

func TestEventStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events")
	s, err := NewEventStore(path)
	require.NoError(t, err)
	id, err := s.AppendChange(change(t, 8, rmgr.RefreshMessageID))
	require.NoError(t, err)
	require.NoError(t, s.SavePosition("main", decoding.StartPosition(64)))
	require.NoError(t, s.Close())

	s, err = NewEventStore(path)
	require.NoError(t, err)
	defer s.Close()

	ev, err := s.GetEvent(id)
	require.NoError(t, err)
	assert.Equal(t, decoding.KindRefreshMessage, ev.Kind())

	pos, err := s.Position("main")
	require.NoError(t, err)
	assert.Equal(t, xlog.LSN(64), pos.Confirmed)
}
