package rmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/metrics"
	"github.com/ssargent/refreshwal/pkg/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refreshDataRecord(t *testing.T, flags codec.RefreshFlags, prefix string, message []byte) *xlog.Record {
	t.Helper()
	data, err := codec.NewRefreshData(16384, 24576, flags, prefix, message).MarshalBinary()
	require.NoError(t, err)
	return &xlog.Record{LSN: 8, XID: 3, RmID: RefreshDataID, Info: codec.OpRefreshData, Data: data}
}

func refreshMessageRecord(t *testing.T, prefix, role, searchPath string, message []byte) *xlog.Record {
	t.Helper()
	data, err := codec.NewRefreshMessage(16384, prefix, role, searchPath, message).MarshalBinary()
	require.NoError(t, err)
	return &xlog.Record{LSN: 8, XID: 3, RmID: RefreshMessageID, Info: codec.OpRefreshMessage, Data: data}
}

func desc(t *testing.T, m Manager, rec *xlog.Record) string {
	t.Helper()
	var buf strings.Builder
	require.NoError(t, m.Desc(&buf, rec))
	return buf.String()
}

func TestRefreshData_DescScenario(t *testing.T) {
	rec := refreshDataRecord(t, codec.FlagConcurrent|codec.FlagSkipData, "demo", []byte{0x41, 0x42})
	assert.Equal(t, `concurrentskipDataprefix "demo"; payload (2 bytes): 41 42`, desc(t, &RefreshData{}, rec))
}

func TestRefreshData_DescFlagCombinations(t *testing.T) {
	for bits := 0; bits < 8; bits++ {
		flags := codec.RefreshFlags(bits)
		rec := refreshDataRecord(t, flags, "p", nil)

		want := ""
		if bits&1 != 0 {
			want += "concurrent"
		}
		if bits&2 != 0 {
			want += "skipData"
		}
		if bits&4 != 0 {
			want += "isCompleteQuery"
		}
		want += `prefix "p"; payload (0 bytes): `

		assert.Equal(t, want, desc(t, &RefreshData{}, rec), "bits=%d", bits)
	}
}

func TestRefreshData_DescBoundaries(t *testing.T) {
	t.Run("empty message renders nothing after the colon", func(t *testing.T) {
		got := desc(t, &RefreshData{}, refreshDataRecord(t, 0, "demo", nil))
		assert.True(t, strings.HasSuffix(got, "(0 bytes): "), got)
	})

	t.Run("empty prefix", func(t *testing.T) {
		got := desc(t, &RefreshData{}, refreshDataRecord(t, 0, "", []byte{0x00}))
		assert.Equal(t, `prefix ""; payload (1 bytes): 00`, got)
	})

	t.Run("hex is uppercase and ordered", func(t *testing.T) {
		got := desc(t, &RefreshData{}, refreshDataRecord(t, 0, "x", []byte{0xAB, 0x01, 0xff}))
		assert.Equal(t, `prefix "x"; payload (3 bytes): AB 01 FF`, got)
	})

	t.Run("verbose appends matview", func(t *testing.T) {
		got := desc(t, &RefreshData{Verbose: true}, refreshDataRecord(t, codec.FlagCompleteQuery, "x", []byte{1}))
		assert.Equal(t, `isCompleteQueryprefix "x"; payload (1 bytes): 01; matview 24576`, got)
	})
}

func TestRefreshData_DescRoundTripProperty(t *testing.T) {
	prefixes := []string{"", "demo", "refresh:public.sales", "ünïcode"}
	messages := [][]byte{nil, {0}, []byte("hello"), {0xDE, 0xAD, 0xBE, 0xEF}}

	for _, p := range prefixes {
		for _, msg := range messages {
			got := desc(t, &RefreshData{}, refreshDataRecord(t, 0, p, msg))

			hex := make([]string, len(msg))
			for i, b := range msg {
				hex[i] = fmt.Sprintf("%02X", b)
			}
			want := fmt.Sprintf(`prefix "%s"; payload (%d bytes): %s`, p, len(msg), strings.Join(hex, " "))
			assert.Equal(t, want, got)
		}
	}
}

func TestRefreshData_DescCorruption(t *testing.T) {
	rec := refreshDataRecord(t, 0, "demo", []byte("AB"))
	rec.Data[codec.RefreshDataHeaderSize+4] = 'X'

	var buf strings.Builder
	err := (&RefreshData{}).Desc(&buf, rec)
	assert.ErrorIs(t, err, codec.ErrCorrupt)
}

func TestRefreshData_DescUnknownOpIsEmpty(t *testing.T) {
	rec := refreshDataRecord(t, 0, "demo", nil)
	rec.Info = 0x10
	assert.Equal(t, "", desc(t, &RefreshData{}, rec))
}

func TestRefreshMessage_Desc(t *testing.T) {
	rec := refreshMessageRecord(t, "matview", "alice", `"$user", public`, []byte{0x52, 0x45})
	assert.Equal(t,
		`prefix "matview"; role "alice"; search_path ""$user", public"; payload (2 bytes): 52 45`,
		desc(t, &RefreshMessage{}, rec))
}

func TestRefreshMessage_SearchPathOnlyChangesItsField(t *testing.T) {
	a := desc(t, &RefreshMessage{}, refreshMessageRecord(t, "p", "r", "one", []byte{1, 2}))
	b := desc(t, &RefreshMessage{}, refreshMessageRecord(t, "p", "r", "two,three", []byte{1, 2}))

	assert.Equal(t, strings.Replace(a, `"one"`, `"two,three"`, 1), b)
}

func TestIdentify(t *testing.T) {
	testCases := []struct {
		name    string
		manager Manager
		label   string
	}{
		{"refresh data", &RefreshData{}, "REFRESH DATA"},
		{"refresh message", &RefreshMessage{}, "REFRESH MESSAGE"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			label, ok := tc.manager.Identify(0x00)
			assert.True(t, ok)
			assert.Equal(t, tc.label, label)

			// log-layer bits are ignored
			label, ok = tc.manager.Identify(0x0F)
			assert.True(t, ok)
			assert.Equal(t, tc.label, label)

			for _, info := range []uint8{0x10, 0x20, 0x70, 0xF0} {
				label, ok := tc.manager.Identify(info)
				assert.False(t, ok, "info %#x", info)
				assert.Empty(t, label)
			}
		})
	}
}

func TestRedo(t *testing.T) {
	for _, m := range []Manager{&Xact{}, &RefreshData{}, &RefreshMessage{}} {
		t.Run(m.Name(), func(t *testing.T) {
			assert.NoError(t, m.Redo(&xlog.Record{RmID: m.ID(), Info: 0x00}))
			assert.NoError(t, m.Redo(&xlog.Record{RmID: m.ID(), Info: 0x03}), "log-layer bits ignored")

			err := m.Redo(&xlog.Record{LSN: 0x28, RmID: m.ID(), Info: 0x30})
			var fatal *FatalError
			require.ErrorAs(t, err, &fatal)
			assert.Equal(t, uint8(0x30), fatal.OpCode)
			assert.Equal(t, m.Name(), fatal.Rmgr)
			assert.ErrorIs(t, err, ErrUnknownOpCode)
			assert.Contains(t, err.Error(), "unknown op code 48")
		})
	}
}

func TestTable(t *testing.T) {
	table := DefaultTable(false)

	require.Len(t, table.Managers(), 3)
	assert.Equal(t, XactID, table.Managers()[0].ID())
	assert.Equal(t, RefreshDataID, table.Managers()[1].ID())
	assert.Equal(t, "LogicalRefreshMessage", table.Name(RefreshMessageID))
	assert.Equal(t, "UNKNOWN", table.Name(7))

	_, err := table.Lookup(7)
	assert.ErrorIs(t, err, ErrUnknownRmgr)

	err = table.Register(&RefreshData{})
	assert.ErrorIs(t, err, ErrDuplicateRmgr)

	_, err = NewTable(&RefreshMessage{}, &RefreshMessage{})
	assert.ErrorIs(t, err, ErrDuplicateRmgr)

	rec := refreshDataRecord(t, codec.FlagConcurrent|codec.FlagSkipData, "demo", []byte{0x41, 0x42})
	got, err := table.Describe(rec)
	require.NoError(t, err)
	assert.Equal(t, `REFRESH DATA concurrentskipDataprefix "demo"; payload (2 bytes): 41 42`, got)

	rec.Info = 0x40
	assert.Equal(t, "UNKNOWN (40)", table.Identify(rec))

	_, err = table.Describe(&xlog.Record{RmID: 9})
	assert.ErrorIs(t, err, ErrUnknownRmgr)
	assert.ErrorIs(t, table.Redo(&xlog.Record{RmID: 9}), ErrUnknownRmgr)
}

type sliceReader struct {
	records []*xlog.Record
	err     error
}

func (s *sliceReader) ReadNext() (*xlog.Record, error) {
	if len(s.records) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	rec := s.records[0]
	s.records = s.records[1:]
	return rec, nil
}

func TestReplayer_Run(t *testing.T) {
	t.Run("applies every record", func(t *testing.T) {
		first := refreshDataRecord(t, 0, "a", nil)
		second := refreshMessageRecord(t, "b", "r", "s", nil)
		second.LSN = 0x40

		r := &Replayer{Table: DefaultTable(false), Metrics: metrics.New(prometheus.NewRegistry())}
		result, err := r.Run(context.Background(), &sliceReader{records: []*xlog.Record{first, second}})
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.RecordsApplied)
		assert.Equal(t, xlog.LSN(0x40), result.LastLSN)
	})

	t.Run("stops at unknown op code", func(t *testing.T) {
		good := refreshDataRecord(t, 0, "a", nil)
		bad := refreshDataRecord(t, 0, "a", nil)
		bad.Info = 0x20

		r := &Replayer{Table: DefaultTable(false)}
		result, err := r.Run(context.Background(), &sliceReader{records: []*xlog.Record{good, bad, good}})
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, int64(1), result.RecordsApplied)
	})

	t.Run("propagates reader errors", func(t *testing.T) {
		boom := errors.New("boom")
		r := &Replayer{Table: DefaultTable(false)}
		_, err := r.Run(context.Background(), &sliceReader{err: boom})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := &Replayer{Table: DefaultTable(false)}
		_, err := r.Run(ctx, &sliceReader{records: []*xlog.Record{refreshDataRecord(t, 0, "a", nil)}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestXact(t *testing.T) {
	m := &Xact{}
	at := time.Date(2026, 10, 14, 9, 30, 1, 250000000, time.UTC)
	data, err := codec.NewXactFinish(at).MarshalBinary()
	require.NoError(t, err)

	commit := &xlog.Record{LSN: 0x40, XID: 3, RmID: XactID, Info: codec.OpXactCommit, Data: data}
	abort := &xlog.Record{LSN: 0x40, XID: 3, RmID: XactID, Info: codec.OpXactAbort, Data: data}

	label, ok := m.Identify(commit.Info)
	assert.True(t, ok)
	assert.Equal(t, "COMMIT", label)
	label, ok = m.Identify(abort.Info | 0x01)
	assert.True(t, ok)
	assert.Equal(t, "ABORT", label)
	_, ok = m.Identify(0x10)
	assert.False(t, ok)

	assert.Equal(t, "2026-10-14 09:30:01.250000 UTC", desc(t, m, commit))

	got, err := DefaultTable(false).Describe(abort)
	require.NoError(t, err)
	assert.Equal(t, "ABORT 2026-10-14 09:30:01.250000 UTC", got)

	var buf strings.Builder
	err = m.Desc(&buf, &xlog.Record{RmID: XactID, Data: data[:3]})
	assert.ErrorIs(t, err, codec.ErrTruncated)

	assert.Empty(t, desc(t, m, &xlog.Record{RmID: XactID, Info: 0x10, Data: data}))
}
