package rmgr

import (
	"strings"

	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// Xact is the resource manager for transaction commit and abort records.
type Xact struct{}

func (*Xact) ID() xlog.RmgrID { return XactID }

func (*Xact) Name() string { return "Transaction" }

// Redo is a no-op for commit and abort; there is no visibility state to
// rebuild.
func (m *Xact) Redo(rec *xlog.Record) error {
	switch op := rec.OpCode(); op {
	case codec.OpXactCommit, codec.OpXactAbort:
		return nil
	default:
		return &FatalError{Rmgr: m.Name(), OpCode: op, LSN: rec.LSN}
	}
}

func (*Xact) Desc(buf *strings.Builder, rec *xlog.Record) error {
	switch rec.OpCode() {
	case codec.OpXactCommit, codec.OpXactAbort:
	default:
		return nil
	}
	x, err := codec.DecodeXactFinish(rec.Data)
	if err != nil {
		return err
	}
	buf.WriteString(x.Time.Format("2006-01-02 15:04:05.000000 MST"))
	return nil
}

func (*Xact) Identify(info uint8) (string, bool) {
	switch info &^ xlog.InfoMask {
	case codec.OpXactCommit:
		return "COMMIT", true
	case codec.OpXactAbort:
		return "ABORT", true
	}
	return "", false
}
