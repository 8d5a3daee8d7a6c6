package rmgr

import (
	"fmt"
	"strings"

	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// RefreshData is the resource manager for refresh data records.
type RefreshData struct {
	// Verbose appends the refreshed matview id to Desc output.
	Verbose bool
}

func (*RefreshData) ID() xlog.RmgrID { return RefreshDataID }

func (*RefreshData) Name() string { return "LogicalRefreshData" }

// Redo is a no-op: the record only matters to logical decoding, which reads
// it straight from the log.
func (m *RefreshData) Redo(rec *xlog.Record) error {
	if op := rec.OpCode(); op != codec.OpRefreshData {
		return &FatalError{Rmgr: m.Name(), OpCode: op, LSN: rec.LSN}
	}
	return nil
}

func (m *RefreshData) Desc(buf *strings.Builder, rec *xlog.Record) error {
	if rec.OpCode() != codec.OpRefreshData {
		return nil
	}
	d, err := codec.DecodeRefreshData(rec.Data)
	if err != nil {
		return err
	}

	for _, name := range d.Flags.Names() {
		buf.WriteString(name)
	}
	fmt.Fprintf(buf, "prefix \"%s\"; payload (%d bytes): ", d.Prefix, d.MessageSize)
	writeHex(buf, d.Message)
	if m.Verbose {
		fmt.Fprintf(buf, "; matview %d", d.MatviewID)
	}
	return nil
}

func (*RefreshData) Identify(info uint8) (string, bool) {
	if info&^xlog.InfoMask == codec.OpRefreshData {
		return "REFRESH DATA", true
	}
	return "", false
}
