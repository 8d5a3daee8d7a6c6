package rmgr

import (
	"fmt"
	"strings"

	"github.com/ssargent/refreshwal/pkg/codec"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// RefreshMessage is the resource manager for refresh message records.
type RefreshMessage struct{}

func (*RefreshMessage) ID() xlog.RmgrID { return RefreshMessageID }

func (*RefreshMessage) Name() string { return "LogicalRefreshMessage" }

// Redo is a no-op for the same reason as RefreshData.Redo.
func (m *RefreshMessage) Redo(rec *xlog.Record) error {
	if op := rec.OpCode(); op != codec.OpRefreshMessage {
		return &FatalError{Rmgr: m.Name(), OpCode: op, LSN: rec.LSN}
	}
	return nil
}

func (*RefreshMessage) Desc(buf *strings.Builder, rec *xlog.Record) error {
	if rec.OpCode() != codec.OpRefreshMessage {
		return nil
	}
	msg, err := codec.DecodeRefreshMessage(rec.Data)
	if err != nil {
		return err
	}

	fmt.Fprintf(buf, "prefix \"%s\"; role \"%s\"; search_path \"%s\"; payload (%d bytes): ",
		msg.Prefix, msg.Role, msg.SearchPath, msg.MessageSize)
	writeHex(buf, msg.Message)
	return nil
}

func (*RefreshMessage) Identify(info uint8) (string, bool) {
	if info&^xlog.InfoMask == codec.OpRefreshMessage {
		return "REFRESH MESSAGE", true
	}
	return "", false
}
