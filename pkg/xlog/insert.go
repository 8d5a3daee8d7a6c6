package xlog

import "context"

// Insertion collects the segments of one record before it is handed to the
// log. Segments are concatenated in registration order with no padding.
type Insertion struct {
	xid      TransactionID
	origin   OriginID
	flags    RecordFlag
	segments [][]byte
	size     int
}

// BeginInsert starts assembling a record on behalf of xid. origin is the
// session's replication origin; it is only persisted when the record is
// flagged with FlagIncludeOrigin.
func BeginInsert(xid TransactionID, origin OriginID) *Insertion {
	return &Insertion{xid: xid, origin: origin}
}

// RegisterData appends a segment. The slice is referenced, not copied, until
// the record is inserted.
func (in *Insertion) RegisterData(data []byte) {
	in.segments = append(in.segments, data)
	in.size += len(data)
}

// SetRecordFlags ORs flags into the record flags.
func (in *Insertion) SetRecordFlags(flags RecordFlag) {
	in.flags |= flags
}

func (in *Insertion) XID() TransactionID { return in.xid }

func (in *Insertion) Flags() RecordFlag { return in.flags }

// Origin returns the origin to persist, which is InvalidOriginID unless the
// record asked for it.
func (in *Insertion) Origin() OriginID {
	if !in.flags.Has(FlagIncludeOrigin) {
		return InvalidOriginID
	}
	return in.origin
}

// Segments returns the registered segments in order.
func (in *Insertion) Segments() [][]byte {
	return in.segments
}

// Len is the total data length of the record.
func (in *Insertion) Len() int {
	return in.size
}

// Bytes concatenates the registered segments.
func (in *Insertion) Bytes() []byte {
	buf := make([]byte, 0, in.size)
	for _, seg := range in.segments {
		buf = append(buf, seg...)
	}
	return buf
}

// Inserter appends assembled records to the log and returns their position.
type Inserter interface {
	Insert(ctx context.Context, rmid RmgrID, info uint8, in *Insertion) (LSN, error)
}
