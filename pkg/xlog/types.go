// Package xlog holds the vocabulary shared by producers and readers of the
// append-only log: positions, identifiers, record flags and the registration
// API used to assemble a record from independent segments.
package xlog

import (
	"fmt"

	"github.com/jackc/pglogrepl"
)

// LSN is a position in the log.
type LSN = pglogrepl.LSN

// InvalidLSN is the zero position; no record is ever written there.
const InvalidLSN LSN = 0

// ParseLSN parses the textual X/XXXXXXXX form of a log position.
func ParseLSN(s string) (LSN, error) {
	lsn, err := pglogrepl.ParseLSN(s)
	if err != nil {
		return InvalidLSN, fmt.Errorf("parse lsn %q: %w", s, err)
	}
	return lsn, nil
}

// Oid is an opaque object identifier (database, relation, role).
type Oid uint32

// InvalidOid marks an unset identifier.
const InvalidOid Oid = 0

// TransactionID identifies the transaction that emitted a record.
type TransactionID uint32

const (
	InvalidTransactionID     TransactionID = 0
	FirstNormalTransactionID TransactionID = 3
)

// RmgrID selects the resource manager that owns a record's layout.
type RmgrID uint8

// OriginID identifies the replication origin a record was produced for.
type OriginID uint16

// InvalidOriginID means the record was produced locally.
const InvalidOriginID OriginID = 0

// InfoMask covers the info bits reserved for the log layer itself. Resource
// managers only see info &^ InfoMask.
const InfoMask uint8 = 0x0F

// RecordFlag modifies how the log layer stores a record.
type RecordFlag uint8

const (
	// FlagIncludeOrigin stores the session's replication origin with the
	// record so decoding consumers can filter on it.
	FlagIncludeOrigin RecordFlag = 1 << 0
)

// Has reports whether all bits of other are set in f.
func (f RecordFlag) Has(other RecordFlag) bool {
	return f&other == other
}
