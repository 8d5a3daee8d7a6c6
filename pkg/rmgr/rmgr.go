// Package rmgr holds the resource managers that interpret refresh records on
// the reader side: a describe routine for diagnostics, an identify routine
// for labels, and a redo routine for recovery, plus the table that routes a
// record to its manager by rmgr id.
package rmgr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ssargent/refreshwal/pkg/xlog"
)

// Resource manager ids. Values from 128 are reserved for extensions.
const (
	XactID xlog.RmgrID = 1

	RefreshDataID    xlog.RmgrID = 128
	RefreshMessageID xlog.RmgrID = 129
)

var (
	ErrUnknownRmgr   = errors.New("rmgr: unknown resource manager")
	ErrDuplicateRmgr = errors.New("rmgr: resource manager already registered")
	ErrUnknownOpCode = errors.New("rmgr: unknown op code")
)

// FatalError reports a record that a manager's redo routine cannot apply.
// It means the log and the reader disagree about the layout; replay must
// stop and the process must not continue.
type FatalError struct {
	Rmgr   string
	OpCode uint8
	LSN    xlog.LSN
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s redo: unknown op code %d at %s", e.Rmgr, e.OpCode, e.LSN)
}

func (e *FatalError) Unwrap() error {
	return ErrUnknownOpCode
}

// Manager interprets the records of one kind.
type Manager interface {
	ID() xlog.RmgrID
	Name() string
	// Redo applies rec during recovery.
	Redo(rec *xlog.Record) error
	// Desc appends a human readable rendering of rec's data to buf. It
	// writes nothing for op codes it does not know.
	Desc(buf *strings.Builder, rec *xlog.Record) error
	// Identify returns the label for info, or false if the op code is not
	// one of this manager's.
	Identify(info uint8) (string, bool)
}

// Table routes records to managers by id.
type Table struct {
	managers map[xlog.RmgrID]Manager
}

// NewTable builds a table from managers.
func NewTable(managers ...Manager) (*Table, error) {
	t := &Table{managers: make(map[xlog.RmgrID]Manager, len(managers))}
	for _, m := range managers {
		if err := t.Register(m); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// DefaultTable returns a table with the transaction manager and both
// refresh managers.
func DefaultTable(verbose bool) *Table {
	t, _ := NewTable(&Xact{}, &RefreshData{Verbose: verbose}, &RefreshMessage{})
	return t
}

func (t *Table) Register(m Manager) error {
	if existing, ok := t.managers[m.ID()]; ok {
		return fmt.Errorf("%w: id %d held by %s", ErrDuplicateRmgr, m.ID(), existing.Name())
	}
	t.managers[m.ID()] = m
	return nil
}

func (t *Table) Lookup(id xlog.RmgrID) (Manager, error) {
	m, ok := t.managers[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownRmgr, id)
	}
	return m, nil
}

// Managers returns the registered managers ordered by id.
func (t *Table) Managers() []Manager {
	out := make([]Manager, 0, len(t.managers))
	for _, m := range t.managers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Name returns the manager name for id, or "UNKNOWN".
func (t *Table) Name(id xlog.RmgrID) string {
	if m, ok := t.managers[id]; ok {
		return m.Name()
	}
	return "UNKNOWN"
}

// Identify returns the record label, falling back to UNKNOWN with the raw
// info bits when neither the rmgr nor the op code is recognized.
func (t *Table) Identify(rec *xlog.Record) string {
	if m, ok := t.managers[rec.RmID]; ok {
		if label, ok := m.Identify(rec.Info); ok {
			return label
		}
	}
	return fmt.Sprintf("UNKNOWN (%x)", rec.OpCode())
}

// Describe renders "<label> <desc>" for rec.
func (t *Table) Describe(rec *xlog.Record) (string, error) {
	m, err := t.Lookup(rec.RmID)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	buf.WriteString(t.Identify(rec))
	buf.WriteByte(' ')
	if err := m.Desc(&buf, rec); err != nil {
		return "", fmt.Errorf("describe %s record at %s: %w", m.Name(), rec.LSN, err)
	}
	return buf.String(), nil
}

// Redo dispatches rec to its manager.
func (t *Table) Redo(rec *xlog.Record) error {
	m, err := t.Lookup(rec.RmID)
	if err != nil {
		return err
	}
	return m.Redo(rec)
}

func writeHex(buf *strings.Builder, data []byte) {
	sep := ""
	for _, b := range data {
		fmt.Fprintf(buf, "%s%02X", sep, b)
		sep = " "
	}
}
