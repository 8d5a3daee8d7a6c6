// Package xact carries the transactional context a producer must run in:
// transaction state, XID allocation and the session values that would
// otherwise be engine globals.
package xact

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ssargent/refreshwal/pkg/xlog"
)

var (
	ErrNoTransaction   = errors.New("xact: not in a transaction")
	ErrTransactionDone = errors.New("xact: transaction already finished")
	ErrXIDWraparound   = errors.New("xact: transaction id space exhausted")
)

// State is the lifecycle state of a transaction.
type State uint8

const (
	StateInProgress State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in progress"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Manager hands out transaction ids. XIDs are assigned lazily, the first
// time a transaction needs one.
type Manager struct {
	mu      sync.Mutex
	nextXID xlog.TransactionID
}

// NewManager creates a manager whose first assigned XID is next. Values
// below FirstNormalTransactionID are raised to it.
func NewManager(next xlog.TransactionID) *Manager {
	if next < xlog.FirstNormalTransactionID {
		next = xlog.FirstNormalTransactionID
	}
	return &Manager{nextXID: next}
}

// NextXID reports the id the next assignment will return.
func (m *Manager) NextXID() xlog.TransactionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextXID
}

func (m *Manager) allocate() (xlog.TransactionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextXID == ^xlog.TransactionID(0) {
		return xlog.InvalidTransactionID, ErrXIDWraparound
	}
	xid := m.nextXID
	m.nextXID++
	return xid, nil
}

// Begin starts a transaction without an XID.
func (m *Manager) Begin() *Transaction {
	return &Transaction{mgr: m, state: StateInProgress}
}

// Transaction is a single unit of work. It is not safe for concurrent use,
// matching a session that runs one statement at a time.
type Transaction struct {
	mgr   *Manager
	xid   xlog.TransactionID
	state State
}

// InProgress reports whether records may still be emitted.
func (t *Transaction) InProgress() bool {
	return t != nil && t.state == StateInProgress
}

func (t *Transaction) State() State { return t.state }

// ID returns the assigned XID or InvalidTransactionID.
func (t *Transaction) ID() xlog.TransactionID { return t.xid }

// AssignID returns the transaction's XID, allocating one if needed.
func (t *Transaction) AssignID() (xlog.TransactionID, error) {
	if !t.InProgress() {
		return xlog.InvalidTransactionID, ErrNoTransaction
	}
	if t.xid != xlog.InvalidTransactionID {
		return t.xid, nil
	}
	xid, err := t.mgr.allocate()
	if err != nil {
		return xlog.InvalidTransactionID, err
	}
	t.xid = xid
	return xid, nil
}

// Commit marks the transaction committed without logging anything. Use
// LogCommit for transactions whose records must reach decoding.
func (t *Transaction) Commit() error {
	return t.finish(StateCommitted)
}

// Abort marks the transaction aborted without logging anything.
func (t *Transaction) Abort() error {
	return t.finish(StateAborted)
}

func (t *Transaction) finish(s State) error {
	if t.state != StateInProgress {
		return fmt.Errorf("%w: %s", ErrTransactionDone, t.state)
	}
	t.state = s
	return nil
}
