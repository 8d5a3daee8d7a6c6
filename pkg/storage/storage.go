// Package storage archives decoded change events and tracks how far each
// decoding slot has confirmed.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/refreshwal/pkg/decoding"
	"github.com/ssargent/refreshwal/pkg/rmgr"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

const (
	eventPrefix = "event/"
	idPrefix    = "id/"
	slotPrefix  = "slot/"

	lsnSize      = 8
	idSize       = len(ksuid.Nil)
	positionSize = 2 * lsnSize
)

var (
	ErrEventNotFound = errors.New("storage: event not found")
	ErrSlotNotFound  = errors.New("storage: slot not found")
	ErrInvalidSlot   = errors.New("storage: invalid slot name")
)

// Event is an archived change. Its id records when it was archived.
type Event struct {
	ID     ksuid.KSUID
	Record *xlog.Record
}

// Time is when the event was archived.
func (e *Event) Time() time.Time {
	return e.ID.Time()
}

// Kind reports the change kind of the archived record.
func (e *Event) Kind() decoding.Kind {
	if e.Record.RmID == rmgr.RefreshMessageID {
		return decoding.KindRefreshMessage
	}
	return decoding.KindRefreshData
}

// EventStore is a pebble-backed archive. Events are keyed by the
// big-endian LSN of their record so iteration runs in log order, and an
// id index maps each ksuid back to that LSN.
type EventStore struct {
	db *pebble.DB
}

func NewEventStore(path string) (*EventStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &EventStore{db: db}, nil
}

func encodeLSN(lsn xlog.LSN) []byte {
	var buf [lsnSize]byte
	binary.BigEndian.PutUint64(buf[:], uint64(lsn))
	return buf[:]
}

func eventKey(lsn xlog.LSN) []byte {
	return append([]byte(eventPrefix), encodeLSN(lsn)...)
}

func idKey(id ksuid.KSUID) []byte {
	return []byte(idPrefix + id.String())
}

// AppendChange archives the record behind c. A change whose LSN is
// already archived is not stored twice; its existing id is returned.
func (s *EventStore) AppendChange(c *decoding.Change) (ksuid.KSUID, error) {
	if c == nil || c.Record == nil {
		return ksuid.Nil, fmt.Errorf("storage: change has no record")
	}
	key := eventKey(c.Record.LSN)
	existing, closer, err := s.db.Get(key)
	switch {
	case err == nil:
		defer closer.Close()
		if len(existing) < idSize {
			return ksuid.Nil, fmt.Errorf("storage: event at %s has %d byte value", c.Record.LSN, len(existing))
		}
		return ksuid.FromBytes(existing[:idSize])
	case !errors.Is(err, pebble.ErrNotFound):
		return ksuid.Nil, err
	}

	data, err := c.Record.MarshalBinary()
	if err != nil {
		return ksuid.Nil, err
	}
	id := ksuid.New()
	value := make([]byte, 0, idSize+len(data))
	value = append(value, id.Bytes()...)
	value = append(value, data...)

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return ksuid.Nil, err
	}
	if err := b.Set(idKey(id), encodeLSN(c.Record.LSN), nil); err != nil {
		return ksuid.Nil, err
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return ksuid.Nil, err
	}
	return id, nil
}

func (s *EventStore) GetEvent(id ksuid.KSUID) (*Event, error) {
	lsnData, closer, err := s.db.Get(idKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		return nil, err
	}
	if len(lsnData) != lsnSize {
		closer.Close()
		return nil, fmt.Errorf("storage: id %s has %d byte value", id, len(lsnData))
	}
	lsn := xlog.LSN(binary.BigEndian.Uint64(lsnData))
	closer.Close()

	data, closer, err := s.db.Get(eventKey(lsn))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	return decodeEvent(data)
}

func decodeEvent(data []byte) (*Event, error) {
	if len(data) < idSize {
		return nil, fmt.Errorf("storage: event value has %d bytes", len(data))
	}
	id, err := ksuid.FromBytes(data[:idSize])
	if err != nil {
		return nil, err
	}
	rec := &xlog.Record{}
	// UnmarshalBinary copies, so data may be released afterwards
	if err := rec.UnmarshalBinary(data[idSize:]); err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}
	return &Event{ID: id, Record: rec}, nil
}

// ListEvents returns up to limit events in LSN order. A limit of zero or
// less returns every event.
func (s *EventStore) ListEvents(limit int) ([]*Event, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(eventPrefix),
		UpperBound: prefixEnd(eventPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var events []*Event
	for iter.First(); iter.Valid(); iter.Next() {
		if limit > 0 && len(events) >= limit {
			break
		}
		ev, err := decodeEvent(iter.Value())
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, iter.Error()
}

func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	end[len(end)-1]++
	return end
}

// SavePosition records how far slot has decoded. The write is synced.
func (s *EventStore) SavePosition(slot string, pos decoding.Position) error {
	if slot == "" {
		return ErrInvalidSlot
	}
	var buf [positionSize]byte
	binary.LittleEndian.PutUint64(buf[:lsnSize], uint64(pos.Restart))
	binary.LittleEndian.PutUint64(buf[lsnSize:], uint64(pos.Confirmed))
	return s.db.Set([]byte(slotPrefix+slot), buf[:], pebble.Sync)
}

func (s *EventStore) Position(slot string) (decoding.Position, error) {
	data, closer, err := s.db.Get([]byte(slotPrefix + slot))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return decoding.Position{}, fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
		}
		return decoding.Position{}, err
	}
	defer closer.Close()

	if len(data) != positionSize {
		return decoding.Position{}, fmt.Errorf("storage: slot %s has %d byte value", slot, len(data))
	}
	return decoding.Position{
		Restart:   xlog.LSN(binary.LittleEndian.Uint64(data[:lsnSize])),
		Confirmed: xlog.LSN(binary.LittleEndian.Uint64(data[lsnSize:])),
	}, nil
}

func (s *EventStore) Close() error {
	return s.db.Close()
}
