package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ssargent/refreshwal/pkg/storage"
	"github.com/ssargent/refreshwal/pkg/wal"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}

func (s *Server) view(rec *xlog.Record) RecordView {
	v := RecordView{
		LSN:    rec.LSN.String(),
		XID:    uint32(rec.XID),
		Origin: uint16(rec.Origin),
		Rmgr:   s.table.Name(rec.RmID),
		Label:  s.table.Identify(rec),
		Length: len(rec.Data),
	}
	desc, err := s.table.Describe(rec)
	if err != nil {
		v.Error = err.Error()
		return v
	}
	// Describe prefixes the label, which the view carries separately
	v.Desc = strings.TrimPrefix(desc, v.Label+" ")
	return v
}

// handleHealth reports that the server is up
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleListRecords pages through the log.
// Query: from (LSN, default first record), limit (default 100, max 1000).
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	from := wal.FirstLSN
	if raw := r.URL.Query().Get("from"); raw != "" {
		lsn, err := xlog.ParseLSN(raw)
		if err != nil {
			sendError(w, "Invalid from LSN", http.StatusBadRequest)
			return
		}
		from = lsn
	}

	limit, err := parseLimit(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, next, err := s.records.Scan(from, limit)
	if err != nil {
		s.logger.Error("scan log", "from", from, "error", err)
		if errors.Is(err, wal.ErrCorruption) {
			sendError(w, "Log corruption at or after "+from.String(), http.StatusInternalServerError)
			return
		}
		sendError(w, "Failed to read log", http.StatusInternalServerError)
		return
	}

	page := RecordPage{Records: make([]RecordView, 0, len(records))}
	for _, rec := range records {
		page.Records = append(page.Records, s.view(rec))
	}
	if len(records) == limit {
		page.Next = next.String()
	}
	sendSuccess(w, page)
}

// handleGetRecord returns the record that starts at {lsn}
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	lsn, err := xlog.ParseLSN(chi.URLParam(r, "lsn"))
	if err != nil {
		sendError(w, "Invalid LSN", http.StatusBadRequest)
		return
	}

	rec, err := s.records.Get(lsn)
	if err != nil {
		if errors.Is(err, wal.ErrCorruption) {
			sendError(w, "No record at "+lsn.String(), http.StatusNotFound)
			return
		}
		s.logger.Error("read record", "lsn", lsn, "error", err)
		sendError(w, "Failed to read record", http.StatusInternalServerError)
		return
	}
	sendSuccess(w, s.view(rec))
}

// handleListEvents returns archived change events in LSN order
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		sendError(w, "Event archive not configured", http.StatusServiceUnavailable)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.events.ListEvents(limit)
	if err != nil {
		s.logger.Error("list events", "error", err)
		sendError(w, "Failed to list events", http.StatusInternalServerError)
		return
	}

	views := make([]EventView, 0, len(events))
	for _, ev := range events {
		views = append(views, EventView{
			ID:     ev.ID.String(),
			Time:   ev.Time(),
			Kind:   string(ev.Kind()),
			Record: s.view(ev.Record),
		})
	}
	sendSuccess(w, views)
}

// handleGetSlot returns the position of {slot}
func (s *Server) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		sendError(w, "Event archive not configured", http.StatusServiceUnavailable)
		return
	}

	slot := chi.URLParam(r, "slot")
	pos, err := s.events.Position(slot)
	if err != nil {
		if errors.Is(err, storage.ErrSlotNotFound) {
			sendError(w, "Slot not found", http.StatusNotFound)
			return
		}
		s.logger.Error("read slot", "slot", slot, "error", err)
		sendError(w, "Failed to read slot", http.StatusInternalServerError)
		return
	}
	sendSuccess(w, SlotView{Slot: slot, RestartLSN: pos.Restart.String(), ConfirmedLSN: pos.Confirmed.String()})
}
