package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ssargent/refreshwal/pkg/decoding"
	"github.com/ssargent/refreshwal/pkg/storage"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RecordView is the JSON rendering of one log record
type RecordView struct {
	LSN    string `json:"lsn"`
	XID    uint32 `json:"xid"`
	Origin uint16 `json:"origin,omitempty"`
	Rmgr   string `json:"rmgr"`
	Label  string `json:"label"`
	Length int    `json:"length"`
	Desc   string `json:"desc"`
	// Error is set when the record data could not be described.
	Error string `json:"error,omitempty"`
}

// RecordPage is one page of log records
type RecordPage struct {
	Records []RecordView `json:"records"`
	// Next is the LSN to pass as from for the following page, empty at the
	// end of the log.
	Next string `json:"next,omitempty"`
}

// EventView is the JSON rendering of an archived change
type EventView struct {
	ID     string     `json:"id"`
	Time   time.Time  `json:"time"`
	Kind   string     `json:"kind"`
	Record RecordView `json:"record"`
}

// SlotView reports a decoding slot's position
type SlotView struct {
	Slot         string `json:"slot"`
	RestartLSN   string `json:"restart_lsn"`
	ConfirmedLSN string `json:"confirmed_lsn"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind   string
	Port   int
	APIKey string // Optional; when set /api/v1 requires X-API-Key

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// RecordSource reads records from the log
type RecordSource interface {
	// Scan returns up to limit records starting at from and the LSN just
	// past the last one returned.
	Scan(from xlog.LSN, limit int) ([]*xlog.Record, xlog.LSN, error)
	// Get returns the record that starts at lsn.
	Get(lsn xlog.LSN) (*xlog.Record, error)
}

// EventSource reads the decoded event archive
type EventSource interface {
	ListEvents(limit int) ([]*storage.Event, error)
	Position(slot string) (decoding.Position, error)
}
