// Package di provides dependency injection container
package di

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ssargent/refreshwal/pkg/api"
	"github.com/ssargent/refreshwal/pkg/config"
	"github.com/ssargent/refreshwal/pkg/decoding"
	"github.com/ssargent/refreshwal/pkg/metrics"
	"github.com/ssargent/refreshwal/pkg/rmgr"
	"github.com/ssargent/refreshwal/pkg/storage"
	"github.com/ssargent/refreshwal/pkg/wal"
	"github.com/ssargent/refreshwal/pkg/xact"
	"github.com/ssargent/refreshwal/pkg/xlog"
)

// Container holds all the dependencies for the application
type Container struct {
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	table    *rmgr.Table
}

// NewContainer creates a new dependency injection container. Metrics are
// registered on a private registry so containers can coexist in tests.
func NewContainer(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	return &Container{
		config:   cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
		table:    rmgr.DefaultTable(false),
	}
}

func (c *Container) Config() *config.Config { return c.config }

func (c *Container) Logger() *slog.Logger { return c.logger }

func (c *Container) Metrics() *metrics.Metrics { return c.metrics }

// Gatherer exposes the container's metrics registry
func (c *Container) Gatherer() prometheus.Gatherer { return c.registry }

// Table returns the resource manager table
func (c *Container) Table() *rmgr.Table { return c.table }

// SetTable allows overriding the resource manager table (for verbose output or testing)
func (c *Container) SetTable(t *rmgr.Table) {
	c.table = t
}

// OpenWriter recovers and opens the configured log for appending
func (c *Container) OpenWriter() (*wal.Writer, *wal.RecoveryResult, error) {
	return wal.Open(wal.WriterConfig{
		FilePath:      c.config.WALPath(),
		FsyncInterval: c.config.WAL.FsyncInterval,
		BufferSize:    c.config.WAL.BufferSize,
		Metrics:       c.metrics,
		RmgrName:      c.table.Name,
	})
}

// OpenReader opens the configured log for reading at start
func (c *Container) OpenReader(start xlog.LSN) (*wal.Reader, error) {
	return wal.NewReader(wal.ReaderConfig{FilePath: c.config.WALPath(), StartLSN: start})
}

// OpenEventStore opens the configured event archive
func (c *Container) OpenEventStore() (*storage.EventStore, error) {
	return storage.NewEventStore(c.config.EventsPath())
}

// NewDecoder builds a decoder with the configured origin filter
func (c *Container) NewDecoder() *decoding.Decoder {
	skip := make([]xlog.OriginID, 0, len(c.config.Decoding.SkipOrigins))
	for _, o := range c.config.Decoding.SkipOrigins {
		skip = append(skip, xlog.OriginID(o))
	}
	return decoding.NewDecoder(decoding.Options{
		OnlyLocal:   c.config.Decoding.OnlyLocal,
		SkipOrigins: skip,
	}, c.metrics, c.logger)
}

// Roles returns a catalog seeded from the configured roles
func (c *Container) Roles() *xact.RoleCatalog {
	roles := make(map[xlog.Oid]string, len(c.config.Roles))
	for id, name := range c.config.Roles {
		roles[xlog.Oid(id)] = name
	}
	return xact.NewRoleCatalog(roles)
}

// NewSession opens a session with the configured database, search path and
// origin, running a fresh transaction from txm
func (c *Container) NewSession(txm *xact.Manager) *xact.Session {
	return &xact.Session{
		DatabaseID: xlog.Oid(c.config.Session.DatabaseID),
		SearchPath: c.config.Session.SearchPath,
		Origin:     xlog.OriginID(c.config.Session.Origin),
		Txn:        txm.Begin(),
	}
}

// NewServer builds the inspection server. events may be nil.
func (c *Container) NewServer(events api.EventSource) *api.Server {
	return api.NewServer(
		&api.WALSource{Path: c.config.WALPath()},
		events,
		c.table,
		api.ServerConfig{
			Bind:     c.config.Server.Bind,
			Port:     c.config.Server.Port,
			APIKey:   c.config.Server.APIKey,
			Gatherer: c.registry,
		},
		c.metrics,
		c.logger,
	)
}
