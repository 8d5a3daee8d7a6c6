package xact

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ssargent/refreshwal/pkg/xlog"
)

// ErrRoleNotFound is returned when a role id has no name.
var ErrRoleNotFound = errors.New("xact: role not found")

// Session is the per-connection state a producer reads. It replaces the
// engine globals for database id, search path and replication origin.
type Session struct {
	DatabaseID xlog.Oid
	SearchPath string
	Origin     xlog.OriginID
	Txn        *Transaction
}

// CheckActive fails unless the session is inside a running transaction.
func (s *Session) CheckActive() error {
	if s == nil || !s.Txn.InProgress() {
		return ErrNoTransaction
	}
	return nil
}

// RoleResolver maps a role id to its name.
type RoleResolver interface {
	RoleName(ctx context.Context, id xlog.Oid) (string, error)
}

// RoleCatalog is an in-memory RoleResolver.
type RoleCatalog struct {
	mu    sync.RWMutex
	roles map[xlog.Oid]string
}

// NewRoleCatalog creates a catalog seeded with roles.
func NewRoleCatalog(roles map[xlog.Oid]string) *RoleCatalog {
	c := &RoleCatalog{roles: make(map[xlog.Oid]string, len(roles))}
	for id, name := range roles {
		c.roles[id] = name
	}
	return c
}

// Add registers or renames a role.
func (c *RoleCatalog) Add(id xlog.Oid, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[id] = name
}

func (c *RoleCatalog) RoleName(_ context.Context, id xlog.Oid) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.roles[id]
	if !ok {
		return "", fmt.Errorf("%w: oid %d", ErrRoleNotFound, id)
	}
	return name, nil
}
