// Package store is the Postgres persistence layer for the prospecting
// pipeline: master data, raw payloads, facts, metrics, scores, shortlists
// and outreach state.
package store

import (
	"github.com/awc-invest/prospect-cli/internal/db"
)

// Store wraps a connection pool with typed accessors for every table the
// pipeline owns. All methods are safe for concurrent use.
type Store struct {
	pool db.Pool
}

// New creates a Store backed by the given connection pool.
func New(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for components that need bulk operations.
func (s *Store) Pool() db.Pool {
	return s.pool
}
