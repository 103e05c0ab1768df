// Package store defines the collaborator interfaces the sync engine uses
// to talk to the two data stores. The offline (source) store owns the
// records and their dirty flags; the online (target) store receives
// idempotent upserts keyed by each entity's natural key.
package store

import (
	"context"
	"time"
)

// Record is the generic shape of a syncable row. ID is the source-side
// identifier and stays stable for the record's lifetime; Fields holds the
// entity columns keyed by column name.
type Record struct {
	ID     string
	Fields map[string]any
}

// Source is the offline store the engine drains dirty records from.
//
//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=store.go Source
type Source interface {
	// Probe performs a trivial, side-effect-free reachability check
	Probe(ctx context.Context) error

	// FindDirty returns all records of the entity with dirty == true
	FindDirty(ctx context.Context, entity string) ([]Record, error)

	// MarkClean flips dirty to false and stamps syncedAt for exactly the
	// given identifiers. This is the commit point of an entity batch.
	MarkClean(ctx context.Context, entity string, ids []string, syncedAt time.Time) error
}

// Target is the online store the engine pushes records into.
type Target interface {
	// Probe performs a trivial, side-effect-free reachability check
	Probe(ctx context.Context) error

	// Upsert creates or updates the row identified by the entity's natural
	// key. Replaying the same payload produces the same end state, which is
	// what makes re-delivery after a crash safe.
	Upsert(ctx context.Context, entity string, key string, payload map[string]any) (Record, error)
}
