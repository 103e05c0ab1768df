// Package memory provides in-memory Source and Target implementations.
// They back the engine's test suites and double as a lightweight store
// for local development, with hooks for failure injection.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yadaklinus/neuPham-sub000/internal/store"
)

type sourceRow struct {
	fields   map[string]any
	dirty    bool
	syncedAt *time.Time
}

// Source is an in-memory offline store
type Source struct {
	mu       sync.Mutex
	tables   map[string]map[string]*sourceRow
	order    map[string][]string
	probeErr error
}

// NewSource creates an empty in-memory source store
func NewSource() *Source {
	return &Source{
		tables: make(map[string]map[string]*sourceRow),
		order:  make(map[string][]string),
	}
}

// Seed inserts records into the source with dirty set to true
func (s *Source) Seed(entity string, records ...store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables[entity] == nil {
		s.tables[entity] = make(map[string]*sourceRow)
	}
	for _, rec := range records {
		if _, exists := s.tables[entity][rec.ID]; !exists {
			s.order[entity] = append(s.order[entity], rec.ID)
		}
		s.tables[entity][rec.ID] = &sourceRow{
			fields: cloneFields(rec.Fields),
			dirty:  true,
		}
	}
}

// SetProbeError makes subsequent probes fail with the given error.
// Passing nil restores reachability.
func (s *Source) SetProbeError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeErr = err
}

// Probe implements store.Source
func (s *Source) Probe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeErr
}

// FindDirty implements store.Source. Records are returned in insertion
// order so tests are deterministic.
func (s *Source) FindDirty(_ context.Context, entity string) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.probeErr != nil {
		return nil, s.probeErr
	}

	var out []store.Record
	for _, id := range s.order[entity] {
		row := s.tables[entity][id]
		if row != nil && row.dirty {
			out = append(out, store.Record{ID: id, Fields: cloneFields(row.fields)})
		}
	}
	return out, nil
}

// MarkClean implements store.Source
func (s *Source) MarkClean(_ context.Context, entity string, ids []string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.probeErr != nil {
		return s.probeErr
	}

	for _, id := range ids {
		row := s.tables[entity][id]
		if row == nil {
			return fmt.Errorf("mark clean: %s %s: record not found", entity, id)
		}
		ts := syncedAt
		row.dirty = false
		row.syncedAt = &ts
	}
	return nil
}

// IsDirty reports the dirty flag of a record, for assertions
func (s *Source) IsDirty(entity, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.tables[entity][id]
	return row != nil && row.dirty
}

// SyncedAt returns the synced-at timestamp of a record, or nil
func (s *Source) SyncedAt(entity, id string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.tables[entity][id]
	if row == nil {
		return nil
	}
	return row.syncedAt
}

// Target is an in-memory online store
type Target struct {
	mu       sync.Mutex
	tables   map[string]map[string]store.Record
	touched  []string
	upserts  int
	probeErr error

	// UpsertHook, when set, runs before every upsert; returning an error
	// fails that upsert attempt. Used for failure injection and for
	// blocking a run mid-flight.
	UpsertHook func(entity, key string) error
}

// NewTarget creates an empty in-memory target store
func NewTarget() *Target {
	return &Target{
		tables: make(map[string]map[string]store.Record),
	}
}

// SetProbeError makes subsequent probes fail with the given error
func (t *Target) SetProbeError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.probeErr = err
}

// Probe implements store.Target
func (t *Target) Probe(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.probeErr
}

// Upsert implements store.Target
func (t *Target) Upsert(_ context.Context, entity string, key string, payload map[string]any) (store.Record, error) {
	t.mu.Lock()
	hook := t.UpsertHook
	t.mu.Unlock()

	// Run the hook outside the lock so a blocking hook does not deadlock
	// concurrent probes and assertions.
	if hook != nil {
		if err := hook(entity, key); err != nil {
			return store.Record{}, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.probeErr != nil {
		return store.Record{}, t.probeErr
	}

	if t.tables[entity] == nil {
		t.tables[entity] = make(map[string]store.Record)
	}

	existing, exists := t.tables[entity][key]
	remoteID := existing.ID
	if !exists {
		remoteID = uuid.NewString()
		t.touched = append(t.touched, entity)
	}

	rec := store.Record{ID: remoteID, Fields: cloneFields(payload)}
	t.tables[entity][key] = rec
	t.upserts++
	return rec, nil
}

// Records returns all rows stored for the entity
func (t *Target) Records(entity string) []store.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]store.Record, 0, len(t.tables[entity]))
	for _, rec := range t.tables[entity] {
		out = append(out, rec)
	}
	return out
}

// Get returns the row stored under the given natural key
func (t *Target) Get(entity, key string) (store.Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.tables[entity][key]
	return rec, ok
}

// Upserts returns the total number of successful upsert calls
func (t *Target) Upserts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.upserts
}

// CreationOrder returns the entity names in the order their first row was
// created, which is how tests assert cross-entity ordering.
func (t *Target) CreationOrder() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.touched...)
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
