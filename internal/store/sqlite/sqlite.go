// Package sqlite implements the offline (source) store on top of the
// embedded SQLite database the application mutates while disconnected.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver registration
	_ "github.com/mattn/go-sqlite3"

	"github.com/yadaklinus/neuPham-sub000/internal/store"
)

// TableSpec describes how one entity maps onto a local table. Columns
// lists the entity fields; id, dirty and synced_at are bookkeeping columns
// every syncable table carries and are not part of the field set.
type TableSpec struct {
	Table   string
	Columns []string
}

// Store is the SQLite-backed source store
type Store struct {
	db    *sql.DB
	specs map[string]TableSpec
}

// Open opens the SQLite database at the given path. Writes are serialized
// by SQLite itself, so a single connection is enough and avoids lock
// contention under the syncer's concurrent bookkeeping.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// New creates a source store over an open database handle
func New(db *sql.DB, specs map[string]TableSpec) *Store {
	return &Store{db: db, specs: specs}
}

// Probe implements store.Source with a trivial query
func (s *Store) Probe(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("offline store unreachable: %w", err)
	}
	return nil
}

// FindDirty implements store.Source
func (s *Store) FindDirty(ctx context.Context, entity string) ([]store.Record, error) {
	spec, ok := s.specs[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}

	query := fmt.Sprintf(
		"SELECT id, %s FROM %s WHERE dirty = 1",
		strings.Join(spec.Columns, ", "), spec.Table,
	)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty %s: %w", entity, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var id string
		values := make([]any, len(spec.Columns))
		dest := make([]any, 0, len(spec.Columns)+1)
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", entity, err)
		}

		fields := make(map[string]any, len(spec.Columns))
		for i, col := range spec.Columns {
			fields[col] = normalize(values[i])
		}
		out = append(out, store.Record{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dirty %s: %w", entity, err)
	}

	return out, nil
}

// MarkClean implements store.Source. It is a single bulk update covering
// exactly the given identifiers.
func (s *Store) MarkClean(ctx context.Context, entity string, ids []string, syncedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	spec, ok := s.specs[entity]
	if !ok {
		return fmt.Errorf("unknown entity %q", entity)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := fmt.Sprintf(
		"UPDATE %s SET dirty = 0, synced_at = ? WHERE id IN (%s)",
		spec.Table, placeholders,
	)

	args := make([]any, 0, len(ids)+1)
	args = append(args, syncedAt.UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark %s clean: %w", entity, err)
	}
	return nil
}

// normalize converts driver byte slices to strings so remap rules and
// upsert payloads deal with plain values.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
