// Package postgres implements the online (target) store on a remote
// PostgreSQL database. Upserts are keyed by each entity's natural key so
// replaying a batch after a crash cannot create duplicates.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yadaklinus/neuPham-sub000/internal/store"
)

const probeTimeout = 5 * time.Second

// TableSpec describes how one entity maps onto a remote table
type TableSpec struct {
	Table     string
	KeyColumn string
}

// DefaultSpecs maps each syncable entity onto its remote table and the
// column upserts conflict on.
func DefaultSpecs() map[string]TableSpec {
	return map[string]TableSpec{
		store.EntityProducts:         {Table: "remote_products", KeyColumn: "barcode"},
		store.EntityCustomers:        {Table: "remote_customers", KeyColumn: "phone"},
		store.EntitySuppliers:        {Table: "remote_suppliers", KeyColumn: "phone"},
		store.EntityTransactions:     {Table: "remote_transactions", KeyColumn: "invoice_no"},
		store.EntityTransactionItems: {Table: "remote_transaction_items", KeyColumn: "line_key"},
		store.EntityPayments:         {Table: "remote_payments", KeyColumn: "receipt_no"},
	}
}

// Store is the PostgreSQL-backed target store
type Store struct {
	pool  *pgxpool.Pool
	specs map[string]TableSpec
}

// Connect creates a connection pool from the given connection string. The
// pool connects lazily, so an unreachable remote store does not prevent
// the daemon from starting; reachability is the prober's concern.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid remote store connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote store pool: %w", err)
	}
	return pool, nil
}

// New creates a target store over an existing pool
func New(pool *pgxpool.Pool, specs map[string]TableSpec) *Store {
	return &Store{pool: pool, specs: specs}
}

// Probe implements store.Target. It pings the pool under a short timeout
// so a dead network path cannot stall the run mode decision.
func (s *Store) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := s.pool.Ping(probeCtx); err != nil {
		return fmt.Errorf("online store unreachable: %w", err)
	}
	return nil
}

// Upsert implements store.Target with INSERT ... ON CONFLICT DO UPDATE
// against the entity's natural key column.
func (s *Store) Upsert(ctx context.Context, entity string, key string, payload map[string]any) (store.Record, error) {
	spec, ok := s.specs[entity]
	if !ok {
		return store.Record{}, fmt.Errorf("unknown entity %q", entity)
	}
	if _, ok := payload[spec.KeyColumn]; !ok {
		return store.Record{}, fmt.Errorf("%s payload missing natural key column %q", entity, spec.KeyColumn)
	}

	query, args := buildUpsert(spec, payload)

	var remoteID string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&remoteID); err != nil {
		return store.Record{}, fmt.Errorf("failed to upsert %s %v: %w", entity, key, err)
	}

	return store.Record{ID: remoteID, Fields: payload}, nil
}

// buildUpsert renders the upsert statement for a payload. Column names
// come from the static table specs and remap rules, never from user
// input, but they are quoted anyway.
func buildUpsert(spec TableSpec, payload map[string]any) (string, []any) {
	cols := make([]string, 0, len(payload))
	for col := range payload {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	var updates []string
	for i, col := range cols {
		quoted[i] = pgx.Identifier{col}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = payload[col]
		if col != spec.KeyColumn {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoted[i], quoted[i]))
		}
	}
	updates = append(updates, "updated_at = now()")

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING id::text",
		pgx.Identifier{spec.Table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		pgx.Identifier{spec.KeyColumn}.Sanitize(),
		strings.Join(updates, ", "),
	)
	return query, args
}
