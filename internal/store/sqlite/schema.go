package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yadaklinus/neuPham-sub000/internal/store"
)

// DefaultSpecs maps each syncable entity onto its local table. The column
// lists deliberately exclude the bookkeeping columns (id, dirty,
// synced_at); those are handled by the store itself.
func DefaultSpecs() map[string]TableSpec {
	return map[string]TableSpec{
		store.EntityProducts: {
			Table:   "products",
			Columns: []string{"name", "barcode", "price", "cost_price", "quantity", "warehouse_id"},
		},
		store.EntityCustomers: {
			Table:   "customers",
			Columns: []string{"name", "phone", "email", "balance", "warehouse_id"},
		},
		store.EntitySuppliers: {
			Table:   "suppliers",
			Columns: []string{"name", "phone", "email", "warehouse_id"},
		},
		store.EntityTransactions: {
			Table:   "transactions",
			Columns: []string{"invoice_no", "customer_id", "warehouse_id", "total", "paid", "balance", "payment_method"},
		},
		store.EntityTransactionItems: {
			Table:   "transaction_items",
			Columns: []string{"line_key", "transaction_id", "product_id", "quantity", "unit_price", "subtotal"},
		},
		store.EntityPayments: {
			Table:   "payments",
			Columns: []string{"receipt_no", "transaction_id", "customer_id", "amount", "method", "paid_at"},
		},
	}
}

// schema is the local database layout. The application owns these tables;
// the daemon only creates them when they are missing so a fresh install
// can sync immediately.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	barcode TEXT NOT NULL UNIQUE,
	price REAL NOT NULL DEFAULT 0,
	cost_price REAL NOT NULL DEFAULT 0,
	quantity INTEGER NOT NULL DEFAULT 0,
	warehouse_id TEXT,
	dirty INTEGER NOT NULL DEFAULT 1,
	synced_at TEXT
);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL UNIQUE,
	email TEXT,
	balance REAL NOT NULL DEFAULT 0,
	warehouse_id TEXT,
	dirty INTEGER NOT NULL DEFAULT 1,
	synced_at TEXT
);

CREATE TABLE IF NOT EXISTS suppliers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL UNIQUE,
	email TEXT,
	warehouse_id TEXT,
	dirty INTEGER NOT NULL DEFAULT 1,
	synced_at TEXT
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	invoice_no TEXT NOT NULL UNIQUE,
	customer_id TEXT,
	warehouse_id TEXT,
	total REAL NOT NULL DEFAULT 0,
	paid REAL NOT NULL DEFAULT 0,
	balance REAL NOT NULL DEFAULT 0,
	payment_method TEXT,
	dirty INTEGER NOT NULL DEFAULT 1,
	synced_at TEXT
);

CREATE TABLE IF NOT EXISTS transaction_items (
	id TEXT PRIMARY KEY,
	line_key TEXT NOT NULL UNIQUE,
	transaction_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	quantity INTEGER NOT NULL DEFAULT 0,
	unit_price REAL NOT NULL DEFAULT 0,
	subtotal REAL NOT NULL DEFAULT 0,
	dirty INTEGER NOT NULL DEFAULT 1,
	synced_at TEXT
);

CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	receipt_no TEXT NOT NULL UNIQUE,
	transaction_id TEXT,
	customer_id TEXT,
	amount REAL NOT NULL DEFAULT 0,
	method TEXT,
	paid_at TEXT,
	dirty INTEGER NOT NULL DEFAULT 1,
	synced_at TEXT
);
`

// EnsureSchema creates any missing local tables
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure local schema: %w", err)
	}
	return nil
}
