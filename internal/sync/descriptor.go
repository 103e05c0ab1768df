package sync

import (
	"fmt"
	"sort"

	"github.com/yadaklinus/neuPham-sub000/internal/store"
)

// defaultConcurrency bounds the in-flight upserts per entity. The value is
// deliberately small: the online store is typically reached over a slow or
// metered link.
const defaultConcurrency = 2

// Descriptor is the static per-entity sync configuration: where the entity
// sits in the dependency order, how its source shape maps onto the target
// shape, and which field the target upserts by.
type Descriptor struct {
	// Entity is the syncable entity name
	Entity string

	// Rank orders entities so foreign-key targets sync before the records
	// referencing them. Lower ranks sync first.
	Rank int

	// Concurrency is the worker bound for this entity's upserts
	Concurrency int

	// KeyField names the natural-key field in the remapped payload
	KeyField string

	// Remap converts a source record into a target-shaped payload. It must
	// be pure: implementations never mutate the record they are given.
	Remap func(rec store.Record) map[string]any
}

// Key extracts the natural-key value from a remapped payload
func (d Descriptor) Key(payload map[string]any) string {
	return fmt.Sprintf("%v", payload[d.KeyField])
}

// Table returns the full descriptor table in ascending rank order.
//
// Foreign keys are renamed into the target's identifier namespace
// (warehouse_id becomes warehouse_remote_id and so on); the source-side id
// travels along as local_id and is never used as a target key.
func Table() []Descriptor {
	table := []Descriptor{
		{
			Entity:   store.EntityProducts,
			Rank:     0,
			KeyField: "barcode",
			Remap: remapFields(map[string]string{
				"warehouse_id": "warehouse_remote_id",
			}),
		},
		{
			Entity:   store.EntityCustomers,
			Rank:     1,
			KeyField: "phone",
			Remap: remapFields(map[string]string{
				"warehouse_id": "warehouse_remote_id",
			}),
		},
		{
			Entity:   store.EntitySuppliers,
			Rank:     2,
			KeyField: "phone",
			Remap: remapFields(map[string]string{
				"warehouse_id": "warehouse_remote_id",
			}),
		},
		{
			Entity:   store.EntityTransactions,
			Rank:     3,
			KeyField: "invoice_no",
			Remap: remapFields(map[string]string{
				"warehouse_id": "warehouse_remote_id",
				"customer_id":  "customer_remote_id",
			}),
		},
		{
			Entity:   store.EntityTransactionItems,
			Rank:     4,
			KeyField: "line_key",
			Remap: remapFields(map[string]string{
				"transaction_id": "transaction_remote_id",
				"product_id":     "product_remote_id",
			}),
		},
		{
			Entity:   store.EntityPayments,
			Rank:     5,
			KeyField: "receipt_no",
			Remap: remapFields(map[string]string{
				"transaction_id": "transaction_remote_id",
				"customer_id":    "customer_remote_id",
			}),
		},
	}

	for i := range table {
		if table[i].Concurrency == 0 {
			table[i].Concurrency = defaultConcurrency
		}
	}
	sortByRank(table)
	return table
}

// remapFields builds a remap rule that copies the record fields, renaming
// the given foreign-key columns, and carries the source id as local_id.
func remapFields(renames map[string]string) func(store.Record) map[string]any {
	return func(rec store.Record) map[string]any {
		out := make(map[string]any, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			if alias, ok := renames[k]; ok {
				out[alias] = v
			} else {
				out[k] = v
			}
		}
		out["local_id"] = rec.ID
		return out
	}
}

func sortByRank(table []Descriptor) {
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Rank < table[j].Rank
	})
}
