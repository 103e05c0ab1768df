// Package sync implements the two-store reconciliation engine: a
// connectivity prober, a static descriptor table ordering the syncable
// entities by dependency rank, a generic per-entity syncer with bounded
// concurrency and per-record failure isolation, and a single-flight run
// orchestrator that aggregates everything into a RunReport.
package sync
