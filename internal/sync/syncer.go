package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/yadaklinus/neuPham-sub000/internal/status"
	"github.com/yadaklinus/neuPham-sub000/internal/store"
)

const (
	// defaultRecordAttempts is the total upsert attempts per record
	defaultRecordAttempts = 3

	// defaultRetryInterval is the fixed delay between upsert attempts
	defaultRetryInterval = time.Second
)

// ProgressSink receives per-entity progress updates while a batch runs
type ProgressSink interface {
	Publish(p status.SyncProgress)
}

// Outcome is the result of draining one entity's dirty record set
type Outcome struct {
	Entity string

	// Total is the dirty record count at batch start
	Total int

	// Attempted counts records processed, whether or not they succeeded
	Attempted int

	// Synced holds the source identifiers that were upserted successfully
	// and marked clean
	Synced []string

	// Errors holds record-level and entity-level error strings
	Errors []string
}

// Syncer is the generic engine that pushes one entity's dirty records into
// the target store under bounded concurrency. A failing record never
// aborts its batch; it keeps its dirty flag and is reported in the
// outcome's error list.
type Syncer struct {
	recordAttempts uint
	retryInterval  time.Duration
}

// SyncerOption configures a Syncer
type SyncerOption func(*Syncer)

// WithRecordAttempts overrides the per-record upsert attempt count
func WithRecordAttempts(n uint) SyncerOption {
	return func(s *Syncer) {
		s.recordAttempts = n
	}
}

// WithRetryInterval overrides the delay between upsert attempts
func WithRetryInterval(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		s.retryInterval = d
	}
}

// NewSyncer creates a syncer with the default retry policy
func NewSyncer(opts ...SyncerOption) *Syncer {
	s := &Syncer{
		recordAttempts: defaultRecordAttempts,
		retryInterval:  defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncEntity drains the entity's dirty records into the target store.
//
// The sequence is: query dirty records, upsert them under the descriptor's
// concurrency bound with per-record retries, then commit one bulk
// mark-clean for exactly the successful identifiers. Partial success still
// finishes with status completed; the failures are visible in the error
// list, not the status.
func (s *Syncer) SyncEntity(
	ctx context.Context,
	d Descriptor,
	src store.Source,
	dst store.Target,
	sink ProgressSink,
) Outcome {
	outcome := Outcome{Entity: d.Entity}

	records, err := src.FindDirty(ctx, d.Entity)
	if err != nil {
		msg := fmt.Sprintf("failed to query dirty records: %v", err)
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %s", d.Entity, msg))
		sink.Publish(status.SyncProgress{
			Entity:  d.Entity,
			Status:  status.StateError,
			Message: msg,
		})
		return outcome
	}

	outcome.Total = len(records)
	progress := status.SyncProgress{
		Entity: d.Entity,
		Total:  len(records),
		Status: status.StateSyncing,
	}
	sink.Publish(progress)

	if len(records) == 0 {
		progress.Status = status.StateCompleted
		sink.Publish(progress)
		return outcome
	}

	slog.Info("Syncing entity", "entity", d.Entity, "dirty_records", len(records))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(d.Concurrency)

	for _, rec := range records {
		g.Go(func() error {
			err := s.syncRecord(ctx, dst, d, rec)

			mu.Lock()
			defer mu.Unlock()
			outcome.Attempted++
			if err != nil {
				outcome.Errors = append(outcome.Errors,
					fmt.Sprintf("%s %s: %v", d.Entity, rec.ID, err))
			} else {
				outcome.Synced = append(outcome.Synced, rec.ID)
			}
			progress.Completed = outcome.Attempted
			sink.Publish(progress)
			return nil
		})
	}
	_ = g.Wait()

	// The commit point: only identifiers that actually reached the target
	// flip to clean. Failed records stay dirty for the next run.
	if len(outcome.Synced) > 0 {
		if err := src.MarkClean(ctx, d.Entity, outcome.Synced, time.Now().UTC()); err != nil {
			outcome.Errors = append(outcome.Errors,
				fmt.Sprintf("%s: failed to mark records clean: %v", d.Entity, err))
			outcome.Synced = nil
		}
	}

	progress.Status = status.StateCompleted
	sink.Publish(progress)

	slog.Info("Entity sync finished",
		"entity", d.Entity,
		"total", outcome.Total,
		"synced", len(outcome.Synced),
		"failed", outcome.Total-len(outcome.Synced))

	return outcome
}

// syncRecord remaps and upserts one record. A panicking remap rule or
// store driver is converted into that record's error here; errgroup does
// not recover goroutine panics, so an escaping one would kill the
// process, not just the batch.
func (s *Syncer) syncRecord(
	ctx context.Context,
	dst store.Target,
	d Descriptor,
	rec store.Record,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()
	return s.upsertWithRetry(ctx, dst, d, d.Remap(rec))
}

func (s *Syncer) upsertWithRetry(
	ctx context.Context,
	dst store.Target,
	d Descriptor,
	payload map[string]any,
) error {
	key := d.Key(payload)
	_, err := backoff.Retry(ctx, func() (store.Record, error) {
		return dst.Upsert(ctx, d.Entity, key, payload)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryInterval)),
		backoff.WithMaxTries(s.recordAttempts),
	)
	return err
}
