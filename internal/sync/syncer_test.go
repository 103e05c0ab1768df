package sync

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yadaklinus/neuPham-sub000/internal/status"
	"github.com/yadaklinus/neuPham-sub000/internal/store"
	"github.com/yadaklinus/neuPham-sub000/internal/store/memory"
)

// captureSink records every published progress update
type captureSink struct {
	mu      sync.Mutex
	updates []status.SyncProgress
}

func (c *captureSink) Publish(p status.SyncProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, p)
}

func (c *captureSink) last(t *testing.T) status.SyncProgress {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.updates)
	return c.updates[len(c.updates)-1]
}

func testSyncer() *Syncer {
	return NewSyncer(WithRetryInterval(time.Millisecond))
}

func productsDescriptor() Descriptor {
	return Descriptor{
		Entity:      store.EntityProducts,
		Concurrency: 2,
		KeyField:    "barcode",
		Remap: remapFields(map[string]string{
			"warehouse_id": "warehouse_remote_id",
		}),
	}
}

func seedProducts(src *memory.Source, n int) {
	for i := 1; i <= n; i++ {
		src.Seed(store.EntityProducts, store.Record{
			ID: fmt.Sprintf("p%d", i),
			Fields: map[string]any{
				"name":         fmt.Sprintf("Product %d", i),
				"barcode":      fmt.Sprintf("6150%02d", i),
				"warehouse_id": "wh-1",
			},
		})
	}
}

func TestSyncEntity_ZeroDirtyRecords(t *testing.T) {
	t.Parallel()

	src := memory.NewSource()
	dst := memory.NewTarget()
	sink := &captureSink{}

	outcome := testSyncer().SyncEntity(t.Context(), productsDescriptor(), src, dst, sink)

	assert.Equal(t, 0, outcome.Total)
	assert.Equal(t, 0, outcome.Attempted)
	assert.Empty(t, outcome.Errors)
	assert.Equal(t, 0, dst.Upserts())

	last := sink.last(t)
	assert.Equal(t, status.StateCompleted, last.Status)
	assert.Equal(t, 0, last.Total)
}

func TestSyncEntity_HappyPath(t *testing.T) {
	t.Parallel()

	src := memory.NewSource()
	dst := memory.NewTarget()
	sink := &captureSink{}
	seedProducts(src, 3)

	outcome := testSyncer().SyncEntity(t.Context(), productsDescriptor(), src, dst, sink)

	assert.Equal(t, 3, outcome.Total)
	assert.Equal(t, 3, outcome.Attempted)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, outcome.Synced)
	assert.Empty(t, outcome.Errors)

	for _, id := range []string{"p1", "p2", "p3"} {
		assert.False(t, src.IsDirty(store.EntityProducts, id))
		assert.NotNil(t, src.SyncedAt(store.EntityProducts, id))
	}

	// Payloads arrive in the target's shape
	rec, ok := dst.Get(store.EntityProducts, "615001")
	require.True(t, ok)
	assert.Equal(t, "p1", rec.Fields["local_id"])
	assert.Equal(t, "wh-1", rec.Fields["warehouse_remote_id"])
	assert.NotContains(t, rec.Fields, "warehouse_id")

	last := sink.last(t)
	assert.Equal(t, status.StateCompleted, last.Status)
	assert.Equal(t, 3, last.Completed)
}

func TestSyncEntity_FailureIsolation(t *testing.T) {
	t.Parallel()

	src := memory.NewSource()
	dst := memory.NewTarget()
	sink := &captureSink{}
	seedProducts(src, 5)

	// p3 fails every attempt; its siblings must be unaffected
	dst.UpsertHook = func(_, key string) error {
		if key == "615003" {
			return errors.New("duplicate key value violates constraint")
		}
		return nil
	}

	outcome := testSyncer().SyncEntity(t.Context(), productsDescriptor(), src, dst, sink)

	assert.Equal(t, 5, outcome.Total)
	assert.Equal(t, 5, outcome.Attempted, "completed reflects records attempted, not just succeeded")
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "products p3:")
	assert.ElementsMatch(t, []string{"p1", "p2", "p4", "p5"}, outcome.Synced)

	assert.True(t, src.IsDirty(store.EntityProducts, "p3"), "a failed record keeps its dirty flag")
	assert.Nil(t, src.SyncedAt(store.EntityProducts, "p3"))
	for _, id := range []string{"p1", "p2", "p4", "p5"} {
		assert.False(t, src.IsDirty(store.EntityProducts, id))
	}

	last := sink.last(t)
	assert.Equal(t, status.StateCompleted, last.Status, "partial success still completes at entity granularity")
}

func TestSyncEntity_RetrySucceedsOnSecondAttempt(t *testing.T) {
	t.Parallel()

	src := memory.NewSource()
	dst := memory.NewTarget()
	sink := &captureSink{}
	seedProducts(src, 1)

	var mu sync.Mutex
	attempts := 0
	dst.UpsertHook = func(_, _ string) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("i/o timeout")
		}
		return nil
	}

	outcome := testSyncer().SyncEntity(t.Context(), productsDescriptor(), src, dst, sink)

	assert.Empty(t, outcome.Errors)
	assert.Equal(t, []string{"p1"}, outcome.Synced)
	assert.False(t, src.IsDirty(store.EntityProducts, "p1"))
}

func TestSyncEntity_Idempotence(t *testing.T) {
	t.Parallel()

	src := memory.NewSource()
	dst := memory.NewTarget()
	sink := &captureSink{}
	seedProducts(src, 3)

	syncer := testSyncer()
	d := productsDescriptor()

	first := syncer.SyncEntity(t.Context(), d, src, dst, sink)
	require.Len(t, first.Synced, 3)
	require.Len(t, dst.Records(store.EntityProducts), 3)

	// Replaying the same record set must not create duplicates
	seedProducts(src, 3)
	second := syncer.SyncEntity(t.Context(), d, src, dst, sink)

	assert.Len(t, second.Synced, 3)
	assert.Empty(t, second.Errors)
	assert.Len(t, dst.Records(store.EntityProducts), 3, "upsert semantics: same natural keys, same rows")
}

func TestSyncEntity_PanickingRemapIsContained(t *testing.T) {
	t.Parallel()

	src := memory.NewSource()
	dst := memory.NewTarget()
	sink := &captureSink{}
	seedProducts(src, 3)

	// A buggy remap rule must cost one record, not the process
	d := productsDescriptor()
	remap := d.Remap
	d.Remap = func(rec store.Record) map[string]any {
		if rec.ID == "p2" {
			panic("remap programming error")
		}
		return remap(rec)
	}

	outcome := testSyncer().SyncEntity(t.Context(), d, src, dst, sink)

	assert.Equal(t, 3, outcome.Attempted)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "products p2:")
	assert.Contains(t, outcome.Errors[0], "unexpected failure: remap programming error")
	assert.ElementsMatch(t, []string{"p1", "p3"}, outcome.Synced)
	assert.True(t, src.IsDirty(store.EntityProducts, "p2"))

	last := sink.last(t)
	assert.Equal(t, status.StateCompleted, last.Status)
}

func TestSyncEntity_DirtyQueryFailure(t *testing.T) {
	t.Parallel()

	src := memory.NewSource()
	dst := memory.NewTarget()
	sink := &captureSink{}
	src.SetProbeError(errors.New("database is locked"))

	outcome := testSyncer().SyncEntity(t.Context(), productsDescriptor(), src, dst, sink)

	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "products: failed to query dirty records")
	assert.Equal(t, 0, dst.Upserts())

	last := sink.last(t)
	assert.Equal(t, status.StateError, last.Status)
}

func TestSyncEntity_ProgressReflectsEveryRecord(t *testing.T) {
	t.Parallel()

	src := memory.NewSource()
	dst := memory.NewTarget()
	sink := &captureSink{}
	seedProducts(src, 4)

	dst.UpsertHook = func(_, key string) error {
		if key == "615002" {
			return errors.New("boom")
		}
		return nil
	}

	_ = testSyncer().SyncEntity(t.Context(), productsDescriptor(), src, dst, sink)

	// One syncing update, one per record, one final completed
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.GreaterOrEqual(t, len(sink.updates), 6)

	seen := map[int]bool{}
	for _, p := range sink.updates {
		seen[p.Completed] = true
	}
	for i := 0; i <= 4; i++ {
		assert.True(t, seen[i], "expected a progress update with completed == %d", i)
	}
}
