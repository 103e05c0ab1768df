package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yadaklinus/neuPham-sub000/internal/store"
)

func TestSource_SeedAndFindDirty(t *testing.T) {
	t.Parallel()

	s := NewSource()
	s.Seed("products",
		store.Record{ID: "p1", Fields: map[string]any{"name": "first"}},
		store.Record{ID: "p2", Fields: map[string]any{"name": "second"}},
	)

	records, err := s.FindDirty(t.Context(), "products")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p1", records[0].ID, "insertion order is preserved")
	assert.Equal(t, "p2", records[1].ID)

	// Seeding an existing id replaces the row without duplicating it
	s.Seed("products", store.Record{ID: "p1", Fields: map[string]any{"name": "renamed"}})
	records, err = s.FindDirty(t.Context(), "products")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "renamed", records[0].Fields["name"])
}

func TestSource_MarkClean(t *testing.T) {
	t.Parallel()

	s := NewSource()
	s.Seed("products", store.Record{ID: "p1", Fields: map[string]any{"name": "x"}})

	syncedAt := time.Now().UTC()
	require.NoError(t, s.MarkClean(t.Context(), "products", []string{"p1"}, syncedAt))

	assert.False(t, s.IsDirty("products", "p1"))
	require.NotNil(t, s.SyncedAt("products", "p1"))
	assert.Equal(t, syncedAt, *s.SyncedAt("products", "p1"))

	records, err := s.FindDirty(t.Context(), "products")
	require.NoError(t, err)
	assert.Empty(t, records)

	// Unknown identifiers are an error, not a silent no-op
	assert.Error(t, s.MarkClean(t.Context(), "products", []string{"ghost"}, syncedAt))
}

func TestSource_ProbeError(t *testing.T) {
	t.Parallel()

	s := NewSource()
	errDown := errors.New("database is locked")
	s.SetProbeError(errDown)

	assert.ErrorIs(t, s.Probe(t.Context()), errDown)
	_, err := s.FindDirty(t.Context(), "products")
	assert.ErrorIs(t, err, errDown)

	s.SetProbeError(nil)
	assert.NoError(t, s.Probe(t.Context()))
}

func TestTarget_Upsert(t *testing.T) {
	t.Parallel()

	d := NewTarget()

	first, err := d.Upsert(t.Context(), "products", "615001", map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	// Same key updates in place and keeps the remote id stable
	second, err := d.Upsert(t.Context(), "products", "615001", map[string]any{"name": "y"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, d.Records("products"), 1)
	assert.Equal(t, 2, d.Upserts())

	rec, ok := d.Get("products", "615001")
	require.True(t, ok)
	assert.Equal(t, "y", rec.Fields["name"])
}

func TestTarget_UpsertHook(t *testing.T) {
	t.Parallel()

	d := NewTarget()
	boom := errors.New("boom")
	d.UpsertHook = func(entity, key string) error {
		if key == "bad" {
			return boom
		}
		return nil
	}

	_, err := d.Upsert(t.Context(), "products", "bad", map[string]any{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, d.Upserts(), "a hooked failure never reaches the table")

	_, err = d.Upsert(t.Context(), "products", "good", map[string]any{})
	assert.NoError(t, err)
}

func TestTarget_CreationOrder(t *testing.T) {
	t.Parallel()

	d := NewTarget()
	_, _ = d.Upsert(t.Context(), "products", "k1", map[string]any{})
	_, _ = d.Upsert(t.Context(), "customers", "k2", map[string]any{})
	_, _ = d.Upsert(t.Context(), "products", "k3", map[string]any{})

	assert.Equal(t, []string{"products", "customers", "products"}, d.CreationOrder())
}

func TestStoresAreIsolatedFromCallerMaps(t *testing.T) {
	t.Parallel()

	s := NewSource()
	fields := map[string]any{"name": "x"}
	s.Seed("products", store.Record{ID: "p1", Fields: fields})
	fields["name"] = "mutated"

	records, err := s.FindDirty(t.Context(), "products")
	require.NoError(t, err)
	assert.Equal(t, "x", records[0].Fields["name"])
}
