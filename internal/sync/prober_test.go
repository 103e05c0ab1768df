package sync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yadaklinus/neuPham-sub000/internal/store/memory"
)

var errDown = errors.New("connection refused")

func TestProber_Probe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		sourceDown      bool
		targetDown      bool
		expectedOffline bool
		expectedOnline  bool
	}{
		{name: "both reachable", expectedOffline: true, expectedOnline: true},
		{name: "online down", targetDown: true, expectedOffline: true},
		{name: "offline down", sourceDown: true, expectedOnline: true},
		{name: "both down", sourceDown: true, targetDown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			source := memory.NewSource()
			target := memory.NewTarget()
			if tt.sourceDown {
				source.SetProbeError(errDown)
			}
			if tt.targetDown {
				target.SetProbeError(errDown)
			}

			conn := NewProber(source, target).Probe(t.Context())

			assert.Equal(t, tt.expectedOffline, conn.Offline)
			assert.Equal(t, tt.expectedOnline, conn.Online)
		})
	}
}

func TestProber_EnsureAvailability(t *testing.T) {
	t.Parallel()

	t.Run("single store down is not an error", func(t *testing.T) {
		t.Parallel()

		source := memory.NewSource()
		target := memory.NewTarget()
		target.SetProbeError(errDown)

		prober := NewProber(source, target, WithProbeInterval(time.Millisecond))
		conn, err := prober.EnsureAvailability(t.Context(), 3)

		require.NoError(t, err)
		assert.True(t, conn.Offline)
		assert.False(t, conn.Online)
	})

	t.Run("both stores down fails after retries", func(t *testing.T) {
		t.Parallel()

		source := memory.NewSource()
		target := memory.NewTarget()
		source.SetProbeError(errDown)
		target.SetProbeError(errDown)

		prober := NewProber(source, target, WithProbeInterval(time.Millisecond))
		_, err := prober.EnsureAvailability(t.Context(), 3)

		assert.ErrorIs(t, err, ErrStoresUnavailable)
	})

	t.Run("recovers when a store comes back mid-retry", func(t *testing.T) {
		t.Parallel()

		source := memory.NewSource()
		target := memory.NewTarget()
		source.SetProbeError(errDown)
		target.SetProbeError(errDown)

		go func() {
			time.Sleep(5 * time.Millisecond)
			source.SetProbeError(nil)
		}()

		prober := NewProber(source, target, WithProbeInterval(10*time.Millisecond))
		conn, err := prober.EnsureAvailability(t.Context(), 5)

		require.NoError(t, err)
		assert.True(t, conn.Offline)
	})
}
